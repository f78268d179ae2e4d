package chat

import (
	"context"
	"fmt"
	"math"
)

// Augment fills missing travel legs in place. Stop 0 gets a leg only when
// the user's origin is known; every later stop is measured from its
// immediate predecessor. The calls run sequentially in index order so each
// leg is computed against the predecessor's final coordinates. A failed
// lookup is logged and skipped; a missing leg is never fatal.
func (o *Orchestrator) Augment(ctx context.Context, locations []Location, userOrigin *Coordinates) {
	if len(locations) == 0 {
		return
	}

	if userOrigin != nil && !locations[0].Travel.Complete() {
		origin := coordString(*userOrigin)
		dest := stopEndpoint(&locations[0])
		if dest != "" {
			o.fillLeg(ctx, &locations[0], origin, dest)
		}
	}

	for i := 1; i < len(locations); i++ {
		if locations[i].Travel.Complete() {
			continue
		}
		origin := stopEndpoint(&locations[i-1])
		dest := stopEndpoint(&locations[i])
		if origin == "" || dest == "" {
			continue
		}
		o.fillLeg(ctx, &locations[i], origin, dest)
	}
}

func (o *Orchestrator) fillLeg(ctx context.Context, loc *Location, origin, dest string) {
	ctx, cancel := context.WithTimeout(ctx, o.toolTimeout)
	defer cancel()

	leg, err := o.tools.EstimateTravel(ctx, TravelArgs{
		Origin:      origin,
		Destination: dest,
		Mode:        defaultTravelMode,
	})
	if err != nil {
		o.logger.Printf("travel lookup %s -> %s failed: %v", origin, dest, err)
		return
	}
	if leg == nil {
		return
	}
	loc.Travel = &TravelLeg{
		DistanceMeters:  leg.DistanceMeters,
		DurationMinutes: int(math.Round(float64(leg.DurationSeconds) / 60)),
	}
}

// stopEndpoint renders a stop as a directions query: coordinates when
// known, street address as fallback, empty when neither is usable.
func stopEndpoint(loc *Location) string {
	if c := loc.Location.Coordinates; c != nil {
		return coordString(*c)
	}
	return loc.Location.Address
}

func coordString(c Coordinates) string {
	return fmt.Sprintf("%f,%f", c.Lat, c.Lng)
}
