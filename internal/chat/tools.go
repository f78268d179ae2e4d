package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Tool names the model is allowed to call.
const (
	ToolFindNearbyPlaces = "findNearbyPlaces"
	ToolEstimateTravel   = "estimateTravel"
)

// PlacesArgs are the arguments of a findNearbyPlaces call.
type PlacesArgs struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Radius int     `json:"radius,omitempty"`
	Type   string  `json:"type,omitempty"`
}

// TravelArgs are the arguments of an estimateTravel call. Origin and
// destination are free-form: either "lat,lng" pairs or addresses.
type TravelArgs struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Mode        string `json:"mode,omitempty"`
}

// Place is one result of a nearby-places lookup.
type Place struct {
	Name         string       `json:"name"`
	Address      string       `json:"address"`
	Rating       float64      `json:"rating,omitempty"`
	TotalRatings int          `json:"totalRatings,omitempty"`
	PlaceID      string       `json:"placeId,omitempty"`
	Location     *Coordinates `json:"location,omitempty"`
}

// RouteLeg is a raw directions result, durations still in seconds.
type RouteLeg struct {
	DistanceMeters  int `json:"distanceMeters"`
	DurationSeconds int `json:"durationSeconds"`
}

// ToolProvider is the external collaborator the orchestrator calls on the
// model's behalf. A nil RouteLeg with nil error means no route was found.
type ToolProvider interface {
	FindNearbyPlaces(ctx context.Context, args PlacesArgs) ([]Place, error)
	EstimateTravel(ctx context.Context, args TravelArgs) (*RouteLeg, error)
}

// ToolSchema is a function-calling declaration passed to the model.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Completion is one model response: plain content, tool calls, or both.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// CompletionClient is the LLM boundary. Implementations must honor ctx
// cancellation and apply their own request timeout.
type CompletionClient interface {
	Complete(ctx context.Context, turns []Turn, tools []ToolSchema) (Completion, error)
}

func toolSchemas() []ToolSchema {
	return []ToolSchema{
		{
			Name:        ToolFindNearbyPlaces,
			Description: "Find nearby places by coordinates",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"lat":    map[string]any{"type": "number"},
					"lng":    map[string]any{"type": "number"},
					"radius": map[string]any{"type": "integer", "default": defaultPlacesRadius},
					"type":   map[string]any{"type": "string", "default": defaultPlacesType},
				},
				"required": []string{"lat", "lng"},
			},
		},
		{
			Name:        ToolEstimateTravel,
			Description: "Get travel time and distance between two locations",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"origin":      map[string]any{"type": "string"},
					"destination": map[string]any{"type": "string"},
					"mode":        map[string]any{"type": "string", "default": defaultTravelMode},
				},
				"required": []string{"origin", "destination"},
			},
		},
	}
}

const (
	defaultPlacesRadius = 500
	defaultPlacesType   = "restaurant"
	defaultTravelMode   = "driving"
)

// runToolCalls executes every call of one assistant response concurrently
// and returns one tool result turn per call, in request order regardless of
// completion order, so the model context stays deterministic. A failed call
// yields a JSON null result rather than aborting the loop.
func (o *Orchestrator) runToolCalls(ctx context.Context, calls []ToolCall) []Turn {
	results := make([]Turn, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ToolCall) {
			defer wg.Done()
			payload, err := o.dispatchTool(ctx, call)
			if err != nil {
				o.logger.Printf("tool call %s (%s) failed: %v", call.Name, call.ID, err)
				payload = json.RawMessage("null")
			}
			results[i] = Turn{
				Role:       RoleTool,
				Content:    string(payload),
				ToolCallID: call.ID,
				ToolName:   call.Name,
			}
		}(i, call)
	}
	wg.Wait()
	return results
}

// dispatchTool parses the raw arguments for a known tool, applies defaults,
// and invokes the provider. Unknown tool names are rejected here instead of
// reaching the provider.
func (o *Orchestrator) dispatchTool(ctx context.Context, call ToolCall) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, o.toolTimeout)
	defer cancel()

	switch call.Name {
	case ToolFindNearbyPlaces:
		var args PlacesArgs
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return nil, &toolFailure{tool: call.Name, err: fmt.Errorf("bad arguments: %w", err)}
		}
		if args.Radius <= 0 {
			args.Radius = defaultPlacesRadius
		}
		if args.Type == "" {
			args.Type = defaultPlacesType
		}
		places, err := o.tools.FindNearbyPlaces(ctx, args)
		if err != nil {
			return nil, &toolFailure{tool: call.Name, err: err}
		}
		return json.Marshal(places)
	case ToolEstimateTravel:
		var args TravelArgs
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return nil, &toolFailure{tool: call.Name, err: fmt.Errorf("bad arguments: %w", err)}
		}
		if args.Mode == "" {
			args.Mode = defaultTravelMode
		}
		leg, err := o.tools.EstimateTravel(ctx, args)
		if err != nil {
			return nil, &toolFailure{tool: call.Name, err: err}
		}
		return json.Marshal(leg)
	default:
		return nil, &toolFailure{tool: call.Name, err: fmt.Errorf("unknown tool")}
	}
}
