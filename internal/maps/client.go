// Package maps talks to the Google Maps web services the assistant uses as
// tools: Places Nearby Search and Directions.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wanderrhodes/wander/internal/chat"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api"

// Config configures the maps client. Cache is optional; when set,
// directions legs are cached under origin|destination|mode for CacheTTL.
type Config struct {
	APIKey   string
	BaseURL  string // overridable for tests
	Timeout  time.Duration
	Cache    *redis.Client
	CacheTTL time.Duration
}

// Client implements chat.ToolProvider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     *log.Logger
}

func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("maps: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[MAPS] ", log.LstdFlags)
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cfg.Cache,
		cacheTTL:   cfg.CacheTTL,
		logger:     logger,
	}, nil
}

// FindNearbyPlaces runs a Places Nearby Search around the given coordinate.
func (c *Client) FindNearbyPlaces(ctx context.Context, args chat.PlacesArgs) ([]chat.Place, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("location", fmt.Sprintf("%f,%f", args.Lat, args.Lng))
	q.Set("radius", strconv.Itoa(args.Radius))
	q.Set("type", args.Type)

	var raw struct {
		Status  string `json:"status"`
		Results []struct {
			Name     string  `json:"name"`
			Vicinity string  `json:"vicinity"`
			Rating   float64 `json:"rating"`
			PlaceID  string  `json:"place_id"`
			Total    int     `json:"user_ratings_total"`
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, "/place/nearbysearch/json", q, &raw); err != nil {
		return nil, err
	}
	if raw.Status != "OK" && raw.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places lookup failed: %s", raw.Status)
	}

	places := make([]chat.Place, 0, len(raw.Results))
	for _, r := range raw.Results {
		places = append(places, chat.Place{
			Name:         r.Name,
			Address:      r.Vicinity,
			Rating:       r.Rating,
			TotalRatings: r.Total,
			PlaceID:      r.PlaceID,
			Location:     &chat.Coordinates{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		})
	}
	return places, nil
}

// EstimateTravel runs a Directions request and returns the first leg of the
// first route. A route-less response yields (nil, nil): no usable result,
// but not an error worth aborting for.
func (c *Client) EstimateTravel(ctx context.Context, args chat.TravelArgs) (*chat.RouteLeg, error) {
	cacheKey := fmt.Sprintf("travel:%s|%s|%s", args.Origin, args.Destination, args.Mode)
	if leg := c.cachedLeg(ctx, cacheKey); leg != nil {
		return leg, nil
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("origin", args.Origin)
	q.Set("destination", args.Destination)
	q.Set("mode", args.Mode)

	var raw struct {
		Status string `json:"status"`
		Routes []struct {
			Legs []struct {
				Distance struct {
					Value int `json:"value"`
				} `json:"distance"`
				Duration struct {
					Value int `json:"value"`
				} `json:"duration"`
			} `json:"legs"`
		} `json:"routes"`
	}
	if err := c.getJSON(ctx, "/directions/json", q, &raw); err != nil {
		return nil, err
	}
	if len(raw.Routes) == 0 || len(raw.Routes[0].Legs) == 0 {
		return nil, nil
	}

	leg := &chat.RouteLeg{
		DistanceMeters:  raw.Routes[0].Legs[0].Distance.Value,
		DurationSeconds: raw.Routes[0].Legs[0].Duration.Value,
	}
	c.storeLeg(ctx, cacheKey, leg)
	return leg, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) cachedLeg(ctx context.Context, key string) *chat.RouteLeg {
	if c.cache == nil {
		return nil
	}
	data, err := c.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var leg chat.RouteLeg
	if err := json.Unmarshal(data, &leg); err != nil {
		return nil
	}
	return &leg
}

func (c *Client) storeLeg(ctx context.Context, key string, leg *chat.RouteLeg) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(leg)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Printf("cache write failed for %s: %v", key, err)
	}
}
