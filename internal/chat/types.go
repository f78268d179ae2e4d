package chat

import (
	"encoding/json"
	"time"
)

// Turn roles as sent to the completion API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Turn is one message in the conversation log. Content is kept loose (any
// JSON value) because tool results and client-supplied history can carry
// structured payloads; Sanitize coerces it to a string right before a
// completion call.
type Turn struct {
	Role       string     `json:"role"`
	Content    any        `json:"content"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	ToolName   string     `json:"toolName,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
}

// Text returns the turn content as a string, empty for non-string payloads.
func (t Turn) Text() string {
	s, _ := t.Content.(string)
	return s
}

// ToolCall is a tool invocation requested by the model inside an assistant
// turn. Arguments stay raw until dispatch parses them per tool name.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Coordinates is a WGS84 lat/lng pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TravelLeg describes the segment from the previous stop (or the user's
// origin) to a stop.
type TravelLeg struct {
	DistanceMeters  int `json:"distanceMeters"`
	DurationMinutes int `json:"durationMinutes"`
}

// Complete reports whether the leg has been populated. Presence is what
// counts: a zero-length leg between two stops at the same point is a valid
// answer and must not be re-queried.
func (l *TravelLeg) Complete() bool {
	return l != nil
}

// LocationDetails carries the optional descriptive fields of a stop.
type LocationDetails struct {
	OpeningHours string `json:"openingHours,omitempty"`
	PriceRange   string `json:"priceRange,omitempty"`
	Rating       any    `json:"rating,omitempty"` // numeric or string, model-dependent
	Website      string `json:"website,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// LocationAddress is the where of a stop. Coordinates are optional; the
// augmenter prefers them over the address when building directions queries.
type LocationAddress struct {
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Location is one itinerary stop extracted from model output. Only the
// augmenter mutates it after extraction, and only to fill Travel.
type Location struct {
	Name              string           `json:"name"`
	Type              string           `json:"type"`
	Location          LocationAddress  `json:"location"`
	Details           *LocationDetails `json:"details,omitempty"`
	Highlights        []string         `json:"highlights,omitempty"`
	Tips              []string         `json:"tips,omitempty"`
	BestTimeToVisit   string           `json:"bestTimeToVisit,omitempty"`
	NearbyAttractions []string         `json:"nearbyAttractions,omitempty"`
	Travel            *TravelLeg       `json:"travel,omitempty"`
}

// Metadata summarizes one orchestration run for the response payload.
type Metadata struct {
	TotalLocations int    `json:"totalLocations"`
	TotalErrors    int    `json:"totalErrors"`
	Timestamp      string `json:"timestamp"`
	Iterations     int    `json:"iterations,omitempty"`
	ToolCalls      int    `json:"toolCalls,omitempty"`
}

// Result is what Run hands back to the HTTP layer.
type Result struct {
	Reply     string     `json:"reply"`
	Locations []Location `json:"locations"`
	Metadata  Metadata   `json:"metadata"`
}

func nowTimestamp() string { return time.Now().UTC().Format(time.RFC3339) }
