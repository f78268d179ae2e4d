package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// fakeLLM replays a scripted sequence of completions and records every
// turn sequence it was called with.
type fakeLLM struct {
	script []Completion
	err    error
	calls  [][]Turn
}

func (f *fakeLLM) Complete(ctx context.Context, turns []Turn, tools []ToolSchema) (Completion, error) {
	f.calls = append(f.calls, turns)
	if f.err != nil {
		return Completion{}, f.err
	}
	step := len(f.calls) - 1
	if step >= len(f.script) {
		step = len(f.script) - 1
	}
	return f.script[step], nil
}

const finalTwoStops = "Here is your day. " +
	`{"name":"Acropolis of Lindos","type":"attraction","location":{"address":"Lindos 851 07","coordinates":{"lat":36.0917,"lng":28.0869}}}` +
	" Then walk down for lunch. " +
	`{"name":"Mavrikos","type":"restaurant","location":{"address":"Lindos main square","coordinates":{"lat":36.0911,"lng":28.0853}}}` +
	" Enjoy."

func TestRunEndToEndWithToolCall(t *testing.T) {
	llm := &fakeLLM{script: []Completion{
		{ToolCalls: []ToolCall{{
			ID:        "call_1",
			Name:      ToolFindNearbyPlaces,
			Arguments: json.RawMessage(`{"lat":36.09,"lng":28.09}`),
		}}},
		{Content: finalTwoStops},
	}}
	tools := &fakeTools{
		places: []Place{
			{Name: "Acropolis of Lindos", Address: "Lindos 851 07"},
			{Name: "Mavrikos", Address: "Lindos main square"},
		},
		legs: map[string]*RouteLeg{},
	}
	o := newTestOrchestrator(llm, tools)

	res, err := o.Run(context.Background(), nil, "Plan a day in Lindos", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Locations) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(res.Locations))
	}
	if res.Metadata.TotalErrors != 0 {
		t.Fatalf("expected 0 errors, got %d", res.Metadata.TotalErrors)
	}
	if got := strings.Count(res.Reply, Placeholder); got != 2 {
		t.Fatalf("expected 2 placeholders in reply, got %d: %q", got, res.Reply)
	}
	if res.Metadata.ToolCalls != 1 || res.Metadata.Iterations != 2 {
		t.Fatalf("unexpected metadata: %+v", res.Metadata)
	}

	// Defaults were applied before the provider saw the call.
	if len(tools.placeCalls) != 1 {
		t.Fatalf("expected 1 places lookup, got %d", len(tools.placeCalls))
	}
	if tools.placeCalls[0].Radius != 500 || tools.placeCalls[0].Type != "restaurant" {
		t.Fatalf("defaults not applied: %+v", tools.placeCalls[0])
	}

	// The second completion call must see the assistant tool-call turn
	// followed by a matching tool result turn.
	second := llm.calls[1]
	last := second[len(second)-1]
	if last.Role != RoleTool || last.ToolCallID != "call_1" || last.ToolName != ToolFindNearbyPlaces {
		t.Fatalf("tool result turn wrong: %+v", last)
	}
	if !strings.Contains(last.Text(), "Acropolis of Lindos") {
		t.Fatalf("tool result not serialized into content: %q", last.Text())
	}
	assistant := second[len(second)-2]
	if assistant.Role != RoleAssistant || len(assistant.ToolCalls) != 1 {
		t.Fatalf("assistant tool-call turn missing: %+v", assistant)
	}
}

func TestRunToolResultsMatchRequestOrder(t *testing.T) {
	calls := []ToolCall{
		{ID: "c1", Name: ToolEstimateTravel, Arguments: json.RawMessage(`{"origin":"A","destination":"B"}`)},
		{ID: "c2", Name: ToolFindNearbyPlaces, Arguments: json.RawMessage(`{"lat":1,"lng":2}`)},
		{ID: "c3", Name: ToolEstimateTravel, Arguments: json.RawMessage(`{"origin":"B","destination":"C"}`)},
	}
	llm := &fakeLLM{script: []Completion{
		{ToolCalls: calls},
		{Content: finalTwoStops},
	}}
	tools := &fakeTools{legs: map[string]*RouteLeg{
		"A->B": {DistanceMeters: 1, DurationSeconds: 60},
		"B->C": {DistanceMeters: 2, DurationSeconds: 120},
	}}
	o := newTestOrchestrator(llm, tools)

	if _, err := o.Run(context.Background(), nil, "plan", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	second := llm.calls[1]
	results := second[len(second)-3:]
	for i, want := range []string{"c1", "c2", "c3"} {
		if results[i].Role != RoleTool || results[i].ToolCallID != want {
			t.Fatalf("result %d out of order: %+v", i, results[i])
		}
	}
	if results[0].ToolName != ToolEstimateTravel || results[1].ToolName != ToolFindNearbyPlaces {
		t.Fatalf("tool names do not match request order: %+v", results)
	}
}

func TestRunNudgesPastClarifyingQuestions(t *testing.T) {
	llm := &fakeLLM{script: []Completion{
		{Content: "Where on the island are you staying?"},
		{Content: finalTwoStops},
	}}
	o := newTestOrchestrator(llm, &fakeTools{})

	res, err := o.Run(context.Background(), nil, "plan my trip", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Locations) != 2 {
		t.Fatalf("expected final itinerary after nudge, got %d locations", len(res.Locations))
	}

	second := llm.calls[1]
	nudge := second[len(second)-1]
	if nudge.Role != RoleUser || !strings.Contains(nudge.Text(), "Do not ask any further questions") {
		t.Fatalf("synthetic nudge turn missing: %+v", nudge)
	}
}

func TestRunLocationsWithQuestionStillContinues(t *testing.T) {
	withQuestion := finalTwoStops + " Shall I book anything?"
	llm := &fakeLLM{script: []Completion{
		{Content: withQuestion},
		{Content: finalTwoStops},
	}}
	o := newTestOrchestrator(llm, &fakeTools{})

	res, err := o.Run(context.Background(), nil, "plan", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Metadata.Iterations != 2 {
		t.Fatalf("a reply containing '?' must not terminate the loop: %+v", res.Metadata)
	}
	if strings.Contains(res.Reply, "Shall I book") {
		t.Fatalf("reply should come from the clean final turn")
	}
}

func TestRunTerminatesAtIterationBound(t *testing.T) {
	llm := &fakeLLM{script: []Completion{
		{Content: "What dates are you visiting?"},
	}}
	o := newTestOrchestrator(llm, &fakeTools{})

	res, err := o.Run(context.Background(), nil, "plan", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(llm.calls) != defaultMaxIterations {
		t.Fatalf("expected exactly %d completion calls, got %d", defaultMaxIterations, len(llm.calls))
	}
	// Best effort: the last assistant text is still returned.
	if !strings.Contains(res.Reply, "What dates") {
		t.Fatalf("expected last assistant content as reply, got %q", res.Reply)
	}
	if res.Metadata.TotalLocations != 0 {
		t.Fatalf("no locations expected, got %d", res.Metadata.TotalLocations)
	}
}

func TestRunNoAssistantResponse(t *testing.T) {
	// The model misbehaves and only ever requests tools.
	llm := &fakeLLM{script: []Completion{
		{ToolCalls: []ToolCall{{ID: "c1", Name: ToolFindNearbyPlaces, Arguments: json.RawMessage(`{"lat":1,"lng":2}`)}}},
	}}
	o := newTestOrchestrator(llm, &fakeTools{})

	_, err := o.Run(context.Background(), nil, "plan", nil)
	if !errors.Is(err, ErrNoAssistantResponse) {
		t.Fatalf("expected ErrNoAssistantResponse, got %v", err)
	}
	if len(llm.calls) != defaultMaxIterations {
		t.Fatalf("loop must still be bounded, got %d calls", len(llm.calls))
	}
}

func TestRunProviderErrorAborts(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}
	o := newTestOrchestrator(llm, &fakeTools{})

	_, err := o.Run(context.Background(), nil, "plan", nil)
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if len(llm.calls) != 1 {
		t.Fatalf("provider errors must not be retried by the loop, got %d calls", len(llm.calls))
	}
}

func TestRunUnknownToolFeedsNullResult(t *testing.T) {
	llm := &fakeLLM{script: []Completion{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "launchRocket", Arguments: json.RawMessage(`{}`)}}},
		{Content: finalTwoStops},
	}}
	o := newTestOrchestrator(llm, &fakeTools{})

	if _, err := o.Run(context.Background(), nil, "plan", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	second := llm.calls[1]
	result := second[len(second)-1]
	if result.Role != RoleTool || result.Text() != "null" {
		t.Fatalf("unknown tool must yield a null result, got %+v", result)
	}
}

func TestRunInjectsRetrievedContext(t *testing.T) {
	llm := &fakeLLM{script: []Completion{{Content: finalTwoStops}}}
	o := newTestOrchestrator(llm, &fakeTools{})
	o.AttachRetriever(retrieverFunc(func(ctx context.Context, q string, k int) ([]string, error) {
		return []string{"Lindos is busiest before noon.", "The acropolis closes at 18:00."}, nil
	}))

	if _, err := o.Run(context.Background(), nil, "Plan a day in Lindos", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	first := llm.calls[0]
	if len(first) < 3 {
		t.Fatalf("expected policy, context and user turns, got %d", len(first))
	}
	ctxTurn := first[1]
	if ctxTurn.Role != RoleSystem || !strings.HasPrefix(ctxTurn.Text(), "Context:\n") {
		t.Fatalf("context turn missing: %+v", ctxTurn)
	}
	if !strings.Contains(ctxTurn.Text(), "busiest before noon") {
		t.Fatalf("snippets not joined into context: %q", ctxTurn.Text())
	}
}

func TestRunRetrievalFailureIsNonFatal(t *testing.T) {
	llm := &fakeLLM{script: []Completion{{Content: finalTwoStops}}}
	o := newTestOrchestrator(llm, &fakeTools{})
	o.AttachRetriever(retrieverFunc(func(ctx context.Context, q string, k int) ([]string, error) {
		return nil, errors.New("index offline")
	}))

	if _, err := o.Run(context.Background(), nil, "plan", nil); err != nil {
		t.Fatalf("retrieval failure must not fail the request: %v", err)
	}
}

func TestRunAugmentsWithUserOrigin(t *testing.T) {
	origin := Coordinates{Lat: 36.43, Lng: 28.22}
	llm := &fakeLLM{script: []Completion{{Content: finalTwoStops}}}
	tools := &fakeTools{legs: map[string]*RouteLeg{
		legKey(origin, Coordinates{Lat: 36.0917, Lng: 28.0869}):                            {DistanceMeters: 48000, DurationSeconds: 3600},
		legKey(Coordinates{Lat: 36.0917, Lng: 28.0869}, Coordinates{Lat: 36.0911, Lng: 28.0853}): {DistanceMeters: 300, DurationSeconds: 240},
	}}
	o := newTestOrchestrator(llm, tools)

	res, err := o.Run(context.Background(), nil, "plan", &origin)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Locations[0].Travel == nil || res.Locations[0].Travel.DistanceMeters != 48000 {
		t.Fatalf("origin leg not filled: %+v", res.Locations[0].Travel)
	}
	if res.Locations[1].Travel == nil || res.Locations[1].Travel.DurationMinutes != 4 {
		t.Fatalf("inter-stop leg not filled: %+v", res.Locations[1].Travel)
	}
}

func TestRunSanitizesHistory(t *testing.T) {
	llm := &fakeLLM{script: []Completion{{Content: finalTwoStops}}}
	o := newTestOrchestrator(llm, &fakeTools{})

	history := []Turn{{Role: RoleAssistant, Content: nil}}
	if _, err := o.Run(context.Background(), history, "plan", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, turn := range llm.calls[0] {
		if _, ok := turn.Content.(string); !ok {
			t.Fatalf("turn reached the provider with non-string content: %+v", turn)
		}
	}
}

// retrieverFunc adapts a function to the ContextRetriever interface.
type retrieverFunc func(ctx context.Context, query string, k int) ([]string, error)

func (f retrieverFunc) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	return f(ctx, query, k)
}
