package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/wanderrhodes/wander/internal/chat"
)

type scriptedLLM struct {
	script []chat.Completion
	err    error
	calls  int
}

func (s *scriptedLLM) Complete(ctx context.Context, turns []chat.Turn, tools []chat.ToolSchema) (chat.Completion, error) {
	s.calls++
	if s.err != nil {
		return chat.Completion{}, s.err
	}
	step := s.calls - 1
	if step >= len(s.script) {
		step = len(s.script) - 1
	}
	return s.script[step], nil
}

type noopTools struct{}

func (noopTools) FindNearbyPlaces(ctx context.Context, args chat.PlacesArgs) ([]chat.Place, error) {
	return nil, nil
}

func (noopTools) EstimateTravel(ctx context.Context, args chat.TravelArgs) (*chat.RouteLeg, error) {
	return nil, nil
}

func newChatHandler(llm chat.CompletionClient) *ChatHandler {
	logger := log.New(io.Discard, "", 0)
	orch := chat.NewOrchestrator(llm, noopTools{}, logger, chat.Options{Region: "Rhodes Island, Greece"})
	return &ChatHandler{Orch: orch, Logger: logger}
}

func doChat(t *testing.T, h *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.handle(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestChatHandlerReturnsItinerary(t *testing.T) {
	reply := "Start at the acropolis. " +
		`{"name":"Acropolis of Lindos","type":"attraction","location":{"address":"Lindos 851 07"}}` +
		" Then the beach."
	h := newChatHandler(&scriptedLLM{script: []chat.Completion{{Content: reply}}})

	rec := doChat(t, h, `{"prompt":"Plan a day in Lindos","history":[]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.StructuredData.Locations) != 1 {
		t.Fatalf("expected 1 location, got %d", len(resp.StructuredData.Locations))
	}
	if !strings.Contains(resp.Reply, chat.Placeholder) {
		t.Fatalf("reply should carry the placeholder, got %q", resp.Reply)
	}
	if resp.StructuredData.Metadata.TotalLocations != 1 {
		t.Fatalf("metadata wrong: %+v", resp.StructuredData.Metadata)
	}
}

func TestChatHandlerAcceptsMixedHistoryContent(t *testing.T) {
	reply := `{"name":"Mavrikos","type":"restaurant","location":{"address":"Lindos main square"}}`
	llm := &scriptedLLM{script: []chat.Completion{{Content: "Lunch sorted. " + reply}}}
	h := newChatHandler(llm)

	body := `{"prompt":"and lunch?","history":[{"role":"assistant","content":{"blocks":["earlier plan"]}}]}`
	rec := doChat(t, h, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChatHandlerRequiresPrompt(t *testing.T) {
	h := newChatHandler(&scriptedLLM{})

	rec := doChat(t, h, `{"prompt":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatHandlerRejectsBadBody(t *testing.T) {
	h := newChatHandler(&scriptedLLM{})

	rec := doChat(t, h, `{"prompt": `)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatHandlerProviderErrorIs502(t *testing.T) {
	h := newChatHandler(&scriptedLLM{err: errors.New("connection reset")})

	rec := doChat(t, h, `{"prompt":"plan"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "unavailable") {
		t.Fatalf("body should not leak the raw provider error: %s", rec.Body.String())
	}
}

func TestMapRunErrorHidesInternalDetail(t *testing.T) {
	h := newChatHandler(&scriptedLLM{})

	he := h.mapRunError("req-1", errors.New("redis: connection pool exhausted"))
	if he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unclassified errors, got %d", he.Code)
	}
	msg := fmt.Sprint(he.Message)
	if msg != "internal error" {
		t.Fatalf("client message must stay generic, got %q", msg)
	}

	he = h.mapRunError("req-2", &chat.ProviderError{Err: errors.New("rate limited")})
	if he.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for provider errors, got %d", he.Code)
	}
	if strings.Contains(fmt.Sprint(he.Message), "rate limited") {
		t.Fatalf("provider detail leaked: %v", he.Message)
	}
}

func TestChatHandlerNoAnswerIs502(t *testing.T) {
	// Only tool calls, never a text reply.
	h := newChatHandler(&scriptedLLM{script: []chat.Completion{
		{ToolCalls: []chat.ToolCall{{ID: "c1", Name: chat.ToolFindNearbyPlaces, Arguments: json.RawMessage(`{"lat":1,"lng":2}`)}}},
	}})

	rec := doChat(t, h, `{"prompt":"plan"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}
