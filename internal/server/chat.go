package server

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wanderrhodes/wander/internal/chat"
)

// ChatRequest is the POST /api/chat body. History content is accepted as
// any JSON value; the sanitizer normalizes it before the model sees it.
type ChatRequest struct {
	History      []chat.Turn       `json:"history"`
	Prompt       string            `json:"prompt"`
	UserLocation *chat.Coordinates `json:"userLocation,omitempty"`
}

// ChatResponse is the wire shape the UI consumes: cleaned prose plus the
// structured itinerary.
type ChatResponse struct {
	Reply          string         `json:"reply"`
	StructuredData StructuredData `json:"structuredData"`
}

type StructuredData struct {
	Locations []chat.Location `json:"locations"`
	Metadata  chat.Metadata   `json:"metadata"`
}

// ChatHandler serves the conversational endpoint.
type ChatHandler struct {
	Orch   *chat.Orchestrator
	Logger *log.Logger
}

func (h *ChatHandler) handle(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	requestID := uuid.NewString()
	c.Response().Header().Set("X-Request-ID", requestID)
	start := time.Now()

	result, err := h.Orch.Run(c.Request().Context(), req.History, req.Prompt, req.UserLocation)
	if err != nil {
		observeChat("error", time.Since(start))
		return h.mapRunError(requestID, err)
	}

	observeChat("ok", time.Since(start))
	observeRun(result.Metadata)
	h.Logger.Printf("request %s: %d locations, %d errors, %d iterations in %v",
		requestID, result.Metadata.TotalLocations, result.Metadata.TotalErrors,
		result.Metadata.Iterations, time.Since(start))

	return c.JSON(http.StatusOK, ChatResponse{
		Reply: result.Reply,
		StructuredData: StructuredData{
			Locations: result.Locations,
			Metadata:  result.Metadata,
		},
	})
}

// mapRunError translates orchestrator failures into safe client responses.
// The real error goes to the log; the body never carries internal detail.
func (h *ChatHandler) mapRunError(requestID string, err error) *echo.HTTPError {
	var provErr *chat.ProviderError
	switch {
	case errors.As(err, &provErr):
		h.Logger.Printf("request %s: provider error: %v", requestID, err)
		return echo.NewHTTPError(http.StatusBadGateway, "assistant is unavailable, please try again")
	case errors.Is(err, chat.ErrNoAssistantResponse):
		h.Logger.Printf("request %s: no assistant response", requestID)
		return echo.NewHTTPError(http.StatusBadGateway, "assistant produced no answer")
	default:
		h.Logger.Printf("request %s: %v", requestID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
