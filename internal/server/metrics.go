package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wanderrhodes/wander/internal/chat"
)

var (
	chatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wander_chat_requests_total",
		Help: "Chat requests by outcome.",
	}, []string{"status"})

	chatDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wander_chat_duration_seconds",
		Help:    "End-to-end chat request duration.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	orchestratorIterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wander_orchestrator_iterations_total",
		Help: "Completion calls made by the conversation loop.",
	})

	toolCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wander_tool_calls_total",
		Help: "Tool calls requested by the model.",
	})

	extractionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wander_extraction_errors_total",
		Help: "Malformed or invalid location fragments in model replies.",
	})
)

func observeChat(status string, d time.Duration) {
	chatRequests.WithLabelValues(status).Inc()
	chatDuration.Observe(d.Seconds())
}

func observeRun(m chat.Metadata) {
	orchestratorIterations.Add(float64(m.Iterations))
	toolCalls.Add(float64(m.ToolCalls))
	extractionErrors.Add(float64(m.TotalErrors))
}
