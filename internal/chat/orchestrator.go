package chat

import (
	"context"
	"log"
	"strings"
	"time"
)

// ContextRetriever supplies background snippets about the region for the
// optional second system turn. Implementations are best-effort; retrieval
// errors never fail a chat request.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

// Options tune one orchestrator instance.
type Options struct {
	Region        string        // destination the assistant plans for
	MaxIterations int           // hard bound on completion calls per request
	ToolTimeout   time.Duration // per tool / directions call
	RetrievalTopK int           // snippets injected as context
	StripInvalid  bool          // also strip malformed fragments from replies
}

const (
	defaultMaxIterations = 5
	defaultToolTimeout   = 10 * time.Second
	defaultRetrievalTopK = 3
)

// Orchestrator owns the tool-augmented conversation loop for the lifetime
// of one request. The turn log is append-only and never shared outside the
// running request.
type Orchestrator struct {
	llm       CompletionClient
	tools     ToolProvider
	retriever ContextRetriever
	logger    *log.Logger

	region        string
	maxIterations int
	toolTimeout   time.Duration
	retrievalTopK int
	extractOpts   ExtractOptions
}

// NewOrchestrator wires the loop with its collaborators. Unset options fall
// back to safe defaults; the iteration bound is always finite.
func NewOrchestrator(llm CompletionClient, tools ToolProvider, logger *log.Logger, opts Options) *Orchestrator {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = defaultToolTimeout
	}
	if opts.RetrievalTopK <= 0 {
		opts.RetrievalTopK = defaultRetrievalTopK
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	return &Orchestrator{
		llm:           llm,
		tools:         tools,
		logger:        logger,
		region:        opts.Region,
		maxIterations: opts.MaxIterations,
		toolTimeout:   opts.ToolTimeout,
		retrievalTopK: opts.RetrievalTopK,
		extractOpts:   ExtractOptions{StripInvalid: opts.StripInvalid},
	}
}

// AttachRetriever wires knowledge-base retrieval into the conversation
// setup. Optional.
func (o *Orchestrator) AttachRetriever(r ContextRetriever) {
	o.retriever = r
}

// Run drives the conversation loop for one request: assemble context, call
// the model until it stops asking questions and produces locations (or the
// iteration budget runs out), then extract and augment the itinerary.
func (o *Orchestrator) Run(ctx context.Context, history []Turn, prompt string, userLocation *Coordinates) (Result, error) {
	turns := o.assembleTurns(ctx, history, prompt)

	iterations := 0
	toolCalls := 0
	for iterations < o.maxIterations {
		iterations++

		completion, err := o.llm.Complete(ctx, Sanitize(turns), toolSchemas())
		if err != nil {
			return Result{}, &ProviderError{Err: err}
		}

		if len(completion.ToolCalls) > 0 {
			turns = append(turns, Turn{
				Role:      RoleAssistant,
				Content:   completion.Content,
				ToolCalls: completion.ToolCalls,
			})
			turns = append(turns, o.runToolCalls(ctx, completion.ToolCalls)...)
			toolCalls += len(completion.ToolCalls)
			continue
		}

		turns = append(turns, Turn{Role: RoleAssistant, Content: completion.Content})

		ext := ExtractWithOptions(completion.Content, o.extractOpts)
		if len(ext.Locations) > 0 && !strings.Contains(completion.Content, "?") {
			break
		}
		// Still clarifying or no structured stops yet: push the model to
		// commit to an answer and spend another iteration.
		turns = append(turns, Turn{Role: RoleUser, Content: proceedNudge})
	}

	reply, ok := lastAssistantText(turns)
	if !ok {
		return Result{}, ErrNoAssistantResponse
	}

	ext := ExtractWithOptions(reply, o.extractOpts)
	o.Augment(ctx, ext.Locations, userLocation)

	locations := ext.Locations
	if locations == nil {
		locations = []Location{}
	}
	return Result{
		Reply:     ext.CleanedText,
		Locations: locations,
		Metadata: Metadata{
			TotalLocations: len(locations),
			TotalErrors:    ext.ErrorCount,
			Timestamp:      nowTimestamp(),
			Iterations:     iterations,
			ToolCalls:      toolCalls,
		},
	}, nil
}

// assembleTurns builds the opening turn sequence: policy, optional
// retrieved context, prior history, new user prompt.
func (o *Orchestrator) assembleTurns(ctx context.Context, history []Turn, prompt string) []Turn {
	turns := make([]Turn, 0, len(history)+3)
	turns = append(turns, Turn{Role: RoleSystem, Content: systemPolicy(o.region)})
	if o.retriever != nil {
		snippets, err := o.retriever.Retrieve(ctx, prompt, o.retrievalTopK)
		if err != nil {
			o.logger.Printf("context retrieval failed: %v", err)
		} else if len(snippets) > 0 {
			turns = append(turns, Turn{
				Role:    RoleSystem,
				Content: "Context:\n" + strings.Join(snippets, "\n---\n"),
			})
		}
	}
	turns = append(turns, history...)
	turns = append(turns, Turn{Role: RoleUser, Content: prompt})
	return turns
}

func lastAssistantText(turns []Turn) (string, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleAssistant {
			if s := turns[i].Text(); s != "" {
				return s, true
			}
		}
	}
	return "", false
}
