package chat

import (
	"errors"
	"fmt"
)

// ErrNoAssistantResponse means the loop exhausted its iteration budget
// without the model ever producing plain assistant content.
var ErrNoAssistantResponse = errors.New("no assistant response produced")

// ProviderError wraps a failed completion call. The orchestrator never
// retries these; the HTTP layer maps them to a 502.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// toolFailure marks a tool call that could not be executed. It is recovered
// locally: the model sees a JSON null result and the loop continues.
type toolFailure struct {
	tool string
	err  error
}

func (e *toolFailure) Error() string {
	return fmt.Sprintf("tool %s: %v", e.tool, e.err)
}

func (e *toolFailure) Unwrap() error { return e.err }
