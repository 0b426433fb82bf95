package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a backend answered the transport
// call but produced no text. Callers must be able to tell this apart
// from a transport failure; an empty completion and an unreachable
// backend call for different handling.
var ErrEmptyResponse = errors.New("empty model response")

// CallError wraps a transport-level failure (connection refused,
// timeout, non-2xx status) from a specific backend.
type CallError struct {
	Backend string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Backend, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Client defines the standard interface for any LLM backend.
//
// Chat sends one system-instruction + user-content pair and returns the
// completion text. Implementations must respect ctx cancellation and
// return *CallError for transport failures and ErrEmptyResponse for
// blank completions.
type Client interface {
	Chat(ctx context.Context, system, user string, temperature float32) (string, error)
}
