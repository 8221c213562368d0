package agentrun

import "sync/atomic"

// CancelToken is the first-class cancellation token threaded through the
// orchestrator (SPEC_FULL.md Design Notes: "prefer a first-class
// cancellation token... rather than an ambient boolean"). It is grounded on
// executor_interrupt.go's InterruptManager, generalized from an ambient
// executor-struct field into an injectable value shared by every component
// that needs to observe cancellation (spec.md §5).
type CancelToken struct {
	cancelled atomic.Bool
}

// NewCancelToken returns a token in the non-cancelled state.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel marks the token cancelled. Safe to call more than once.
func (t *CancelToken) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	return t.cancelled.Load()
}
