package agentrun

import "errors"

// Error taxonomy (spec.md §7). Each is a distinct sentinel so callers can
// classify a failure with errors.Is without inspecting strings.
var (
	// ErrSpawnFailure means the executable was missing or inaccessible.
	// Never retried (spec.md §4.3, §7).
	ErrSpawnFailure = errors.New("agentrun: spawn failure")

	// ErrTimeout means the call exceeded its effective timeout. Retried.
	ErrTimeout = errors.New("agentrun: timeout")

	// ErrNonzeroExit means the process exited with a nonzero code, or
	// produced no usable stdout. Retried.
	ErrNonzeroExit = errors.New("agentrun: nonzero exit")

	// ErrParseFailure means stdout could not be reduced to decodable
	// JSON. Retried; the agent is marked errored on final failure.
	ErrParseFailure = errors.New("agentrun: parse failure")

	// ErrInterrupted means cancellation was observed before or during the
	// call. Not an error to the user — it surfaces as a terminal state
	// (spec.md §7).
	ErrInterrupted = errors.New("agentrun: interrupted")

	// ErrPhaseStarvation means zero agents returned a successful, parseable
	// response in a phase. Round-0 starvation is fatal; later phases may
	// proceed on the last known state (spec.md §7).
	ErrPhaseStarvation = errors.New("agentrun: phase starvation")
)
