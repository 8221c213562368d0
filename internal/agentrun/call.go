package agentrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/conclave-run/conclave/internal/config"
	"github.com/conclave-run/conclave/internal/parserkit"
)

// maxAttempts is the retry ceiling (spec.md §4.3: "at most 3 attempts
// total").
const maxAttempts = 3

// backoffUnit is the linear-backoff step: attempt N sleeps N*backoffUnit
// before attempt N+1 (spec.md §4.3).
const backoffUnit = 1 * time.Second

// CallResult is the outcome of Call: a raw Invoke Result plus the text the
// parser registry reduced its stdout to, ready for strict JSON decoding by
// the orchestrator.
type CallResult struct {
	Result
	ParsedJSON string
	Attempts   int
}

// Call composes the Agent Runner (Invoke) with the Output Parser Registry
// and the Retry Policy (spec.md §4.1, §4.2, §4.3): invoke, parse, and on a
// retryable failure sleep a linearly-growing backoff before trying again,
// up to maxAttempts. ErrSpawnFailure and cancellation are never retried
// (spec.md §4.3: "a missing executable is a configuration error, not a
// transient one").
//
// Grounded on retry.go's linear-backoff attempt loop, with the sleep
// rebuilt on a rate.Limiter reservation (rather than a bare time.Sleep) so
// the wait can be cut short by cancellation — the same pattern
// control/server.go uses to make a blocking wait interruptible.
func Call(ctx context.Context, token *CancelToken, registry *Registry, agent config.AgentDescriptor, prompt string, callerTimeout time.Duration) (CallResult, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if token != nil && token.Cancelled() {
			return CallResult{Result: Result{Interrupted: true}, Attempts: attempt}, ErrInterrupted
		}

		res, err := Invoke(ctx, token, registry, agent, prompt, callerTimeout)
		if err != nil {
			if errors.Is(err, ErrSpawnFailure) || errors.Is(err, ErrInterrupted) {
				return CallResult{Result: res, Attempts: attempt}, err
			}
			lastErr = err
			if attempt < maxAttempts {
				if waitErr := sleepBackoff(ctx, token, attempt); waitErr != nil {
					return CallResult{Result: res, Attempts: attempt}, waitErr
				}
				continue
			}
			return CallResult{Result: res, Attempts: attempt}, lastErr
		}

		parsed := parserkit.Parse(parserkit.Name(agent.ResponseParser), res.Stdout)
		if !isDecodableJSON(parsed) {
			lastErr = fmt.Errorf("%w: agent %s produced undecodable output", ErrParseFailure, agent.ID)
			if attempt < maxAttempts {
				if waitErr := sleepBackoff(ctx, token, attempt); waitErr != nil {
					return CallResult{Result: res, Attempts: attempt}, waitErr
				}
				continue
			}
			return CallResult{Result: res, Attempts: attempt}, lastErr
		}

		return CallResult{Result: res, ParsedJSON: parsed, Attempts: attempt}, nil
	}

	return CallResult{}, lastErr
}

// sleepBackoff waits attempt*backoffUnit, returning early with
// ErrInterrupted if the token is cancelled or the context is done first.
func sleepBackoff(ctx context.Context, token *CancelToken, attempt int) error {
	limiter := rate.NewLimiter(rate.Every(time.Duration(attempt)*backoffUnit), 1)
	now := time.Now()
	// A new limiter starts with a full bucket; spend that token first so
	// the reservation below waits one full interval.
	limiter.AllowN(now, 1)
	reservation := limiter.ReserveN(now, 1)
	defer reservation.Cancel()

	timer := time.NewTimer(reservation.Delay())
	defer timer.Stop()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ErrInterrupted
		case <-ticker.C:
			if token != nil && token.Cancelled() {
				return ErrInterrupted
			}
		}
	}
}

func isDecodableJSON(s string) bool {
	return parserkit.ValidJSON(s)
}
