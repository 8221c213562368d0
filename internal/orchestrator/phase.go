package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/conclave-run/conclave/internal/agentrun"
	"github.com/conclave-run/conclave/internal/config"
	"github.com/conclave-run/conclave/internal/debatelog"
	"github.com/conclave-run/conclave/internal/promptkit"
)

// DefaultResponseThreshold is used when a RunConfig leaves the field zero.
const DefaultResponseThreshold = 0.8

// PerAgentResult is one agent's outcome from a single phase fan-out
// (spec.md §4.5's `[perAgentResult]`).
type PerAgentResult struct {
	AgentID    string
	ParsedJSON string
	Err        error
}

// OK reports whether this agent produced a usable, parsed response.
func (r PerAgentResult) OK() bool {
	return r.Err == nil
}

// ContextBuilder produces the promptkit.Context for one agent in a phase.
// Critique and revision phases exclude the agent's own proposal from its
// own context (spec.md §4.5) — callers supply a builder closure that
// already does this per-agent exclusion rather than Phase taking on that
// domain knowledge itself.
type ContextBuilder func(agent config.AgentDescriptor) promptkit.Context

// Phase is the Phase Executor (spec.md §4.5): builds one prompt per agent
// (via ContextBuilder), dispatches one concurrent call per agent through
// the Retry Policy, and waits for every call to settle before returning —
// no phase-level early exit (spec.md §5: "the phase barrier is strict").
//
// Grounded on gates.go's Runner.RunAll fan-out-with-heartbeat shape,
// generalized to per-agent goroutines bounded by a weighted semaphore
// (domain-stack wiring of golang.org/x/sync/semaphore) instead of gates.go's
// sequential loop, since phase agents are independent and unordered
// (spec.md §5).
func Phase(
	ctx context.Context,
	token *agentrun.CancelToken,
	registry *agentrun.Registry,
	maxConcurrent int,
	agents []config.AgentDescriptor,
	template string,
	buildCtx ContextBuilder,
	timeout time.Duration,
	phaseName string,
	responseThreshold float64,
	logger debatelog.Logger,
) ([]PerAgentResult, error) {
	if responseThreshold <= 0 {
		responseThreshold = DefaultResponseThreshold
	}

	results := make([]PerAgentResult, len(agents))
	var wg sync.WaitGroup

	var sem *semaphore.Weighted
	if maxConcurrent > 0 {
		sem = semaphore.NewWeighted(int64(maxConcurrent))
	}

	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent config.AgentDescriptor) {
			defer wg.Done()

			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					results[i] = PerAgentResult{AgentID: agent.ID, Err: agentrun.ErrInterrupted}
					return
				}
				defer sem.Release(1)
			}

			prompt := promptkit.Build(template, buildCtx(agent))
			call, err := agentrun.Call(ctx, token, registry, agent, prompt, timeout)
			if err != nil {
				if logger != nil {
					logger.Line(agent.ID, phaseName, err.Error(), true)
				}
				results[i] = PerAgentResult{AgentID: agent.ID, Err: err}
				return
			}
			results[i] = PerAgentResult{AgentID: agent.ID, ParsedJSON: call.ParsedJSON}
		}(i, agent)
	}

	wg.Wait()

	successful := 0
	for _, r := range results {
		if r.OK() {
			successful++
		}
	}
	if successful == 0 {
		return results, agentrun.ErrPhaseStarvation
	}

	rate := float64(successful) / float64(len(results))
	if rate < responseThreshold && logger != nil {
		logger.Line("", phaseName, "response rate below threshold", false)
	}

	return results, nil
}

// Successful filters results down to the agents that returned a usable
// response, preserving input order.
func Successful(results []PerAgentResult) []PerAgentResult {
	out := make([]PerAgentResult, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}
