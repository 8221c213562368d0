package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/conclave-run/conclave/internal/agentrun"
	"github.com/conclave-run/conclave/internal/config"
	"github.com/conclave-run/conclave/internal/promptkit"
)

// ActionGate is the Action Gate (spec.md §4.9): triggered only after
// consensus + owner approval, and only for an actionable winner. Polls
// every non-winner for agreement, then — if a majority agree — dispatches
// a single execute call to the winner.
type ActionGate struct {
	Templates config.PromptTemplates
	Timeout   time.Duration
	Cwd       string
}

// ActionResult is what the Action Gate produces: either the textual answer
// (no action, or action rejected) or the winning agent's reported output.
type ActionResult struct {
	Output   string
	Executed bool
}

// Run executes the gate for the given winner proposal against the rest of
// the roster. winnerID must already be known actionable by the caller
// (spec.md §4.9: "only if the winning payload carries a non-empty
// code_patch or tests list").
func (g ActionGate) Run(ctx context.Context, token *agentrun.CancelToken, registry *agentrun.Registry, roster []config.AgentDescriptor, winnerID string, winner ProposalPayload) (ActionResult, error) {
	agreedCount := 0
	parsedVoters := 0

	for _, agent := range roster {
		if agent.ID == winnerID {
			continue
		}

		prompt := promptkit.Build(g.Templates.ActionAgree, promptkit.Context{
			WinnerAgent: winnerID,
			FinalAnswer: winner.Proposal,
			Proposal:    winner.Proposal,
			CodePatch:   winner.CodePatch,
			Tests:       winner.Tests,
			Cwd:         g.Cwd,
		})

		call, err := agentrun.Call(ctx, token, registry, agent, prompt, g.Timeout)
		if err != nil {
			continue
		}

		var agree ActionAgreePayload
		if json.Unmarshal([]byte(call.ParsedJSON), &agree) != nil {
			continue
		}

		parsedVoters++
		if agree.Agreed {
			agreedCount++
		}
	}

	if parsedVoters == 0 || float64(agreedCount)/float64(parsedVoters) < 0.5 {
		return ActionResult{Output: winner.Proposal}, nil
	}

	winnerAgent, ok := findAgent(roster, winnerID)
	if !ok {
		return ActionResult{Output: winner.Proposal}, nil
	}

	prompt := promptkit.Build(g.Templates.ActionExecute, promptkit.Context{
		WinnerAgent: winnerID,
		FinalAnswer: winner.Proposal,
		Proposal:    winner.Proposal,
		CodePatch:   winner.CodePatch,
		Tests:       winner.Tests,
		Cwd:         g.Cwd,
	})

	call, err := agentrun.Call(ctx, token, registry, winnerAgent, prompt, g.Timeout)
	if err != nil {
		return ActionResult{Output: winner.Proposal}, nil
	}

	var exec ActionExecutePayload
	if json.Unmarshal([]byte(call.ParsedJSON), &exec) != nil || !exec.Executed {
		return ActionResult{Output: winner.Proposal}, nil
	}

	return ActionResult{Output: exec.Output, Executed: true}, nil
}

func findAgent(roster []config.AgentDescriptor, id string) (config.AgentDescriptor, bool) {
	for _, a := range roster {
		if a.ID == id {
			return a, true
		}
	}
	return config.AgentDescriptor{}, false
}
