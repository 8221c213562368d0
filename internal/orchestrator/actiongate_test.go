package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-run/conclave/internal/agentrun"
	"github.com/conclave-run/conclave/internal/config"
)

func shellAgent(id, script string) config.AgentDescriptor {
	return config.AgentDescriptor{
		ID:          id,
		DisplayName: id,
		Cmd:         "sh",
		Args:        []string{"-c", script},
		InputMode:   config.ArgMode,
		TimeoutMS:   1000,
	}
}

func TestActionGate_ApprovedExecutesWinner(t *testing.T) {
	roster := []config.AgentDescriptor{
		shellAgent("winner", `printf '{"executed":true,"output":"OK","error":null,"files_created":[],"files_modified":[]}'`),
		shellAgent("n1", `printf '{"is_actionable":true,"action_type":"code_execution","action_description":"d","agreed":true,"reason":"ok"}'`),
		shellAgent("n2", `printf '{"is_actionable":true,"action_type":"code_execution","action_description":"d","agreed":true,"reason":"ok"}'`),
	}

	gate := ActionGate{Templates: config.PromptTemplates{ActionAgree: "{PROMPT}", ActionExecute: "{PROMPT}"}, Timeout: time.Second}
	res, err := gate.Run(context.Background(), nil, agentrun.NewRegistry(), roster, "winner", ProposalPayload{Proposal: "answer", Tests: []string{"t"}})

	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.Equal(t, "OK", res.Output)
}

func TestActionGate_RejectedReturnsTextualAnswer(t *testing.T) {
	roster := []config.AgentDescriptor{
		shellAgent("winner", `printf '{"executed":true,"output":"OK","error":null,"files_created":[],"files_modified":[]}'`),
		shellAgent("n1", `printf '{"is_actionable":true,"action_type":"code_execution","action_description":"d","agreed":false,"reason":"no"}'`),
		shellAgent("n2", `printf '{"is_actionable":true,"action_type":"code_execution","action_description":"d","agreed":false,"reason":"no"}'`),
	}

	gate := ActionGate{Templates: config.PromptTemplates{ActionAgree: "{PROMPT}", ActionExecute: "{PROMPT}"}, Timeout: time.Second}
	res, err := gate.Run(context.Background(), nil, agentrun.NewRegistry(), roster, "winner", ProposalPayload{Proposal: "answer text"})

	require.NoError(t, err)
	assert.False(t, res.Executed)
	assert.Equal(t, "answer text", res.Output)
}
