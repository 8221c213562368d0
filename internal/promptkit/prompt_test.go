package promptkit

import (
	"testing"

	"github.com/conclave-run/conclave/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestBuild_SubstitutesKnownTokens(t *testing.T) {
	ctx := Context{
		Agents: []config.AgentDescriptor{
			{ID: "a1", DisplayName: "Agent One"},
			{ID: "a2", DisplayName: "Agent Two"},
		},
		Question: "What should we build?",
		Phase:    map[string]string{"round": "1"},
	}

	out := Build("Q: {{QUESTION}}\nPanel: {{AGENTS}}\nCtx: {{CONTEXT}}", ctx)

	assert.Contains(t, out, "Q: What should we build?")
	assert.Contains(t, out, `"agent_id":"a1"`)
	assert.Contains(t, out, `"agent_display_name":"> Agent One"`)
	assert.Contains(t, out, `"round": "1"`)
}

func TestBuild_LeavesUnknownPlaceholdersVerbatim(t *testing.T) {
	out := Build("Known: {{QUESTION}} Unknown: {{NOT_A_REAL_TOKEN}}", Context{Question: "q"})
	assert.Contains(t, out, "Unknown: {{NOT_A_REAL_TOKEN}}")
}

func TestBuild_ActionTemplateTokens(t *testing.T) {
	ctx := Context{
		WinnerAgent: "alpha",
		FinalAnswer: "do the thing",
		Proposal:    "proposal text",
		CodePatch:   "diff --git a b",
		Tests:       []string{"go test ./..."},
		Cwd:         "/tmp/work",
	}

	out := Build("{{WINNER_AGENT}} {{FINAL_ANSWER}} {{PROPOSAL}} {{CODE_PATCH}} {{TESTS}} {{CWD}}", ctx)

	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "do the thing")
	assert.Contains(t, out, "proposal text")
	assert.Contains(t, out, "diff --git a b")
	assert.Contains(t, out, `["go test ./..."]`)
	assert.Contains(t, out, "/tmp/work")
}

func TestBuild_EmptyContextYieldsEmptySubstitutions(t *testing.T) {
	out := Build("[{{QUESTION}}] [{{AGENTS}}] [{{CONTEXT}}]", Context{})
	assert.Equal(t, "[] [[]] [{}]", out)
}

func TestBuild_AllOccurrencesReplaced(t *testing.T) {
	out := Build("{{QUESTION}} again {{QUESTION}}", Context{Question: "hi"})
	assert.Equal(t, "hi again hi", out)
}
