// Package promptkit implements the Prompt Builder (spec.md §4.4): flat,
// case-sensitive placeholder substitution over a template string.
//
// Unlike the teacher's executor/prompt.go, which drives a text/template
// with conditional sections, the builder here must leave any placeholder it
// doesn't recognize completely untouched (spec.md §4.4: "unknown
// placeholders must be left verbatim"). text/template has no clean way to
// express that — an undefined {{.Field}} either errors or requires fighting
// Option("missingkey=..."), and template syntax itself ({{.X}}) doesn't
// match the spec's literal {{TOKEN}} tokens — so this is a small ordered
// list of literal string replacements instead, grounded on the teacher's
// builder-struct shape rather than its templating engine.
package promptkit

import (
	"encoding/json"
	"strings"

	"github.com/conclave-run/conclave/internal/config"
)

// agentRef is the JSON shape for one {{AGENTS}} roster entry (spec.md §4.4).
type agentRef struct {
	AgentID          string `json:"agent_id"`
	AgentDisplayName string `json:"agent_display_name"`
}

// Context carries every value a phase template may interpolate. Fields
// left at their zero value simply substitute as empty (structured tokens
// render as "[]" for {{AGENTS}}, "{}" for {{CONTEXT}} and "null" for
// {{TESTS}}); callers only populate what their phase needs.
type Context struct {
	// Agents is rendered as {{AGENTS}}: the full roster, in descriptor
	// order (spec.md §5: "iteration order where it matters... follows the
	// agent descriptor order supplied at startup").
	Agents []config.AgentDescriptor

	// Question is rendered verbatim as {{QUESTION}}.
	Question string

	// Phase is marshaled as pretty JSON for {{CONTEXT}}. Typically a
	// per-phase struct (proposals to critique, critiques to revise
	// against, proposals to vote on).
	Phase any

	// WinnerAgent, FinalAnswer, Proposal, CodePatch, Cwd back the
	// action-gate and execute templates only (spec.md §4.4).
	WinnerAgent string
	FinalAnswer string
	Proposal    string
	CodePatch   string
	Tests       []string
	Cwd         string
}

// Build substitutes every occurrence of the spec's known placeholders in
// template with values from ctx, and leaves any other "{{...}}" sequence in
// the template untouched.
func Build(template string, ctx Context) string {
	replacements := []struct {
		token string
		value string
	}{
		{"{{AGENTS}}", agentsJSON(ctx.Agents)},
		{"{{QUESTION}}", ctx.Question},
		{"{{CONTEXT}}", phaseJSON(ctx.Phase)},
		{"{{WINNER_AGENT}}", ctx.WinnerAgent},
		{"{{FINAL_ANSWER}}", ctx.FinalAnswer},
		{"{{PROPOSAL}}", ctx.Proposal},
		{"{{CODE_PATCH}}", ctx.CodePatch},
		{"{{TESTS}}", testsJSON(ctx.Tests)},
		{"{{CWD}}", ctx.Cwd},
	}

	out := template
	for _, r := range replacements {
		out = strings.ReplaceAll(out, r.token, r.value)
	}
	return out
}

func agentsJSON(agents []config.AgentDescriptor) string {
	refs := make([]agentRef, 0, len(agents))
	for _, a := range agents {
		refs = append(refs, agentRef{
			AgentID:          a.ID,
			AgentDisplayName: "> " + a.DisplayName,
		})
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func phaseJSON(phase any) string {
	if phase == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(phase, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func testsJSON(tests []string) string {
	data, err := json.Marshal(tests)
	if err != nil {
		return "[]"
	}
	return string(data)
}
