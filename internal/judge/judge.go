// Package judge implements the optional Tie-Break Judge (SPEC_FULL.md
// Domain Stack): an advisory-only narrator that may be consulted when the
// Consensus Evaluator finds two candidates within judgeEpsilon of each
// other, or when the Owner Approval Gate rejects a winner and a
// human-readable rationale would help the transcript. It never influences
// a score, winner, or consensus decision — it produces free text for the
// Logger only, consistent with spec.md §7's "the orchestrator does not
// evaluate answer quality itself."
//
// Grounded on ai/analysis.go's Supervisor.AnalyzeExecutionResult: build a
// prompt, call client.Messages.New with a single user text block, extract
// the text content blocks. Narrowed from that file's retry/circuit-breaker
// machinery (already grounds internal/agentrun's own Retry Policy) down to
// a single best-effort call — a stalled judge narration should never hold
// up the debate, so failures here are swallowed rather than retried.
package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Judge makes advisory-only explanation calls to Claude. A nil *Judge (or
// one built with no API key) is valid and Explain becomes a no-op —
// narration is purely additive.
type Judge struct {
	client *anthropic.Client
	model  string
}

// New builds a Judge using apiKey. If apiKey is empty, New returns nil, a
// disabled Judge: Explain on it always returns "" without making a call
// (SPEC_FULL.md: "Disabled when no API key is configured").
func New(apiKey, model string) *Judge {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Judge{client: &client, model: model}
}

// TallySummary is the minimal view of a round's outcome the judge needs to
// narrate — never the full session state, since the judge must not see
// (and cannot influence) anything beyond what's needed for a one-line
// explanation.
type TallySummary struct {
	Question   string
	CandidateA string
	ScoreA     float64
	CandidateB string
	ScoreB     float64
	Reason     string // e.g. "near-tie", "owner rejection"
}

// Explain produces a short, free-text rationale for the Logger. Returns
// "" if j is nil (disabled) or the API call fails — a judge failure
// is never surfaced as an orchestrator error (spec.md §7: the only errors
// that escape the orchestrator boundary are illegal roster configuration
// and unrecoverable registry failures; judge narration is neither).
func (j *Judge) Explain(ctx context.Context, s TallySummary) string {
	if j == nil {
		return ""
	}

	prompt := buildExplainPrompt(s)

	resp, err := j.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(j.model),
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return ""
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(text.String())
}

func buildExplainPrompt(s TallySummary) string {
	return fmt.Sprintf(
		"A debate panel is deciding an answer to: %q\n"+
			"Candidate %s scored %.2f; candidate %s scored %.2f.\n"+
			"Reason for review: %s.\n"+
			"In one sentence, explain which candidate a careful reviewer would "+
			"prefer and why. This is narration only; it will not change the "+
			"numeric decision already made.",
		s.Question, s.CandidateA, s.ScoreA, s.CandidateB, s.ScoreB, s.Reason,
	)
}
