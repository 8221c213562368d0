// Package orchestrator implements the debate state machine (spec.md §4.5
// through §4.10): the Phase Executor, Vote Tallier, Consensus Evaluator,
// Owner Approval Gate, Action Gate, and the Round Iterator that drives
// them. It is the single-writer owner of session state (spec.md §3,
// "Ownership summary") — every other package is a read-only collaborator.
//
// Grounded on iterative/converge.go's driver-loop shape, generalized from
// AI-judged convergence to the quantitative threshold-and-veto state
// machine spec.md §4.10 describes.
package orchestrator

import "github.com/conclave-run/conclave/internal/config"

// Severity is a critique point's severity level.
type Severity string

const (
	SeverityMinor   Severity = "minor"
	SeverityMajor   Severity = "major"
	SeverityBlocker Severity = "blocker"
)

// ProposalPayload is the Proposal phase response schema (spec.md §6).
type ProposalPayload struct {
	Proposal    string   `json:"proposal"`
	CodePatch   string   `json:"code_patch,omitempty"`
	KeyPoints   []string `json:"key_points"`
	Assumptions []string `json:"assumptions"`
	Risks       []string `json:"risks"`
	Tests       []string `json:"tests"`
	Citations   []string `json:"citations,omitempty"`
	Confidence  string   `json:"confidence"`
}

// IsActionable reports whether this payload carries an action-gate-eligible
// artifact (spec.md §4.9: "non-empty code_patch or tests list").
func (p ProposalPayload) IsActionable() bool {
	return p.CodePatch != "" || len(p.Tests) > 0
}

// Proposal is one agent's current proposal for the session (spec.md §3):
// exclusively owned by the Round Iterator.
type Proposal struct {
	AgentID string
	Payload ProposalPayload
}

// CritiquePointPayload is one entry of a critique response's points array.
type CritiquePointPayload struct {
	ClaimOrLine    string   `json:"claim_or_line"`
	Severity       Severity `json:"severity"`
	Rationale      string   `json:"rationale"`
	Evidence       []string `json:"evidence,omitempty"`
	SuggestedFix   string   `json:"suggested_fix,omitempty"`
}

// critiqueTarget is one element of a Critique response's critiques array.
type critiqueTarget struct {
	TargetAgent         string                 `json:"target_agent"`
	Points              []CritiquePointPayload `json:"points"`
	ConversationMessage string                 `json:"conversation_message"`
}

// CritiquePayload is the Critique phase response schema (spec.md §6).
type CritiquePayload struct {
	Critiques []critiqueTarget `json:"critiques"`
}

// CritiqueRecord is the flattened, orchestrator-internal view of one
// author's critique of one target (spec.md §3): {author_agent_id,
// target_agent_id, points[]}. The Round Iterator (flattenCritiques) flattens
// each agent's CritiquePayload (one entry per target) into one CritiqueRecord per
// target so the Consensus Evaluator and rubber-stamp detector can index by
// (author, target) pairs directly.
type CritiqueRecord struct {
	AuthorAgentID string
	TargetAgentID string
	Points        []CritiquePointPayload
}

// HasBlocker reports whether any point in this record is blocker-severity.
func (c CritiqueRecord) HasBlocker() bool {
	for _, p := range c.Points {
		if p.Severity == SeverityBlocker {
			return true
		}
	}
	return false
}

// IsPeerCritique reports whether this record critiques another agent
// rather than its own author (spec.md §9 Open Question #1: self-critiques
// do not count as peer review for rubber-stamp purposes).
func (c CritiqueRecord) IsPeerCritique() bool {
	return c.AuthorAgentID != c.TargetAgentID && len(c.Points) > 0
}

// voteScore is one element of a Vote response's scores array.
type voteScore struct {
	AgentID string  `json:"agent_id"`
	Score   float64 `json:"score"`
}

// blockingIssue is one element of a Vote response's blocking_issues array.
type blockingIssue struct {
	AgentID string `json:"agent_id"`
	Issue   string `json:"issue"`
}

// mergeSuggestion is a Vote response's optional merge_suggestion object.
type mergeSuggestion struct {
	Summary      string   `json:"summary"`
	SourceAgents []string `json:"source_agents"`
	CodePatch    string   `json:"code_patch,omitempty"`
}

// VotePayload is the Vote phase response schema (spec.md §6).
type VotePayload struct {
	Scores              []voteScore      `json:"scores"`
	BlockingIssues       []blockingIssue  `json:"blocking_issues"`
	MergeSuggestion      *mergeSuggestion `json:"merge_suggestion,omitempty"`
	ConversationMessage  string           `json:"conversation_message"`
}

// Vote is the orchestrator-internal view of one agent's vote (spec.md §3):
// {voter_agent_id, scores, blocking_issues, merge_suggestion?,
// conversation_message}.
type Vote struct {
	VoterAgentID string
	Payload      VotePayload
}

// responseToFeedback is one element of a Revision response's
// response_to_feedback array.
type responseToFeedback struct {
	CriticAgent         string `json:"critic_agent"`
	FeedbackAccepted    string `json:"feedback_accepted"`
	FeedbackRejected    string `json:"feedback_rejected"`
	ActionTaken         string `json:"action_taken"`
	ConversationMessage string `json:"conversation_message"`
}

// RevisionPayload is the Revise phase response schema (spec.md §6).
type RevisionPayload struct {
	Revised            revisedProposal      `json:"revised"`
	ResponseToFeedback []responseToFeedback `json:"response_to_feedback"`
}

// revisedProposal mirrors ProposalPayload plus the is_changed flag.
type revisedProposal struct {
	IsChanged   bool     `json:"is_changed"`
	Proposal    string   `json:"proposal"`
	CodePatch   string   `json:"code_patch,omitempty"`
	KeyPoints   []string `json:"key_points"`
	Assumptions []string `json:"assumptions"`
	Risks       []string `json:"risks"`
	Tests       []string `json:"tests"`
	Citations   []string `json:"citations,omitempty"`
	Confidence  string   `json:"confidence"`
}

func (r revisedProposal) toPayload() ProposalPayload {
	return ProposalPayload{
		Proposal:    r.Proposal,
		CodePatch:   r.CodePatch,
		KeyPoints:   r.KeyPoints,
		Assumptions: r.Assumptions,
		Risks:       r.Risks,
		Tests:       r.Tests,
		Citations:   r.Citations,
		Confidence:  r.Confidence,
	}
}

// ActionAgreePayload is the Action-agree response schema (spec.md §6).
type ActionAgreePayload struct {
	IsActionable      bool   `json:"is_actionable"`
	ActionType        string `json:"action_type"`
	ActionDescription string `json:"action_description"`
	Agreed            bool   `json:"agreed"`
	Reason            string `json:"reason"`
}

// ActionExecutePayload is the Action-execute response schema (spec.md §6).
type ActionExecutePayload struct {
	Executed      bool     `json:"executed"`
	Output        string   `json:"output"`
	Error         *string  `json:"error"`
	FilesCreated  []string `json:"files_created"`
	FilesModified []string `json:"files_modified"`
}

// Tally is the per-candidate aggregation result (spec.md §3): {weightedSum,
// weightTotal, voters[]}; normalized score is weightedSum / max(1,
// votersConsidered).
type Tally struct {
	CandidateAgentID string
	WeightedSum      float64
	WeightTotal      float64
	Voters           []string
	VotersConsidered int
}

// Normalized returns weightedSum / max(1, votersConsidered) (spec.md §4.6).
func (t Tally) Normalized() float64 {
	denom := t.VotersConsidered
	if denom < 1 {
		denom = 1
	}
	return t.WeightedSum / float64(denom)
}

// RunState is the Round Iterator's current machine state (spec.md §4.10).
type RunState string

const (
	StatePropose           RunState = "PROPOSE"
	StateCritique          RunState = "CRITIQUE"
	StateRevise            RunState = "REVISE"
	StateVote              RunState = "VOTE"
	StateDoneConsensus     RunState = "DONE_CONSENSUS"
	StateDoneNoConsensus   RunState = "DONE_NO_CONSENSUS"
	StateDoneInterrupted   RunState = "DONE_INTERRUPTED"
	StateDoneFatal         RunState = "DONE_FATAL"
)

// IsTerminal reports whether s is one of the four terminal states.
func (s RunState) IsTerminal() bool {
	switch s {
	case StateDoneConsensus, StateDoneNoConsensus, StateDoneInterrupted, StateDoneFatal:
		return true
	}
	return false
}

// Session is the mutable state that lives for one run(question) (spec.md
// §3): question, roster, current proposals and round index. The cancellation
// token and process registry are held by the Iterator, not by Session.
// Mutated only by the Round Iterator and its callees on the single
// orchestrator driver; every other component receives read-only views.
type Session struct {
	Question  string
	Roster    []config.AgentDescriptor
	Round     int
	Proposals map[string]Proposal

	// proposalOrder preserves descriptor order for deterministic iteration
	// (spec.md §5: "iteration order where it matters... follows the agent
	// descriptor order supplied at startup").
	proposalOrder []string
}

// NewSession creates session state for a fresh run(question) call.
func NewSession(question string, roster []config.AgentDescriptor) *Session {
	return &Session{
		Question:  question,
		Roster:    roster,
		Round:     0,
		Proposals: make(map[string]Proposal),
	}
}

// SetProposal records or replaces agentID's proposal, preserving first-seen
// order for deterministic downstream iteration.
func (s *Session) SetProposal(agentID string, payload ProposalPayload) {
	if _, exists := s.Proposals[agentID]; !exists {
		s.proposalOrder = append(s.proposalOrder, agentID)
	}
	s.Proposals[agentID] = Proposal{AgentID: agentID, Payload: payload}
}

// OrderedProposals returns the session's proposals in descriptor-arrival
// order (spec.md §5 ordering guarantee).
func (s *Session) OrderedProposals() []Proposal {
	out := make([]Proposal, 0, len(s.proposalOrder))
	for _, id := range s.proposalOrder {
		out = append(out, s.Proposals[id])
	}
	return out
}

// DescriptorByID looks up the agent descriptor for id, in roster order.
func (s *Session) DescriptorByID(id string) (config.AgentDescriptor, bool) {
	for _, a := range s.Roster {
		if a.ID == id {
			return a, true
		}
	}
	return config.AgentDescriptor{}, false
}
