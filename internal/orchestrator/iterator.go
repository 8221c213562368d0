package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/conclave-run/conclave/internal/agentrun"
	"github.com/conclave-run/conclave/internal/config"
	"github.com/conclave-run/conclave/internal/debatelog"
	"github.com/conclave-run/conclave/internal/judge"
	"github.com/conclave-run/conclave/internal/promptkit"
)

// judgeEpsilon is the score gap below which the top two candidates are
// considered a near-tie worth an advisory narration (SPEC_FULL.md Domain
// Stack: "within judgeEpsilon of each other").
const judgeEpsilon = 0.03

// Outcome is the Round Iterator's terminal result (spec.md §7's
// user-visible outcomes).
type Outcome struct {
	State      RunState
	WinnerID   string
	Score      float64
	Answer     ProposalPayload
	ExecOutput string
	Executed   bool
	Err        error
}

// Iterator is the Round Iterator (spec.md §4.10): drives the
// PROPOSE → CRITIQUE → REVISE → VOTE loop to one of the four terminal
// states.
//
// Grounded on iterative/converge.go's Converge() driver loop skeleton —
// same shape (pluggable per-step logic, hard iteration cap, cancellation
// observed at each boundary) — with AI-judged convergence replaced by the
// quantitative Consensus Evaluator + Owner Gate per spec.md §4.10's state
// table.
type Iterator struct {
	Cfg      config.RunConfig
	Registry *agentrun.Registry
	Token    *agentrun.CancelToken
	Logger   debatelog.Logger
	Timeout  time.Duration
	Cwd      string

	// Judge is the optional Tie-Break Judge narrator. Nil disables it
	// entirely; its output never changes a score, winner, or consensus
	// decision (spec.md §7).
	Judge *judge.Judge
}

// Run drives one full debate for question over the configured roster
// (spec.md §4.10). Session state lives only for the duration of this call
// (spec.md §3: "destroyed on return").
func (it Iterator) Run(ctx context.Context, question string) Outcome {
	if it.Logger == nil {
		it.Logger = debatelog.NopLogger{}
	}

	if it.cancelledAtBoundary() {
		return Outcome{State: StateDoneInterrupted}
	}

	session := NewSession(question, it.Cfg.Roster)
	it.Logger.BlockTitle("PROPOSE")

	proposeResults, err := it.runPhase(ctx, StatePropose, it.Cfg.Templates.Propose, func(a config.AgentDescriptor) promptkit.Context {
		return promptkit.Context{Agents: it.Cfg.Roster, Question: question}
	})
	if err != nil {
		if it.cancelledAtBoundary() {
			return Outcome{State: StateDoneInterrupted}
		}
		return Outcome{State: StateDoneFatal, Err: err}
	}

	for _, r := range Successful(proposeResults) {
		var p ProposalPayload
		if json.Unmarshal([]byte(r.ParsedJSON), &p) == nil {
			session.SetProposal(r.AgentID, p)
		}
	}
	if len(session.Proposals) == 0 {
		return Outcome{State: StateDoneFatal, Err: agentrun.ErrPhaseStarvation}
	}

	var lastTallies map[string]*Tally
	var lastCandidateOrder []string
	var lastVotes []Vote

	for round := 1; round <= it.Cfg.MaxRounds; round++ {
		session.Round = round

		if it.cancelledAtBoundary() {
			return Outcome{State: StateDoneInterrupted}
		}

		it.Logger.BlockTitle("CRITIQUE")
		critiqueResults, err := it.runPhase(ctx, StateCritique, it.Cfg.Templates.Critique, it.critiqueContext(session))
		if err != nil && errors.Is(err, agentrun.ErrPhaseStarvation) {
			// Later-phase starvation proceeds on last known state
			// (spec.md §7); there is simply nothing to critique with.
			critiqueResults = nil
		}
		critiques := flattenCritiques(critiqueResults)

		if it.cancelledAtBoundary() {
			return Outcome{State: StateDoneInterrupted}
		}

		it.Logger.BlockTitle("REVISE")
		reviseResults, err := it.runPhase(ctx, StateRevise, it.Cfg.Templates.Revise, it.reviseContext(session, critiques))
		if err != nil && errors.Is(err, agentrun.ErrPhaseStarvation) {
			reviseResults = nil
		}
		applyRevisions(session, reviseResults)

		if it.cancelledAtBoundary() {
			return Outcome{State: StateDoneInterrupted}
		}

		it.Logger.BlockTitle("VOTE")
		voteResults, err := it.runPhase(ctx, StateVote, it.Cfg.Templates.Vote, it.voteContext(session))
		zeroVotes := err != nil && errors.Is(err, agentrun.ErrPhaseStarvation)

		candidateOrder := proposalOrderIDs(session)
		voters := voterInputsFrom(voteResults, critiques)
		votes := votesFrom(voteResults)

		tallier := Tallier{RubberStampPenalty: it.Cfg.RubberPenalty}
		tallies := tallier.Tally(candidateOrder, voters)
		lastTallies, lastCandidateOrder, lastVotes = tallies, candidateOrder, votes

		if zeroVotes {
			if round == it.Cfg.MaxRounds {
				return it.noConsensusOutcome(session, lastCandidateOrder, lastTallies, lastVotes)
			}
			continue
		}

		evaluator := ConsensusEvaluator{
			Mode:              string(it.Cfg.ConsensusMode),
			UnanimousPct:      it.Cfg.UnanimousPct,
			SuperMajorityPct:  it.Cfg.SuperMajorityPct,
			MajorityPct:       it.Cfg.MajorityPct,
			RequireNoBlockers: it.Cfg.RequireNoBlockers,
		}
		result := evaluator.Evaluate(candidateOrder, tallies, critiques)
		it.narrateNearTie(ctx, session.Question, candidateOrder, tallies, "near-tie")

		if !result.Reached {
			if round == it.Cfg.MaxRounds {
				return it.noConsensusOutcome(session, lastCandidateOrder, lastTallies, lastVotes)
			}
			continue
		}

		ownerGate := OwnerGate{Config: it.Cfg.Owner}
		if !ownerGate.Approve(result.WinnerID, votes) {
			it.Logger.Line(result.WinnerID, string(StateVote), it.explainRejection(ctx, session.Question, result), true)
			if round == it.Cfg.MaxRounds {
				return it.noConsensusOutcome(session, lastCandidateOrder, lastTallies, lastVotes)
			}
			continue
		}

		winnerProposal := session.Proposals[result.WinnerID].Payload
		if !winnerProposal.IsActionable() {
			return Outcome{State: StateDoneConsensus, WinnerID: result.WinnerID, Score: result.Score, Answer: winnerProposal}
		}

		gate := ActionGate{Templates: it.Cfg.Templates, Timeout: it.Timeout, Cwd: it.Cwd}
		actionRes, _ := gate.Run(ctx, it.Token, it.Registry, it.Cfg.Roster, result.WinnerID, winnerProposal)
		return Outcome{
			State:      StateDoneConsensus,
			WinnerID:   result.WinnerID,
			Score:      result.Score,
			Answer:     winnerProposal,
			ExecOutput: actionRes.Output,
			Executed:   actionRes.Executed,
		}
	}

	return it.noConsensusOutcome(session, lastCandidateOrder, lastTallies, lastVotes)
}

// narrateNearTie asks the optional Judge for a one-line explanation when
// the top two candidates are within judgeEpsilon of each other, and logs
// it. A nil Judge makes this a no-op (SPEC_FULL.md Domain Stack).
func (it Iterator) narrateNearTie(ctx context.Context, question string, candidateOrder []string, tallies map[string]*Tally, reason string) {
	if it.Judge == nil || len(candidateOrder) < 2 {
		return
	}

	type scored struct {
		id    string
		score float64
	}
	var ranked []scored
	for _, id := range candidateOrder {
		if t, ok := tallies[id]; ok {
			ranked = append(ranked, scored{id, t.Normalized()})
		}
	}
	if len(ranked) < 2 {
		return
	}
	for i := 0; i < len(ranked); i++ {
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].score > ranked[i].score {
				ranked[i], ranked[j] = ranked[j], ranked[i]
			}
		}
	}

	if ranked[0].score-ranked[1].score > judgeEpsilon {
		return
	}

	explanation := it.Judge.Explain(ctx, judge.TallySummary{
		Question:   question,
		CandidateA: ranked[0].id,
		ScoreA:     ranked[0].score,
		CandidateB: ranked[1].id,
		ScoreB:     ranked[1].score,
		Reason:     reason,
	})
	if explanation != "" {
		it.Logger.Line("", string(StateVote), explanation, true)
	}
}

// explainRejection asks the optional Judge for a one-line rationale on an
// owner rejection. Returns the fixed text "owner rejected winner" if Judge
// is disabled.
func (it Iterator) explainRejection(ctx context.Context, question string, result ConsensusResult) string {
	if it.Judge == nil {
		return "owner rejected winner"
	}
	return it.Judge.Explain(ctx, judge.TallySummary{
		Question:   question,
		CandidateA: result.WinnerID,
		ScoreA:     result.Score,
		Reason:     "owner rejection",
	})
}

func (it Iterator) cancelledAtBoundary() bool {
	return it.Token != nil && it.Token.Cancelled()
}

func (it Iterator) runPhase(ctx context.Context, state RunState, template string, buildCtx ContextBuilder) ([]PerAgentResult, error) {
	return Phase(ctx, it.Token, it.Registry, it.Cfg.MaxConcurrentAgents, it.Cfg.Roster, template, buildCtx, it.Timeout, string(state), it.Cfg.ResponseThreshold, it.Logger)
}

// critiqueContext excludes the target agent's own proposal from its own
// prompt context (spec.md §4.5).
func (it Iterator) critiqueContext(session *Session) ContextBuilder {
	return func(agent config.AgentDescriptor) promptkit.Context {
		others := make([]Proposal, 0, len(session.Proposals))
		for _, p := range session.OrderedProposals() {
			if p.AgentID != agent.ID {
				others = append(others, p)
			}
		}
		return promptkit.Context{Agents: it.Cfg.Roster, Question: session.Question, Phase: others}
	}
}

func (it Iterator) reviseContext(session *Session, critiques []CritiqueRecord) ContextBuilder {
	return func(agent config.AgentDescriptor) promptkit.Context {
		own := session.Proposals[agent.ID]
		var targeted []CritiqueRecord
		for _, c := range critiques {
			if c.TargetAgentID == agent.ID {
				targeted = append(targeted, c)
			}
		}
		return promptkit.Context{
			Agents: it.Cfg.Roster,
			Question: session.Question,
			Phase: map[string]any{
				"own_proposal": own.Payload,
				"critiques":    targeted,
			},
		}
	}
}

func (it Iterator) voteContext(session *Session) ContextBuilder {
	return func(agent config.AgentDescriptor) promptkit.Context {
		return promptkit.Context{Agents: it.Cfg.Roster, Question: session.Question, Phase: session.OrderedProposals()}
	}
}

func (it Iterator) noConsensusOutcome(session *Session, candidateOrder []string, tallies map[string]*Tally, votes []Vote) Outcome {
	if len(votes) == 0 {
		// "the first proposer if no votes parsed" (spec.md §7).
		for _, id := range candidateOrder {
			return Outcome{State: StateDoneNoConsensus, WinnerID: id, Answer: session.Proposals[id].Payload}
		}
		return Outcome{State: StateDoneNoConsensus}
	}

	winnerID, score, ok := Winner(candidateOrder, tallies)
	if !ok {
		return Outcome{State: StateDoneNoConsensus}
	}
	return Outcome{State: StateDoneNoConsensus, WinnerID: winnerID, Score: score, Answer: session.Proposals[winnerID].Payload}
}

func proposalOrderIDs(session *Session) []string {
	ids := make([]string, 0, len(session.Proposals))
	for _, p := range session.OrderedProposals() {
		ids = append(ids, p.AgentID)
	}
	return ids
}

func flattenCritiques(results []PerAgentResult) []CritiqueRecord {
	var out []CritiqueRecord
	for _, r := range results {
		if !r.OK() {
			continue
		}
		var payload CritiquePayload
		if json.Unmarshal([]byte(r.ParsedJSON), &payload) != nil {
			continue
		}
		for _, target := range payload.Critiques {
			out = append(out, CritiqueRecord{
				AuthorAgentID: r.AgentID,
				TargetAgentID: target.TargetAgent,
				Points:        target.Points,
			})
		}
	}
	return out
}

// applyRevisions replaces each agent's current proposal with its revision
// when is_changed is true; otherwise the prior proposal text is retained
// (spec.md §4.10).
func applyRevisions(session *Session, results []PerAgentResult) {
	for _, r := range results {
		if !r.OK() {
			continue
		}
		var rev RevisionPayload
		if json.Unmarshal([]byte(r.ParsedJSON), &rev) != nil {
			continue
		}
		if rev.Revised.IsChanged {
			session.SetProposal(r.AgentID, rev.Revised.toPayload())
		}
	}
}

func voterInputsFrom(results []PerAgentResult, critiques []CritiqueRecord) []VoterInput {
	peerCritiquedBy := make(map[string]bool)
	for _, c := range critiques {
		if c.IsPeerCritique() {
			peerCritiquedBy[c.AuthorAgentID] = true
		}
	}

	var out []VoterInput
	for _, r := range results {
		if !r.OK() {
			continue
		}
		var payload VotePayload
		if json.Unmarshal([]byte(r.ParsedJSON), &payload) != nil {
			continue
		}
		out = append(out, VoterInput{
			VoterAgentID:    r.AgentID,
			Scores:          ScoresFor(payload),
			HadPeerCritique: peerCritiquedBy[r.AgentID],
		})
	}
	return out
}

func votesFrom(results []PerAgentResult) []Vote {
	var out []Vote
	for _, r := range results {
		if !r.OK() {
			continue
		}
		var payload VotePayload
		if json.Unmarshal([]byte(r.ParsedJSON), &payload) != nil {
			continue
		}
		out = append(out, Vote{VoterAgentID: r.AgentID, Payload: payload})
	}
	return out
}
