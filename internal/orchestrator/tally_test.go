package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTallier_WeightedSumAndNormalization(t *testing.T) {
	tallier := Tallier{RubberStampPenalty: 0.5}
	voters := []VoterInput{
		{VoterAgentID: "v1", HadPeerCritique: true, Scores: []rawScore{{"a", 0.9}, {"b", 0.5}}},
		{VoterAgentID: "v2", HadPeerCritique: true, Scores: []rawScore{{"a", 0.8}, {"b", 0.6}}},
		{VoterAgentID: "v3", HadPeerCritique: false, Scores: []rawScore{{"a", 1.0}, {"b", 0.2}}},
	}

	tallies := tallier.Tally([]string{"a", "b"}, voters)

	assert.InDelta(t, 0.9+0.8+0.5*1.0, tallies["a"].WeightedSum, 1e-9)
	assert.Equal(t, 3, tallies["a"].VotersConsidered)
	assert.InDelta(t, (0.9+0.8+0.5)/3.0, tallies["a"].Normalized(), 1e-9)
}

func TestTallier_RubberStampPenaltyAppliesOnlyToNonPeerCritics(t *testing.T) {
	tallier := Tallier{RubberStampPenalty: 0.0}
	voters := []VoterInput{
		{VoterAgentID: "v1", HadPeerCritique: false, Scores: []rawScore{{"a", 1.0}}},
	}
	tallies := tallier.Tally([]string{"a"}, voters)
	assert.InDelta(t, 0.0, tallies["a"].Normalized(), 1e-9)
}

func TestWinner_TieBreaksByInsertionOrder(t *testing.T) {
	tallies := map[string]*Tally{
		"a": {CandidateAgentID: "a", WeightedSum: 0.8, VotersConsidered: 1},
		"b": {CandidateAgentID: "b", WeightedSum: 0.8, VotersConsidered: 1},
	}
	id, score, ok := Winner([]string{"b", "a"}, tallies)
	assert.True(t, ok)
	assert.Equal(t, "b", id)
	assert.InDelta(t, 0.8, score, 1e-9)
}

func TestWinner_NoCandidatesReturnsNotOK(t *testing.T) {
	_, _, ok := Winner(nil, map[string]*Tally{})
	assert.False(t, ok)
}

func TestTallier_VoteAppearsAtMostOnceInTallyPerCandidate(t *testing.T) {
	// Testable Property #2: every agent that voted appears at most once in
	// the tally per candidate, even if its VotePayload somehow listed the
	// same candidate twice.
	tallier := Tallier{RubberStampPenalty: 1.0}
	voters := []VoterInput{
		{VoterAgentID: "v1", HadPeerCritique: true, Scores: []rawScore{{"a", 1.0}, {"a", 1.0}}},
	}
	tallies := tallier.Tally([]string{"a"}, voters)
	assert.Equal(t, 1, tallies["a"].VotersConsidered)
	assert.Len(t, tallies["a"].Voters, 1)
}
