package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conclave-run/conclave/internal/config"
)

func voteFor(voter, candidate string, score float64) Vote {
	return Vote{
		VoterAgentID: voter,
		Payload: VotePayload{
			Scores: []voteScore{{AgentID: candidate, Score: score}},
		},
	}
}

func TestOwnerGate_NoOwnersUnconditional(t *testing.T) {
	gate := OwnerGate{}
	assert.True(t, gate.Approve("a", nil))
}

func TestOwnerGate_AnyModeApprovesOnOneOwner(t *testing.T) {
	gate := OwnerGate{Config: config.OwnerConfig{IDs: []string{"c"}, MinScore: 0.85, Mode: config.OwnerAny}}
	votes := []Vote{voteFor("c", "a", 0.9)}
	assert.True(t, gate.Approve("a", votes))
}

func TestOwnerGate_AnyModeRejectsBelowMinScore(t *testing.T) {
	gate := OwnerGate{Config: config.OwnerConfig{IDs: []string{"c"}, MinScore: 0.85, Mode: config.OwnerAny}}
	votes := []Vote{voteFor("c", "a", 0.7)}
	assert.False(t, gate.Approve("a", votes))
}

func TestOwnerGate_AllModeRequiresEveryOwner(t *testing.T) {
	gate := OwnerGate{Config: config.OwnerConfig{IDs: []string{"c", "d"}, MinScore: 0.8, Mode: config.OwnerAll}}
	votes := []Vote{voteFor("c", "a", 0.9)}
	assert.False(t, gate.Approve("a", votes), "d never voted")

	votes = append(votes, voteFor("d", "a", 0.9))
	assert.True(t, gate.Approve("a", votes))
}

func TestOwnerGate_AllModeFailsIfAnyOwnerBelowMinScore(t *testing.T) {
	gate := OwnerGate{Config: config.OwnerConfig{IDs: []string{"c", "d"}, MinScore: 0.8, Mode: config.OwnerAll}}
	votes := []Vote{voteFor("c", "a", 0.9), voteFor("d", "a", 0.5)}
	assert.False(t, gate.Approve("a", votes))
}
