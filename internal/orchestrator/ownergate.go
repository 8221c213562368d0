package orchestrator

import "github.com/conclave-run/conclave/internal/config"

// OwnerGate is the Owner Approval Gate (spec.md §4.8). If no owners are
// configured, approval is unconditional; otherwise it inspects the
// winner's *raw* (pre-weighting) score from each owner's vote.
type OwnerGate struct {
	Config config.OwnerConfig
}

// Approve evaluates owner approval for winnerID using this round's raw
// votes (spec.md §4.8: "using the current round's raw scores
// (pre-weighting)"). Non-approval never ends the session — the caller
// (Round Iterator) simply advances to the next round.
func (g OwnerGate) Approve(winnerID string, votes []Vote) bool {
	if len(g.Config.IDs) == 0 {
		return true
	}

	rawScores := make(map[string]float64, len(votes))
	voted := make(map[string]bool, len(votes))
	for _, v := range votes {
		for _, s := range v.Payload.Scores {
			if s.AgentID == winnerID {
				rawScores[v.VoterAgentID] = s.Score
				voted[v.VoterAgentID] = true
			}
		}
	}

	switch g.Config.Mode {
	case config.OwnerAll:
		for _, ownerID := range g.Config.IDs {
			if !voted[ownerID] {
				return false
			}
			if rawScores[ownerID] < g.Config.MinScore {
				return false
			}
		}
		return true
	default: // config.OwnerAny
		for _, ownerID := range g.Config.IDs {
			if voted[ownerID] && rawScores[ownerID] >= g.Config.MinScore {
				return true
			}
		}
		return false
	}
}
