package orchestrator

// ConsensusEvaluator is the Consensus Evaluator (spec.md §4.7): applies the
// configured mode's threshold to the tallied top candidate, then the
// blocker veto.
type ConsensusEvaluator struct {
	Mode              string // "unanimous" | "super" | "majority"
	UnanimousPct      float64
	SuperMajorityPct  float64
	MajorityPct       float64
	RequireNoBlockers bool
}

// ConsensusResult is the Consensus Evaluator's verdict (spec.md §4.7:
// {reached, winnerId?, score?}).
type ConsensusResult struct {
	Reached  bool
	WinnerID string
	Score    float64
}

func (e ConsensusEvaluator) threshold() float64 {
	switch e.Mode {
	case "unanimous":
		return e.UnanimousPct
	case "majority":
		return e.MajorityPct
	default:
		return e.SuperMajorityPct
	}
}

// Evaluate applies the consensus threshold and blocker veto to candidateOrder
// (descriptor order, for the tie-break) given tallies and this round's
// flattened critiques.
//
// Blocker veto: when RequireNoBlockers is true, a candidate targeted by any
// blocker-severity critique this round is disqualified even if its score
// clears the threshold — re-evaluated against the *next*-highest candidate
// (spec.md §4.7: "if that yields no candidate, consensus fails this
// round"). Per spec.md §9 Open Question #2, a blocker raised by a
// rubber-stamped (penalized-weight) critic still vetoes: veto is a binary
// safety gate independent of vote weight.
func (e ConsensusEvaluator) Evaluate(candidateOrder []string, tallies map[string]*Tally, critiques []CritiqueRecord) ConsensusResult {
	blocked := make(map[string]bool)
	if e.RequireNoBlockers {
		for _, c := range critiques {
			if c.HasBlocker() {
				blocked[c.TargetAgentID] = true
			}
		}
	}

	threshold := e.threshold()

	best := -1.0
	bestID := ""
	found := false
	for _, cid := range candidateOrder {
		if blocked[cid] {
			continue
		}
		tally, ok := tallies[cid]
		if !ok {
			continue
		}
		n := tally.Normalized()
		if n > best {
			best = n
			bestID = cid
			found = true
		}
	}

	if !found || best < threshold {
		return ConsensusResult{}
	}

	return ConsensusResult{Reached: true, WinnerID: bestID, Score: best}
}
