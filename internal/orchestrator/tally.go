package orchestrator

// Tallier is the Vote Tallier (spec.md §4.6): aggregates per-candidate
// weighted scores across a round's votes, applying the rubber-stamp
// penalty and the stable insertion-order tie-break.
//
// Grounded on ai/json_parser.go's strategy-ladder-by-lookup shape is not
// relevant here; the aggregation itself is new domain logic with no direct
// teacher analogue (the teacher never votes), built from spec.md §4.6/§9
// exactly, following the deduplication/priorities packages' plain
// score-accumulation style (simple maps, no third-party aggregation
// library — none of the pack repos import one for weighted voting).
type Tallier struct {
	RubberStampPenalty float64
}

// rawScore pairs a candidate agent ID with the voter's raw score.
type rawScore struct {
	candidateID string
	score       float64
}

// VoterInput is one parsed vote plus whether the voter submitted at least
// one valid peer critique this round (spec.md §9 Open Question #1).
type VoterInput struct {
	VoterAgentID  string
	Scores        []rawScore
	HadPeerCritique bool
}

// ScoresFor converts a decoded VotePayload into the rawScore slice Tally
// expects, in the payload's own array order.
func ScoresFor(payload VotePayload) []rawScore {
	out := make([]rawScore, 0, len(payload.Scores))
	for _, s := range payload.Scores {
		out = append(out, rawScore{candidateID: s.AgentID, score: s.Score})
	}
	return out
}

// Tally computes the per-candidate Tally for every candidate appearing in
// candidateOrder (the descriptor order, spec.md §5's ordering guarantee —
// used for the stable tie-break), across the given voter inputs.
func (t Tallier) Tally(candidateOrder []string, voters []VoterInput) map[string]*Tally {
	out := make(map[string]*Tally, len(candidateOrder))
	for _, id := range candidateOrder {
		out[id] = &Tally{CandidateAgentID: id}
	}

	for _, v := range voters {
		weight := 1.0
		if !v.HadPeerCritique {
			weight = t.RubberStampPenalty
		}

		seen := make(map[string]bool, len(v.Scores))
		for _, s := range v.Scores {
			if seen[s.candidateID] {
				continue
			}
			seen[s.candidateID] = true

			tally, ok := out[s.candidateID]
			if !ok {
				continue
			}
			tally.WeightedSum += weight * s.score
			tally.WeightTotal += weight
			tally.Voters = append(tally.Voters, v.VoterAgentID)
			tally.VotersConsidered++
		}
	}

	return out
}

// Winner returns the candidate with the highest normalized score, breaking
// exact ties by candidateOrder position (spec.md §4.6, §9: "first candidate
// encountered in insertion order wins"). Returns ("", 0, false) if
// candidateOrder is empty.
func Winner(candidateOrder []string, tallies map[string]*Tally) (id string, score float64, ok bool) {
	best := -1.0
	for _, cid := range candidateOrder {
		tally, exists := tallies[cid]
		if !exists {
			continue
		}
		n := tally.Normalized()
		if n > best {
			best = n
			id = cid
			ok = true
		}
	}
	if !ok {
		return "", 0, false
	}
	return id, best, ok
}
