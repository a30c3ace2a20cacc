package deletion

// Tally is the pair of running vote counters for a request.
type Tally struct {
	For     int
	Against int
}

// Total returns the number of votes cast.
func (t Tally) Total() int {
	return t.For + t.Against
}

// Percentage returns the share of votes in favor, in percent.
// Returns 0 when no votes have been cast.
func (t Tally) Percentage() float64 {
	total := t.Total()
	if total == 0 {
		return 0
	}
	return float64(t.For) / float64(total) * 100
}

// Decide applies the resolution policy to a tally at window close: approved
// iff at least one vote was cast and the approval percentage meets the
// configured threshold, rejected otherwise. This is the single source of
// truth for outcomes; eager resolution uses the same policy.
func Decide(t Tally, requiredPercentage float64) Status {
	if t.Total() == 0 {
		return StatusRejected
	}
	if t.Percentage() >= requiredPercentage {
		return StatusApproved
	}
	return StatusRejected
}

// DecidedEarly reports whether the outcome is already mathematically certain
// given the number of eligible voters: no combination of votes from the
// voters who have not yet cast one can change what Decide would return at
// window close. eligible <= 0 disables early decisions.
func DecidedEarly(t Tally, requiredPercentage float64, eligible int) (Status, bool) {
	if eligible <= 0 {
		return "", false
	}
	remaining := eligible - t.Total()
	if remaining <= 0 {
		return Decide(t, requiredPercentage), true
	}

	// Worst case for approval: every remaining voter votes against.
	worst := Tally{For: t.For, Against: t.Against + remaining}
	// Best case for approval: every remaining voter votes in favor.
	best := Tally{For: t.For + remaining, Against: t.Against}

	if Decide(worst, requiredPercentage) == StatusApproved {
		return StatusApproved, true
	}
	if Decide(best, requiredPercentage) == StatusRejected {
		return StatusRejected, true
	}
	return "", false
}
