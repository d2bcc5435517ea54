package solver

import (
	"connsolve/internal/puzzle"
)

// Interpretation is the resolved feedback for the latest submission.
type Interpretation struct {
	Outcome           puzzle.Outcome
	OneAway           bool
	MistakesRemaining int
	// ClearSelection is set when the cards are still selected on the page and
	// must be deselected before the next submission.
	ClearSelection bool
}

// Interpret turns raw signals into an outcome. prior is the budget before the
// submission. It has no side effects.
func Interpret(sig puzzle.Signals, prior int) (Interpretation, error) {
	if sig.MistakesRemaining == nil {
		return Interpretation{}, ErrFeedbackUnavailable
	}
	observed := *sig.MistakesRemaining
	switch observed {
	case prior:
		return Interpretation{Outcome: puzzle.Correct, MistakesRemaining: prior}, nil
	case prior - 1:
		if observed < 0 {
			break
		}
		oneAway := sig.OneAway != nil && *sig.OneAway
		return Interpretation{
			Outcome:           puzzle.Incorrect,
			OneAway:           oneAway,
			MistakesRemaining: observed,
			ClearSelection:    observed > 0,
		}, nil
	}
	return Interpretation{}, &InconsistentFeedbackError{Prior: prior, Observed: observed}
}
