package solver

import (
	"context"

	"connsolve/internal/puzzle"
)

// Proposer produces the next grouping from the full board and the full
// attempt history. Retrying the underlying model is the proposer's job.
type Proposer interface {
	Propose(ctx context.Context, words []puzzle.Word, history []puzzle.Attempt) (puzzle.Proposal, error)
}

// Driver is the page the puzzle is played on.
type Driver interface {
	// SubmitSelection selects the cards in order and submits them.
	SubmitSelection(ctx context.Context, words []puzzle.Word) error
	// ReadFeedbackSignals reads the one-away toast and the mistake counter.
	ReadFeedbackSignals(ctx context.Context) (puzzle.Signals, error)
	// ClearSelection deselects every card.
	ClearSelection(ctx context.Context) error
	// ReadOutcomeBanner returns the end-of-game title, or "" when none is shown.
	ReadOutcomeBanner(ctx context.Context) (string, error)
}
