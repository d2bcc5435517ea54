package solver

import (
	"errors"
	"fmt"
)

// Failure classes. Errors returned by this package wrap one or more of these;
// test for them with errors.Is.
var (
	// ErrFeedbackUnavailable means the page did not expose the mistake counter
	// after a submission.
	ErrFeedbackUnavailable = errors.New("feedback unavailable")

	// ErrInconsistentFeedback means the mistake counter moved in a way a single
	// submission cannot explain. The page and the state have diverged.
	ErrInconsistentFeedback = errors.New("inconsistent feedback")

	// ErrMalformedProposal means the generator returned something other than
	// four distinct words from the board.
	ErrMalformedProposal = errors.New("malformed proposal")

	// ErrGenerationFailed means the proposal generator returned an error.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrDriverFault means a page interaction failed.
	ErrDriverFault = errors.New("driver fault")

	// ErrSessionFault means the session cannot continue and must release its
	// resources.
	ErrSessionFault = errors.New("session fault")

	// ErrUnknownBanner means the page showed an end-of-game banner that is not
	// in the banner table and the policy is to abort.
	ErrUnknownBanner = errors.New("unknown outcome banner")

	// ErrOutcomeUndetermined means every group was found but the banner never
	// confirmed the attempt count.
	ErrOutcomeUndetermined = errors.New("outcome undetermined")
)

// InconsistentFeedbackError carries the counter values behind an
// ErrInconsistentFeedback.
type InconsistentFeedbackError struct {
	Prior    int
	Observed int
}

func (e *InconsistentFeedbackError) Error() string {
	return fmt.Sprintf("inconsistent feedback: mistakes remaining went from %d to %d", e.Prior, e.Observed)
}

func (e *InconsistentFeedbackError) Unwrap() error {
	return ErrInconsistentFeedback
}

// Fatal reports whether err leaves the page in a state the session cannot
// trust.
func Fatal(err error) bool {
	return errors.Is(err, ErrSessionFault) ||
		errors.Is(err, ErrInconsistentFeedback) ||
		errors.Is(err, ErrUnknownBanner)
}

func driverFault(op string, err error) error {
	return fmt.Errorf("%w: %w: %s: %w", ErrSessionFault, ErrDriverFault, op, err)
}
