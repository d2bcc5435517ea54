package puzzle

import "fmt"

// Outcome is the resolved result of an attempt.
type Outcome int

const (
	Pending Outcome = iota
	Correct
	Incorrect
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText renders the outcome by name in logs and JSON.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Attempt is one submitted grouping. Number is assigned by State.Append from
// the attempt's position in the history.
type Attempt struct {
	Number    int     `json:"number"`
	Words     []Word  `json:"words"`
	Rationale string  `json:"rationale,omitempty"`
	Outcome   Outcome `json:"outcome"`
	OneAway   bool    `json:"one_away"`
}

// Correct reports whether the attempt found a category.
func (a Attempt) Correct() bool {
	return a.Outcome == Correct
}

// Labels returns the labels of the attempt's words in submission order.
func (a Attempt) Labels() []string {
	return Labels(a.Words)
}

// Proposal is what a proposal generator hands back: four labels taken from
// the board plus the reasoning behind them.
type Proposal struct {
	Words     []string `json:"words"`
	Rationale string   `json:"reasoning"`
}

// Signals are the raw feedback values read off the page after a submission.
// A nil field means the page did not expose that value.
type Signals struct {
	OneAway           *bool
	MistakesRemaining *int
}
