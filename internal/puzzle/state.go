package puzzle

import (
	"errors"
	"fmt"
	"sort"
)

// Verdict is the tri-state solved flag of a session.
type Verdict int

const (
	Unknown Verdict = iota
	Solved
	Failed
)

func (v Verdict) String() string {
	switch v {
	case Unknown:
		return "unknown"
	case Solved:
		return "solved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// MarshalText renders the verdict by name in logs and JSON.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

var (
	// ErrPendingAttempt is returned when an unresolved attempt is appended.
	ErrPendingAttempt = errors.New("attempt outcome is pending")
	// ErrBudgetExhausted is returned when an attempt is appended after the
	// mistake budget reached zero.
	ErrBudgetExhausted = errors.New("mistake budget exhausted")
	// ErrSessionOver is returned when an attempt is appended after a verdict.
	ErrSessionOver = errors.New("session already has a verdict")
	// ErrTooFewAttempts is returned when a verdict is set before four attempts.
	ErrTooFewAttempts = errors.New("verdict requires at least four attempts")
	// ErrInvalidGroup is returned for an attempt that is not four distinct
	// cards from the board.
	ErrInvalidGroup = errors.New("invalid group")
	// ErrRepeatedGroup is returned when a group was already submitted, or
	// uses a card from a group already found.
	ErrRepeatedGroup = errors.New("group already played")
)

// State is the authoritative record of one puzzle session. It is owned by a
// single session and is not safe for concurrent use.
type State struct {
	words    []Word
	history  []Attempt
	budget   int
	mistakes int
	verdict  Verdict
}

// Option configures a State.
type Option func(*State)

// WithMistakes overrides the initial mistake budget.
func WithMistakes(n int) Option {
	return func(s *State) {
		s.budget = n
		s.mistakes = n
	}
}

// NewState creates the session state for a fixed board.
func NewState(words []Word, opts ...Option) (*State, error) {
	if len(words) != WordCount {
		return nil, fmt.Errorf("%w: board has %d words, want %d", ErrInvalidGroup, len(words), WordCount)
	}
	board := make([]Word, len(words))
	for i, w := range words {
		if w.Index != i {
			return nil, fmt.Errorf("%w: word %q has index %d at position %d", ErrInvalidGroup, w.Label, w.Index, i)
		}
		board[i] = w
	}
	s := &State{
		words:    board,
		budget:   DefaultMistakes,
		mistakes: DefaultMistakes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.budget < 1 {
		return nil, fmt.Errorf("mistake budget must be positive, got %d", s.budget)
	}
	return s, nil
}

// Words returns a copy of the board.
func (s *State) Words() []Word {
	out := make([]Word, len(s.words))
	copy(out, s.words)
	return out
}

// History returns a copy of the attempt log.
func (s *State) History() []Attempt {
	out := make([]Attempt, len(s.history))
	for i, a := range s.history {
		a.Words = append([]Word(nil), a.Words...)
		out[i] = a
	}
	return out
}

// Len returns the number of recorded attempts.
func (s *State) Len() int {
	return len(s.history)
}

// MistakesRemaining returns the current budget.
func (s *State) MistakesRemaining() int {
	return s.mistakes
}

// InitialMistakes returns the budget the session started with.
func (s *State) InitialMistakes() int {
	return s.budget
}

// Verdict returns the solved flag.
func (s *State) Verdict() Verdict {
	return s.verdict
}

// CorrectGroups counts the distinct groups found. A group the page accepts
// twice is counted once.
func (s *State) CorrectGroups() int {
	seen := make(map[string]bool, GroupCount)
	for _, a := range s.history {
		if a.Correct() {
			seen[groupKey(a.Words)] = true
		}
	}
	return len(seen)
}

// Found reports whether the card at index belongs to a group already found.
func (s *State) Found(index int) bool {
	for _, a := range s.history {
		if !a.Correct() {
			continue
		}
		for _, w := range a.Words {
			if w.Index == index {
				return true
			}
		}
	}
	return false
}

// Tried reports whether the same four cards were submitted before, in any
// order.
func (s *State) Tried(words []Word) bool {
	key := groupKey(words)
	for _, a := range s.history {
		if groupKey(a.Words) == key {
			return true
		}
	}
	return false
}

func groupKey(words []Word) string {
	idx := make([]int, len(words))
	for i, w := range words {
		idx[i] = w.Index
	}
	sort.Ints(idx)
	return fmt.Sprint(idx)
}

// MaxAttempts is the longest history a session can produce: every group
// found plus every allowed mistake.
func (s *State) MaxAttempts() int {
	return GroupCount + s.budget
}

// Running reports whether another attempt may be made.
func (s *State) Running() bool {
	return s.verdict == Unknown && s.mistakes > 0
}

// Solved reports whether the verdict is Solved.
func (s *State) Solved() bool {
	return s.verdict == Solved
}

// Append records a resolved attempt as the next attempt number and applies
// its effect on the budget. It returns the assigned attempt number.
func (s *State) Append(a Attempt) (int, error) {
	switch {
	case s.verdict != Unknown:
		return 0, ErrSessionOver
	case s.mistakes == 0:
		return 0, ErrBudgetExhausted
	case a.Outcome == Pending:
		return 0, ErrPendingAttempt
	case a.Outcome != Correct && a.Outcome != Incorrect:
		return 0, fmt.Errorf("unknown outcome %v", a.Outcome)
	}
	if err := s.ValidateGroup(a.Words); err != nil {
		return 0, err
	}
	if a.Correct() {
		a.OneAway = false
	} else {
		s.mistakes--
	}
	a.Number = len(s.history) + 1
	a.Words = append([]Word(nil), a.Words...)
	s.history = append(s.history, a)
	return a.Number, nil
}

// ValidateGroup checks that words are exactly four distinct cards of this board.
func (s *State) ValidateGroup(words []Word) error {
	if len(words) != GroupSize {
		return fmt.Errorf("%w: %d words, want %d", ErrInvalidGroup, len(words), GroupSize)
	}
	seen := make(map[int]bool, GroupSize)
	for _, w := range words {
		if w.Index < 0 || w.Index >= len(s.words) {
			return fmt.Errorf("%w: index %d out of range", ErrInvalidGroup, w.Index)
		}
		if s.words[w.Index].Label != w.Label {
			return fmt.Errorf("%w: card %d is %q, not %q", ErrInvalidGroup, w.Index, s.words[w.Index].Label, w.Label)
		}
		if seen[w.Index] {
			return fmt.Errorf("%w: card %d repeated", ErrInvalidGroup, w.Index)
		}
		seen[w.Index] = true
	}
	return nil
}

// MarkSolved sets the verdict to Solved.
func (s *State) MarkSolved() error {
	return s.setVerdict(Solved)
}

// MarkFailed sets the verdict to Failed.
func (s *State) MarkFailed() error {
	return s.setVerdict(Failed)
}

func (s *State) setVerdict(v Verdict) error {
	if s.verdict != Unknown {
		return ErrSessionOver
	}
	// A budget smaller than the group count can run out early.
	if len(s.history) < GroupCount && !(v == Failed && s.mistakes == 0) {
		return ErrTooFewAttempts
	}
	s.verdict = v
	return nil
}

// Pick resolves proposed labels to cards still in play, in order. A label
// that appears on several cards takes the first card not already picked or
// found, so duplicate labels stay positionally distinct. A group submitted
// before is rejected with ErrRepeatedGroup.
func (s *State) Pick(labels []string) ([]Word, error) {
	if len(labels) != GroupSize {
		return nil, fmt.Errorf("%w: %d words, want %d", ErrInvalidGroup, len(labels), GroupSize)
	}
	used := make(map[int]bool, GroupSize)
	picked := make([]Word, 0, GroupSize)
	for _, l := range labels {
		n := Normalize(l)
		idx := -1
		for _, w := range s.words {
			if w.Label == n && !used[w.Index] && !s.Found(w.Index) {
				idx = w.Index
				break
			}
		}
		if idx < 0 {
			return nil, s.pickError(n, used)
		}
		used[idx] = true
		picked = append(picked, s.words[idx])
	}
	if s.Tried(picked) {
		return nil, fmt.Errorf("%w: %v", ErrRepeatedGroup, Labels(picked))
	}
	return picked, nil
}

// pickError explains why label resolved to no card.
func (s *State) pickError(label string, used map[int]bool) error {
	onBoard := false
	for _, w := range s.words {
		if w.Label != label {
			continue
		}
		onBoard = true
		if used[w.Index] {
			return fmt.Errorf("%w: %q repeated", ErrInvalidGroup, label)
		}
	}
	if onBoard {
		return fmt.Errorf("%w: %q is in a group already found", ErrRepeatedGroup, label)
	}
	return fmt.Errorf("%w: %q is not on the board", ErrInvalidGroup, label)
}
