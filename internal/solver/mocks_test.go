package solver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"connsolve/internal/puzzle"

	"github.com/stretchr/testify/require"
)

// testLabels is a board whose groups are consecutive runs of four cards.
var testLabels = []string{
	"MUNG", "PINTO", "KIDNEY", "NAVY",
	"DRAW", "PULL", "GRAB", "WHIRL",
	"NEUTRAL", "DRIVE", "REVERSE", "LOW",
	"LIVER", "CAR", "HOOK", "DEAD",
}

func groupLabels(g int) []string {
	return append([]string(nil), testLabels[4*g:4*g+4]...)
}

// wrongLabels mixes cards from two groups. oneAway keeps three from group 0.
func wrongLabels(oneAway bool) []string {
	if oneAway {
		return []string{"MUNG", "PINTO", "KIDNEY", "DRAW"}
	}
	return []string{"MUNG", "PINTO", "DRAW", "PULL"}
}

func newTestState(t *testing.T) *puzzle.State {
	t.Helper()
	words, err := puzzle.NewWords(testLabels)
	require.NoError(t, err)
	s, err := puzzle.NewState(words)
	require.NoError(t, err)
	return s
}

// fakePage simulates the game board. A group is solved when its four cards
// are submitted together; anything else costs a mistake.
type fakePage struct {
	mistakes  int
	found     map[int]bool
	attempts  int
	oneAway   bool
	submitted [][]puzzle.Word
	clears    int
	banners   int

	// Behaviour overrides.
	hideMistakes int // number of feedback reads that omit the counter
	extraPenalty int // added to the decrement of the next wrong guess
	bannerText   string
	bannerScript []string // returned one per read before any other banner
	bannerErr    error
	submitErr    error
	clearErr     error
	readErr      error
}

func newFakePage() *fakePage {
	return &fakePage{mistakes: puzzle.DefaultMistakes, found: map[int]bool{}}
}

func (p *fakePage) SubmitSelection(_ context.Context, words []puzzle.Word) error {
	if p.submitErr != nil {
		return p.submitErr
	}
	p.submitted = append(p.submitted, append([]puzzle.Word(nil), words...))
	p.attempts++
	counts := map[int]int{}
	for _, w := range words {
		counts[w.Index/4]++
	}
	p.oneAway = false
	for g, n := range counts {
		if n == 4 {
			p.found[g] = true
			return nil
		}
		if n == 3 {
			p.oneAway = true
		}
	}
	p.mistakes -= 1 + p.extraPenalty
	p.extraPenalty = 0
	return nil
}

func (p *fakePage) ReadFeedbackSignals(context.Context) (puzzle.Signals, error) {
	if p.readErr != nil {
		return puzzle.Signals{}, p.readErr
	}
	oneAway := p.oneAway
	if p.hideMistakes > 0 {
		p.hideMistakes--
		return puzzle.Signals{OneAway: &oneAway}, nil
	}
	mistakes := p.mistakes
	return puzzle.Signals{OneAway: &oneAway, MistakesRemaining: &mistakes}, nil
}

func (p *fakePage) ClearSelection(context.Context) error {
	p.clears++
	return p.clearErr
}

func (p *fakePage) ReadOutcomeBanner(context.Context) (string, error) {
	p.banners++
	if p.bannerErr != nil {
		return "", p.bannerErr
	}
	if len(p.bannerScript) > 0 {
		banner := p.bannerScript[0]
		p.bannerScript = p.bannerScript[1:]
		return banner, nil
	}
	if len(p.found) < 4 {
		return "", nil
	}
	if p.bannerText != "" {
		return p.bannerText, nil
	}
	switch p.attempts {
	case 4:
		return "Perfect!", nil
	case 5:
		return "Great!", nil
	case 6:
		return "Solid!", nil
	case 7:
		return "Phew!", nil
	}
	return "", nil
}

// scriptedProposer replays proposals in order and records what it was shown.
type scriptedProposer struct {
	script    [][]string
	err       error
	calls     int
	histories [][]puzzle.Attempt
	boards    [][]puzzle.Word
}

func (s *scriptedProposer) Propose(_ context.Context, words []puzzle.Word, history []puzzle.Attempt) (puzzle.Proposal, error) {
	s.boards = append(s.boards, words)
	s.histories = append(s.histories, history)
	if s.err != nil {
		return puzzle.Proposal{}, s.err
	}
	if s.calls >= len(s.script) {
		return puzzle.Proposal{}, errors.New("script exhausted")
	}
	w := s.script[s.calls]
	s.calls++
	return puzzle.Proposal{Words: w, Rationale: fmt.Sprintf("guess %d", s.calls)}, nil
}

func fastCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{FeedbackRetries: 0, FeedbackPollInterval: time.Millisecond}
}

func fastLoopConfig() LoopConfig {
	cfg := DefaultLoopConfig()
	cfg.BannerRetries = 2
	cfg.BannerPollInterval = time.Millisecond
	return cfg
}
