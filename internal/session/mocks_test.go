package session

import (
	"context"
	"errors"

	"connsolve/internal/browser"
	"connsolve/internal/config"
	"connsolve/internal/puzzle"
	"connsolve/internal/usage"
)

// boardLabels groups cards in consecutive runs of four.
var boardLabels = []string{
	"mung", "pinto", "kidney", "navy",
	"draw", "pull", "grab", "whirl",
	"neutral", "drive", "reverse", "low",
	"liver", "car", "hook", "dead",
}

func group(g int) []string {
	return append([]string(nil), boardLabels[4*g:4*g+4]...)
}

// misses are distinct wrong groups; the last two avoid group(0).
var misses = [][]string{
	{"mung", "pinto", "draw", "pull"},
	{"mung", "pinto", "kidney", "draw"},
	{"draw", "pull", "neutral", "drive"},
	{"draw", "neutral", "liver", "car"},
}

var miss = misses[0]

// fakePage plays the game in memory and records its lifecycle.
type fakePage struct {
	mistakes int
	found    int
	attempts int
	oneAway  bool

	started  bool
	opened   bool
	shutdown int

	startErr    error
	openErr     error
	wordsErr    error
	shutdownErr error
	labels      []string
	sessionID   string
	submitErr   error
	onSubmit    func()
}

func newFakePage() *fakePage {
	return &fakePage{mistakes: puzzle.DefaultMistakes, labels: boardLabels, sessionID: "sess-1"}
}

var ranks = map[int]string{4: "Perfect!", 5: "Great!", 6: "Solid!", 7: "Phew!"}

func (p *fakePage) Start(context.Context) error {
	if p.startErr != nil {
		return p.startErr
	}
	p.started = true
	return nil
}

func (p *fakePage) Shutdown(context.Context) error {
	p.shutdown++
	return p.shutdownErr
}

func (p *fakePage) OpenPuzzle(context.Context) (browser.Session, error) {
	if p.openErr != nil {
		return browser.Session{}, p.openErr
	}
	p.opened = true
	return browser.Session{ID: p.sessionID, URL: "http://puzzle.test"}, nil
}

func (p *fakePage) PuzzleWords(context.Context) ([]string, error) {
	if p.wordsErr != nil {
		return nil, p.wordsErr
	}
	return p.labels, nil
}

func (p *fakePage) SubmitSelection(_ context.Context, words []puzzle.Word) error {
	if p.onSubmit != nil {
		p.onSubmit()
	}
	if p.submitErr != nil {
		return p.submitErr
	}
	p.attempts++
	counts := map[int]int{}
	best := 0
	for _, w := range words {
		counts[w.Index/4]++
		if counts[w.Index/4] > best {
			best = counts[w.Index/4]
		}
	}
	p.oneAway = best == 3
	if best == 4 {
		p.found++
		return nil
	}
	p.mistakes--
	return nil
}

func (p *fakePage) ReadFeedbackSignals(context.Context) (puzzle.Signals, error) {
	oneAway, n := p.oneAway, p.mistakes
	return puzzle.Signals{OneAway: &oneAway, MistakesRemaining: &n}, nil
}

func (p *fakePage) ClearSelection(context.Context) error { return nil }

func (p *fakePage) ReadOutcomeBanner(context.Context) (string, error) {
	if p.found < puzzle.GroupCount {
		return "", nil
	}
	return ranks[p.attempts], nil
}

// scriptedProposer returns its script in order.
type scriptedProposer struct {
	script [][]string
	calls  int
}

func (s *scriptedProposer) Propose(ctx context.Context, _ []puzzle.Word, _ []puzzle.Attempt) (puzzle.Proposal, error) {
	usage.FromContext(ctx).Track(ctx, "scripted", "test", 100, 10)
	if s.calls >= len(s.script) {
		return puzzle.Proposal{}, errors.New("script exhausted")
	}
	words := s.script[s.calls]
	s.calls++
	return puzzle.Proposal{Words: words, Rationale: "scripted"}, nil
}

func fastConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Solver.SettleDelay = "1ms"
	cfg.Solver.CorrectSettleDelay = "1ms"
	cfg.Solver.FeedbackRetries = 1
	cfg.Solver.FeedbackPollInterval = "1ms"
	cfg.Solver.BannerRetries = 1
	cfg.Solver.BannerPollInterval = "1ms"
	return cfg
}
