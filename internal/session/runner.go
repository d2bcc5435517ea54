// Package session runs one complete solving session: it opens the puzzle,
// builds the solver from configuration, plays until a verdict or an error,
// and always closes the browser afterwards.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"connsolve/internal/browser"
	"connsolve/internal/config"
	"connsolve/internal/logging"
	"connsolve/internal/puzzle"
	"connsolve/internal/solver"
	"connsolve/internal/usage"

	"go.uber.org/zap"
)

// Page is the browser side of a session.
type Page interface {
	solver.Driver
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	OpenPuzzle(ctx context.Context) (browser.Session, error)
	PuzzleWords(ctx context.Context) ([]string, error)
}

// Report is the outcome of one session.
type Report struct {
	SessionID         string            `json:"session_id"`
	Words             []string          `json:"words"`
	Verdict           puzzle.Verdict    `json:"verdict"`
	MistakesRemaining int               `json:"mistakes_remaining"`
	History           []puzzle.Attempt  `json:"history"`
	StartedAt         time.Time         `json:"started_at"`
	Elapsed           time.Duration     `json:"elapsed"`
	Usage             usage.TokenCounts `json:"usage"`
	Err               error             `json:"-"`
}

// Solved reports whether the session ended with a solved verdict.
func (r *Report) Solved() bool {
	return r.Verdict == puzzle.Solved
}

// Runner owns the page and the proposer for one session.
type Runner struct {
	cfg      *config.Config
	page     Page
	proposer solver.Proposer
	logger   *zap.Logger
	shutdown time.Duration
}

// NewRunner creates a runner. cfg must already be validated.
func NewRunner(cfg *config.Config, page Page, proposer solver.Proposer, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		page:     page,
		proposer: proposer,
		logger:   logging.For(logger, logging.CategorySession),
		shutdown: 10 * time.Second,
	}
}

// Run plays one session. The returned report is never nil; it carries the
// history up to any failure. The browser is shut down on every path.
func (r *Runner) Run(ctx context.Context) (report *Report, err error) {
	report = &Report{StartedAt: time.Now()}
	defer func() {
		report.Elapsed = time.Since(report.StartedAt)
		report.Err = err
	}()

	tracker := usage.NewTracker(r.cfg.LLM.UsageFile)
	if err := tracker.Load(); err != nil {
		r.logger.Warn("usage ledger ignored", zap.Error(err))
	}
	ctx = usage.NewContext(ctx, tracker)
	defer func() {
		report.Usage = tracker.Session(report.SessionID)
		if err := tracker.Save(); err != nil {
			r.logger.Warn("failed to save usage ledger", zap.Error(err))
		}
	}()

	if err := r.page.Start(ctx); err != nil {
		return report, fmt.Errorf("start browser: %w", err)
	}
	defer r.stop(&err)

	sess, err := r.page.OpenPuzzle(ctx)
	if err != nil {
		return report, fmt.Errorf("open puzzle: %w", err)
	}
	report.SessionID = sess.ID
	ctx = usage.WithSession(ctx, sess.ID)
	logger := r.logger.With(zap.String("session", sess.ID))

	labels, err := r.page.PuzzleWords(ctx)
	if err != nil {
		return report, fmt.Errorf("read board: %w", err)
	}
	words, err := puzzle.NewWords(labels)
	if err != nil {
		return report, fmt.Errorf("read board: %w", err)
	}
	report.Words = puzzle.Labels(words)
	logger.Info("board ready", zap.Strings("words", report.Words))

	state, err := puzzle.NewState(words, puzzle.WithMistakes(r.cfg.Solver.InitialMistakes))
	if err != nil {
		return report, err
	}
	loopCfg, err := LoopConfig(r.cfg)
	if err != nil {
		return report, err
	}
	coord := solver.NewCoordinator(r.proposer, r.page, CoordinatorConfig(r.cfg), logger)
	loop := solver.NewLoop(state, coord, r.page, loopCfg, logger)

	_, runErr := loop.Run(ctx)
	report.Verdict = state.Verdict()
	report.MistakesRemaining = state.MistakesRemaining()
	report.History = state.History()
	if runErr != nil {
		logger.Error("session aborted",
			zap.Error(runErr),
			zap.Bool("fatal", solver.Fatal(runErr)),
			zap.Int("attempts", state.Len()),
		)
		return report, runErr
	}
	logger.Info("session finished",
		zap.Stringer("verdict", report.Verdict),
		zap.Int("attempts", state.Len()),
		zap.Int("mistakes_remaining", report.MistakesRemaining),
	)
	return report, nil
}

// Words opens the puzzle and returns its board without playing.
func (r *Runner) Words(ctx context.Context) (labels []string, err error) {
	if err := r.page.Start(ctx); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	defer r.stop(&err)

	if _, err := r.page.OpenPuzzle(ctx); err != nil {
		return nil, fmt.Errorf("open puzzle: %w", err)
	}
	labels, err = r.page.PuzzleWords(ctx)
	if err != nil {
		return nil, fmt.Errorf("read board: %w", err)
	}
	words, err := puzzle.NewWords(labels)
	if err != nil {
		return nil, fmt.Errorf("read board: %w", err)
	}
	return puzzle.Labels(words), nil
}

// stop shuts the page down on a fresh context so a cancelled session still
// releases Chrome. A shutdown failure is only returned when nothing else
// failed first.
func (r *Runner) stop(errp *error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.shutdown)
	defer cancel()
	if err := r.page.Shutdown(ctx); err != nil {
		r.logger.Warn("browser shutdown failed", zap.Error(err))
		if *errp == nil {
			*errp = fmt.Errorf("shutdown browser: %w", err)
		}
	}
}

// CoordinatorConfig maps the solver settings onto the attempt cycle.
func CoordinatorConfig(cfg *config.Config) solver.CoordinatorConfig {
	cc := solver.DefaultCoordinatorConfig()
	cc.FeedbackRetries = cfg.Solver.FeedbackRetries
	setDuration(cfg, "solver.settle_delay", &cc.SettleDelay)
	setDuration(cfg, "solver.correct_settle_delay", &cc.CorrectSettleDelay)
	setDuration(cfg, "solver.feedback_poll_interval", &cc.FeedbackPollInterval)
	return cc
}

// LoopConfig maps the solver settings onto the end-of-game check.
func LoopConfig(cfg *config.Config) (solver.LoopConfig, error) {
	lc := solver.DefaultLoopConfig()
	banners, err := solver.NewBannerTable(cfg.Solver.Banners)
	if err != nil {
		return solver.LoopConfig{}, fmt.Errorf("solver.banners: %w", err)
	}
	policy, err := solver.ParseUnknownBannerPolicy(cfg.Solver.UnknownBanner)
	if err != nil {
		return solver.LoopConfig{}, fmt.Errorf("solver.unknown_banner: %w", err)
	}
	lc.Banners = banners
	lc.UnknownBanner = policy
	lc.BannerRetries = cfg.Solver.BannerRetries
	lc.MalformedRetries = cfg.Solver.MalformedRetries
	setDuration(cfg, "solver.banner_poll_interval", &lc.BannerPollInterval)
	return lc, nil
}

// setDuration overwrites dst only when the setting holds a valid duration.
func setDuration(cfg *config.Config, name string, dst *time.Duration) {
	if v, ok := cfg.LookupDuration(name); ok {
		*dst = v
	}
}

// ExitCode maps a session result to a process exit status: 0 solved,
// 1 not solved, 2 aborted by an error.
func ExitCode(report *Report, err error) int {
	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		return 2
	case report != nil && report.Solved():
		return 0
	default:
		return 1
	}
}
