// Package solver drives a Connections session: it asks a proposer for a
// group, plays it through a page driver, turns the page's feedback into an
// outcome and decides when the session is over.
package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"connsolve/internal/puzzle"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// LoopConfig configures end-of-game detection.
type LoopConfig struct {
	Banners       BannerTable
	UnknownBanner UnknownBannerPolicy
	// BannerRetries is how many extra banner reads are made once every group
	// has been found.
	BannerRetries      int
	BannerPollInterval time.Duration
	// MalformedRetries is how many proposals in a row may be rejected before
	// the loop gives up. Nothing is clicked for a rejected proposal.
	MalformedRetries int
}

// DefaultLoopConfig uses the default banner table.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		Banners:            mustBannerTable(DefaultBanners()),
		UnknownBanner:      BannerContinue,
		BannerRetries:      5,
		BannerPollInterval: time.Second,
		MalformedRetries:   2,
	}
}

func mustBannerTable(entries map[string]int) BannerTable {
	table, err := NewBannerTable(entries)
	if err != nil {
		panic(fmt.Sprintf("solver: invalid banner table: %v", err))
	}
	return table
}

// Loop repeats attempt cycles until the session is solved or out of mistakes.
type Loop struct {
	state  *puzzle.State
	coord  *Coordinator
	driver Driver
	cfg    LoopConfig
	logger *zap.Logger
}

// NewLoop creates a loop over state. The driver is used for banner reads and
// should be the one the coordinator plays through.
func NewLoop(state *puzzle.State, coord *Coordinator, driver Driver, cfg LoopConfig, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{state: state, coord: coord, driver: driver, cfg: cfg, logger: logger}
}

// State returns the state the loop mutates.
func (l *Loop) State() *puzzle.State {
	return l.state
}

// Run plays until a verdict is reached and reports whether the puzzle was
// solved. On error the verdict is left as it was and the history holds every
// attempt that resolved before the failure.
func (l *Loop) Run(ctx context.Context) (bool, error) {
	rejected := 0
	for l.state.Running() {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if _, err := l.coord.Step(ctx, l.state); err != nil {
			if !errors.Is(err, ErrMalformedProposal) || rejected >= l.cfg.MalformedRetries {
				return false, err
			}
			rejected++
			l.logger.Warn("asking for another proposal",
				zap.Int("rejected", rejected),
				zap.Int("max", l.cfg.MalformedRetries),
				zap.Error(err),
			)
			continue
		}
		rejected = 0
		l.logState()

		if l.state.MistakesRemaining() == 0 {
			if err := l.state.MarkFailed(); err != nil {
				return false, fmt.Errorf("mark failed: %w", err)
			}
			l.logger.Info("out of mistakes",
				zap.Int("attempts", l.state.Len()),
				zap.Int("groups_found", l.state.CorrectGroups()),
			)
			break
		}
		// No banner can exist before four groups could have been found.
		if l.state.Len() < puzzle.GroupCount {
			continue
		}

		solved, err := l.checkSolved(ctx)
		if err != nil {
			return false, err
		}
		if solved {
			if err := l.state.MarkSolved(); err != nil {
				return false, fmt.Errorf("mark solved: %w", err)
			}
			l.logger.Info("puzzle solved",
				zap.Int("attempts", l.state.Len()),
				zap.Int("mistakes_made", l.state.InitialMistakes()-l.state.MistakesRemaining()),
			)
			break
		}
		if l.state.CorrectGroups() == puzzle.GroupCount {
			return false, fmt.Errorf("%w: %d groups found in %d attempts", ErrOutcomeUndetermined, puzzle.GroupCount, l.state.Len())
		}
	}
	return l.state.Solved(), nil
}

var errBannerPending = errors.New("banner does not match attempt count")

// checkSolved reads the end-of-game banner and compares its rank with the
// number of attempts made. Once every group is found the banner is polled,
// since no further attempt can be made.
func (l *Loop) checkSolved(ctx context.Context) (bool, error) {
	retries := 0
	if l.state.CorrectGroups() == puzzle.GroupCount {
		retries = l.cfg.BannerRetries
	}
	attempts := l.state.Len()

	err := retry.Do(ctx, pollBackoff(retries, l.cfg.BannerPollInterval), func(ctx context.Context) error {
		banner, err := l.driver.ReadOutcomeBanner(ctx)
		if err != nil {
			return driverFault("read outcome banner", err)
		}
		if banner == "" {
			return retry.RetryableError(errBannerPending)
		}
		expected, ok := l.cfg.Banners.Lookup(banner)
		if !ok {
			if l.cfg.UnknownBanner == BannerAbort {
				return fmt.Errorf("%w: %q", ErrUnknownBanner, banner)
			}
			l.logger.Warn("unrecognized outcome banner", zap.String("banner", banner))
			return retry.RetryableError(errBannerPending)
		}
		if expected != attempts {
			l.logger.Debug("banner rank does not match attempts",
				zap.String("banner", banner),
				zap.Int("expected", expected),
				zap.Int("attempts", attempts),
			)
			return retry.RetryableError(errBannerPending)
		}
		return nil
	})
	if errors.Is(err, errBannerPending) {
		return false, nil
	}
	return err == nil, err
}

func (l *Loop) logState() {
	l.logger.Debug("puzzle state",
		zap.Int("attempts", l.state.Len()),
		zap.Int("correct_groups", l.state.CorrectGroups()),
		zap.Int("mistakes_remaining", l.state.MistakesRemaining()),
		zap.Stringer("verdict", l.state.Verdict()),
		zap.Any("history", l.state.History()),
	)
}
