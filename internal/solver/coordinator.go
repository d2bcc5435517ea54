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

// CoordinatorConfig holds the page timing knobs of one attempt cycle.
type CoordinatorConfig struct {
	// SettleDelay is waited after submitting, before feedback is read.
	SettleDelay time.Duration
	// CorrectSettleDelay is waited after a correct group while the page
	// animates the solved row.
	CorrectSettleDelay time.Duration
	// FeedbackRetries is how many extra reads are made while the mistake
	// counter is missing.
	FeedbackRetries int
	// FeedbackPollInterval separates those reads.
	FeedbackPollInterval time.Duration
}

// DefaultCoordinatorConfig mirrors the page's animation timings.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		SettleDelay:          2 * time.Second,
		CorrectSettleDelay:   2 * time.Second,
		FeedbackRetries:      3,
		FeedbackPollInterval: 500 * time.Millisecond,
	}
}

// Coordinator performs one full attempt cycle: propose, submit, read
// feedback, record.
type Coordinator struct {
	proposer Proposer
	driver   Driver
	cfg      CoordinatorConfig
	logger   *zap.Logger
}

// NewCoordinator creates a coordinator. A nil logger disables logging.
func NewCoordinator(p Proposer, d Driver, cfg CoordinatorConfig, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{proposer: p, driver: d, cfg: cfg, logger: logger}
}

// Step makes one attempt against state. The attempt is appended to the
// history only once its outcome is known; on any earlier failure the state
// is left untouched.
func (c *Coordinator) Step(ctx context.Context, state *puzzle.State) (puzzle.Attempt, error) {
	if !state.Running() {
		return puzzle.Attempt{}, puzzle.ErrSessionOver
	}

	proposal, err := c.proposer.Propose(ctx, state.Words(), state.History())
	if err != nil {
		return puzzle.Attempt{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	words, err := state.Pick(proposal.Words)
	if err != nil {
		c.logger.Warn("rejected proposal", zap.Strings("words", proposal.Words), zap.Error(err))
		return puzzle.Attempt{}, fmt.Errorf("%w: %w", ErrMalformedProposal, err)
	}

	number := state.Len() + 1
	c.logger.Info("submitting group",
		zap.Int("attempt", number),
		zap.Strings("words", puzzle.Labels(words)),
	)
	if err := c.driver.SubmitSelection(ctx, words); err != nil {
		return puzzle.Attempt{}, driverFault("submit selection", err)
	}
	if err := sleepCtx(ctx, c.cfg.SettleDelay); err != nil {
		return puzzle.Attempt{}, err
	}

	prior := state.MistakesRemaining()
	result, err := c.readFeedback(ctx, prior)
	if err != nil {
		return puzzle.Attempt{}, err
	}

	attempt := puzzle.Attempt{
		Words:     words,
		Rationale: proposal.Rationale,
		Outcome:   result.Outcome,
		OneAway:   result.OneAway,
	}
	if attempt.Number, err = state.Append(attempt); err != nil {
		return puzzle.Attempt{}, fmt.Errorf("record attempt %d: %w", number, err)
	}
	if got := state.MistakesRemaining(); got != result.MistakesRemaining {
		return attempt, &InconsistentFeedbackError{Prior: prior, Observed: result.MistakesRemaining}
	}

	c.logger.Info("attempt resolved",
		zap.Int("attempt", attempt.Number),
		zap.Stringer("outcome", attempt.Outcome),
		zap.Bool("one_away", attempt.OneAway),
		zap.Int("mistakes_remaining", state.MistakesRemaining()),
	)

	if result.ClearSelection {
		if err := c.driver.ClearSelection(ctx); err != nil {
			return attempt, driverFault("clear selection", err)
		}
	}
	if attempt.Correct() {
		if err := sleepCtx(ctx, c.cfg.CorrectSettleDelay); err != nil {
			return attempt, err
		}
	}
	return attempt, nil
}

// readFeedback reads the page signals until the mistake counter shows up or
// the retry budget runs out.
func (c *Coordinator) readFeedback(ctx context.Context, prior int) (Interpretation, error) {
	var result Interpretation
	err := retry.Do(ctx, pollBackoff(c.cfg.FeedbackRetries, c.cfg.FeedbackPollInterval), func(ctx context.Context) error {
		sig, err := c.driver.ReadFeedbackSignals(ctx)
		if err != nil {
			return driverFault("read feedback", err)
		}
		result, err = Interpret(sig, prior)
		if errors.Is(err, ErrFeedbackUnavailable) {
			c.logger.Debug("mistake counter not rendered yet")
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, ErrFeedbackUnavailable) {
		return Interpretation{}, fmt.Errorf("%w: %w", ErrSessionFault, err)
	}
	return result, err
}

func pollBackoff(retries int, interval time.Duration) retry.Backoff {
	if retries < 0 {
		retries = 0
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	return retry.WithMaxRetries(uint64(retries), retry.NewConstant(interval))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
