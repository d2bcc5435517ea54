// Package browser drives the puzzle page in Chrome through the DevTools
// protocol. It opens the game, reads the board and plays the selections the
// solver asks for.
package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"connsolve/internal/logging"
	"connsolve/internal/puzzle"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoPage is returned by page operations before OpenPuzzle succeeds.
var ErrNoPage = errors.New("no puzzle page open")

// Session describes the open puzzle page.
type Session struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"target_id,omitempty"`
	URL       string    `json:"url"`
	StartedAt time.Time `json:"started_at"`
}

// Driver plays the puzzle in a single Chrome tab.
type Driver struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	session  Session
}

// NewDriver creates a driver. Chrome is not touched until Start.
func NewDriver(cfg Config, logger *zap.Logger) *Driver {
	return &Driver{
		cfg:    cfg,
		logger: logging.For(logger, logging.CategoryBrowser),
	}
}

// Start connects to cfg.DebuggerURL, or launches a local Chrome when none is
// set. Calling Start on a healthy driver is a no-op.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil {
		if _, err := d.browser.Version(); err == nil {
			return nil
		}
		d.logger.Warn("stale browser connection, reconnecting")
		_ = d.closeLocked(ctx)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	controlURL := d.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(d.cfg.Headless)
		if d.cfg.Bin != "" {
			l = l.Bin(d.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		d.launcher = l
		controlURL = u
	}

	// The connection outlives ctx so Shutdown can still close the tab after
	// the session is cancelled; operations bind their own ctx per call.
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		_ = d.closeLocked(ctx)
		return fmt.Errorf("connect to chrome: %w", err)
	}
	d.browser = browser
	d.logger.Info("browser connected",
		zap.Bool("launched", d.launcher != nil),
		zap.Bool("headless", d.cfg.Headless),
	)
	return nil
}

// Shutdown closes the page and, when the driver launched Chrome itself, the
// browser. A browser reached through DebuggerURL is left running.
func (d *Driver) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.closeLocked(ctx)
	d.logger.Info("browser shut down", zap.String("session", d.session.ID))
	return err
}

func (d *Driver) closeLocked(ctx context.Context) error {
	var errs []error
	if d.page != nil {
		if err := d.page.Context(ctx).Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
		d.page = nil
	}
	if d.browser != nil && d.launcher != nil {
		if err := d.browser.Context(ctx).Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	d.browser = nil
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
		d.launcher = nil
	}
	return errors.Join(errs...)
}


// OpenPuzzle opens the puzzle in a new tab and gets past the start screen:
// the cookie banner and the intro modal are dismissed when they show up, the
// Play button must be there.
func (d *Driver) OpenPuzzle(ctx context.Context) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser == nil {
		return Session{}, errors.New("browser not connected")
	}
	page, err := d.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return Session{}, fmt.Errorf("create page: %w", err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             d.cfg.GetViewportWidth(),
		Height:            d.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		d.logger.Warn("failed to set viewport", zap.Error(err))
	}

	timer := logging.StartTimer(d.logger, "navigate")
	nav := page.Context(ctx).Timeout(d.cfg.NavigationTimeout)
	err = nav.Navigate(d.cfg.PuzzleURL)
	if err == nil {
		err = nav.WaitLoad()
	}
	nav.CancelTimeout()
	timer.Stop()
	if err != nil {
		_ = page.Close()
		return Session{}, fmt.Errorf("navigate to %s: %w", d.cfg.PuzzleURL, err)
	}
	d.page = page
	d.session = Session{
		ID:        uuid.NewString(),
		TargetID:  string(page.TargetID),
		URL:       d.cfg.PuzzleURL,
		StartedAt: time.Now(),
	}

	sel := d.cfg.Selectors
	if sel.CookieRejectText != "" {
		d.clickOptional(ctx, "cookie banner", func(p *rod.Page) (*rod.Element, error) {
			return p.ElementR("button", textPattern(sel.CookieRejectText))
		})
	}
	err = d.within(ctx, d.cfg.ElementTimeout, func(p *rod.Page) error {
		el, err := p.ElementR("button", textPattern(sel.PlayText))
		if err != nil {
			return fmt.Errorf("element not found: %w", err)
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
	if err != nil {
		return d.session, fmt.Errorf("play button: %w", err)
	}
	if sel.ModalClose != "" {
		d.clickOptional(ctx, "intro modal", func(p *rod.Page) (*rod.Element, error) {
			return p.Element(sel.ModalClose)
		})
	}

	d.logger.Info("puzzle opened", zap.String("session", d.session.ID), zap.String("url", d.session.URL))
	return d.session, nil
}

// PuzzleWords reads the sixteen card labels in board order.
func (d *Driver) PuzzleWords(ctx context.Context) ([]string, error) {
	labels := make([]string, 0, puzzle.WordCount)
	err := d.withPage(ctx, d.cfg.ElementTimeout, func(p *rod.Page) error {
		for i := 0; i < puzzle.WordCount; i++ {
			el, err := p.Element(cardSelector(d.cfg.Selectors.CardLabel, i))
			if err != nil {
				return fmt.Errorf("card %d: element not found: %w", i, err)
			}
			text, err := el.Text()
			if err != nil {
				return fmt.Errorf("card %d: %w", i, err)
			}
			labels = append(labels, strings.TrimSpace(text))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.logger.Debug("board read", zap.Strings("words", labels))
	return labels, nil
}

// SubmitSelection clicks the cards in order, pausing between clicks, then
// presses submit.
func (d *Driver) SubmitSelection(ctx context.Context, words []puzzle.Word) error {
	return d.withPage(ctx, d.cfg.ElementTimeout, func(p *rod.Page) error {
		for _, w := range words {
			el, err := p.Element(cardSelector(d.cfg.Selectors.CardLabel, w.Index))
			if err != nil {
				return fmt.Errorf("card %s: element not found: %w", w, err)
			}
			if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
				return fmt.Errorf("click %s: %w", w, err)
			}
			if err := pause(ctx, d.cfg.ClickDelay); err != nil {
				return err
			}
		}
		el, err := p.Element(d.cfg.Selectors.Submit)
		if err != nil {
			return fmt.Errorf("submit: element not found: %w", err)
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("submit: %w", err)
		}
		d.logger.Debug("selection submitted", zap.Strings("words", puzzle.Labels(words)))
		return nil
	})
}

// ReadFeedbackSignals reads the toast and the mistake bubbles without
// waiting. A missing element leaves its signal nil.
func (d *Driver) ReadFeedbackSignals(ctx context.Context) (puzzle.Signals, error) {
	var sig puzzle.Signals
	err := d.withPage(ctx, 0, func(p *rod.Page) error {
		has, toast, err := p.Has(d.cfg.Selectors.Toast)
		if err != nil {
			return fmt.Errorf("toast: %w", err)
		}
		if has {
			text, err := toast.Text()
			if err != nil {
				return fmt.Errorf("toast text: %w", err)
			}
			oneAway := isOneAway(text)
			sig.OneAway = &oneAway
		}

		has, bubbles, err := p.Has(d.cfg.Selectors.MistakesRemaining)
		if err != nil {
			return fmt.Errorf("mistakes: %w", err)
		}
		if has {
			spans, err := bubbles.Elements("span")
			if err != nil {
				return fmt.Errorf("mistake bubbles: %w", err)
			}
			n := len(spans)
			sig.MistakesRemaining = &n
		}
		return nil
	})
	if err != nil {
		return puzzle.Signals{}, err
	}
	d.logger.Debug("feedback read",
		zap.Any("one_away", sig.OneAway),
		zap.Any("mistakes_remaining", sig.MistakesRemaining),
	)
	return sig, nil
}

// ClearSelection presses the deselect button.
func (d *Driver) ClearSelection(ctx context.Context) error {
	return d.withPage(ctx, d.cfg.ElementTimeout, func(p *rod.Page) error {
		el, err := p.Element(d.cfg.Selectors.Deselect)
		if err != nil {
			return fmt.Errorf("deselect: element not found: %w", err)
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

// ReadOutcomeBanner returns the end-of-game title, or "" while none is shown.
func (d *Driver) ReadOutcomeBanner(ctx context.Context) (string, error) {
	var banner string
	err := d.withPage(ctx, 0, func(p *rod.Page) error {
		has, el, err := p.Has(d.cfg.Selectors.OutcomeTitle)
		if err != nil || !has {
			return err
		}
		text, err := el.Text()
		if err != nil {
			return fmt.Errorf("banner text: %w", err)
		}
		banner = strings.TrimSpace(text)
		return nil
	})
	return banner, err
}

// withPage runs fn against the open page, bounded by timeout when positive.
func (d *Driver) withPage(ctx context.Context, timeout time.Duration, fn func(p *rod.Page) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page == nil {
		return ErrNoPage
	}
	return d.within(ctx, timeout, fn)
}

// within must be called with d.mu held.
func (d *Driver) within(ctx context.Context, timeout time.Duration, fn func(p *rod.Page) error) error {
	p := d.page.Context(ctx)
	if timeout > 0 {
		p = p.Timeout(timeout)
		defer p.CancelTimeout()
	}
	return fn(p)
}

// clickOptional clicks an element that may not be shown. Absence is logged,
// not returned. Must be called with d.mu held.
func (d *Driver) clickOptional(ctx context.Context, name string, find func(p *rod.Page) (*rod.Element, error)) {
	err := d.within(ctx, d.cfg.OptionalTimeout, func(p *rod.Page) error {
		el, err := find(p)
		if err != nil {
			return err
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
	if err != nil {
		d.logger.Debug("optional element skipped", zap.String("element", name), zap.Error(err))
		return
	}
	d.logger.Debug("optional element dismissed", zap.String("element", name))
}

// cardSelector fills the card index into pattern.
func cardSelector(pattern string, index int) string {
	return fmt.Sprintf(pattern, index)
}

// textPattern is a JS regex matching an element whose whole text is text.
func textPattern(text string) string {
	return `^\s*` + regexp.QuoteMeta(strings.TrimSpace(text)) + `\s*$`
}

func isOneAway(toast string) bool {
	return strings.Contains(strings.ToLower(toast), "one away")
}

func pause(ctx context.Context, d time.Duration) error {
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
