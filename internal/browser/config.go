package browser

import (
	"time"

	"connsolve/internal/config"
)

// Config holds browser configuration.
type Config struct {
	PuzzleURL         string
	DebuggerURL       string
	Bin               string
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	OptionalTimeout   time.Duration
	ClickDelay        time.Duration
	Selectors         config.Selectors
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return ConfigFrom(config.DefaultConfig())
}

// ConfigFrom extracts the driver settings from the application config.
func ConfigFrom(c *config.Config) Config {
	b := c.Browser
	return Config{
		PuzzleURL:         b.PuzzleURL,
		DebuggerURL:       b.DebuggerURL,
		Bin:               b.Bin,
		Headless:          b.Headless,
		ViewportWidth:     b.ViewportWidth,
		ViewportHeight:    b.ViewportHeight,
		NavigationTimeout: c.Duration("browser.navigation_timeout"),
		ElementTimeout:    c.Duration("browser.element_timeout"),
		OptionalTimeout:   c.Duration("browser.optional_timeout"),
		ClickDelay:        c.Duration("browser.click_delay"),
		Selectors:         b.Selectors,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}
