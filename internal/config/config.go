package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all connsolve configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Browser automation
	Browser BrowserConfig `yaml:"browser"`

	// Solve loop timing and end-of-game detection
	Solver SolverConfig `yaml:"solver"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the proposal generator.
type LLMConfig struct {
	Provider       string  `yaml:"provider" validate:"required,oneof=openai gemini"`
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url,omitempty" validate:"omitempty,url"`
	ReasoningModel string  `yaml:"reasoning_model" validate:"required"`
	ParsingModel   string  `yaml:"parsing_model" validate:"required"`
	Temperature    float32 `yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout        string  `yaml:"timeout"`
	MaxRetries     int     `yaml:"max_retries" validate:"gte=0,lte=10"`
	UsageFile      string  `yaml:"usage_file,omitempty"` // token ledger, accumulated across runs
}

// BrowserConfig configures the page driver.
type BrowserConfig struct {
	PuzzleURL         string    `yaml:"puzzle_url" validate:"required,url"`
	Headless          bool      `yaml:"headless"`
	DebuggerURL       string    `yaml:"debugger_url,omitempty"`
	Bin               string    `yaml:"bin,omitempty"`
	ViewportWidth     int       `yaml:"viewport_width" validate:"gte=0"`
	ViewportHeight    int       `yaml:"viewport_height" validate:"gte=0"`
	NavigationTimeout string    `yaml:"navigation_timeout"`
	ElementTimeout    string    `yaml:"element_timeout"`
	OptionalTimeout   string    `yaml:"optional_timeout"`
	ClickDelay        string    `yaml:"click_delay"`
	Selectors         Selectors `yaml:"selectors"`
}

// Selectors locate the page elements the driver touches.
type Selectors struct {
	CookieRejectText  string `yaml:"cookie_reject_text"`
	PlayText          string `yaml:"play_text" validate:"required"`
	ModalClose        string `yaml:"modal_close"`
	CardLabel         string `yaml:"card_label" validate:"required"` // fmt pattern taking the card index
	Submit            string `yaml:"submit" validate:"required"`
	Deselect          string `yaml:"deselect" validate:"required"`
	Toast             string `yaml:"toast" validate:"required"`
	MistakesRemaining string `yaml:"mistakes_remaining" validate:"required"`
	OutcomeTitle      string `yaml:"outcome_title" validate:"required"`
}

// SolverConfig configures the attempt cycle and the end-of-game check.
type SolverConfig struct {
	InitialMistakes      int            `yaml:"initial_mistakes" validate:"gte=1"`
	SettleDelay          string         `yaml:"settle_delay"`
	CorrectSettleDelay   string         `yaml:"correct_settle_delay"`
	FeedbackRetries      int            `yaml:"feedback_retries" validate:"gte=0"`
	FeedbackPollInterval string         `yaml:"feedback_poll_interval"`
	BannerRetries        int            `yaml:"banner_retries" validate:"gte=0"`
	BannerPollInterval   string         `yaml:"banner_poll_interval"`
	MalformedRetries     int            `yaml:"malformed_retries" validate:"gte=0"`
	UnknownBanner        string         `yaml:"unknown_banner" validate:"omitempty,oneof=continue abort"`
	Banners              map[string]int `yaml:"banners" validate:"required,min=1,dive,gte=4"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
	File   string `yaml:"file,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "openai",
			ReasoningModel: "gpt-4o-mini",
			ParsingModel:   "gpt-4o-2024-08-06",
			Temperature:    0.2,
			Timeout:        "120s",
			MaxRetries:     3,
		},

		Browser: BrowserConfig{
			PuzzleURL:         "https://www.nytimes.com/games/connections",
			Headless:          false,
			ViewportWidth:     1920,
			ViewportHeight:    1080,
			NavigationTimeout: "30s",
			ElementTimeout:    "10s",
			OptionalTimeout:   "5s",
			ClickDelay:        "500ms",
			Selectors: Selectors{
				CookieRejectText:  "Reject all",
				PlayText:          "Play",
				ModalClose:        "[data-testid='modal-close']",
				CardLabel:         "label[for='inner-card-%d']",
				Submit:            "button[data-testid='submit-btn']",
				Deselect:          "button[data-testid='deselect-btn']",
				Toast:             "#portal-toast-system",
				MistakesRemaining: "span[class*='mistakesRemainingBubbles']",
				OutcomeTitle:      "#conn-congrats__title",
			},
		},

		Solver: SolverConfig{
			InitialMistakes:      4,
			SettleDelay:          "2s",
			CorrectSettleDelay:   "2s",
			FeedbackRetries:      3,
			FeedbackPollInterval: "500ms",
			BannerRetries:        5,
			BannerPollInterval:   "1s",
			MalformedRetries:     2,
			UnknownBanner:        "continue",
			Banners: map[string]int{
				"Perfect!": 4,
				"Great!":   5,
				"Solid!":   6,
				"Phew!":    7,
			},
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if p := os.Getenv("CONNSOLVE_PROVIDER"); p != "" {
		c.UseProvider(p)
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(APIKeyEnv(c.LLM.Provider))
	}
	if m := os.Getenv("CONNSOLVE_MODEL"); m != "" {
		c.LLM.ReasoningModel = m
	}
	if u := os.Getenv("CONNSOLVE_CHROME_URL"); u != "" {
		c.Browser.DebuggerURL = u
	}
	if h := os.Getenv("CONNSOLVE_HEADLESS"); h != "" {
		if b, err := strconv.ParseBool(h); err == nil {
			c.Browser.Headless = b
		}
	}
}

// APIKeyEnv names the environment variable holding the key for provider.
func APIKeyEnv(provider string) string {
	switch provider {
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

// UseProvider switches provider, takes that provider's key from the
// environment and selects its default models.
func (c *Config) UseProvider(provider string) {
	if provider == c.LLM.Provider {
		return
	}
	c.LLM.Provider = provider
	c.LLM.APIKey = os.Getenv(APIKeyEnv(provider))
	switch provider {
	case "gemini":
		c.LLM.ReasoningModel = "gemini-2.5-flash"
		c.LLM.ParsingModel = "gemini-2.5-flash"
	case "openai":
		c.LLM.ReasoningModel = "gpt-4o-mini"
		c.LLM.ParsingModel = "gpt-4o-2024-08-06"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, d := range c.durations() {
		if d.raw == "" {
			continue
		}
		if _, err := time.ParseDuration(d.raw); err != nil {
			return fmt.Errorf("invalid config: %s: %w", name, err)
		}
	}
	return nil
}

// ValidateCredentials checks that the selected provider has a key.
func (c *Config) ValidateCredentials() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set %s or llm.api_key)", APIKeyEnv(c.LLM.Provider))
	}
	return nil
}

type duration struct {
	raw      string
	fallback time.Duration
}

func (c *Config) durations() map[string]duration {
	return map[string]duration{
		"llm.timeout":                   {c.LLM.Timeout, 120 * time.Second},
		"browser.navigation_timeout":    {c.Browser.NavigationTimeout, 30 * time.Second},
		"browser.element_timeout":       {c.Browser.ElementTimeout, 10 * time.Second},
		"browser.optional_timeout":      {c.Browser.OptionalTimeout, 5 * time.Second},
		"browser.click_delay":           {c.Browser.ClickDelay, 500 * time.Millisecond},
		"solver.settle_delay":           {c.Solver.SettleDelay, 2 * time.Second},
		"solver.correct_settle_delay":   {c.Solver.CorrectSettleDelay, 2 * time.Second},
		"solver.feedback_poll_interval": {c.Solver.FeedbackPollInterval, 500 * time.Millisecond},
		"solver.banner_poll_interval":   {c.Solver.BannerPollInterval, time.Second},
	}
}

// Duration returns the named duration setting, or its default when unset or
// unparsable.
func (c *Config) Duration(name string) time.Duration {
	if v, ok := c.LookupDuration(name); ok {
		return v
	}
	return c.durations()[name].fallback
}

// LookupDuration returns the named duration setting and whether it was set
// to a parsable value.
func (c *Config) LookupDuration(name string) (time.Duration, bool) {
	d, ok := c.durations()[name]
	if !ok || d.raw == "" {
		return 0, false
	}
	v, err := time.ParseDuration(d.raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
