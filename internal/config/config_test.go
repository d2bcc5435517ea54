package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DEFAULTS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONNSOLVE_PROVIDER", "CONNSOLVE_MODEL", "CONNSOLVE_CHROME_URL", "CONNSOLVE_HEADLESS",
		"OPENAI_API_KEY", "GEMINI_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected Provider=openai, got %s", cfg.LLM.Provider)
	}
	if cfg.Solver.InitialMistakes != 4 {
		t.Errorf("expected InitialMistakes=4, got %d", cfg.Solver.InitialMistakes)
	}
	if got := cfg.Solver.Banners["Phew!"]; got != 7 {
		t.Errorf("expected Phew!=7, got %d", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "connsolve.yaml")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "sk-test"
	cfg.Solver.UnknownBanner = "abort"
	cfg.Browser.Headless = true
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", loaded.LLM.APIKey)
	assert.Equal(t, "abort", loaded.Solver.UnknownBanner)
	assert.True(t, loaded.Browser.Headless)
	assert.Equal(t, cfg.Solver.Banners, loaded.Solver.Banners)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Browser.PuzzleURL, cfg.Browser.PuzzleURL)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "connsolve.yaml")
	data := []byte("solver:\n  settle_delay: 3s\n  banners:\n    \"Whew!\": 7\n")
	require.NoError(t, os.WriteFile(path, data, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Duration("solver.settle_delay"))
	assert.Equal(t, 4, cfg.Solver.InitialMistakes)
	assert.Equal(t, 7, cfg.Solver.Banners["Whew!"])
	assert.Equal(t, 4, cfg.Solver.Banners["Perfect!"], "file banners extend the defaults")
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connsolve.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

func TestEnvOverrides(t *testing.T) {
	t.Run("provider key picked up", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
	})

	t.Run("file key wins over environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := DefaultConfig()
		cfg.LLM.APIKey = "file-key"
		cfg.applyEnvOverrides()
		assert.Equal(t, "file-key", cfg.LLM.APIKey)
	})

	t.Run("switch to gemini", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONNSOLVE_PROVIDER", "gemini")
		t.Setenv("GEMINI_API_KEY", "gm-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "gemini", cfg.LLM.Provider)
		assert.Equal(t, "gm-key", cfg.LLM.APIKey)
		assert.Equal(t, "gemini-2.5-flash", cfg.LLM.ParsingModel)
	})

	t.Run("browser settings", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONNSOLVE_CHROME_URL", "ws://127.0.0.1:9222/devtools/browser/x")
		t.Setenv("CONNSOLVE_HEADLESS", "true")
		t.Setenv("CONNSOLVE_MODEL", "gpt-4.1-mini")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/x", cfg.Browser.DebuggerURL)
		assert.True(t, cfg.Browser.Headless)
		assert.Equal(t, "gpt-4.1-mini", cfg.LLM.ReasoningModel)
	})

	t.Run("unparsable headless ignored", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONNSOLVE_HEADLESS", "sometimes")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.False(t, cfg.Browser.Headless)
	})
}

func TestUseProvider_SameProviderKeepsKey(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "kept"
	cfg.UseProvider("openai")
	assert.Equal(t, "kept", cfg.LLM.APIKey)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"unknown provider":   {func(c *Config) { c.LLM.Provider = "llama" }, "Provider"},
		"negative retries":   {func(c *Config) { c.LLM.MaxRetries = -1 }, "MaxRetries"},
		"bad puzzle url":     {func(c *Config) { c.Browser.PuzzleURL = "not a url" }, "PuzzleURL"},
		"no submit selector": {func(c *Config) { c.Browser.Selectors.Submit = "" }, "Submit"},
		"zero mistakes":      {func(c *Config) { c.Solver.InitialMistakes = 0 }, "InitialMistakes"},
		"negative rejects":   {func(c *Config) { c.Solver.MalformedRetries = -1 }, "MalformedRetries"},
		"bad policy":         {func(c *Config) { c.Solver.UnknownBanner = "shrug" }, "UnknownBanner"},
		"banner below four":  {func(c *Config) { c.Solver.Banners["Lucky!"] = 3 }, "Banners"},
		"no banners":         {func(c *Config) { c.Solver.Banners = nil }, "Banners"},
		"bad log level":      {func(c *Config) { c.Logging.Level = "loud" }, "Level"},
		"bad duration":       {func(c *Config) { c.Solver.SettleDelay = "soon" }, "solver.settle_delay"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Provider = "gemini"
	err := cfg.ValidateCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	cfg.LLM.APIKey = "k"
	assert.NoError(t, cfg.ValidateCredentials())
}

func TestDuration(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 500*time.Millisecond, cfg.Duration("browser.click_delay"))

	cfg.Browser.ClickDelay = ""
	assert.Equal(t, 500*time.Millisecond, cfg.Duration("browser.click_delay"), "empty falls back")

	cfg.Solver.BannerPollInterval = "250ms"
	assert.Equal(t, 250*time.Millisecond, cfg.Duration("solver.banner_poll_interval"))

	assert.Zero(t, cfg.Duration("solver.nonexistent"))

	_, ok := cfg.LookupDuration("browser.click_delay")
	assert.False(t, ok, "empty is not set")
	cfg.Browser.ClickDelay = "fast"
	_, ok = cfg.LookupDuration("browser.click_delay")
	assert.False(t, ok, "unparsable is not set")
	v, ok := cfg.LookupDuration("solver.banner_poll_interval")
	assert.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, v)
}
