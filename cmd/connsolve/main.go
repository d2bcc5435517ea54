// Command connsolve plays the daily Connections puzzle in a browser, asking a
// language model for each guess.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connsolve/internal/config"
	"connsolve/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	envFile    string
	headless   bool
	timeout    time.Duration
	provider   string

	cfg    *config.Config
	logger *zap.Logger
)

const skipConfig = "skip-config"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "connsolve",
	Short: "Solve the Connections puzzle with an LLM",
	Long: `connsolve opens the Connections puzzle in Chrome, reads the sixteen words and
plays one guess at a time. Each guess is proposed by a language model; the page's
feedback decides whether it was right, one away or wrong, and the session ends
when the game shows its end-of-game banner or the mistakes run out.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}
		if err := loadEnvFile(envFile); err != nil {
			return err
		}
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded

		logCfg := logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, File: cfg.Logging.File}
		if verbose {
			logCfg.Level = "debug"
		}
		logger, err = logging.New(logCfg)
		if err != nil {
			return err
		}
		logging.For(logger, logging.CategoryBoot).Debug("configuration loaded",
			zap.String("config", configPath),
			zap.String("provider", cfg.LLM.Provider),
			zap.Bool("headless", cfg.Browser.Headless),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "connsolve.yaml", "Config file (defaults apply when missing)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "File with API keys to load into the environment")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "Run Chrome without a window")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Minute, "Session timeout")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "LLM provider: openai or gemini")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(wordsCmd)
	rootCmd.AddCommand(configCmd)
}

// loadEnvFile loads KEY=value pairs without overriding variables that are
// already set. A missing file is fine.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if provider != "" {
		c.UseProvider(provider)
	}
	if cmd.Flags().Changed("headless") {
		c.Browser.Headless = headless
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// commandContext is cancelled by SIGINT/SIGTERM or when --timeout elapses.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if !errors.As(err, &ee) || ee.err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(exitCode(err))
	}
}
