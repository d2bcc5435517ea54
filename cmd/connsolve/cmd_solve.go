package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"connsolve/internal/browser"
	"connsolve/internal/perception"
	"connsolve/internal/session"
	"connsolve/internal/ux"

	"github.com/spf13/cobra"
)

var (
	showReasoning bool
	jsonOutput    bool
)

// solveCmd plays one full session
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Open the puzzle and play it to the end",
	Long: `Launches Chrome, opens the puzzle and plays until it is solved, the mistakes
run out or an error stops the session. Exits 0 when solved, 1 when not, and 2
when the session was aborted by an error.`,
	Args: cobra.NoArgs,
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().BoolVar(&showReasoning, "reasoning", false, "Print the model's reasoning for each attempt")
	solveCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
}

func runSolve(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateCredentials(); err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	clients, err := perception.NewClientsFromConfig(ctx, cfg.LLM, cfg.Duration("llm.timeout"), logger)
	if err != nil {
		return err
	}
	proposer, err := perception.NewProposer(clients.Reasoner, clients.Parser, perception.ProposerConfig{
		MaxRetries: cfg.LLM.MaxRetries,
		RetryBase:  time.Second,
	}, logger)
	if err != nil {
		return err
	}
	driver := browser.NewDriver(browser.ConfigFrom(cfg), logger)

	report, runErr := session.NewRunner(cfg, driver, proposer, logger).Run(ctx)
	if err := writeReport(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if code := session.ExitCode(report, runErr); code != 0 {
		return &exitError{code: code, err: runErr}
	}
	return nil
}

func writeReport(w io.Writer, report *session.Report) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		out := struct {
			*session.Report
			Error string `json:"error,omitempty"`
		}{Report: report}
		if report.Err != nil {
			out.Error = report.Err.Error()
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return nil
	}
	return ux.RenderReport(w, report, ux.Options{Width: 80, Color: true, Rationale: showReasoning})
}
