package main

import (
	"fmt"
	"strings"

	"connsolve/internal/browser"
	"connsolve/internal/session"
	"connsolve/internal/ux"

	"github.com/spf13/cobra"
)

var plainWords bool

// wordsCmd prints today's board without playing
var wordsCmd = &cobra.Command{
	Use:   "words",
	Short: "Print the sixteen words on today's board",
	Args:  cobra.NoArgs,
	RunE:  runWords,
}

func init() {
	wordsCmd.Flags().BoolVar(&plainWords, "plain", false, "One word per line, no layout")
}

func runWords(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	driver := browser.NewDriver(browser.ConfigFrom(cfg), logger)
	words, err := session.NewRunner(cfg, driver, nil, logger).Words(ctx)
	if err != nil {
		return err
	}
	if plainWords {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(words, "\n"))
		return err
	}
	return ux.RenderWords(cmd.OutOrStdout(), words)
}
