package ux

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"connsolve/internal/puzzle"
	"connsolve/internal/session"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

// Options control report rendering.
type Options struct {
	Width     int  // wrap width for rationale text; 0 means 80
	Color     bool // use the terminal's colour style for rationale markdown
	Rationale bool // include the model's reasoning per attempt
}

var groupColors = []lipgloss.Color{Yellow, Green, Blue, Purple}

// RenderReport writes a human-readable summary of a session.
func RenderReport(w io.Writer, r *session.Report, opts Options) error {
	s := DefaultStyles()
	var sb strings.Builder

	title := "Connections"
	if r.SessionID != "" {
		title += " " + s.Muted.Render("session "+r.SessionID)
	}
	sb.WriteString(s.Title.Render(title) + "\n")
	sb.WriteString(verdictLine(s, r) + "\n")
	if r.Usage.Calls > 0 {
		sb.WriteString(s.Muted.Render(fmt.Sprintf("%d model calls, %d tokens in, %d out", r.Usage.Calls, r.Usage.Input, r.Usage.Output)) + "\n")
	}
	sb.WriteString("\n")

	if len(r.Words) > 0 {
		sb.WriteString(BoardView(s, r.Words))
		sb.WriteString("\n")
	}

	if len(r.History) > 0 {
		table := NewSimpleTable("Attempts", []string{"#", "Words", "Result"})
		found := 0
		for _, a := range r.History {
			result := a.Outcome.String()
			words := strings.Join(a.Labels(), ", ")
			switch {
			case a.Correct():
				words = lipgloss.NewStyle().Foreground(groupColors[found%len(groupColors)]).Render(words)
				found++
			case a.OneAway:
				result += " (one away)"
			}
			table.AddRow(strconv.Itoa(a.Number), words, result)
		}
		sb.WriteString(table.View(s))
		sb.WriteString("\n")
	}

	if opts.Rationale && len(r.History) > 0 {
		md, err := renderRationale(r.History, opts)
		if err != nil {
			return err
		}
		sb.WriteString(md)
	}

	if r.Err != nil {
		sb.WriteString(s.Error.Render("error: ") + r.Err.Error() + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func verdictLine(s Styles, r *session.Report) string {
	attempts := len(r.History)
	switch r.Verdict {
	case puzzle.Solved:
		return s.Success.Render("SOLVED") + fmt.Sprintf(" in %d attempts, %d mistakes left", attempts, r.MistakesRemaining)
	case puzzle.Failed:
		return s.Error.Render("FAILED") + fmt.Sprintf(" after %d attempts", attempts)
	default:
		return s.Warning.Render("UNFINISHED") + fmt.Sprintf(" after %d attempts, %d mistakes left", attempts, r.MistakesRemaining)
	}
}

// BoardView lays the sixteen words out as the game does, four per row.
func BoardView(s Styles, words []string) string {
	width := 0
	for _, w := range words {
		width = max(width, lipgloss.Width(w))
	}
	cell := s.Bold.Width(width+2).Align(lipgloss.Center).Border(lipgloss.RoundedBorder()).BorderForeground(Muted)

	var rows []string
	for i := 0; i < len(words); i += puzzle.GroupSize {
		end := min(i+puzzle.GroupSize, len(words))
		cells := make([]string, 0, puzzle.GroupSize)
		for _, w := range words[i:end] {
			cells = append(cells, cell.Render(w))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...) + "\n"
}

// RenderWords writes the board on its own.
func RenderWords(w io.Writer, words []string) error {
	_, err := io.WriteString(w, BoardView(DefaultStyles(), words))
	return err
}

func renderRationale(history []puzzle.Attempt, opts Options) (string, error) {
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	style := glamour.WithStandardStyle(styles.NoTTYStyle)
	if opts.Color {
		style = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}

	var md strings.Builder
	md.WriteString("## Reasoning\n\n")
	for _, a := range history {
		rationale := strings.TrimSpace(a.Rationale)
		if rationale == "" {
			rationale = "_no reasoning given_"
		}
		fmt.Fprintf(&md, "**%d. %s** (%s)\n\n%s\n\n", a.Number, strings.Join(a.Labels(), ", "), a.Outcome, rationale)
	}
	out, err := renderer.Render(md.String())
	if err != nil {
		return "", fmt.Errorf("render reasoning: %w", err)
	}
	return out, nil
}
