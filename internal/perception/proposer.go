package perception

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"connsolve/internal/logging"
	"connsolve/internal/puzzle"
	"connsolve/internal/usage"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

var (
	// ErrUnparseable is returned when the parsing stage does not yield a
	// proposal object.
	ErrUnparseable = errors.New("model reply is not a proposal")

	errShape = errors.New("proposal does not fit the board")
)

// ProposerConfig bounds the proposer's own retries. Retries cover transport
// errors, empty or unparseable replies and proposals that do not fit the
// board.
type ProposerConfig struct {
	MaxRetries int
	RetryBase  time.Duration
}

// DefaultProposerConfig returns sensible defaults.
func DefaultProposerConfig() ProposerConfig {
	return ProposerConfig{MaxRetries: 3, RetryBase: time.Second}
}

// Proposer asks a model for the next group of four.
type Proposer struct {
	reasoner LLMClient
	parser   JSONClient
	prompts  *Prompts
	cfg      ProposerConfig
	logger   *zap.Logger
}

// NewProposer builds a Proposer over the embedded prompts.
func NewProposer(reasoner LLMClient, parser JSONClient, cfg ProposerConfig, logger *zap.Logger) (*Proposer, error) {
	if reasoner == nil || parser == nil {
		return nil, errors.New("proposer needs a reasoning and a parsing client")
	}
	prompts, err := LoadPrompts()
	if err != nil {
		return nil, err
	}
	return &Proposer{
		reasoner: reasoner,
		parser:   parser,
		prompts:  prompts,
		cfg:      cfg,
		logger:   logging.For(logger, logging.CategoryPerception),
	}, nil
}

// Propose returns the model's next guess. When every try yields a proposal
// that does not fit the board, the last one is returned anyway and judged by
// the caller.
func (p *Proposer) Propose(ctx context.Context, words []puzzle.Word, history []puzzle.Attempt) (puzzle.Proposal, error) {
	timer := logging.StartTimer(p.logger, "propose")
	defer timer.StopWithThreshold(time.Minute)

	var (
		last  puzzle.Proposal
		tries int
	)
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		tries++
		prop, err := p.proposeOnce(ctx, words, history)
		if err == nil {
			last = prop
			return nil
		}
		if errors.Is(err, errShape) {
			last = prop
		}
		if ctx.Err() != nil || permanent(err) {
			return err
		}
		p.logger.Warn("proposal attempt failed", zap.Int("try", tries), zap.Error(err))
		return retry.RetryableError(err)
	})
	switch {
	case err == nil:
	case errors.Is(err, errShape) && ctx.Err() == nil:
		p.logger.Warn("returning ill-fitting proposal", zap.Int("tries", tries), zap.Strings("words", last.Words))
		return last, nil
	default:
		return puzzle.Proposal{}, fmt.Errorf("propose after %d tries: %w", tries, err)
	}

	p.logger.Info("proposal ready",
		zap.Strings("words", last.Words),
		zap.Int("tries", tries),
		zap.Int("history", len(history)),
	)
	return last, nil
}

func (p *Proposer) proposeOnce(ctx context.Context, words []puzzle.Word, history []puzzle.Attempt) (puzzle.Proposal, error) {
	system, user, err := p.prompts.Reasoning(words, history)
	if err != nil {
		return puzzle.Proposal{}, err
	}
	reasoning, err := p.reasoner.CompleteWithSystem(usage.WithOperation(ctx, "reasoning"), system, user)
	if err != nil {
		return puzzle.Proposal{}, fmt.Errorf("reasoning stage: %w", err)
	}
	p.logger.Debug("reasoning stage done", zap.Int("len", len(reasoning)))

	system, user, err = p.prompts.Parsing(reasoning)
	if err != nil {
		return puzzle.Proposal{}, err
	}
	raw, err := p.parser.CompleteJSON(usage.WithOperation(ctx, "parsing"), system, user)
	if err != nil {
		return puzzle.Proposal{}, fmt.Errorf("parsing stage: %w", err)
	}

	prop, err := ParseProposal(raw)
	if err != nil {
		return puzzle.Proposal{}, err
	}
	return prop, checkFit(words, history, prop)
}

func (p *Proposer) backoff() retry.Backoff {
	retries := p.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	base := p.cfg.RetryBase
	if base <= 0 {
		base = time.Millisecond
	}
	return retry.WithMaxRetries(uint64(retries), retry.NewExponential(base))
}

// ParseProposal decodes a {"words": [...], "reasoning": "..."} object from a
// model reply. Markdown fences and surrounding prose are ignored.
func ParseProposal(raw string) (puzzle.Proposal, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return puzzle.Proposal{}, fmt.Errorf("%w: no JSON object in %q", ErrUnparseable, truncate(raw, 80))
	}

	var prop puzzle.Proposal
	if err := json.Unmarshal([]byte(raw[start:end+1]), &prop); err != nil {
		return puzzle.Proposal{}, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}
	if len(prop.Words) == 0 {
		return puzzle.Proposal{}, fmt.Errorf("%w: no words", ErrUnparseable)
	}
	for i, w := range prop.Words {
		prop.Words[i] = strings.TrimSpace(w)
	}
	prop.Rationale = strings.TrimSpace(prop.Rationale)
	return prop, nil
}

// checkFit reports whether prop names four distinct cards of the board that
// are not in a group already found, and is not a group already played.
func checkFit(words []puzzle.Word, history []puzzle.Attempt, prop puzzle.Proposal) error {
	if len(prop.Words) != puzzle.GroupSize {
		return fmt.Errorf("%w: %d words", errShape, len(prop.Words))
	}
	free := make(map[string]int, len(words))
	for _, w := range words {
		free[w.Label]++
	}
	played := make(map[string]bool, len(history))
	for _, a := range history {
		labels := puzzle.Labels(a.Words)
		played[labelKey(labels)] = true
		if !a.Correct() {
			continue
		}
		for _, label := range labels {
			free[label]--
		}
	}
	for _, label := range prop.Words {
		n := puzzle.Normalize(label)
		if free[n] <= 0 {
			return fmt.Errorf("%w: %q is not on the board, repeated or already found", errShape, label)
		}
		free[n]--
	}
	if played[labelKey(prop.Words)] {
		return fmt.Errorf("%w: %v was already played", errShape, prop.Words)
	}
	return nil
}

func labelKey(labels []string) string {
	keys := make([]string, len(labels))
	for i, label := range labels {
		keys[i] = puzzle.Normalize(label)
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
