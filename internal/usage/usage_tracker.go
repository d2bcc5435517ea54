// Package usage counts the tokens each model call spends. Counts are kept per
// provider, model, operation and session, and can be persisted to a JSON
// ledger that accumulates across runs.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type (
	trackerKey   struct{}
	operationKey struct{}
	sessionKey   struct{}
)

const unknown = "unknown"

// Tracker manages token usage recording and persistence.
type Tracker struct {
	mu       sync.Mutex
	data     UsageData
	filePath string
}

// NewTracker creates a tracker. With an empty filePath nothing is persisted.
func NewTracker(filePath string) *Tracker {
	return &Tracker{
		filePath: filePath,
		data: UsageData{
			Version:   "1.0",
			Aggregate: newAggregate(),
		},
	}
}

// Load merges the ledger on disk into the tracker. A missing file is fine.
func (t *Tracker) Load() error {
	if t.filePath == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read usage ledger: %w", err)
	}

	var loaded UsageData
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse usage ledger %s: %w", t.filePath, err)
	}
	agg := &t.data.Aggregate
	agg.Total = merge(agg.Total, loaded.Aggregate.Total)
	mergeMap(agg.ByProvider, loaded.Aggregate.ByProvider)
	mergeMap(agg.ByModel, loaded.Aggregate.ByModel)
	mergeMap(agg.ByOperation, loaded.Aggregate.ByOperation)
	mergeMap(agg.BySession, loaded.Aggregate.BySession)
	return nil
}

// Save writes the usage data to disk.
func (t *Tracker) Save() error {
	if t.filePath == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(t.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create usage directory: %w", err)
	}
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.filePath, data, 0644)
}

// Track records one model call. Operation and session come from ctx.
func (t *Tracker) Track(ctx context.Context, model, provider string, input, output int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	agg := &t.data.Aggregate
	agg.Total.Add(input, output)
	addToMap(agg.ByProvider, provider, input, output)
	addToMap(agg.ByModel, model, input, output)
	addToMap(agg.ByOperation, valueOr(ctx, operationKey{}), input, output)
	addToMap(agg.BySession, valueOr(ctx, sessionKey{}), input, output)
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByProvider = copyTokenCountsMap(stats.ByProvider)
	stats.ByModel = copyTokenCountsMap(stats.ByModel)
	stats.ByOperation = copyTokenCountsMap(stats.ByOperation)
	stats.BySession = copyTokenCountsMap(stats.BySession)
	return stats
}

// Session returns the counts recorded under one session ID.
func (t *Tracker) Session(id string) TokenCounts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data.Aggregate.BySession[id]
}

func copyTokenCountsMap(src map[string]TokenCounts) map[string]TokenCounts {
	if src == nil {
		return nil
	}
	dst := make(map[string]TokenCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addToMap(m map[string]TokenCounts, key string, input, output int) {
	entry := m[key]
	entry.Add(input, output)
	m[key] = entry
}

func merge(a, b TokenCounts) TokenCounts {
	return TokenCounts{
		Calls:  a.Calls + b.Calls,
		Input:  a.Input + b.Input,
		Output: a.Output + b.Output,
		Total:  a.Total + b.Total,
	}
}

func mergeMap(dst, src map[string]TokenCounts) {
	for key, counts := range src {
		dst[key] = merge(dst[key], counts)
	}
}

func valueOr(ctx context.Context, key any) string {
	if s, ok := ctx.Value(key).(string); ok && s != "" {
		return s
	}
	return unknown
}

// Context Helpers

// NewContext returns a new context carrying the tracker.
func NewContext(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// FromContext retrieves the tracker from the context. The result may be nil;
// Track on a nil tracker does nothing.
func FromContext(ctx context.Context) *Tracker {
	t, _ := ctx.Value(trackerKey{}).(*Tracker)
	return t
}

// WithOperation labels calls made under ctx, e.g. "reasoning".
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// WithSession attributes calls made under ctx to a session.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}
