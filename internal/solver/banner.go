package solver

import (
	"fmt"
	"strings"
)

// UnknownBannerPolicy decides what a non-empty banner outside the table means.
type UnknownBannerPolicy string

const (
	// BannerContinue keeps the loop running and re-checks on the next attempt.
	BannerContinue UnknownBannerPolicy = "continue"
	// BannerAbort stops the session with ErrUnknownBanner.
	BannerAbort UnknownBannerPolicy = "abort"
)

// ParseUnknownBannerPolicy validates a policy name. An empty name selects
// BannerContinue.
func ParseUnknownBannerPolicy(s string) (UnknownBannerPolicy, error) {
	switch p := UnknownBannerPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", BannerContinue:
		return BannerContinue, nil
	case BannerAbort:
		return BannerAbort, nil
	default:
		return "", fmt.Errorf("unknown banner policy %q (want %q or %q)", s, BannerContinue, BannerAbort)
	}
}

// BannerTable maps the end-of-game title to the total number of attempts the
// game took. Lookups ignore case and surrounding space.
type BannerTable struct {
	attempts map[string]int
}

// DefaultBanners is the rank table the game uses today.
func DefaultBanners() map[string]int {
	return map[string]int{
		"Perfect!": 4,
		"Great!":   5,
		"Solid!":   6,
		"Phew!":    7,
	}
}

// NewBannerTable builds a table from label → attempts.
func NewBannerTable(labels map[string]int) (BannerTable, error) {
	t := BannerTable{attempts: make(map[string]int, len(labels))}
	for label, n := range labels {
		key := bannerKey(label)
		if key == "" {
			return BannerTable{}, fmt.Errorf("empty banner label")
		}
		if n < 4 {
			return BannerTable{}, fmt.Errorf("banner %q maps to %d attempts, want at least 4", label, n)
		}
		if prev, ok := t.attempts[key]; ok && prev != n {
			return BannerTable{}, fmt.Errorf("banner %q mapped twice (%d and %d)", label, prev, n)
		}
		t.attempts[key] = n
	}
	return t, nil
}

// Lookup returns the attempt count for a banner.
func (t BannerTable) Lookup(banner string) (int, bool) {
	n, ok := t.attempts[bannerKey(banner)]
	return n, ok
}

func bannerKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
