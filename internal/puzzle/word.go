// Package puzzle holds the data model of a single Connections session: the
// sixteen words, the append-only attempt log and the remaining mistake budget.
package puzzle

import (
	"fmt"
	"strings"
)

// GroupSize is the number of words in one category.
const GroupSize = 4

// GroupCount is the number of categories in a puzzle.
const GroupCount = 4

// WordCount is the number of words on the board.
const WordCount = GroupSize * GroupCount

// DefaultMistakes is the mistake budget the game starts with.
const DefaultMistakes = 4

// Word is one card on the board. Cards are addressed by Index; two cards may
// carry the same Label and still be distinct.
type Word struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

func (w Word) String() string {
	return w.Label
}

// Normalize trims and upper-cases a card label.
func Normalize(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

// NewWords builds the board from raw labels in page order.
func NewWords(labels []string) ([]Word, error) {
	if len(labels) != WordCount {
		return nil, fmt.Errorf("expected %d words, got %d", WordCount, len(labels))
	}
	words := make([]Word, len(labels))
	for i, l := range labels {
		n := Normalize(l)
		if n == "" {
			return nil, fmt.Errorf("word %d is empty", i)
		}
		words[i] = Word{Index: i, Label: n}
	}
	return words, nil
}

// Labels returns the labels of words in order.
func Labels(words []Word) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.Label
	}
	return out
}
