package shard

import (
	"strings"
	"unicode"
)

// TokenCounter estimates the context-window cost of a text.
type TokenCounter func(text string) int

// CountTokens provides a simple token count approximation.
// Most tokenizers produce ~1.3 tokens per word, and punctuation is
// often split into tokens of its own.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}

	words := strings.Fields(text)
	punct := 0
	for _, r := range text {
		if unicode.IsPunct(r) {
			punct++
		}
	}
	return int(float64(len(words))*1.3) + punct/2
}

// NodeOverhead is the estimated token cost of a node's structure (type,
// name, path) on top of its content.
const NodeOverhead = 4
