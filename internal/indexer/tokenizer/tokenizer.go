// Package tokenizer splits movie titles into index terms. Word boundaries are
// whitespace only; punctuation stays attached to its word and every term is
// case-folded so lookups match regardless of how the title was written.
package tokenizer

import "strings"

// TokenizeTitle splits title on whitespace and lower-cases every token. An
// empty or blank title yields an empty, non-nil slice.
func TokenizeTitle(title string) []string {
	words := strings.Fields(title)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		tokens = append(tokens, Normalize(word))
	}
	return tokens
}

// Normalize case-folds a single term the same way TokenizeTitle does.
func Normalize(term string) string {
	return strings.ToLower(term)
}
