// Package textutil holds the tokenizer, stopword list and sentence splitter
// shared by the TF-IDF embedder, the summarizer and the extractive answerer.
package textutil

import (
	"regexp"
	"strings"
)

var (
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
	stopwords  = buildStopwords()
)

// Words returns the lower-cased word tokens of text, stopwords included.
func Words(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// Terms returns the lower-cased word tokens of text with stopwords removed.
func Terms(text string) []string {
	raw := Words(text)
	out := raw[:0]
	for _, t := range raw {
		if IsStopword(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TokenSet returns the distinct word tokens of text.
func TokenSet(text string) map[string]struct{} {
	tokens := Words(text)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// IsStopword reports whether a lower-cased token is a stopword.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Sentences splits text into sentences ending in . ! or ?. A trailing
// fragment without a terminator is kept as the last sentence; blank text
// yields nil.
func Sentences(text string) []string {
	locs := sentenceRe.FindAllStringIndex(text, -1)
	out := make([]string, 0, len(locs)+1)
	end := 0
	for _, loc := range locs {
		out = append(out, text[loc[0]:loc[1]])
		end = loc[1]
	}
	if rest := text[end:]; strings.TrimSpace(rest) != "" {
		if len(out) == 0 {
			rest = strings.TrimSpace(rest)
		}
		out = append(out, rest)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Overlap counts the distinct tokens of sentence that appear in query.
func Overlap(query map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range Words(sentence) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := query[t]; ok {
			score++
		}
	}
	return score
}

func buildStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
