// Package summarizer builds the short corpus overview shown after ingestion.
package summarizer

import (
	"math"
	"sort"
	"strings"

	"docqa/internal/textutil"
)

// FrequencySummarizer ranks sentences by normalised term frequency.
type FrequencySummarizer struct{}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer { return &FrequencySummarizer{} }

// Summarize returns up to maxSentences of the highest scoring sentences in
// their original order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return "", nil
	}
	terms := make([][]string, len(sentences))
	freq := map[string]float64{}
	maxF := 0.0
	for i, sent := range sentences {
		terms[i] = textutil.Terms(sent)
		for _, tok := range terms[i] {
			freq[tok]++
			maxF = math.Max(maxF, freq[tok])
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i := range sentences {
		total := 0.0
		for _, tok := range terms[i] {
			total += freq[tok] / maxF
		}
		// Dampen long sentences.
		if n := len(textutil.Words(sentences[i])); n > 0 {
			total /= math.Sqrt(float64(n))
		}
		scores[i] = scored{idx: i, score: total}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := min(maxSentences, len(scores))
	selected := make([]int, n)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = strings.TrimSpace(sentences[idx])
	}
	return strings.Join(out, " "), nil
}
