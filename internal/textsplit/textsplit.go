// Package textsplit splits long documents into coherent chunks bounded by
// an estimated token budget. Splitting is pure: no I/O, restartable, and
// deterministic for a given input.
package textsplit

import (
	"math"
	"regexp"
	"strings"
)

// charsPerToken is the character-to-token estimation ratio.
const charsPerToken = 3.5

// DefaultMaxTokens is the per-chunk token budget for generation calls.
const DefaultMaxTokens = 12000

// EstimateTokens estimates the token count of a text as ceil(chars/3.5).
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(len(text)) / charsPerToken))
}

// sentenceEndRe matches a sentence terminator followed by whitespace.
var sentenceEndRe = regexp.MustCompile(`([.!?])\s+`)

// Split divides text into ordered chunks, each targeting maxTokens.
//
// Pass 1 accumulates blank-line-delimited sections greedily. Pass 2 further
// splits any oversized chunk at sentence boundaries. A single section or
// sentence longer than the budget is kept whole rather than cut mid-token,
// so chunks may exceed the budget in that edge case.
func Split(text string, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	budget := int(float64(maxTokens) * charsPerToken)

	if len(text) <= budget {
		return []string{text}
	}

	var chunks []string
	for _, chunk := range splitGreedy(strings.Split(text, "\n\n"), "\n\n", budget) {
		if len(chunk) <= budget {
			chunks = append(chunks, chunk)
			continue
		}
		chunks = append(chunks, splitGreedy(splitSentences(chunk), " ", budget)...)
	}

	return chunks
}

// splitGreedy accumulates parts into chunks, flushing before a part would
// push the running chunk over the budget. Parts are rejoined with sep.
func splitGreedy(parts []string, sep string, budget int) []string {
	var chunks []string
	var current strings.Builder

	for _, part := range parts {
		if current.Len() > 0 && current.Len()+len(sep)+len(part) > budget {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(part)
	}

	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	return chunks
}

// splitSentences splits text at sentence terminators followed by whitespace,
// keeping the terminator with its sentence.
func splitSentences(text string) []string {
	bounds := sentenceEndRe.FindAllStringSubmatchIndex(text, -1)
	if bounds == nil {
		return []string{text}
	}

	var sentences []string
	prev := 0
	for _, b := range bounds {
		// b[3] is the end of the terminator capture group.
		sentences = append(sentences, strings.TrimSpace(text[prev:b[3]]))
		prev = b[1]
	}
	if rest := strings.TrimSpace(text[prev:]); rest != "" {
		sentences = append(sentences, rest)
	}

	return sentences
}
