package embedding

import "strings"

// CLIP text-encoder special token IDs (startoftext / endoftext).
const (
	tokenBOS = 49406
	tokenEOS = 49407
	vocabSize = 49152
)

// Tokenizer produces token IDs for CLIP-style text encoders (input_ids, attention_mask).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64)
}

// SimpleTokenizer is a lowercasing word-split tokenizer with hash-based token IDs.
// It is not BPE; it exists so the encoder can run without a vocabulary file, and
// as the deterministic fallback in tests.
type SimpleTokenizer struct{}

// Tokenize splits text into words and produces padded token IDs up to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64) {
	words := SplitWords(strings.ToLower(text))
	if maxTokens <= 0 {
		maxTokens = 77
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)

	inputIDs[0] = tokenBOS
	attentionMask[0] = 1

	pos := 1
	for _, word := range words {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(HashString(word) % vocabSize)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = tokenEOS
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask
}

// SplitWords splits text on whitespace and returns non-empty words.
func SplitWords(text string) []string {
	var words []string
	word := ""
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			if word != "" {
				words = append(words, word)
				word = ""
			}
		} else {
			word += string(r)
		}
	}
	if word != "" {
		words = append(words, word)
	}
	return words
}

// HashString returns a deterministic hash for use as a simple token ID.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
