package store

import (
	"regexp"
	"strings"
)

// nonWord matches everything outside \w, replaced by spaces before splitting.
var nonWord = regexp.MustCompile(`[^\w\s]`)

// stopwords is the fixed English stopword set shared by indexing and queries.
// Changing it invalidates serialized keyword indexes.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "an", "and", "are", "as", "at", "be", "but", "by", "for",
		"from", "had", "has", "have", "he", "her", "his", "if", "in",
		"into", "is", "it", "its", "no", "not", "of", "on", "or", "our",
		"she", "so", "such", "that", "the", "their", "then", "there",
		"these", "they", "this", "to", "was", "we", "were", "what",
		"when", "where", "which", "who", "will", "with", "would", "you",
		"your",
	} {
		stopwords[w] = struct{}{}
	}
}

// Tokenize prepares text for BM25: lowercase, strip punctuation to spaces,
// split on whitespace, drop stopwords and single-character tokens.
// It is idempotent on its own output and never invents characters.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = nonWord.ReplaceAllString(text, " ")

	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, t := range fields {
		if len(t) <= 1 {
			continue
		}
		if _, stop := stopwords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}
