package ingest

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/groundcheck-ai/groundcheck/internal/store"
)

// Quality thresholds for post-chunking filtering.
const (
	// minChunkLength drops fragments too short to carry a retrievable fact.
	minChunkLength = 50

	// minAlphaRatio drops chunks that are mostly markup or numbers.
	minAlphaRatio = 0.3

	// minUniqueWordRatio drops highly repetitive chunks.
	minUniqueWordRatio = 0.3

	// nearDupThreshold is the Jaccard similarity above which two chunks
	// count as near-duplicates.
	nearDupThreshold = 0.85
)

var wordPattern = regexp.MustCompile(`\w+`)

// FilterGarbage removes chunks that are too short, mostly non-alphabetic,
// or highly repetitive.
func FilterGarbage(chunks []*store.Chunk, logger *slog.Logger) []*store.Chunk {
	filtered := make([]*store.Chunk, 0, len(chunks))
	removed := 0
	for _, chunk := range chunks {
		text := strings.TrimSpace(chunk.Text)
		if len(text) < minChunkLength {
			removed++
			continue
		}

		alpha := 0
		for _, r := range text {
			if unicode.IsLetter(r) {
				alpha++
			}
		}
		if float64(alpha)/float64(len(text)) < minAlphaRatio {
			removed++
			continue
		}

		words := strings.Fields(text)
		if len(words) > 0 {
			unique := make(map[string]struct{}, len(words))
			for _, w := range words {
				unique[w] = struct{}{}
			}
			if float64(len(unique))/float64(len(words)) < minUniqueWordRatio {
				removed++
				continue
			}
		}
		filtered = append(filtered, chunk)
	}
	if removed > 0 && logger != nil {
		logger.Info("garbage chunks filtered", slog.Int("removed", removed), slog.Int("remaining", len(filtered)))
	}
	return filtered
}

// DupPair is a pair of near-duplicate chunk ids, ordered lexicographically.
type DupPair struct {
	A, B string
}

// NearDuplicates reports chunk pairs whose word sets exceed the Jaccard
// similarity threshold. Pairwise comparison is fine at per-document scale.
func NearDuplicates(chunks []*store.Chunk) []DupPair {
	if len(chunks) < 2 {
		return nil
	}

	sets := make([]map[string]struct{}, len(chunks))
	for i, chunk := range chunks {
		sets[i] = wordSet(chunk.Text)
	}

	var pairs []DupPair
	for i := 0; i < len(chunks); i++ {
		for j := i + 1; j < len(chunks); j++ {
			if jaccard(sets[i], sets[j]) >= nearDupThreshold {
				a, b := chunks[i].ID, chunks[j].ID
				if b < a {
					a, b = b, a
				}
				pairs = append(pairs, DupPair{A: a, B: b})
			}
		}
	}
	return pairs
}

// Coverage measures what fraction of the original text's distinct words
// survive into the chunks.
func Coverage(chunks []*store.Chunk, original string) float64 {
	originalWords := wordSet(original)
	if len(originalWords) == 0 {
		return 0.0
	}

	chunkWords := make(map[string]struct{})
	for _, chunk := range chunks {
		for w := range wordSet(chunk.Text) {
			chunkWords[w] = struct{}{}
		}
	}

	matched := 0
	for w := range originalWords {
		if _, ok := chunkWords[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(originalWords))
}

func wordSet(text string) map[string]struct{} {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	intersection := 0
	for w := range small {
		if _, ok := large[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
