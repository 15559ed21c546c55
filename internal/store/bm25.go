package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// BM25 tuning parameters (Okapi).
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// BM25Store is an in-memory Okapi BM25 index over tokenized chunk text.
// Build replaces the whole index under a write lock; readers observe either
// the old corpus or the new one, never a partial state.
type BM25Store struct {
	mu sync.RWMutex

	chunkIDs  []string
	corpus    [][]string // tokenized text, parallel to chunkIDs
	docLens   []int
	avgDocLen float64

	// docFreq counts documents containing each term.
	docFreq map[string]int

	// termFreq[i] maps term -> count within document i.
	termFreq []map[string]int
}

var _ KeywordIndex = (*BM25Store)(nil)

// NewBM25Store creates an empty index. If path is non-empty a previously
// serialized corpus is loaded best-effort; a missing or unreadable file
// leaves the index empty.
func NewBM25Store(path string) *BM25Store {
	s := &BM25Store{docFreq: make(map[string]int)}
	if path != "" {
		_ = s.Load(path)
	}
	return s
}

// Build replaces the index contents with the given chunks.
func (s *BM25Store) Build(chunks []*Chunk) {
	chunkIDs := make([]string, len(chunks))
	corpus := make([][]string, len(chunks))
	docLens := make([]int, len(chunks))
	termFreq := make([]map[string]int, len(chunks))
	docFreq := make(map[string]int)

	totalLen := 0
	for i, c := range chunks {
		chunkIDs[i] = c.ID
		tokens := Tokenize(c.Text)
		corpus[i] = tokens
		docLens[i] = len(tokens)
		totalLen += len(tokens)

		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		termFreq[i] = tf
		for t := range tf {
			docFreq[t]++
		}
	}

	avg := 0.0
	if len(chunks) > 0 {
		avg = float64(totalLen) / float64(len(chunks))
	}

	s.mu.Lock()
	s.chunkIDs = chunkIDs
	s.corpus = corpus
	s.docLens = docLens
	s.avgDocLen = avg
	s.docFreq = docFreq
	s.termFreq = termFreq
	s.mu.Unlock()
}

// Rebuild is Build with context cancellation checked up front. The heavy
// tokenization work runs outside the lock inside Build.
func (s *BM25Store) Rebuild(ctx context.Context, chunks []*Chunk) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.Build(chunks)
	return nil
}

// Search scores the tokenized query against the corpus and returns up to
// topK (chunk id, score) pairs, descending, positive scores only. An empty
// tokenized query returns nil.
func (s *BM25Store) Search(query string, topK int) []ScoredID {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.chunkIDs)
	if n == 0 {
		return nil
	}

	scores := make([]float64, n)
	for _, term := range queryTokens {
		df := s.docFreq[term]
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
		for i := 0; i < n; i++ {
			tf := float64(s.termFreq[i][term])
			if tf == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(s.docLens[i])/s.avgDocLen
			scores[i] += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	results := make([]ScoredID, 0, topK)
	for _, i := range order {
		if len(results) >= topK || scores[i] <= 0 {
			break
		}
		results = append(results, ScoredID{ID: s.chunkIDs[i], Score: scores[i]})
	}
	return results
}

// Size returns the number of indexed chunks.
func (s *BM25Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunkIDs)
}

// bm25Snapshot is the serialized form: tokenized corpus plus the parallel
// chunk-id vector. Statistics are rebuilt on load.
type bm25Snapshot struct {
	ChunkIDs []string
	Corpus   [][]string
}

// Save writes the index atomically (temp file + rename).
func (s *BM25Store) Save(path string) error {
	s.mu.RLock()
	snap := bm25Snapshot{ChunkIDs: s.chunkIDs, Corpus: s.corpus}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode index: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load replaces the index from a serialized snapshot.
func (s *BM25Store) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	var snap bm25Snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return fmt.Errorf("decode index: %w", err)
	}

	docLens := make([]int, len(snap.Corpus))
	termFreq := make([]map[string]int, len(snap.Corpus))
	docFreq := make(map[string]int)
	totalLen := 0
	for i, tokens := range snap.Corpus {
		docLens[i] = len(tokens)
		totalLen += len(tokens)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		termFreq[i] = tf
		for t := range tf {
			docFreq[t]++
		}
	}
	avg := 0.0
	if len(snap.Corpus) > 0 {
		avg = float64(totalLen) / float64(len(snap.Corpus))
	}

	s.mu.Lock()
	s.chunkIDs = snap.ChunkIDs
	s.corpus = snap.Corpus
	s.docLens = docLens
	s.avgDocLen = avg
	s.docFreq = docFreq
	s.termFreq = termFreq
	s.mu.Unlock()
	return nil
}
