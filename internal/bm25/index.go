package bm25

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"rag-contextkit/internal/domain"
)

// Tokenizer splits free text into index terms.
type Tokenizer func(string) []string

// DefaultTokenizer lower-cases and splits on non-alphanumeric boundaries.
func DefaultTokenizer(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Options tune index construction and scoring. K1 controls term-frequency
// saturation, B controls document-length normalization. MinDocFreq and
// MaxDocFreqRatio prune rare and ubiquitous terms from the vocabulary.
type Options struct {
	K1              float64
	B               float64
	MinDocFreq      int
	MaxDocFreqRatio float64
	Tokenizer       Tokenizer
}

// DefaultOptions returns the standard Okapi BM25 parameters.
func DefaultOptions() Options {
	return Options{
		K1:              1.2,
		B:               0.75,
		MinDocFreq:      0,
		MaxDocFreqRatio: 1.0,
		Tokenizer:       DefaultTokenizer,
	}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.K1 < 0 {
		return fmt.Errorf("%w: k1 must be non-negative, got %f", domain.ErrConfig, o.K1)
	}
	if o.B < 0 || o.B > 1 {
		return fmt.Errorf("%w: b must be in [0.0, 1.0], got %f", domain.ErrConfig, o.B)
	}
	if o.MinDocFreq < 0 {
		return fmt.Errorf("%w: minDocFreq must be non-negative, got %d", domain.ErrConfig, o.MinDocFreq)
	}
	if o.MaxDocFreqRatio <= 0 || o.MaxDocFreqRatio > 1 {
		return fmt.Errorf("%w: maxDocFreqRatio must be in (0.0, 1.0], got %f", domain.ErrConfig, o.MaxDocFreqRatio)
	}
	return nil
}

// RetrieveOptions tune one query.
type RetrieveOptions struct {
	TopK     int
	MinScore float64
}

// Index is an in-memory BM25 inverted index. Build replaces the whole corpus;
// Retrieve is read-only and safe for concurrent use once built.
type Index struct {
	mu        sync.RWMutex
	opts      Options
	docs      []domain.Chunk
	termFreqs []map[string]int
	docLens   []int
	docFreq   map[string]int
	avgDocLen float64
	built     bool
}

// NewIndex creates an empty index. Call Build before Retrieve.
func NewIndex(opts Options) (*Index, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = DefaultTokenizer
	}
	return &Index{opts: opts, docFreq: make(map[string]int)}, nil
}

// Build computes term and document frequencies for the corpus, replacing any
// previous index contents.
func (ix *Index) Build(docs []domain.Chunk) error {
	termFreqs := make([]map[string]int, len(docs))
	docLens := make([]int, len(docs))
	docFreq := make(map[string]int)
	totalLen := 0

	for i, doc := range docs {
		terms := ix.opts.Tokenizer(doc.Content)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		for t := range tf {
			docFreq[t]++
		}
		termFreqs[i] = tf
		docLens[i] = len(terms)
		totalLen += len(terms)
	}

	// Vocabulary pruning: terms outside the frequency bounds contribute
	// nothing at query time.
	n := len(docs)
	for t, df := range docFreq {
		if df < ix.opts.MinDocFreq {
			delete(docFreq, t)
			continue
		}
		if n > 0 && float64(df)/float64(n) > ix.opts.MaxDocFreqRatio {
			delete(docFreq, t)
		}
	}

	avgDocLen := 0.0
	if n > 0 {
		avgDocLen = float64(totalLen) / float64(n)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docs = append([]domain.Chunk(nil), docs...)
	ix.termFreqs = termFreqs
	ix.docLens = docLens
	ix.docFreq = docFreq
	ix.avgDocLen = avgDocLen
	ix.built = true
	return nil
}

// Built reports whether the index has a corpus.
func (ix *Index) Built() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.built
}

// HasTerm reports whether term survived vocabulary pruning.
func (ix *Index) HasTerm(term string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.docFreq[term]
	return ok
}

// IDF returns the inverse document frequency of term, or false when the term
// is not in the vocabulary.
func (ix *Index) IDF(term string) (float64, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	df, ok := ix.docFreq[term]
	if !ok {
		return 0, false
	}
	return ix.idf(df), true
}

func (ix *Index) idf(df int) float64 {
	n := float64(len(ix.docs))
	return math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
}

// Retrieve scores the query against the corpus and returns the top matches
// sorted by score descending. Ties keep corpus insertion order so output is
// deterministic. Documents with no matching term are excluded.
func (ix *Index) Retrieve(query string, opts RetrieveOptions) ([]domain.RetrievalResult, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.built {
		return nil, domain.ErrIndexNotBuilt
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	if opts.TopK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrConfig, opts.TopK)
	}

	queryTerms := ix.opts.Tokenizer(query)

	type scored struct {
		docIdx int
		score  float64
	}
	candidates := make([]scored, 0, len(ix.docs))

	for i := range ix.docs {
		score := 0.0
		matched := false
		for _, t := range queryTerms {
			df, inVocab := ix.docFreq[t]
			if !inVocab {
				continue
			}
			tf, inDoc := ix.termFreqs[i][t]
			if !inDoc {
				continue
			}
			matched = true
			norm := 1 - ix.opts.B + ix.opts.B*float64(ix.docLens[i])/ix.avgDocLen
			score += ix.idf(df) * (float64(tf) * (ix.opts.K1 + 1)) / (float64(tf) + ix.opts.K1*norm)
		}
		if matched && score >= opts.MinScore {
			candidates = append(candidates, scored{docIdx: i, score: score})
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})
	if len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}

	results := make([]domain.RetrievalResult, len(candidates))
	for rank, c := range candidates {
		doc := ix.docs[c.docIdx]
		results[rank] = domain.RetrievalResult{
			ID:         doc.ID,
			Chunk:      doc,
			Score:      c.score,
			Scores:     domain.RetrievalScores{Sparse: c.score},
			SparseRank: rank + 1,
		}
	}
	return results, nil
}
