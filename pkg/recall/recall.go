// Package recall ranks a small corpus of stored turns against a query by
// TF-IDF cosine similarity. Every call builds its own vocabulary from the
// corpus and the query; nothing is learned across calls.
package recall

import (
	"cmp"
	"errors"
	"math"
	"regexp"
	"slices"
	"strings"
)

const (
	// DefaultTopK is the number of matches returned.
	DefaultTopK = 2

	// DefaultMinSimilarity drops weak matches.
	DefaultMinSimilarity = 0.3

	// DefaultMaxFeatures caps the vocabulary size.
	DefaultMaxFeatures = 100
)

// ErrEmptyVocabulary is returned when neither the corpus nor the query
// contain a single term.
var ErrEmptyVocabulary = errors.New("empty vocabulary")

// tokenPattern matches runs of word characters. Runs shorter than two
// characters are dropped after matching.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

// Options tune a ranking call.
type Options struct {
	// TopK bounds the number of matches. Non-positive returns nothing.
	TopK int

	// MinSimilarity is the lowest cosine similarity kept.
	MinSimilarity float64

	// MaxFeatures caps the vocabulary at the most frequent terms.
	// Non-positive keeps every term.
	MaxFeatures int
}

// DefaultOptions returns the default ranking options.
func DefaultOptions() Options {
	return Options{
		TopK:          DefaultTopK,
		MinSimilarity: DefaultMinSimilarity,
		MaxFeatures:   DefaultMaxFeatures,
	}
}

// Match is a ranked corpus entry.
type Match struct {
	// Index is the position of the text in the corpus.
	Index      int
	Text       string
	Similarity float64
}

// Tokenize lowercases text and splits it into terms of at least two word
// characters.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	terms := raw[:0]
	for _, t := range raw {
		if len([]rune(t)) >= 2 {
			terms = append(terms, t)
		}
	}
	return terms
}

// Rank returns at most opts.TopK corpus entries ordered by descending
// similarity to query, each at least opts.MinSimilarity. Equal
// similarities keep corpus order. A corpus of fewer than two texts
// returns no matches.
func Rank(corpus []string, query string, opts Options) ([]Match, error) {
	if len(corpus) < 2 || opts.TopK <= 0 {
		return nil, nil
	}

	docs := make([][]string, 0, len(corpus)+1)
	for _, text := range corpus {
		docs = append(docs, Tokenize(text))
	}
	docs = append(docs, Tokenize(query))

	vocab := buildVocabulary(docs, opts.MaxFeatures)
	if len(vocab) == 0 {
		return nil, ErrEmptyVocabulary
	}

	idf := inverseDocumentFrequency(docs, vocab)

	vectors := make([][]float64, len(docs))
	for i, doc := range docs {
		vectors[i] = weigh(doc, vocab, idf)
	}

	queryVector := vectors[len(vectors)-1]
	matches := make([]Match, len(corpus))
	for i, text := range corpus {
		matches[i] = Match{
			Index:      i,
			Text:       text,
			Similarity: dot(queryVector, vectors[i]),
		}
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})

	if len(matches) > opts.TopK {
		matches = matches[:opts.TopK]
	}

	kept := matches[:0]
	for _, m := range matches {
		if m.Similarity >= opts.MinSimilarity {
			kept = append(kept, m)
		}
	}
	return kept, nil
}

// buildVocabulary maps the maxFeatures most frequent terms across all
// documents to vector positions. Ties are broken alphabetically.
func buildVocabulary(docs [][]string, maxFeatures int) map[string]int {
	counts := make(map[string]int)
	for _, doc := range docs {
		for _, term := range doc {
			counts[term]++
		}
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	slices.SortFunc(terms, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	if maxFeatures > 0 && len(terms) > maxFeatures {
		terms = terms[:maxFeatures]
	}
	slices.Sort(terms)

	vocab := make(map[string]int, len(terms))
	for i, term := range terms {
		vocab[term] = i
	}
	return vocab
}

// inverseDocumentFrequency computes the smoothed idf of every vocabulary
// term: ln((1+n)/(1+df)) + 1.
func inverseDocumentFrequency(docs [][]string, vocab map[string]int) []float64 {
	df := make([]int, len(vocab))
	for _, doc := range docs {
		seen := make(map[int]bool)
		for _, term := range doc {
			pos, ok := vocab[term]
			if !ok || seen[pos] {
				continue
			}
			seen[pos] = true
			df[pos]++
		}
	}

	n := float64(len(docs))
	idf := make([]float64, len(vocab))
	for i, freq := range df {
		idf[i] = math.Log((1+n)/(1+float64(freq))) + 1
	}
	return idf
}

// weigh builds the L2-normalized tf-idf vector of a document. Documents
// without vocabulary terms produce the zero vector.
func weigh(doc []string, vocab map[string]int, idf []float64) []float64 {
	vector := make([]float64, len(vocab))
	for _, term := range doc {
		if pos, ok := vocab[term]; ok {
			vector[pos]++
		}
	}

	var norm float64
	for i := range vector {
		vector[i] *= idf[i]
		norm += vector[i] * vector[i]
	}
	if norm == 0 {
		return vector
	}

	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] /= norm
	}
	return vector
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
