// Package bleu computes corpus-level BLEU with one reference per candidate.
//
// Scores match the sacreBLEU defaults used for reporting translation
// quality: 13a tokenization, n-grams up to order 4, brevity penalty, and
// "floor" smoothing. Scores are in [0, 100].
package bleu

import (
	"fmt"
	"math"
	"strings"
)

// Scorer rates candidate translations against references.
type Scorer interface {
	Corpus(candidates, references []string) float64
}

// BLEU is a corpus BLEU scorer.
type BLEU struct {
	MaxOrder int

	// SmoothValue replaces the match count of an order that has no match.
	// With the default of zero any such order drives the score to zero.
	SmoothValue float64

	Lowercase bool
}

// New returns a scorer with order 4, floor smoothing with value 0, and case
// preserved.
func New() BLEU {
	return BLEU{MaxOrder: 4}
}

// Corpus scores candidates with the default scorer.
func Corpus(candidates, references []string) float64 {
	return New().Corpus(candidates, references)
}

// Stats are the sufficient statistics of a corpus.
type Stats struct {
	CandidateLen int
	ReferenceLen int
	Matches      []int // clipped n-gram matches per order
	Totals       []int // candidate n-grams per order
}

// Collect accumulates statistics over aligned candidates and references.
// Panics if the slices differ in length.
func (s BLEU) Collect(candidates, references []string) Stats {
	if len(candidates) != len(references) {
		panic(fmt.Sprintf("bleu: %d candidates but %d references", len(candidates), len(references)))
	}
	order := s.order()
	stats := Stats{Matches: make([]int, order), Totals: make([]int, order)}
	for i := range candidates {
		cand := s.tokenize(candidates[i])
		ref := s.tokenize(references[i])
		stats.CandidateLen += len(cand)
		stats.ReferenceLen += len(ref)

		for n := 1; n <= order; n++ {
			refCounts := ngrams(ref, n)
			for gram, count := range ngrams(cand, n) {
				stats.Matches[n-1] += min(count, refCounts[gram])
				stats.Totals[n-1] += count
			}
		}
	}
	return stats
}

// Corpus returns the BLEU score of candidates against references.
func (s BLEU) Corpus(candidates, references []string) float64 {
	return s.Score(s.Collect(candidates, references))
}

// Score turns statistics into a BLEU score.
func (s BLEU) Score(stats Stats) float64 {
	if stats.CandidateLen == 0 {
		return 0
	}

	order := len(stats.Totals)
	var logSum float64
	for n := range order {
		// An order longer than every candidate contributes a zero precision.
		if stats.Totals[n] == 0 {
			return 0
		}
		matches := float64(stats.Matches[n])
		if stats.Matches[n] == 0 {
			matches = s.SmoothValue
		}
		if matches <= 0 {
			return 0
		}
		logSum += math.Log(matches / float64(stats.Totals[n]))
	}

	bp := 1.0
	if stats.CandidateLen < stats.ReferenceLen {
		bp = math.Exp(1 - float64(stats.ReferenceLen)/float64(stats.CandidateLen))
	}
	return 100 * bp * math.Exp(logSum/float64(order))
}

func (s BLEU) order() int {
	if s.MaxOrder <= 0 {
		return 4
	}
	return s.MaxOrder
}

func (s BLEU) tokenize(text string) []string {
	if s.Lowercase {
		text = strings.ToLower(text)
	}
	return Tokenize13a(text)
}

func ngrams(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], " ")]++
	}
	return counts
}
