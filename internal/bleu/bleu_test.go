package bleu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var _ Scorer = BLEU{}

func TestTokenize13a(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello, world!", []string{"Hello", ",", "world", "!"}},
		{"It costs 3.14 or 1,000.", []string{"It", "costs", "3.14", "or", "1,000", "."}},
		{"a well-known 5-3 win", []string{"a", "well-known", "5", "-", "3", "win"}},
		{"&quot;hi&quot; (x)", []string{`"`, "hi", `"`, "(", "x", ")"}},
		{"  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize13a(tt.in))
		})
	}
}

func TestCorpus(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		references []string
		want       float64
	}{
		{
			name:       "identical",
			candidates: []string{"the cat sat on the mat ."},
			references: []string{"the cat sat on the mat ."},
			want:       100,
		},
		{
			name:       "partial match",
			candidates: []string{"the cat sat on the mat"},
			references: []string{"the cat sat on a mat"},
			want:       53.7284966,
		},
		{
			name:       "brevity penalty",
			candidates: []string{"the cat sat on"},
			references: []string{"the cat sat on the mat"},
			want:       60.6530660,
		},
		{
			name:       "no four-gram match",
			candidates: []string{"the cat sat there"},
			references: []string{"the cat slept there"},
			want:       0,
		},
		{
			name:       "too short for order four",
			candidates: []string{"hi there"},
			references: []string{"hi there"},
			want:       0,
		},
		{
			name:       "empty candidate",
			candidates: []string{""},
			references: []string{"something"},
			want:       0,
		},
		{
			name:       "empty corpus",
			candidates: nil,
			references: nil,
			want:       0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Corpus(tt.candidates, tt.references), 1e-4)
		})
	}
}

func TestCorpus_PoolsStatistics(t *testing.T) {
	// The second pair has no four-gram of its own, but the corpus does.
	candidates := []string{"the cat sat on the mat", "hi"}
	references := []string{"the cat sat on the mat", "hi"}
	assert.InDelta(t, 100, Corpus(candidates, references), 1e-9)

	stats := New().Collect(candidates, references)
	assert.Equal(t, 7, stats.CandidateLen)
	assert.Equal(t, []int{7, 5, 4, 3}, stats.Totals)
	assert.Equal(t, stats.Totals, stats.Matches)
}

func TestBLEU_Options(t *testing.T) {
	lower := BLEU{MaxOrder: 4, Lowercase: true}
	assert.InDelta(t, 100, lower.Corpus([]string{"The Cat Sat Down"}, []string{"the cat sat down"}), 1e-9)
	assert.InDelta(t, 0, New().Corpus([]string{"The Cat Sat Down"}, []string{"the cat sat down"}), 1e-9)

	bigram := BLEU{MaxOrder: 2}
	assert.InDelta(t, 100, bigram.Corpus([]string{"hi there"}, []string{"hi there"}), 1e-9)

	smoothed := BLEU{MaxOrder: 4, SmoothValue: 0.1}
	assert.Greater(t, smoothed.Corpus([]string{"the cat sat there"}, []string{"the cat slept there"}), 0.0)
}

func TestCorpus_LengthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() { Corpus([]string{"a"}, nil) })
}
