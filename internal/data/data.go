// Package data prepares parallel corpora for training: reading sentence
// pairs, encoding and length filtering, shuffling and PAD collation.
package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

// Pair is one source sentence and its reference translation.
type Pair struct {
	Source string
	Target string
}

// ReadTSV reads tab-separated pairs, one per line: source<TAB>target.
// Blank lines are skipped. Quotes have no special meaning.
func ReadTSV(r io.Reader) ([]Pair, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	var pairs []Pair
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read TSV: %w", err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) != 2 {
			return nil, fmt.Errorf("invalid record at line %d: got %d fields, want 2", line, len(record))
		}
		pairs = append(pairs, Pair{Source: record[0], Target: record[1]})
	}
	return pairs, nil
}

// LoadTSV reads pairs from a TSV file.
func LoadTSV(path string) ([]Pair, error) {
	file, err := os.Open(path) //nolint:gosec // G304: corpus path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pairs, err := ReadTSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pairs, nil
}

// Sentences yields every source and target sentence, for tokenizer training
// on one shared vocabulary.
func Sentences(splits ...[]Pair) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, pairs := range splits {
			for _, p := range pairs {
				if !yield(p.Source) || !yield(p.Target) {
					return
				}
			}
		}
	}
}
