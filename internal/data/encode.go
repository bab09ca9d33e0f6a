package data

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/parallel"
	"github.com/born-ml/seq2seq/internal/tokenizer"
)

// Example is an encoded pair. Both sides are wrapped as [SOS] ... [EOS].
type Example struct {
	Source []int32
	Target []int32
}

// Encode tokenizes pairs in parallel and drops every pair whose source or
// target exceeds maxSeqLen ids. It returns the kept examples in input
// order and the number dropped.
func Encode(pairs []Pair, tok tokenizer.Tokenizer, maxSeqLen int) ([]Example, int, error) {
	encoded := make([]Example, len(pairs))
	errs := make([]error, len(pairs))

	parallel.For(len(pairs), func(i int) {
		src, err := tok.Encode(pairs[i].Source)
		if err != nil {
			errs[i] = fmt.Errorf("pair %d source: %w", i, err)
			return
		}
		tgt, err := tok.Encode(pairs[i].Target)
		if err != nil {
			errs[i] = fmt.Errorf("pair %d target: %w", i, err)
			return
		}
		encoded[i] = Example{Source: src, Target: tgt}
	}, parallel.DefaultConfig())

	kept := encoded[:0]
	for i, ex := range encoded {
		if errs[i] != nil {
			return nil, 0, errs[i]
		}
		if len(ex.Source) <= maxSeqLen && len(ex.Target) <= maxSeqLen {
			kept = append(kept, ex)
		}
	}
	return kept, len(pairs) - len(kept), nil
}
