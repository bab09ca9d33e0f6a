package tokenizer

import (
	"container/heap"
	"fmt"
	"iter"
	"slices"
)

// TrainerConfig controls BPE vocabulary learning.
type TrainerConfig struct {
	// VocabSize is the target vocabulary size, special tokens included.
	// The character alphabet is always kept, even if it alone is larger.
	VocabSize int

	// MinFrequency is the minimum count of a pair for it to be merged.
	MinFrequency int
}

// TrainBPE learns a BPE vocabulary from texts. Source and target sentences
// go through the same call to get one shared vocabulary.
//
// Pair counts are updated incrementally and the next merge is taken from a
// heap, so each merge only touches the words that contain the merged pair.
// Ties between equally frequent pairs go to the lexicographically smaller
// pair, which makes training deterministic.
func TrainBPE(texts iter.Seq[string], cfg TrainerConfig) (*BPE, error) {
	if cfg.VocabSize <= len(SpecialTokens) {
		return nil, fmt.Errorf("bpe trainer: vocab size %d leaves no room beyond the special tokens", cfg.VocabSize)
	}
	minFrequency := max(cfg.MinFrequency, 1)

	counts := make(map[string]int)
	for text := range texts {
		pieces, err := PreTokenize(Normalize(text))
		if err != nil {
			return nil, fmt.Errorf("bpe trainer: %w", err)
		}
		for _, p := range pieces {
			counts[p]++
		}
	}

	t := newTrainer(counts)
	tokens := append(slices.Clone(SpecialTokens), t.alphabet()...)
	known := make(map[string]bool, cfg.VocabSize)
	for _, tok := range tokens {
		known[tok] = true
	}

	var merges [][2]string
	for len(tokens) < cfg.VocabSize {
		best, count, ok := t.best()
		if !ok || count < minFrequency {
			break
		}
		t.merge(best)
		merges = append(merges, [2]string{best.first, best.second})
		if merged := best.first + best.second; !known[merged] {
			known[merged] = true
			tokens = append(tokens, merged)
		}
	}
	return NewBPE(tokens, merges)
}

type trainWord struct {
	symbols []string
	count   int
}

type trainer struct {
	words  []trainWord
	counts map[pair]int
	where  map[pair]map[int]struct{}
	queue  pairQueue
}

func newTrainer(counts map[string]int) *trainer {
	pieces := make([]string, 0, len(counts))
	for p := range counts {
		pieces = append(pieces, p)
	}
	slices.Sort(pieces)

	t := &trainer{
		words:  make([]trainWord, len(pieces)),
		counts: make(map[pair]int),
		where:  make(map[pair]map[int]struct{}),
	}
	for i, p := range pieces {
		t.words[i] = trainWord{symbols: splitRunes(p), count: counts[p]}
		t.addPairs(i)
	}
	for p, c := range t.counts {
		t.queue = append(t.queue, pairCount{p, c})
	}
	heap.Init(&t.queue)
	return t
}

func (t *trainer) alphabet() []string {
	seen := make(map[string]bool)
	var chars []string
	for _, w := range t.words {
		for _, s := range w.symbols {
			if !seen[s] {
				seen[s] = true
				chars = append(chars, s)
			}
		}
	}
	slices.Sort(chars)
	return chars
}

func (t *trainer) addPairs(i int) {
	w := t.words[i]
	for j := 0; j+1 < len(w.symbols); j++ {
		p := pair{w.symbols[j], w.symbols[j+1]}
		t.counts[p] += w.count
		set, ok := t.where[p]
		if !ok {
			set = make(map[int]struct{})
			t.where[p] = set
		}
		set[i] = struct{}{}
	}
}

func (t *trainer) removePairs(i int) {
	w := t.words[i]
	for j := 0; j+1 < len(w.symbols); j++ {
		p := pair{w.symbols[j], w.symbols[j+1]}
		t.counts[p] -= w.count
		if t.counts[p] <= 0 {
			delete(t.counts, p)
		}
	}
}

// best pops stale heap entries until the top matches the live count.
func (t *trainer) best() (pair, int, bool) {
	for t.queue.Len() > 0 {
		top := t.queue[0]
		if live := t.counts[top.pair]; live != top.count {
			heap.Pop(&t.queue)
			if live > 0 {
				heap.Push(&t.queue, pairCount{top.pair, live})
			}
			continue
		}
		return top.pair, top.count, true
	}
	return pair{}, 0, false
}

func (t *trainer) merge(p pair) {
	ids := make([]int, 0, len(t.where[p]))
	for i := range t.where[p] {
		ids = append(ids, i)
	}
	slices.Sort(ids)
	delete(t.where, p)

	changed := make(map[pair]bool)
	for _, i := range ids {
		t.removePairs(i)
		before := t.words[i].symbols
		t.words[i].symbols = mergeAll(before, p)
		t.addPairs(i)
		for j := 0; j+1 < len(t.words[i].symbols); j++ {
			changed[pair{t.words[i].symbols[j], t.words[i].symbols[j+1]}] = true
		}
	}
	for q := range changed {
		if c := t.counts[q]; c > 0 {
			heap.Push(&t.queue, pairCount{q, c})
		}
	}
}

type pairCount struct {
	pair  pair
	count int
}

// pairQueue is a max-heap on count, then the smaller pair.
type pairQueue []pairCount

func (q pairQueue) Len() int { return len(q) }

func (q pairQueue) Less(i, j int) bool {
	if q[i].count != q[j].count {
		return q[i].count > q[j].count
	}
	if q[i].pair.first != q[j].pair.first {
		return q[i].pair.first < q[j].pair.first
	}
	return q[i].pair.second < q[j].pair.second
}

func (q pairQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *pairQueue) Push(x any) { *q = append(*q, x.(pairCount)) }

func (q *pairQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
