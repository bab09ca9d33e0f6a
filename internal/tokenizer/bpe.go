package tokenizer

import (
	"fmt"
	"sync"
)

type pair struct {
	first  string
	second string
}

// BPE implements Byte-Pair Encoding over Unicode characters.
//
// The vocabulary starts with the four special tokens, followed by the
// character alphabet and then one token per learned merge. Text is
// normalized and pre-tokenized before merges are applied, so merges never
// cross piece boundaries.
type BPE struct {
	tokens []string         // id -> token
	vocab  map[string]int32 // token -> id
	merges []pair
	ranks  map[pair]int // lower rank merges first

	mu    sync.RWMutex
	cache map[string][]int32
}

// NewBPE creates a tokenizer from tokens (indexed by id) and merge rules in
// priority order. The first four tokens must be the special tokens and
// every merge must produce a token in the vocabulary.
func NewBPE(tokens []string, merges [][2]string) (*BPE, error) {
	if len(tokens) < len(SpecialTokens) {
		return nil, fmt.Errorf("bpe: vocabulary has %d tokens, need at least the %d special tokens",
			len(tokens), len(SpecialTokens))
	}
	for i, special := range SpecialTokens {
		if tokens[i] != special {
			return nil, fmt.Errorf("bpe: token %d is %q, expected %q", i, tokens[i], special)
		}
	}

	vocab := make(map[string]int32, len(tokens))
	for id, token := range tokens {
		if _, dup := vocab[token]; dup {
			return nil, fmt.Errorf("bpe: duplicate token %q", token)
		}
		vocab[token] = int32(id) //nolint:gosec // vocabulary sizes fit in int32
	}

	b := &BPE{
		tokens: tokens,
		vocab:  vocab,
		merges: make([]pair, 0, len(merges)),
		ranks:  make(map[pair]int, len(merges)),
		cache:  make(map[string][]int32),
	}
	for _, m := range merges {
		p := pair{m[0], m[1]}
		if _, ok := vocab[p.first+p.second]; !ok {
			return nil, fmt.Errorf("bpe: merge %q + %q produces a token outside the vocabulary", p.first, p.second)
		}
		if _, dup := b.ranks[p]; dup {
			continue
		}
		b.ranks[p] = len(b.merges)
		b.merges = append(b.merges, p)
	}
	return b, nil
}

// Encode normalizes and tokenizes text, returning [SOS] ids... [EOS].
func (b *BPE) Encode(text string) ([]int32, error) {
	pieces, err := PreTokenize(Normalize(text))
	if err != nil {
		return nil, err
	}

	ids := []int32{SOSID}
	for _, piece := range pieces {
		ids = append(ids, b.encodePiece(piece)...)
	}
	return append(ids, EOSID), nil
}

// encodePiece applies merges to a single pre-tokenized piece. Symbols
// left outside the vocabulary become [UNK].
func (b *BPE) encodePiece(piece string) []int32 {
	b.mu.RLock()
	ids, ok := b.cache[piece]
	b.mu.RUnlock()
	if ok {
		return ids
	}

	symbols := splitRunes(piece)
	for len(symbols) > 1 {
		best, bestRank := -1, len(b.merges)
		for i := 0; i < len(symbols)-1; i++ {
			if rank, ok := b.ranks[pair{symbols[i], symbols[i+1]}]; ok && rank < bestRank {
				best, bestRank = i, rank
			}
		}
		if best < 0 {
			break
		}
		symbols = mergeAll(symbols, b.merges[bestRank])
	}

	ids = make([]int32, len(symbols))
	for i, s := range symbols {
		id, ok := b.vocab[s]
		if !ok {
			id = UnkID
		}
		ids[i] = id
	}

	b.mu.Lock()
	b.cache[piece] = ids
	b.mu.Unlock()
	return ids
}

// Decode converts ids back to text, restoring the spaces between pieces.
func (b *BPE) Decode(ids []int32, skipSpecial bool) (string, error) {
	pieces := make([]string, 0, len(ids))
	for _, id := range ids {
		if id < 0 || int(id) >= len(b.tokens) {
			return "", fmt.Errorf("bpe: id %d: %w", id, ErrUnknownToken)
		}
		if skipSpecial && isSpecial(id) {
			continue
		}
		pieces = append(pieces, b.tokens[id])
	}
	return joinPieces(pieces), nil
}

// TokenToID resolves a token string.
func (b *BPE) TokenToID(token string) (int32, error) {
	id, ok := b.vocab[token]
	if !ok {
		return 0, fmt.Errorf("bpe: %q: %w", token, ErrUnknownToken)
	}
	return id, nil
}

// IDToToken returns the token string for id.
func (b *BPE) IDToToken(id int32) (string, error) {
	if id < 0 || int(id) >= len(b.tokens) {
		return "", fmt.Errorf("bpe: id %d: %w", id, ErrUnknownToken)
	}
	return b.tokens[id], nil
}

// VocabSize returns the total vocabulary size.
func (b *BPE) VocabSize() int {
	return len(b.tokens)
}

// IsSpecialToken checks if a token ID is a special token.
func (b *BPE) IsSpecialToken(id int32) bool {
	return isSpecial(id)
}

// Merges returns the merge rules in priority order.
func (b *BPE) Merges() [][2]string {
	out := make([][2]string, len(b.merges))
	for i, m := range b.merges {
		out[i] = [2]string{m.first, m.second}
	}
	return out
}

func splitRunes(s string) []string {
	symbols := make([]string, 0, len(s))
	for _, r := range s {
		symbols = append(symbols, string(r))
	}
	return symbols
}

// mergeAll replaces every left-to-right occurrence of p in symbols.
func mergeAll(symbols []string, p pair) []string {
	out := symbols[:0:0]
	for i := 0; i < len(symbols); i++ {
		if i < len(symbols)-1 && symbols[i] == p.first && symbols[i+1] == p.second {
			out = append(out, p.first+p.second)
			i++
			continue
		}
		out = append(out, symbols[i])
	}
	return out
}
