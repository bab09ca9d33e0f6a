package tokenizer

import (
	"errors"
)

// Special token strings.
const (
	PadToken = "[PAD]"
	UnkToken = "[UNK]"
	SOSToken = "[SOS]"
	EOSToken = "[EOS]"
)

// Special token ids. They are the same for every tokenizer so the model,
// the masks and the loss agree on them.
const (
	PadID int32 = iota
	UnkID
	SOSID
	EOSID
)

// SpecialTokens lists the special tokens in id order.
var SpecialTokens = []string{PadToken, UnkToken, SOSToken, EOSToken}

// ErrUnknownToken is returned for token strings or ids outside the vocabulary.
var ErrUnknownToken = errors.New("unknown token")

// Tokenizer is the core interface for text tokenization.
type Tokenizer interface {
	// Encode converts text to token ids wrapped as [SOS] ... [EOS].
	Encode(text string) ([]int32, error)

	// Decode converts ids back to text. With skipSpecial the four special
	// tokens are dropped.
	Decode(ids []int32, skipSpecial bool) (string, error)

	// TokenToID resolves a token string such as "[PAD]".
	TokenToID(token string) (int32, error)

	// VocabSize returns the total vocabulary size, special tokens included.
	VocabSize() int

	// IsSpecialToken reports whether id is one of the four special tokens.
	IsSpecialToken(id int32) bool
}

// isSpecial reports whether id is in the shared special range.
func isSpecial(id int32) bool {
	return id >= PadID && id <= EOSID
}
