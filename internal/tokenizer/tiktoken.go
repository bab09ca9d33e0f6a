package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// encodingCL100kBase is the encoding name for GPT-4 and GPT-3.5-turbo.
	encodingCL100kBase = "cl100k_base"
	// encodingP50kBase is the encoding name for GPT-3.
	encodingP50kBase = "p50k_base"
	// encodingR50kBase is the encoding name for older GPT-3 models.
	encodingR50kBase = "r50k_base"
)

// idOffset moves pretrained ids past the shared special tokens.
var idOffset = int32(len(SpecialTokens))

// TikToken adapts a pretrained tiktoken encoding to the translation
// vocabulary layout: ids 0..3 are [PAD] [UNK] [SOS] [EOS] and every
// tiktoken id t becomes t+4.
//
// Supported encodings:
//   - cl100k_base: GPT-4, GPT-3.5-turbo, text-embedding-ada-002
//   - p50k_base: GPT-3, Codex
//   - r50k_base: GPT-3, davinci-002, babbage-002
//
// Text is normalized the same way as for BPE before encoding.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken creates a new TikToken tokenizer with the specified encoding.
// The encoding's ranks are downloaded on first use unless a BPE loader
// with a local cache is configured in tiktoken-go.
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}

	return &TikToken{
		encoding: encoding,
		name:     encodingName,
	}, nil
}

// NewTikTokenForModel creates a TikToken tokenizer for a specific model.
//
// Example models: "gpt-4", "gpt-3.5-turbo", "text-embedding-ada-002".
func NewTikTokenForModel(modelName string) (*TikToken, error) {
	encoding, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken for model %q: %w", modelName, err)
	}

	return &TikToken{
		encoding: encoding,
		name:     modelName,
	}, nil
}

// Encode converts text to ids wrapped as [SOS] ... [EOS]. Special-token
// text inside the input is encoded as ordinary text.
func (t *TikToken) Encode(text string) ([]int32, error) {
	tokens := t.encoding.EncodeOrdinary(Normalize(text))

	result := make([]int32, 0, len(tokens)+2)
	result = append(result, SOSID)
	for _, tok := range tokens {
		result = append(result, int32(tok)+idOffset) //nolint:gosec // G115: Token ID fits in int32 - vocab size < 2^31.
	}
	return append(result, EOSID), nil
}

// Decode converts ids back to text. Without skipSpecial the special tokens
// are rendered by name.
func (t *TikToken) Decode(ids []int32, skipSpecial bool) (string, error) {
	var (
		text  []byte
		chunk []int
	)
	flush := func() {
		if len(chunk) > 0 {
			text = append(text, t.encoding.Decode(chunk)...)
			chunk = chunk[:0]
		}
	}

	for _, id := range ids {
		switch {
		case id < 0 || int(id) >= t.VocabSize():
			return "", fmt.Errorf("tiktoken %s: id %d: %w", t.name, id, ErrUnknownToken)
		case isSpecial(id):
			if !skipSpecial {
				flush()
				text = append(text, SpecialTokens[id]...)
			}
		default:
			chunk = append(chunk, int(id-idOffset))
		}
	}
	flush()
	return string(text), nil
}

// TokenToID resolves one of the special token strings, or text that
// encodes to exactly one pretrained token.
func (t *TikToken) TokenToID(token string) (int32, error) {
	for id, special := range SpecialTokens {
		if token == special {
			return int32(id), nil //nolint:gosec // four special tokens
		}
	}
	tokens := t.encoding.EncodeOrdinary(token)
	if len(tokens) != 1 {
		return 0, fmt.Errorf("tiktoken %s: %q: %w", t.name, token, ErrUnknownToken)
	}
	return int32(tokens[0]) + idOffset, nil //nolint:gosec // G115: Token ID fits in int32.
}

// VocabSize returns the pretrained vocabulary size plus the special tokens.
func (t *TikToken) VocabSize() int {
	return t.baseVocabSize() + int(idOffset)
}

// baseVocabSize is the size of the ordinary tiktoken ranks. tiktoken-go
// doesn't expose it directly.
func (t *TikToken) baseVocabSize() int {
	switch t.name {
	case encodingCL100kBase, "gpt-4", "gpt-3.5-turbo", "text-embedding-ada-002":
		return 100256
	case encodingP50kBase:
		return 50281
	case encodingR50kBase:
		return 50257
	default:
		return 100256
	}
}

// IsSpecialToken checks if a token ID is a special token.
func (t *TikToken) IsSpecialToken(id int32) bool {
	return isSpecial(id)
}

// Name returns the encoding or model name.
func (t *TikToken) Name() string {
	return t.name
}
