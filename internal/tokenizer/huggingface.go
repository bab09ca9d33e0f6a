package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HFTokenizerType identifies the tokenizer implementation type.
type HFTokenizerType string

const (
	// HFTypeBPE indicates Byte-Pair Encoding tokenizer.
	HFTypeBPE HFTokenizerType = "BPE"

	// HFTypeWordPiece indicates WordPiece tokenizer (BERT-style).
	HFTypeWordPiece HFTokenizerType = "WordPiece"

	// HFTypeUnigram indicates Unigram tokenizer (SentencePiece-style).
	HFTypeUnigram HFTokenizerType = "Unigram"
)

// hfAddedToken is one entry of the added_tokens list.
type hfAddedToken struct {
	ID         int    `json:"id"`
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	LStrip     bool   `json:"lstrip"`
	RStrip     bool   `json:"rstrip"`
	Normalized bool   `json:"normalized"`
	Special    bool   `json:"special"`
}

type hfModel struct {
	Type    HFTokenizerType `json:"type"`
	Dropout *float64        `json:"dropout"`
	UnkTok  string          `json:"unk_token,omitempty"`
	FuseUnk bool            `json:"fuse_unk"`
	Vocab   map[string]int  `json:"vocab"`
	Merges  []string        `json:"merges"`
}

// hfFile is the subset of tokenizer.json this package reads and writes.
// The pipeline sections describe what Normalize and PreTokenize do so
// other HuggingFace tooling can reproduce the encoding.
type hfFile struct {
	Version       string          `json:"version"`
	AddedTokens   []hfAddedToken  `json:"added_tokens"`
	Normalizer    json.RawMessage `json:"normalizer"`
	PreTokenizer  json.RawMessage `json:"pre_tokenizer"`
	PostProcessor json.RawMessage `json:"post_processor"`
	Decoder       json.RawMessage `json:"decoder"`
	Model         hfModel         `json:"model"`
}

const hfNormalizer = `{"type":"Sequence","normalizers":[
{"type":"NFC"},
{"type":"Replace","pattern":{"String":"“"},"content":"\""},
{"type":"Replace","pattern":{"String":"”"},"content":"\""},
{"type":"Replace","pattern":{"String":"’"},"content":"'"},
{"type":"Replace","pattern":{"Regex":"\\s+"},"content":" "},
{"type":"Strip","strip_left":true,"strip_right":true}]}`

const hfPreTokenizer = `{"type":"Split","pattern":{"Regex":" ?\\w+| ?[^\\w\\s]"},"behavior":"Isolated","invert":false}`

const hfPostProcessor = `{"type":"TemplateProcessing",
"single":[{"SpecialToken":{"id":"[SOS]","type_id":0}},{"Sequence":{"id":"A","type_id":0}},{"SpecialToken":{"id":"[EOS]","type_id":0}}],
"pair":[{"Sequence":{"id":"A","type_id":0}},{"Sequence":{"id":"B","type_id":1}}],
"special_tokens":{"[SOS]":{"id":"[SOS]","ids":[2],"tokens":["[SOS]"]},"[EOS]":{"id":"[EOS]","ids":[3],"tokens":["[EOS]"]}}}`

const hfDecoder = `{"type":"Metaspace","replacement":"▁","prepend_scheme":"never","split":false}`

// DetectHFTokenizerType reads the model type from a tokenizer.json file.
func DetectHFTokenizerType(path string) (HFTokenizerType, error) {
	//nolint:gosec // Loading tokenizer from user-specified path is intentional.
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read tokenizer.json: %w", err)
	}

	var probe struct {
		Model struct {
			Type HFTokenizerType `json:"type"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("failed to parse tokenizer.json: %w", err)
	}
	return probe.Model.Type, nil
}

// LoadHuggingFace loads a BPE tokenizer from a tokenizer.json file, or from
// a directory containing one.
func LoadHuggingFace(path string) (*BPE, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, "tokenizer.json")
	}

	//nolint:gosec // Loading tokenizer from user-specified path is intentional.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer.json: %w", err)
	}

	var file hfFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer.json: %w", err)
	}
	if file.Model.Type != HFTypeBPE {
		return nil, fmt.Errorf("unsupported tokenizer type %q", file.Model.Type)
	}

	tokens := make([]string, len(file.Model.Vocab))
	for token, id := range file.Model.Vocab {
		if id < 0 || id >= len(tokens) || tokens[id] != "" {
			return nil, fmt.Errorf("tokenizer.json: ids must be unique and dense, got %q = %d", token, id)
		}
		tokens[id] = token
	}

	merges := make([][2]string, 0, len(file.Model.Merges))
	for _, m := range file.Model.Merges {
		first, second, ok := strings.Cut(m, " ")
		if !ok {
			return nil, fmt.Errorf("tokenizer.json: malformed merge %q", m)
		}
		merges = append(merges, [2]string{first, second})
	}

	tok, err := NewBPE(tokens, merges)
	if err != nil {
		return nil, fmt.Errorf("tokenizer.json: %w", err)
	}
	return tok, nil
}

// SaveHuggingFace writes the tokenizer as a tokenizer.json file.
func (b *BPE) SaveHuggingFace(path string) error {
	vocab := make(map[string]int, len(b.tokens))
	for id, token := range b.tokens {
		vocab[token] = id
	}
	merges := make([]string, len(b.merges))
	for i, m := range b.merges {
		merges[i] = m.first + " " + m.second
	}

	added := make([]hfAddedToken, len(SpecialTokens))
	for id, token := range SpecialTokens {
		added[id] = hfAddedToken{ID: id, Content: token, Special: true}
	}

	file := hfFile{
		Version:       "1.0",
		AddedTokens:   added,
		Normalizer:    compact(hfNormalizer),
		PreTokenizer:  compact(hfPreTokenizer),
		PostProcessor: compact(hfPostProcessor),
		Decoder:       compact(hfDecoder),
		Model: hfModel{
			Type:   HFTypeBPE,
			UnkTok: UnkToken,
			Vocab:  vocab,
			Merges: merges,
		},
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tokenizer.json: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write tokenizer.json: %w", err)
	}
	return nil
}

func compact(s string) json.RawMessage {
	return json.RawMessage(strings.ReplaceAll(s, "\n", ""))
}
