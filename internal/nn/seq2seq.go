package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Config describes the model architecture.
type Config struct {
	VocabSize int     // shared source/target vocabulary
	ModelDim  int     // d_model
	NumHeads  int     // attention heads; must divide ModelDim
	NumLayers int     // blocks per stack
	FFDim     int     // feed-forward inner dimension
	Dropout   float32 // dropout probability
	MaxSeqLen int     // positional table length
	PadID     int32   // PAD id shared by masks and loss
	Seed      int64   // initialization and dropout seed
}

// Validate checks the architectural invariants.
func (c Config) Validate() error {
	var errs []error
	if c.VocabSize <= 2 {
		errs = append(errs, fmt.Errorf("vocab_size must exceed 2, got %d", c.VocabSize))
	}
	if c.ModelDim <= 0 || c.NumHeads <= 0 {
		errs = append(errs, fmt.Errorf("d_model and num_heads must be positive, got %d and %d", c.ModelDim, c.NumHeads))
	} else if c.ModelDim%c.NumHeads != 0 {
		errs = append(errs, fmt.Errorf("d_model %d is not divisible by num_heads %d", c.ModelDim, c.NumHeads))
	}
	if c.NumLayers <= 0 || c.FFDim <= 0 || c.MaxSeqLen <= 0 {
		errs = append(errs, fmt.Errorf("num_layers, d_ff and max_seq_len must be positive, got %d, %d, %d",
			c.NumLayers, c.FFDim, c.MaxSeqLen))
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		errs = append(errs, fmt.Errorf("dropout must be in [0, 1), got %v", c.Dropout))
	}
	if c.PadID < 0 || int(c.PadID) >= c.VocabSize {
		errs = append(errs, fmt.Errorf("pad id %d outside vocabulary", c.PadID))
	}
	return errors.Join(errs...)
}

// HeadDim returns d_model / num_heads.
func (c Config) HeadDim() int {
	return c.ModelDim / c.NumHeads
}

// Seq2Seq is the encoder-decoder transformer.
//
// The model is a pure function of its parameters and inputs; optimizer,
// schedule and validation state live in the training layer. One embedding
// table serves the source lookup, the target lookup and the output
// projection.
//
// Example:
//
//	model := nn.NewSeq2Seq(cfg, autodiff.New(cpu.New()))
//	logits, err := model.Forward(src, tgtIn) // [batch, tgt_len, vocab]
type Seq2Seq[B tensor.Backend] struct {
	cfg        Config
	table      *Embedding[B]
	embed      *TokenEmbedding[B]
	positional *PositionalEncoding[B]
	encoder    *Encoder[B]
	decoder    *Decoder[B]
	projection *Linear[B]
	noise      *Noise
	backend    B
}

// NewSeq2Seq builds the model with Xavier-initialized weights drawn from
// cfg.Seed. The model starts in eval mode. Panics if cfg is invalid.
func NewSeq2Seq[B tensor.Backend](cfg Config, backend B) *Seq2Seq[B] {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Seq2Seq: invalid config: %v", err))
	}

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // reproducible initialization
	noise := NewNoise(cfg.Seed + 1)
	dropout := NewDropout(cfg.Dropout, noise, backend)

	table := NewEmbedding("shared_embedding", cfg.VocabSize, cfg.ModelDim, rng, backend)
	return &Seq2Seq[B]{
		cfg:        cfg,
		table:      table,
		embed:      NewTokenEmbedding(table),
		positional: NewPositionalEncoding(cfg.MaxSeqLen, cfg.ModelDim, dropout, backend),
		encoder:    NewEncoder("encoder", cfg, dropout, rng, backend),
		decoder:    NewDecoder("decoder", cfg, dropout, rng, backend),
		projection: NewTiedProjection("projection", table, backend),
		noise:      noise,
		backend:    backend,
	}
}

// Config returns the architecture the model was built with.
func (m *Seq2Seq[B]) Config() Config {
	return m.cfg
}

// Backend returns the computation backend.
func (m *Seq2Seq[B]) Backend() B {
	return m.backend
}

// MaxSeqLen returns the longest sequence the positional table supports.
func (m *Seq2Seq[B]) MaxSeqLen() int {
	return m.cfg.MaxSeqLen
}

// Embedding returns the shared vocabulary table.
func (m *Seq2Seq[B]) Embedding() *Embedding[B] {
	return m.table
}

// Projection returns the output projection tied to the shared table.
func (m *Seq2Seq[B]) Projection() *Linear[B] {
	return m.projection
}

// Encoder returns the encoder stack.
func (m *Seq2Seq[B]) Encoder() *Encoder[B] {
	return m.encoder
}

// Decoder returns the decoder stack.
func (m *Seq2Seq[B]) Decoder() *Decoder[B] {
	return m.decoder
}

// Positional returns the positional encoding.
func (m *Seq2Seq[B]) Positional() *PositionalEncoding[B] {
	return m.positional
}

// Train enables dropout.
func (m *Seq2Seq[B]) Train() {
	m.noise.SetTraining(true)
}

// Eval disables dropout.
func (m *Seq2Seq[B]) Eval() {
	m.noise.SetTraining(false)
}

// Training reports whether dropout is enabled.
func (m *Seq2Seq[B]) Training() bool {
	return m.noise.Training()
}

// CheckLength reports ErrSequenceTooLong for sequences the positional
// table cannot cover.
func (m *Seq2Seq[B]) CheckLength(seqLen int) error {
	return m.positional.Check(seqLen, m.cfg.ModelDim)
}

// Encode embeds source ids [batch, src_len] and runs the encoder stack,
// returning memory [batch, src_len, d_model].
func (m *Seq2Seq[B]) Encode(src *tensor.Tensor[int32, B], srcMask *tensor.Tensor[bool, B]) *tensor.Tensor[float32, B] {
	return m.encoder.Forward(m.positional.Forward(m.embed.Forward(src)), srcMask)
}

// Decode embeds target ids [batch, tgt_len] and runs the decoder stack
// against memory, returning hidden states [batch, tgt_len, d_model].
func (m *Seq2Seq[B]) Decode(
	tgt *tensor.Tensor[int32, B],
	memory *tensor.Tensor[float32, B],
	srcMask, tgtMask *tensor.Tensor[bool, B],
) *tensor.Tensor[float32, B] {
	return m.decoder.Forward(m.positional.Forward(m.embed.Forward(tgt)), memory, srcMask, tgtMask)
}

// Project maps hidden states [..., d_model] to vocabulary scores [..., vocab].
func (m *Seq2Seq[B]) Project(hidden *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.projection.Forward(hidden)
}

// Forward runs teacher-forced decoding: it builds both masks from the PAD
// id, encodes src and decodes tgt, returning logits [batch, tgt_len, vocab].
func (m *Seq2Seq[B]) Forward(src, tgt *tensor.Tensor[int32, B]) (*tensor.Tensor[float32, B], error) {
	if len(src.Shape()) != 2 || len(tgt.Shape()) != 2 || src.Shape()[0] != tgt.Shape()[0] {
		return nil, fmt.Errorf("seq2seq: source %v and target %v must be [batch, seq] with equal batch: %w",
			src.Shape(), tgt.Shape(), ErrDimMismatch)
	}
	if err := m.CheckLength(src.Shape()[1]); err != nil {
		return nil, fmt.Errorf("seq2seq: source: %w", err)
	}
	if err := m.CheckLength(tgt.Shape()[1]); err != nil {
		return nil, fmt.Errorf("seq2seq: target: %w", err)
	}

	srcMask := PaddingMask(src, m.cfg.PadID)
	tgtMask := TargetMask(tgt, m.cfg.PadID)
	memory := m.Encode(src, srcMask)
	return m.Project(m.Decode(tgt, memory, srcMask, tgtMask)), nil
}

// Parameters returns every trainable parameter exactly once. The shared
// embedding table appears a single time.
func (m *Seq2Seq[B]) Parameters() []*Parameter[B] {
	params := m.table.Parameters()
	params = append(params, m.encoder.Parameters()...)
	params = append(params, m.decoder.Parameters()...)
	params = append(params, m.projection.Parameters()...)
	return dedupe(params)
}

// NumParameters returns the number of distinct scalar weights.
func (m *Seq2Seq[B]) NumParameters() int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.NumElements()
	}
	return n
}
