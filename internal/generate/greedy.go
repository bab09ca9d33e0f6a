package generate

import (
	"fmt"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Model is the inference surface greedy decoding needs. *nn.Seq2Seq
// satisfies it.
type Model[B tensor.Backend] interface {
	Encode(src *tensor.Tensor[int32, B], srcMask *tensor.Tensor[bool, B]) *tensor.Tensor[float32, B]
	Decode(tgt *tensor.Tensor[int32, B], memory *tensor.Tensor[float32, B], srcMask, tgtMask *tensor.Tensor[bool, B]) *tensor.Tensor[float32, B]
	Project(hidden *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	MaxSeqLen() int
}

// modeSwitcher is implemented by models with dropout.
type modeSwitcher interface {
	Training() bool
	Train()
	Eval()
}

// recorder is implemented by autodiff backends.
type recorder interface {
	Tape() *autodiff.GradientTape
}

// Config configures greedy decoding.
type Config struct {
	// MaxLength bounds every output row, SOS included.
	MaxLength int

	// Special token ids. PAD must be the id the model's masks use.
	PadID int32
	SOSID int32
	EOSID int32
}

// DefaultConfig returns the decoding defaults for the [PAD] [UNK] [SOS]
// [EOS] = 0..3 vocabulary layout.
func DefaultConfig() Config {
	return Config{MaxLength: 50, PadID: 0, SOSID: 2, EOSID: 3}
}

// State is a phase of the decoding state machine.
type State int

// Decoding states.
const (
	StateInit State = iota
	StateStep
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateStep:
		return "STEP"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StopReason tells why a row stopped growing.
type StopReason string

// Stop reasons.
const (
	StopEOS       StopReason = "eos"
	StopMaxLength StopReason = "max_length"
)

// Result is one decoded row.
type Result struct {
	IDs    []int32 // SOS first, EOS last if it was reached
	Reason StopReason
}

// Greedy decodes with arg-max token selection.
type Greedy[B tensor.Backend] struct {
	model   Model[B]
	config  Config
	backend B
}

// NewGreedy creates a greedy decoder for model.
func NewGreedy[B tensor.Backend](model Model[B], config Config, backend B) *Greedy[B] {
	return &Greedy[B]{model: model, config: config, backend: backend}
}

// Config returns the decoding configuration.
func (g *Greedy[B]) Config() Config {
	return g.config
}

// Decode greedily translates source ids [batch, src_len] and returns one id
// sequence per row.
func (g *Greedy[B]) Decode(src *tensor.Tensor[int32, B]) ([][]int32, error) {
	results, err := g.DecodeResults(src)
	if err != nil {
		return nil, err
	}
	out := make([][]int32, len(results))
	for i, r := range results {
		out[i] = r.IDs
	}
	return out, nil
}

// DecodeResults is Decode with the stop reason of every row.
//
// Dropout is disabled and gradient recording paused for the duration of
// the call; both are restored afterwards.
func (g *Greedy[B]) DecodeResults(src *tensor.Tensor[int32, B]) ([]Result, error) {
	if err := g.validate(src); err != nil {
		return nil, err
	}

	if m, ok := any(g.model).(modeSwitcher); ok && m.Training() {
		m.Eval()
		defer m.Train()
	}
	if r, ok := any(g.backend).(recorder); ok && r.Tape().IsRecording() {
		r.Tape().StopRecording()
		defer r.Tape().StartRecording()
	}

	d := &decoding[B]{greedy: g, src: src}
	for d.state != StateDone {
		d.advance()
	}
	return d.results(), nil
}

func (g *Greedy[B]) validate(src *tensor.Tensor[int32, B]) error {
	maxSeqLen := g.model.MaxSeqLen()
	switch {
	case g.config.MaxLength < 1:
		return fmt.Errorf("generate: max length must be positive, got %d", g.config.MaxLength)
	case g.config.MaxLength > maxSeqLen:
		return fmt.Errorf("generate: max length %d exceeds the model's %d: %w",
			g.config.MaxLength, maxSeqLen, nn.ErrSequenceTooLong)
	}

	shape := src.Shape()
	switch {
	case len(shape) != 2 || shape[0] == 0 || shape[1] == 0:
		return fmt.Errorf("generate: source must be a non-empty [batch, seq] array, got %v: %w",
			shape, nn.ErrDimMismatch)
	case shape[1] > maxSeqLen:
		return fmt.Errorf("generate: source length %d exceeds %d: %w", shape[1], maxSeqLen, nn.ErrSequenceTooLong)
	}
	return nil
}

// decoding holds the state of one Decode call.
type decoding[B tensor.Backend] struct {
	greedy *Greedy[B]
	src    *tensor.Tensor[int32, B]
	state  State

	srcMask  *tensor.Tensor[bool, B]
	memory   *tensor.Tensor[float32, B]
	rows     [][]int32
	finished []bool
}

// advance performs one state transition.
func (d *decoding[B]) advance() {
	switch d.state {
	case StateInit:
		d.init()
	case StateStep:
		d.step()
	}
	if d.state != StateInit && d.complete() {
		d.state = StateDone
	}
}

func (d *decoding[B]) init() {
	cfg := d.greedy.config
	d.srcMask = nn.PaddingMask(d.src, cfg.PadID)
	d.memory = d.greedy.model.Encode(d.src, d.srcMask)

	batch := d.src.Shape()[0]
	d.rows = make([][]int32, batch)
	for i := range d.rows {
		d.rows[i] = make([]int32, 1, cfg.MaxLength)
		d.rows[i][0] = cfg.SOSID
	}
	d.finished = make([]bool, batch)
	d.state = StateStep
}

func (d *decoding[B]) step() {
	cfg := d.greedy.config
	model := d.greedy.model
	batch, length := len(d.rows), len(d.rows[0])

	flat := make([]int32, 0, batch*length)
	for _, row := range d.rows {
		flat = append(flat, row...)
	}
	tgt := tensor.MustFromSlice(flat, tensor.Shape{batch, length}, d.greedy.backend)

	hidden := model.Decode(tgt, d.memory, d.srcMask, nn.TargetMask(tgt, cfg.PadID))
	next := tensor.Argmax(model.Project(lastPosition(hidden)), -1).Data()

	for i := range d.rows {
		token := cfg.PadID
		if !d.finished[i] {
			token = next[i]
			d.finished[i] = token == cfg.EOSID
		}
		d.rows[i] = append(d.rows[i], token)
	}
}

func (d *decoding[B]) complete() bool {
	if len(d.rows[0]) >= d.greedy.config.MaxLength {
		return true
	}
	for _, f := range d.finished {
		if !f {
			return false
		}
	}
	return true
}

// results trims the PAD filler that follows EOS in finished rows.
func (d *decoding[B]) results() []Result {
	out := make([]Result, len(d.rows))
	for i, row := range d.rows {
		r := Result{IDs: row, Reason: StopMaxLength}
		for j := 1; j < len(row); j++ {
			if row[j] == d.greedy.config.EOSID {
				r.IDs = row[:j+1]
				r.Reason = StopEOS
				break
			}
		}
		out[i] = r
	}
	return out
}

// lastPosition copies hidden[:, -1:, :] into a new [batch, 1, dim] tensor.
func lastPosition[B tensor.Backend](hidden *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := hidden.Shape()
	batch, length, dim := shape[0], shape[1], shape[2]
	data := hidden.Data()

	out := make([]float32, 0, batch*dim)
	for b := range batch {
		start := (b*length + length - 1) * dim
		out = append(out, data[start:start+dim]...)
	}
	return tensor.MustFromSlice(out, tensor.Shape{batch, 1, dim}, hidden.Backend())
}
