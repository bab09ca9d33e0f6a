// Package train is the stateful orchestration layer around the
// translation model: it owns the optimizer, the schedule step counter and
// the per-epoch validation buffers, while the model stays a pure function
// of its parameters.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	model := nn.NewSeq2Seq(modelCfg, backend)
//	trainer, err := train.New(model, tok, train.DefaultConfig(), backend, logger)
//	if err != nil {
//	    return err
//	}
//	result, err := trainer.Fit(ctx, trainBatches, validBatches)
package train

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/born-ml/seq2seq/internal/autodiff"
	"github.com/born-ml/seq2seq/internal/bleu"
	"github.com/born-ml/seq2seq/internal/data"
	"github.com/born-ml/seq2seq/internal/generate"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/optim"
	"github.com/born-ml/seq2seq/internal/tensor"
	"github.com/born-ml/seq2seq/internal/tokenizer"
)

// Trainer runs training and validation steps for one model.
type Trainer[B autodiff.BackwardCapable] struct {
	cfg       Config
	model     *nn.Seq2Seq[B]
	tok       tokenizer.Tokenizer
	backend   B
	loss      *nn.LabelSmoothedCrossEntropy[B]
	optimizer *optim.Adam[B]
	schedule  optim.Noam
	acc       *optim.Accumulator[B]
	decoder   *generate.Greedy[B]
	scorer    bleu.Scorer
	stopper   *EarlyStopping
	logger    *slog.Logger

	step      int     // optimizer steps taken; drives the schedule
	epoch     int     // epochs completed
	best      float64 // best validation BLEU, -Inf before the first
	windowSum float64 // training loss summed over the current accumulation window

	// Validation buffers, cleared by OnValidationEpochEnd.
	predictions []string
	references  []string
	valLossSum  float64
	valBatches  int
}

// New creates a trainer. A nil logger means slog.Default().
func New[B autodiff.BackwardCapable](
	model *nn.Seq2Seq[B],
	tok tokenizer.Tokenizer,
	cfg Config,
	backend B,
	logger *slog.Logger,
) (*Trainer[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training config: %w", err)
	}
	if tok.VocabSize() != model.Config().VocabSize {
		return nil, fmt.Errorf("tokenizer has %d tokens but the model expects %d",
			tok.VocabSize(), model.Config().VocabSize)
	}
	if logger == nil {
		logger = slog.Default()
	}

	ids, err := specialIDs(tok)
	if err != nil {
		return nil, err
	}
	if ids.PadID != model.Config().PadID {
		return nil, fmt.Errorf("tokenizer PAD id %d differs from the model's %d", ids.PadID, model.Config().PadID)
	}
	// Decoded rows cannot outgrow the positional table.
	ids.MaxLength = min(cfg.DecodeMaxLength, model.MaxSeqLen())

	params := model.Parameters()
	schedule := optim.NewNoam(model.Config().ModelDim, cfg.WarmupSteps, cfg.LRFactor)
	optimizer := optim.NewAdam(params, optim.AdamConfig{
		LR:    schedule.LR(1),
		Betas: cfg.Betas,
		Eps:   cfg.Eps,
	}, backend)

	return &Trainer[B]{
		cfg:       cfg,
		model:     model,
		tok:       tok,
		backend:   backend,
		loss:      nn.NewLabelSmoothedCrossEntropy(cfg.LabelSmoothing, ids.PadID, backend),
		optimizer: optimizer,
		schedule:  schedule,
		acc:       optim.NewAccumulator(params),
		decoder:   generate.NewGreedy[B](model, ids, backend),
		scorer:    bleu.New(),
		stopper:   NewEarlyStopping(cfg.EarlyStopping),
		logger:    logger,
		best:      math.Inf(-1),
	}, nil
}

// specialIDs resolves PAD, SOS and EOS through the tokenizer.
func specialIDs(tok tokenizer.Tokenizer) (generate.Config, error) {
	var cfg generate.Config
	for _, s := range []struct {
		name string
		dst  *int32
	}{
		{tokenizer.PadToken, &cfg.PadID},
		{tokenizer.SOSToken, &cfg.SOSID},
		{tokenizer.EOSToken, &cfg.EOSID},
	} {
		id, err := tok.TokenToID(s.name)
		if err != nil {
			return cfg, fmt.Errorf("resolve %s: %w", s.name, err)
		}
		*s.dst = id
	}
	return cfg, nil
}

// SetScorer replaces the validation scorer.
func (t *Trainer[B]) SetScorer(s bleu.Scorer) {
	t.scorer = s
}

// Model returns the trained model.
func (t *Trainer[B]) Model() *nn.Seq2Seq[B] {
	return t.model
}

// Optimizer returns the Adam optimizer.
func (t *Trainer[B]) Optimizer() *optim.Adam[B] {
	return t.optimizer
}

// Step returns the number of optimizer steps taken.
func (t *Trainer[B]) Step() int {
	return t.step
}

// Epoch returns the number of completed epochs.
func (t *Trainer[B]) Epoch() int {
	return t.epoch
}

// LR returns the learning rate of the most recent optimizer step, or of
// the first one before training starts.
func (t *Trainer[B]) LR() float32 {
	return t.optimizer.GetLR()
}

// PendingMicroBatches returns the number of micro-batches accumulated
// since the last optimizer step.
func (t *Trainer[B]) PendingMicroBatches() int {
	return t.acc.Count()
}

// TrainingStep runs one teacher-forced forward and backward pass on batch
// and returns its loss. Every AccumulateGradBatches calls perform exactly
// one optimizer step and one schedule advance.
func (t *Trainer[B]) TrainingStep(batch data.Batch) (float32, error) {
	t.model.Train()

	tape := t.backend.Tape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	loss, err := t.batchLoss(batch)
	if err != nil {
		return 0, err
	}
	value := loss.Raw().AsFloat32()[0]
	if math.IsNaN(float64(value)) {
		return 0, fmt.Errorf("training loss is NaN at step %d", t.step)
	}

	t.acc.Add(autodiff.Backward(loss, t.backend))
	t.windowSum += float64(value)
	if t.acc.Count() >= t.cfg.AccumulateGradBatches {
		t.optimizerStep()
	}
	return value, nil
}

// Flush performs an optimizer step on a partially filled accumulation
// window. It does nothing when no micro-batch is pending.
func (t *Trainer[B]) Flush() {
	if t.acc.Count() > 0 {
		t.optimizerStep()
	}
}

func (t *Trainer[B]) optimizerStep() {
	params := t.model.Parameters()
	micro := t.acc.Count()
	grads := t.acc.Grads()

	norm := optim.ClipGradNorm(params, grads, t.cfg.GradientClip)
	t.step++
	lr := t.schedule.LR(t.step)
	t.optimizer.SetLR(lr)
	t.optimizer.Step(grads)
	t.acc.Reset()

	trainLoss := t.windowSum / float64(micro)
	t.windowSum = 0
	if t.cfg.LogEvery > 0 && t.step%t.cfg.LogEvery == 0 {
		t.logger.Info("train",
			slog.Int("step", t.step),
			slog.Float64("train_loss", trainLoss),
			slog.Float64("learning_rate", float64(lr)),
			slog.Float64("grad_norm", float64(norm)))
	}
}

// ValidationStep computes the loss of batch without gradients, greedily
// decodes its sources and buffers prediction and reference texts for
// OnValidationEpochEnd.
func (t *Trainer[B]) ValidationStep(batch data.Batch) (float32, error) {
	tape := t.backend.Tape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	wasTraining := t.model.Training()
	t.model.Eval()
	defer func() {
		if wasTraining {
			t.model.Train()
		}
		if wasRecording {
			tape.StartRecording()
		}
	}()

	loss, err := t.batchLoss(batch)
	if err != nil {
		return 0, err
	}
	value := loss.Raw().AsFloat32()[0]

	decoded, err := t.decoder.Decode(data.ToTensor(batch.Source, t.backend))
	if err != nil {
		return 0, fmt.Errorf("greedy decode: %w", err)
	}

	_, out := batch.Shift()
	pad := t.decoder.Config().PadID
	for i := range decoded {
		prediction, err := t.tok.Decode(withoutPad(decoded[i], pad), true)
		if err != nil {
			return 0, fmt.Errorf("decode prediction %d: %w", i, err)
		}
		reference, err := t.tok.Decode(withoutPad(out[i], pad), true)
		if err != nil {
			return 0, fmt.Errorf("decode reference %d: %w", i, err)
		}
		t.predictions = append(t.predictions, prediction)
		t.references = append(t.references, reference)
	}

	t.valLossSum += float64(value)
	t.valBatches++
	return value, nil
}

// ValidationResult summarizes one validation epoch.
type ValidationResult struct {
	Loss    float64 // mean batch loss
	BLEU    float64 // corpus BLEU of greedy decodes, 0 to 100
	Samples int
}

// OnValidationEpochEnd scores the buffered predictions against their
// references and clears the buffers. With nothing buffered the result is
// zero.
func (t *Trainer[B]) OnValidationEpochEnd() ValidationResult {
	var res ValidationResult
	if t.valBatches > 0 {
		res.Loss = t.valLossSum / float64(t.valBatches)
	}
	if len(t.predictions) > 0 {
		res.BLEU = t.scorer.Corpus(t.predictions, t.references)
		res.Samples = len(t.predictions)
	}

	t.logger.Info("validation",
		slog.Int("epoch", t.epoch),
		slog.Int("step", t.step),
		slog.Float64("val_loss", res.Loss),
		slog.Float64("val_bleu", res.BLEU),
		slog.Int("samples", res.Samples))

	t.predictions = nil
	t.references = nil
	t.valLossSum = 0
	t.valBatches = 0
	return res
}

// batchLoss runs the teacher-forced forward pass: the decoder reads the
// target without its last token and predicts it without its first.
func (t *Trainer[B]) batchLoss(batch data.Batch) (*tensor.Tensor[float32, B], error) {
	in, out := batch.Shift()
	src := data.ToTensor(batch.Source, t.backend)
	tgtIn := data.ToTensor(in, t.backend)
	tgtOut := data.ToTensor(out, t.backend)

	logits, err := t.model.Forward(src, tgtIn)
	if err != nil {
		return nil, err
	}
	return t.loss.Forward(logits, tgtOut), nil
}

func withoutPad(ids []int32, pad int32) []int32 {
	kept := make([]int32, 0, len(ids))
	for _, id := range ids {
		if id != pad {
			kept = append(kept, id)
		}
	}
	return kept
}
