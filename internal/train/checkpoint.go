package train

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"strings"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/serialization"
	"github.com/born-ml/seq2seq/internal/tensor"
)

const (
	modelConfigKey = "model_config"
	optimizerName  = "adam"
	adamPrefix     = "adam."
)

// ErrNotCheckpoint is returned by Resume for files without training state.
var ErrNotCheckpoint = errors.New("file holds no training state")

// SaveCheckpoint writes the parameters, the Adam moments and timestep, the
// global step, the epoch and the early stopping state to path. The shared
// embedding table is stored once.
func (t *Trainer[B]) SaveCheckpoint(path string) error {
	state := t.model.StateDict()
	maps.Copy(state, t.optimizer.StateDict())

	header, err := modelHeader(t.model.Config())
	if err != nil {
		return err
	}
	header.Kind = serialization.KindCheckpoint
	header.Checkpoint = &serialization.CheckpointMeta{
		Epoch:       t.epoch,
		Step:        int64(t.step),
		BestScore:   finite(t.best),
		MonitorBest: finite(t.stopper.Best()),
		BadEpochs:   t.stopper.BadEpochs(),
		Optimizer:   optimizerName,
		OptimizerConfig: map[string]float64{
			"beta1":        float64(t.cfg.Betas[0]),
			"beta2":        float64(t.cfg.Betas[1]),
			"eps":          float64(t.cfg.Eps),
			"lr_factor":    t.cfg.LRFactor,
			"warmup_steps": float64(t.cfg.WarmupSteps),
		},
	}

	if err := serialization.Save(path, state, header); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	t.logger.Debug("checkpoint saved", slog.String("path", path), slog.Int("step", t.step))
	return nil
}

// Resume restores a checkpoint written by SaveCheckpoint. The schedule
// continues from the saved step and the next Fit starts at the saved epoch.
// Micro-batches accumulated before the call are discarded.
func (t *Trainer[B]) Resume(path string) error {
	state, header, err := serialization.Load(path, t.backend.Device())
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	meta := header.Checkpoint
	if meta == nil || header.Kind != serialization.KindCheckpoint {
		return fmt.Errorf("resume %s: %w", path, ErrNotCheckpoint)
	}
	if meta.Optimizer != optimizerName {
		return fmt.Errorf("resume %s: optimizer %q, expected %q", path, meta.Optimizer, optimizerName)
	}
	saved, err := modelConfig(header)
	if err != nil {
		return fmt.Errorf("resume %s: %w", path, err)
	}
	if !sameArchitecture(saved, t.model.Config()) {
		return fmt.Errorf("resume %s: checkpoint model %+v does not match %+v", path, saved, t.model.Config())
	}

	if err := t.model.LoadStateDict(state); err != nil {
		return fmt.Errorf("resume %s: %w", path, err)
	}
	adamState := make(map[string]*tensor.RawTensor)
	for name, raw := range state {
		if strings.HasPrefix(name, adamPrefix) {
			adamState[name] = raw
		}
	}
	if err := t.optimizer.LoadStateDict(adamState); err != nil {
		return fmt.Errorf("resume %s: %w", path, err)
	}

	t.step = int(meta.Step)
	t.epoch = meta.Epoch
	t.best = orNegInf(meta.BestScore)
	t.stopper.restore(orNegInf(meta.MonitorBest), meta.BadEpochs)
	t.optimizer.SetLR(t.schedule.LR(t.step))
	t.acc.Reset()
	t.windowSum = 0

	t.logger.Info("resumed", slog.String("path", path), slog.Int("epoch", t.epoch), slog.Int("step", t.step))
	return nil
}

// SaveModel writes only the model parameters and configuration, for
// inference.
func SaveModel[B tensor.Backend](path string, model *nn.Seq2Seq[B]) error {
	header, err := modelHeader(model.Config())
	if err != nil {
		return err
	}
	if err := serialization.Save(path, model.StateDict(), header); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

// LoadModel rebuilds a model from a file written by SaveModel or
// SaveCheckpoint. The model starts in eval mode.
func LoadModel[B tensor.Backend](path string, backend B) (*nn.Seq2Seq[B], error) {
	state, header, err := serialization.Load(path, backend.Device())
	if err != nil {
		return nil, err
	}
	cfg, err := modelConfig(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid model config: %w", path, err)
	}

	model := nn.NewSeq2Seq(cfg, backend)
	if err := model.LoadStateDict(state); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	model.Eval()
	return model, nil
}

func modelHeader(cfg nn.Config) (serialization.Header, error) {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return serialization.Header{}, fmt.Errorf("encode model config: %w", err)
	}
	return serialization.Header{
		Kind:     serialization.KindModel,
		Metadata: map[string]string{modelConfigKey: string(encoded)},
	}, nil
}

func modelConfig(header serialization.Header) (nn.Config, error) {
	var cfg nn.Config
	encoded, ok := header.Metadata[modelConfigKey]
	if !ok {
		return cfg, fmt.Errorf("missing %q metadata", modelConfigKey)
	}
	if err := json.Unmarshal([]byte(encoded), &cfg); err != nil {
		return cfg, fmt.Errorf("decode model config: %w", err)
	}
	return cfg, nil
}

// sameArchitecture ignores dropout and seed, which do not shape parameters.
func sameArchitecture(a, b nn.Config) bool {
	a.Dropout, b.Dropout = 0, 0
	a.Seed, b.Seed = 0, 0
	return a == b
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func orNegInf(v *float64) float64 {
	if v == nil {
		return math.Inf(-1)
	}
	return *v
}
