// SPDX-License-Identifier: MIT

// Package config defines the typed run configuration: environment,
// model shape, training schedule, inference and checkpointing, grouped
// the way runner configs lay them out. Every recognized key is an
// explicit struct field with a default; Load overlays a YAML file onto
// the defaults and Validate rejects unknown selectors once, up front.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/katalvlaran/lvlnn/gcn"
)

// Sentinel errors.
var (
	// ErrUnknownConstruction indicates an unimplemented graph-construction
	// selector.
	ErrUnknownConstruction = errors.New("config: unknown graph construction")
	// ErrBadValue indicates a field outside its legal range.
	ErrBadValue = errors.New("config: value out of range")
)

// Recognized graph-construction selectors.
const (
	ConstructionDependency     = "dependency"
	ConstructionConstituency   = "constituency"
	ConstructionNodeEmb        = "node_emb"
	ConstructionNodeEmbRefined = "node_emb_refined"
)

// Defaults.
const (
	DefaultSeed             = 1234
	DefaultDevice           = "cpu"
	DefaultConstruction     = ConstructionDependency
	DefaultDirection        = "undirected"
	DefaultNorm             = "both"
	DefaultNumLayers        = 1
	DefaultEmbSize          = 300
	DefaultHiddenSize       = 300
	DefaultBatchSize        = 20
	DefaultLearningRate     = 1e-3
	DefaultWeightDecay      = 0.0
	DefaultGradClip         = 5.0
	DefaultMaxEpochs        = 200
	DefaultWarmupEpochs     = 2
	DefaultEvalEveryNEpochs = 5
	DefaultMinFreq          = 1
	DefaultInitWeight       = 0.08
	DefaultMaxDecSeqLength  = 50
	DefaultMaxDecTreeDepth  = 50
	DefaultBeamSize         = 2
	DefaultCheckpointDir    = "checkpoints"
	DefaultCheckpointName   = "best.ckpt"
)

// Env groups reproducibility and device settings.
type Env struct {
	Seed   int64  `yaml:"seed"`
	Device string `yaml:"device"`
}

// Model groups network-shape settings.
type Model struct {
	GraphConstruction string `yaml:"graph_construction"`
	Direction         string `yaml:"direction"`
	Norm              string `yaml:"norm"`
	NumLayers         int    `yaml:"num_layers"`
	EmbSize           int    `yaml:"emb_size"`
	HiddenSize        int    `yaml:"hidden_size"`
	UseCopy           bool   `yaml:"use_copy"`
	ShareVocab        bool   `yaml:"share_vocab"`
	UseEdgeWeight     bool   `yaml:"use_edge_weight"`
}

// Training groups the schedule and optimization settings.
type Training struct {
	BatchSize        int     `yaml:"batch_size"`
	LearningRate     float64 `yaml:"learning_rate"`
	WeightDecay      float64 `yaml:"weight_decay"`
	GradClip         float64 `yaml:"grad_clip"`
	MaxEpochs        int     `yaml:"max_epochs"`
	WarmupEpochs     int     `yaml:"warmup_epochs"`
	EvalEveryNEpochs int     `yaml:"eval_every_n_epochs"`
	MinFreq          int     `yaml:"min_word_vocab_freq"`
	InitWeight       float64 `yaml:"init_weight"`
	MaxDecSeqLength  int     `yaml:"max_dec_seq_length"`
	MaxDecTreeDepth  int     `yaml:"max_dec_tree_depth"`
}

// Inference groups decode-time settings.
type Inference struct {
	BeamSize int `yaml:"beam_size"`
}

// Checkpoint groups persistence settings.
type Checkpoint struct {
	Dir  string `yaml:"dir"`
	Name string `yaml:"name"`
}

// Path joins Dir and Name.
func (c Checkpoint) Path() string { return filepath.Join(c.Dir, c.Name) }

// Config is the full run configuration.
type Config struct {
	Env        Env        `yaml:"env_args"`
	Model      Model      `yaml:"model_args"`
	Training   Training   `yaml:"training_args"`
	Inference  Inference  `yaml:"inference_args"`
	Checkpoint Checkpoint `yaml:"checkpoint_args"`
}

// Default returns the configuration with every field at its default.
func Default() Config {
	return Config{
		Env: Env{Seed: DefaultSeed, Device: DefaultDevice},
		Model: Model{
			GraphConstruction: DefaultConstruction,
			Direction:         DefaultDirection,
			Norm:              DefaultNorm,
			NumLayers:         DefaultNumLayers,
			EmbSize:           DefaultEmbSize,
			HiddenSize:        DefaultHiddenSize,
			UseCopy:           true,
			ShareVocab:        true,
		},
		Training: Training{
			BatchSize:        DefaultBatchSize,
			LearningRate:     DefaultLearningRate,
			WeightDecay:      DefaultWeightDecay,
			GradClip:         DefaultGradClip,
			MaxEpochs:        DefaultMaxEpochs,
			WarmupEpochs:     DefaultWarmupEpochs,
			EvalEveryNEpochs: DefaultEvalEveryNEpochs,
			MinFreq:          DefaultMinFreq,
			InitWeight:       DefaultInitWeight,
			MaxDecSeqLength:  DefaultMaxDecSeqLength,
			MaxDecTreeDepth:  DefaultMaxDecTreeDepth,
		},
		Inference:  Inference{BeamSize: DefaultBeamSize},
		Checkpoint: Checkpoint{Dir: DefaultCheckpointDir, Name: DefaultCheckpointName},
	}
}

// Load overlays the YAML file at path onto the defaults and validates
// the result. Keys absent from the file keep their default.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	cfg := Default()
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Validate checks every enumerated selector and numeric range once.
//
// Errors: ErrUnknownConstruction, ErrBadValue, gcn.ErrUnknownDirection,
// gcn.ErrUnknownNorm.
func (c Config) Validate() error {
	switch c.Model.GraphConstruction {
	case ConstructionDependency, ConstructionConstituency, ConstructionNodeEmb, ConstructionNodeEmbRefined:
	default:
		return fmt.Errorf("Validate: %q: %w", c.Model.GraphConstruction, ErrUnknownConstruction)
	}
	if _, err := gcn.ParseDirection(c.Model.Direction); err != nil {
		return fmt.Errorf("Validate: %w", err)
	}
	if _, err := gcn.ParseNorm(c.Model.Norm); err != nil {
		return fmt.Errorf("Validate: %w", err)
	}

	positive := []struct {
		field string
		ok    bool
	}{
		{"num_layers", c.Model.NumLayers > 0},
		{"emb_size", c.Model.EmbSize > 0},
		{"hidden_size", c.Model.HiddenSize > 0},
		{"batch_size", c.Training.BatchSize > 0},
		{"learning_rate", c.Training.LearningRate > 0},
		{"max_epochs", c.Training.MaxEpochs > 0},
		{"eval_every_n_epochs", c.Training.EvalEveryNEpochs > 0},
		{"max_dec_seq_length", c.Training.MaxDecSeqLength > 0},
		{"max_dec_tree_depth", c.Training.MaxDecTreeDepth > 0},
		{"beam_size", c.Inference.BeamSize > 0},
	}
	for _, p := range positive {
		if !p.ok {
			return fmt.Errorf("Validate: %s: %w", p.field, ErrBadValue)
		}
	}
	if c.Training.WeightDecay < 0 || c.Training.GradClip < 0 ||
		c.Training.WarmupEpochs < 0 || c.Training.InitWeight < 0 {
		return fmt.Errorf("Validate: %w", ErrBadValue)
	}
	return nil
}
