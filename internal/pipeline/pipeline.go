// Package pipeline implements the color preference learning pipeline:
// preprocessing labeled hex colors, building and training the
// classifier, and running predictions. The numeric backend is reached
// only through the Trainable interface so it stays swappable.
package pipeline

import (
	"context"
	"errors"

	"github.com/colorpref/colorpref/internal/nn"
)

var (
	// ErrInvalidInput reports malformed or empty caller input, detected
	// before any engine call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoData reports valid-shaped input that yields zero usable
	// samples after filtering.
	ErrNoData = errors.New("no usable samples")

	// ErrTraining wraps failures raised by the engine during a fit.
	ErrTraining = errors.New("training failed")
)

// Trainable is the narrow seam between the pipeline and the numeric
// backend: supervised fitting, single-sample inference and snapshot
// serialization.
type Trainable interface {
	Fit(ctx context.Context, inputs [][]float64, labels []float64, opts nn.FitOptions) (*nn.History, error)
	PredictOne(input []float64) (float64, error)
	Serialize() ([]byte, error)
}

// ModelConfig holds the hyperparameters of the classifier.
type ModelConfig struct {
	LearningRate float64 `koanf:"learning_rate" json:"learning_rate" validate:"gt=0"`
	Dropout      float64 `koanf:"dropout" json:"dropout" validate:"gte=0,lt=1"`
}

// DefaultModelConfig returns the standard hyperparameters.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		LearningRate: 0.001,
		Dropout:      0.2,
	}
}

// NewModel builds and compiles the fixed-topology preference
// classifier: 3 inputs, two hidden blocks of 32 and 16 units (each
// dense, batch-normalized, ReLU-activated and dropout-regularized), one
// sigmoid output; binary cross-entropy loss under Adam. Initial weights
// are random and unseeded.
func NewModel(cfg ModelConfig) (*nn.Network, error) {
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.Dropout == 0 {
		cfg.Dropout = 0.2
	}
	return nn.New(nn.Spec{
		InputDim:     3,
		Hidden:       []int{32, 16},
		LearningRate: cfg.LearningRate,
		Dropout:      cfg.Dropout,
	})
}
