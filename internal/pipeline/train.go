package pipeline

import (
	"context"
	"fmt"

	"github.com/colorpref/colorpref/internal/nn"
)

// TrainConfig controls one training run.
type TrainConfig struct {
	Epochs          int     `koanf:"epochs" json:"epochs" validate:"gt=0"`
	BatchSize       int     `koanf:"batch_size" json:"batch_size" validate:"gt=0"`
	ValidationSplit float64 `koanf:"validation_split" json:"validation_split" validate:"gte=0,lt=1"`
}

// DefaultTrainConfig returns the standard training parameters.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:          50,
		BatchSize:       32,
		ValidationSplit: 0.2,
	}
}

// Early stopping parameters: training halts once the monitored loss has
// improved by less than earlyStopMinDelta for earlyStopPatience
// consecutive epochs.
const (
	earlyStopMinDelta = 0.001
	earlyStopPatience = 5
)

// Train preprocesses the labeled colors and fits the model over them
// with shuffling and early stopping, returning the training history.
// Preprocessing errors propagate unchanged; engine failures are wrapped
// in ErrTraining with the original message. The model is mutated in
// place; callers must not run two trainings against the same model
// concurrently.
func Train(ctx context.Context, m Trainable, liked, disliked []string, cfg TrainConfig) (*nn.History, error) {
	if cfg.Epochs == 0 {
		cfg.Epochs = 50
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 32
	}

	ds, err := Preprocess(liked, disliked)
	if err != nil {
		return nil, err
	}

	hist, err := m.Fit(ctx, ds.Inputs, ds.Labels, nn.FitOptions{
		Epochs:          cfg.Epochs,
		BatchSize:       cfg.BatchSize,
		ValidationSplit: cfg.ValidationSplit,
		EarlyStopping: &nn.EarlyStopping{
			MinDelta: earlyStopMinDelta,
			Patience: earlyStopPatience,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTraining, err)
	}
	return hist, nil
}
