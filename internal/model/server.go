// Package model owns the single active preference model for the
// service session: restore-or-fresh at startup, training runs with
// persistence after each success, and read-only predictions.
package model

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/colorpref/colorpref/internal/hexcolor"
	"github.com/colorpref/colorpref/internal/logging"
	"github.com/colorpref/colorpref/internal/metrics"
	"github.com/colorpref/colorpref/internal/nn"
	"github.com/colorpref/colorpref/internal/pipeline"
	"github.com/colorpref/colorpref/internal/store"
)

// ErrTrainingInProgress rejects a training call while another run is in
// flight against the model.
var ErrTrainingInProgress = errors.New("a training run is already in progress")

// Server holds the active model. The model is the only shared mutable
// resource: training takes the write lock, predictions the read lock,
// and the in-flight flag turns a second concurrent training call into
// an immediate rejection instead of a blocked request.
type Server struct {
	st       *store.Store
	modelID  string
	trainCfg pipeline.TrainConfig

	mu       sync.RWMutex
	net      *nn.Network
	restored bool
	trained  bool

	training atomic.Bool
}

// NewServer restores the model stored under the given ID, or builds a
// fresh untrained model when no usable entry exists. A load failure is
// not fatal; it only means there is no prior model.
func NewServer(ctx context.Context, st *store.Store, modelCfg pipeline.ModelConfig, trainCfg pipeline.TrainConfig, modelID string) (*Server, error) {
	s := &Server{st: st, modelID: modelID, trainCfg: trainCfg}

	net, err := st.Load(ctx, modelID)
	if err == nil {
		logging.Info().Str("model_id", modelID).Msg("restored persisted model")
		s.net = net
		s.restored = true
		s.trained = true
		return s, nil
	}
	logging.Info().Str("model_id", modelID).Err(err).Msg("no persisted model, starting fresh")

	net, err = pipeline.NewModel(modelCfg)
	if err != nil {
		return nil, err
	}
	s.net = net
	return s, nil
}

// Restored reports whether the model came from the store at startup.
func (s *Server) Restored() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restored
}

// Trained reports whether the model has been trained, either this
// session or before it was persisted.
func (s *Server) Trained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trained
}

// Train runs one training run over the labeled colors and persists the
// model on success. Returns ErrTrainingInProgress when a run is already
// in flight, and otherwise the pipeline's errors unchanged. A failed
// persistence attempt does not undo the training; it is reported via
// TrainResponse.Persisted.
func (s *Server) Train(ctx context.Context, liked, disliked []string) (*TrainResponse, error) {
	if !s.training.CompareAndSwap(false, true) {
		metrics.TrainingRuns.WithLabelValues("rejected").Inc()
		return nil, ErrTrainingInProgress
	}
	defer s.training.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	runID := uuid.NewString()
	start := time.Now()
	logging.Info().
		Str("run_id", runID).
		Int("liked", len(liked)).
		Int("disliked", len(disliked)).
		Msg("training run started")

	hist, err := pipeline.Train(ctx, s.net, liked, disliked, s.trainCfg)
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		logging.Error().Str("run_id", runID).Err(err).Msg("training run failed")
		return nil, err
	}

	duration := time.Since(start)
	metrics.TrainingRuns.WithLabelValues("ok").Inc()
	metrics.TrainingDuration.Observe(duration.Seconds())
	metrics.TrainingEpochs.Observe(float64(hist.EpochsRun))
	s.trained = true

	resp := &TrainResponse{
		RunID:         runID,
		EpochsRun:     hist.EpochsRun,
		StoppedEarly:  hist.StoppedEarly,
		FinalLoss:     hist.FinalLoss(),
		FinalAccuracy: hist.FinalAccuracy(),
		DurationMS:    duration.Milliseconds(),
	}

	if err := s.st.Save(ctx, s.modelID, s.net); err != nil {
		logging.Error().Str("run_id", runID).Err(err).Msg("persisting trained model failed")
	} else {
		resp.Persisted = true
	}

	logging.Info().
		Str("run_id", runID).
		Int("epochs_run", resp.EpochsRun).
		Bool("stopped_early", resp.StoppedEarly).
		Float64("final_accuracy", resp.FinalAccuracy).
		Dur("duration", duration).
		Msg("training run finished")
	return resp, nil
}

// Predict runs one inference pass for a hex color string.
func (s *Server) Predict(hex string) (*PredictResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := pipeline.Predict(s.net, hex)
	if err != nil {
		return nil, err
	}
	metrics.Predictions.WithLabelValues(p.Label).Inc()
	return &PredictResponse{
		Color:      hex,
		Score:      p.Score,
		Confidence: p.Confidence,
		Likely:     p.Likely,
		Label:      p.Label,
	}, nil
}

// PredictRGB is Predict for an already-parsed color vector.
func (s *Server) PredictRGB(rgb hexcolor.RGB) (*PredictResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := pipeline.PredictVector(s.net, rgb)
	if err != nil {
		return nil, err
	}
	metrics.Predictions.WithLabelValues(p.Label).Inc()
	return &PredictResponse{
		Color:      hexcolor.Format(rgb),
		Score:      p.Score,
		Confidence: p.Confidence,
		Likely:     p.Likely,
		Label:      p.Label,
	}, nil
}
