package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/colorpref/colorpref/internal/nn"
)

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name      string
		liked     []string
		disliked  []string
		wantErr   error
		wantCount int
		wantLiked int
	}{
		{
			name:     "empty liked list",
			liked:    []string{},
			disliked: []string{"#000000"},
			wantErr:  ErrInvalidInput,
		},
		{
			name:     "empty disliked list",
			liked:    []string{"#ffffff"},
			disliked: nil,
			wantErr:  ErrInvalidInput,
		},
		{
			name:      "two per class",
			liked:     []string{"#ffffff", "#ffffff"},
			disliked:  []string{"#000000", "#000000"},
			wantCount: 4,
			wantLiked: 2,
		},
		{
			name:      "unparseable entries dropped silently",
			liked:     []string{"#ffffff", "junk", "#fff"},
			disliked:  []string{"#000000", ""},
			wantCount: 3,
			wantLiked: 2,
		},
		{
			name:     "all liked entries unparseable",
			liked:    []string{"junk", "also junk"},
			disliked: []string{"#000000"},
			wantErr:  ErrNoData,
		},
		{
			name:     "all disliked entries unparseable",
			liked:    []string{"#ffffff"},
			disliked: []string{"nope"},
			wantErr:  ErrNoData,
		},
		{
			name:      "single sample per class",
			liked:     []string{"#ffffff"},
			disliked:  []string{"#000000"},
			wantCount: 2,
			wantLiked: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := Preprocess(tt.liked, tt.disliked)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Preprocess() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Preprocess() error = %v", err)
			}
			if ds.Count != tt.wantCount || len(ds.Inputs) != tt.wantCount || len(ds.Labels) != tt.wantCount {
				t.Fatalf("Count = %d, inputs %d, labels %d, want %d",
					ds.Count, len(ds.Inputs), len(ds.Labels), tt.wantCount)
			}
			// Liked samples carry label 1 and precede disliked samples.
			for i, label := range ds.Labels {
				want := 0.0
				if i < tt.wantLiked {
					want = 1.0
				}
				if label != want {
					t.Errorf("Labels[%d] = %v, want %v", i, label, want)
				}
			}
		})
	}
}

func TestPreprocessPreservesOrder(t *testing.T) {
	ds, err := Preprocess([]string{"#ff0000", "#00ff00"}, []string{"#0000ff"})
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for i, vec := range ds.Inputs {
		for j := range vec {
			if math.Abs(vec[j]-want[i][j]) > 1e-12 {
				t.Errorf("Inputs[%d] = %v, want %v", i, vec, want[i])
			}
		}
	}
}

func TestNewModelDefaults(t *testing.T) {
	m, err := NewModel(ModelConfig{})
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	spec := m.Spec()
	if spec.InputDim != 3 {
		t.Errorf("InputDim = %d, want 3", spec.InputDim)
	}
	if len(spec.Hidden) != 2 || spec.Hidden[0] != 32 || spec.Hidden[1] != 16 {
		t.Errorf("Hidden = %v, want [32 16]", spec.Hidden)
	}
	if spec.LearningRate != 0.001 {
		t.Errorf("LearningRate = %v, want 0.001", spec.LearningRate)
	}
	if spec.Dropout != 0.2 {
		t.Errorf("Dropout = %v, want 0.2", spec.Dropout)
	}
}

func TestPredictInvalidColor(t *testing.T) {
	m, err := NewModel(DefaultModelConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, bad := range []string{"#badhex", "", "zzzzzz", "#12345", "not-a-color"} {
		if _, err := Predict(m, bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Predict(%q) error = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestPredictUntrainedModel(t *testing.T) {
	m, err := NewModel(DefaultModelConfig())
	if err != nil {
		t.Fatal(err)
	}
	p, err := Predict(m, "#aabbcc")
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if p.Score < 0 || p.Score > 1 {
		t.Errorf("Score = %v, outside [0,1]", p.Score)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		t.Errorf("Confidence = %v, outside [0,1]", p.Confidence)
	}
	if p.Likely != (p.Score > 0.5) {
		t.Errorf("Likely = %v inconsistent with score %v", p.Likely, p.Score)
	}
	wantLabel := LabelDislike
	if p.Likely {
		wantLabel = LabelLike
	}
	if p.Label != wantLabel {
		t.Errorf("Label = %q, want %q", p.Label, wantLabel)
	}
}

func TestPredictConfidence(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{score: 0.5, want: 0},
		{score: 1, want: 1},
		{score: 0, want: 1},
		{score: 0.75, want: 0.5},
		{score: 0.25, want: 0.5},
	}
	for _, tt := range tests {
		m := &stubModel{score: tt.score}
		p, err := Predict(m, "#123456")
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(p.Confidence-tt.want) > 1e-12 {
			t.Errorf("score %v: Confidence = %v, want %v", tt.score, p.Confidence, tt.want)
		}
	}
}

func TestTrainPropagatesPreprocessErrors(t *testing.T) {
	m := &stubModel{}
	ctx := context.Background()

	if _, err := Train(ctx, m, nil, []string{"#000000"}, DefaultTrainConfig()); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Train() error = %v, want ErrInvalidInput", err)
	}
	if _, err := Train(ctx, m, []string{"junk"}, []string{"#000000"}, DefaultTrainConfig()); !errors.Is(err, ErrNoData) {
		t.Errorf("Train() error = %v, want ErrNoData", err)
	}
	if m.fitCalls != 0 {
		t.Errorf("Fit called %d times for invalid input, want 0", m.fitCalls)
	}
}

func TestTrainWrapsEngineFailure(t *testing.T) {
	m := &stubModel{fitErr: errors.New("tensor shape mismatch")}

	_, err := Train(context.Background(), m, []string{"#ffffff"}, []string{"#000000"}, DefaultTrainConfig())
	if !errors.Is(err, ErrTraining) {
		t.Fatalf("Train() error = %v, want ErrTraining", err)
	}
	// The original engine message must survive the wrap.
	if got := err.Error(); !strings.Contains(got, "tensor shape mismatch") {
		t.Errorf("Train() error %q does not carry engine message", got)
	}
}

func TestTrainPassesConfig(t *testing.T) {
	m := &stubModel{}
	cfg := TrainConfig{Epochs: 7, BatchSize: 3, ValidationSplit: 0.1}

	if _, err := Train(context.Background(), m, []string{"#ffffff"}, []string{"#000000"}, cfg); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if m.lastOpts.Epochs != 7 || m.lastOpts.BatchSize != 3 || m.lastOpts.ValidationSplit != 0.1 {
		t.Errorf("Fit options = %+v, want epochs 7, batch 3, split 0.1", m.lastOpts)
	}
	if m.lastOpts.EarlyStopping == nil {
		t.Fatal("early stopping not registered")
	}
	if m.lastOpts.EarlyStopping.MinDelta != 0.001 || m.lastOpts.EarlyStopping.Patience != 5 {
		t.Errorf("early stopping = %+v, want MinDelta 0.001, Patience 5", m.lastOpts.EarlyStopping)
	}
}

func TestTrainDefaultsZeroConfig(t *testing.T) {
	m := &stubModel{}
	if _, err := Train(context.Background(), m, []string{"#ffffff"}, []string{"#000000"}, TrainConfig{}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if m.lastOpts.Epochs != 50 || m.lastOpts.BatchSize != 32 {
		t.Errorf("Fit options = %+v, want epochs 50, batch 32", m.lastOpts)
	}
}

func TestTrainEndToEnd(t *testing.T) {
	m, err := NewModel(ModelConfig{LearningRate: 0.05, Dropout: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	liked := []string{"#ffffff", "#eeeeaa", "#ffddee", "#ccffcc"}
	disliked := []string{"#000000", "#111122", "#0a0a0a", "#221100"}

	hist, err := Train(context.Background(), m, liked, disliked, TrainConfig{
		Epochs:    150,
		BatchSize: 8,
	})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if hist.EpochsRun == 0 {
		t.Fatal("EpochsRun = 0")
	}

	light, err := Predict(m, "#fafafa")
	if err != nil {
		t.Fatal(err)
	}
	dark, err := Predict(m, "#050505")
	if err != nil {
		t.Fatal(err)
	}
	if light.Score <= dark.Score {
		t.Errorf("trained model scores light %v <= dark %v", light.Score, dark.Score)
	}
}

// stubModel is a Trainable that records calls without doing numeric work.
type stubModel struct {
	score    float64
	fitErr   error
	fitCalls int
	lastOpts nn.FitOptions
}

func (s *stubModel) Fit(_ context.Context, inputs [][]float64, labels []float64, opts nn.FitOptions) (*nn.History, error) {
	s.fitCalls++
	s.lastOpts = opts
	if s.fitErr != nil {
		return nil, s.fitErr
	}
	return &nn.History{EpochsRun: opts.Epochs}, nil
}

func (s *stubModel) PredictOne([]float64) (float64, error) {
	return s.score, nil
}

func (s *stubModel) Serialize() ([]byte, error) {
	return []byte("stub"), nil
}
