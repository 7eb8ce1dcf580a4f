package pipeline

import (
	"fmt"

	"github.com/colorpref/colorpref/internal/hexcolor"
)

// Prediction is the outcome of one inference pass. Confidence is 0 at
// the decision boundary and 1 at the extremes.
type Prediction struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Likely     bool    `json:"likely"`
	Label      string  `json:"label"`
}

// Labels assigned by Predict.
const (
	LabelLike    = "like"
	LabelDislike = "dislike"
)

// Predict runs one forward pass for the given hex color. It fails with
// ErrInvalidInput before touching the model when the color does not
// parse.
func Predict(m Trainable, hex string) (*Prediction, error) {
	rgb, ok := hexcolor.Parse(hex)
	if !ok {
		return nil, fmt.Errorf("%w: invalid hex color %q", ErrInvalidInput, hex)
	}
	return PredictVector(m, rgb)
}

// PredictVector is Predict for an already-parsed color vector.
func PredictVector(m Trainable, rgb hexcolor.RGB) (*Prediction, error) {
	score, err := m.PredictOne(rgb.Slice())
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	confidence := (score - 0.5) * 2
	if confidence < 0 {
		confidence = -confidence
	}
	p := &Prediction{
		Score:      score,
		Confidence: confidence,
		Likely:     score > 0.5,
		Label:      LabelDislike,
	}
	if p.Likely {
		p.Label = LabelLike
	}
	return p, nil
}
