package nn

import (
	"context"
	"fmt"
	"math"
	"math/rand"
)

// FitOptions controls a single training run.
type FitOptions struct {
	// Epochs is the maximum number of passes over the training data.
	Epochs int

	// BatchSize is the mini-batch size; the last batch may be smaller.
	BatchSize int

	// ValidationSplit is the fraction of samples held out for
	// validation loss, in [0,1).
	ValidationSplit float64

	// EarlyStopping, when non-nil, halts the run once the monitored
	// loss stops improving.
	EarlyStopping *EarlyStopping
}

// EarlyStopping halts training when the monitored loss has improved by
// less than MinDelta for Patience consecutive epochs. Validation loss is
// monitored when a validation split is configured, training loss
// otherwise.
type EarlyStopping struct {
	MinDelta float64
	Patience int
}

// EpochMetrics records the metrics observed after one epoch.
type EpochMetrics struct {
	Epoch     int     `json:"epoch"`
	Loss      float64 `json:"loss"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	ValLoss   float64 `json:"val_loss"`
}

// History is the read-only record of a completed training run.
type History struct {
	Epochs       []EpochMetrics `json:"epochs"`
	EpochsRun    int            `json:"epochs_run"`
	StoppedEarly bool           `json:"stopped_early"`
}

// FinalLoss returns the training loss of the last epoch.
func (h *History) FinalLoss() float64 {
	if len(h.Epochs) == 0 {
		return math.NaN()
	}
	return h.Epochs[len(h.Epochs)-1].Loss
}

// FinalAccuracy returns the training accuracy of the last epoch.
func (h *History) FinalAccuracy() float64 {
	if len(h.Epochs) == 0 {
		return 0
	}
	return h.Epochs[len(h.Epochs)-1].Accuracy
}

const lossEpsilon = 1e-7

// Fit trains the network in place over the labeled samples, shuffling
// every epoch, and returns the per-epoch history. Labels must be 0 or 1
// and parallel to inputs. The context is checked between epochs; all
// batch buffers are local to the call.
func (n *Network) Fit(ctx context.Context, inputs [][]float64, labels []float64, opts FitOptions) (*History, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrBadInput)
	}
	if len(inputs) != len(labels) {
		return nil, fmt.Errorf("%w: %d inputs, %d labels", ErrBadInput, len(inputs), len(labels))
	}
	for i, in := range inputs {
		if len(in) != n.spec.InputDim {
			return nil, fmt.Errorf("%w: sample %d has %d values, want %d", ErrBadInput, i, len(in), n.spec.InputDim)
		}
	}
	if opts.Epochs <= 0 {
		return nil, fmt.Errorf("%w: epochs %d", ErrBadSpec, opts.Epochs)
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size %d", ErrBadSpec, opts.BatchSize)
	}
	if opts.ValidationSplit < 0 || opts.ValidationSplit >= 1 {
		return nil, fmt.Errorf("%w: validation split %g", ErrBadSpec, opts.ValidationSplit)
	}

	// One shuffle before the split so the held-out tail is not biased
	// by the caller's sample ordering.
	perm := rand.Perm(len(inputs))
	valCount := int(float64(len(inputs)) * opts.ValidationSplit)
	if valCount >= len(inputs) {
		valCount = len(inputs) - 1
	}
	trainIdx := perm[:len(perm)-valCount]
	valIdx := perm[len(perm)-valCount:]

	hist := &History{}
	var stop earlyStopState
	if opts.EarlyStopping != nil {
		stop = earlyStopState{
			minDelta: opts.EarlyStopping.MinDelta,
			patience: opts.EarlyStopping.Patience,
			best:     math.Inf(1),
		}
	}

	params := n.params()
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}

		shuffle(trainIdx)
		for start := 0; start < len(trainIdx); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(trainIdx) {
				end = len(trainIdx)
			}
			batchIdx := trainIdx[start:end]

			batch := make([][]float64, len(batchIdx))
			target := make([]float64, len(batchIdx))
			for i, idx := range batchIdx {
				batch[i] = inputs[idx]
				target[i] = labels[idx]
			}

			logits := n.forward(batch, true)
			grad := make([][]float64, len(batch))
			scale := 1.0 / float64(len(batch))
			for i := range batch {
				p := sigmoid(logits[i][0])
				grad[i] = []float64{(p - target[i]) * scale}
			}

			for _, p := range params {
				p.zeroGrad()
			}
			n.backward(grad)
			n.opt.step(params)
		}

		m := EpochMetrics{Epoch: epoch}
		m.Loss, m.Accuracy, m.Precision = n.evaluate(inputs, labels, trainIdx)
		if len(valIdx) > 0 {
			m.ValLoss, _, _ = n.evaluate(inputs, labels, valIdx)
		}
		hist.Epochs = append(hist.Epochs, m)
		hist.EpochsRun = epoch

		if opts.EarlyStopping != nil {
			monitored := m.Loss
			if len(valIdx) > 0 {
				monitored = m.ValLoss
			}
			if stop.observe(monitored) {
				hist.StoppedEarly = true
				break
			}
		}
	}
	return hist, nil
}

// evaluate computes loss, accuracy and precision over the given sample
// indices in inference mode.
func (n *Network) evaluate(inputs [][]float64, labels []float64, idx []int) (loss, accuracy, precision float64) {
	batch := make([][]float64, len(idx))
	for i, j := range idx {
		batch[i] = inputs[j]
	}
	logits := n.forward(batch, false)

	var correct, truePos, predPos int
	for i, j := range idx {
		p := sigmoid(logits[i][0])
		y := labels[j]

		clamped := math.Min(math.Max(p, lossEpsilon), 1-lossEpsilon)
		loss += -(y*math.Log(clamped) + (1-y)*math.Log(1-clamped))

		predicted := p > 0.5
		if predicted == (y > 0.5) {
			correct++
		}
		if predicted {
			predPos++
			if y > 0.5 {
				truePos++
			}
		}
	}
	loss /= float64(len(idx))
	accuracy = float64(correct) / float64(len(idx))
	if predPos > 0 {
		precision = float64(truePos) / float64(predPos)
	}
	return loss, accuracy, precision
}

type earlyStopState struct {
	minDelta float64
	patience int
	best     float64
	wait     int
}

// observe reports whether training should stop after seeing this
// epoch's monitored loss.
func (s *earlyStopState) observe(loss float64) bool {
	if loss < s.best-s.minDelta {
		s.best = loss
		s.wait = 0
		return false
	}
	if loss < s.best {
		s.best = loss
	}
	s.wait++
	return s.wait >= s.patience
}

func shuffle(idx []int) {
	rand.Shuffle(len(idx), func(i, j int) {
		idx[i], idx[j] = idx[j], idx[i]
	})
}
