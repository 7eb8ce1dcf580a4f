// Package nn implements a small feed-forward binary classifier with
// batch normalization, dropout and Adam optimization. It is the numeric
// backend behind the preference pipeline; callers interact with it
// through Fit, PredictOne and Serialize.
//
// A Network is not safe for concurrent use: training mutates weights and
// batch-norm running statistics in place. Callers serialize access.
package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Spec describes the network topology and optimizer settings.
type Spec struct {
	// InputDim is the width of the input vector.
	InputDim int

	// Hidden lists the widths of the hidden blocks. Each block is
	// dense -> batch norm -> ReLU -> dropout.
	Hidden []int

	// LearningRate is the Adam learning rate.
	LearningRate float64

	// Dropout is the drop probability applied after each hidden block.
	Dropout float64
}

// Network is a feed-forward binary classifier. The final layer produces
// a single logit; Fit and PredictOne apply the sigmoid.
type Network struct {
	spec   Spec
	layers []layer
	denses []*dense
	norms  []*batchNorm
	opt    *adam
}

var (
	// ErrBadInput reports an input vector of the wrong width.
	ErrBadInput = errors.New("input width does not match network")

	// ErrBadSpec reports an invalid topology specification.
	ErrBadSpec = errors.New("invalid network spec")
)

// New builds an untrained network for the given spec. Weights use
// Glorot-normal initialization from the unseeded global source, so
// repeated calls yield different initial parameters.
func New(spec Spec) (*Network, error) {
	if spec.InputDim <= 0 || len(spec.Hidden) == 0 {
		return nil, fmt.Errorf("%w: input dim %d, %d hidden blocks", ErrBadSpec, spec.InputDim, len(spec.Hidden))
	}
	if spec.Dropout < 0 || spec.Dropout >= 1 {
		return nil, fmt.Errorf("%w: dropout %g outside [0,1)", ErrBadSpec, spec.Dropout)
	}
	if spec.LearningRate <= 0 {
		return nil, fmt.Errorf("%w: learning rate %g", ErrBadSpec, spec.LearningRate)
	}

	n := &Network{spec: spec}
	width := spec.InputDim
	for _, h := range spec.Hidden {
		if h <= 0 {
			return nil, fmt.Errorf("%w: hidden width %d", ErrBadSpec, h)
		}
		d := newDense(width, h)
		bn := newBatchNorm(h)
		n.denses = append(n.denses, d)
		n.norms = append(n.norms, bn)
		n.layers = append(n.layers, d, bn, &relu{}, &dropout{rate: spec.Dropout})
		width = h
	}
	out := newDense(width, 1)
	n.denses = append(n.denses, out)
	n.layers = append(n.layers, out)

	n.opt = newAdam(spec.LearningRate)
	return n, nil
}

// Spec returns the topology the network was built with.
func (n *Network) Spec() Spec { return n.spec }

// PredictOne runs a single forward pass in inference mode and returns
// the sigmoid output in [0,1].
func (n *Network) PredictOne(input []float64) (float64, error) {
	if len(input) != n.spec.InputDim {
		return 0, fmt.Errorf("%w: got %d values, want %d", ErrBadInput, len(input), n.spec.InputDim)
	}
	row := make([]float64, len(input))
	copy(row, input)
	out := n.forward([][]float64{row}, false)
	return sigmoid(out[0][0]), nil
}

// forward runs all layers and returns the raw logits, one row per sample.
func (n *Network) forward(batch [][]float64, training bool) [][]float64 {
	out := batch
	for _, l := range n.layers {
		out = l.forward(out, training)
	}
	return out
}

// backward propagates the loss gradient and accumulates parameter grads.
func (n *Network) backward(grad [][]float64) {
	for i := len(n.layers) - 1; i >= 0; i-- {
		grad = n.layers[i].backward(grad)
	}
}

func (n *Network) params() []*param {
	var ps []*param
	for _, l := range n.layers {
		ps = append(ps, l.params()...)
	}
	return ps
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// param is a flat parameter vector with its accumulated gradient.
type param struct {
	w []float64
	g []float64
}

func newParam(size int) *param {
	return &param{w: make([]float64, size), g: make([]float64, size)}
}

func (p *param) zeroGrad() {
	for i := range p.g {
		p.g[i] = 0
	}
}

type layer interface {
	forward(batch [][]float64, training bool) [][]float64
	backward(grad [][]float64) [][]float64
	params() []*param
}

// dense is a fully connected layer, weights stored row-major [in][out].
type dense struct {
	in, out int
	w, b    *param
	x       [][]float64
}

func newDense(in, out int) *dense {
	d := &dense{in: in, out: out, w: newParam(in * out), b: newParam(out)}
	// Glorot-normal init, suited to the zero-centered activations the
	// batch norm feeds forward.
	stddev := math.Sqrt(2.0 / float64(in+out))
	for i := range d.w.w {
		d.w.w[i] = rand.NormFloat64() * stddev
	}
	return d
}

func (d *dense) forward(batch [][]float64, training bool) [][]float64 {
	if training {
		d.x = batch
	}
	out := make([][]float64, len(batch))
	for n, row := range batch {
		y := make([]float64, d.out)
		copy(y, d.b.w)
		for i, xi := range row {
			if xi == 0 {
				continue
			}
			wRow := d.w.w[i*d.out : (i+1)*d.out]
			for j, wij := range wRow {
				y[j] += xi * wij
			}
		}
		out[n] = y
	}
	return out
}

func (d *dense) backward(grad [][]float64) [][]float64 {
	dx := make([][]float64, len(grad))
	for n, gRow := range grad {
		xRow := d.x[n]
		dxRow := make([]float64, d.in)
		for i, xi := range xRow {
			wRow := d.w.w[i*d.out : (i+1)*d.out]
			gwRow := d.w.g[i*d.out : (i+1)*d.out]
			var acc float64
			for j, gj := range gRow {
				gwRow[j] += xi * gj
				acc += wRow[j] * gj
			}
			dxRow[i] = acc
		}
		for j, gj := range gRow {
			d.b.g[j] += gj
		}
		dx[n] = dxRow
	}
	return dx
}

func (d *dense) params() []*param { return []*param{d.w, d.b} }

// batchNorm normalizes each feature over the batch during training and
// tracks running statistics for inference.
type batchNorm struct {
	dim         int
	gamma, beta *param
	runMean     []float64
	runVar      []float64
	momentum    float64
	eps         float64

	xhat   [][]float64
	invStd []float64
}

func newBatchNorm(dim int) *batchNorm {
	bn := &batchNorm{
		dim:      dim,
		gamma:    newParam(dim),
		beta:     newParam(dim),
		runMean:  make([]float64, dim),
		runVar:   make([]float64, dim),
		momentum: 0.99,
		eps:      1e-3,
	}
	for i := 0; i < dim; i++ {
		bn.gamma.w[i] = 1
		bn.runVar[i] = 1
	}
	return bn
}

func (bn *batchNorm) forward(batch [][]float64, training bool) [][]float64 {
	out := make([][]float64, len(batch))
	if !training {
		for n, row := range batch {
			y := make([]float64, bn.dim)
			for j, xj := range row {
				y[j] = bn.gamma.w[j]*(xj-bn.runMean[j])/math.Sqrt(bn.runVar[j]+bn.eps) + bn.beta.w[j]
			}
			out[n] = y
		}
		return out
	}

	size := float64(len(batch))
	mean := make([]float64, bn.dim)
	variance := make([]float64, bn.dim)
	for _, row := range batch {
		for j, xj := range row {
			mean[j] += xj
		}
	}
	for j := range mean {
		mean[j] /= size
	}
	for _, row := range batch {
		for j, xj := range row {
			diff := xj - mean[j]
			variance[j] += diff * diff
		}
	}
	for j := range variance {
		variance[j] /= size
	}

	bn.invStd = make([]float64, bn.dim)
	bn.xhat = make([][]float64, len(batch))
	for j := range variance {
		bn.runMean[j] = bn.momentum*bn.runMean[j] + (1-bn.momentum)*mean[j]
		bn.runVar[j] = bn.momentum*bn.runVar[j] + (1-bn.momentum)*variance[j]
		bn.invStd[j] = 1.0 / math.Sqrt(variance[j]+bn.eps)
	}
	for n, row := range batch {
		xh := make([]float64, bn.dim)
		y := make([]float64, bn.dim)
		for j, xj := range row {
			xh[j] = (xj - mean[j]) * bn.invStd[j]
			y[j] = bn.gamma.w[j]*xh[j] + bn.beta.w[j]
		}
		bn.xhat[n] = xh
		out[n] = y
	}
	return out
}

func (bn *batchNorm) backward(grad [][]float64) [][]float64 {
	size := float64(len(grad))
	dgamma := make([]float64, bn.dim)
	dbeta := make([]float64, bn.dim)
	for n, gRow := range grad {
		for j, gj := range gRow {
			dgamma[j] += gj * bn.xhat[n][j]
			dbeta[j] += gj
		}
	}
	for j := range dgamma {
		bn.gamma.g[j] += dgamma[j]
		bn.beta.g[j] += dbeta[j]
	}

	dx := make([][]float64, len(grad))
	for n, gRow := range grad {
		row := make([]float64, bn.dim)
		for j, gj := range gRow {
			row[j] = bn.gamma.w[j] * bn.invStd[j] / size *
				(size*gj - dbeta[j] - bn.xhat[n][j]*dgamma[j])
		}
		dx[n] = row
	}
	return dx
}

func (bn *batchNorm) params() []*param { return []*param{bn.gamma, bn.beta} }

type relu struct {
	active [][]bool
}

func (r *relu) forward(batch [][]float64, training bool) [][]float64 {
	out := make([][]float64, len(batch))
	if training {
		r.active = make([][]bool, len(batch))
	}
	for n, row := range batch {
		y := make([]float64, len(row))
		var mask []bool
		if training {
			mask = make([]bool, len(row))
		}
		for j, xj := range row {
			if xj > 0 {
				y[j] = xj
				if training {
					mask[j] = true
				}
			}
		}
		if training {
			r.active[n] = mask
		}
		out[n] = y
	}
	return out
}

func (r *relu) backward(grad [][]float64) [][]float64 {
	dx := make([][]float64, len(grad))
	for n, gRow := range grad {
		row := make([]float64, len(gRow))
		for j, gj := range gRow {
			if r.active[n][j] {
				row[j] = gj
			}
		}
		dx[n] = row
	}
	return dx
}

func (r *relu) params() []*param { return nil }

// dropout uses inverted scaling so inference needs no correction.
type dropout struct {
	rate float64
	mask [][]float64
}

func (d *dropout) forward(batch [][]float64, training bool) [][]float64 {
	if !training || d.rate <= 0 {
		return batch
	}
	scale := 1.0 / (1.0 - d.rate)
	out := make([][]float64, len(batch))
	d.mask = make([][]float64, len(batch))
	for n, row := range batch {
		y := make([]float64, len(row))
		m := make([]float64, len(row))
		for j, xj := range row {
			if rand.Float64() >= d.rate {
				m[j] = scale
				y[j] = xj * scale
			}
		}
		d.mask[n] = m
		out[n] = y
	}
	return out
}

func (d *dropout) backward(grad [][]float64) [][]float64 {
	if d.rate <= 0 || d.mask == nil {
		return grad
	}
	dx := make([][]float64, len(grad))
	for n, gRow := range grad {
		row := make([]float64, len(gRow))
		for j, gj := range gRow {
			row[j] = gj * d.mask[n][j]
		}
		dx[n] = row
	}
	return dx
}

func (d *dropout) params() []*param { return nil }

// adam is the adaptive-moment optimizer, state kept parallel to the
// parameter slices it steps.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  [][]float64
}

func newAdam(lr float64) *adam {
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
}

func (a *adam) step(params []*param) {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, len(p.w))
			a.v[i] = make([]float64, len(p.w))
		}
	}
	a.t++
	c1 := 1.0 - math.Pow(a.beta1, float64(a.t))
	c2 := 1.0 - math.Pow(a.beta2, float64(a.t))
	for i, p := range params {
		m, v := a.m[i], a.v[i]
		for j, g := range p.g {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g
			p.w[j] -= a.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.eps)
		}
	}
}
