package nn

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
)

// snapshotVersion guards the gob layout; bump on incompatible change.
const snapshotVersion = 1

var ErrCorrupt = errors.New("corrupt network snapshot")

type denseState struct {
	In, Out int
	W, B    []float64
}

type normState struct {
	Gamma, Beta     []float64
	RunMean, RunVar []float64
}

type snapshot struct {
	Version int
	Spec    Spec
	Dense   []denseState
	Norm    []normState
}

// Serialize encodes the topology, weights and batch-norm running
// statistics. Optimizer state is not persisted; a restored network
// starts with a fresh optimizer.
func (n *Network) Serialize() ([]byte, error) {
	snap := snapshot{Version: snapshotVersion, Spec: n.spec}
	for _, d := range n.denses {
		snap.Dense = append(snap.Dense, denseState{
			In:  d.in,
			Out: d.out,
			W:   append([]float64(nil), d.w.w...),
			B:   append([]float64(nil), d.b.w...),
		})
	}
	for _, bn := range n.norms {
		snap.Norm = append(snap.Norm, normState{
			Gamma:   append([]float64(nil), bn.gamma.w...),
			Beta:    append([]float64(nil), bn.beta.w...),
			RunMean: append([]float64(nil), bn.runMean...),
			RunVar:  append([]float64(nil), bn.runVar...),
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, fmt.Errorf("encode network: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize rebuilds a network from Serialize output. A round trip
// reproduces PredictOne exactly: inference depends only on weights and
// running statistics, both of which are restored verbatim.
func Deserialize(data []byte) (*Network, error) {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrCorrupt, snap.Version, snapshotVersion)
	}

	n, err := New(snap.Spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(snap.Dense) != len(n.denses) || len(snap.Norm) != len(n.norms) {
		return nil, fmt.Errorf("%w: layer count mismatch", ErrCorrupt)
	}

	for i, d := range n.denses {
		st := snap.Dense[i]
		if st.In != d.in || st.Out != d.out || len(st.W) != len(d.w.w) || len(st.B) != len(d.b.w) {
			return nil, fmt.Errorf("%w: dense layer %d shape mismatch", ErrCorrupt, i)
		}
		copy(d.w.w, st.W)
		copy(d.b.w, st.B)
	}
	for i, bn := range n.norms {
		st := snap.Norm[i]
		if len(st.Gamma) != bn.dim || len(st.Beta) != bn.dim ||
			len(st.RunMean) != bn.dim || len(st.RunVar) != bn.dim {
			return nil, fmt.Errorf("%w: norm layer %d shape mismatch", ErrCorrupt, i)
		}
		copy(bn.gamma.w, st.Gamma)
		copy(bn.beta.w, st.Beta)
		copy(bn.runMean, st.RunMean)
		copy(bn.runVar, st.RunVar)
	}
	return n, nil
}
