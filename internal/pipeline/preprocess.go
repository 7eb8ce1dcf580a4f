package pipeline

import (
	"fmt"

	"github.com/colorpref/colorpref/internal/hexcolor"
)

// Dataset is the preprocessed training input: parallel input vectors
// and binary labels, liked samples (label 1) ordered before disliked
// samples (label 0).
type Dataset struct {
	Inputs [][]float64
	Labels []float64
	Count  int
}

// Preprocess converts two labeled hex color lists into one dataset.
// Unparseable entries are dropped silently; this is a data-cleaning
// policy, not an error. It fails with ErrInvalidInput when either list
// is empty and with ErrNoData when filtering leaves a class with no
// samples. Input ordering is preserved within each class.
func Preprocess(liked, disliked []string) (*Dataset, error) {
	if len(liked) == 0 {
		return nil, fmt.Errorf("%w: liked color list is empty", ErrInvalidInput)
	}
	if len(disliked) == 0 {
		return nil, fmt.Errorf("%w: disliked color list is empty", ErrInvalidInput)
	}

	likedVecs := parseAll(liked)
	dislikedVecs := parseAll(disliked)
	if len(likedVecs) == 0 {
		return nil, fmt.Errorf("%w: no liked colors parsed", ErrNoData)
	}
	if len(dislikedVecs) == 0 {
		return nil, fmt.Errorf("%w: no disliked colors parsed", ErrNoData)
	}

	total := len(likedVecs) + len(dislikedVecs)
	ds := &Dataset{
		Inputs: make([][]float64, 0, total),
		Labels: make([]float64, 0, total),
		Count:  total,
	}
	for _, v := range likedVecs {
		ds.Inputs = append(ds.Inputs, v)
		ds.Labels = append(ds.Labels, 1)
	}
	for _, v := range dislikedVecs {
		ds.Inputs = append(ds.Inputs, v)
		ds.Labels = append(ds.Labels, 0)
	}
	return ds, nil
}

func parseAll(colors []string) [][]float64 {
	vecs := make([][]float64, 0, len(colors))
	for _, c := range colors {
		rgb, ok := hexcolor.Parse(c)
		if !ok {
			continue
		}
		vecs = append(vecs, rgb.Slice())
	}
	return vecs
}
