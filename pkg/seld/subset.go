package seld

import (
	"fmt"
	"math/rand"
	"slices"
)

// Subset exposes a chosen list of indices of another dataset.
type Subset struct {
	ds      Dataset
	indices []int
}

var _ Dataset = (*Subset)(nil)

// NewSubset wraps ds so that sample i of the subset is ds.Get(indices[i]).
func NewSubset(ds Dataset, indices []int) (*Subset, error) {
	n := ds.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("%w: subset index %d not in [0, %d)", ErrIndexOutOfRange, idx, n)
		}
	}
	return &Subset{ds: ds, indices: slices.Clone(indices)}, nil
}

func (s *Subset) Len() int {
	return len(s.indices)
}

func (s *Subset) Get(idx int) (*Sample, error) {
	if idx < 0 || idx >= len(s.indices) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, idx, len(s.indices))
	}
	return s.ds.Get(s.indices[idx])
}

// Split shuffles the indices of ds with seed and returns the first
// round(frac*Len) as the first subset and the remainder as the second.
func Split(ds Dataset, frac float64, seed int64) (*Subset, *Subset, error) {
	if frac < 0 || frac > 1 {
		return nil, nil, fmt.Errorf("split fraction %v not in [0, 1]", frac)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(ds.Len())
	cut := int(frac*float64(len(perm)) + 0.5)

	first, err := NewSubset(ds, perm[:cut])
	if err != nil {
		return nil, nil, err
	}
	second, err := NewSubset(ds, perm[cut:])
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}
