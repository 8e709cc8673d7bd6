package seld

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/himanishpuri/seldkit/pkg/ndarray"
)

// JointTransform may change features and labels together, e.g. a channel
// rotation that must move the DOA labels with it.
type JointTransform interface {
	Apply(x, sed, doa *ndarray.Array) (*ndarray.Array, *ndarray.Array, *ndarray.Array, error)
}

// Transform changes features only. Labels never pass through it.
type Transform interface {
	Apply(x *ndarray.Array) (*ndarray.Array, error)
}

type JointTransformFunc func(x, sed, doa *ndarray.Array) (*ndarray.Array, *ndarray.Array, *ndarray.Array, error)

func (f JointTransformFunc) Apply(x, sed, doa *ndarray.Array) (*ndarray.Array, *ndarray.Array, *ndarray.Array, error) {
	return f(x, sed, doa)
}

type TransformFunc func(x *ndarray.Array) (*ndarray.Array, error)

func (f TransformFunc) Apply(x *ndarray.Array) (*ndarray.Array, error) {
	return f(x)
}

// ComposeJoint runs ts left to right.
func ComposeJoint(ts ...JointTransform) JointTransform {
	return JointTransformFunc(func(x, sed, doa *ndarray.Array) (*ndarray.Array, *ndarray.Array, *ndarray.Array, error) {
		var err error
		for _, t := range ts {
			if x, sed, doa, err = t.Apply(x, sed, doa); err != nil {
				return nil, nil, nil, err
			}
		}
		return x, sed, doa, nil
	})
}

// Compose runs ts left to right.
func Compose(ts ...Transform) Transform {
	return TransformFunc(func(x *ndarray.Array) (*ndarray.Array, error) {
		var err error
		for _, t := range ts {
			if x, err = t.Apply(x); err != nil {
				return nil, err
			}
		}
		return x, nil
	})
}

// FreqMask zeroes one random band of up to MaxWidth mel bins across all
// channels and frames. The band is drawn from a seeded source shared by
// all callers.
type FreqMask struct {
	MaxWidth int

	mu  sync.Mutex
	rng *rand.Rand
}

func NewFreqMask(maxWidth int, seed int64) *FreqMask {
	return &FreqMask{MaxWidth: maxWidth, rng: rand.New(rand.NewSource(seed))}
}

func (m *FreqMask) band(nMels int) (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	width := m.rng.Intn(min(m.MaxWidth, nMels) + 1)
	start := m.rng.Intn(nMels - width + 1)
	return start, start + width
}

func (m *FreqMask) Apply(x *ndarray.Array) (*ndarray.Array, error) {
	if x.Dims() != 3 {
		return nil, fmt.Errorf("freq mask: expected (channels, frames, mels), got %v", x.Shape())
	}
	nMels := x.Dim(2)
	if m.MaxWidth <= 0 || nMels == 0 {
		return x, nil
	}
	lo, hi := m.band(nMels)

	out := x.Clone()
	data := out.Data()
	for row := 0; row < len(data); row += nMels {
		clear(data[row+lo : row+hi])
	}
	return out, nil
}

// ChannelGain scales every feature value by Gain.
type ChannelGain struct {
	Gain float32
}

func (g ChannelGain) Apply(x *ndarray.Array) (*ndarray.Array, error) {
	out := x.Clone()
	data := out.Data()
	for i := range data {
		data[i] *= g.Gain
	}
	return out, nil
}
