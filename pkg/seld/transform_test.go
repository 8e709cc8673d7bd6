package seld

import (
	"errors"
	"testing"

	"github.com/himanishpuri/seldkit/pkg/ndarray"
)

func TestFreqMaskZeroesOneBand(t *testing.T) {
	x := filled(1, 2, 4, 8)
	mask := NewFreqMask(3, 5)

	for trial := 0; trial < 20; trial++ {
		out, err := mask.Apply(x)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		var zeroBins []int
		for m := 0; m < 8; m++ {
			if out.At(0, 0, m) == 0 {
				zeroBins = append(zeroBins, m)
			}
		}
		if len(zeroBins) > 3 {
			t.Fatalf("masked %d bins, max is 3", len(zeroBins))
		}
		for i := 1; i < len(zeroBins); i++ {
			if zeroBins[i] != zeroBins[i-1]+1 {
				t.Fatalf("masked bins %v are not contiguous", zeroBins)
			}
		}
		for c := 0; c < 2; c++ {
			for f := 0; f < 4; f++ {
				for _, m := range zeroBins {
					if out.At(c, f, m) != 0 {
						t.Fatalf("bin %d not masked at channel %d frame %d", m, c, f)
					}
				}
			}
		}
	}
	if x.At(0, 0, 0) != 1 {
		t.Error("FreqMask modified its input")
	}
}

func TestFreqMaskRejectsRank(t *testing.T) {
	if _, err := NewFreqMask(2, 1).Apply(filled(0, 4, 4)); err == nil {
		t.Error("expected error for rank-2 input")
	}
}

func TestComposeOrder(t *testing.T) {
	add := func(v float32) Transform {
		return TransformFunc(func(x *ndarray.Array) (*ndarray.Array, error) {
			out := x.Clone()
			out.Data()[0] = out.Data()[0]*10 + v
			return out, nil
		})
	}

	out, err := Compose(add(1), add(2), ChannelGain{Gain: 2}).Apply(ndarray.New(1))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := out.At(0); got != 24 {
		t.Errorf("got %v, expected 24", got)
	}
}

func TestComposeJointStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	called := false
	failing := JointTransformFunc(func(x, sed, doa *ndarray.Array) (*ndarray.Array, *ndarray.Array, *ndarray.Array, error) {
		return nil, nil, nil, boom
	})
	after := JointTransformFunc(func(x, sed, doa *ndarray.Array) (*ndarray.Array, *ndarray.Array, *ndarray.Array, error) {
		called = true
		return x, sed, doa, nil
	})

	_, _, _, err := ComposeJoint(failing, after).Apply(nil, nil, nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if called {
		t.Error("transform after the failing one was called")
	}
}

func TestSubsetAndSplit(t *testing.T) {
	ds := newTestDataset(t, sequentialRecord(10))

	sub, err := NewSubset(ds, []int{9, 0})
	if err != nil {
		t.Fatalf("NewSubset failed: %v", err)
	}
	s, err := sub.Get(0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if s.Filename != "j.wav" {
		t.Errorf("subset sample 0 is %q, expected j.wav", s.Filename)
	}
	if _, err := sub.Get(2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := NewSubset(ds, []int{10}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange for bad subset index, got %v", err)
	}

	train, val, err := Split(ds, 0.8, 1)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if train.Len() != 8 || val.Len() != 2 {
		t.Errorf("split sizes %d/%d, expected 8/2", train.Len(), val.Len())
	}
	seen := map[int]bool{}
	for _, idx := range append(append([]int{}, train.indices...), val.indices...) {
		if seen[idx] {
			t.Fatalf("index %d in both splits", idx)
		}
		seen[idx] = true
	}
}
