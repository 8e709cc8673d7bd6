package ndarray

import (
	"encoding/binary"
	"errors"
	"slices"
	"testing"
)

// arange builds an array whose values are their flat offsets.
func arange(shape ...int) *Array {
	a := New(shape...)
	for i := range a.data {
		a.data[i] = float32(i)
	}
	return a
}

func TestFromSliceShapeMismatch(t *testing.T) {
	if _, err := FromSlice([]float32{1, 2, 3}, 2, 2); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	a, err := FromSlice([]float32{1, 2, 3, 4}, 2, 2)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	if a.At(1, 0) != 3 {
		t.Errorf("At(1,0) = %v, expected 3", a.At(1, 0))
	}
}

func TestSliceAxis(t *testing.T) {
	a := arange(2, 4, 3)

	tests := []struct {
		name       string
		axis       int
		start, end int
		shape      []int
		first      float32
		last       float32
	}{
		{"middle axis", 1, 1, 3, []int{2, 2, 3}, 3, 20},
		{"leading axis", 0, 1, 2, []int{1, 4, 3}, 12, 23},
		{"trailing axis", 2, 2, 3, []int{2, 4, 1}, 2, 23},
		{"empty window", 1, 2, 2, []int{2, 0, 3}, -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := a.SliceAxis(tt.axis, tt.start, tt.end)
			if err != nil {
				t.Fatalf("SliceAxis failed: %v", err)
			}
			if !slices.Equal(out.Shape(), tt.shape) {
				t.Fatalf("shape %v, expected %v", out.Shape(), tt.shape)
			}
			if out.Size() == 0 {
				return
			}
			if out.Data()[0] != tt.first || out.Data()[out.Size()-1] != tt.last {
				t.Errorf("got first=%v last=%v, expected %v and %v",
					out.Data()[0], out.Data()[out.Size()-1], tt.first, tt.last)
			}
		})
	}
}

func TestSliceAxisCopies(t *testing.T) {
	a := arange(3, 2)
	out, err := a.SliceAxis(0, 0, 2)
	if err != nil {
		t.Fatalf("SliceAxis failed: %v", err)
	}
	out.Set(-1, 0, 0)
	if a.At(0, 0) != 0 {
		t.Error("mutating a slice changed the source array")
	}
}

func TestSliceAxisOutOfBounds(t *testing.T) {
	a := arange(4, 2)
	for _, w := range [][2]int{{3, 5}, {-1, 2}, {3, 2}} {
		if _, err := a.SliceAxis(0, w[0], w[1]); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("window %v: expected ErrOutOfBounds, got %v", w, err)
		}
	}
}

func TestClamp(t *testing.T) {
	a := arange(10, 2)
	tests := []struct {
		start, end int
		wantS      int
		wantE      int
	}{
		{0, 3, 0, 3},
		{8, 11, 8, 10},
		{12, 15, 10, 10},
		{-2, 1, 0, 1},
	}
	for _, tt := range tests {
		s, e := a.Clamp(0, tt.start, tt.end)
		if s != tt.wantS || e != tt.wantE {
			t.Errorf("Clamp(%d, %d) = (%d, %d), expected (%d, %d)", tt.start, tt.end, s, e, tt.wantS, tt.wantE)
		}
	}
}

func TestStack(t *testing.T) {
	a, b := arange(2, 3), arange(2, 3)
	out, err := Stack(a, b)
	if err != nil {
		t.Fatalf("Stack failed: %v", err)
	}
	if !slices.Equal(out.Shape(), []int{2, 2, 3}) {
		t.Fatalf("shape %v, expected [2 2 3]", out.Shape())
	}
	if out.At(1, 1, 2) != 5 {
		t.Errorf("At(1,1,2) = %v, expected 5", out.At(1, 1, 2))
	}

	if _, err := Stack(a, arange(3, 2)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestConcat(t *testing.T) {
	a := arange(2, 2, 3)
	b := arange(2, 1, 3)
	out, err := Concat(1, a, b)
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if !slices.Equal(out.Shape(), []int{2, 3, 3}) {
		t.Fatalf("shape %v, expected [2 3 3]", out.Shape())
	}
	// second channel, row from b
	if out.At(1, 2, 0) != b.At(1, 0, 0) {
		t.Errorf("At(1,2,0) = %v, expected %v", out.At(1, 2, 0), b.At(1, 0, 0))
	}
	if out.At(1, 1, 1) != a.At(1, 1, 1) {
		t.Errorf("At(1,1,1) = %v, expected %v", out.At(1, 1, 1), a.At(1, 1, 1))
	}

	if _, err := Concat(1, a, arange(3, 1, 3)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	a := arange(3, 2, 2)
	raw, err := a.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	var b Array
	if err := b.UnmarshalBinary(raw); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if !a.Equal(&b) {
		t.Errorf("decoded %v differs from %v", b.Shape(), a.Shape())
	}

	if err := b.UnmarshalBinary(raw[:len(raw)-2]); err == nil {
		t.Error("expected error on truncated payload")
	}
}

func header(dims ...uint32) []byte {
	buf := binary.LittleEndian.AppendUint32(nil, uint32(len(dims)))
	for _, d := range dims {
		buf = binary.LittleEndian.AppendUint32(buf, d)
	}
	return buf
}

func TestUnmarshalBinaryRejectsOversizedShape(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		// 2^64 elements wrap to a zero-byte payload without a bound
		{"wrapping product", header(1<<16, 1<<16, 1<<16, 1<<16)},
		{"product past payload", append(header(3, 1<<31), make([]byte, 12)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Array
			if err := a.UnmarshalBinary(tt.raw); err == nil {
				t.Errorf("expected error, decoded shape %v", a.Shape())
			}
		})
	}

	var empty Array
	if err := empty.UnmarshalBinary(header(3, 0)); err != nil {
		t.Errorf("zero-sized shape rejected: %v", err)
	}
	if !slices.Equal(empty.Shape(), []int{3, 0}) {
		t.Errorf("decoded shape %v, expected [3 0]", empty.Shape())
	}
}
