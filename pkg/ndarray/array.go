// Package ndarray is a small dense float32 N-dimensional array used to carry
// spectral features and label tensors between the extraction pipeline, the
// record store and the chunk accessor.
package ndarray

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	ErrOutOfBounds   = errors.New("ndarray: window out of bounds")
	ErrShapeMismatch = errors.New("ndarray: shape mismatch")
)

// Array is a row-major float32 array. The zero value is not usable; build
// arrays with New or FromSlice.
type Array struct {
	shape []int
	data  []float32
}

func New(shape ...int) *Array {
	return &Array{
		shape: slices.Clone(shape),
		data:  make([]float32, product(shape)),
	}
}

// FromSlice wraps data (without copying) as an array of the given shape.
func FromSlice(data []float32, shape ...int) (*Array, error) {
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative dimension in %v", ErrShapeMismatch, shape)
		}
	}
	if n := product(shape); n != len(data) {
		return nil, fmt.Errorf("%w: %d values for shape %v (want %d)", ErrShapeMismatch, len(data), shape, n)
	}
	return &Array{shape: slices.Clone(shape), data: data}, nil
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func (a *Array) Shape() []int     { return slices.Clone(a.shape) }
func (a *Array) Dims() int        { return len(a.shape) }
func (a *Array) Size() int        { return len(a.data) }
func (a *Array) Data() []float32  { return a.data }
func (a *Array) Dim(axis int) int { return a.shape[axis] }

// Len returns the size of the leading axis, 0 for a scalar.
func (a *Array) Len() int {
	if len(a.shape) == 0 {
		return 0
	}
	return a.shape[0]
}

func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("ndarray: %d indices for rank %d", len(idx), len(a.shape)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= a.shape[i] {
			panic(fmt.Sprintf("ndarray: index %v out of range for shape %v", idx, a.shape))
		}
		off = off*a.shape[i] + x
	}
	return off
}

func (a *Array) At(idx ...int) float32 { return a.data[a.offset(idx)] }

func (a *Array) Set(v float32, idx ...int) { a.data[a.offset(idx)] = v }

func (a *Array) Clone() *Array {
	return &Array{shape: slices.Clone(a.shape), data: slices.Clone(a.data)}
}

// Equal reports whether both arrays have the same shape and values.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	return slices.Equal(a.shape, b.shape) && slices.Equal(a.data, b.data)
}

func (a *Array) String() string {
	return fmt.Sprintf("Array%v", a.shape)
}

// Clamp clips the window [start, end) to the length of axis. The result may
// be empty but never fails.
func (a *Array) Clamp(axis, start, end int) (int, int) {
	dim := a.shape[axis]
	start = min(max(start, 0), dim)
	end = min(max(end, start), dim)
	return start, end
}

// SliceAxis copies the window [start, end) along axis; every other axis is
// kept whole.
func (a *Array) SliceAxis(axis, start, end int) (*Array, error) {
	if axis < 0 || axis >= len(a.shape) {
		return nil, fmt.Errorf("%w: axis %d for rank %d", ErrShapeMismatch, axis, len(a.shape))
	}
	dim := a.shape[axis]
	if start < 0 || end > dim || start > end {
		return nil, fmt.Errorf("%w: [%d:%d] on axis %d of length %d", ErrOutOfBounds, start, end, axis, dim)
	}

	outer := product(a.shape[:axis])
	inner := product(a.shape[axis+1:])
	width := (end - start) * inner

	shape := slices.Clone(a.shape)
	shape[axis] = end - start
	out := make([]float32, 0, outer*width)
	for o := 0; o < outer; o++ {
		base := (o*dim + start) * inner
		out = append(out, a.data[base:base+width]...)
	}
	return &Array{shape: shape, data: out}, nil
}

// Stack joins equally shaped arrays along a new leading axis.
func Stack(arrays ...*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, fmt.Errorf("%w: nothing to stack", ErrShapeMismatch)
	}
	first := arrays[0].shape
	data := make([]float32, 0, len(arrays)*product(first))
	for i, a := range arrays {
		if !slices.Equal(a.shape, first) {
			return nil, fmt.Errorf("%w: element %d has shape %v, want %v", ErrShapeMismatch, i, a.shape, first)
		}
		data = append(data, a.data...)
	}
	return &Array{shape: append([]int{len(arrays)}, first...), data: data}, nil
}

// Concat joins arrays along an existing axis. All other axes must agree.
func Concat(axis int, arrays ...*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, fmt.Errorf("%w: nothing to concatenate", ErrShapeMismatch)
	}
	ref := arrays[0].shape
	if axis < 0 || axis >= len(ref) {
		return nil, fmt.Errorf("%w: axis %d for rank %d", ErrShapeMismatch, axis, len(ref))
	}
	total := 0
	for i, a := range arrays {
		if len(a.shape) != len(ref) {
			return nil, fmt.Errorf("%w: element %d has rank %d, want %d", ErrShapeMismatch, i, len(a.shape), len(ref))
		}
		for d := range ref {
			if d != axis && a.shape[d] != ref[d] {
				return nil, fmt.Errorf("%w: element %d has shape %v, want %v off axis %d", ErrShapeMismatch, i, a.shape, ref, axis)
			}
		}
		total += a.shape[axis]
	}

	shape := slices.Clone(ref)
	shape[axis] = total
	outer := product(ref[:axis])
	inner := product(ref[axis+1:])
	out := make([]float32, 0, product(shape))
	for o := 0; o < outer; o++ {
		for _, a := range arrays {
			width := a.shape[axis] * inner
			out = append(out, a.data[o*width:(o+1)*width]...)
		}
	}
	return &Array{shape: shape, data: out}, nil
}

// MarshalBinary encodes the array as a little-endian rank, the dimensions and
// the float32 payload.
func (a *Array) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 4+4*len(a.shape)+4*len(a.data))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(a.shape)))
	for _, d := range a.shape {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(d))
	}
	for _, v := range a.data {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf, nil
}

func (a *Array) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return errors.New("ndarray: short buffer")
	}
	rank := int(binary.LittleEndian.Uint32(b))
	b = b[4:]
	if len(b) < 4*rank {
		return fmt.Errorf("ndarray: short header for rank %d", rank)
	}
	shape := make([]int, rank)
	for i := range shape {
		shape[i] = int(binary.LittleEndian.Uint32(b[4*i:]))
	}
	b = b[4*rank:]
	n, err := payloadLen(shape, len(b)/4)
	if err != nil {
		return err
	}
	if len(b) != 4*n {
		return fmt.Errorf("ndarray: payload is %d bytes, shape %v needs %d", len(b), shape, 4*n)
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	a.shape, a.data = shape, data
	return nil
}

// payloadLen is the element count of shape, failing once it exceeds limit so
// a corrupt header cannot overflow the multiplication.
func payloadLen(shape []int, limit int) (int, error) {
	if slices.Contains(shape, 0) {
		return 0, nil
	}
	n := 1
	for _, d := range shape {
		if n > limit/d {
			return 0, fmt.Errorf("ndarray: shape %v exceeds a payload of %d values", shape, limit)
		}
		n *= d
	}
	return n, nil
}
