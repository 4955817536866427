// Package tensor provides the strided tensor type shared by the FP8 linear
// core: float32 activations and scales, FP8 E4M3 weight payloads, and the
// layout views the matmul kernels require.
package tensor

import (
	"fmt"

	"github.com/samcharles93/ingot/internal/fp8"
)

// DType describes the element encoding of a Tensor.
type DType uint8

const (
	// F32 elements live in Data.
	F32 DType = iota
	// FP8E4M3 elements live in Raw, one byte per element.
	FP8E4M3
)

func (d DType) String() string {
	switch d {
	case F32:
		return "f32"
	case FP8E4M3:
		return "fp8_e4m3"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// Tensor is a dense n-dimensional array with explicit element strides.
//
// Stride[i] is the element distance between consecutive indices along
// dimension i, so views (transposes, flattened batches) share backing
// storage with the tensor they were derived from. Exactly one of Data and
// Raw is populated, selected by DType.
//
// Tensor performs no memory safety beyond Go's slice bounds checks;
// out-of-range indices panic.
type Tensor struct {
	Shape  []int
	Stride []int
	DType  DType
	Data   []float32
	Raw    []byte
}

// ContiguousStrides returns the row-major strides for shape.
func ContiguousStrides(shape []int) []int {
	stride := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		stride[i] = acc
		acc *= shape[i]
	}
	return stride
}

func numElems(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 {
			panic("negative dimension for tensor")
		}
		n *= d
	}
	return n
}

// New allocates a zero-filled float32 tensor with row-major layout.
func New(shape ...int) *Tensor {
	return &Tensor{
		Shape:  shape,
		Stride: ContiguousStrides(shape),
		DType:  F32,
		Data:   make([]float32, numElems(shape)),
	}
}

// Ones allocates a float32 tensor filled with 1.0.
func Ones(shape ...int) *Tensor {
	t := New(shape...)
	for i := range t.Data {
		t.Data[i] = 1
	}
	return t
}

// FromData wraps an existing float32 slice. The length must match the shape.
func FromData(data []float32, shape ...int) *Tensor {
	if len(data) != numElems(shape) {
		panic("data length mismatch")
	}
	return &Tensor{
		Shape:  shape,
		Stride: ContiguousStrides(shape),
		DType:  F32,
		Data:   data,
	}
}

// FromRaw wraps an FP8 payload, one byte per element in row-major order.
func FromRaw(raw []byte, shape ...int) *Tensor {
	if len(raw) != numElems(shape) {
		panic("raw length mismatch")
	}
	return &Tensor{
		Shape:  shape,
		Stride: ContiguousStrides(shape),
		DType:  FP8E4M3,
		Raw:    raw,
	}
}

// Elems returns the number of logical elements.
func (t *Tensor) Elems() int { return numElems(t.Shape) }

// NumDims returns the rank of the tensor.
func (t *Tensor) NumDims() int { return len(t.Shape) }

func (t *Tensor) offset(idx ...int) int {
	if len(idx) != len(t.Shape) {
		panic("index rank mismatch")
	}
	off := 0
	for i, ix := range idx {
		if ix < 0 || ix >= t.Shape[i] {
			panic("tensor index out of range")
		}
		off += ix * t.Stride[i]
	}
	return off
}

// At returns the element at idx as float32, decoding FP8 on the fly.
func (t *Tensor) At(idx ...int) float32 {
	off := t.offset(idx...)
	if t.DType == FP8E4M3 {
		return fp8.Decode(t.Raw[off])
	}
	return t.Data[off]
}

// Set stores a float32 at idx, encoding to FP8 for raw tensors.
func (t *Tensor) Set(v float32, idx ...int) {
	off := t.offset(idx...)
	if t.DType == FP8E4M3 {
		t.Raw[off] = fp8.Encode(v)
		return
	}
	t.Data[off] = v
}

// InnerContiguous reports whether the innermost axis has stride 1.
func (t *Tensor) InnerContiguous() bool {
	n := len(t.Stride)
	return n > 0 && t.Stride[n-1] == 1
}

// IsContiguous reports whether the tensor is dense row-major.
func (t *Tensor) IsContiguous() bool {
	acc := 1
	for i := len(t.Shape) - 1; i >= 0; i-- {
		if t.Shape[i] != 1 && t.Stride[i] != acc {
			return false
		}
		acc *= t.Shape[i]
	}
	return true
}

// Transposed returns a zero-copy view with the two dimensions of a 2D
// tensor exchanged.
func (t *Tensor) Transposed() *Tensor {
	if len(t.Shape) != 2 {
		panic("Transposed requires a 2D tensor")
	}
	return &Tensor{
		Shape:  []int{t.Shape[1], t.Shape[0]},
		Stride: []int{t.Stride[1], t.Stride[0]},
		DType:  t.DType,
		Data:   t.Data,
		Raw:    t.Raw,
	}
}

// Contiguous returns t when it is already dense row-major, otherwise a
// freshly materialized row-major copy with identical element values.
func (t *Tensor) Contiguous() *Tensor {
	if t.IsContiguous() {
		return t
	}
	n := t.Elems()
	out := &Tensor{
		Shape:  append([]int(nil), t.Shape...),
		Stride: ContiguousStrides(t.Shape),
		DType:  t.DType,
	}
	if t.DType == FP8E4M3 {
		out.Raw = make([]byte, n)
	} else {
		out.Data = make([]float32, n)
	}

	idx := make([]int, len(t.Shape))
	for i := 0; i < n; i++ {
		src := 0
		for d, ix := range idx {
			src += ix * t.Stride[d]
		}
		if t.DType == FP8E4M3 {
			out.Raw[i] = t.Raw[src]
		} else {
			out.Data[i] = t.Data[src]
		}
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < t.Shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

// FlattenLeading collapses all leading dimensions into a single batch
// dimension, returning a 2D [batch, inner] tensor. The result is a
// zero-copy view when the leading dimensions are collapsible (each stride
// equals the product of the trailing dimensions' extents times the inner
// stride); otherwise a contiguous copy is made first.
func (t *Tensor) FlattenLeading() *Tensor {
	switch len(t.Shape) {
	case 0:
		panic("cannot flatten a rank-0 tensor")
	case 1:
		return &Tensor{
			Shape:  []int{1, t.Shape[0]},
			Stride: []int{t.Shape[0] * t.Stride[0], t.Stride[0]},
			DType:  t.DType,
			Data:   t.Data,
			Raw:    t.Raw,
		}
	case 2:
		return t
	}

	inner := t.Shape[len(t.Shape)-1]
	batch := 1
	for _, d := range t.Shape[:len(t.Shape)-1] {
		batch *= d
	}
	if collapsible(t.Shape, t.Stride) {
		return &Tensor{
			Shape:  []int{batch, inner},
			Stride: []int{t.Stride[len(t.Stride)-2], t.Stride[len(t.Stride)-1]},
			DType:  t.DType,
			Data:   t.Data,
			Raw:    t.Raw,
		}
	}
	c := t.Contiguous()
	return &Tensor{
		Shape:  []int{batch, inner},
		Stride: []int{inner, 1},
		DType:  c.DType,
		Data:   c.Data,
		Raw:    c.Raw,
	}
}

// collapsible reports whether the leading dimensions form one dense block,
// i.e. stride[i] == stride[i+1]*shape[i+1] for all leading axes.
func collapsible(shape, stride []int) bool {
	for i := 0; i < len(shape)-2; i++ {
		if shape[i] != 1 && stride[i] != stride[i+1]*shape[i+1] {
			return false
		}
	}
	return true
}
