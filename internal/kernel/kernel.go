// Package kernel holds the low-level FP8 matmul entry points and the
// capability-gated table used to select one per quantization variant.
//
// Every kernel has a strict layout precondition: the activation is a 2D
// [batch, in] float32 tensor with stride-1 inner axis, and the weight is
// either a column-major [out, in] FP8 tensor (stride 1 on the first axis)
// or a PackedWeight. Callers normalize layouts before dispatch; the kernels
// themselves only validate shapes.
package kernel

import (
	"fmt"

	"github.com/samcharles93/ingot/internal/tensor"
)

// Variant name keys for the kernel table.
const (
	Standard = "standard"
	Block    = "block"
	Packed   = "packed"
)

// Operands carries the layout-normalized inputs of one kernel call.
// Exactly one of Weight and Packed is set.
type Operands struct {
	Act    *tensor.Tensor
	Weight *tensor.Tensor
	Packed *PackedWeight
}

// Scales carries the dequantization multipliers for one kernel call.
type Scales struct {
	// Weight is per-channel [out] or per-tensor [1] (standard and packed).
	Weight *tensor.Tensor
	// WeightInv is the per-block inverse-scale grid (block variant only).
	WeightInv *tensor.Tensor
	// Input is the optional activation scale [1].
	Input *tensor.Tensor
	// BlockSize is the quantization block edge for the block variant.
	BlockSize int
}

// Func is a matmul kernel entry point. It returns a [batch, out] float32
// tensor.
type Func func(op Operands, s Scales) (*tensor.Tensor, error)

// Table maps variant names to the kernel entry points available under a
// given set of hardware capabilities.
type Table struct {
	entries map[string]Func
}

// NewTable builds the kernel table for caps. The standard and block
// kernels are always available; the packed kernel requires a vector unit.
func NewTable(caps Caps) *Table {
	entries := map[string]Func{
		Standard: MatMulStandard,
		Block:    MatMulBlock,
	}
	if caps.Vector {
		entries[Packed] = MatMulPacked
	}
	return &Table{entries: entries}
}

// Lookup returns the entry point for a variant name, if one is available.
func (t *Table) Lookup(variant string) (Func, bool) {
	fn, ok := t.entries[variant]
	return fn, ok
}

// Default returns the table for the detected capabilities of this host.
func Default() *Table {
	return NewTable(Detect())
}

func checkAct(op Operands) (batch, in int, err error) {
	a := op.Act
	if a == nil || a.NumDims() != 2 || a.DType != tensor.F32 {
		return 0, 0, fmt.Errorf("kernel: activation must be a 2D f32 tensor")
	}
	if a.Stride[1] != 1 {
		return 0, 0, fmt.Errorf("kernel: activation inner axis must be stride-1")
	}
	return a.Shape[0], a.Shape[1], nil
}

func checkWeight(op Operands, in int) (out int, err error) {
	w := op.Weight
	if w == nil || w.NumDims() != 2 || w.DType != tensor.FP8E4M3 {
		return 0, fmt.Errorf("kernel: weight must be a 2D fp8 tensor")
	}
	if w.Stride[0] != 1 {
		return 0, fmt.Errorf("kernel: weight first axis must be stride-1")
	}
	if w.Shape[1] != in {
		return 0, fmt.Errorf("kernel: weight inner dim %d does not match activation %d", w.Shape[1], in)
	}
	return w.Shape[0], nil
}

// inputScale returns the scalar activation multiplier, 1 when absent.
func inputScale(s Scales) float32 {
	if s.Input == nil || len(s.Input.Data) == 0 {
		return 1
	}
	return s.Input.Data[0]
}
