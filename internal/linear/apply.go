package linear

import (
	"fmt"

	"github.com/samcharles93/ingot/internal/kernel"
	"github.com/samcharles93/ingot/internal/tensor"
)

// Apply runs the layer's forward pass: resolve the cached variant, ensure
// scales are materialized, normalize operand layouts, and invoke the
// kernel for the variant, adding the bias when configured.
//
// The returned tensor has shape [batch..., out] mirroring the activation's
// leading dimensions. ShapeMismatchError and UnsupportedVariantError are
// fatal for this configuration; kernel errors propagate unchanged.
func (l *Layer) Apply(activation *tensor.Tensor) (*tensor.Tensor, error) {
	v := l.Variant()

	if err := l.EnsureScales(); err != nil {
		return nil, err
	}

	fn, ok := l.kernels.Lookup(v.String())
	if !ok {
		return nil, &UnsupportedVariantError{Variant: v}
	}

	op, err := l.normalizedOperands(v, activation)
	if err != nil {
		return nil, err
	}

	out, err := fn(op, kernel.Scales{
		Weight:    l.WeightScale,
		WeightInv: l.WeightScaleInv,
		Input:     l.InputScale,
		BlockSize: l.Config.BlockSize,
	})
	if err != nil {
		return nil, err
	}

	if l.Bias != nil {
		addBias(out, l.Bias)
	}
	return reshapeLeading(out, activation.Shape), nil
}

// normalizedOperands produces layout-correct kernel views. The packed
// variant carries its weight in kernel layout already, so only the
// activation needs normalizing there.
func (l *Layer) normalizedOperands(v Variant, activation *tensor.Tensor) (kernel.Operands, error) {
	if v == VariantPacked {
		act, err := tensor.NormalizeActivation(activation)
		if err != nil {
			return kernel.Operands{}, err
		}
		return kernel.Operands{Act: act, Packed: l.packed}, nil
	}
	if l.Weight == nil {
		return kernel.Operands{}, fmt.Errorf("linear: no weight attached")
	}
	act, w, err := tensor.Normalize(activation, l.Weight)
	if err != nil {
		return kernel.Operands{}, err
	}
	return kernel.Operands{Act: act, Weight: w}, nil
}

func addBias(out *tensor.Tensor, bias *tensor.Tensor) {
	batch, n := out.Shape[0], out.Shape[1]
	for i := 0; i < batch; i++ {
		row := out.Data[i*n : i*n+n]
		for o := range row {
			row[o] += bias.Data[o]
		}
	}
}

// reshapeLeading restores the activation's leading dimensions on the
// [batch, out] kernel result.
func reshapeLeading(out *tensor.Tensor, actShape []int) *tensor.Tensor {
	if len(actShape) == 2 {
		return out
	}
	shape := make([]int, 0, len(actShape))
	shape = append(shape, actShape[:len(actShape)-1]...)
	shape = append(shape, out.Shape[1])
	return &tensor.Tensor{
		Shape:  shape,
		Stride: tensor.ContiguousStrides(shape),
		DType:  out.DType,
		Data:   out.Data,
	}
}
