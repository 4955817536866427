package tensor

import "fmt"

// The matmul kernels have layout preconditions, not preferences: the
// activation must be row-major on its inner axis and the weight must be
// column-major on its first axis. Violations are undefined behavior at the
// kernel level, so the normalizers check first and copy only when a tensor
// does not already conform.

// NormalizeActivation flattens all leading dimensions into one batch
// dimension and guarantees stride-1 on the inner (feature) axis. The result
// is a zero-copy view whenever the input already conforms.
func NormalizeActivation(act *Tensor) (*Tensor, error) {
	if act == nil || act.NumDims() == 0 {
		return nil, fmt.Errorf("normalize: activation is empty")
	}
	if act.DType != F32 {
		return nil, fmt.Errorf("normalize: activation dtype %s, want f32", act.DType)
	}
	a := act.FlattenLeading()
	if !a.InnerContiguous() {
		a = a.Contiguous()
	}
	return a, nil
}

// NormalizeWeight guarantees the [out, in] weight is column-major on its
// first axis (stride 1 over output channels). A conforming weight is
// returned as a zero-copy view; anything else is logically transposed and
// compacted, which re-derives the column-major layout without altering
// element values.
func NormalizeWeight(w *Tensor) (*Tensor, error) {
	if w == nil || w.NumDims() != 2 {
		return nil, fmt.Errorf("normalize: weight must be 2D")
	}
	if w.Stride[0] == 1 {
		return w, nil
	}
	// Compact the transpose ([in, out] row-major), then view it back as
	// [out, in]; the view's first axis now has stride 1.
	return w.Transposed().Contiguous().Transposed(), nil
}

// Normalize prepares both matmul operands. See NormalizeActivation and
// NormalizeWeight for the individual contracts.
func Normalize(act, w *Tensor) (*Tensor, *Tensor, error) {
	a, err := NormalizeActivation(act)
	if err != nil {
		return nil, nil, err
	}
	wc, err := NormalizeWeight(w)
	if err != nil {
		return nil, nil, err
	}
	if a.Shape[1] != wc.Shape[1] {
		return nil, nil, fmt.Errorf("normalize: activation inner dim %d does not match weight inner dim %d", a.Shape[1], wc.Shape[1])
	}
	return a, wc, nil
}
