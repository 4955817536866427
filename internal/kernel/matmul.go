package kernel

import (
	"fmt"

	"github.com/samcharles93/ingot/internal/fp8"
	"github.com/samcharles93/ingot/internal/tensor"
)

// MatMulStandard computes out = act · dequant(w)ᵀ for the standard variant.
// The weight scale is per output channel ([out]) or per tensor ([1]).
func MatMulStandard(op Operands, s Scales) (*tensor.Tensor, error) {
	batch, in, err := checkAct(op)
	if err != nil {
		return nil, err
	}
	n, err := checkWeight(op, in)
	if err != nil {
		return nil, err
	}
	ws := s.Weight
	if ws == nil || (ws.Elems() != n && ws.Elems() != 1) {
		return nil, fmt.Errorf("kernel: standard weight scale must have %d or 1 elements", n)
	}

	out := tensor.New(batch, n)
	a := op.Act
	cs := op.Weight.Stride[1]
	colBuf := make([]float32, n)

	// Column-at-a-time: decode one weight column, then axpy it into every
	// batch row. Keeps each decoded column hot across the whole batch.
	for kk := 0; kk < in; kk++ {
		col := op.Weight.Raw[kk*cs : kk*cs+n]
		fp8.Dequantize(colBuf, col)
		for i := 0; i < batch; i++ {
			aik := a.Data[i*a.Stride[0]+kk]
			if aik == 0 {
				continue
			}
			axpy(out.Data[i*n:i*n+n], colBuf, aik)
		}
	}

	applyChannelScale(out, ws, inputScale(s))
	return out, nil
}

// MatMulBlock computes the block-quantized matmul. The inverse scale grid
// has one entry per (blockSize × blockSize) weight block.
func MatMulBlock(op Operands, s Scales) (*tensor.Tensor, error) {
	batch, in, err := checkAct(op)
	if err != nil {
		return nil, err
	}
	n, err := checkWeight(op, in)
	if err != nil {
		return nil, err
	}
	bs := s.BlockSize
	if bs <= 0 {
		return nil, fmt.Errorf("kernel: block size must be positive, got %d", bs)
	}
	rows := ceilDiv(n, bs)
	cols := ceilDiv(in, bs)
	wsInv := s.WeightInv
	if wsInv == nil || wsInv.NumDims() != 2 || wsInv.Shape[0] != rows || wsInv.Shape[1] != cols {
		return nil, fmt.Errorf("kernel: block scale grid must be [%d %d]", rows, cols)
	}

	out := tensor.New(batch, n)
	a := op.Act
	cs := op.Weight.Stride[1]
	colBuf := make([]float32, n)

	for kk := 0; kk < in; kk++ {
		col := op.Weight.Raw[kk*cs : kk*cs+n]
		kb := kk / bs
		// Fold the per-block scale into the decoded column so the inner
		// accumulation stays a plain axpy.
		for o := 0; o < n; o++ {
			colBuf[o] = fp8.Decode(col[o]) * wsInv.At(o/bs, kb)
		}
		for i := 0; i < batch; i++ {
			aik := a.Data[i*a.Stride[0]+kk]
			if aik == 0 {
				continue
			}
			axpy(out.Data[i*n:i*n+n], colBuf, aik)
		}
	}

	if is := inputScale(s); is != 1 {
		for i := range out.Data {
			out.Data[i] *= is
		}
	}
	return out, nil
}

func axpy(dst, src []float32, a float32) {
	n := len(dst)
	j := 0
	for ; j+3 < n; j += 4 {
		dst[j+0] += a * src[j+0]
		dst[j+1] += a * src[j+1]
		dst[j+2] += a * src[j+2]
		dst[j+3] += a * src[j+3]
	}
	for ; j < n; j++ {
		dst[j] += a * src[j]
	}
}

// applyChannelScale multiplies each output column by its channel scale (or
// the single per-tensor scale) and the activation scale.
func applyChannelScale(out *tensor.Tensor, ws *tensor.Tensor, inScale float32) {
	batch, n := out.Shape[0], out.Shape[1]
	if ws.Elems() == 1 {
		g := ws.Data[0] * inScale
		if g == 1 {
			return
		}
		for i := range out.Data {
			out.Data[i] *= g
		}
		return
	}
	for i := 0; i < batch; i++ {
		row := out.Data[i*n : i*n+n]
		for o := range row {
			row[o] *= ws.Data[o] * inScale
		}
	}
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
