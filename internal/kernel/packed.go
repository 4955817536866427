package kernel

import (
	"fmt"

	"github.com/samcharles93/ingot/internal/fp8"
	"github.com/samcharles93/ingot/internal/tensor"
)

// Tile is the output-channel tile width of the packed weight layout.
const Tile = 16

// PackedWeight is an FP8 weight repacked for the packed (marlin-style)
// kernel. Output channels are grouped into tiles of Tile rows; within a
// tile the elements are stored column-major and interleaved, so one tile
// column ([Tile] contiguous bytes) feeds one vector load. Out is the
// logical (unpadded) channel count.
type PackedWeight struct {
	Raw []byte
	Out int
	In  int
}

func (p *PackedWeight) tiles() int { return ceilDiv(p.Out, Tile) }

// Repack transforms a logical [out, in] FP8 weight into the packed tile
// layout. Rows past out in the final tile are zero-padded, which is a
// multiplicative no-op on the output.
func Repack(w *tensor.Tensor) (*PackedWeight, error) {
	if w == nil || w.NumDims() != 2 || w.DType != tensor.FP8E4M3 {
		return nil, fmt.Errorf("kernel: repack needs a 2D fp8 weight")
	}
	out, in := w.Shape[0], w.Shape[1]
	tiles := ceilDiv(out, Tile)
	raw := make([]byte, tiles*in*Tile)
	for o := 0; o < out; o++ {
		tile := o / Tile
		lane := o % Tile
		base := tile * in * Tile
		for kk := 0; kk < in; kk++ {
			raw[base+kk*Tile+lane] = w.Raw[o*w.Stride[0]+kk*w.Stride[1]]
		}
	}
	return &PackedWeight{Raw: raw, Out: out, In: in}, nil
}

// Unpack reverses Repack, dropping the pad rows. Used by tests and the
// inspect tooling to verify the permutation is lossless.
func Unpack(p *PackedWeight) *tensor.Tensor {
	raw := make([]byte, p.Out*p.In)
	for o := 0; o < p.Out; o++ {
		tile := o / Tile
		lane := o % Tile
		base := tile * p.In * Tile
		for kk := 0; kk < p.In; kk++ {
			raw[o*p.In+kk] = p.Raw[base+kk*Tile+lane]
		}
	}
	return tensor.FromRaw(raw, p.Out, p.In)
}

// MatMulPacked computes the matmul against a packed weight with
// per-channel scales.
func MatMulPacked(op Operands, s Scales) (*tensor.Tensor, error) {
	batch, in, err := checkAct(op)
	if err != nil {
		return nil, err
	}
	p := op.Packed
	if p == nil {
		return nil, fmt.Errorf("kernel: packed weight missing")
	}
	if p.In != in {
		return nil, fmt.Errorf("kernel: packed weight inner dim %d does not match activation %d", p.In, in)
	}
	n := p.Out
	ws := s.Weight
	if ws == nil || (ws.Elems() != n && ws.Elems() != 1) {
		return nil, fmt.Errorf("kernel: packed weight scale must have %d or 1 elements", n)
	}

	out := tensor.New(batch, n)
	a := op.Act
	var tileBuf [Tile]float32

	for t := 0; t < p.tiles(); t++ {
		base := t * in * Tile
		o0 := t * Tile
		width := min(Tile, n-o0)
		for kk := 0; kk < in; kk++ {
			fp8.Dequantize(tileBuf[:], p.Raw[base+kk*Tile:base+kk*Tile+Tile])
			for i := 0; i < batch; i++ {
				aik := a.Data[i*a.Stride[0]+kk]
				if aik == 0 {
					continue
				}
				row := out.Data[i*n+o0 : i*n+o0+width]
				axpy(row, tileBuf[:width], aik)
			}
		}
	}

	applyChannelScale(out, ws, inputScale(s))
	return out, nil
}
