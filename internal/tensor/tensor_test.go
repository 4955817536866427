package tensor

import (
	"testing"

	"github.com/samcharles93/ingot/internal/fp8"
)

func seqData(n int) []float32 {
	d := make([]float32, n)
	for i := range d {
		d[i] = float32(i)
	}
	return d
}

func assertValues(t *testing.T, got *Tensor, want []float32) {
	t.Helper()
	if got.Elems() != len(want) {
		t.Fatalf("elem count = %d, want %d", got.Elems(), len(want))
	}
	idx := make([]int, got.NumDims())
	for i := 0; i < len(want); i++ {
		if v := got.At(idx...); v != want[i] {
			t.Fatalf("value at %v = %v, want %v", idx, v, want[i])
		}
		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < got.Shape[d] {
				break
			}
			idx[d] = 0
		}
	}
}

func TestContiguousStrides(t *testing.T) {
	got := ContiguousStrides([]int{3, 4, 5})
	want := []int{20, 5, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("strides = %v, want %v", got, want)
		}
	}
}

func TestTransposedIsView(t *testing.T) {
	m := FromData(seqData(6), 2, 3)
	tr := m.Transposed()
	if tr.Shape[0] != 3 || tr.Shape[1] != 2 {
		t.Fatalf("transposed shape = %v", tr.Shape)
	}
	if tr.At(2, 1) != m.At(1, 2) {
		t.Fatal("transposed view reads wrong element")
	}
	// Writing through the view must hit the original storage.
	tr.Set(99, 0, 1)
	if m.At(1, 0) != 99 {
		t.Fatal("transposed view does not alias original")
	}
}

func TestContiguousCopiesStridedTensor(t *testing.T) {
	m := FromData(seqData(6), 2, 3)
	tr := m.Transposed()
	if tr.IsContiguous() {
		t.Fatal("transpose of a 2x3 should not be contiguous")
	}
	c := tr.Contiguous()
	if !c.IsContiguous() {
		t.Fatal("Contiguous result is not contiguous")
	}
	assertValues(t, c, []float32{0, 3, 1, 4, 2, 5})
	// The copy must not alias the source.
	c.Set(-1, 0, 0)
	if m.At(0, 0) == -1 {
		t.Fatal("contiguous copy aliases source")
	}
}

func TestContiguousNoopReturnsSelf(t *testing.T) {
	m := FromData(seqData(6), 2, 3)
	if m.Contiguous() != m {
		t.Fatal("contiguous tensor should be returned as-is")
	}
}

func TestContiguousFP8(t *testing.T) {
	raw := make([]byte, 6)
	vals := []float32{0, 1, -1, 2, 0.5, 4}
	fp8.Quantize(raw, vals)
	m := FromRaw(raw, 2, 3)
	c := m.Transposed().Contiguous()
	if c.DType != FP8E4M3 {
		t.Fatalf("dtype = %v", c.DType)
	}
	assertValues(t, c, []float32{0, 2, 1, 0.5, -1, 4})
}

func TestFlattenLeadingView(t *testing.T) {
	m := FromData(seqData(24), 2, 3, 4)
	f := m.FlattenLeading()
	if f.Shape[0] != 6 || f.Shape[1] != 4 {
		t.Fatalf("flattened shape = %v", f.Shape)
	}
	// Contiguous input flattens without copying.
	if &f.Data[0] != &m.Data[0] {
		t.Fatal("flatten of contiguous tensor should be zero-copy")
	}
	assertValues(t, f, seqData(24))
}

func TestFlattenLeadingRank1(t *testing.T) {
	v := FromData(seqData(4), 4)
	f := v.FlattenLeading()
	if f.Shape[0] != 1 || f.Shape[1] != 4 {
		t.Fatalf("flattened shape = %v", f.Shape)
	}
}

func TestFlattenLeadingNonCollapsible(t *testing.T) {
	// A [4, 3] tensor viewed as every other row: shape [2, 3], stride [6, 1].
	base := seqData(12)
	m := &Tensor{Shape: []int{2, 1, 3}, Stride: []int{6, 3, 1}, DType: F32, Data: base}
	f := m.FlattenLeading()
	if f.Shape[0] != 2 || f.Shape[1] != 3 {
		t.Fatalf("flattened shape = %v", f.Shape)
	}
	assertValues(t, f, []float32{0, 1, 2, 6, 7, 8})
}

func TestAtSetFP8(t *testing.T) {
	m := FromRaw(make([]byte, 4), 2, 2)
	m.Set(1.5, 1, 0)
	if m.At(1, 0) != 1.5 {
		t.Fatalf("fp8 At/Set round trip = %v", m.At(1, 0))
	}
}
