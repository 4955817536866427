package linear

import (
	"errors"
	"sync"
	"testing"

	"github.com/samcharles93/ingot/internal/fp8"
	"github.com/samcharles93/ingot/internal/tensor"
)

func newTestWeight(out, in int) *tensor.Tensor {
	raw := make([]byte, out*in)
	for i := range raw {
		raw[i] = fp8.Encode(float32(i%13) - 6)
	}
	return tensor.FromRaw(raw, out, in)
}

func TestEnsureScalesCreatesChannelWisePlaceholder(t *testing.T) {
	l := New(LayerConfig{OutFeatures: 4, InFeatures: 8, ChannelWise: true})
	if err := l.EnsureScales(); err != nil {
		t.Fatal(err)
	}
	ws := l.WeightScale
	if ws == nil {
		t.Fatal("weight_scale not materialized")
	}
	if ws.NumDims() != 1 || ws.Shape[0] != 4 {
		t.Fatalf("weight_scale shape = %v, want [4]", ws.Shape)
	}
	for _, v := range ws.Data {
		if v != 1 {
			t.Fatalf("placeholder must be identity, got %v", ws.Data)
		}
	}
}

func TestEnsureScalesBlockGrid(t *testing.T) {
	l := New(LayerConfig{OutFeatures: 256, InFeatures: 256, BlockQuant: true, BlockSize: 128})
	if err := l.EnsureScales(); err != nil {
		t.Fatal(err)
	}
	ws := l.WeightScaleInv
	if ws == nil {
		t.Fatal("weight_scale_inv not materialized")
	}
	if ws.NumDims() != 2 || ws.Shape[0] != 2 || ws.Shape[1] != 2 {
		t.Fatalf("weight_scale_inv shape = %v, want [2 2]", ws.Shape)
	}
	for _, v := range ws.Data {
		if v != 1 {
			t.Fatalf("placeholder must be identity, got %v", ws.Data)
		}
	}
	if l.WeightScale != nil {
		t.Fatal("block variant must not materialize weight_scale")
	}
}

func TestEnsureScalesIdempotent(t *testing.T) {
	l := New(LayerConfig{OutFeatures: 4, InFeatures: 8, ChannelWise: true, ActivationQuant: true})
	if err := l.EnsureScales(); err != nil {
		t.Fatal(err)
	}
	ws, is := l.WeightScale, l.InputScale
	before := PlaceholderCount()
	for i := 0; i < 5; i++ {
		if err := l.EnsureScales(); err != nil {
			t.Fatal(err)
		}
	}
	if l.WeightScale != ws || l.InputScale != is {
		t.Fatal("repeated EnsureScales replaced an existing scale tensor")
	}
	if PlaceholderCount() != before {
		t.Fatal("repeated EnsureScales created new placeholders")
	}
}

func TestEnsureScalesKeepsLoaderScale(t *testing.T) {
	l := New(LayerConfig{OutFeatures: 4, InFeatures: 8, ChannelWise: true})
	loaded := tensor.FromData([]float32{0.1, 0.2, 0.3, 0.4}, 4)
	l.WeightScale = loaded
	if err := l.EnsureScales(); err != nil {
		t.Fatal(err)
	}
	if l.WeightScale != loaded {
		t.Fatal("pre-populated scale was replaced")
	}
}

func TestEnsureScalesShapeMismatch(t *testing.T) {
	l := New(LayerConfig{OutFeatures: 4, InFeatures: 8, ChannelWise: true})
	l.WeightScale = tensor.Ones(3)
	err := l.EnsureScales()
	if err == nil {
		t.Fatal("expected shape mismatch")
	}
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("error does not wrap ErrShapeMismatch: %v", err)
	}
	var sm *ShapeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("error is not a ShapeMismatchError: %T", err)
	}
	if sm.Name != ScaleWeight || sm.Want[0] != 4 || sm.Got[0] != 3 {
		t.Fatalf("mismatch detail = %+v", sm)
	}
}

// Placeholder correctness: dequantizing with the identity placeholder
// reproduces the raw dequantized weight values unchanged.
func TestPlaceholderIsMultiplicativeIdentity(t *testing.T) {
	l := New(LayerConfig{OutFeatures: 4, InFeatures: 8, ChannelWise: true})
	w := newTestWeight(4, 8)
	if err := l.AttachWeight(w); err != nil {
		t.Fatal(err)
	}
	if err := l.EnsureScales(); err != nil {
		t.Fatal(err)
	}
	for o := 0; o < 4; o++ {
		for k := 0; k < 8; k++ {
			raw := fp8.Decode(w.Raw[o*8+k])
			if got := raw * l.WeightScale.Data[o]; got != raw {
				t.Fatalf("placeholder changed value at (%d,%d): %v != %v", o, k, got, raw)
			}
		}
	}
}

func TestEnsureScalesObserverAndCounter(t *testing.T) {
	var events []PlaceholderEvent
	l := New(
		LayerConfig{OutFeatures: 4, InFeatures: 8, ChannelWise: true, ActivationQuant: true},
		WithObserver(func(ev PlaceholderEvent) { events = append(events, ev) }),
	)
	before := PlaceholderCount()
	if err := l.EnsureScales(); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("observed %d events, want 2", len(events))
	}
	if events[0].Scale != ScaleWeight || events[1].Scale != ScaleInput {
		t.Fatalf("event order = %v", events)
	}
	for _, ev := range events {
		if ev.Layer != l.ID() {
			t.Fatal("event carries wrong layer id")
		}
	}
	if PlaceholderCount()-before != 2 {
		t.Fatalf("counter advanced by %d, want 2", PlaceholderCount()-before)
	}
}

func TestEnsureScalesRepacksWeight(t *testing.T) {
	l := New(LayerConfig{OutFeatures: 32, InFeatures: 16, Marlin: true})
	if err := l.AttachWeight(newTestWeight(32, 16)); err != nil {
		t.Fatal(err)
	}
	if err := l.EnsureScales(); err != nil {
		t.Fatal(err)
	}
	if l.packed == nil {
		t.Fatal("packed variant did not repack the weight")
	}
	if l.packed.Out != 32 || l.packed.In != 16 {
		t.Fatalf("packed dims = (%d,%d)", l.packed.Out, l.packed.In)
	}
}

// N concurrent first-time materializations must produce exactly one tensor
// per scale name, observed identically by every caller.
func TestEnsureScalesConcurrent(t *testing.T) {
	const goroutines = 16
	l := New(LayerConfig{OutFeatures: 64, InFeatures: 64, ChannelWise: true})

	var (
		mu   sync.Mutex
		seen = make(map[*tensor.Tensor]struct{})
		wg   sync.WaitGroup
		gate = make(chan struct{})
	)
	before := PlaceholderCount()
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			if err := l.EnsureScales(); err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			seen[l.WeightScale] = struct{}{}
			mu.Unlock()
		}()
	}
	close(gate)
	wg.Wait()

	if len(seen) != 1 {
		t.Fatalf("observed %d distinct weight_scale tensors, want 1", len(seen))
	}
	if PlaceholderCount()-before != 1 {
		t.Fatalf("materialized %d placeholders, want 1", PlaceholderCount()-before)
	}
}
