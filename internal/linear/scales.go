package linear

import (
	"fmt"
	"slices"

	"github.com/samcharles93/ingot/internal/kernel"
	"github.com/samcharles93/ingot/internal/tensor"
)

// EnsureScales guarantees every scale tensor the resolved variant requires
// exists with the correct shape, creating identity placeholders for slots
// the loader left empty. It is idempotent and materializes at most once
// per layer, under any number of concurrent callers.
//
// A pre-existing scale with the wrong shape is a fatal loader/config
// inconsistency and returns a ShapeMismatchError; it is never silently
// reshaped. For the packed variant the one-time weight repack also happens
// here.
func (l *Layer) EnsureScales() error {
	if l.materialized.Load() {
		return nil
	}
	l.initMu.Lock()
	defer l.initMu.Unlock()
	if l.materialized.Load() {
		return nil
	}

	for _, spec := range RequiredScales(l.Config) {
		slot := l.scaleSlot(spec.Name)
		if cur := *slot; cur != nil {
			if !slices.Equal(cur.Shape, spec.Shape) {
				return &ShapeMismatchError{Name: spec.Name, Want: spec.Shape, Got: cur.Shape}
			}
			continue
		}
		l.materializePlaceholder(spec)
	}

	if l.Variant() == VariantPacked && l.packed == nil {
		if l.Weight == nil {
			return fmt.Errorf("linear: packed variant requires a weight before materialization")
		}
		p, err := kernel.Repack(l.Weight)
		if err != nil {
			return err
		}
		l.packed = p
	}

	// Publish only after every slot is fully written; the atomic store
	// orders the writes above before any fast-path load that observes true.
	l.materialized.Store(true)
	return nil
}

// Materialized reports whether the layer's scales have been ensured.
func (l *Layer) Materialized() bool {
	return l.materialized.Load()
}

// materializePlaceholder fills one scale slot with multiplicative identity.
// Dequantizing with it leaves quantized values unchanged in scale, so the
// layer stays correct (if uncalibrated) when the loader populated nothing.
// Every creation is counted and surfaced; see PlaceholderEvent.
func (l *Layer) materializePlaceholder(spec ScaleSpec) {
	slot := l.scaleSlot(spec.Name)
	*slot = tensor.Ones(spec.Shape...)
	placeholderCount.Add(1)
	if l.observer != nil {
		l.observer(PlaceholderEvent{Layer: l.id, Scale: spec.Name, Shape: spec.Shape})
	}
	if l.log != nil {
		l.log.Warn("materialized identity scale placeholder",
			"layer", l.id.String(), "scale", spec.Name, "shape", fmt.Sprint(spec.Shape))
	}
}
