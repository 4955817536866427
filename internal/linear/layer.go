// Package linear implements the FP8 linear-layer execution core: variant
// resolution, lazy scale materialization, layout normalization, and kernel
// dispatch. The model loader attaches weights and (optionally) calibrated
// scales before first use; everything else happens lazily on the first
// Apply call and is frozen afterwards.
package linear

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/samcharles93/ingot/internal/kernel"
	"github.com/samcharles93/ingot/internal/logger"
	"github.com/samcharles93/ingot/internal/tensor"
)

// Kernels resolves variant names to kernel entry points. The default is
// the capability-gated table for this host; tests inject stubs.
type Kernels interface {
	Lookup(variant string) (kernel.Func, bool)
}

// Layer is one FP8 linear layer instance. The loader populates Weight,
// Bias and any calibrated scale tensors after construction; scale slots
// left nil are materialized with identity placeholders on first use.
//
// A Layer is safe for concurrent Apply calls: the variant is resolved
// once, materialization happens at most once, and all tensors are
// read-only afterwards.
type Layer struct {
	Config LayerConfig

	// Weight is the quantized [out, in] weight in logical layout.
	Weight *tensor.Tensor
	// Bias is the optional [out] additive bias.
	Bias *tensor.Tensor

	// Scale slots, keyed by the names in RequiredScales. nil means the
	// loader did not provide one.
	WeightScale    *tensor.Tensor
	WeightScaleInv *tensor.Tensor
	InputScale     *tensor.Tensor

	// packed is produced by the materializer for the packed variant.
	packed *kernel.PackedWeight

	id       uuid.UUID
	log      logger.Logger
	observer func(PlaceholderEvent)
	kernels  Kernels

	variantOnce sync.Once
	variant     Variant

	initMu       sync.Mutex
	materialized atomic.Bool
}

// Option configures a Layer at construction.
type Option func(*Layer)

// WithLogger attaches a logger used for placeholder warnings.
func WithLogger(log logger.Logger) Option {
	return func(l *Layer) { l.log = log }
}

// WithObserver registers a callback invoked for every placeholder scale
// this layer materializes.
func WithObserver(fn func(PlaceholderEvent)) Option {
	return func(l *Layer) { l.observer = fn }
}

// WithKernels overrides the kernel table. Intended for tests.
func WithKernels(k Kernels) Option {
	return func(l *Layer) { l.kernels = k }
}

// New constructs a layer for cfg. The weight must be attached before the
// first Apply call.
func New(cfg LayerConfig, opts ...Option) *Layer {
	l := &Layer{
		Config:  cfg,
		id:      uuid.New(),
		kernels: kernel.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ID returns the unique instance id carried on observability events.
func (l *Layer) ID() uuid.UUID { return l.id }

// Variant returns the layer's quantization variant, resolving and caching
// it on first call. The classification is fixed for the layer's lifetime.
func (l *Layer) Variant() Variant {
	l.variantOnce.Do(func() {
		l.variant = ResolveVariant(l.Config)
	})
	return l.variant
}

// AttachWeight validates and attaches the quantized weight. The loader
// guarantees dtype and logical shape; layout is normalized at call time.
func (l *Layer) AttachWeight(w *tensor.Tensor) error {
	if w == nil || w.NumDims() != 2 || w.DType != tensor.FP8E4M3 {
		return fmt.Errorf("linear: weight must be a 2D fp8 tensor")
	}
	if w.Shape[0] != l.Config.OutFeatures || w.Shape[1] != l.Config.InFeatures {
		return fmt.Errorf("linear: weight shape %v does not match config [%d %d]",
			w.Shape, l.Config.OutFeatures, l.Config.InFeatures)
	}
	l.Weight = w
	return nil
}

// AttachBias validates and attaches the bias tensor.
func (l *Layer) AttachBias(b *tensor.Tensor) error {
	if b == nil || b.NumDims() != 1 || b.Shape[0] != l.Config.OutFeatures || b.DType != tensor.F32 {
		return fmt.Errorf("linear: bias must be a [%d] f32 tensor", l.Config.OutFeatures)
	}
	l.Bias = b
	return nil
}

// scaleSlot returns the field holding the named scale.
func (l *Layer) scaleSlot(name string) **tensor.Tensor {
	switch name {
	case ScaleWeightInv:
		return &l.WeightScaleInv
	case ScaleInput:
		return &l.InputScale
	default:
		return &l.WeightScale
	}
}
