package linear

import "github.com/samcharles93/ingot/internal/kernel"

// Variant is the closed set of quantization variants a layer can resolve
// to. It is computed once per layer and never changes afterwards.
type Variant uint8

const (
	// VariantStandard uses a per-channel [out] scale when the hardware
	// channel-wise path is available, otherwise a per-tensor [1] scale.
	VariantStandard Variant = iota
	// VariantBlock uses a per-block inverse-scale grid.
	VariantBlock
	// VariantPacked uses a repacked weight with per-channel scales.
	VariantPacked
)

func (v Variant) String() string {
	switch v {
	case VariantBlock:
		return kernel.Block
	case VariantPacked:
		return kernel.Packed
	default:
		return kernel.Standard
	}
}

// ResolveVariant classifies a layer configuration. It is a pure, total
// function: the packed path wins, then block quantization, and everything
// else (including unrecognized flag combinations) falls back to standard.
func ResolveVariant(cfg LayerConfig) Variant {
	switch {
	case cfg.Marlin:
		return VariantPacked
	case cfg.BlockQuant && cfg.BlockSize > 0:
		return VariantBlock
	default:
		return VariantStandard
	}
}

// ScaleSpec names one scale tensor a variant requires and its shape.
type ScaleSpec struct {
	Name  string
	Shape []int
}

// Scale parameter names, matching the checkpoint convention of the
// runtimes this core loads from.
const (
	ScaleWeight    = "weight_scale"
	ScaleWeightInv = "weight_scale_inv"
	ScaleInput     = "input_scale"
)

// RequiredScales lists the scale tensors the resolved variant of cfg
// needs, in materialization order.
func RequiredScales(cfg LayerConfig) []ScaleSpec {
	var specs []ScaleSpec
	switch ResolveVariant(cfg) {
	case VariantBlock:
		specs = append(specs, ScaleSpec{
			Name:  ScaleWeightInv,
			Shape: []int{ceilDiv(cfg.OutFeatures, cfg.BlockSize), ceilDiv(cfg.InFeatures, cfg.BlockSize)},
		})
	case VariantPacked:
		specs = append(specs, ScaleSpec{Name: ScaleWeight, Shape: []int{cfg.OutFeatures}})
	default:
		specs = append(specs, ScaleSpec{Name: ScaleWeight, Shape: []int{cfg.standardScaleLen()}})
	}
	if cfg.ActivationQuant {
		specs = append(specs, ScaleSpec{Name: ScaleInput, Shape: []int{1}})
	}
	return specs
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
