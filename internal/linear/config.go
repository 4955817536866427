package linear

// LayerConfig is the immutable construction-time configuration of one
// linear layer. The flags are opaque values handed over by the
// configuration-loading collaborator; this core only classifies them.
type LayerConfig struct {
	InFeatures  int
	OutFeatures int

	// ChannelWise reports that the hardware-accelerated per-channel scale
	// path is available on this device.
	ChannelWise bool

	// BlockQuant requests block-wise quantization with edge BlockSize.
	BlockQuant bool
	BlockSize  int

	// Marlin selects the specialized packed kernel path.
	Marlin bool

	// ActivationQuant enables static activation quantization, which adds
	// an input_scale parameter.
	ActivationQuant bool

	// Bias reports that the layer carries an additive bias.
	Bias bool
}

// standardScaleLen is the weight_scale length for the standard variant:
// per-channel when the hardware path is available and the configuration is
// well formed, otherwise the per-tensor fallback.
func (cfg LayerConfig) standardScaleLen() int {
	if cfg.ChannelWise && !cfg.malformed() {
		return cfg.OutFeatures
	}
	return 1
}

// malformed reports flag combinations that do not map to a recognized
// scheme. They still resolve (to standard, tensor-wise) so the layer makes
// forward progress instead of failing at classification time.
func (cfg LayerConfig) malformed() bool {
	return cfg.BlockQuant && cfg.BlockSize <= 0
}
