// Package fp8 implements the E4M3 8-bit floating point encoding used for
// quantized linear-layer weights: 1 sign bit, 4 exponent bits (bias 7),
// 3 mantissa bits. The format has no infinities; the all-ones pattern with
// mantissa 0b111 is NaN and the largest finite magnitude is 448.
package fp8

import "math"

const (
	expBias   = 7
	mantBits  = 3
	maxFinite = 448.0

	// NaN is the canonical quiet NaN bit pattern.
	NaN byte = 0x7F
	// MaxFinite is the bit pattern of the largest positive finite value (448).
	MaxFinite byte = 0x7E
)

// decodeTable maps every possible E4M3 bit-pattern to float32.
var decodeTable = func() [256]float32 {
	var tbl [256]float32
	for i := range tbl {
		tbl[i] = decodeSlow(byte(i))
	}
	return tbl
}()

func decodeSlow(b byte) float32 {
	exp := int(b>>mantBits) & 0xF
	mant := int(b & 0x7)
	neg := b&0x80 != 0

	var v float64
	switch {
	case exp == 0xF && mant == 0x7:
		return float32(math.NaN())
	case exp == 0:
		// subnormal: mant/8 * 2^(1-bias)
		v = math.Ldexp(float64(mant), 1-expBias-mantBits)
	default:
		v = math.Ldexp(1+float64(mant)/8, exp-expBias)
	}
	if neg {
		v = -v
	}
	return float32(v)
}

// Decode converts an E4M3 byte to float32.
func Decode(b byte) float32 {
	return decodeTable[b]
}

// Encode converts a float32 to the nearest E4M3 value using round to
// nearest even. Out-of-range magnitudes saturate to the largest finite
// value rather than producing NaN, matching inference-runtime convention.
func Encode(x float32) byte {
	f := float64(x)
	if math.IsNaN(f) {
		return NaN
	}
	var sign byte
	if math.Signbit(f) {
		sign = 0x80
		f = -f
	}
	if f >= maxFinite {
		return sign | MaxFinite
	}
	if f == 0 {
		return sign
	}

	_, exp := math.Frexp(f) // f = frac * 2^exp, frac in [0.5, 1)
	e := exp - 1

	if e < 1-expBias {
		// subnormal: value = m * 2^(1-bias-3)
		m := int(math.RoundToEven(math.Ldexp(f, expBias-1+mantBits)))
		if m > 0x7 {
			// rounded up into the smallest normal
			return sign | 1<<mantBits
		}
		return sign | byte(m)
	}

	m := int(math.RoundToEven((math.Ldexp(f, -e) - 1) * 8))
	if m == 8 {
		m = 0
		e++
	}
	if e > 0xF-expBias {
		return sign | MaxFinite
	}
	return sign | byte(e+expBias)<<mantBits | byte(m)
}

// Dequantize decodes src into dst. dst must have length >= len(src).
func Dequantize(dst []float32, src []byte) {
	for i, b := range src {
		dst[i] = decodeTable[b]
	}
}

// Quantize encodes src into dst. dst must have length >= len(src).
func Quantize(dst []byte, src []float32) {
	for i, v := range src {
		dst[i] = Encode(v)
	}
}
