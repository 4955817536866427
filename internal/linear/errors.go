package linear

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch marks a pre-existing scale tensor whose shape does not
// match the resolved variant. It signals an upstream loader/config
// inconsistency; callers must not retry with the same configuration.
var ErrShapeMismatch = errors.New("shape_mismatch")

// ErrUnsupportedVariant marks a resolved variant with no kernel entry
// point on the current hardware. It is raised before any kernel call.
var ErrUnsupportedVariant = errors.New("unsupported_variant")

// ShapeMismatchError reports the expected and actual shape of a scale
// tensor that failed validation.
type ShapeMismatchError struct {
	Name string
	Want []int
	Got  []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("scale %q shape mismatch: want %v, got %v", e.Name, e.Want, e.Got)
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// UnsupportedVariantError reports a variant whose kernel is unavailable.
type UnsupportedVariantError struct {
	Variant Variant
}

func (e *UnsupportedVariantError) Error() string {
	return fmt.Sprintf("no kernel entry point for variant %q on this hardware", e.Variant)
}

func (e *UnsupportedVariantError) Unwrap() error { return ErrUnsupportedVariant }
