package linear

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// PlaceholderEvent records the creation of one identity-scale placeholder.
// Placeholders are a deliberate forward-progress fallback when the loader
// did not populate a calibrated scale, not an error, but silently degraded
// accuracy is not diagnosable, so every creation is surfaced here.
type PlaceholderEvent struct {
	Layer uuid.UUID
	Scale string
	Shape []int
}

var placeholderCount atomic.Int64

// PlaceholderCount returns the number of placeholder scales materialized
// by this process across all layers.
func PlaceholderCount() int64 {
	return placeholderCount.Load()
}
