package kernel

import (
	"runtime"
	"sync"

	"golang.org/x/sys/cpu"
)

// Caps describes the hardware capabilities that gate kernel availability.
type Caps struct {
	// Vector reports a usable wide vector unit (AVX2 on amd64, ASIMD on
	// arm64). The packed kernel's tile layout assumes one; without it there
	// is no entry point for the packed variant.
	Vector bool
}

// Detect probes the current CPU once and caches the result.
var Detect = sync.OnceValue(func() Caps {
	var c Caps
	switch runtime.GOARCH {
	case "amd64":
		c.Vector = cpu.X86.HasAVX2
	case "arm64":
		c.Vector = cpu.ARM64.HasASIMD
	}
	return c
})
