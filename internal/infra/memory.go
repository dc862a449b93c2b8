package infra

import (
	"math"
	"runtime"
	"runtime/debug"
)

// MemoryProbe reports how many bytes the process can still allocate.
type MemoryProbe func() uint64

// AvailableMemory returns the headroom under the runtime soft memory limit
// (GOMEMLIMIT). With no limit set it reports math.MaxUint64.
func AvailableMemory() uint64 {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit == math.MaxInt64 {
		return math.MaxUint64
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	used := ms.Sys - ms.HeapReleased
	if used >= uint64(limit) {
		return 0
	}
	return uint64(limit) - used
}

// LowMemory reports whether probe says fewer than need bytes are left.
func LowMemory(probe MemoryProbe, need uint64) bool {
	if probe == nil {
		probe = AvailableMemory
	}
	return probe() < need
}
