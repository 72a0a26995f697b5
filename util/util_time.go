package util

import (
	"time"
)

// TimeSinceMs Returns milliseconds elapsed since start as float, for latency metrics.
func TimeSinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
