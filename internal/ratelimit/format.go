package ratelimit

import (
	"fmt"
	"time"
)

// FormatWaitTime renders d as a coarse, rounded-up wait: "N sec", "N min" or "N h".
func FormatWaitTime(d time.Duration) string {
	seconds := ceilDiv(int64(d/time.Millisecond), 1000)
	if seconds < 60 {
		return fmt.Sprintf("%d sec", seconds)
	}
	minutes := ceilDiv(seconds, 60)
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%d h", ceilDiv(minutes, 60))
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
