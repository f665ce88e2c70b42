package timex

import "time"

var boot = time.Now()

// Millis returns milliseconds since process start truncated to 32 bits,
// so it wraps roughly every 49.7 days like a free-running MCU counter.
func Millis() uint32 { return uint32(time.Since(boot).Milliseconds()) }

// SinceMidnight returns the seconds elapsed since local midnight of t.
func SinceMidnight(t time.Time) int32 {
	h, m, s := t.Clock()
	return int32(h*3600 + m*60 + s)
}

// Ms converts a millisecond count from configuration into a Duration.
// Non-positive values fall back to def.
func Ms(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
