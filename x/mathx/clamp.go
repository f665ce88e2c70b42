package mathx

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Between reports lo <= v && v <= hi (order-insensitive).
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// Pow10 returns 10^n for small n. n <= 0 yields 1.
func Pow10[T constraints.Integer](n int) T {
	p := T(1)
	for ; n > 0; n-- {
		p *= 10
	}
	return p
}

// SatInt32 narrows v to int32, saturating at the type limits.
func SatInt32(v int64) int32 {
	return int32(Clamp(v, math.MinInt32, math.MaxInt32))
}
