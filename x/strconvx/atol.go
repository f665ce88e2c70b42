// Package strconvx holds the lenient number parsing used on the wire.
package strconvx

import "sakinode-go/x/mathx"

// Atol parses the leading base-10 integer of s the way C atol does:
// leading spaces are skipped, one optional sign is accepted, and parsing
// stops at the first non-digit. Text without digits yields 0. The result
// saturates at the int32 limits instead of wrapping.
func Atol(s string) int32 {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	var v int64
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		if v < 1<<32 {
			v = v*10 + int64(s[i]-'0')
		}
	}
	if neg {
		v = -v
	}
	return mathx.SatInt32(v)
}

// AtolOK is Atol but also reports whether any digit was consumed.
func AtolOK(s string) (int32, bool) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if i >= len(s) || s[i] < '0' || s[i] > '9' {
		return 0, false
	}
	return Atol(s), true
}
