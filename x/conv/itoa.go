package conv

// Itoa writes base-10 representation of n into buf and returns the used slice.
// buf should be length >= 20 for int64. Negative numbers supported.
// No allocations; no fmt/strconv dependency.
func Itoa(buf []byte, n int64) []byte {
	if len(buf) == 0 {
		return buf[:0]
	}
	i := len(buf)
	neg := n < 0
	u := uint64(n)
	if neg {
		u = -u
	}
	if u == 0 {
		i--
		buf[i] = '0'
	}
	for u > 0 && i > 0 {
		i--
		buf[i] = byte('0' + (u % 10))
		u /= 10
	}
	if neg && i > 0 {
		i--
		buf[i] = '-'
	}
	return buf[i:]
}

// AppendInt appends the decimal form of n to dst.
func AppendInt(dst []byte, n int64) []byte {
	var tmp [20]byte
	return append(dst, Itoa(tmp[:], n)...)
}

// AppendFixed appends value as a fixed-point decimal with prec implied
// fractional digits: 255 with prec 2 is "2.55", 7 with prec 3 is "0.007".
// The fraction is zero-padded to prec digits. prec <= 0 appends the integer.
func AppendFixed(dst []byte, value int64, prec int) []byte {
	if prec <= 0 {
		return AppendInt(dst, value)
	}
	u := uint64(value)
	if value < 0 {
		dst = append(dst, '-')
		u = -u
	}
	scale := uint64(1)
	for i := 0; i < prec; i++ {
		scale *= 10
	}
	var tmp [20]byte
	i := len(tmp)
	w := uint64(u / scale)
	if w == 0 {
		i--
		tmp[i] = '0'
	}
	for ; w > 0; w /= 10 {
		i--
		tmp[i] = byte('0' + w%10)
	}
	dst = append(dst, tmp[i:]...)
	dst = append(dst, '.')
	f := u % scale
	for j := prec - 1; j >= 0; j-- {
		tmp[j] = byte('0' + f%10)
		f /= 10
	}
	return append(dst, tmp[:prec]...)
}
