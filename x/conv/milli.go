package conv

// Milli writes n (a value in thousandths) into buf as a decimal with exactly
// three fraction digits, e.g. 3312 -> "3.312", -50 -> "-0.050".
// buf should be length >= 22. No allocations; no fmt/strconv dependency.
// Used to render fixed-point mV and µA readings as V / mA CSV fields.
func Milli(buf []byte, n int64) []byte {
	if len(buf) < 6 {
		return buf[:0]
	}
	neg := n < 0
	var u uint64
	if neg {
		u = uint64(-n)
	} else {
		u = uint64(n)
	}
	whole := u / 1000
	frac := u % 1000

	i := len(buf)
	for j := 0; j < 3; j++ {
		i--
		buf[i] = byte('0' + frac%10)
		frac /= 10
	}
	i--
	buf[i] = '.'
	if whole == 0 {
		i--
		buf[i] = '0'
	} else {
		for whole > 0 && i > 0 {
			i--
			buf[i] = byte('0' + whole%10)
			whole /= 10
		}
	}
	if neg && i > 0 {
		i--
		buf[i] = '-'
	}
	return buf[i:]
}
