//go:build !tinygo

package strconvx

import "strconv"

// The goal is signature parity with strconv, with one deviation shared with
// the MCU build: base 0 auto-detects only the 0b/0o/0x prefixes. A bare
// leading zero stays decimal, and digit underscores are not accepted.

func Itoa(i int) string                  { return strconv.Itoa(i) }
func Atoi(s string) (int, error)         { return strconv.Atoi(s) }
func FormatInt(i int64, base int) string { return strconv.FormatInt(i, base) }
func FormatUint(u uint64, base int) string {
	return strconv.FormatUint(u, base)
}

func ParseInt(s string, base, bitSize int) (int64, error) {
	s, base = normalizeBase(s, base)
	return strconv.ParseInt(s, base, bitSize)
}

func ParseUint(s string, base, bitSize int) (uint64, error) {
	s, base = normalizeBase(s, base)
	return strconv.ParseUint(s, base, bitSize)
}

// normalizeBase resolves base 0 the same way the MCU parser's detectBase
// does, then hands strconv an explicit base so its own octal-on-leading-zero
// and underscore rules never apply.
func normalizeBase(s string, base int) (string, int) {
	if base != 0 {
		return s, base
	}
	sign := ""
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		sign, s = s[:1], s[1:]
	}
	if len(s) >= 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			return sign + s[2:], 16
		case 'o', 'O':
			return sign + s[2:], 8
		case 'b', 'B':
			return sign + s[2:], 2
		}
	}
	return sign + s, 10
}

func FormatFloat(f float64, fmt byte, prec, bitSize int) string {
	return strconv.FormatFloat(f, fmt, prec, bitSize)
}
func ParseFloat(s string, bitSize int) (float64, error) { return strconv.ParseFloat(s, bitSize) }
