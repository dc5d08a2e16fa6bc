package engine

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseCapacity converts a human-readable cache capacity to a byte count.
// The multipliers are decimal despite the binary-looking unit names: "GiB"
// means 1000^3 and "MiB" means 1000^2. Upstream tooling has always read the
// value this way, so the quirk is kept for compatibility.
//
//	"2GiB"  -> 2_000_000_000
//	"500MiB"-> 500_000_000
//	"12345" -> 12345
//	""      -> 0 (cache disabled)
//
// Anything that does not reduce to a non-negative integer is
// ErrInvalidCapacity.
func ParseCapacity(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	var mult int64 = 1
	digits := s
	switch {
	case strings.Contains(s, "GiB"):
		mult = 1000 * 1000 * 1000
		digits = stripLetters(s)
	case strings.Contains(s, "MiB"):
		mult = 1000 * 1000
		digits = stripLetters(s)
	}

	n, err := strconv.ParseInt(strings.TrimSpace(digits), 10, 64)
	if err != nil || n < 0 {
		return 0, ErrInvalidCapacity(s)
	}
	return n * mult, nil
}

func stripLetters(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return -1
		}
		return r
	}, s)
}
