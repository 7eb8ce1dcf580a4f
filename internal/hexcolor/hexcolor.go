// Package hexcolor converts between hex color strings and normalized
// RGB channel vectors.
package hexcolor

import (
	"fmt"
	"strings"
)

// Channels is the number of color channels in a parsed vector.
const Channels = 3

// RGB holds three channel values, each in [0,1].
type RGB [Channels]float64

// Parse converts a 3- or 6-digit hex color string into normalized RGB
// channels. The leading "#" is optional and parsing is case-insensitive;
// 3-digit shorthand expands by digit duplication ("abc" -> "aabbcc").
// Invalid input reports ok == false rather than an error.
func Parse(s string) (RGB, bool) {
	var rgb RGB

	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		var b strings.Builder
		b.Grow(6)
		for i := 0; i < 3; i++ {
			b.WriteByte(s[i])
			b.WriteByte(s[i])
		}
		s = b.String()
	}
	if len(s) != 6 {
		return rgb, false
	}

	for i := 0; i < Channels; i++ {
		hi, ok1 := hexDigit(s[2*i])
		lo, ok2 := hexDigit(s[2*i+1])
		if !ok1 || !ok2 {
			return RGB{}, false
		}
		rgb[i] = float64(hi*16+lo) / 255.0
	}
	return rgb, true
}

// Format renders a normalized RGB vector as a "#rrggbb" string,
// quantizing each channel to the nearest byte. Channels outside [0,1]
// are clamped.
func Format(rgb RGB) string {
	var bytes [Channels]int
	for i, c := range rgb {
		if c < 0 {
			c = 0
		} else if c > 1 {
			c = 1
		}
		bytes[i] = int(c*255.0 + 0.5)
	}
	return fmt.Sprintf("#%02x%02x%02x", bytes[0], bytes[1], bytes[2])
}

// Slice returns the channels as a []float64 for use as a model input.
func (c RGB) Slice() []float64 {
	return []float64{c[0], c[1], c[2]}
}

func hexDigit(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, true
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10, true
	}
	return 0, false
}
