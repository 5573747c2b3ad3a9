// Package colors maps scalar cell values onto display colours.
package colors

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
)

// HexToRGB splits a "#rrggbb" colour string into its channel bytes.
// Malformed channels decode as zero; callers pass configured colours, so this never fails loudly.
func HexToRGB(hex string) (rgb [3]int) {
	for i := range rgb {
		rgb[i] = channel(hex, 1+2*i)
	}
	return
}

func channel(hex string, start int) int {
	if len(hex) < start+2 {
		return 0
	}
	v, err := strconv.ParseUint(hex[start:start+2], 16, 8)
	if err != nil {
		return 0
	}
	return int(v)
}

// ColorFor linearly interpolates between low and high by prob, rounding each channel up.
// prob is not clamped: values outside [0,1] extrapolate, and the channels are only bounded
// when formatted so the result is always a valid "#rrggbb" string.
func ColorFor(prob float64, low, high string) string {
	lo, hi := HexToRGB(low), HexToRGB(high)

	var out [3]int
	for i := range out {
		out[i] = int(math.Ceil(float64(hi[i])*prob + float64(lo[i])*(1-prob)))
	}
	return fmt.Sprintf("#%02x%02x%02x", clampByte(out[0]), clampByte(out[1]), clampByte(out[2]))
}

// A NaN probability converts to an arbitrary int, which is bounded here too.
func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// ParseRGBA decodes "#rrggbb" or "#rrggbbaa" into a colour usable by image/draw.
// A missing alpha channel is opaque.
func ParseRGBA(hex string) color.NRGBA {
	rgb := HexToRGB(hex)
	alpha := uint8(0xff)
	if len(hex) >= 9 {
		alpha = uint8(channel(hex, 7))
	}
	return color.NRGBA{R: uint8(rgb[0]), G: uint8(rgb[1]), B: uint8(rgb[2]), A: alpha}
}
