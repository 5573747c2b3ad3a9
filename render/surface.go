// Package render implements retained, per-layer grid rendering. A GridCanvas remembers what
// every cell currently shows and turns each update into the minimal set of paint operations
// on a Surface.
package render

import "log"

// Logf is the package diagnostic logger. Tests may replace it to capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// Surface is a square drawing target in Cartesian coordinates: (0,0) is the bottom-left corner
// and y grows upward. Surfaces that draw in screen coordinates flip y themselves.
type Surface interface {
	// Size is the width (and height) of the surface in pixels.
	Size() float64
	FillRect(x, y, w, h float64, color string)
	ClearRect(x, y, w, h float64)
	// Clear erases the whole surface.
	Clear()
}

// Tee fans paint calls out to several surfaces. The first surface determines the size.
func Tee(surfaces ...Surface) Surface {
	return tee(surfaces)
}

type tee []Surface

func (t tee) Size() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[0].Size()
}

func (t tee) FillRect(x, y, w, h float64, color string) {
	for _, s := range t {
		s.FillRect(x, y, w, h, color)
	}
}

func (t tee) ClearRect(x, y, w, h float64) {
	for _, s := range t {
		s.ClearRect(x, y, w, h)
	}
}

func (t tee) Clear() {
	for _, s := range t {
		s.Clear()
	}
}
