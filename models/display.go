package models

import "math"

// Display relates grid cells to canvas pixels for a square canvas of WidthPx pixels.
type Display struct {
	WidthPx       float64
	Grid          Grid
	MetersPerCell float64
}

// CellSize is the pixel width of one cell, or zero when no grid is loaded.
func (d Display) CellSize() float64 {
	if d.Grid.Width <= 0 {
		return 0
	}
	return d.WidthPx / float64(d.Grid.Width)
}

// PixelsPerMeter is zero when no map is loaded.
func (d Display) PixelsPerMeter() float64 {
	if d.Grid.Width <= 0 || d.MetersPerCell <= 0 {
		return 0
	}
	return d.WidthPx / (float64(d.Grid.Width) * d.MetersPerCell)
}

// RobotSize is the robot's displayed diameter in pixels. Without a metric scale the
// fallback size is used.
func (d Display) RobotSize(diameterMeters, fallbackPx float64) float64 {
	if ppm := d.PixelsPerMeter(); ppm > 0 {
		return diameterMeters * ppm
	}
	return fallbackPx
}

// PixelsToCell maps a canvas position (y up) to the cell under it.
func (d Display) PixelsToCell(u, v float64) CellIndex {
	size := d.CellSize()
	if size <= 0 {
		return CellIndex{}
	}
	return CellIndex{
		Row: int(math.Floor(v / size)),
		Col: int(math.Floor(u / size)),
	}
}

// CellToPixels returns the canvas position of a cell's centre.
func (d Display) CellToPixels(c CellIndex) (x, y float64) {
	size := d.CellSize()
	x = float64(c.Col)*size + size/2
	y = float64(c.Row)*size + size/2
	return
}

// Center is the middle of the canvas, where the robot is placed on load.
func (d Display) Center() Pose {
	return Pose{X: d.WidthPx / 2, Y: d.WidthPx / 2}
}
