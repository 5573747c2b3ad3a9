package models

import (
	"fmt"
	"io"
	"math"
)

// OccupiedThreshold is the probability at or above which a cell blocks the robot.
const OccupiedThreshold = 0.5

// OccupancyMap is the parsed form of a map file: one occupancy probability per cell, in
// linear index order, plus the metric scale of a cell.
type OccupancyMap struct {
	Cells         []float64  `json:"cells"`
	Width         int        `json:"width"`
	Height        int        `json:"height"`
	NumCells      int        `json:"num_cells"`
	Origin        [2]float64 `json:"origin"`
	MetersPerCell float64    `json:"meters_per_cell"`
}

// Grid returns the map's dimensions.
func (m *OccupancyMap) Grid() Grid {
	if m == nil {
		return Grid{}
	}
	return Grid{Width: m.Width, Height: m.Height}
}

// Loaded is false for a nil map or a map with zero cells.
func (m *OccupancyMap) Loaded() bool {
	return m != nil && len(m.Cells) > 0
}

// Probability returns the occupancy probability of a cell. Cells off the grid read as certain
// obstacles so that they can never be chosen as a goal.
func (m *OccupancyMap) Probability(c CellIndex) float64 {
	g := m.Grid()
	if !g.Contains(c) {
		return 1
	}
	idx := g.LinearIndex(c)
	if idx >= len(m.Cells) {
		return 1
	}
	return m.Cells[idx]
}

// IsOccupied reports whether the cell blocks the robot.
func (m *OccupancyMap) IsOccupied(c CellIndex) bool {
	return m.Probability(c) >= OccupiedThreshold
}

// Normalize rescales values to [0,1] by min-max normalization over the whole slice.
// A constant slice has no spread and normalizes to all zeros.
func Normalize(values []float64) []float64 {
	normalized := make([]float64, len(values))
	if len(values) == 0 {
		return normalized
	}

	minVal, maxVal := math.MaxFloat64, -math.MaxFloat64
	for _, v := range values {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}

	spread := maxVal - minVal
	if spread == 0 {
		return normalized
	}
	for i, v := range values {
		normalized[i] = (v - minVal) / spread
	}
	return normalized
}

// Field is a potential field received from the planner: the raw values, for display of
// hovered cells, and their normalized form, for colouring.
type Field struct {
	Raw        []float64
	Normalized []float64
}

// NewField copies raw and derives its normalized form.
func NewField(raw []float64) Field {
	cp := make([]float64, len(raw))
	copy(cp, raw)
	return Field{
		Raw:        cp,
		Normalized: Normalize(cp),
	}
}

// Empty reports whether no field has been received.
func (f Field) Empty() bool {
	return len(f.Raw) == 0
}

// HoverValue returns the raw field value at a cell, clamping the linear index into the
// field's bounds so that pointer positions outside the map still report the nearest value.
func (f Field) HoverValue(g Grid, c CellIndex) float64 {
	if f.Empty() {
		return 0
	}
	idx := g.LinearIndex(c)
	if idx > len(f.Raw)-1 {
		idx = len(f.Raw) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return f.Raw[idx]
}

// ShowMap prints the occupancy grid, for visual reference. Rows print top-down so the console
// matches the on-screen orientation.
func ShowMap(w io.Writer, m *OccupancyMap) {
	if !m.Loaded() {
		fmt.Fprintln(w, "(no map)")
		return
	}
	g := m.Grid()
	for _, row := range Rev(g.Height) {
		for col := 0; col < g.Width; col++ {
			if m.IsOccupied(CellIndex{Row: row, Col: col}) {
				fmt.Fprint(w, "# ")
			} else {
				fmt.Fprint(w, ". ")
			}
		}
		fmt.Fprintln(w)
	}
}

// ShowValues prints per-cell values, e.g. a normalized field, top-down.
func ShowValues(w io.Writer, g Grid, values []float64) {
	if len(values) != g.CellCount() {
		fmt.Fprintf(w, "(%d values for %d cells)\n", len(values), g.CellCount())
		return
	}
	for _, row := range Rev(g.Height) {
		fmt.Fprint(w, " ")
		for col := 0; col < g.Width; col++ {
			fmt.Fprintf(w, "%.2f ", values[g.LinearIndex(CellIndex{Row: row, Col: col})])
		}
		fmt.Fprintln(w)
	}
}
