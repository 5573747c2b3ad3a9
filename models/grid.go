package models

import (
	"encoding/json"
	"fmt"
)

// Grid is the logical extent of a loaded map. Its dimensions are fixed at map-load time.
type Grid struct {
	Width, Height int
}

// CellIndex addresses one grid square. Row 0 is the bottom of the map and grows upward;
// column 0 is the left edge. Over the wire a CellIndex is the two element array [row, col].
type CellIndex struct {
	Row, Col int
}

// Path is an ordered sequence of cells from start to goal, as produced by the planner.
type Path []CellIndex

// Pose is the robot's displayed position in canvas pixels (Cartesian, y up) and its heading in radians.
type Pose struct {
	X, Y, Theta float64
}

// CellCount is the number of cells in the grid.
func (g Grid) CellCount() int {
	return g.Width * g.Height
}

// Contains reports whether the cell lies on the grid.
func (g Grid) Contains(c CellIndex) bool {
	return c.Row >= 0 && c.Row < g.Height && c.Col >= 0 && c.Col < g.Width
}

// LinearIndex is the position of a cell in the flat per-cell arrays exchanged with the map
// parser and the planning backend. Flat arrays are stored a row at a time from the bottom row up.
func (g Grid) LinearIndex(c CellIndex) int {
	return c.Col + c.Row*g.Width
}

// CellAt is the inverse of LinearIndex.
func (g Grid) CellAt(idx int) CellIndex {
	return CellIndex{Row: idx / g.Width, Col: idx % g.Width}
}

// Visit calls fn for every cell of the grid in linear index order.
func (g Grid) Visit(fn func(c CellIndex, idx int)) {
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			c := CellIndex{Row: row, Col: col}
			fn(c, g.LinearIndex(c))
		}
	}
}

func (c CellIndex) String() string {
	return fmt.Sprintf("%d,%d", c.Row, c.Col)
}

// MarshalJSON writes the cell as [row, col].
func (c CellIndex) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Row, c.Col})
}

// UnmarshalJSON reads a [row, col] pair.
func (c *CellIndex) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("cell index must have 2 elements, got %d", len(pair))
	}
	c.Row, c.Col = pair[0], pair[1]
	return nil
}

// Rev returns reversed indices of a slice, e.g. for ranging over rows top-down.
func Rev(length int) []int {
	indices := make([]int, length)
	for i := 0; i < length; i++ {
		indices[i] = length - i - 1
	}
	return indices
}
