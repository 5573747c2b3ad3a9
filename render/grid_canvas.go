package render

import (
	"github.com/rob102-staff/nav-app/colors"
	"github.com/rob102-staff/nav-app/models"
)

// Blank is the state of a cell with nothing painted on it.
const Blank = "blank"

// OpaqueAlpha is the alpha suffix for fully opaque gradient fills.
const OpaqueAlpha = "ff"

// CellPaint is what a single cell currently shows.
type CellPaint struct {
	Cell  models.CellIndex
	Color string
	Scale float64
}

type cellState struct {
	color string
	scale float64
}

// GridCanvas is one rendering layer: a width x height array of cell states bound to a surface.
// Every mutation of the surface goes through the canvas so that the state array and the pixels
// never disagree.
type GridCanvas struct {
	name     string
	surface  Surface
	grid     models.Grid
	cellSize float64
	states   []cellState
}

// NewGridCanvas returns an unconfigured canvas drawing onto surface.
func NewGridCanvas(name string, surface Surface) *GridCanvas {
	return &GridCanvas{
		name:    name,
		surface: surface,
	}
}

// Name identifies the layer in logs and paint ops.
func (gc *GridCanvas) Name() string {
	return gc.name
}

// Grid returns the configured dimensions.
func (gc *GridCanvas) Grid() models.Grid {
	return gc.grid
}

// CellSize is the pixel width of a cell on this canvas.
func (gc *GridCanvas) CellSize() float64 {
	return gc.cellSize
}

// Configure sets the canvas dimensions. When they change every cell resets to blank and the
// surface is cleared; when they are unchanged nothing is redrawn. Reports whether a reset happened.
func (gc *GridCanvas) Configure(width, height int) bool {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	if gc.states != nil && gc.grid.Width == width && gc.grid.Height == height {
		return false
	}

	gc.grid = models.Grid{Width: width, Height: height}
	gc.cellSize = 0
	if width > 0 {
		gc.cellSize = gc.surface.Size() / float64(width)
	}
	gc.states = make([]cellState, gc.grid.CellCount())
	gc.blankAll()
	gc.surface.Clear()
	return true
}

func (gc *GridCanvas) blankAll() {
	for i := range gc.states {
		gc.states[i] = cellState{color: Blank}
	}
}

// State returns the colour a cell currently shows, or Blank. Cells off the grid read as Blank.
func (gc *GridCanvas) State(c models.CellIndex) string {
	if !gc.grid.Contains(c) {
		return Blank
	}
	return gc.states[gc.grid.LinearIndex(c)].color
}

// RenderGradient colours every cell from values in linear index order, interpolating between
// low and high and appending alpha. Cells whose colour is unchanged are not repainted.
// A values slice of the wrong length is logged and nothing is drawn.
func (gc *GridCanvas) RenderGradient(values []float64, low, high, alpha string) {
	if len(values) != gc.grid.CellCount() {
		Logf("%s: wrong number of cells: %d != %d", gc.name, len(values), gc.grid.CellCount())
		return
	}

	gc.grid.Visit(func(c models.CellIndex, idx int) {
		color := colors.ColorFor(values[idx], low, high) + alpha
		if gc.states[idx].color == color && gc.states[idx].scale == 1 {
			return
		}
		gc.ClearCell(c)
		gc.DrawCell(c, color, 1)
	})
}

// RenderIndexed paints each cell in indices with the matching colour, shrunk by scale.
// Only cells whose current colour differs are touched: the old paint is cleared first.
// Mismatched slices are logged and nothing is drawn.
func (gc *GridCanvas) RenderIndexed(indices []models.CellIndex, colors []string, scale float64) {
	if len(indices) != len(colors) {
		Logf("%s: indices length does not match colours length: %d != %d", gc.name, len(indices), len(colors))
		return
	}

	for i, c := range indices {
		if !gc.grid.Contains(c) {
			Logf("%s: cell %v is off the %dx%d grid", gc.name, c, gc.grid.Width, gc.grid.Height)
			continue
		}
		if gc.State(c) == colors[i] {
			continue
		}
		gc.ClearCell(c)
		gc.DrawCell(c, colors[i], scale)
	}
}

// Sync makes the layer show exactly the given cells: painted cells absent from indices are
// cleared, then the rest is rendered differentially. When a cell is listed more than once the
// last colour wins and the earlier ones are never painted.
func (gc *GridCanvas) Sync(indices []models.CellIndex, colors []string, scale float64) {
	if len(indices) != len(colors) {
		Logf("%s: indices length does not match colours length: %d != %d", gc.name, len(indices), len(colors))
		return
	}

	last := make(map[int]int, len(indices))
	for i, c := range indices {
		if gc.grid.Contains(c) {
			last[gc.grid.LinearIndex(c)] = i
		}
	}
	gc.grid.Visit(func(c models.CellIndex, idx int) {
		if _, ok := last[idx]; !ok {
			gc.ClearCell(c)
		}
	})

	var cells []models.CellIndex
	var cellColors []string
	for i, c := range indices {
		if !gc.grid.Contains(c) {
			cells = append(cells, c)
			cellColors = append(cellColors, colors[i])
			continue
		}
		if last[gc.grid.LinearIndex(c)] == i {
			cells = append(cells, c)
			cellColors = append(cellColors, colors[i])
		}
	}
	gc.RenderIndexed(cells, cellColors, scale)
}

// DrawCell paints a square of cellSize*scale centred in the cell and records its colour.
// Cell (row, col) sits at x = col*cellSize, y = row*cellSize.
func (gc *GridCanvas) DrawCell(c models.CellIndex, color string, scale float64) {
	if !gc.grid.Contains(c) {
		return
	}
	size := gc.cellSize
	shift := size * (1 - scale) / 2
	x := float64(c.Col)*size + shift
	y := float64(c.Row)*size + shift

	gc.surface.FillRect(x, y, size*scale, size*scale, color)
	gc.states[gc.grid.LinearIndex(c)] = cellState{color: color, scale: scale}
}

// ClearCell erases a cell's full rectangle and marks it blank. Blank cells are left alone.
func (gc *GridCanvas) ClearCell(c models.CellIndex) {
	if gc.State(c) == Blank {
		return
	}
	size := gc.cellSize
	gc.surface.ClearRect(float64(c.Col)*size, float64(c.Row)*size, size, size)
	gc.states[gc.grid.LinearIndex(c)] = cellState{color: Blank}
}

// Clear erases the surface and resets every cell to blank.
func (gc *GridCanvas) Clear() {
	gc.surface.Clear()
	gc.blankAll()
}

// Painted lists every non-blank cell in linear index order, e.g. to replay the layer onto a
// fresh surface.
func (gc *GridCanvas) Painted() (cells []CellPaint) {
	gc.grid.Visit(func(c models.CellIndex, idx int) {
		if st := gc.states[idx]; st.color != Blank {
			cells = append(cells, CellPaint{Cell: c, Color: st.color, Scale: st.scale})
		}
	})
	return
}

// Replay paints the canvas's current cells onto another surface, which is cleared first.
// The canvas's own state is unchanged.
func (gc *GridCanvas) Replay(target Surface) {
	target.Clear()
	size := gc.cellSize
	for _, p := range gc.Painted() {
		shift := size * (1 - p.Scale) / 2
		target.FillRect(
			float64(p.Cell.Col)*size+shift,
			float64(p.Cell.Row)*size+shift,
			size*p.Scale, size*p.Scale, p.Color)
	}
}
