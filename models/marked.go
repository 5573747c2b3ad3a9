package models

// MarkPalette holds the fixed colours of the marked-cell overlay.
type MarkPalette struct {
	Clicked string
	Path    string
	Goal    string
	BadGoal string
}

// MarkedCells composes the marked overlay: the clicked cell, then the path, then the goal.
// The result is derived state, recomputed whenever any of its inputs change.
func MarkedCells(
	clicked *CellIndex,
	path Path,
	goal *CellIndex,
	goalValid bool,
	palette MarkPalette,
) (cells []CellIndex, colors []string) {
	if clicked != nil {
		cells = append(cells, *clicked)
		colors = append(colors, palette.Clicked)
	}
	for _, c := range path {
		cells = append(cells, c)
		colors = append(colors, palette.Path)
	}
	if goal != nil {
		cells = append(cells, *goal)
		if goalValid {
			colors = append(colors, palette.Goal)
		} else {
			colors = append(colors, palette.BadGoal)
		}
	}
	return
}
