package models

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrBadHeader is returned when a .map file's first line is not
// "origin_x origin_y width height meters_per_cell".
var ErrBadHeader = errors.New("malformed map header")

// MaxMapCells bounds width*height of any map, so a header cannot request an unbounded grid.
const MaxMapCells = 4096 * 4096

// ErrCellCount is returned when a map carries a different number of cells than its dimensions imply.
var ErrCellCount = errors.New("cell count does not match map dimensions")

// ParseMap reads the text map format: a header line followed by width*height whitespace
// separated cell values in linear index order. Values are min-max normalized into
// occupancy probabilities.
func ParseMap(r io.Reader) (m *OccupancyMap, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err = scanner.Err(); err == nil {
			err = ErrBadHeader
		}
		return
	}

	m = &OccupancyMap{}
	if err = parseHeader(scanner.Text(), m); err != nil {
		return nil, err
	}

	want := m.Width * m.Height
	var raw []float64
	for scanner.Scan() {
		for _, field := range strings.Fields(scanner.Text()) {
			if len(raw) == want {
				return nil, fmt.Errorf("%w: more than %dx%d", ErrCellCount, m.Width, m.Height)
			}
			var v float64
			if v, err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("cell %d: %w", len(raw), err)
			}
			raw = append(raw, v)
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}

	if len(raw) != want {
		return nil, fmt.Errorf("%w: got %d, want %dx%d", ErrCellCount, len(raw), m.Width, m.Height)
	}

	m.Cells = Normalize(raw)
	m.NumCells = len(m.Cells)
	return
}

func parseHeader(line string, m *OccupancyMap) error {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return fmt.Errorf("%w: %q", ErrBadHeader, line)
	}

	var err error
	var vals [5]float64
	for i, f := range fields {
		if vals[i], err = strconv.ParseFloat(f, 64); err != nil {
			return fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
	}

	for _, dim := range vals[2:4] {
		if dim != math.Trunc(dim) || dim < 0 || dim > MaxMapCells {
			return fmt.Errorf("%w: %q", ErrBadHeader, line)
		}
	}
	m.Origin = [2]float64{vals[0], vals[1]}
	m.Width, m.Height = int(vals[2]), int(vals[3])
	m.MetersPerCell = vals[4]
	if !(m.MetersPerCell > 0) || math.IsInf(m.MetersPerCell, 0) {
		return fmt.Errorf("%w: %q", ErrBadHeader, line)
	}
	if err = checkDims(m.Width, m.Height); err != nil {
		return fmt.Errorf("%w: %q", err, line)
	}
	return nil
}

// checkDims rejects negative dimensions and grids larger than MaxMapCells.
func checkDims(width, height int) error {
	if width < 0 || height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrBadHeader, width, height)
	}
	if width > 0 && height > MaxMapCells/width {
		return fmt.Errorf("%w: %dx%d exceeds %d cells", ErrBadHeader, width, height, MaxMapCells)
	}
	return nil
}

// ParseMapJSON reads a map already in its structured form.
func ParseMapJSON(r io.Reader) (*OccupancyMap, error) {
	m := &OccupancyMap{}
	if err := json.NewDecoder(r).Decode(m); err != nil {
		return nil, fmt.Errorf("decode map: %w", err)
	}
	if err := checkDims(m.Width, m.Height); err != nil {
		return nil, err
	}
	if len(m.Cells) > 0 && (m.Width == 0 || m.Height == 0) {
		return nil, fmt.Errorf("%w: %d cells on a %dx%d grid", ErrBadHeader, len(m.Cells), m.Width, m.Height)
	}
	if len(m.Cells) != m.Width*m.Height {
		return nil, fmt.Errorf("%w: got %d, want %dx%d", ErrCellCount, len(m.Cells), m.Width, m.Height)
	}
	m.NumCells = len(m.Cells)
	return m, nil
}

// DecodeMap selects a parser by the file name's extension; anything but .json is read as
// the text format.
func DecodeMap(name string, r io.Reader) (*OccupancyMap, error) {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return ParseMapJSON(r)
	}
	return ParseMap(r)
}

// LoadMapFile opens and decodes a map from disk.
func LoadMapFile(path string) (m *OccupancyMap, err error) {
	var f *os.File
	if f, err = os.Open(path); err != nil {
		return
	}
	defer f.Close()

	if m, err = DecodeMap(path, f); err != nil {
		err = fmt.Errorf("%s: %w", path, err)
	}
	return
}
