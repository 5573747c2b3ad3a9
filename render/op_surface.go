package render

// PaintKind selects the canvas operation a PaintOp performs.
type PaintKind string

const (
	PaintFill  PaintKind = "fill"
	PaintClear PaintKind = "clear"
	// PaintReset erases the whole layer.
	PaintReset PaintKind = "reset"
)

// PaintOp is one drawing call for a browser canvas layer, in Cartesian coordinates.
type PaintOp struct {
	Layer string    `json:"layer"`
	Kind  PaintKind `json:"kind"`
	X     float64   `json:"x,omitempty"`
	Y     float64   `json:"y,omitempty"`
	W     float64   `json:"w,omitempty"`
	H     float64   `json:"h,omitempty"`
	Color string    `json:"color,omitempty"`
}

// OpSurface records paint calls as PaintOps until they are flushed.
// It is not safe for concurrent use; the owning canvas serializes access.
type OpSurface struct {
	layer string
	size  float64
	ops   []PaintOp
}

// NewOpSurface returns a recorder for the named layer of the given pixel size.
func NewOpSurface(layer string, size float64) *OpSurface {
	return &OpSurface{
		layer: layer,
		size:  size,
	}
}

func (s *OpSurface) Size() float64 {
	return s.size
}

func (s *OpSurface) FillRect(x, y, w, h float64, color string) {
	s.ops = append(s.ops, PaintOp{Layer: s.layer, Kind: PaintFill, X: x, Y: y, W: w, H: h, Color: color})
}

func (s *OpSurface) ClearRect(x, y, w, h float64) {
	s.ops = append(s.ops, PaintOp{Layer: s.layer, Kind: PaintClear, X: x, Y: y, W: w, H: h})
}

// Clear records a reset. Pending ops would be erased by it, so they are discarded.
func (s *OpSurface) Clear() {
	s.ops = append(s.ops[:0], PaintOp{Layer: s.layer, Kind: PaintReset})
}

// Pending is the number of recorded ops not yet flushed.
func (s *OpSurface) Pending() int {
	return len(s.ops)
}

// Flush returns the recorded ops in call order and starts a new batch.
func (s *OpSurface) Flush() (ops []PaintOp) {
	ops, s.ops = s.ops, nil
	return
}
