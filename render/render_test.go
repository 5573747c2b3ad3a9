package render

import (
	"bytes"
	"fmt"
	"image/color"
	"testing"

	"github.com/rob102-staff/nav-app/models"
	. "github.com/smartystreets/goconvey/convey"
)

func captureLogs() (lines *[]string, restore func()) {
	var captured []string
	prev := Logf
	Logf = func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	}
	return &captured, func() { Logf = prev }
}

func newTestCanvas(width, height int) (*GridCanvas, *OpSurface) {
	surface := NewOpSurface("test", 100)
	gc := NewGridCanvas("test", surface)
	gc.Configure(width, height)
	surface.Flush()
	return gc, surface
}

func TestGridCanvas(t *testing.T) {
	Convey("Grid canvas tests", t, func() {
		Convey("Configure resets only when the dimensions change", func() {
			surface := NewOpSurface("map", 100)
			gc := NewGridCanvas("map", surface)

			So(gc.Configure(10, 5), ShouldBeTrue)
			So(gc.CellSize(), ShouldEqual, 10)
			So(surface.Flush(), ShouldResemble, []PaintOp{{Layer: "map", Kind: PaintReset}})

			gc.DrawCell(models.CellIndex{Row: 1, Col: 1}, "#123456", 1)
			surface.Flush()

			So(gc.Configure(10, 5), ShouldBeFalse)
			So(surface.Pending(), ShouldEqual, 0)
			So(gc.State(models.CellIndex{Row: 1, Col: 1}), ShouldEqual, "#123456")

			So(gc.Configure(4, 4), ShouldBeTrue)
			So(gc.CellSize(), ShouldEqual, 25)
			So(gc.State(models.CellIndex{Row: 1, Col: 1}), ShouldEqual, Blank)
		})

		Convey("Rendering the same indexed cells twice paints nothing the second time", func() {
			gc, surface := newTestCanvas(10, 10)
			cells := []models.CellIndex{{Row: 0, Col: 0}, {Row: 3, Col: 4}}
			colours := []string{"#ff0000", "#00ff00"}

			gc.RenderIndexed(cells, colours, 1)
			So(surface.Pending(), ShouldEqual, 2)
			surface.Flush()

			gc.RenderIndexed(cells, colours, 1)
			So(surface.Pending(), ShouldEqual, 0)
			So(gc.State(cells[1]), ShouldEqual, "#00ff00")
		})

		Convey("A changed colour clears the cell before repainting it", func() {
			gc, surface := newTestCanvas(10, 10)
			c := models.CellIndex{Row: 2, Col: 3}
			gc.RenderIndexed([]models.CellIndex{c}, []string{"#ff0000"}, 1)
			surface.Flush()

			gc.RenderIndexed([]models.CellIndex{c}, []string{"#0000ff"}, 1)
			ops := surface.Flush()
			So(ops, ShouldHaveLength, 2)
			So(ops[0], ShouldResemble, PaintOp{Layer: "test", Kind: PaintClear, X: 30, Y: 20, W: 10, H: 10})
			So(ops[1].Kind, ShouldEqual, PaintFill)
			So(ops[1].Color, ShouldEqual, "#0000ff")
		})

		Convey("Clear followed by the same render restores every cell", func() {
			gc, surface := newTestCanvas(3, 3)
			cells := []models.CellIndex{{Row: 0, Col: 2}, {Row: 2, Col: 0}}
			colours := []string{"#aaaaaa", "#bbbbbb"}
			gc.RenderIndexed(cells, colours, 1)
			before := gc.Painted()

			gc.Clear()
			So(gc.Painted(), ShouldBeEmpty)
			gc.RenderIndexed(cells, colours, 1)
			So(gc.Painted(), ShouldResemble, before)
			So(surface.Flush()[0].Kind, ShouldEqual, PaintReset)
		})

		Convey("Small cells are inset by the shrink factor", func() {
			gc, surface := newTestCanvas(10, 10)
			gc.DrawCell(models.CellIndex{Row: 1, Col: 2}, "#989c97", 0.8)
			ops := surface.Flush()
			So(ops, ShouldHaveLength, 1)
			So(ops[0].X, ShouldAlmostEqual, 21, 1e-9)
			So(ops[0].Y, ShouldAlmostEqual, 11, 1e-9)
			So(ops[0].W, ShouldAlmostEqual, 8, 1e-9)
			So(ops[0].H, ShouldAlmostEqual, 8, 1e-9)
		})

		Convey("Clearing a blank cell does nothing", func() {
			gc, surface := newTestCanvas(2, 2)
			gc.ClearCell(models.CellIndex{Row: 0, Col: 0})
			So(surface.Pending(), ShouldEqual, 0)
		})

		Convey("Mismatched inputs are logged and nothing is drawn", func() {
			logs, restore := captureLogs()
			defer restore()
			gc, surface := newTestCanvas(2, 2)

			gc.RenderGradient([]float64{0, 1, 0.5}, "#ffffff", "#000000", OpaqueAlpha)
			gc.RenderIndexed([]models.CellIndex{{Row: 0, Col: 0}}, nil, 1)
			gc.Sync(nil, []string{"#ffffff"}, 1)

			So(surface.Pending(), ShouldEqual, 0)
			So(*logs, ShouldHaveLength, 3)
			So((*logs)[0], ShouldContainSubstring, "wrong number of cells")
		})

		Convey("Off-grid cells are skipped", func() {
			logs, restore := captureLogs()
			defer restore()
			gc, surface := newTestCanvas(2, 2)
			gc.RenderIndexed([]models.CellIndex{{Row: 5, Col: 0}, {Row: 1, Col: 1}}, []string{"#111111", "#222222"}, 1)
			So(surface.Pending(), ShouldEqual, 1)
			So(*logs, ShouldHaveLength, 1)
		})

		Convey("Gradient rendering colours every cell and skips unchanged ones", func() {
			gc, surface := newTestCanvas(2, 1)
			gc.RenderGradient([]float64{0, 1}, "#ffffff", "#00274c", "99")
			So(gc.State(models.CellIndex{Row: 0, Col: 0}), ShouldEqual, "#ffffff99")
			So(gc.State(models.CellIndex{Row: 0, Col: 1}), ShouldEqual, "#00274c99")
			So(surface.Flush(), ShouldHaveLength, 2)

			gc.RenderGradient([]float64{0, 0}, "#ffffff", "#00274c", "99")
			ops := surface.Flush()
			So(ops, ShouldHaveLength, 2)
			So(ops[0].Kind, ShouldEqual, PaintClear)
			So(ops[0].X, ShouldEqual, 50)
		})

		Convey("Sync clears cells that are no longer listed", func() {
			gc, surface := newTestCanvas(4, 4)
			a, b := models.CellIndex{Row: 0, Col: 0}, models.CellIndex{Row: 3, Col: 3}
			gc.Sync([]models.CellIndex{a}, []string{"#ffcb05"}, 1)
			surface.Flush()

			gc.Sync([]models.CellIndex{b}, []string{"#ffcb05"}, 1)
			So(gc.State(a), ShouldEqual, Blank)
			So(gc.State(b), ShouldEqual, "#ffcb05")
			ops := surface.Flush()
			So(ops, ShouldHaveLength, 2)
			So(ops[0].Kind, ShouldEqual, PaintClear)
			So(ops[1].Kind, ShouldEqual, PaintFill)
		})

		Convey("Sync paints only the last colour of a repeated cell", func() {
			gc, surface := newTestCanvas(4, 4)
			c := models.CellIndex{Row: 1, Col: 1}
			gc.Sync([]models.CellIndex{c, c, c}, []string{"#ffcb05", "#00b2a9", "#00ff00"}, 0.8)
			ops := surface.Flush()
			So(ops, ShouldHaveLength, 1)
			So(ops[0].Color, ShouldEqual, "#00ff00")

			gc.Sync([]models.CellIndex{c, c, c}, []string{"#ffcb05", "#00b2a9", "#00ff00"}, 0.8)
			So(surface.Pending(), ShouldEqual, 0)
		})

		Convey("Replay copies painted cells to another surface", func() {
			gc, _ := newTestCanvas(2, 2)
			gc.DrawCell(models.CellIndex{Row: 1, Col: 0}, "#00b2a9", 0.5)
			target := NewOpSurface("copy", 100)
			gc.Replay(target)
			ops := target.Flush()
			So(ops, ShouldHaveLength, 2)
			So(ops[0].Kind, ShouldEqual, PaintReset)
			So(ops[1], ShouldResemble, PaintOp{Layer: "copy", Kind: PaintFill, X: 12.5, Y: 62.5, W: 25, H: 25, Color: "#00b2a9"})
		})
	})
}

func TestSurfaces(t *testing.T) {
	Convey("Surface tests", t, func() {
		Convey("OpSurface discards pending ops on reset", func() {
			s := NewOpSurface("field", 10)
			s.FillRect(0, 0, 1, 1, "#000000")
			s.Clear()
			So(s.Flush(), ShouldResemble, []PaintOp{{Layer: "field", Kind: PaintReset}})
			So(s.Flush(), ShouldBeEmpty)
		})

		Convey("Tee fans out to every surface", func() {
			a, b := NewOpSurface("a", 20), NewOpSurface("b", 40)
			gc := NewGridCanvas("t", Tee(a, b))
			gc.Configure(2, 2)
			gc.DrawCell(models.CellIndex{Row: 0, Col: 0}, "#ffffff", 1)
			So(gc.CellSize(), ShouldEqual, 10)
			So(a.Pending(), ShouldEqual, 2)
			So(b.Pending(), ShouldEqual, 2)
		})

		Convey("RasterSurface flips y into image rows", func() {
			s := NewRasterSurface(10)
			s.FillRect(0, 0, 5, 5, "#ff0000")
			So(s.At(0, 0), ShouldResemble, color.NRGBA{R: 0xff, A: 0xff})
			So(s.At(9, 9), ShouldResemble, color.NRGBA{})
			So(s.img.NRGBAAt(0, 9), ShouldResemble, color.NRGBA{R: 0xff, A: 0xff})

			s.ClearRect(0, 0, 5, 5)
			So(s.At(0, 0), ShouldResemble, color.NRGBA{})
		})

		Convey("Composite stacks layers and markers", func() {
			bottom, top := NewRasterSurface(20), NewRasterSurface(20)
			bottom.FillRect(0, 0, 20, 20, "#0000ff")
			top.FillRect(10, 10, 10, 10, "#00ff00")

			img := Composite(20, "#ffffff", []*RasterSurface{bottom, top}, []Marker{{X: 5, Y: 5, Radius: 3, Color: "#ff0000"}}, "")
			So(img.NRGBAAt(15, 5), ShouldResemble, color.NRGBA{G: 0xff, A: 0xff})
			So(img.NRGBAAt(15, 15), ShouldResemble, color.NRGBA{B: 0xff, A: 0xff})
			So(img.NRGBAAt(5, 15), ShouldResemble, color.NRGBA{R: 0xff, A: 0xff})

			var buf bytes.Buffer
			So(WritePNG(&buf, img), ShouldBeNil)
			So(buf.Len(), ShouldBeGreaterThan, 0)
		})
	})
}
