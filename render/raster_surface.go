package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/rob102-staff/nav-app/colors"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// RasterSurface paints a layer into an in-memory image, flipping the Cartesian y axis into
// image rows. It is safe for concurrent use so snapshot readers need not share the writer's goroutine.
type RasterSurface struct {
	mu  sync.RWMutex
	img *image.NRGBA
}

// NewRasterSurface returns a transparent size x size surface.
func NewRasterSurface(size int) *RasterSurface {
	if size < 0 {
		size = 0
	}
	return &RasterSurface{
		img: image.NewNRGBA(image.Rect(0, 0, size, size)),
	}
}

func (s *RasterSurface) Size() float64 {
	return float64(s.img.Bounds().Dx())
}

// rect converts a Cartesian rectangle to image pixels, rounding edges to the nearest pixel.
func (s *RasterSurface) rect(x, y, w, h float64) image.Rectangle {
	size := s.Size()
	x0, x1 := math.Round(x), math.Round(x+w)
	y0, y1 := math.Round(size-(y+h)), math.Round(size-y)
	return image.Rect(int(x0), int(y0), int(x1), int(y1)).Intersect(s.img.Bounds())
}

func (s *RasterSurface) FillRect(x, y, w, h float64, hex string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draw.Draw(s.img, s.rect(x, y, w, h), image.NewUniform(colors.ParseRGBA(hex)), image.Point{}, draw.Over)
}

func (s *RasterSurface) ClearRect(x, y, w, h float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draw.Draw(s.img, s.rect(x, y, w, h), image.Transparent, image.Point{}, draw.Src)
}

func (s *RasterSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// At returns the pixel colour at Cartesian (x, y).
func (s *RasterSurface) At(x, y int) color.NRGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.img.NRGBAAt(x, s.img.Bounds().Dy()-1-y)
}

// drawOnto composites the layer over dst.
func (s *RasterSurface) drawOnto(dst draw.Image) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draw.Draw(dst, dst.Bounds(), s.img, image.Point{}, draw.Over)
}

// Marker is a filled disc drawn over a composite, e.g. the robot.
type Marker struct {
	X, Y   float64 // Cartesian centre
	Radius float64
	Color  string
}

// Composite stacks the layers bottom to top over an opaque background and draws the markers
// and an optional caption on top.
func Composite(size int, background string, layers []*RasterSurface, markers []Marker, caption string) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(colors.ParseRGBA(background)), image.Point{}, draw.Src)

	for _, layer := range layers {
		if layer != nil {
			layer.drawOnto(dst)
		}
	}

	for _, m := range markers {
		disc := &circle{
			center: image.Pt(int(math.Round(m.X)), size-int(math.Round(m.Y))),
			radius: m.Radius,
		}
		draw.DrawMask(dst, disc.Bounds(), image.NewUniform(colors.ParseRGBA(m.Color)), image.Point{}, disc, disc.Bounds().Min, draw.Over)
	}

	if caption != "" {
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(color.NRGBA{A: 0xff}),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(4, 14),
		}
		d.DrawString(caption)
	}
	return dst
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// circle is an alpha mask of a filled disc.
type circle struct {
	center image.Point
	radius float64
}

func (c *circle) ColorModel() color.Model {
	return color.AlphaModel
}

func (c *circle) Bounds() image.Rectangle {
	r := int(math.Ceil(c.radius))
	return image.Rect(c.center.X-r, c.center.Y-r, c.center.X+r, c.center.Y+r)
}

func (c *circle) At(x, y int) color.Color {
	dx := float64(x-c.center.X) + 0.5
	dy := float64(y-c.center.Y) + 0.5
	if dx*dx+dy*dy <= c.radius*c.radius {
		return color.Alpha{A: 0xff}
	}
	return color.Alpha{}
}
