// Package surface defines the pixel buffer layers paint into and an in-memory
// implementation backed by image.RGBA.
package surface

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// ErrPixelSize is returned when a pixel buffer does not match its dimensions.
var ErrPixelSize = errors.New("surface: pixel buffer size mismatch")

// Mode selects how a drawn image combines with existing pixels.
type Mode int

const (
	// SourceOver paints the source on top of the destination.
	SourceOver Mode = iota
	// DestinationOut erases the destination where the source is opaque.
	DestinationOut
)

func (m Mode) String() string {
	switch m {
	case SourceOver:
		return "source-over"
	case DestinationOut:
		return "destination-out"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Surface is a fixed-size pixel buffer supporting the drawing operations the
// engine needs. Pixels are 8-bit premultiplied RGBA, row-major, no padding.
type Surface interface {
	Bounds() image.Rectangle
	Clear()
	// DrawImage draws src mapped into surface space by m, with its alpha
	// scaled by alpha.
	DrawImage(src image.Image, m f64.Aff3, alpha float64, mode Mode)
	// Composite draws src at the origin with source-over and the given opacity.
	Composite(src image.Image, alpha float64)
	// Image exposes the live buffer. Callers must not retain it across Resize.
	Image() image.Image
	// Pixels returns a copy of the buffer.
	Pixels() []byte
	// PutPixels writes a w×h buffer at the origin, clipped to the surface.
	PutPixels(pix []byte, w, h int) error
	// Resize replaces the buffer with a blank one of the new size.
	Resize(w, h int)
	Encode(w io.Writer) error
}

// Factory creates blank surfaces.
type Factory func(w, h int) Surface

// RGBA is a Surface held in memory.
type RGBA struct {
	img *image.RGBA
}

var _ Surface = (*RGBA)(nil)

// NewRGBA returns a transparent w×h surface.
func NewRGBA(w, h int) *RGBA {
	return &RGBA{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// NewFactory returns a Factory producing RGBA surfaces.
func NewFactory() Factory {
	return func(w, h int) Surface { return NewRGBA(w, h) }
}

func (s *RGBA) Bounds() image.Rectangle { return s.img.Bounds() }

func (s *RGBA) Image() image.Image { return s.img }

// RGBA returns the live buffer.
func (s *RGBA) RGBA() *image.RGBA { return s.img }

func (s *RGBA) Clear() {
	clear(s.img.Pix)
}

func (s *RGBA) DrawImage(src image.Image, m f64.Aff3, alpha float64, mode Mode) {
	if alpha <= 0 {
		return
	}
	alpha = math.Min(alpha, 1)

	r := transformedBounds(src.Bounds(), m).Intersect(s.img.Bounds())
	if r.Empty() {
		return
	}
	scratch := image.NewRGBA(r)
	draw.BiLinear.Transform(scratch, m, src, src.Bounds(), draw.Over, nil)

	switch mode {
	case DestinationOut:
		eraseWith(s.img, scratch, alpha)
	default:
		draw.DrawMask(s.img, r, scratch, r.Min, uniformAlpha(alpha), image.Point{}, draw.Over)
	}
}

func (s *RGBA) Composite(src image.Image, alpha float64) {
	if alpha <= 0 {
		return
	}
	b := s.img.Bounds()
	if alpha >= 1 {
		draw.Draw(s.img, b, src, src.Bounds().Min, draw.Over)
		return
	}
	draw.DrawMask(s.img, b, src, src.Bounds().Min, uniformAlpha(alpha), image.Point{}, draw.Over)
}

func (s *RGBA) Pixels() []byte {
	return Pack(s.img)
}

func (s *RGBA) PutPixels(pix []byte, w, h int) error {
	if w < 0 || h < 0 || len(pix) != w*h*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d", ErrPixelSize, len(pix), w, h)
	}
	b := s.img.Bounds()
	cw, ch := min(w, b.Dx()), min(h, b.Dy())
	for y := 0; y < ch; y++ {
		dst := s.img.Pix[y*s.img.Stride : y*s.img.Stride+cw*4]
		copy(dst, pix[y*w*4:y*w*4+cw*4])
	}
	return nil
}

func (s *RGBA) Resize(w, h int) {
	s.img = image.NewRGBA(image.Rect(0, 0, w, h))
}

func (s *RGBA) Encode(w io.Writer) error {
	return png.Encode(w, s.img)
}

// Pack copies img into a tightly packed buffer.
func Pack(img *image.RGBA) []byte {
	b := img.Bounds()
	row := b.Dx() * 4
	out := make([]byte, row*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out[y*row:(y+1)*row], img.Pix[off:off+row])
	}
	return out
}

// Unpack wraps a tightly packed w×h buffer as an image without copying.
func Unpack(pix []byte, w, h int) (*image.RGBA, error) {
	if w < 0 || h < 0 || len(pix) != w*h*4 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrPixelSize, len(pix), w, h)
	}
	return &image.RGBA{Pix: pix, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}

func uniformAlpha(a float64) image.Image {
	return image.NewUniform(color.Alpha16{A: uint16(math.Round(a * 0xffff))})
}

// eraseWith scales every destination pixel by (1 - srcAlpha*alpha).
func eraseWith(dst, src *image.RGBA, alpha float64) {
	r := src.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		si := src.PixOffset(r.Min.X, y)
		di := dst.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x, si, di = x+1, si+4, di+4 {
			sa := float64(src.Pix[si+3]) / 0xff * alpha
			if sa <= 0 {
				continue
			}
			k := 1 - sa
			for c := 0; c < 4; c++ {
				dst.Pix[di+c] = uint8(math.Round(float64(dst.Pix[di+c]) * k))
			}
		}
	}
}

// transformedBounds returns the integer rectangle covering r mapped through m.
func transformedBounds(r image.Rectangle, m f64.Aff3) image.Rectangle {
	pts := [4][2]float64{
		{float64(r.Min.X), float64(r.Min.Y)},
		{float64(r.Max.X), float64(r.Min.Y)},
		{float64(r.Min.X), float64(r.Max.Y)},
		{float64(r.Max.X), float64(r.Max.Y)},
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		x := m[0]*p[0] + m[1]*p[1] + m[2]
		y := m[3]*p[0] + m[4]*p[1] + m[5]
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}
