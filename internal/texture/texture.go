// Package texture produces the stamp images brushes dab with.
//
// A Source is one of a closed set of variants: FromImage, Gradient, Dither,
// Lines and Dots. Every variant renders deterministically from a colour and a
// hardness in [0,1]; the result is tinted with the colour and carries the
// shape in its alpha channel.
package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/imgio"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultSize is the edge length of procedural textures when none is given.
const DefaultSize = 64

var (
	ErrHardness = errors.New("texture: hardness must be within [0,1]")
	ErrSize     = errors.New("texture: size must be positive")
	ErrLoad     = errors.New("texture: load image")
)

// Kind tags a Source variant.
type Kind string

const (
	KindImage    Kind = "image"
	KindGradient Kind = "gradient"
	KindDither   Kind = "dither"
	KindLines    Kind = "lines"
	KindDots     Kind = "dots"
)

// Source renders a brush texture.
type Source interface {
	Kind() Kind
	Render(c color.Color, hardness float64) (*image.NRGBA, error)
	isSource()
}

// Direction orients the Lines texture.
type Direction int

const (
	Horizontal Direction = iota
	Vertical
	Diagonal
)

// FromImage uses an image file as the stamp: dark, opaque pixels become ink.
type FromImage struct {
	Path string
}

// Gradient is a round stamp whose edge softens as hardness decreases.
type Gradient struct {
	Size int
}

// Dither is a Gradient quantised to on/off pixels with an ordered 4×4 matrix.
type Dither struct {
	Size int
}

// Lines fills a round stamp with parallel lines; hardness sets line weight.
type Lines struct {
	Size    int
	Spacing int
	Dir     Direction
}

// Dots fills a round stamp with a dot grid; hardness sets dot radius.
type Dots struct {
	Size    int
	Spacing int
}

func (FromImage) isSource() {}
func (Gradient) isSource()  {}
func (Dither) isSource()    {}
func (Lines) isSource()     {}
func (Dots) isSource()      {}

func (FromImage) Kind() Kind { return KindImage }
func (Gradient) Kind() Kind  { return KindGradient }
func (Dither) Kind() Kind    { return KindDither }
func (Lines) Kind() Kind     { return KindLines }
func (Dots) Kind() Kind      { return KindDots }

func (s FromImage) Render(c color.Color, hardness float64) (*image.NRGBA, error) {
	if err := checkHardness(hardness); err != nil {
		return nil, err
	}
	src, err := imgio.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrLoad, s.Path, err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w %s: empty image", ErrLoad, s.Path)
	}
	ink := color.NRGBAModel.Convert(c).(color.NRGBA)
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			lum := (0.299*float64(px.R) + 0.587*float64(px.G) + 0.114*float64(px.B)) / 0xff
			a := contrast((1-lum)*float64(px.A)/0xff, hardness)
			out.SetNRGBA(x, y, tint(ink, a))
		}
	}
	return out, nil
}

func (s Gradient) Render(c color.Color, hardness float64) (*image.NRGBA, error) {
	return round(s.Size, c, hardness, func(_, _ int, a float64) float64 { return a })
}

// bayer4 is the 4×4 ordered dithering matrix.
var bayer4 = [4][4]float64{
	{0, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{15, 7, 13, 5},
}

func (s Dither) Render(c color.Color, hardness float64) (*image.NRGBA, error) {
	return round(s.Size, c, hardness, func(x, y int, a float64) float64 {
		if a > (bayer4[y%4][x%4]+0.5)/16 {
			return 1
		}
		return 0
	})
}

func (s Lines) Render(c color.Color, hardness float64) (*image.NRGBA, error) {
	period := float64(orDefault(s.Spacing, 4))
	weight := math.Max(1, hardness*period)
	return round(s.Size, c, hardness, func(x, y int, a float64) float64 {
		if a <= 0 {
			return 0
		}
		var coord float64
		switch s.Dir {
		case Vertical:
			coord = float64(x)
		case Diagonal:
			coord = float64(x+y) / math.Sqrt2
		default:
			coord = float64(y)
		}
		if math.Mod(coord, period) < weight {
			return 1
		}
		return 0
	})
}

func (s Dots) Render(c color.Color, hardness float64) (*image.NRGBA, error) {
	pitch := float64(orDefault(s.Spacing, 6))
	radius := pitch / 2 * math.Max(0.2, hardness)
	return round(s.Size, c, hardness, func(x, y int, a float64) float64 {
		if a <= 0 {
			return 0
		}
		cx := (math.Floor(float64(x)/pitch) + 0.5) * pitch
		cy := (math.Floor(float64(y)/pitch) + 0.5) * pitch
		if math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) <= radius {
			return 1
		}
		return 0
	})
}

// round renders a circular stamp. shade receives the soft radial falloff at
// each pixel and returns the final coverage.
func round(size int, c color.Color, hardness float64, shade func(x, y int, a float64) float64) (*image.NRGBA, error) {
	if err := checkHardness(hardness); err != nil {
		return nil, err
	}
	size = orDefault(size, DefaultSize)
	if size < 0 {
		return nil, ErrSize
	}
	ink := color.NRGBAModel.Convert(c).(color.NRGBA)
	out := image.NewNRGBA(image.Rect(0, 0, size, size))
	half := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r := math.Hypot(float64(x)+0.5-half, float64(y)+0.5-half) / half
			out.SetNRGBA(x, y, tint(ink, shade(x, y, falloff(r, hardness))))
		}
	}
	return out, nil
}

// falloff maps a normalised radius to coverage: solid inside hardness, linear
// fade to zero at the rim.
func falloff(r, hardness float64) float64 {
	switch {
	case r >= 1:
		return 0
	case r <= hardness:
		return 1
	default:
		return (1 - r) / (1 - hardness)
	}
}

func contrast(a, hardness float64) float64 {
	if hardness <= 0 {
		return a
	}
	gain := 1 / math.Max(1-hardness, 1e-3)
	return math.Max(0, math.Min(1, (a-0.5)*gain+0.5))
}

func tint(ink color.NRGBA, a float64) color.NRGBA {
	ink.A = uint8(math.Round(float64(ink.A) * math.Max(0, math.Min(1, a))))
	if ink.A == 0 {
		return color.NRGBA{}
	}
	return ink
}

func checkHardness(h float64) error {
	if h < 0 || h > 1 || math.IsNaN(h) {
		return fmt.Errorf("%w: %v", ErrHardness, h)
	}
	return nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
