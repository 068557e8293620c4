// Package brush turns stroke segments into evenly spaced textured dabs.
package brush

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"rakugaki/internal/ids"
	"rakugaki/internal/state"
	"rakugaki/internal/surface"
	"rakugaki/internal/texture"
)

// Epsilon is the shortest segment Stroke will dab along.
const Epsilon = 1e-3

var (
	// ErrNotCompiled is returned when drawing before Compile succeeded.
	ErrNotCompiled = errors.New("brush: texture not compiled")
	ErrInvalid     = errors.New("brush: invalid parameters")
)

// Options configure a new Brush.
type Options struct {
	Name        string
	Spacing     float64 // fraction of BaseSize between dabs
	BaseSize    float64
	Source      texture.Source
	Response    Response // nil means Linear
	Subtractive bool     // erase instead of adding ink
}

// Brush stamps a compiled texture along strokes. It is long-lived and mutated
// in place; carry distance persists across Stroke calls of one physical
// stroke so dab density does not depend on sampling rate.
type Brush struct {
	ID          ids.ID
	Name        string
	Spacing     float64
	BaseSize    float64
	Source      texture.Source
	Response    Response
	Subtractive bool

	color    color.NRGBA
	hardness float64
	texture  *image.NRGBA
	carry    float64
}

// New validates opts and returns an uncompiled brush.
func New(id ids.ID, opts Options) (*Brush, error) {
	if !(opts.Spacing > 0) || !(opts.BaseSize > 0) {
		return nil, fmt.Errorf("%w: spacing %v, size %v", ErrInvalid, opts.Spacing, opts.BaseSize)
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: no texture source", ErrInvalid)
	}
	if opts.Response == nil {
		opts.Response = Linear{}
	}
	return &Brush{
		ID:          id,
		Name:        opts.Name,
		Spacing:     opts.Spacing,
		BaseSize:    opts.BaseSize,
		Source:      opts.Source,
		Response:    opts.Response,
		Subtractive: opts.Subtractive,
		color:       color.NRGBA{A: 0xff},
	}, nil
}

// Compile renders the texture for a colour and hardness. It must run after
// every colour or hardness change and before the next stroke.
func (b *Brush) Compile(c color.Color, hardness float64) error {
	tex, err := b.Source.Render(c, hardness)
	if err != nil {
		return fmt.Errorf("compile %s: %w", b.Name, err)
	}
	if tex.Bounds().Empty() {
		return fmt.Errorf("compile %s: %w: empty texture", b.Name, ErrInvalid)
	}
	b.color = color.NRGBAModel.Convert(c).(color.NRGBA)
	b.hardness = hardness
	b.texture = tex
	return nil
}

func (b *Brush) Compiled() bool { return b.texture != nil }

func (b *Brush) Color() color.NRGBA { return b.color }

func (b *Brush) Hardness() float64 { return b.hardness }

// Texture returns the compiled stamp, or nil.
func (b *Brush) Texture() *image.NRGBA { return b.texture }

// SetSize changes the base dab size.
func (b *Brush) SetSize(size float64) error {
	if !(size > 0) {
		return fmt.Errorf("%w: size %v", ErrInvalid, size)
	}
	b.BaseSize = size
	return nil
}

// Carry is the travel left over from the previous Stroke call.
func (b *Brush) Carry() float64 { return b.carry }

// Reset forgets the carry distance; call it when a new stroke begins.
func (b *Brush) Reset() { b.carry = 0 }

// Stroke dabs along the segment from→to. Positions are interpolated; pen
// attitude is taken from `to` for every dab.
func (b *Brush) Stroke(s surface.Surface, from, to state.Sample) error {
	if b.texture == nil {
		return ErrNotCompiled
	}
	dx, dy := to.X-from.X, to.Y-from.Y
	dist := math.Hypot(dx, dy)
	if dist < Epsilon {
		return nil
	}
	step := b.BaseSize * b.Spacing
	if !(step > 0) || math.IsInf(step, 1) {
		return fmt.Errorf("%w: spacing %v, size %v", ErrInvalid, b.Spacing, b.BaseSize)
	}
	traveled := b.carry
	for ; traveled <= dist; traveled += step {
		t := traveled / dist
		at := to
		at.X = from.X + dx*t
		at.Y = from.Y + dy*t
		b.dab(s, at, 1)
	}
	b.carry = traveled - dist
	return nil
}

// Dab stamps a single dab at the sample.
func (b *Brush) Dab(s surface.Surface, at state.Sample) error {
	if b.texture == nil {
		return ErrNotCompiled
	}
	b.dab(s, at, 1)
	return nil
}

func (b *Brush) dab(s surface.Surface, at state.Sample, scale float64) {
	p := b.Response.Pressure(at.Pressure)
	if p <= 0 {
		return
	}
	size := b.BaseSize * p * scale

	tb := b.texture.Bounds()
	tw, th := float64(tb.Dx()), float64(tb.Dy())
	angle := b.Response.Angle(at.Orientation)
	squashed := b.Response.Squash(tw/th, at.Tilt)

	sx, sy := size*squashed/tw, size/th
	sin, cos := math.Sincos(angle)
	cx, cy := float64(tb.Min.X)+tw/2, float64(tb.Min.Y)+th/2
	m := f64.Aff3{
		cos * sx, -sin * sy, at.X - cos*sx*cx + sin*sy*cy,
		sin * sx, cos * sy, at.Y - sin*sx*cx - cos*sy*cy,
	}

	mode := surface.SourceOver
	if b.Subtractive {
		mode = surface.DestinationOut
	}
	s.DrawImage(b.texture, m, p, mode)
}

const thumbSteps = 48

// Thumbnail renders a fixed wave through the regular dab path.
func (b *Brush) Thumbnail(w, h int) (*image.RGBA, error) {
	if b.texture == nil {
		return nil, ErrNotCompiled
	}
	s := surface.NewRGBA(w, h)
	if b.Subtractive {
		draw.Draw(s.RGBA(), s.Bounds(), image.NewUniform(color.Gray{Y: 0xc0}), image.Point{}, draw.Src)
	}

	fw, fh := float64(w), float64(h)
	scale := math.Min(1, fh/(3*b.BaseSize))
	margin := b.BaseSize * scale / 2
	for i := 0; i <= thumbSteps; i++ {
		t := float64(i) / thumbSteps
		b.dab(s, state.Sample{
			X:        margin + t*(fw-2*margin),
			Y:        fh/2 + math.Sin(t*2*math.Pi)*fh/4,
			Pressure: 0.3 + 0.7*math.Sin(t*math.Pi),
		}, scale)
	}
	return s.RGBA(), nil
}
