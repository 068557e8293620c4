package brush

import (
	"fmt"
	"image/color"
	"math"

	"rakugaki/internal/ids"
	"rakugaki/internal/texture"
)

// Library holds the brushes available to an engine, in display order.
type Library struct {
	brushes []*Brush
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{}
}

// DefaultLibrary returns the stock brushes, each compiled black at its
// default hardness.
func DefaultLibrary(gen ids.Generator) (*Library, error) {
	stock := []struct {
		opts     Options
		hardness float64
	}{
		{Options{Name: "pen", Spacing: 0.1, BaseSize: 8, Source: texture.Gradient{Size: 64}, Response: TaperPressure(0.05)}, 0.8},
		{Options{Name: "pencil", Spacing: 0.25, BaseSize: 4, Source: texture.Dither{Size: 32}, Response: TiltSquash(0.6)}, 0.4},
		{Options{Name: "marker", Spacing: 0.15, BaseSize: 24, Source: texture.Lines{Size: 64, Spacing: 4, Dir: texture.Diagonal}, Response: FixedAngle(math.Pi / 4)}, 0.5},
		{Options{Name: "sketch", Spacing: 0.25, BaseSize: 10, Source: texture.Dither{Size: 32}, Response: RandomAngle(Curves{})}, 0.6},
		{Options{Name: "stipple", Spacing: 0.5, BaseSize: 20, Source: texture.Dots{Size: 64, Spacing: 8}, Response: RandomAngle(Curves{})}, 0.5},
		{Options{Name: "eraser", Spacing: 0.1, BaseSize: 24, Source: texture.Gradient{Size: 64}, Response: RandomAngle(SqrtPressure()), Subtractive: true}, 0.9},
	}

	l := NewLibrary()
	for _, s := range stock {
		b, err := New(gen.Next(), s.opts)
		if err != nil {
			return nil, err
		}
		if err := b.Compile(color.Black, s.hardness); err != nil {
			return nil, err
		}
		if err := l.Add(b); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add appends b; names must be unique.
func (l *Library) Add(b *Brush) error {
	if _, ok := l.Get(b.Name); ok {
		return fmt.Errorf("%w: duplicate brush %q", ErrInvalid, b.Name)
	}
	l.brushes = append(l.brushes, b)
	return nil
}

// Get looks a brush up by name.
func (l *Library) Get(name string) (*Brush, bool) {
	for _, b := range l.brushes {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// All returns the brushes in display order.
func (l *Library) All() []*Brush {
	return append([]*Brush(nil), l.brushes...)
}

func (l *Library) Names() []string {
	names := make([]string, len(l.brushes))
	for i, b := range l.brushes {
		names[i] = b.Name
	}
	return names
}
