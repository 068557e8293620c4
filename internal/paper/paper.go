// Package paper simulates a drawing surface's tooth by masking layer ink at
// render time. Masks are derived purely from (width, height, strength), so a
// saved project reproduces the same look on load.
package paper

import (
	"errors"
	"fmt"
	"image"
	"math"
	"slices"
	"sync"

	"golang.org/x/image/draw"

	"rakugaki/internal/ids"
)

var ErrParameters = errors.New("paper: invalid parameters")

// maskCacheSize bounds the masks one Paper keeps around.
const maskCacheSize = 8

// Source renders the tooth pattern. Values are coverage in [0,1]: 1 is
// fully absorbent paper, 0 a pit the ink cannot reach.
type Source interface {
	Tooth(x, y int) float64
}

type maskKey struct {
	w, h     int
	strength float64
}

// Paper is a named tooth pattern shared by every layer that uses it. It
// holds no per-layer state; layers attach it through a Binding. Safe for
// concurrent use.
type Paper struct {
	ID     ids.ID
	Name   string
	Source Source // nil means plain paper

	mu    sync.Mutex
	masks map[maskKey]*image.Alpha
	order []maskKey
}

// New returns a paper with an empty mask cache.
func New(id ids.ID, name string, src Source) *Paper {
	return &Paper{ID: id, Name: name, Source: src, masks: make(map[maskKey]*image.Alpha)}
}

// Mask returns the alpha mask for a canvas size and strength. Masks are
// cached and shared; callers must not modify them.
func (p *Paper) Mask(w, h int, strength float64) (*image.Alpha, error) {
	if w <= 0 || h <= 0 || strength < 0 || strength > 1 || math.IsNaN(strength) {
		return nil, fmt.Errorf("%w: %dx%d strength %v", ErrParameters, w, h, strength)
	}
	key := maskKey{w, h, strength}
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.masks[key]; ok {
		return m, nil
	}
	m := p.build(w, h, strength)
	if len(p.order) >= maskCacheSize {
		delete(p.masks, p.order[0])
		p.order = slices.Delete(p.order, 0, 1)
	}
	p.masks[key] = m
	p.order = append(p.order, key)
	return m, nil
}

func (p *Paper) build(w, h int, strength float64) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x := range row {
			tooth := 1.0
			if p.Source != nil {
				tooth = p.Source.Tooth(x, y)
			}
			row[x] = uint8(math.Round(0xff * (1 - strength*(1-tooth))))
		}
	}
	return mask
}

// Bind returns a per-layer attachment of p at a canvas size and strength.
func (p *Paper) Bind(w, h int, strength float64) (*Binding, error) {
	b := &Binding{paper: p}
	if err := b.SetParameters(w, h, strength); err != nil {
		return nil, err
	}
	return b, nil
}

// Binding is one layer's use of a paper: its strength and the mask sized to
// the canvas. It never modifies the pixels it filters.
type Binding struct {
	paper    *Paper
	strength float64
	mask     *image.Alpha
	scratch  *image.RGBA
}

func (b *Binding) Paper() *Paper { return b.paper }

func (b *Binding) Strength() float64 { return b.strength }

func (b *Binding) Mask() *image.Alpha { return b.mask }

// Size reports the dimensions the mask was built for.
func (b *Binding) Size() (w, h int) {
	r := b.mask.Bounds()
	return r.Dx(), r.Dy()
}

// SetParameters rebuilds the mask for a canvas size and strength. On error
// the binding is unchanged.
func (b *Binding) SetParameters(w, h int, strength float64) error {
	mask, err := b.paper.Mask(w, h, strength)
	if err != nil {
		return err
	}
	b.strength = strength
	b.mask = mask
	b.scratch = nil
	return nil
}

// Resized returns a new binding of the same paper and strength for another
// canvas size.
func (b *Binding) Resized(w, h int) (*Binding, error) {
	return b.paper.Bind(w, h, b.strength)
}

// AbsorbInk returns raw masked by the paper. The result is reused by the next
// call; consume it before calling again.
func (b *Binding) AbsorbInk(raw image.Image) *image.RGBA {
	r := raw.Bounds()
	if b.scratch == nil || b.scratch.Bounds() != r {
		b.scratch = image.NewRGBA(r)
	}
	draw.DrawMask(b.scratch, r, raw, r.Min, b.mask, r.Min, draw.Src)
	return b.scratch
}
