// Package layer holds one raster surface with its display attributes and a
// bounded linear undo history.
package layer

import (
	"errors"
	"fmt"
	"image"
	"math"

	"rakugaki/internal/ids"
	"rakugaki/internal/paper"
	"rakugaki/internal/surface"
)

// DefaultHistory is the undo depth used when none is configured.
const DefaultHistory = 32

var ErrOpacity = errors.New("layer: opacity must be within [0,1]")

// Direction selects the way HistoryTravel moves.
type Direction int

const (
	Backward Direction = iota
	Forward
)

type snapshot struct {
	pix  []byte
	w, h int
}

// Layer owns its surface exclusively. The undo stack always holds at least
// the baseline snapshot.
type Layer struct {
	ID   ids.ID
	Name string

	surface surface.Surface
	visible bool
	opacity float64
	paper   *paper.Binding

	capacity int
	undo     []snapshot
	redo     []snapshot
}

// New wraps s as a visible, opaque layer and records its baseline snapshot.
// capacity bounds the undo stack; values below 1 use DefaultHistory.
func New(id ids.ID, s surface.Surface, capacity int) *Layer {
	if capacity < 1 {
		capacity = DefaultHistory
	}
	l := &Layer{
		ID:       id,
		Name:     fmt.Sprintf("Layer %d", id),
		surface:  s,
		visible:  true,
		opacity:  1,
		capacity: capacity,
	}
	l.Snapshot()
	return l
}

func (l *Layer) Surface() surface.Surface { return l.surface }

func (l *Layer) Visible() bool { return l.visible }

func (l *Layer) SetVisible(v bool) { l.visible = v }

func (l *Layer) Opacity() float64 { return l.opacity }

func (l *Layer) SetOpacity(o float64) error {
	if o < 0 || o > 1 || math.IsNaN(o) {
		return fmt.Errorf("%w: %v", ErrOpacity, o)
	}
	l.opacity = o
	return nil
}

// Paper returns the layer's paper binding, or nil.
func (l *Layer) Paper() *paper.Binding { return l.paper }

// SetPaper attaches b (nil detaches). Stored pixels are unaffected.
func (l *Layer) SetPaper(b *paper.Binding) { l.paper = b }

// SetSurface swaps in s, e.g. a resized copy of the current surface. History
// is kept; snapshots of another size are cropped or padded on restore.
func (l *Layer) SetSurface(s surface.Surface) { l.surface = s }

// Snapshot records the current pixels, evicting the oldest entry when full,
// and discards the redo stack.
func (l *Layer) Snapshot() {
	b := l.surface.Bounds()
	l.undo = append(l.undo, snapshot{pix: l.surface.Pixels(), w: b.Dx(), h: b.Dy()})
	if over := len(l.undo) - l.capacity; over > 0 {
		l.undo = append(l.undo[:0:0], l.undo[over:]...)
	}
	l.redo = nil
}

// ResetHistory drops all history and takes a new baseline from the current
// pixels.
func (l *Layer) ResetHistory() {
	l.undo, l.redo = nil, nil
	l.Snapshot()
}

// HistoryTravel undoes or redoes one snapshot. It reports whether anything
// changed; undoing past the baseline or redoing with nothing undone is a
// no-op.
func (l *Layer) HistoryTravel(dir Direction) bool {
	switch dir {
	case Backward:
		if len(l.undo) <= 1 {
			return false
		}
		top := l.undo[len(l.undo)-1]
		l.undo = l.undo[:len(l.undo)-1]
		l.redo = append(l.redo, top)
		l.restore(l.undo[len(l.undo)-1])
		return true
	case Forward:
		if len(l.redo) == 0 {
			return false
		}
		top := l.redo[len(l.redo)-1]
		l.redo = l.redo[:len(l.redo)-1]
		l.restore(top)
		l.undo = append(l.undo, top)
		return true
	}
	return false
}

func (l *Layer) Undo() bool { return l.HistoryTravel(Backward) }

func (l *Layer) Redo() bool { return l.HistoryTravel(Forward) }

func (l *Layer) UndoDepth() int { return len(l.undo) }

func (l *Layer) RedoDepth() int { return len(l.redo) }

func (l *Layer) restore(s snapshot) {
	l.surface.Clear()
	// Snapshot sizes always match their buffers.
	_ = l.surface.PutPixels(s.pix, s.w, s.h)
}

// Rendered returns what the layer contributes to the composite before
// opacity: the raw pixels, filtered through the paper when one is attached.
func (l *Layer) Rendered() image.Image {
	if l.paper != nil {
		return l.paper.AbsorbInk(l.surface.Image())
	}
	return l.surface.Image()
}

// Thumbnail returns a w×h preview of the rendered layer, letterboxed to
// keep the canvas aspect ratio.
func (l *Layer) Thumbnail(w, h int) *image.RGBA {
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rectangle{})
	}
	return surface.Fit(l.Rendered(), w, h)
}
