// Package engine owns the layer stack, the active brush and the stroke state
// machine, and composites layers into the display surface.
//
// An Engine is driven from one goroutine. Only Dispatch may be called
// concurrently; everything else, Poll and Render included, runs on the
// owning goroutine.
package engine

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"slices"

	"github.com/anthonynsimon/bild/clone"

	"rakugaki/internal/brush"
	"rakugaki/internal/ids"
	"rakugaki/internal/layer"
	"rakugaki/internal/paper"
	"rakugaki/internal/state"
	"rakugaki/internal/surface"
)

var (
	ErrStrokeActive = errors.New("engine: a stroke is in progress")
	ErrNoLayer      = errors.New("engine: no such layer")
	ErrNoBrush      = errors.New("engine: no active brush")
	ErrSize         = errors.New("engine: canvas size must be positive")
	ErrViewScale    = errors.New("engine: view scale must be positive")
)

// NoticeKind classifies input that was deliberately not drawn.
type NoticeKind int

const (
	// NoticeHiddenLayer: a stroke targeted an invisible layer.
	NoticeHiddenLayer NoticeKind = iota
	// NoticeNoLayer: a stroke happened with no current layer.
	NoticeNoLayer
	// NoticeCaptureRequested: another pointer went down mid-stroke.
	NoticeCaptureRequested
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeHiddenLayer:
		return "hidden-layer"
	case NoticeNoLayer:
		return "no-layer"
	case NoticeCaptureRequested:
		return "capture-requested"
	}
	return fmt.Sprintf("NoticeKind(%d)", int(k))
}

// Notice reports a suppressed input.
type Notice struct {
	Kind    NoticeKind
	Layer   ids.ID
	Pointer int
}

// Options configure New. Zero values pick defaults.
type Options struct {
	Width, Height int
	ViewScale     float64
	History       int
	Title         string
	IDs           ids.Generator
	Surfaces      surface.Factory
	Logger        *slog.Logger
	OnNotice      func(Notice)
}

// Engine is a layered painting document plus its live input state.
type Engine struct {
	ids        ids.Generator
	newSurface surface.Factory
	log        *slog.Logger
	onNotice   func(Notice)

	projectID     string
	title         string
	width, height int
	viewScale     float64
	history       int

	layers  []*layer.Layer
	current ids.ID
	brush   *brush.Brush
	display surface.Surface
	machine *state.Machine

	suppressed bool
}

// New returns an engine with no layers.
func New(opts Options) (*Engine, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrSize, opts.Width, opts.Height)
	}
	if opts.ViewScale == 0 {
		opts.ViewScale = 1
	}
	if !(opts.ViewScale > 0) {
		return nil, fmt.Errorf("%w: %v", ErrViewScale, opts.ViewScale)
	}
	if opts.IDs == nil {
		opts.IDs = ids.NewSequence()
	}
	if opts.Surfaces == nil {
		opts.Surfaces = surface.NewFactory()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{
		ids:        opts.IDs,
		newSurface: opts.Surfaces,
		log:        opts.Logger.With("component", "engine"),
		onNotice:   opts.OnNotice,
		projectID:  ids.NewProjectID(),
		title:      opts.Title,
		width:      opts.Width,
		height:     opts.Height,
		viewScale:  opts.ViewScale,
		history:    opts.History,
		display:    opts.Surfaces(opts.Width, opts.Height),
	}
	e.machine = state.NewMachine(painter{e}, opts.Logger)
	return e, nil
}

func (e *Engine) IDs() ids.Generator { return e.ids }

func (e *Engine) ProjectID() string { return e.projectID }

func (e *Engine) SetProjectID(id string) { e.projectID = id }

func (e *Engine) Title() string { return e.title }

func (e *Engine) SetTitle(t string) { e.title = t }

// Size returns the canvas dimensions.
func (e *Engine) Size() (w, h int) { return e.width, e.height }

func (e *Engine) ViewScale() float64 { return e.viewScale }

func (e *Engine) SetViewScale(s float64) error {
	if !(s > 0) || math.IsInf(s, 1) {
		return fmt.Errorf("%w: %v", ErrViewScale, s)
	}
	e.viewScale = s
	return nil
}

// SetNoticeHandler replaces the callback for suppressed input.
func (e *Engine) SetNoticeHandler(fn func(Notice)) { e.onNotice = fn }

func (e *Engine) notify(n Notice) {
	e.log.Debug("input suppressed", "notice", n.Kind.String(), "layer", n.Layer, "pointer", n.Pointer)
	if e.onNotice != nil {
		e.onNotice(n)
	}
}

// NewLayerSurface returns a blank surface from the engine's factory.
func (e *Engine) NewLayerSurface(w, h int) surface.Surface {
	return e.newSurface(w, h)
}

// HistoryDepth is the undo capacity given to new layers.
func (e *Engine) HistoryDepth() int { return e.history }

// Display is the composited output of the last Render.
func (e *Engine) Display() surface.Surface { return e.display }

// Render clears the display and composites visible layers back to front.
func (e *Engine) Render() {
	e.display.Clear()
	for _, l := range e.layers {
		if !l.Visible() {
			continue
		}
		e.display.Composite(l.Rendered(), l.Opacity())
	}
}

// Flatten renders and returns a copy of the composite.
func (e *Engine) Flatten() *image.RGBA {
	e.Render()
	return clone.AsRGBA(e.display.Image())
}

// Thumbnail returns a w×h preview of the composite, letterboxed to keep the
// canvas aspect ratio.
func (e *Engine) Thumbnail(w, h int) *image.RGBA {
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rectangle{})
	}
	return surface.Fit(e.Flatten(), w, h)
}

// Resize changes the canvas size. Content stays anchored at the top-left and
// is cropped or padded, never scaled. Papers are rebound for the new size.
// Every layer is prepared before any is changed, so on error the engine is
// untouched.
func (e *Engine) Resize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrSize, w, h)
	}
	if e.machine.Drawing() {
		return ErrStrokeActive
	}
	type resized struct {
		surface surface.Surface
		paper   *paper.Binding
	}
	next := make([]resized, len(e.layers))
	for i, l := range e.layers {
		b := l.Surface().Bounds()
		s := e.newSurface(w, h)
		if err := s.PutPixels(l.Surface().Pixels(), b.Dx(), b.Dy()); err != nil {
			return fmt.Errorf("resize layer %v: %w", l.ID, err)
		}
		next[i].surface = s
		if p := l.Paper(); p != nil {
			nb, err := p.Resized(w, h)
			if err != nil {
				return fmt.Errorf("resize paper %s on layer %v: %w", p.Paper().Name, l.ID, err)
			}
			next[i].paper = nb
		}
	}
	for i, l := range e.layers {
		l.SetSurface(next[i].surface)
		l.SetPaper(next[i].paper)
	}
	e.display.Resize(w, h)
	e.log.Info("canvas resized", "from", fmt.Sprintf("%dx%d", e.width, e.height), "to", fmt.Sprintf("%dx%d", w, h))
	e.width, e.height = w, h
	return nil
}

// SetBrush selects the brush strokes are drawn with. Dabs already issued are
// unaffected.
func (e *Engine) SetBrush(b *brush.Brush) { e.brush = b }

func (e *Engine) Brush() *brush.Brush { return e.brush }

// Dispatch queues a pointer event. Safe for concurrent use.
func (e *Engine) Dispatch(ev state.Event) { e.machine.Dispatch(ev) }

// Poll drains the event queue, drawing on the current layer.
func (e *Engine) Poll() error { return e.machine.Poll() }

// Pending returns the number of queued events. Safe for concurrent use.
func (e *Engine) Pending() int { return e.machine.Pending() }

// Drawing reports whether a stroke session is active.
func (e *Engine) Drawing() bool { return e.machine.Drawing() }

// Undo steps the current layer back one stroke.
func (e *Engine) Undo() bool { return e.HistoryTravel(layer.Backward) }

// Redo re-applies the most recently undone stroke on the current layer.
func (e *Engine) Redo() bool { return e.HistoryTravel(layer.Forward) }

// HistoryTravel moves the current layer's history. It does nothing while a
// stroke is in progress or when there is no current layer.
func (e *Engine) HistoryTravel(dir layer.Direction) bool {
	l := e.CurrentLayer()
	if l == nil || e.machine.Drawing() {
		return false
	}
	return l.HistoryTravel(dir)
}

// painter adapts the engine to the state machine.
type painter struct{ e *Engine }

func (p painter) BeginStroke(state.Sample) {
	p.e.suppressed = false
	if p.e.brush != nil {
		p.e.brush.Reset()
	}
}

func (p painter) Stroke(from, to state.Sample) error {
	e := p.e
	l := e.CurrentLayer()
	switch {
	case l == nil:
		e.suppress(Notice{Kind: NoticeNoLayer})
		return nil
	case !l.Visible():
		e.suppress(Notice{Kind: NoticeHiddenLayer, Layer: l.ID})
		return nil
	case e.brush == nil:
		return ErrNoBrush
	}
	return e.brush.Stroke(l.Surface(), from, to)
}

func (p painter) EndStroke() {
	if l := p.e.CurrentLayer(); l != nil {
		l.Snapshot()
	}
}

func (p painter) CaptureRequested(pointer int) {
	p.e.notify(Notice{Kind: NoticeCaptureRequested, Layer: p.e.current, Pointer: pointer})
}

// suppress notifies once per stroke.
func (e *Engine) suppress(n Notice) {
	if e.suppressed {
		return
	}
	e.suppressed = true
	e.notify(n)
}

// layerIndex returns the stack position of id, or -1.
func (e *Engine) layerIndex(id ids.ID) int {
	return slices.IndexFunc(e.layers, func(l *layer.Layer) bool { return l.ID == id })
}
