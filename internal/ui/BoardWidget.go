package ui

import (
	"image"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"rakugaki/internal/state"
)

// MousePointer is the pointer id mouse input is dispatched under.
const MousePointer = 0

// Dispatcher receives pointer events.
type Dispatcher interface {
	Dispatch(state.Event)
}

// BoardWidget shows the latest composited frame and turns mouse input into
// stroke events in layer space.
type BoardWidget struct {
	widget.BaseWidget
	target Dispatcher
	raster *canvas.Raster

	mu      sync.RWMutex
	frame   image.Image
	width   int
	height  int
	scale   float32
	drawing bool
}

var _ fyne.Widget = (*BoardWidget)(nil)
var _ fyne.Draggable = (*BoardWidget)(nil)
var _ desktop.Mouseable = (*BoardWidget)(nil)
var _ desktop.Hoverable = (*BoardWidget)(nil)

func NewBoardWidget(target Dispatcher, w, h int, scale float64) *BoardWidget {
	b := &BoardWidget{target: target}
	b.raster = canvas.NewRaster(b.draw)
	b.raster.ScaleMode = canvas.ImageScalePixels
	b.SetCanvasSize(w, h, scale)
	b.ExtendBaseWidget(b)
	return b
}

// SetCanvasSize updates the displayed canvas dimensions and the number of
// screen units per canvas pixel.
func (b *BoardWidget) SetCanvasSize(w, h int, scale float64) {
	b.mu.Lock()
	b.width, b.height, b.scale = w, h, float32(scale)
	b.mu.Unlock()
}

// SetFrame publishes a composited frame. The widget keeps img; callers must
// not reuse it.
func (b *BoardWidget) SetFrame(img image.Image) {
	b.mu.Lock()
	b.frame = img
	b.mu.Unlock()
	b.raster.Refresh()
}

func (b *BoardWidget) draw(w, h int) image.Image {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.frame == nil {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	return b.frame
}

func (b *BoardWidget) MinSize() fyne.Size {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fyne.NewSize(float32(b.width)*b.scale, float32(b.height)*b.scale)
}

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(b.raster)
}

// sample converts a widget-relative position to layer space.
func (b *BoardWidget) sample(pos fyne.Position) state.Sample {
	b.mu.RLock()
	scale := b.scale
	b.mu.RUnlock()
	if scale <= 0 {
		scale = 1
	}
	return state.Sample{X: float64(pos.X / scale), Y: float64(pos.Y / scale), Pressure: 1}
}

func (b *BoardWidget) send(k state.Kind, pos fyne.Position) {
	b.target.Dispatch(state.Event{Kind: k, Sample: b.sample(pos), Pointer: MousePointer})
}

func (b *BoardWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	b.drawing = true
	b.send(state.Down, e.Position)
}

func (b *BoardWidget) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary || !b.drawing {
		return
	}
	b.drawing = false
	b.send(state.Up, e.Position)
}

func (b *BoardWidget) Dragged(e *fyne.DragEvent) {
	if b.drawing {
		b.send(state.Move, e.Position)
	}
}

func (b *BoardWidget) DragEnd() {
	if b.drawing {
		b.drawing = false
		b.target.Dispatch(state.Event{Kind: state.Up, Pointer: MousePointer})
	}
}

func (b *BoardWidget) MouseIn(*desktop.MouseEvent)    {}
func (b *BoardWidget) MouseMoved(*desktop.MouseEvent) {}

// MouseOut ends a stroke abnormally when the pointer leaves the canvas.
func (b *BoardWidget) MouseOut() {
	if b.drawing {
		b.drawing = false
		b.target.Dispatch(state.Event{Kind: state.Release, Pointer: MousePointer})
	}
}
