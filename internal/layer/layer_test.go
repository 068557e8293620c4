package layer

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"

	"rakugaki/internal/paper"
	"rakugaki/internal/surface"
)

func newLayer(capacity int) *Layer {
	return New(1, surface.NewRGBA(8, 8), capacity)
}

// paint fills a square and records it as one stroke.
func paint(l *Layer, x int, c color.RGBA) {
	img := l.Surface().Image().(*image.RGBA)
	draw.Draw(img, image.Rect(x, 0, x+2, 2), image.NewUniform(c), image.Point{}, draw.Src)
	l.Snapshot()
}

func TestBaselineCannotBeUndone(t *testing.T) {
	l := newLayer(4)
	assert.Equal(t, 1, l.UndoDepth())
	assert.False(t, l.HistoryTravel(Backward))
	assert.False(t, l.HistoryTravel(Forward))
	assert.Equal(t, 1, l.UndoDepth())
}

func TestUndoRedoRestoresPixels(t *testing.T) {
	l := newLayer(4)
	blank := l.Surface().Pixels()
	paint(l, 0, color.RGBA{R: 255, A: 255})
	drawn := l.Surface().Pixels()
	require.NotEqual(t, blank, drawn)

	require.True(t, l.Undo())
	assert.Equal(t, blank, l.Surface().Pixels())
	assert.Equal(t, 1, l.RedoDepth())

	require.True(t, l.Redo())
	assert.Equal(t, drawn, l.Surface().Pixels())
	assert.Equal(t, 2, l.UndoDepth())
	assert.Equal(t, 0, l.RedoDepth())
}

func TestSnapshotClearsRedo(t *testing.T) {
	l := newLayer(4)
	paint(l, 0, color.RGBA{R: 255, A: 255})
	paint(l, 2, color.RGBA{G: 255, A: 255})
	l.Undo()
	l.Undo()
	require.Equal(t, 2, l.RedoDepth())

	paint(l, 4, color.RGBA{B: 255, A: 255})
	assert.Equal(t, 0, l.RedoDepth())
	assert.False(t, l.Redo())
}

func TestHistoryIsBounded(t *testing.T) {
	l := newLayer(3)
	for i := 0; i < 4; i++ {
		paint(l, i*2, color.RGBA{R: uint8(50 * (i + 1)), A: 255})
	}
	assert.Equal(t, 3, l.UndoDepth())

	// Only two steps back are possible; the oldest states were evicted.
	assert.True(t, l.Undo())
	assert.True(t, l.Undo())
	assert.False(t, l.Undo())
	img := l.Surface().Image().(*image.RGBA)
	assert.Equal(t, color.RGBA{R: 100, A: 255}, img.RGBAAt(2, 0))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(4, 0))
}

func TestResetHistory(t *testing.T) {
	l := newLayer(4)
	paint(l, 0, color.RGBA{R: 255, A: 255})
	paint(l, 2, color.RGBA{R: 255, A: 255})
	l.Undo()
	l.ResetHistory()
	assert.Equal(t, 1, l.UndoDepth())
	assert.Equal(t, 0, l.RedoDepth())
	assert.False(t, l.Undo())
}

func TestUndoAcrossResize(t *testing.T) {
	l := newLayer(4)
	paint(l, 6, color.RGBA{R: 255, A: 255})
	l.Surface().Resize(4, 4)
	l.Snapshot()

	require.True(t, l.Undo())
	assert.Equal(t, image.Rect(0, 0, 4, 4), l.Surface().Bounds())
	// The restored 8×8 snapshot is cropped to the new bounds.
	assert.Equal(t, make([]byte, 4*4*4), l.Surface().Pixels())
}

func TestAttributes(t *testing.T) {
	l := newLayer(0)
	assert.True(t, l.Visible())
	assert.Equal(t, 1.0, l.Opacity())
	assert.Equal(t, "Layer 1", l.Name)

	l.SetVisible(false)
	assert.False(t, l.Visible())
	require.NoError(t, l.SetOpacity(0.25))
	assert.Equal(t, 0.25, l.Opacity())
	assert.ErrorIs(t, l.SetOpacity(1.5), ErrOpacity)
	assert.Equal(t, 0.25, l.Opacity())
}

func TestPaperDoesNotTouchPixels(t *testing.T) {
	l := newLayer(4)
	paint(l, 0, color.RGBA{R: 255, A: 255})
	before := l.Surface().Pixels()
	depth := l.UndoDepth()

	b, err := paper.New(2, "grain", paper.Grain{Seed: 4}).Bind(8, 8, 1)
	require.NoError(t, err)
	l.SetPaper(b)
	rendered := l.Rendered().(*image.RGBA)
	assert.NotEqual(t, before, surface.Pack(rendered))

	l.SetPaper(nil)
	assert.Equal(t, before, l.Surface().Pixels())
	assert.Equal(t, depth, l.UndoDepth())
}

func TestThumbnail(t *testing.T) {
	l := newLayer(4)
	paint(l, 0, color.RGBA{R: 255, A: 255})
	th := l.Thumbnail(4, 4)
	assert.Equal(t, image.Rect(0, 0, 4, 4), th.Bounds())
	assert.Greater(t, th.RGBAAt(0, 0).A, uint8(0))
	assert.True(t, l.Thumbnail(0, 3).Bounds().Empty())
}

func TestThumbnailKeepsAspect(t *testing.T) {
	l := New(1, surface.NewRGBA(8, 4), 2)
	img := l.Surface().Image().(*image.RGBA)
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{G: 255, A: 255}), image.Point{}, draw.Src)

	th := l.Thumbnail(8, 8)
	assert.Equal(t, image.Rect(0, 0, 8, 8), th.Bounds())
	assert.Zero(t, th.RGBAAt(4, 0).A, "letterbox above")
	assert.Zero(t, th.RGBAAt(4, 7).A, "letterbox below")
	assert.Equal(t, uint8(255), th.RGBAAt(4, 4).A)

	tall := New(2, surface.NewRGBA(2, 8), 2)
	img = tall.Surface().Image().(*image.RGBA)
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{G: 255, A: 255}), image.Point{}, draw.Src)
	th = tall.Thumbnail(8, 8)
	assert.Zero(t, th.RGBAAt(0, 4).A, "pillarbox left")
	assert.Equal(t, uint8(255), th.RGBAAt(4, 4).A)
}

func TestSetSurfaceKeepsHistory(t *testing.T) {
	l := newLayer(4)
	paint(l, 0, color.RGBA{R: 255, A: 255})
	depth := l.UndoDepth()

	bigger := surface.NewRGBA(10, 10)
	require.NoError(t, bigger.PutPixels(l.Surface().Pixels(), 8, 8))
	l.SetSurface(bigger)
	assert.Same(t, bigger, l.Surface())
	assert.Equal(t, depth, l.UndoDepth())

	require.True(t, l.Undo())
	assert.Zero(t, bigger.RGBA().RGBAAt(0, 0).A)
}
