package ui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"time"

	"fyne.io/fyne/v2"

	"rakugaki/internal/brush"
	"rakugaki/internal/engine"
	"rakugaki/internal/ids"
	"rakugaki/internal/layer"
	"rakugaki/internal/paper"
)

// NoPaper is the paper choice that detaches a layer's paper.
const NoPaper = "none"

// ViewScaler receives view scale changes, e.g. the remote input bridge.
type ViewScaler interface {
	SetViewScale(float64)
}

// Studio drives an engine from the UI goroutine: it polls input, renders
// frames into the board and applies toolbar actions.
type Studio struct {
	eng     *engine.Engine
	brushes *brush.Library
	papers  *paper.Library
	board   *BoardWidget
	scalers []ViewScaler
	log     *slog.Logger

	dirty    bool
	status   string
	OnStatus func(string)
	// OnLayers fires after the layer stack or current layer changes.
	OnLayers func()
}

func NewStudio(eng *engine.Engine, brushes *brush.Library, papers *paper.Library, log *slog.Logger) *Studio {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	w, h := eng.Size()
	s := &Studio{
		eng:     eng,
		brushes: brushes,
		papers:  papers,
		log:     log.With("component", "ui"),
		dirty:   true,
	}
	s.board = NewBoardWidget(eng, w, h, eng.ViewScale())
	eng.SetNoticeHandler(s.notice)
	if eng.Brush() == nil {
		if all := brushes.All(); len(all) > 0 {
			eng.SetBrush(all[0])
		}
	}
	return s
}

func (s *Studio) Engine() *engine.Engine { return s.eng }

func (s *Studio) Board() *BoardWidget { return s.board }

func (s *Studio) Brushes() *brush.Library { return s.brushes }

// AddViewScaler registers v and gives it the current scale.
func (s *Studio) AddViewScaler(v ViewScaler) {
	s.scalers = append(s.scalers, v)
	v.SetViewScale(s.eng.ViewScale())
}

func (s *Studio) notice(n engine.Notice) {
	switch n.Kind {
	case engine.NoticeHiddenLayer:
		s.setStatus(fmt.Sprintf("Layer %v is hidden", n.Layer))
	case engine.NoticeNoLayer:
		s.setStatus("Add a layer to draw")
	case engine.NoticeCaptureRequested:
		s.setStatus("Another pointer is drawing")
	}
}

func (s *Studio) setStatus(msg string) {
	s.status = msg
	if s.OnStatus != nil {
		s.OnStatus(msg)
	}
}

func (s *Studio) Status() string { return s.status }

// Invalidate forces the next Frame to re-render.
func (s *Studio) Invalidate() { s.dirty = true }

func (s *Studio) layersChanged() {
	s.dirty = true
	if s.OnLayers != nil {
		s.OnLayers()
	}
}

// Frame drains queued input and publishes a new frame when anything changed.
// It must run on the UI goroutine.
func (s *Studio) Frame() {
	if s.eng.Pending() > 0 {
		s.dirty = true
		if err := s.eng.Poll(); err != nil {
			s.log.Warn("input dropped", "err", err)
			s.setStatus(err.Error())
		}
	}
	if !s.dirty {
		return
	}
	s.dirty = false
	s.board.SetFrame(s.eng.Flatten())
}

// Run calls Frame at fps until ctx is done.
func (s *Studio) Run(ctx context.Context, fps int) {
	if fps <= 0 {
		fps = 60
	}
	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fyne.Do(s.Frame)
		}
	}
}

func (s *Studio) SelectBrush(name string) error {
	b, ok := s.brushes.Get(name)
	if !ok {
		return fmt.Errorf("%w: unknown brush %q", brush.ErrInvalid, name)
	}
	s.eng.SetBrush(b)
	return nil
}

// SetColor recompiles the active brush in c, keeping its hardness.
func (s *Studio) SetColor(c color.Color) error {
	b := s.eng.Brush()
	if b == nil {
		return engine.ErrNoBrush
	}
	return b.Compile(c, b.Hardness())
}

func (s *Studio) SetHardness(h float64) error {
	b := s.eng.Brush()
	if b == nil {
		return engine.ErrNoBrush
	}
	return b.Compile(b.Color(), h)
}

func (s *Studio) SetSize(size float64) error {
	b := s.eng.Brush()
	if b == nil {
		return engine.ErrNoBrush
	}
	return b.SetSize(size)
}

func (s *Studio) AddLayer() *layer.Layer {
	l := s.eng.AddLayer()
	s.eng.SetCurrentLayer(l.ID)
	s.layersChanged()
	return l
}

// RemoveCurrentLayer deletes the current layer and selects the one on top.
func (s *Studio) RemoveCurrentLayer() error {
	if err := s.eng.RemoveLayer(s.eng.CurrentLayerID()); err != nil {
		return err
	}
	if ls := s.eng.Layers(); len(ls) > 0 {
		s.eng.SetCurrentLayer(ls[len(ls)-1].ID)
	}
	s.layersChanged()
	return nil
}

func (s *Studio) SelectLayer(id ids.ID) error {
	if err := s.eng.SetCurrentLayer(id); err != nil {
		return err
	}
	s.layersChanged()
	return nil
}

// ToggleVisible flips the current layer's visibility.
func (s *Studio) ToggleVisible() error {
	l := s.eng.CurrentLayer()
	if l == nil {
		return engine.ErrNoLayer
	}
	l.SetVisible(!l.Visible())
	s.layersChanged()
	return nil
}

func (s *Studio) SetOpacity(o float64) error {
	l := s.eng.CurrentLayer()
	if l == nil {
		return engine.ErrNoLayer
	}
	if err := l.SetOpacity(o); err != nil {
		return err
	}
	s.dirty = true
	return nil
}

// PaperNames lists the paper choices, NoPaper first.
func (s *Studio) PaperNames() []string {
	return append([]string{NoPaper}, s.papers.Names()...)
}

// SetPaper puts the named paper under the current layer at strength.
func (s *Studio) SetPaper(name string, strength float64) error {
	id := s.eng.CurrentLayerID()
	if !id.Valid() {
		return engine.ErrNoLayer
	}
	s.dirty = true
	if name == NoPaper {
		return s.eng.DetachPaper(id)
	}
	p, ok := s.papers.Get(name)
	if !ok {
		return fmt.Errorf("unknown paper %q", name)
	}
	return s.eng.AttachPaper(id, p, strength)
}

func (s *Studio) Undo() bool { return s.travel(layer.Backward) }

func (s *Studio) Redo() bool { return s.travel(layer.Forward) }

func (s *Studio) travel(dir layer.Direction) bool {
	if !s.eng.HistoryTravel(dir) {
		return false
	}
	s.dirty = true
	return true
}

// SetViewScale changes how many screen units a canvas pixel takes.
func (s *Studio) SetViewScale(scale float64) error {
	if err := s.eng.SetViewScale(scale); err != nil {
		return err
	}
	w, h := s.eng.Size()
	s.board.SetCanvasSize(w, h, scale)
	for _, v := range s.scalers {
		v.SetViewScale(scale)
	}
	s.board.Refresh()
	return nil
}

// Resize changes the canvas size; refused mid-stroke.
func (s *Studio) Resize(w, h int) error {
	if err := s.eng.Resize(w, h); err != nil {
		if errors.Is(err, engine.ErrStrokeActive) {
			s.setStatus("Finish the stroke before resizing")
		}
		return err
	}
	s.board.SetCanvasSize(w, h, s.eng.ViewScale())
	s.board.Refresh()
	s.dirty = true
	return nil
}

// NewProject replaces the project with one blank layer at the current size
// under a fresh project id.
func (s *Studio) NewProject(title string) error {
	w, h := s.eng.Size()
	l := layer.New(s.eng.IDs().Next(), s.eng.NewLayerSurface(w, h), s.eng.HistoryDepth())
	if err := s.eng.ReplaceLayers([]*layer.Layer{l}, l.ID); err != nil {
		if errors.Is(err, engine.ErrStrokeActive) {
			s.setStatus("Finish the stroke before starting over")
		}
		return err
	}
	s.eng.SetProjectID(ids.NewProjectID())
	s.eng.SetTitle(title)
	s.Reloaded()
	return nil
}

// Reloaded resyncs the board after the engine's project was replaced.
func (s *Studio) Reloaded() {
	w, h := s.eng.Size()
	s.board.SetCanvasSize(w, h, s.eng.ViewScale())
	s.board.Refresh()
	s.layersChanged()
}
