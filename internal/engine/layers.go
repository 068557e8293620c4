package engine

import (
	"fmt"
	"slices"

	"rakugaki/internal/ids"
	"rakugaki/internal/layer"
	"rakugaki/internal/paper"
)

// AddLayer appends a blank layer on top of the stack. It becomes current if
// no layer was.
func (e *Engine) AddLayer() *layer.Layer {
	l := layer.New(e.ids.Next(), e.newSurface(e.width, e.height), e.history)
	e.layers = append(e.layers, l)
	if !e.current.Valid() {
		e.current = l.ID
	}
	e.log.Debug("layer added", "layer", l.ID, "count", len(e.layers))
	return l
}

// RemoveLayer deletes a layer and its history. Removing the current layer
// leaves no current layer; the caller picks the next one.
func (e *Engine) RemoveLayer(id ids.ID) error {
	i := e.layerIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %v", ErrNoLayer, id)
	}
	e.layers = slices.Delete(e.layers, i, i+1)
	if e.current == id {
		e.current = 0
	}
	e.log.Debug("layer removed", "layer", id, "count", len(e.layers))
	return nil
}

// MoveLayer moves a layer to index in paint order, clamped to the stack.
func (e *Engine) MoveLayer(id ids.ID, index int) error {
	i := e.layerIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %v", ErrNoLayer, id)
	}
	l := e.layers[i]
	e.layers = slices.Delete(e.layers, i, i+1)
	index = max(0, min(index, len(e.layers)))
	e.layers = slices.Insert(e.layers, index, l)
	return nil
}

// Layers returns the stack back to front.
func (e *Engine) Layers() []*layer.Layer {
	return append([]*layer.Layer(nil), e.layers...)
}

func (e *Engine) Layer(id ids.ID) (*layer.Layer, bool) {
	if i := e.layerIndex(id); i >= 0 {
		return e.layers[i], true
	}
	return nil, false
}

// CurrentLayer returns the layer strokes go to, or nil.
func (e *Engine) CurrentLayer() *layer.Layer {
	l, _ := e.Layer(e.current)
	return l
}

func (e *Engine) CurrentLayerID() ids.ID { return e.current }

func (e *Engine) SetCurrentLayer(id ids.ID) error {
	if e.layerIndex(id) < 0 {
		return fmt.Errorf("%w: %v", ErrNoLayer, id)
	}
	e.current = id
	return nil
}

// ReplaceLayers swaps in a whole stack at the current canvas size.
func (e *Engine) ReplaceLayers(layers []*layer.Layer, active ids.ID) error {
	return e.Restore(e.width, e.height, layers, active)
}

// Restore replaces the canvas size and the whole stack at once, e.g. after
// loading a project. The layers must already be w×h. Ids are reserved with
// the generator. active becomes current when present, otherwise the topmost
// layer does. On error nothing changes.
func (e *Engine) Restore(w, h int, layers []*layer.Layer, active ids.ID) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrSize, w, h)
	}
	if e.machine.Drawing() {
		return ErrStrokeActive
	}
	for _, l := range layers {
		if b := l.Surface().Bounds(); b.Dx() != w || b.Dy() != h {
			return fmt.Errorf("%w: layer %v is %dx%d, canvas %dx%d", ErrSize, l.ID, b.Dx(), b.Dy(), w, h)
		}
	}
	for _, l := range layers {
		e.ids.Observe(l.ID)
	}
	if w != e.width || h != e.height {
		e.display.Resize(w, h)
		e.width, e.height = w, h
	}
	e.layers = append([]*layer.Layer(nil), layers...)
	e.current = 0
	if e.layerIndex(active) >= 0 {
		e.current = active
	} else if n := len(e.layers); n > 0 {
		e.current = e.layers[n-1].ID
	}
	return nil
}

// AttachPaper puts p under a layer at the given strength, sizing its mask
// to the canvas. Other layers using p keep their own strength.
func (e *Engine) AttachPaper(id ids.ID, p *paper.Paper, strength float64) error {
	l, ok := e.Layer(id)
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoLayer, id)
	}
	b, err := p.Bind(e.width, e.height, strength)
	if err != nil {
		return err
	}
	l.SetPaper(b)
	return nil
}

// DetachPaper removes a layer's paper.
func (e *Engine) DetachPaper(id ids.ID) error {
	l, ok := e.Layer(id)
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoLayer, id)
	}
	l.SetPaper(nil)
	return nil
}
