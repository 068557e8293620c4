package serializer

import (
	"context"
	"fmt"

	"rakugaki/internal/engine"
	"rakugaki/internal/ids"
	"rakugaki/internal/layer"
	"rakugaki/internal/surface"
)

// Decoded is a container opened into detached layers, ready for Apply.
type Decoded struct {
	Header        *Header
	Width, Height int
	Layers        []*layer.Layer
	Active        ids.ID
	Report        *Report
}

// Load replaces e's project with the container's. Malformed containers fail
// with an error and leave e untouched. Layers that cannot be opened are
// reported; if any failed, the public composite stands in for the whole
// stack, and if that fails too a blank layer does.
func (s *Serializer) Load(ctx context.Context, e *engine.Engine, blob []byte, password string) (*Report, error) {
	if e.Drawing() {
		return nil, engine.ErrStrokeActive
	}
	d, err := s.Decode(ctx, e, blob, password)
	if err != nil {
		return nil, err
	}
	if err := s.Apply(e, d); err != nil {
		return nil, err
	}
	return d.Report, nil
}

// Decode opens a container into layers built with e's surface factory,
// history depth and id generator. It does not modify e's project, and only
// uses the parts of e that are safe off its goroutine.
func (s *Serializer) Decode(ctx context.Context, e *engine.Engine, blob []byte, password string) (*Decoded, error) {
	hdr, body, err := ReadHeader(blob)
	if err != nil {
		return nil, err
	}
	w, h := hdr.Size()
	d := &Decoded{Header: hdr, Width: w, Height: h, Report: &Report{}}
	rep := d.Report

	layerIDs := s.assignIDs(e.IDs(), hdr.Layers)
	for i := range hdr.Layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := &hdr.Layers[i]
		l, err := s.restore(e, layerIDs[i], w, h, rec, body, password, rep)
		if err != nil {
			s.log.Warn("layer skipped", "layer", rec.ID, "err", err)
			rep.Errors = append(rep.Errors, fmt.Errorf("layer %s: %w", rec.ID, err))
			continue
		}
		d.Layers = append(d.Layers, l)
		if rec.ID != "" && rec.ID == hdr.CurrentLayerID {
			d.Active = l.ID
		}
	}
	rep.Loaded = len(d.Layers)

	if len(rep.Errors) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep.Degraded = true
		fallback := newLayer(e, e.IDs().Next(), w, h)
		fallback.Name = "Recovered"
		img, err := hdr.FinalImage.decode(body, AppTag)
		if err == nil {
			err = fallback.Surface().PutPixels(surface.Pack(img), img.Rect.Dx(), img.Rect.Dy())
		}
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Errorf("composite: %w", err))
			rep.Warnings = append(rep.Warnings, "no layer could be recovered; starting from a blank layer")
		} else {
			rep.Warnings = append(rep.Warnings, "layers replaced by the flattened preview")
		}
		fallback.ResetHistory()
		d.Layers = []*layer.Layer{fallback}
		d.Active = fallback.ID
	}
	return d, nil
}

// Apply installs a decoded project on e. It runs on e's goroutine and
// either replaces the whole project or changes nothing.
func (s *Serializer) Apply(e *engine.Engine, d *Decoded) error {
	if err := e.Restore(d.Width, d.Height, d.Layers, d.Active); err != nil {
		return err
	}
	if ids.ValidProjectID(d.Header.Project) {
		e.SetProjectID(d.Header.Project)
	} else {
		e.SetProjectID(ids.NewProjectID())
	}
	e.SetTitle(d.Header.Title)

	rep := d.Report
	s.log.Info("project loaded", "project", e.ProjectID(), "layers", rep.Loaded,
		"errors", len(rep.Errors), "degraded", rep.Degraded)
	return nil
}

// assignIDs keeps ids this package wrote and gives every other record,
// including duplicates, a fresh one.
func (s *Serializer) assignIDs(gen ids.Generator, recs []Record) []ids.ID {
	out := make([]ids.ID, len(recs))
	seen := make(map[ids.ID]bool, len(recs))
	for i, rec := range recs {
		if id, ok := parseLayerID(rec.ID); ok && !seen[id] {
			gen.Observe(id)
			out[i] = id
			seen[id] = true
		}
	}
	for i := range out {
		if !out[i].Valid() {
			out[i] = gen.Next()
		}
	}
	return out
}

func newLayer(e *engine.Engine, id ids.ID, w, h int) *layer.Layer {
	return layer.New(id, e.NewLayerSurface(w, h), e.HistoryDepth())
}

func (s *Serializer) restore(e *engine.Engine, id ids.ID, w, h int, rec *Record, body []byte, password string, rep *Report) (*layer.Layer, error) {
	pix, err := rec.open(body, password)
	if err != nil {
		return nil, err
	}
	l := newLayer(e, id, w, h)
	if err := l.Surface().PutPixels(pix, rec.Width, rec.Height); err != nil {
		return nil, err
	}
	l.ResetHistory()
	if rec.Name != "" {
		l.Name = rec.Name
	}
	l.SetVisible(rec.Visible)
	if err := l.SetOpacity(rec.Opacity); err != nil {
		return nil, err
	}
	if rec.Paper != nil {
		s.attachPaper(l, w, h, rec.Paper, rep)
	}
	return l, nil
}

func (s *Serializer) attachPaper(l *layer.Layer, w, h int, ref *PaperRef, rep *Report) {
	p, ok := s.papers.Get(ref.Name)
	if !ok {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("layer %v: unknown paper %q dropped", l.ID, ref.Name))
		return
	}
	b, err := p.Bind(w, h, ref.Strength)
	if err != nil {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("layer %v: paper %q: %v", l.ID, ref.Name, err))
		return
	}
	l.SetPaper(b)
}
