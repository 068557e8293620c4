// Package serializer reads and writes the .rkgk project container.
//
// Layout, integers little-endian:
//
//	[4]  magic "RKGK"
//	[4]  uint32 header length N
//	[N]  JSON header
//	[..] sealed pixel blobs, one per layer, then the flattened composite
//
// Layer blobs are sealed with the user's password. The composite is sealed
// with AppTag so its preview stays readable without one.
//
// Key derivation and sealing are slow on purpose. NewDraft and Apply touch
// the engine and run on its goroutine; Seal and Decode may run on any other.
package serializer

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"rakugaki/internal/engine"
	"rakugaki/internal/paper"
	"rakugaki/internal/surface"
)

var (
	ErrBadMagic           = errors.New("serializer: not an rkgk container")
	ErrTruncated          = errors.New("serializer: container truncated")
	ErrBadHeader          = errors.New("serializer: malformed header")
	ErrUnsupportedVersion = errors.New("serializer: unsupported format version")
	ErrUnknownScheme      = errors.New("serializer: unknown encryption scheme")
	ErrDecrypt            = errors.New("serializer: decryption failed")
	ErrRecord             = errors.New("serializer: invalid record")
)

// Report describes how a Load went. Errors and Warnings are recoverable;
// the engine always ends up with a usable stack.
type Report struct {
	Loaded   int
	Errors   []error
	Warnings []string
	// Degraded is set when the stack shown is not the one that was saved.
	Degraded bool
}

func (r *Report) OK() bool { return len(r.Errors) == 0 && !r.Degraded }

// Serializer converts engines to and from containers.
type Serializer struct {
	papers *paper.Library
	log    *slog.Logger
	random io.Reader
}

// New returns a serializer resolving paper references against papers. A nil
// library drops papers on load.
func New(papers *paper.Library, log *slog.Logger) *Serializer {
	if papers == nil {
		papers = paper.NewLibrary()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Serializer{papers: papers, log: log.With("component", "serializer"), random: defaultRandom}
}

// Draft is a copy of everything a container holds, before sealing.
type Draft struct {
	header Header
	layers [][]byte
	final  []byte
}

// NewDraft copies the engine's project. Pixels are stored straight.
func NewDraft(e *engine.Engine) *Draft {
	w, h := e.Size()
	d := &Draft{header: Header{
		Version:    Version,
		Title:      e.Title(),
		Encryption: Encryption{Scheme: Scheme},
		Layers:     []Record{},
		Project:    e.ProjectID(),
		Canvas:     &Canvas{Width: w, Height: h},
	}}
	if id := e.CurrentLayerID(); id.Valid() {
		d.header.CurrentLayerID = formatLayerID(id)
	}
	for _, l := range e.Layers() {
		b := l.Surface().Bounds()
		rec := Record{
			ID:      formatLayerID(l.ID),
			Name:    l.Name,
			Visible: l.Visible(),
			Opacity: l.Opacity(),
			Width:   b.Dx(),
			Height:  b.Dy(),
		}
		if p := l.Paper(); p != nil {
			rec.Paper = &PaperRef{Name: p.Paper().Name, Strength: p.Strength()}
		}
		pix := l.Surface().Pixels()
		surface.Straighten(pix)
		d.header.Layers = append(d.header.Layers, rec)
		d.layers = append(d.layers, pix)
	}
	flat := e.Flatten()
	d.final = surface.Pack(flat)
	surface.Straighten(d.final)
	d.header.FinalImage = Record{Visible: true, Opacity: 1, Width: flat.Rect.Dx(), Height: flat.Rect.Dy()}
	return d
}

// Serialize seals every layer with password and the composite with AppTag.
func (s *Serializer) Serialize(ctx context.Context, e *engine.Engine, password string) ([]byte, error) {
	return s.Seal(ctx, NewDraft(e), password)
}

// Seal encrypts a draft into a container. d is not modified.
func (s *Serializer) Seal(ctx context.Context, d *Draft, password string) ([]byte, error) {
	hdr := d.header
	hdr.Layers = append([]Record(nil), d.header.Layers...)
	var body bytes.Buffer

	for i := range hdr.Layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.sealInto(&body, &hdr.Layers[i], password, d.layers[i]); err != nil {
			return nil, fmt.Errorf("layer %s: %w", hdr.Layers[i].ID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.sealInto(&body, &hdr.FinalImage, AppTag, d.final); err != nil {
		return nil, fmt.Errorf("composite: %w", err)
	}

	js, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	out := bytes.NewBuffer(make([]byte, 0, prefixSize+len(js)+body.Len()))
	out.WriteString(Magic)
	out.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(js))))
	out.Write(js)
	out.Write(body.Bytes())

	s.log.Info("project serialized", "project", hdr.Project, "layers", len(hdr.Layers), "bytes", out.Len())
	return out.Bytes(), nil
}

func (s *Serializer) sealInto(body *bytes.Buffer, rec *Record, password string, pix []byte) error {
	salt, iv, sealed, err := seal(s.random, password, pix)
	if err != nil {
		return err
	}
	rec.Salt, rec.IV = salt, iv
	rec.Offset, rec.Length = int64(body.Len()), int64(len(sealed))
	body.Write(sealed)
	return nil
}
