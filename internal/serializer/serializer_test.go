package serializer

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rakugaki/internal/engine"
	"rakugaki/internal/ids"
	"rakugaki/internal/layer"
	"rakugaki/internal/paper"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func fill(l *layer.Layer, c color.Color) {
	img := l.Surface().Image().(*image.RGBA)
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

func newEngine(t *testing.T, w, h int) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Options{Width: w, Height: h, History: 4})
	require.NoError(t, err)
	return e
}

// project builds the 10×10 red, red, blue stack.
func project(t *testing.T) *engine.Engine {
	t.Helper()
	e := newEngine(t, 10, 10)
	e.SetTitle("study")
	fill(e.AddLayer(), red)
	fill(e.AddLayer(), red)
	fill(e.AddLayer(), blue)
	return e
}

func serialize(t *testing.T, e *engine.Engine, password string) []byte {
	t.Helper()
	blob, err := New(nil, nil).Serialize(context.Background(), e, password)
	require.NoError(t, err)
	return blob
}

// rewrite re-encodes the header of blob after fn edits it.
func rewrite(t *testing.T, blob []byte, fn func(*Header)) []byte {
	t.Helper()
	hdr, body, err := ReadHeader(blob)
	require.NoError(t, err)
	fn(hdr)
	js, err := json.Marshal(hdr)
	require.NoError(t, err)
	out := append([]byte(Magic), binary.LittleEndian.AppendUint32(nil, uint32(len(js)))...)
	return append(append(out, js...), body...)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	e1 := project(t)
	layers := e1.Layers()
	layers[1].SetVisible(false)
	require.NoError(t, layers[2].SetOpacity(0.25))
	layers[2].Name = "sky"
	// premultiplied, half covered
	layers[2].Surface().Image().(*image.RGBA).SetRGBA(3, 3, color.RGBA{R: 40, B: 90, A: 128})
	grain, _ := paper.DefaultLibrary(e1.IDs()).Get("grain")
	require.NoError(t, e1.AttachPaper(layers[0].ID, grain, 0.7))
	require.NoError(t, e1.SetCurrentLayer(layers[1].ID))

	s := New(paper.DefaultLibrary(ids.NewSequence()), nil)
	blob, err := s.Serialize(ctx, e1, "abc")
	require.NoError(t, err)

	e2 := newEngine(t, 3, 3)
	rep, err := s.Load(ctx, e2, blob, "abc")
	require.NoError(t, err)
	assert.True(t, rep.OK())
	assert.Equal(t, 3, rep.Loaded)
	assert.Empty(t, rep.Warnings)

	w, h := e2.Size()
	assert.Equal(t, [2]int{10, 10}, [2]int{w, h})
	assert.Equal(t, "study", e2.Title())
	assert.Equal(t, e1.ProjectID(), e2.ProjectID())
	assert.Equal(t, layers[1].ID, e2.CurrentLayerID())

	got := e2.Layers()
	require.Len(t, got, 3)
	for i, want := range layers {
		assert.Equal(t, want.ID, got[i].ID)
		assert.Equal(t, want.Name, got[i].Name)
		assert.Equal(t, want.Visible(), got[i].Visible())
		assert.Equal(t, want.Opacity(), got[i].Opacity())
		assert.Equal(t, want.Surface().Pixels(), got[i].Surface().Pixels())
		assert.Equal(t, 1, got[i].UndoDepth())
	}
	require.NotNil(t, got[0].Paper())
	assert.Equal(t, "grain", got[0].Paper().Paper().Name)
	assert.Equal(t, 0.7, got[0].Paper().Strength())
	assert.Nil(t, got[1].Paper())

	assert.Greater(t, e2.AddLayer().ID, layers[2].ID)
}

func TestSharedPaperStrengthRoundTrips(t *testing.T) {
	ctx := context.Background()
	papers := paper.DefaultLibrary(ids.NewSequence())
	grain, _ := papers.Get("grain")

	e1 := project(t)
	layers := e1.Layers()
	require.NoError(t, e1.AttachPaper(layers[0].ID, grain, 0.2))
	require.NoError(t, e1.AttachPaper(layers[1].ID, grain, 0.9))
	assert.Equal(t, 0.2, layers[0].Paper().Strength())

	s := New(papers, nil)
	blob, err := s.Serialize(ctx, e1, "")
	require.NoError(t, err)
	hdr, _, err := ReadHeader(blob)
	require.NoError(t, err)
	assert.Equal(t, 0.2, hdr.Layers[0].Paper.Strength)
	assert.Equal(t, 0.9, hdr.Layers[1].Paper.Strength)

	e2 := newEngine(t, 10, 10)
	_, err = s.Load(ctx, e2, blob, "")
	require.NoError(t, err)
	got := e2.Layers()
	assert.Equal(t, 0.2, got[0].Paper().Strength())
	assert.Equal(t, 0.9, got[1].Paper().Strength())
	assert.Equal(t, layers[0].Paper().Mask().Pix, got[0].Paper().Mask().Pix)
	assert.Equal(t, layers[1].Paper().Mask().Pix, got[1].Paper().Mask().Pix)
}

func TestHeaderSchema(t *testing.T) {
	e := project(t)
	blob := serialize(t, e, "abc")
	n := binary.LittleEndian.Uint32(blob[4:8])

	var raw map[string]any
	require.NoError(t, json.Unmarshal(blob[8:8+n], &raw))
	assert.EqualValues(t, 2, raw["version"])
	assert.Equal(t, "study", raw["title"])
	assert.Equal(t, map[string]any{"scheme": "aes-gcm-pbkdf2-v1"}, raw["encryption"])
	assert.Equal(t, "layer."+e.CurrentLayerID().String(), raw["currentLayerId"])
	require.Contains(t, raw, "finalImage")

	layers := raw["layers"].([]any)
	require.Len(t, layers, 3)
	first := layers[0].(map[string]any)
	for _, key := range []string{"id", "isVisible", "opacity", "width", "height", "iv", "salt", "offset", "length"} {
		assert.Contains(t, first, key)
	}
	assert.Len(t, first["iv"].([]any), 12)
	assert.Len(t, first["salt"].([]any), 16)
	assert.IsType(t, float64(0), first["iv"].([]any)[0])
}

// foreignContainer writes a container the way other rkgk writers do: no
// canvas or project fields, opaque string ids, straight pixels.
func foreignContainer(t *testing.T, password string, pix [][]byte, w, h int) []byte {
	t.Helper()
	hdr := map[string]any{
		"version":        2,
		"title":          nil,
		"currentLayerId": "layer.QWERTY",
		"encryption":     map[string]any{"scheme": Scheme},
	}
	var body bytes.Buffer
	recs := []map[string]any{}
	put := func(plain []byte, pw string) map[string]any {
		salt, iv, sealed, err := seal(rand.Reader, pw, plain)
		require.NoError(t, err)
		rec := map[string]any{
			"width": w, "height": h,
			"iv": Bytes(iv), "salt": Bytes(salt),
			"offset": body.Len(), "length": len(sealed),
		}
		body.Write(sealed)
		return rec
	}
	for i, p := range pix {
		rec := put(p, password)
		rec["id"] = []string{"layer.ASDFGH", "layer.QWERTY"}[i]
		rec["isVisible"] = true
		rec["opacity"] = 1
		recs = append(recs, rec)
	}
	hdr["layers"] = recs
	hdr["finalImage"] = put(pix[len(pix)-1], AppTag)

	js, err := json.Marshal(hdr)
	require.NoError(t, err)
	out := append([]byte(Magic), binary.LittleEndian.AppendUint32(nil, uint32(len(js)))...)
	return append(append(out, js...), body.Bytes()...)
}

func TestLoadsForeignContainer(t *testing.T) {
	opaque := bytes.Repeat([]byte{0, 0, 255, 255}, 4)
	half := bytes.Repeat([]byte{255, 0, 0, 128}, 4)
	blob := foreignContainer(t, "pw", [][]byte{opaque, half}, 2, 2)

	e := newEngine(t, 5, 5)
	e.AddLayer()
	rep, err := New(nil, nil).Load(context.Background(), e, blob, "pw")
	require.NoError(t, err)
	assert.True(t, rep.OK(), "%v", rep.Errors)

	w, h := e.Size()
	assert.Equal(t, [2]int{2, 2}, [2]int{w, h})
	got := e.Layers()
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Equal(t, got[1].ID, e.CurrentLayerID())
	assert.Empty(t, e.Title())
	assert.True(t, ids.ValidProjectID(e.ProjectID()))

	px := got[1].Surface().Image().(*image.RGBA).RGBAAt(1, 1)
	assert.Equal(t, color.RGBA{R: 128, A: 128}, px, "straight pixels are premultiplied on load")
	assert.Equal(t, opaque, got[0].Surface().Pixels())
}

func TestWrongPasswordFallsBackToComposite(t *testing.T) {
	e1 := project(t)
	want := e1.Flatten()
	blob := serialize(t, e1, "abc")

	e2 := newEngine(t, 10, 10)
	rep, err := New(nil, nil).Load(context.Background(), e2, blob, "xyz")
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Loaded)
	assert.Len(t, rep.Errors, 3)
	for _, err := range rep.Errors {
		assert.ErrorIs(t, err, ErrDecrypt)
	}
	assert.True(t, rep.Degraded)
	assert.NotEmpty(t, rep.Warnings)

	got := e2.Layers()
	require.Len(t, got, 1)
	assert.Equal(t, got[0].ID, e2.CurrentLayerID())
	assert.Equal(t, want.Pix, got[0].Surface().Pixels())
	assert.Equal(t, blue, want.RGBAAt(4, 4))
}

func TestCorruptLayerIsReported(t *testing.T) {
	e1 := project(t)
	blob := serialize(t, e1, "abc")
	hdr, body, err := ReadHeader(blob)
	require.NoError(t, err)
	body[hdr.Layers[1].Offset+3] ^= 0xff

	e2 := newEngine(t, 10, 10)
	rep, err := New(nil, nil).Load(context.Background(), e2, blob, "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Loaded)
	require.Len(t, rep.Errors, 1)
	assert.ErrorIs(t, rep.Errors[0], ErrDecrypt)
	assert.True(t, rep.Degraded)
	assert.Len(t, e2.Layers(), 1)
}

func TestBlankWhenCompositeLost(t *testing.T) {
	blob := serialize(t, project(t), "abc")
	hdr, body, err := ReadHeader(blob)
	require.NoError(t, err)
	body[hdr.FinalImage.Offset] ^= 0xff

	e2 := newEngine(t, 10, 10)
	rep, err := New(nil, nil).Load(context.Background(), e2, blob, "xyz")
	require.NoError(t, err)
	assert.Len(t, rep.Errors, 4)
	assert.True(t, rep.Degraded)

	got := e2.Layers()
	require.Len(t, got, 1)
	assert.Equal(t, make([]byte, 10*10*4), got[0].Surface().Pixels())
}

func TestRecordOutOfRange(t *testing.T) {
	blob := rewrite(t, serialize(t, project(t), "abc"), func(h *Header) {
		h.Layers[0].Length = 1 << 30
	})
	e2 := newEngine(t, 10, 10)
	rep, err := New(nil, nil).Load(context.Background(), e2, blob, "abc")
	require.NoError(t, err)
	require.Len(t, rep.Errors, 1)
	assert.ErrorIs(t, rep.Errors[0], ErrRecord)
}

func TestHugeRecordIsReported(t *testing.T) {
	blob := rewrite(t, serialize(t, project(t), "abc"), func(h *Header) {
		h.Layers[1].Width, h.Layers[1].Height = 1<<24, 1<<24
	})
	e2 := newEngine(t, 10, 10)
	rep, err := New(nil, nil).Load(context.Background(), e2, blob, "abc")
	require.NoError(t, err)
	require.Len(t, rep.Errors, 1)
	assert.ErrorIs(t, rep.Errors[0], ErrRecord)
	assert.True(t, rep.Degraded)
}

func TestCancelledLoadLeavesEngineUntouched(t *testing.T) {
	blob := serialize(t, project(t), "abc")

	e := newEngine(t, 3, 3)
	keep := e.AddLayer()
	fill(keep, red)
	before := keep.Surface().Pixels()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil, nil).Load(ctx, e, blob, "abc")
	assert.ErrorIs(t, err, context.Canceled)

	w, h := e.Size()
	assert.Equal(t, [2]int{3, 3}, [2]int{w, h})
	assert.Equal(t, []*layer.Layer{keep}, e.Layers())
	assert.Equal(t, before, keep.Surface().Pixels())
}

func TestDecodeThenApply(t *testing.T) {
	e1 := project(t)
	blob := serialize(t, e1, "abc")

	e2 := newEngine(t, 3, 3)
	keep := e2.AddLayer()
	s := New(nil, nil)
	d, err := s.Decode(context.Background(), e2, blob, "abc")
	require.NoError(t, err)
	assert.Equal(t, []*layer.Layer{keep}, e2.Layers(), "decoding does not touch the project")
	assert.Len(t, d.Layers, 3)

	require.NoError(t, s.Apply(e2, d))
	w, h := e2.Size()
	assert.Equal(t, [2]int{10, 10}, [2]int{w, h})
	assert.Equal(t, e1.Flatten().Pix, e2.Flatten().Pix)
}

func TestUnknownPaperIsWarning(t *testing.T) {
	e1 := project(t)
	p := paper.New(e1.IDs().Next(), "vellum", paper.Weave{})
	require.NoError(t, e1.AttachPaper(e1.Layers()[0].ID, p, 0.5))
	blob := serialize(t, e1, "")

	e2 := newEngine(t, 10, 10)
	rep, err := New(paper.DefaultLibrary(ids.NewSequence()), nil).Load(context.Background(), e2, blob, "")
	require.NoError(t, err)
	assert.Empty(t, rep.Errors)
	assert.False(t, rep.Degraded)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "vellum")
	assert.Nil(t, e2.Layers()[0].Paper())
}

func TestFatalContainerErrors(t *testing.T) {
	blob := serialize(t, project(t), "abc")

	tests := []struct {
		name string
		blob []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"short magic", []byte("RK"), ErrTruncated},
		{"bad magic", append([]byte("PNG!"), blob[4:]...), ErrBadMagic},
		{"header cut", blob[:20], ErrTruncated},
		{"bad json", append([]byte("RKGK\x02\x00\x00\x00"), '{', 'x'), ErrBadHeader},
		{"future version", rewrite(t, blob, func(h *Header) { h.Version = 3 }), ErrUnsupportedVersion},
		{"unknown scheme", rewrite(t, blob, func(h *Header) { h.Encryption.Scheme = "rot13" }), ErrUnknownScheme},
		{"no canvas", rewrite(t, blob, func(h *Header) { h.Canvas.Width = 0 }), ErrBadHeader},
		{"huge canvas", rewrite(t, blob, func(h *Header) { h.Canvas = &Canvas{Width: 1 << 24, Height: 1 << 24} }), ErrBadHeader},
		{"huge final image", rewrite(t, blob, func(h *Header) {
			h.Canvas = nil
			h.FinalImage.Width, h.FinalImage.Height = 1<<24, 1<<24
		}), ErrBadHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, 2, 2)
			keep := e.AddLayer()
			_, err := New(nil, nil).Load(context.Background(), e, tt.blob, "abc")
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, []*layer.Layer{keep}, e.Layers())
			w, h := e.Size()
			assert.Equal(t, [2]int{2, 2}, [2]int{w, h})
		})
	}
}

func TestReadPreview(t *testing.T) {
	e1 := project(t)
	blob := serialize(t, e1, "secret")

	img, hdr, err := ReadPreview(blob)
	require.NoError(t, err)
	assert.Equal(t, e1.Flatten().Pix, img.Pix)
	assert.Equal(t, "study", hdr.Title)
	assert.Len(t, hdr.Layers, 3)
}

func TestSerializeHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil, nil).Serialize(ctx, project(t), "abc")
	assert.ErrorIs(t, err, context.Canceled)
}
