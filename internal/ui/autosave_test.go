package ui

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rakugaki/internal/engine"
	"rakugaki/internal/serializer"
	"rakugaki/internal/store"
)

func newAutosave(t *testing.T) (*Autosave, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "rkgk.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewAutosave(st, serializer.New(nil, nil), nil), st
}

func TestAutosaveRestoresWorkingState(t *testing.T) {
	ctx := context.Background()
	a, _ := newAutosave(t)

	e1, err := engine.New(engine.Options{Width: 6, Height: 4, Title: "wip"})
	require.NoError(t, err)
	img := e1.AddLayer().Surface().Image().(*image.RGBA)
	draw.Draw(img, image.Rect(1, 1, 3, 3), image.NewUniform(color.RGBA{G: 255, A: 255}), image.Point{}, draw.Src)
	require.NoError(t, a.Save(ctx, serializer.NewDraft(e1)))

	e2, err := engine.New(engine.Options{Width: 2, Height: 2})
	require.NoError(t, err)
	d, err := a.Decode(ctx, e2)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.True(t, d.Report.OK())
	require.NoError(t, serializer.New(nil, nil).Apply(e2, d))

	w, h := e2.Size()
	assert.Equal(t, [2]int{6, 4}, [2]int{w, h})
	assert.Equal(t, "wip", e2.Title())
	assert.Equal(t, e1.Flatten().Pix, e2.Flatten().Pix)
}

func TestAutosaveEmptyAndCleared(t *testing.T) {
	ctx := context.Background()
	a, st := newAutosave(t)
	e, err := engine.New(engine.Options{Width: 2, Height: 2})
	require.NoError(t, err)

	d, err := a.Decode(ctx, e)
	require.NoError(t, err)
	assert.Nil(t, d)

	require.NoError(t, a.Save(ctx, serializer.NewDraft(e)))
	require.NoError(t, a.Clear(ctx))
	_, err = st.Load(ctx, store.AutosaveKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, a.Clear(ctx))
}

func TestAutosaveRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	a, st := newAutosave(t)
	require.NoError(t, st.Save(ctx, store.AutosaveKey, []byte("not a project")))

	e, err := engine.New(engine.Options{Width: 2, Height: 2})
	require.NoError(t, err)
	_, err = a.Decode(ctx, e)
	assert.ErrorIs(t, err, serializer.ErrBadMagic)
}
