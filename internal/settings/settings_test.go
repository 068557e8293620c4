package settings

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rakugaki/internal/brush"
	"rakugaki/internal/ids"
	"rakugaki/internal/texture"
)

func library(t *testing.T) *brush.Library {
	t.Helper()
	lib, err := brush.DefaultLibrary(ids.NewSequence())
	require.NoError(t, err)
	return lib
}

func TestCaptureApplyRoundTrip(t *testing.T) {
	src := library(t)
	pen, _ := src.Get("pen")
	require.NoError(t, pen.Compile(color.RGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xff}, 0.3))
	require.NoError(t, pen.SetSize(15))

	blob, err := Capture(src, pen).Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(blob), `"currentBrushName":"pen"`)
	assert.Contains(t, string(blob), `"color":"#123456"`)

	s, err := Parse(blob)
	require.NoError(t, err)
	dst := library(t)
	current, err := s.Apply(dst)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "pen", current.Name)
	assert.Equal(t, color.NRGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xff}, current.Color())
	assert.Equal(t, 0.3, current.Hardness())
	assert.Equal(t, 15.0, current.BaseSize)
	assert.True(t, current.Compiled())
}

func TestApplySkipsBadEntries(t *testing.T) {
	lib := library(t)
	s := Settings{
		CurrentBrushName: "gone",
		Brushes: []Brush{
			{Name: "pen", Color: "blue", Hardness: 0.5, Size: 3},
			{Name: "pencil", Color: "#ff0000", Hardness: 2, Size: 3},
			{Name: "marker", Color: "#00ff00", Hardness: 0.5, Size: 0},
			{Name: "stipple", Color: "#0000ff", Hardness: 0.5, Size: 9},
			{Name: "custom", Color: "#0000ff", Hardness: 0.5, Size: 9},
		},
	}
	current, err := s.Apply(lib)
	assert.Nil(t, current)
	require.Error(t, err)
	assert.ErrorIs(t, err, texture.ErrHardness)
	assert.ErrorIs(t, err, brush.ErrInvalid)

	stipple, _ := lib.Get("stipple")
	assert.Equal(t, color.NRGBA{B: 0xff, A: 0xff}, stipple.Color())
	assert.Equal(t, 9.0, stipple.BaseSize)

	pen, _ := lib.Get("pen")
	assert.Equal(t, color.NRGBA{A: 0xff}, pen.Color())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("{brushes"))
	assert.ErrorIs(t, err, ErrParse)
}

func TestCaptureEmptyLibrary(t *testing.T) {
	blob, err := Capture(brush.NewLibrary(), nil).Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"currentBrushName":"","brushes":[]}`, string(blob))
}
