// Package export writes the flattened composite to interchange formats.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/draw"
)

var ErrFormat = errors.New("export: unsupported format")

// pointsPerPixel maps canvas pixels onto a 96 dpi page.
const pointsPerPixel = 72.0 / 96.0

// PDF writes img as a single page sized to it, flattened onto white.
func PDF(w io.Writer, img image.Image, title string) error {
	b := img.Bounds()
	if b.Empty() {
		return fmt.Errorf("export pdf: empty image")
	}
	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, onWhite(img)); err != nil {
		return fmt.Errorf("export pdf: encode page: %w", err)
	}

	wd, ht := float64(b.Dx())*pointsPerPixel, float64(b.Dy())*pointsPerPixel
	orientation := "P"
	if wd > ht {
		orientation = "L"
	}
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: wd, Ht: ht},
	})
	p.SetMargins(0, 0, 0)
	p.SetAutoPageBreak(false, 0)
	p.SetTitle(title, true)
	p.SetCreator("rakugaki", true)
	p.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.RegisterImageOptionsReader("canvas", opts, &buf)
	p.ImageOptions("canvas", 0, 0, wd, ht, false, opts, 0, "")
	if err := p.Output(w); err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	return nil
}

// PNG writes img losslessly, alpha included.
func PNG(w io.Writer, img image.Image) error {
	return imgio.PNGEncoder()(w, img)
}

// JPEG flattens img onto white.
func JPEG(w io.Writer, img image.Image, quality int) error {
	return imgio.JPEGEncoder(quality)(w, onWhite(img))
}

// Supported reports whether Write handles ext.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".png", ".jpg", ".jpeg", ".pdf":
		return true
	}
	return false
}

// Write encodes img in the format named by ext (".png", ".jpg" or ".pdf").
func Write(w io.Writer, ext string, img image.Image, title string) error {
	switch strings.ToLower(ext) {
	case ".png":
		return PNG(w, img)
	case ".jpg", ".jpeg":
		return JPEG(w, img, 92)
	case ".pdf":
		return PDF(w, img, title)
	}
	return fmt.Errorf("%w: %q", ErrFormat, ext)
}

// File writes img to path in the format its extension names.
func File(path string, img image.Image, title string) error {
	ext := filepath.Ext(path)
	if !Supported(ext) {
		return fmt.Errorf("%w: %q", ErrFormat, ext)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, ext, img, title); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func onWhite(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}
