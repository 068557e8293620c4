package surface

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/draw"
)

// Fit scales src to fit inside w×h keeping its aspect ratio and centres it
// on a transparent background.
func Fit(src image.Image, w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, max(w, 0), max(h, 0)))
	sb := src.Bounds()
	if out.Rect.Empty() || sb.Empty() {
		return out
	}
	srcAR := float64(sb.Dx()) / float64(sb.Dy())
	dw, dh := float64(w), float64(h)
	if srcAR > dw/dh {
		dh = dw / srcAR
	} else {
		dw = dh * srcAR
	}
	fw := max(1, int(math.Round(dw)))
	fh := max(1, int(math.Round(dh)))
	scaled := transform.Resize(clone.AsRGBA(src), fw, fh, transform.Linear)
	at := image.Pt((w-fw)/2, (h-fh)/2)
	draw.Draw(out, scaled.Bounds().Add(at), scaled, image.Point{}, draw.Src)
	return out
}

// Straighten converts packed premultiplied RGBA to straight alpha in place.
// Premultiply inverts it exactly for every valid premultiplied pixel.
func Straighten(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		a := uint32(pix[i+3])
		if a == 0 || a == 0xff {
			continue
		}
		for c := i; c < i+3; c++ {
			pix[c] = uint8(min(0xff, (uint32(pix[c])*0xff+a/2)/a))
		}
	}
}

// Premultiply converts packed straight-alpha RGBA to premultiplied in place.
func Premultiply(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		a := uint32(pix[i+3])
		if a == 0xff {
			continue
		}
		for c := i; c < i+3; c++ {
			pix[c] = uint8((uint32(pix[c])*a + 0x7f) / 0xff)
		}
	}
}
