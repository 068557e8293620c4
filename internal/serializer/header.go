package serializer

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"strconv"
	"strings"

	"rakugaki/internal/ids"
	"rakugaki/internal/surface"
)

const (
	Magic   = "RKGK"
	Version = 2

	// MaxCanvasPixels bounds canvas and record sizes read from a container.
	MaxCanvasPixels = 1 << 26

	prefixSize    = len(Magic) + 4
	layerIDPrefix = "layer."
)

// Bytes is a byte string encoded as a JSON array of numbers.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	nums := make([]int, len(b))
	for i, v := range b {
		nums[i] = int(v)
	}
	return json.Marshal(nums)
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	out := make(Bytes, len(nums))
	for i, n := range nums {
		if n < 0 || n > 0xff {
			return fmt.Errorf("byte %d out of range: %d", i, n)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}

// PaperRef names a library paper and the strength it was applied at.
type PaperRef struct {
	Name     string  `json:"name"`
	Strength float64 `json:"strength"`
}

// Record locates and describes one sealed pixel blob. Pixels are straight
// (non-premultiplied) RGBA.
type Record struct {
	ID      string    `json:"id,omitempty"`
	Name    string    `json:"name,omitempty"`
	Visible bool      `json:"isVisible"`
	Opacity float64   `json:"opacity"`
	Paper   *PaperRef `json:"paper,omitempty"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	IV      Bytes     `json:"iv"`
	Salt    Bytes     `json:"salt"`
	Offset  int64     `json:"offset"`
	Length  int64     `json:"length"`
}

type Encryption struct {
	Scheme string `json:"scheme"`
}

type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Header is the JSON section of a container. Project and Canvas are
// rakugaki additions; containers without them are sized by FinalImage.
type Header struct {
	Version        int        `json:"version"`
	Title          string     `json:"title"`
	CurrentLayerID string     `json:"currentLayerId"`
	Encryption     Encryption `json:"encryption"`
	Layers         []Record   `json:"layers"`
	FinalImage     Record     `json:"finalImage"`
	Project        string     `json:"project,omitempty"`
	Canvas         *Canvas    `json:"canvas,omitempty"`
}

// Size returns the canvas size the container was saved at.
func (h *Header) Size() (w, ht int) {
	if h.Canvas != nil {
		return h.Canvas.Width, h.Canvas.Height
	}
	return h.FinalImage.Width, h.FinalImage.Height
}

func checkSize(w, h int) error {
	if w <= 0 || h <= 0 || int64(w)*int64(h) > MaxCanvasPixels {
		return fmt.Errorf("size %dx%d outside 1..%d pixels", w, h, MaxCanvasPixels)
	}
	return nil
}

func formatLayerID(id ids.ID) string { return layerIDPrefix + id.String() }

// parseLayerID recovers an id written by formatLayerID. Ids from other
// writers do not parse and get fresh ones on load.
func parseLayerID(s string) (ids.ID, bool) {
	num, ok := strings.CutPrefix(s, layerIDPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return ids.ID(n), true
}

// ReadHeader validates the container prefix and header and returns the
// header with the blob region.
func ReadHeader(blob []byte) (*Header, []byte, error) {
	if n := min(len(blob), len(Magic)); string(blob[:n]) != Magic[:n] {
		return nil, nil, ErrBadMagic
	}
	if len(blob) < prefixSize {
		return nil, nil, ErrTruncated
	}
	n := int(binary.LittleEndian.Uint32(blob[len(Magic):prefixSize]))
	if n > len(blob)-prefixSize {
		return nil, nil, fmt.Errorf("%w: header wants %d bytes, %d left", ErrTruncated, n, len(blob)-prefixSize)
	}
	var hdr Header
	if err := json.Unmarshal(blob[prefixSize:prefixSize+n], &hdr); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if hdr.Version != Version {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hdr.Version)
	}
	if hdr.Encryption.Scheme != Scheme {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownScheme, hdr.Encryption.Scheme)
	}
	if err := checkSize(hdr.Size()); err != nil {
		return nil, nil, fmt.Errorf("%w: canvas %v", ErrBadHeader, err)
	}
	return &hdr, blob[prefixSize+n:], nil
}

// ReadPreview returns the flattened composite without any password.
func ReadPreview(blob []byte) (*image.RGBA, *Header, error) {
	hdr, body, err := ReadHeader(blob)
	if err != nil {
		return nil, nil, err
	}
	img, err := hdr.FinalImage.decode(body, AppTag)
	if err != nil {
		return nil, hdr, fmt.Errorf("composite: %w", err)
	}
	return img, hdr, nil
}

// open decrypts the record's blob and returns premultiplied pixels.
func (r *Record) open(body []byte, password string) ([]byte, error) {
	if err := checkSize(r.Width, r.Height); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecord, err)
	}
	if r.Offset < 0 || r.Length < 0 || r.Offset > int64(len(body)) || r.Length > int64(len(body))-r.Offset {
		return nil, fmt.Errorf("%w: blob [%d,+%d) outside %d bytes", ErrRecord, r.Offset, r.Length, len(body))
	}
	pix, err := open(password, r.Salt, r.IV, body[r.Offset:r.Offset+r.Length])
	if err != nil {
		return nil, err
	}
	if len(pix) != r.Width*r.Height*4 {
		return nil, fmt.Errorf("%w: %d pixel bytes for %dx%d", ErrRecord, len(pix), r.Width, r.Height)
	}
	surface.Premultiply(pix)
	return pix, nil
}

func (r *Record) decode(body []byte, password string) (*image.RGBA, error) {
	pix, err := r.open(body, password)
	if err != nil {
		return nil, err
	}
	return surface.Unpack(pix, r.Width, r.Height)
}
