// Package settings captures brush configuration as the small JSON blob kept
// next to saved projects.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"rakugaki/internal/brush"
)

// Key is the store key the blob lives under.
const Key = "settings"

var ErrParse = errors.New("settings: malformed blob")

// Brush is the persisted state of one library brush.
type Brush struct {
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	Hardness float64 `json:"hardness"`
	Size     float64 `json:"size"`
}

type Settings struct {
	CurrentBrushName string  `json:"currentBrushName"`
	Brushes          []Brush `json:"brushes"`
}

// Capture records every brush in lib. current may be nil.
func Capture(lib *brush.Library, current *brush.Brush) Settings {
	s := Settings{Brushes: []Brush{}}
	if current != nil {
		s.CurrentBrushName = current.Name
	}
	for _, b := range lib.All() {
		hex := "#000000"
		if c, ok := colorful.MakeColor(b.Color()); ok {
			hex = c.Hex()
		}
		s.Brushes = append(s.Brushes, Brush{
			Name:     b.Name,
			Color:    hex,
			Hardness: b.Hardness(),
			Size:     b.BaseSize,
		})
	}
	return s
}

func (s Settings) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

func Parse(data []byte) (Settings, error) {
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return s, nil
}

// Apply resizes and recompiles the named brushes in lib and returns the
// brush named current, or nil. Entries that fail are skipped and reported
// together; unknown names are ignored.
func (s Settings) Apply(lib *brush.Library) (*brush.Brush, error) {
	var errs []error
	for _, bs := range s.Brushes {
		b, ok := lib.Get(bs.Name)
		if !ok {
			continue
		}
		c, err := colorful.Hex(bs.Color)
		if err != nil {
			errs = append(errs, fmt.Errorf("brush %s: color %q: %w", bs.Name, bs.Color, err))
			continue
		}
		if err := b.SetSize(bs.Size); err != nil {
			errs = append(errs, fmt.Errorf("brush %s: %w", bs.Name, err))
			continue
		}
		if err := b.Compile(c, bs.Hardness); err != nil {
			errs = append(errs, err)
		}
	}
	current, _ := lib.Get(s.CurrentBrushName)
	return current, errors.Join(errs...)
}
