package state

import "fmt"

// Sample is one pointer reading in layer space. Pressure and Tilt are in
// [0,1]; Orientation is in radians.
type Sample struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Pressure    float64 `json:"pressure"`
	Tilt        float64 `json:"tilt"`
	Orientation float64 `json:"orientation"`
}

// Kind is the type of a stroke event.
type Kind int

const (
	Down Kind = iota
	Move
	Up
	// Release ends a session abnormally, e.g. when the pointer leaves the
	// capture surface. It behaves like Up.
	Release
)

func (k Kind) String() string {
	switch k {
	case Down:
		return "down"
	case Move:
		return "move"
	case Up:
		return "up"
	case Release:
		return "release"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// NoPointer marks an event whose device did not report a pointer id.
const NoPointer = -1

// Event is a queued pointer event.
type Event struct {
	Kind    Kind
	Sample  Sample
	Pointer int
}

// Session is the live drawing state. Drawing implies Last and Pointer are
// meaningful.
type Session struct {
	Drawing bool
	Last    Sample
	Pointer int
}
