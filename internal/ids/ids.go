// Package ids allocates identifiers for layers, brushes and papers.
package ids

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// ID identifies a layer, brush or paper within one engine. The zero ID means
// "none".
type ID uint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Valid reports whether id refers to something.
func (id ID) Valid() bool { return id != 0 }

// Generator hands out ids that are unique for its lifetime.
type Generator interface {
	Next() ID
	// Observe records an id allocated elsewhere (for example read from a
	// project file) so Next never returns it.
	Observe(ID)
}

// Sequence is a monotonically increasing Generator safe for concurrent use.
type Sequence struct {
	last atomic.Uint64
}

// NewSequence returns a Sequence whose first id is 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

func (s *Sequence) Next() ID {
	return ID(s.last.Add(1))
}

func (s *Sequence) Observe(id ID) {
	for {
		cur := s.last.Load()
		if uint64(id) <= cur {
			return
		}
		if s.last.CompareAndSwap(cur, uint64(id)) {
			return
		}
	}
}

// NewProjectID mints a random identifier for a saved project.
func NewProjectID() string {
	return uuid.NewString()
}

// ValidProjectID reports whether s parses as a project identifier.
func ValidProjectID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
