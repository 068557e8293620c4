package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceStartsAtOne(t *testing.T) {
	s := NewSequence()
	assert.Equal(t, ID(1), s.Next())
	assert.Equal(t, ID(2), s.Next())
}

func TestSequenceObserve(t *testing.T) {
	s := NewSequence()
	s.Observe(41)
	assert.Equal(t, ID(42), s.Next())

	// Observing an older id never moves the sequence backwards.
	s.Observe(3)
	assert.Equal(t, ID(43), s.Next())
}

func TestSequenceConcurrentUnique(t *testing.T) {
	s := NewSequence()
	const workers, per = 8, 200

	var mu sync.Mutex
	seen := make(map[ID]bool)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range per {
				id := s.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*per)
}

func TestProjectID(t *testing.T) {
	a, b := NewProjectID(), NewProjectID()
	assert.NotEqual(t, a, b)
	assert.True(t, ValidProjectID(a))
	assert.False(t, ValidProjectID("not-a-uuid"))
	assert.False(t, ID(0).Valid())
	assert.Equal(t, "7", ID(7).String())
}
