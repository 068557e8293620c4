// Package state queues pointer events and reduces them into stroke sessions.
//
// Events may be dispatched from any goroutine; Poll must be called from the
// single goroutine that owns the canvas, typically once per frame.
package state

import (
	"log/slog"
	"sync"
)

// Painter receives the drawing calls a session produces.
type Painter interface {
	// BeginStroke is called when a session starts.
	BeginStroke(at Sample)
	// Stroke draws the segment between two consecutive samples.
	Stroke(from, to Sample) error
	// EndStroke is called when the session ends, normally or abnormally.
	EndStroke()
	// CaptureRequested reports a Down from a pointer other than the active
	// one. The host may use it to move pointer capture; drawing continues
	// with the active pointer.
	CaptureRequested(pointer int)
}

// Machine is the stroke state machine: an unbounded FIFO of events and the
// single live Session they act on.
type Machine struct {
	mu      sync.Mutex
	queue   []Event
	session Session
	painter Painter
	log     *slog.Logger
}

// NewMachine returns an idle machine driving p.
func NewMachine(p Painter, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Machine{painter: p, log: log}
}

// Dispatch enqueues ev.
func (m *Machine) Dispatch(ev Event) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	m.mu.Unlock()
}

// Pending reports how many events wait for the next Poll.
func (m *Machine) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Session returns a copy of the live session.
func (m *Machine) Session() Session {
	return m.session
}

// Drawing reports whether a session is active.
func (m *Machine) Drawing() bool {
	return m.session.Drawing
}

// Poll applies every queued event in order. If the painter fails, Poll stops
// and returns the error; the failing event is consumed and later events stay
// queued for the next Poll.
func (m *Machine) Poll() error {
	m.mu.Lock()
	batch := m.queue
	m.queue = nil
	m.mu.Unlock()

	for i, ev := range batch {
		if err := m.apply(ev); err != nil {
			m.requeue(batch[i+1:])
			return err
		}
	}
	return nil
}

func (m *Machine) requeue(rest []Event) {
	if len(rest) == 0 {
		return
	}
	m.mu.Lock()
	m.queue = append(append([]Event(nil), rest...), m.queue...)
	m.mu.Unlock()
}

func (m *Machine) apply(ev Event) error {
	s := &m.session
	switch ev.Kind {
	case Down:
		if s.Drawing {
			if ev.Pointer != s.Pointer {
				m.log.Debug("second pointer ignored", "pointer", ev.Pointer, "active", s.Pointer)
				m.painter.CaptureRequested(ev.Pointer)
			}
			return nil
		}
		*s = Session{Drawing: true, Last: ev.Sample, Pointer: ev.Pointer}
		m.painter.BeginStroke(ev.Sample)

	case Move:
		if !s.Drawing || ev.Pointer != s.Pointer {
			return nil
		}
		from := s.Last
		s.Last = ev.Sample
		return m.painter.Stroke(from, ev.Sample)

	case Up, Release:
		if !s.Drawing || ev.Pointer != s.Pointer {
			return nil
		}
		m.painter.EndStroke()
		*s = Session{}
	}
	return nil
}
