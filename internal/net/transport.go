package net

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"rakugaki/internal/state"
)

// InputPath is the websocket endpoint remote pointers connect to.
const InputPath = "/input"

var ErrMessage = errors.New("bridge: bad input message")

// Dispatcher receives pointer events. Implementations must be safe for
// concurrent use.
type Dispatcher interface {
	Dispatch(state.Event)
}

// Message is one batch of samples from a remote pointer, in screen space.
type Message struct {
	Type      string         `json:"type"`
	PointerID int            `json:"pointerId"`
	Samples   []state.Sample `json:"samples"`
}

// Events expands m into queue events in layer space. pointer is the id the
// events are dispatched under. Extra samples in a down or up batch become
// moves.
func (m Message) Events(pointer int, scale float64) ([]state.Event, error) {
	if !(scale > 0) {
		return nil, fmt.Errorf("%w: view scale %v", ErrMessage, scale)
	}
	samples := make([]state.Sample, len(m.Samples))
	for i, s := range m.Samples {
		s.X /= scale
		s.Y /= scale
		samples[i] = s
	}
	ev := func(k state.Kind, s state.Sample) state.Event {
		return state.Event{Kind: k, Sample: s, Pointer: pointer}
	}

	var out []state.Event
	switch m.Type {
	case "down":
		if len(samples) == 0 {
			return nil, fmt.Errorf("%w: down without samples", ErrMessage)
		}
		out = append(out, ev(state.Down, samples[0]))
		for _, s := range samples[1:] {
			out = append(out, ev(state.Move, s))
		}
	case "move":
		if len(samples) == 0 {
			return nil, fmt.Errorf("%w: move without samples", ErrMessage)
		}
		for _, s := range samples {
			out = append(out, ev(state.Move, s))
		}
	case "up", "cancel":
		kind := state.Up
		if m.Type == "cancel" {
			kind = state.Release
		}
		var last state.Sample
		if n := len(samples); n > 0 {
			for _, s := range samples[:n-1] {
				out = append(out, ev(state.Move, s))
			}
			last = samples[n-1]
		}
		out = append(out, ev(kind, last))
	default:
		return nil, fmt.Errorf("%w: type %q", ErrMessage, m.Type)
	}
	return out, nil
}

// Bridge serves remote pointer input over websockets. Each connection gets
// its own pointer namespace so two tablets never share a pointer id.
type Bridge struct {
	target   Dispatcher
	log      *slog.Logger
	upgrader websocket.Upgrader
	scale    atomic.Uint64
	conns    atomic.Int64

	mu    sync.RWMutex
	peers map[*websocket.Conn]string
}

func NewBridge(target Dispatcher, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	b := &Bridge{
		target: target,
		log:    log.With("component", "bridge"),
		upgrader: websocket.Upgrader{
			// Tablets connect from LAN pages with arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: make(map[*websocket.Conn]string),
	}
	b.SetViewScale(1)
	return b
}

// SetViewScale sets the screen to layer divisor applied to incoming samples.
func (b *Bridge) SetViewScale(s float64) {
	b.scale.Store(math.Float64bits(s))
}

func (b *Bridge) ViewScale() float64 {
	return math.Float64frombits(b.scale.Load())
}

// Peers returns the number of connected clients.
func (b *Bridge) Peers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.peers)
}

func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(InputPath, b.serveInput)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (b *Bridge) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bridge listen %s: %w", addr, err)
	}
	return b.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (b *Bridge) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: b.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
		b.closePeers()
	}()
	b.log.Info("input bridge listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (b *Bridge) serveInput(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	n := b.conns.Add(1)
	b.add(conn, r.RemoteAddr)
	down := make(map[int]bool)
	defer func() {
		// a client that vanishes mid-stroke must not hold the canvas
		for pointer := range down {
			b.target.Dispatch(state.Event{Kind: state.Release, Pointer: pointer})
		}
		b.remove(conn)
	}()

	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.log.Debug("read failed", "remote", r.RemoteAddr, "err", err)
			}
			return
		}
		pointer := int(n)<<16 | m.PointerID&0xffff
		events, err := m.Events(pointer, b.ViewScale())
		if err != nil {
			b.log.Debug("message rejected", "remote", r.RemoteAddr, "err", err)
			conn.WriteJSON(map[string]string{"error": err.Error()})
			continue
		}
		for _, ev := range events {
			switch ev.Kind {
			case state.Down:
				down[ev.Pointer] = true
			case state.Up, state.Release:
				delete(down, ev.Pointer)
			}
			b.target.Dispatch(ev)
		}
	}
}

func (b *Bridge) add(conn *websocket.Conn, remote string) {
	b.mu.Lock()
	b.peers[conn] = remote
	b.mu.Unlock()
	b.log.Info("input client connected", "remote", remote)
}

func (b *Bridge) remove(conn *websocket.Conn) {
	b.mu.Lock()
	remote := b.peers[conn]
	delete(b.peers, conn)
	b.mu.Unlock()
	conn.Close()
	b.log.Info("input client disconnected", "remote", remote)
}

func (b *Bridge) closePeers() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for conn := range b.peers {
		conn.Close()
	}
}
