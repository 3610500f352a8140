// Package room hosts the authoritative economy actors. Each room
// instance runs a single goroutine draining a mailbox, so messages to
// one room execute one at a time in arrival order; that serialization
// is the mutual-exclusion mechanism for every economic mutation the
// room owns. Distinct rooms run concurrently with each other.
package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Handler is the per-room state machine driven by the actor loop. All
// methods are invoked from the room's single goroutine; handlers hold
// their state in plain fields without locks.
type Handler interface {
	// ID is the room identifier ("market", a faction id, "lobby", "global").
	ID() string

	// OnStart loads authoritative state before any message is handled.
	OnStart(ctx context.Context) error

	// OnConnect sends the full-state snapshot to a new viewer.
	OnConnect(v *Viewer)

	// OnMessage handles one inbound frame.
	OnMessage(ctx context.Context, m Message)
}

// Ticker is implemented by handlers needing periodic work (the market
// expiry sweep).
type Ticker interface {
	OnTick(ctx context.Context)
}

// Message is one inbound frame with the viewer that sent it.
type Message struct {
	Viewer *Viewer
	Data   []byte
}

// Room wraps a Handler with a mailbox and the viewer set. The viewer
// map is touched only from the run loop.
type Room struct {
	handler Handler
	logger  *slog.Logger

	mailbox chan Message
	joins   chan *Viewer
	leaves  chan *Viewer
	done    chan struct{}
	tick    time.Duration

	viewers map[*Viewer]struct{}
}

// Option configures a Room.
type Option func(*Room)

// WithTick enables periodic OnTick delivery at the given interval.
func WithTick(d time.Duration) Option {
	return func(r *Room) { r.tick = d }
}

// NewRoom wires a handler into an actor. Run must be started before
// Attach or Deliver are used.
func NewRoom(handler Handler, logger *slog.Logger, opts ...Option) *Room {
	r := &Room{
		handler: handler,
		logger:  logger.With("room", handler.ID()),
		mailbox: make(chan Message, 64),
		joins:   make(chan *Viewer, 8),
		leaves:  make(chan *Viewer, 8),
		done:    make(chan struct{}),
		viewers: make(map[*Viewer]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if b, ok := handler.(interface{ bind(*Room) }); ok {
		b.bind(r)
	}
	return r
}

// Run drains the mailbox until ctx is done. One goroutine per room.
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)

	if err := r.handler.OnStart(ctx); err != nil {
		r.logger.Error("room start failed", "error", err)
	}

	var tickC <-chan time.Time
	if r.tick > 0 {
		ticker := time.NewTicker(r.tick)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			for v := range r.viewers {
				v.Close()
			}
			return
		case v := <-r.joins:
			r.viewers[v] = struct{}{}
			r.handler.OnConnect(v)
		case v := <-r.leaves:
			delete(r.viewers, v)
			v.Close()
		case m := <-r.mailbox:
			r.handler.OnMessage(ctx, m)
		case <-tickC:
			if t, ok := r.handler.(Ticker); ok {
				t.OnTick(ctx)
			}
		}
	}
}

// Attach registers a viewer; it receives the snapshot then deltas.
// After the run loop has exited the viewer is closed instead, so
// connection goroutines cannot wedge on a stopped room during shutdown.
func (r *Room) Attach(v *Viewer) {
	select {
	case <-r.done:
		v.Close()
		return
	default:
	}
	select {
	case r.joins <- v:
	case <-r.done:
		v.Close()
	}
}

// Detach removes a viewer and signals its shutdown.
func (r *Room) Detach(v *Viewer) {
	select {
	case <-r.done:
		v.Close()
		return
	default:
	}
	select {
	case r.leaves <- v:
	case <-r.done:
		v.Close()
	}
}

// Deliver queues one frame for the actor.
func (r *Room) Deliver(v *Viewer, data []byte) {
	select {
	case r.mailbox <- Message{Viewer: v, Data: data}:
	case <-r.done:
	}
}

// Broadcast pushes one envelope to every attached viewer. Called only
// from the run loop (via handlers).
func (r *Room) Broadcast(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("broadcast marshal failed", "error", err)
		return
	}
	for viewer := range r.viewers {
		viewer.push(payload)
	}
}
