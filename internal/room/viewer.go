package room

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	viewerSendBuffer = 32
	writeWait        = 10 * time.Second
)

// Viewer is one websocket subscriber. The room goroutine writes to the
// send channel; the writePump goroutine owns the underlying conn. A nil
// conn is valid and makes the viewer a pure in-process sink, which is
// how the bridge-side client and the tests consume rooms.
type Viewer struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
}

// NewViewer creates a viewer around an accepted connection. conn may be
// nil; the caller then drains Outbox itself.
func NewViewer(conn *websocket.Conn, logger *slog.Logger) *Viewer {
	return &Viewer{
		conn:   conn,
		send:   make(chan []byte, viewerSendBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Send marshals v and queues it for this viewer only.
func (v *Viewer) Send(msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		v.logger.Error("viewer marshal failed", "error", err)
		return
	}
	v.push(payload)
}

// Outbox exposes the send channel for in-process consumers.
func (v *Viewer) Outbox() <-chan []byte { return v.send }

// push queues a pre-marshalled frame, dropping it if the viewer is too
// slow to keep the room loop from blocking. The send channel is never
// closed: a frame may still be handled for a viewer whose leave was
// drained first, so push must stay safe after Close.
func (v *Viewer) push(payload []byte) {
	select {
	case <-v.done:
		return
	default:
	}
	select {
	case v.send <- payload:
	default:
		v.logger.Warn("viewer send buffer full, dropping frame")
	}
}

// Close signals shutdown to writePump. Safe to call more than once.
func (v *Viewer) Close() {
	v.closeOnce.Do(func() { close(v.done) })
}

// writePump copies queued frames onto the websocket until Close or a
// write failure.
func (v *Viewer) writePump() {
	defer v.conn.Close()
	for {
		select {
		case payload := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-v.done:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
