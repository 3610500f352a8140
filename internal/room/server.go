package room

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/starveil/economy/internal/domain"
)

const (
	pongWait       = 60 * time.Second
	maxMessageSize = 16 * 1024
)

// Server exposes the hub over websockets at
// GET /parties/{party}/{room}, plus a health endpoint.
type Server struct {
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, logger *slog.Logger) *Server {
	return &Server{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Game clients and the bridge connect without an Origin
			// header; browser dashboards are same-host.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/players/{playerID}/transactions", s.handleTransactions)
	r.Get("/parties/{party}/{room}", s.handleConnect)
	return r
}

// handleTransactions serves a player's recent ledger entries, newest
// first. Read-only, capped at 50 rows.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	playerID, err := uuid.Parse(chi.URLParam(r, "playerID"))
	if err != nil {
		http.Error(w, "invalid player id", http.StatusBadRequest)
		return
	}

	rows, err := s.hub.store.Transactions.ListByPlayer(r.Context(), s.hub.db, playerID, 50)
	if err != nil {
		s.logger.Error("transaction lookup failed", "player_id", playerID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []domain.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		s.logger.Warn("transaction response write failed", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	party := chi.URLParam(r, "party")
	roomID := chi.URLParam(r, "room")

	rm := s.hub.Get(party, roomID)
	if rm == nil {
		http.Error(w, "unknown party", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	viewer := NewViewer(conn, s.logger)
	rm.Attach(viewer)
	go viewer.writePump()
	go s.readPump(rm, viewer, conn)
}

// readPump copies inbound frames into the room mailbox until the
// connection drops.
func (s *Server) readPump(rm *Room, viewer *Viewer, conn *websocket.Conn) {
	defer rm.Detach(viewer)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		rm.Deliver(viewer, data)
	}
}
