package room

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starveil/economy/internal/infra"
	"github.com/starveil/economy/internal/repository"
)

// Party names route to room kinds.
const (
	PartyMarket   = "market"
	PartyFaction  = "faction"
	PartyPresence = "presence"
)

// Hub owns every live room: the market singleton, the presence
// singleton, and one faction room per faction id (created on first
// connect). Each room gets its own goroutine tied to the hub context.
type Hub struct {
	store     *repository.Store
	db        repository.DBTX
	events    *infra.EventPublisher
	logger    *slog.Logger
	sweepTick time.Duration

	mu    sync.Mutex
	ctx   context.Context
	rooms map[string]*Room
	wg    sync.WaitGroup
}

func NewHub(store *repository.Store, db repository.DBTX, events *infra.EventPublisher, sweepTick time.Duration, logger *slog.Logger) *Hub {
	return &Hub{
		store:     store,
		db:        db,
		events:    events,
		logger:    logger,
		sweepTick: sweepTick,
		rooms:     make(map[string]*Room),
	}
}

// Start launches the singleton rooms. Faction rooms spawn lazily.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()
	h.Get(PartyMarket, "market")
	h.Get(PartyPresence, "global")
}

// Get returns the room for a party/id pair, spawning it if needed.
// Market and presence ignore the id and always resolve to their
// singletons, matching how clients address them.
func (h *Hub) Get(party, id string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	var key string
	switch party {
	case PartyMarket:
		key = "market"
	case PartyPresence:
		key = "presence"
	case PartyFaction:
		key = "faction:" + id
	default:
		return nil
	}
	if r, ok := h.rooms[key]; ok {
		return r
	}

	var r *Room
	switch party {
	case PartyMarket:
		r = NewRoom(NewMarketRoom(h.store, h.db, h.events, h.logger), h.logger,
			WithTick(h.sweepTick))
	case PartyPresence:
		r = NewRoom(NewPresenceRoom(h.logger), h.logger, WithTick(time.Minute))
	case PartyFaction:
		r = NewRoom(NewFactionRoom(id, h.store, h.db, h.events, h.logger), h.logger)
	}

	h.rooms[key] = r
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		r.Run(h.ctx)
	}()
	return r
}

// Wait blocks until every room loop has exited.
func (h *Hub) Wait() { h.wg.Wait() }
