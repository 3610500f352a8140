// Package projection writes read-optimized json snapshots for the game
// client to poll. Files are derivative; the store stays authoritative
// and every write here is best effort.
package projection

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starveil/economy/internal/domain"
)

const maxNotifications = 20

// Writer materializes player state files under the bridge state
// directory and, when configured, mirrors them into the game's mod
// cache so the client can read them without crossing mounts.
type Writer struct {
	stateDir    string
	cacheDir    string
	modCacheDir string
	logger      *slog.Logger

	mu    sync.Mutex
	state map[uuid.UUID]*domain.PlayerState
	// externalID per player, needed for the mod cache file name.
	external map[uuid.UUID]string
}

func NewWriter(bridgeDir, modCacheDir string, logger *slog.Logger) *Writer {
	return &Writer{
		stateDir:    filepath.Join(bridgeDir, "state"),
		cacheDir:    filepath.Join(bridgeDir, "cache"),
		modCacheDir: modCacheDir,
		logger:      logger.With("component", "projection"),
		state:       make(map[uuid.UUID]*domain.PlayerState),
		external:    make(map[uuid.UUID]string),
	}
}

// WritePlayerState rebuilds a player's snapshot from authoritative
// rows, preserving any notifications accumulated since the last write.
func (w *Writer) WritePlayerState(player *domain.Player, factionTag *string, pending []domain.PendingItem) {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := &domain.PlayerState{
		ID:           player.ID,
		DisplayName:  player.DisplayName,
		Currency:     player.Currency,
		FactionID:    player.FactionID,
		FactionTag:   factionTag,
		PendingItems: pending,
	}
	if prev, ok := w.state[player.ID]; ok {
		next.Notifications = prev.Notifications
	}
	w.state[player.ID] = next
	w.external[player.ID] = player.ExternalID
	w.flush(player.ID)
}

// AddNotification appends to a player's notification feed, keeping the
// newest entries only. A player with no snapshot yet is skipped.
func (w *Writer) AddNotification(playerID uuid.UUID, kind, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok := w.state[playerID]
	if !ok {
		return
	}
	state.Notifications = append(state.Notifications, domain.Notification{
		ID:        uuid.NewString(),
		Type:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if len(state.Notifications) > maxNotifications {
		state.Notifications = state.Notifications[len(state.Notifications)-maxNotifications:]
	}
	w.flush(playerID)
}

// WriteMarketCache snapshots the active listing book for the game's
// in-world market terminals.
func (w *Writer) WriteMarketCache(listings []domain.ListingWithSeller) {
	payload := map[string]any{
		"listings":  listings,
		"updatedAt": time.Now().UTC().Format(time.RFC3339),
	}
	w.writeJSON(filepath.Join(w.cacheDir, "market.json"), payload)
}

// flush writes the snapshot files for one player. Caller holds the lock.
func (w *Writer) flush(playerID uuid.UUID) {
	state := w.state[playerID]
	w.writeJSON(filepath.Join(w.stateDir, fmt.Sprintf("player_%s.json", playerID)), state)

	if w.modCacheDir == "" {
		return
	}
	externalID, ok := w.external[playerID]
	if !ok || externalID == "" {
		return
	}
	w.writeJSON(filepath.Join(w.modCacheDir, fmt.Sprintf("player_%s.json", externalID)), state)
}

// writeJSON writes atomically via rename so the game never reads a
// half-written file.
func (w *Writer) writeJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		w.logger.Error("snapshot marshal failed", "path", path, "error", err)
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		w.logger.Error("snapshot write failed", "path", path, "error", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		w.logger.Error("snapshot rename failed", "path", path, "error", err)
	}
}
