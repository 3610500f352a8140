package projection

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starveil/economy/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))

func newTestWriter(t *testing.T) (*Writer, string, string) {
	t.Helper()
	bridgeDir := t.TempDir()
	modCacheDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(bridgeDir, "state"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(bridgeDir, "cache"), 0o755))
	return NewWriter(bridgeDir, modCacheDir, testLogger), bridgeDir, modCacheDir
}

func readState(t *testing.T, path string) domain.PlayerState {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var state domain.PlayerState
	require.NoError(t, json.Unmarshal(raw, &state))
	return state
}

func TestWriter_WritePlayerState(t *testing.T) {
	w, bridgeDir, modCacheDir := newTestWriter(t)
	player := &domain.Player{
		ID:          uuid.New(),
		ExternalID:  "sb-42",
		DisplayName: "Nova",
		Currency:    950,
	}
	pending := []domain.PendingItem{{
		ID: uuid.New(), PlayerID: player.ID, ItemName: "ore", ItemCount: 3,
		Source: domain.PendingSourcePurchase,
	}}

	w.WritePlayerState(player, nil, pending)

	statePath := filepath.Join(bridgeDir, "state", "player_"+player.ID.String()+".json")
	state := readState(t, statePath)
	assert.Equal(t, int64(950), state.Currency)
	assert.Len(t, state.PendingItems, 1)

	// Mirrored into the mod cache under the game-side id.
	modPath := filepath.Join(modCacheDir, "player_sb-42.json")
	assert.FileExists(t, modPath)

	// No leftover temp files from the atomic write.
	assert.NoFileExists(t, statePath+".tmp")
}

func TestWriter_NotificationsSurviveRewrites(t *testing.T) {
	w, bridgeDir, _ := newTestWriter(t)
	player := &domain.Player{ID: uuid.New(), ExternalID: "sb-1", DisplayName: "Nova", Currency: 100}

	w.WritePlayerState(player, nil, nil)
	w.AddNotification(player.ID, "sale", "your ore sold")
	w.WritePlayerState(player, nil, nil)

	state := readState(t, filepath.Join(bridgeDir, "state", "player_"+player.ID.String()+".json"))
	require.Len(t, state.Notifications, 1)
	assert.Equal(t, "your ore sold", state.Notifications[0].Message)
}

func TestWriter_NotificationsCapped(t *testing.T) {
	w, bridgeDir, _ := newTestWriter(t)
	player := &domain.Player{ID: uuid.New(), ExternalID: "sb-1", DisplayName: "Nova", Currency: 100}
	w.WritePlayerState(player, nil, nil)

	for i := 0; i < 30; i++ {
		w.AddNotification(player.ID, "sale", fmt.Sprintf("sale %d", i))
	}

	state := readState(t, filepath.Join(bridgeDir, "state", "player_"+player.ID.String()+".json"))
	require.Len(t, state.Notifications, 20)
	assert.Equal(t, "sale 29", state.Notifications[19].Message)
	assert.Equal(t, "sale 10", state.Notifications[0].Message)
}

func TestWriter_NotificationForUnknownPlayerIgnored(t *testing.T) {
	w, _, _ := newTestWriter(t)
	w.AddNotification(uuid.New(), "sale", "nobody home")
}

func TestWriter_WriteMarketCache(t *testing.T) {
	w, bridgeDir, _ := newTestWriter(t)
	listings := []domain.ListingWithSeller{{
		MarketListing: domain.MarketListing{
			ID: uuid.New(), SellerID: uuid.New(), ItemName: "ore",
			ItemCount: 5, PricePerUnit: 2, TotalPrice: 10,
			Status: domain.ListingActive,
		},
		Seller: domain.PlayerRef{ID: uuid.New(), DisplayName: "Nova"},
	}}

	w.WriteMarketCache(listings)

	raw, err := os.ReadFile(filepath.Join(bridgeDir, "cache", "market.json"))
	require.NoError(t, err)
	var payload struct {
		Listings  []domain.ListingWithSeller `json:"listings"`
		UpdatedAt string                     `json:"updatedAt"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Len(t, payload.Listings, 1)
	assert.NotEmpty(t, payload.UpdatedAt)
}
