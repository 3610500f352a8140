package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starveil/economy/internal/domain"
	"github.com/starveil/economy/internal/projection"
	"github.com/starveil/economy/internal/relay"
	"github.com/starveil/economy/internal/repository"
	"github.com/starveil/economy/internal/router"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))

type stubSender struct{}

func (stubSender) SendToMarket(context.Context, any) error { return nil }

func (stubSender) SendToFaction(context.Context, string, any) error { return nil }

func (stubSender) SendToPresence(context.Context, any) error { return nil }

// fakePlayers serves point reads only; the mirror never writes players.
type fakePlayers struct {
	players map[uuid.UUID]*domain.Player
}

func (f *fakePlayers) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Player, error) {
	return f.players[id], nil
}

func (f *fakePlayers) FindByExternalID(_ context.Context, _ repository.DBTX, externalID string) (*domain.Player, error) {
	for _, p := range f.players {
		if p.ExternalID == externalID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePlayers) Create(_ context.Context, _ repository.DBTX, player *domain.Player) error {
	f.players[player.ID] = player
	return nil
}

func (f *fakePlayers) Touch(_ context.Context, _ repository.DBTX, _ uuid.UUID, _ string, _ time.Time) error {
	return nil
}

func (f *fakePlayers) AdjustCurrency(_ context.Context, _ repository.DBTX, _ uuid.UUID, _ int64) (*domain.Player, error) {
	return nil, nil
}

func (f *fakePlayers) SetFaction(_ context.Context, _ repository.DBTX, _ uuid.UUID, _ *uuid.UUID) error {
	return nil
}

type fakePending struct {
	items []domain.PendingItem
}

func (f *fakePending) Insert(_ context.Context, _ repository.DBTX, item *domain.PendingItem) error {
	f.items = append(f.items, *item)
	return nil
}

func (f *fakePending) ListByPlayer(_ context.Context, _ repository.DBTX, playerID uuid.UUID) ([]domain.PendingItem, error) {
	var out []domain.PendingItem
	for _, item := range f.items {
		if item.PlayerID == playerID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakePending) Delete(_ context.Context, _ repository.DBTX, _ uuid.UUID) (bool, error) {
	return false, nil
}

func TestMarketMirror(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, relay.EnsureBridgeDirs(dir))

	seller := &domain.Player{
		ID: uuid.New(), ExternalID: "sb-Ada", DisplayName: "Ada", Currency: 998,
	}
	store := &repository.Store{
		Players: &fakePlayers{players: map[uuid.UUID]*domain.Player{seller.ID: seller}},
		Pending: &fakePending{items: []domain.PendingItem{{
			ID: uuid.New(), PlayerID: seller.ID, ItemName: "copperore", ItemCount: 10,
			Source: domain.PendingSourceReturn, CreatedAt: time.Now().UTC(),
		}}},
	}

	states := projection.NewWriter(dir, "", testLogger)
	rt := router.New(store, nil, stubSender{}, states, testLogger)
	mirror := newMarketMirror(rt, states, testLogger)
	ctx := context.Background()

	t.Run("cancel rewrites the seller snapshot", func(t *testing.T) {
		frame := fmt.Sprintf(`{"type":"cancel_complete","listingId":%q,"playerId":%q}`,
			uuid.NewString(), seller.ID)
		mirror.handle(ctx, []byte(frame))

		path := filepath.Join(dir, "state", fmt.Sprintf("player_%s.json", seller.ID))
		raw, err := os.ReadFile(path)
		require.NoError(t, err, "expected a snapshot after cancel_complete")

		var state domain.PlayerState
		require.NoError(t, json.Unmarshal(raw, &state))
		require.Len(t, state.PendingItems, 1)
		assert.Equal(t, "copperore", state.PendingItems[0].ItemName)
	})

	t.Run("sync writes the market cache", func(t *testing.T) {
		listing := domain.ListingWithSeller{}
		listing.ID = uuid.New()
		payload, err := json.Marshal(map[string]any{
			"type": "sync", "listings": []domain.ListingWithSeller{listing},
		})
		require.NoError(t, err)
		mirror.handle(ctx, payload)

		raw, err := os.ReadFile(filepath.Join(dir, "cache", "market.json"))
		require.NoError(t, err)
		assert.Contains(t, string(raw), listing.ID.String())
	})
}
