// Package router turns validated game commands into room messages and
// handles the few commands (join, leave, claim) that touch the store
// directly instead of going through a room.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starveil/economy/internal/domain"
	"github.com/starveil/economy/internal/projection"
	"github.com/starveil/economy/internal/repository"
)

// RoomSender delivers messages into the room server. Implemented by
// the websocket room client; tests swap in a recorder.
type RoomSender interface {
	SendToMarket(ctx context.Context, msg any) error
	SendToFaction(ctx context.Context, factionID string, msg any) error
	SendToPresence(ctx context.Context, msg any) error
}

// The faction lobby room handles creation before a faction id exists.
const lobbyRoom = "lobby"

// Router dispatches commands. It resolves the game-side player id to
// the internal row so room messages always carry the store uuid.
type Router struct {
	store  *repository.Store
	db     repository.DBTX
	sender RoomSender
	states *projection.Writer
	logger *slog.Logger
}

func New(store *repository.Store, db repository.DBTX, sender RoomSender, states *projection.Writer, logger *slog.Logger) *Router {
	return &Router{
		store:  store,
		db:     db,
		sender: sender,
		states: states,
		logger: logger.With("component", "router"),
	}
}

// Handle dispatches one validated command.
func (r *Router) Handle(ctx context.Context, cmd *domain.Command) error {
	switch data := cmd.Data.(type) {
	case domain.PlayerJoinData:
		return r.handleJoin(ctx, data)
	case domain.PlayerLeaveData:
		return r.handleLeave(ctx, cmd)
	case domain.ClaimItemData:
		return r.handleClaim(ctx, cmd, data)
	case domain.MarketCreateData:
		player, err := r.resolvePlayer(ctx, cmd)
		if err != nil {
			return err
		}
		return r.sender.SendToMarket(ctx, map[string]any{
			"type": "create_listing", "commandId": cmd.ID, "playerId": player.ID.String(),
			"item": data.Item, "pricePerUnit": data.PricePerUnit,
		})
	case domain.MarketPurchaseData:
		player, err := r.resolvePlayer(ctx, cmd)
		if err != nil {
			return err
		}
		return r.sender.SendToMarket(ctx, map[string]any{
			"type": "purchase", "commandId": cmd.ID, "playerId": player.ID.String(),
			"listingId": data.ListingID.String(),
		})
	case domain.MarketCancelData:
		player, err := r.resolvePlayer(ctx, cmd)
		if err != nil {
			return err
		}
		return r.sender.SendToMarket(ctx, map[string]any{
			"type": "cancel_listing", "commandId": cmd.ID, "playerId": player.ID.String(),
			"listingId": data.ListingID.String(),
		})
	case domain.FactionCreateData:
		player, err := r.resolvePlayer(ctx, cmd)
		if err != nil {
			return err
		}
		return r.sender.SendToFaction(ctx, lobbyRoom, map[string]any{
			"type": "create_faction", "commandId": cmd.ID, "playerId": player.ID.String(),
			"name": data.Name, "tag": data.Tag,
		})
	case domain.FactionJoinData:
		player, err := r.resolvePlayer(ctx, cmd)
		if err != nil {
			return err
		}
		return r.sender.SendToFaction(ctx, data.FactionID.String(), map[string]any{
			"type": "join_request", "commandId": cmd.ID, "playerId": player.ID.String(),
		})
	case domain.FactionLeaveData:
		player, factionID, err := r.resolveMember(ctx, cmd)
		if err != nil {
			return err
		}
		return r.sender.SendToFaction(ctx, factionID, map[string]any{
			"type": "leave", "commandId": cmd.ID, "playerId": player.ID.String(),
		})
	case domain.FactionDepositData:
		player, factionID, err := r.resolveMember(ctx, cmd)
		if err != nil {
			return err
		}
		return r.sender.SendToFaction(ctx, factionID, map[string]any{
			"type": "deposit", "commandId": cmd.ID, "playerId": player.ID.String(),
			"amount": data.Amount,
		})
	case domain.FactionKickData:
		player, factionID, err := r.resolveMember(ctx, cmd)
		if err != nil {
			return err
		}
		return r.sender.SendToFaction(ctx, factionID, map[string]any{
			"type": "kick", "commandId": cmd.ID, "playerId": player.ID.String(),
			"targetPlayerId": data.TargetPlayerID.String(),
		})
	case domain.FactionInviteData:
		player, factionID, err := r.resolveMember(ctx, cmd)
		if err != nil {
			return err
		}
		return r.sender.SendToFaction(ctx, factionID, map[string]any{
			"type": "invite", "commandId": cmd.ID, "playerId": player.ID.String(),
			"targetPlayerId": data.TargetPlayerID.String(),
		})
	default:
		return fmt.Errorf("unhandled command type %q", cmd.Type)
	}
}

// handleJoin upserts the player row, refreshes their state snapshot,
// and announces them to the presence room.
func (r *Router) handleJoin(ctx context.Context, data domain.PlayerJoinData) error {
	player, err := r.store.Players.FindByExternalID(ctx, r.db, data.ExternalID)
	if err != nil {
		return fmt.Errorf("look up player: %w", err)
	}
	now := time.Now().UTC()
	if player == nil {
		player = &domain.Player{
			ID:          uuid.New(),
			ExternalID:  data.ExternalID,
			DisplayName: data.DisplayName,
			Currency:    domain.StartingCurrency,
			CreatedAt:   now,
			LastSeenAt:  now,
		}
		if err := r.store.Players.Create(ctx, r.db, player); err != nil {
			return fmt.Errorf("create player: %w", err)
		}
		r.logger.Info("player created",
			"player_id", player.ID, "external_id", data.ExternalID)
	} else {
		if err := r.store.Players.Touch(ctx, r.db, player.ID, data.DisplayName, now); err != nil {
			return fmt.Errorf("touch player: %w", err)
		}
		player.DisplayName = data.DisplayName
		player.LastSeenAt = now
	}

	r.refreshState(ctx, player)

	return r.sender.SendToPresence(ctx, map[string]any{
		"type": "join", "playerId": player.ID.String(), "name": player.DisplayName,
	})
}

func (r *Router) handleLeave(ctx context.Context, cmd *domain.Command) error {
	player, err := r.resolvePlayer(ctx, cmd)
	if err != nil {
		return err
	}
	return r.sender.SendToPresence(ctx, map[string]any{
		"type": "leave", "playerId": player.ID.String(),
	})
}

// handleClaim removes a pending item and rewrites the snapshot; the
// game grants the item only after seeing it gone from the state file.
func (r *Router) handleClaim(ctx context.Context, cmd *domain.Command, data domain.ClaimItemData) error {
	player, err := r.resolvePlayer(ctx, cmd)
	if err != nil {
		return err
	}
	removed, err := r.store.Pending.Delete(ctx, r.db, data.PendingItemID)
	if err != nil {
		return fmt.Errorf("delete pending item: %w", err)
	}
	if !removed {
		r.logger.Warn("claim for unknown pending item",
			"player_id", player.ID, "pending_item_id", data.PendingItemID)
	}
	r.refreshState(ctx, player)
	return nil
}

// refreshState reloads pending items and the faction tag, then
// rewrites the player's snapshot file.
func (r *Router) refreshState(ctx context.Context, player *domain.Player) {
	pending, err := r.store.Pending.ListByPlayer(ctx, r.db, player.ID)
	if err != nil {
		r.logger.Error("pending item load failed", "player_id", player.ID, "error", err)
		pending = nil
	}
	var factionTag *string
	if player.FactionID != nil {
		faction, err := r.store.Factions.FindByID(ctx, r.db, *player.FactionID)
		if err != nil {
			r.logger.Error("faction load failed", "player_id", player.ID, "error", err)
		} else if faction != nil {
			factionTag = &faction.Tag
		}
	}
	r.states.WritePlayerState(player, factionTag, pending)
}

// RefreshByID reloads one player and rewrites their snapshot. The
// bridge calls this when a room broadcast reports an economic effect.
func (r *Router) RefreshByID(ctx context.Context, playerID uuid.UUID) {
	player, err := r.store.Players.FindByID(ctx, r.db, playerID)
	if err != nil || player == nil {
		r.logger.Error("player reload failed", "player_id", playerID, "error", err)
		return
	}
	r.refreshState(ctx, player)
}

// resolvePlayer maps the command's game-side player id to the row.
func (r *Router) resolvePlayer(ctx context.Context, cmd *domain.Command) (*domain.Player, error) {
	player, err := r.store.Players.FindByExternalID(ctx, r.db, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("look up player: %w", err)
	}
	if player == nil {
		return nil, fmt.Errorf("unknown player %q", cmd.PlayerID)
	}
	return player, nil
}

// resolveMember also requires a current faction, returning its room id.
func (r *Router) resolveMember(ctx context.Context, cmd *domain.Command) (*domain.Player, string, error) {
	player, err := r.resolvePlayer(ctx, cmd)
	if err != nil {
		return nil, "", err
	}
	if player.FactionID == nil {
		return nil, "", fmt.Errorf("player %s is not in a faction", player.ID)
	}
	return player, player.FactionID.String(), nil
}
