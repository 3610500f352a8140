// Package repository provides narrow per-entity access to the
// persistent store: point read/find, insert, and conditional
// single-row updates. The store offers no multi-statement atomicity;
// nothing in this package begins a transaction, and callers sequence
// multi-step mutations themselves (serialized per room).
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/starveil/economy/internal/domain"
)

// DBTX abstracts pgxpool.Pool so repositories are testable with fakes.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PlayerRepository provides access to players.
type PlayerRepository interface {
	// FindByID returns a player by ID, or (nil, nil) when absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Player, error)

	// FindByExternalID returns a player by game-side id, or (nil, nil).
	FindByExternalID(ctx context.Context, db DBTX, externalID string) (*domain.Player, error)

	// Create inserts a new player.
	Create(ctx context.Context, db DBTX, player *domain.Player) error

	// Touch refreshes last_seen_at and the display name on rejoin.
	Touch(ctx context.Context, db DBTX, id uuid.UUID, displayName string, seenAt time.Time) error

	// AdjustCurrency applies delta with server-side arithmetic,
	// refusing in the WHERE clause to drive currency negative.
	// Returns the updated player, or (nil, nil) when the row is
	// missing or the adjustment would go negative.
	AdjustCurrency(ctx context.Context, db DBTX, id uuid.UUID, delta int64) (*domain.Player, error)

	// SetFaction updates the player's faction pointer (nil clears it).
	SetFaction(ctx context.Context, db DBTX, id uuid.UUID, factionID *uuid.UUID) error
}

// ListingRepository provides access to market_listings.
type ListingRepository interface {
	// FindByID returns a listing by ID, or (nil, nil) when absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.MarketListing, error)

	// FindActiveWithSellers returns all active listings joined with
	// seller names, newest first.
	FindActiveWithSellers(ctx context.Context, db DBTX) ([]domain.ListingWithSeller, error)

	// CountActiveBySeller counts a seller's active listings.
	CountActiveBySeller(ctx context.Context, db DBTX, sellerID uuid.UUID) (int, error)

	// Insert creates a new listing.
	Insert(ctx context.Context, db DBTX, listing *domain.MarketListing) error

	// MarkStatus transitions a listing from one status to another and
	// reports whether the row was in the expected From status. This is
	// the terminal-state guard: a listing that already left active is
	// never updated again.
	MarkStatus(ctx context.Context, db DBTX, id uuid.UUID, from, to domain.ListingStatus) (bool, error)

	// ExpireOlderThan transitions every active listing past its
	// expiry to expired, returning the number of rows affected.
	ExpireOlderThan(ctx context.Context, db DBTX, now time.Time) (int64, error)
}

// FactionRepository provides access to factions.
type FactionRepository interface {
	// FindByID returns a faction by ID, or (nil, nil) when absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Faction, error)

	// FindByName returns a faction by unique name, or (nil, nil).
	FindByName(ctx context.Context, db DBTX, name string) (*domain.Faction, error)

	// FindByTag returns a faction by unique tag, or (nil, nil).
	FindByTag(ctx context.Context, db DBTX, tag string) (*domain.Faction, error)

	// Insert creates a new faction.
	Insert(ctx context.Context, db DBTX, faction *domain.Faction) error

	// UpdateMotd replaces the message of the day.
	UpdateMotd(ctx context.Context, db DBTX, id uuid.UUID, motd string) error

	// UpdateLeader moves the leader seat.
	UpdateLeader(ctx context.Context, db DBTX, id, leaderID uuid.UUID) error

	// AdjustBank applies delta to the faction treasury with
	// server-side arithmetic, refusing to go negative. Returns the
	// updated faction, or (nil, nil) on a refused adjustment.
	AdjustBank(ctx context.Context, db DBTX, id uuid.UUID, delta int64) (*domain.Faction, error)
}

// MemberRepository provides access to faction_members.
type MemberRepository interface {
	// Find returns one membership row, or (nil, nil) when absent.
	Find(ctx context.Context, db DBTX, factionID, playerID uuid.UUID) (*domain.FactionMember, error)

	// ListWithPlayers returns the roster joined with display names.
	ListWithPlayers(ctx context.Context, db DBTX, factionID uuid.UUID) ([]domain.MemberWithPlayer, error)

	// Insert creates a membership row.
	Insert(ctx context.Context, db DBTX, member *domain.FactionMember) error

	// Delete removes a membership row, reporting whether it existed.
	Delete(ctx context.Context, db DBTX, factionID, playerID uuid.UUID) (bool, error)

	// UpdateRole changes a member's role.
	UpdateRole(ctx context.Context, db DBTX, factionID, playerID uuid.UUID, role domain.FactionRole) error
}

// TransactionRepository provides access to the append-only audit log.
type TransactionRepository interface {
	// Insert appends one audit row. Rows are never updated or deleted.
	Insert(ctx context.Context, db DBTX, tx *domain.Transaction) error

	// FindByCommandID returns the first row recorded for a bridge
	// command id, or (nil, nil). This is the idempotency check for
	// re-delivered commands.
	FindByCommandID(ctx context.Context, db DBTX, commandID string) (*domain.Transaction, error)

	// ListByPlayer returns a player's rows, newest first.
	ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID, limit int) ([]domain.Transaction, error)
}

// PendingItemRepository provides access to pending_items.
type PendingItemRepository interface {
	// Insert records an owed item.
	Insert(ctx context.Context, db DBTX, item *domain.PendingItem) error

	// ListByPlayer returns all items owed to a player.
	ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID) ([]domain.PendingItem, error)

	// Delete claims an item, reporting whether it existed.
	Delete(ctx context.Context, db DBTX, id uuid.UUID) (bool, error)
}

// Store bundles the repositories wired against one database.
type Store struct {
	Players      PlayerRepository
	Listings     ListingRepository
	Factions     FactionRepository
	Members      MemberRepository
	Transactions TransactionRepository
	Pending      PendingItemRepository
}

// NewStore returns the pgx-backed repository bundle.
func NewStore() *Store {
	return &Store{
		Players:      NewPlayerRepository(),
		Listings:     NewListingRepository(),
		Factions:     NewFactionRepository(),
		Members:      NewMemberRepository(),
		Transactions: NewTransactionRepository(),
		Pending:      NewPendingItemRepository(),
	}
}
