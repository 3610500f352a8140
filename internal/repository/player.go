package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/starveil/economy/internal/domain"
)

type playerRepo struct{}

// NewPlayerRepository returns a pgx-backed PlayerRepository.
func NewPlayerRepository() PlayerRepository {
	return &playerRepo{}
}

const playerColumns = `id, external_id, display_name, currency, faction_id, reputation, is_banned, created_at, last_seen_at`

func (r *playerRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Player, error) {
	row := db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

func (r *playerRepo) FindByExternalID(ctx context.Context, db DBTX, externalID string) (*domain.Player, error) {
	row := db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE external_id = $1`, externalID)
	return scanPlayer(row)
}

func (r *playerRepo) Create(ctx context.Context, db DBTX, player *domain.Player) error {
	_, err := db.Exec(ctx, `
		INSERT INTO players (id, external_id, display_name, currency, faction_id, reputation, is_banned, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		player.ID,
		player.ExternalID,
		player.DisplayName,
		player.Currency,
		player.FactionID,
		player.Reputation,
		player.IsBanned,
		player.CreatedAt,
		player.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (r *playerRepo) Touch(ctx context.Context, db DBTX, id uuid.UUID, displayName string, seenAt time.Time) error {
	_, err := db.Exec(ctx, `
		UPDATE players SET display_name = $2, last_seen_at = $3 WHERE id = $1`,
		id, displayName, seenAt)
	if err != nil {
		return fmt.Errorf("touch player: %w", err)
	}
	return nil
}

// AdjustCurrency uses server-side arithmetic; the WHERE clause refuses
// any adjustment that would leave the balance negative.
func (r *playerRepo) AdjustCurrency(ctx context.Context, db DBTX, id uuid.UUID, delta int64) (*domain.Player, error) {
	row := db.QueryRow(ctx, `
		UPDATE players SET currency = currency + $2
		WHERE id = $1 AND currency + $2 >= 0
		RETURNING `+playerColumns, id, delta)
	return scanPlayer(row)
}

func (r *playerRepo) SetFaction(ctx context.Context, db DBTX, id uuid.UUID, factionID *uuid.UUID) error {
	_, err := db.Exec(ctx, `UPDATE players SET faction_id = $2 WHERE id = $1`, id, factionID)
	if err != nil {
		return fmt.Errorf("set player faction: %w", err)
	}
	return nil
}

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	err := row.Scan(&p.ID, &p.ExternalID, &p.DisplayName, &p.Currency, &p.FactionID,
		&p.Reputation, &p.IsBanned, &p.CreatedAt, &p.LastSeenAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}
	return &p, nil
}
