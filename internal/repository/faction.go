package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/starveil/economy/internal/domain"
)

type factionRepo struct{}

// NewFactionRepository returns a pgx-backed FactionRepository.
func NewFactionRepository() FactionRepository {
	return &factionRepo{}
}

const factionColumns = `id, name, tag, leader_id, motd, bank_currency, home_world_coords, created_at`

func (r *factionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Faction, error) {
	row := db.QueryRow(ctx, `SELECT `+factionColumns+` FROM factions WHERE id = $1`, id)
	return scanFaction(row)
}

func (r *factionRepo) FindByName(ctx context.Context, db DBTX, name string) (*domain.Faction, error) {
	row := db.QueryRow(ctx, `SELECT `+factionColumns+` FROM factions WHERE name = $1`, name)
	return scanFaction(row)
}

func (r *factionRepo) FindByTag(ctx context.Context, db DBTX, tag string) (*domain.Faction, error) {
	row := db.QueryRow(ctx, `SELECT `+factionColumns+` FROM factions WHERE tag = $1`, tag)
	return scanFaction(row)
}

func (r *factionRepo) Insert(ctx context.Context, db DBTX, faction *domain.Faction) error {
	_, err := db.Exec(ctx, `
		INSERT INTO factions (id, name, tag, leader_id, motd, bank_currency, home_world_coords, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		faction.ID,
		faction.Name,
		faction.Tag,
		faction.LeaderID,
		faction.Motd,
		faction.BankCurrency,
		faction.HomeWorldCoords,
		faction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert faction: %w", err)
	}
	return nil
}

func (r *factionRepo) UpdateMotd(ctx context.Context, db DBTX, id uuid.UUID, motd string) error {
	_, err := db.Exec(ctx, `UPDATE factions SET motd = $2 WHERE id = $1`, id, motd)
	if err != nil {
		return fmt.Errorf("update motd: %w", err)
	}
	return nil
}

func (r *factionRepo) UpdateLeader(ctx context.Context, db DBTX, id, leaderID uuid.UUID) error {
	_, err := db.Exec(ctx, `UPDATE factions SET leader_id = $2 WHERE id = $1`, id, leaderID)
	if err != nil {
		return fmt.Errorf("update leader: %w", err)
	}
	return nil
}

// AdjustBank mirrors AdjustCurrency: server-side arithmetic guarded
// against a negative treasury.
func (r *factionRepo) AdjustBank(ctx context.Context, db DBTX, id uuid.UUID, delta int64) (*domain.Faction, error) {
	row := db.QueryRow(ctx, `
		UPDATE factions SET bank_currency = bank_currency + $2
		WHERE id = $1 AND bank_currency + $2 >= 0
		RETURNING `+factionColumns, id, delta)
	return scanFaction(row)
}

func scanFaction(row pgx.Row) (*domain.Faction, error) {
	var f domain.Faction
	err := row.Scan(&f.ID, &f.Name, &f.Tag, &f.LeaderID, &f.Motd,
		&f.BankCurrency, &f.HomeWorldCoords, &f.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan faction: %w", err)
	}
	return &f, nil
}

type memberRepo struct{}

// NewMemberRepository returns a pgx-backed MemberRepository.
func NewMemberRepository() MemberRepository {
	return &memberRepo{}
}

func (r *memberRepo) Find(ctx context.Context, db DBTX, factionID, playerID uuid.UUID) (*domain.FactionMember, error) {
	var m domain.FactionMember
	err := db.QueryRow(ctx, `
		SELECT faction_id, player_id, role, joined_at
		FROM faction_members WHERE faction_id = $1 AND player_id = $2`,
		factionID, playerID).Scan(&m.FactionID, &m.PlayerID, &m.Role, &m.JoinedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan member: %w", err)
	}
	return &m, nil
}

func (r *memberRepo) ListWithPlayers(ctx context.Context, db DBTX, factionID uuid.UUID) ([]domain.MemberWithPlayer, error) {
	rows, err := db.Query(ctx, `
		SELECT m.player_id, p.display_name, m.role
		FROM faction_members m
		JOIN players p ON p.id = m.player_id
		WHERE m.faction_id = $1
		ORDER BY m.joined_at`, factionID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var out []domain.MemberWithPlayer
	for rows.Next() {
		var m domain.MemberWithPlayer
		if err := rows.Scan(&m.PlayerID, &m.DisplayName, &m.Role); err != nil {
			return nil, fmt.Errorf("scan member row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *memberRepo) Insert(ctx context.Context, db DBTX, member *domain.FactionMember) error {
	_, err := db.Exec(ctx, `
		INSERT INTO faction_members (faction_id, player_id, role, joined_at)
		VALUES ($1, $2, $3, $4)`,
		member.FactionID, member.PlayerID, member.Role, member.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (r *memberRepo) Delete(ctx context.Context, db DBTX, factionID, playerID uuid.UUID) (bool, error) {
	tag, err := db.Exec(ctx, `
		DELETE FROM faction_members WHERE faction_id = $1 AND player_id = $2`,
		factionID, playerID)
	if err != nil {
		return false, fmt.Errorf("delete member: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *memberRepo) UpdateRole(ctx context.Context, db DBTX, factionID, playerID uuid.UUID, role domain.FactionRole) error {
	_, err := db.Exec(ctx, `
		UPDATE faction_members SET role = $3 WHERE faction_id = $1 AND player_id = $2`,
		factionID, playerID, role)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}
