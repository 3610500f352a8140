package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/starveil/economy/internal/domain"
)

type transactionRepo struct{}

// NewTransactionRepository returns a pgx-backed TransactionRepository.
func NewTransactionRepository() TransactionRepository {
	return &transactionRepo{}
}

const transactionColumns = `id, type, player_id, amount, metadata, command_id, created_at`

func (r *transactionRepo) Insert(ctx context.Context, db DBTX, tx *domain.Transaction) error {
	_, err := db.Exec(ctx, `
		INSERT INTO transactions (id, type, player_id, amount, metadata, command_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tx.ID,
		tx.Type,
		tx.PlayerID,
		tx.Amount,
		tx.Metadata,
		tx.CommandID,
		tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *transactionRepo) FindByCommandID(ctx context.Context, db DBTX, commandID string) (*domain.Transaction, error) {
	row := db.QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE command_id = $1
		ORDER BY created_at LIMIT 1`, commandID)
	return scanTransaction(row)
}

func (r *transactionRepo) ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID, limit int) ([]domain.Transaction, error) {
	rows, err := db.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE player_id = $1
		ORDER BY created_at DESC LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.Type, &t.PlayerID, &t.Amount, &t.Metadata, &t.CommandID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.Type, &t.PlayerID, &t.Amount, &t.Metadata, &t.CommandID, &t.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return &t, nil
}

type pendingItemRepo struct{}

// NewPendingItemRepository returns a pgx-backed PendingItemRepository.
func NewPendingItemRepository() PendingItemRepository {
	return &pendingItemRepo{}
}

func (r *pendingItemRepo) Insert(ctx context.Context, db DBTX, item *domain.PendingItem) error {
	_, err := db.Exec(ctx, `
		INSERT INTO pending_items (id, player_id, item_name, item_count, item_params, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID,
		item.PlayerID,
		item.ItemName,
		item.ItemCount,
		item.ItemParams,
		item.Source,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pending item: %w", err)
	}
	return nil
}

func (r *pendingItemRepo) ListByPlayer(ctx context.Context, db DBTX, playerID uuid.UUID) ([]domain.PendingItem, error) {
	rows, err := db.Query(ctx, `
		SELECT id, player_id, item_name, item_count, item_params, source, created_at
		FROM pending_items WHERE player_id = $1
		ORDER BY created_at`, playerID)
	if err != nil {
		return nil, fmt.Errorf("query pending items: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingItem
	for rows.Next() {
		var p domain.PendingItem
		if err := rows.Scan(&p.ID, &p.PlayerID, &p.ItemName, &p.ItemCount, &p.ItemParams, &p.Source, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending item: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pendingItemRepo) Delete(ctx context.Context, db DBTX, id uuid.UUID) (bool, error) {
	tag, err := db.Exec(ctx, `DELETE FROM pending_items WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete pending item: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
