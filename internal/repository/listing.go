package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/starveil/economy/internal/domain"
)

type listingRepo struct{}

// NewListingRepository returns a pgx-backed ListingRepository.
func NewListingRepository() ListingRepository {
	return &listingRepo{}
}

const listingColumns = `id, seller_id, item_name, item_count, item_params, price_per_unit, total_price, status, created_at, expires_at`

func (r *listingRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.MarketListing, error) {
	row := db.QueryRow(ctx, `SELECT `+listingColumns+` FROM market_listings WHERE id = $1`, id)
	return scanListing(row)
}

func (r *listingRepo) FindActiveWithSellers(ctx context.Context, db DBTX) ([]domain.ListingWithSeller, error) {
	rows, err := db.Query(ctx, `
		SELECT l.id, l.seller_id, l.item_name, l.item_count, l.item_params,
		       l.price_per_unit, l.total_price, l.status, l.created_at, l.expires_at,
		       p.id, p.display_name
		FROM market_listings l
		JOIN players p ON p.id = l.seller_id
		WHERE l.status = $1
		ORDER BY l.created_at DESC`, domain.ListingActive)
	if err != nil {
		return nil, fmt.Errorf("query active listings: %w", err)
	}
	defer rows.Close()

	var out []domain.ListingWithSeller
	for rows.Next() {
		var l domain.ListingWithSeller
		if err := rows.Scan(&l.ID, &l.SellerID, &l.ItemName, &l.ItemCount, &l.ItemParams,
			&l.PricePerUnit, &l.TotalPrice, &l.Status, &l.CreatedAt, &l.ExpiresAt,
			&l.Seller.ID, &l.Seller.DisplayName); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *listingRepo) CountActiveBySeller(ctx context.Context, db DBTX, sellerID uuid.UUID) (int, error) {
	var n int
	err := db.QueryRow(ctx, `
		SELECT count(*) FROM market_listings WHERE seller_id = $1 AND status = $2`,
		sellerID, domain.ListingActive).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

func (r *listingRepo) Insert(ctx context.Context, db DBTX, listing *domain.MarketListing) error {
	_, err := db.Exec(ctx, `
		INSERT INTO market_listings (id, seller_id, item_name, item_count, item_params, price_per_unit, total_price, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		listing.ID,
		listing.SellerID,
		listing.ItemName,
		listing.ItemCount,
		listing.ItemParams,
		listing.PricePerUnit,
		listing.TotalPrice,
		listing.Status,
		listing.CreatedAt,
		listing.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// MarkStatus is a conditional single-row update; zero rows affected
// means the listing was not in the expected From status.
func (r *listingRepo) MarkStatus(ctx context.Context, db DBTX, id uuid.UUID, from, to domain.ListingStatus) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE market_listings SET status = $3 WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, fmt.Errorf("mark listing %s: %w", to, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *listingRepo) ExpireOlderThan(ctx context.Context, db DBTX, now time.Time) (int64, error) {
	tag, err := db.Exec(ctx, `
		UPDATE market_listings SET status = $2 WHERE status = $1 AND expires_at < $3`,
		domain.ListingActive, domain.ListingExpired, now)
	if err != nil {
		return 0, fmt.Errorf("expire listings: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanListing(row pgx.Row) (*domain.MarketListing, error) {
	var l domain.MarketListing
	err := row.Scan(&l.ID, &l.SellerID, &l.ItemName, &l.ItemCount, &l.ItemParams,
		&l.PricePerUnit, &l.TotalPrice, &l.Status, &l.CreatedAt, &l.ExpiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	return &l, nil
}
