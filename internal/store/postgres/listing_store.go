package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// ListingStore implements domain.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a new ListingStore backed by the given pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Numeric columns are read back as text to keep full precision.
const listingSelectCols = `id, collection, token_id::text, seller, marketplace,
	price::text, price_wei::text, expiration, expires_at,
	COALESCE(approval_tx_hash, ''), listing_tx_hash, created_at`

func scanListing(row pgx.Row) (domain.ListingRecord, error) {
	var (
		r     domain.ListingRecord
		price string
	)
	if err := row.Scan(
		&r.ID, &r.Collection, &r.TokenID, &r.Seller, &r.Marketplace,
		&price, &r.PriceWei, &r.Expiration, &r.ExpiresAt,
		&r.ApprovalTxHash, &r.ListingTxHash, &r.CreatedAt,
	); err != nil {
		return domain.ListingRecord{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return domain.ListingRecord{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	r.Price = d
	return r, nil
}

// Insert stores a confirmed listing and returns its id. A second insert for
// the same listing transaction returns domain.ErrAlreadyExists.
func (s *ListingStore) Insert(ctx context.Context, rec domain.ListingRecord) (int64, error) {
	const query = `
		INSERT INTO listings (
			collection, token_id, seller, marketplace,
			price, price_wei, expiration, expires_at,
			approval_tx_hash, listing_tx_hash
		) VALUES (
			$1, $2::numeric, $3, $4,
			$5::numeric, $6::numeric, $7, $8,
			NULLIF($9, ''), $10
		) RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		rec.Collection, rec.TokenID, rec.Seller, rec.Marketplace,
		rec.Price.String(), rec.PriceWei, rec.Expiration, rec.ExpiresAt,
		rec.ApprovalTxHash, rec.ListingTxHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("postgres: listing %s: %w", rec.ListingTxHash, domain.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("postgres: insert listing %s: %w", rec.ListingTxHash, err)
	}
	return id, nil
}

// GetByTxHash returns the listing created by txHash.
func (s *ListingStore) GetByTxHash(ctx context.Context, txHash string) (domain.ListingRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingSelectCols+` FROM listings WHERE listing_tx_hash = $1`, txHash)
	rec, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ListingRecord{}, fmt.Errorf("postgres: listing %s: %w", txHash, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ListingRecord{}, fmt.Errorf("postgres: get listing %s: %w", txHash, err)
	}
	return rec, nil
}

// ListByCollection returns listings of a collection, newest first.
func (s *ListingStore) ListByCollection(ctx context.Context, collection string, opts domain.ListOpts) ([]domain.ListingRecord, error) {
	return s.list(ctx, "collection", collection, opts)
}

// ListBySeller returns listings created by seller, newest first.
func (s *ListingStore) ListBySeller(ctx context.Context, seller string, opts domain.ListOpts) ([]domain.ListingRecord, error) {
	return s.list(ctx, "seller", seller, opts)
}

// list filters on column, which is always one of the fixed names above.
func (s *ListingStore) list(ctx context.Context, column, value string, opts domain.ListOpts) ([]domain.ListingRecord, error) {
	query := `SELECT ` + listingSelectCols + ` FROM listings WHERE ` + column + ` = $1`
	args := []any{value}
	query, args = appendListOpts(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list listings by %s: %w", column, err)
	}
	defer rows.Close()

	var out []domain.ListingRecord
	for rows.Next() {
		rec, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list listings rows: %w", err)
	}
	return out, nil
}

// appendListOpts adds time filters, ordering and pagination to a query
// whose existing placeholders are args.
func appendListOpts(query string, args []any, opts domain.ListOpts) (string, []any) {
	argIdx := len(args) + 1
	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

var _ domain.ListingStore = (*ListingStore)(nil)
