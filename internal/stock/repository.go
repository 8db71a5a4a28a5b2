package stock

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/packledger/packledger/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the pack ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetBundle returns one bundle by id.
func (r *Repository) GetBundle(ctx context.Context, id int64) (Bundle, error) {
	var b Bundle
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, packs_per_bundle, created_at FROM bundles WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.PacksPerBundle, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return Bundle{}, ErrBundleNotFound
	}
	return b, err
}

// CreateBundle inserts a bundle.
func (r *Repository) CreateBundle(ctx context.Context, input CreateBundleInput) (Bundle, error) {
	var b Bundle
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bundles (name, packs_per_bundle, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, name, packs_per_bundle, created_at`,
		input.Name, input.PacksPerBundle).
		Scan(&b.ID, &b.Name, &b.PacksPerBundle, &b.CreatedAt)
	return b, err
}

// ListBundles returns all bundles ordered by name.
func (r *Repository) ListBundles(ctx context.Context) ([]Bundle, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, packs_per_bundle, created_at FROM bundles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bundles []Bundle
	for rows.Next() {
		var b Bundle
		if err := rows.Scan(&b.ID, &b.Name, &b.PacksPerBundle, &b.CreatedAt); err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

// OnHand returns the stock position per bundle. Bundles without any
// movement yet show zero on hand.
func (r *Repository) OnHand(ctx context.Context) ([]OnHand, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.name, b.packs_per_bundle, COALESCE(sb.packs_on_hand, 0)
		FROM bundles b
		LEFT JOIN stock_balances sb ON sb.bundle_id = b.id
		ORDER BY b.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []OnHand
	for rows.Next() {
		var pos OnHand
		if err := rows.Scan(&pos.BundleID, &pos.BundleName, &pos.PacksPerBundle, &pos.PacksOnHand); err != nil {
			return nil, err
		}
		if pos.PacksPerBundle > 0 {
			pos.BundlesOnHand = decimal.NewFromInt(pos.PacksOnHand).Div(decimal.NewFromInt(pos.PacksPerBundle))
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// ListMovements returns ledger entries for one bundle, newest first.
func (r *Repository) ListMovements(ctx context.Context, bundleID int64, limit int) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, bundle_id, movement_type, packs_delta, movement_datetime, purchase_invoice_id, sales_invoice_id, note, created_at
		FROM stock_movements
		WHERE bundle_id = $1
		ORDER BY movement_datetime DESC, id DESC
		LIMIT $2`, bundleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var (
			m          Movement
			purchaseID pgtype.Int8
			salesID    pgtype.Int8
			note       pgtype.Text
		)
		if err := rows.Scan(&m.ID, &m.BundleID, &m.Type, &m.PacksDelta, &m.MovementDatetime, &purchaseID, &salesID, &note, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.PurchaseInvoiceID = purchaseID.Int64
		m.SalesInvoiceID = salesID.Int64
		m.Note = note.String
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

// GetBalanceForUpdate locks the balance row for one bundle.
func (t *txRepo) GetBalanceForUpdate(ctx context.Context, bundleID int64) (Balance, error) {
	var b Balance
	err := t.tx.QueryRow(ctx, `
		SELECT bundle_id, packs_on_hand, updated_at FROM stock_balances WHERE bundle_id = $1 FOR UPDATE`, bundleID).
		Scan(&b.BundleID, &b.PacksOnHand, &b.UpdatedAt)
	if err == pgx.ErrNoRows {
		return Balance{}, ErrBalanceNotFound
	}
	return b, err
}

// InsertMovement appends one ledger row.
func (t *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO stock_movements (bundle_id, movement_type, packs_delta, movement_datetime, purchase_invoice_id, sales_invoice_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		m.BundleID, m.Type, m.PacksDelta, m.MovementDatetime,
		nullableID(m.PurchaseInvoiceID), nullableID(m.SalesInvoiceID), nullableText(m.Note), m.CreatedAt,
	).Scan(&id)
	return id, err
}

// UpsertBalance writes the running balance.
func (t *txRepo) UpsertBalance(ctx context.Context, b Balance) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stock_balances (bundle_id, packs_on_hand, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (bundle_id) DO UPDATE SET packs_on_hand = EXCLUDED.packs_on_hand, updated_at = EXCLUDED.updated_at`,
		b.BundleID, b.PacksOnHand, b.UpdatedAt)
	return err
}

func nullableID(id int64) pgtype.Int8 {
	if id > 0 {
		return pgtype.Int8{Int64: id, Valid: true}
	}
	return pgtype.Int8{}
}

func nullableText(s string) pgtype.Text {
	if s != "" {
		return pgtype.Text{String: s, Valid: true}
	}
	return pgtype.Text{}
}
