package costing

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads costing inputs from the stock ledger and purchase
// invoice lines.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PacksPerBundle returns the pack count per bundle id.
func (r *Repository) PacksPerBundle(ctx context.Context, bundleIDs []int64) (map[int64]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, packs_per_bundle FROM bundles WHERE id = ANY($1)`, bundleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	packs := make(map[int64]int64, len(bundleIDs))
	for rows.Next() {
		var id, ppb int64
		if err := rows.Scan(&id, &ppb); err != nil {
			return nil, err
		}
		packs[id] = ppb
	}
	return packs, rows.Err()
}

// LatestPurchaseInvoiceByBundle finds, per bundle, the purchase invoice
// behind the most recent inbound stock movement. Movements without an
// invoice link (adjustments, opening stock) are skipped.
func (r *Repository) LatestPurchaseInvoiceByBundle(ctx context.Context, bundleIDs []int64) (map[int64]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (bundle_id) bundle_id, purchase_invoice_id
		FROM stock_movements
		WHERE bundle_id = ANY($1) AND packs_delta > 0 AND purchase_invoice_id IS NOT NULL
		ORDER BY bundle_id, movement_datetime DESC, id DESC`, bundleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make(map[int64]int64, len(bundleIDs))
	for rows.Next() {
		var bundleID, invoiceID int64
		if err := rows.Scan(&bundleID, &invoiceID); err != nil {
			return nil, err
		}
		invoices[bundleID] = invoiceID
	}
	return invoices, rows.Err()
}

// UnitCostPerBundle looks up the cost per bundle on each expected
// purchase invoice line. A line on a different invoice does not count;
// the movement link decides which purchase prices the bundle.
func (r *Repository) UnitCostPerBundle(ctx context.Context, invoiceByBundle map[int64]int64) (map[int64]decimal.Decimal, error) {
	costs := make(map[int64]decimal.Decimal, len(invoiceByBundle))
	if len(invoiceByBundle) == 0 {
		return costs, nil
	}

	bundleIDs := make([]int64, 0, len(invoiceByBundle))
	for id := range invoiceByBundle {
		bundleIDs = append(bundleIDs, id)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT bundle_id, purchase_invoice_id, unit_cost_per_bundle
		FROM purchase_invoice_lines
		WHERE bundle_id = ANY($1)`, bundleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bundleID  int64
			invoiceID int64
			cost      decimal.Decimal
		)
		if err := rows.Scan(&bundleID, &invoiceID, &cost); err != nil {
			return nil, err
		}
		if invoiceByBundle[bundleID] == invoiceID {
			costs[bundleID] = cost
		}
	}
	return costs, rows.Err()
}
