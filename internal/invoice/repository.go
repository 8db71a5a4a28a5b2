package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/packledger/packledger/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateSalesInvoice writes the invoice header and all lines in one
// transaction.
func (r *Repository) CreateSalesInvoice(ctx context.Context, inv SalesInvoice) (SalesInvoice, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO sales_invoices (invoice_no, customer_id, invoice_date, subtotal, discount, other_charges, total, note, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			RETURNING id, created_at`,
			inv.InvoiceNo, inv.CustomerID, inv.InvoiceDate, inv.Subtotal, inv.Discount, inv.OtherCharges, inv.Total, nullableText(inv.Note),
		).Scan(&inv.ID, &inv.CreatedAt)
		if err != nil {
			return mapInsertErr(err)
		}

		for i := range inv.Lines {
			line := &inv.Lines[i]
			line.InvoiceID = inv.ID
			err = tx.QueryRow(ctx, `
				INSERT INTO sales_invoice_lines (sales_invoice_id, bundle_id, packs_qty, unit_price, unit_cost, line_total)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				inv.ID, line.BundleID, line.PacksQty, line.UnitPrice, line.UnitCost, line.LineTotal,
			).Scan(&line.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SalesInvoice{}, err
	}
	return inv, nil
}

// CreatePurchaseInvoice writes the invoice header and all lines in one
// transaction.
func (r *Repository) CreatePurchaseInvoice(ctx context.Context, inv PurchaseInvoice) (PurchaseInvoice, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO purchase_invoices (invoice_no, supplier_id, invoice_date, subtotal, discount, other_charges, total, note, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			RETURNING id, created_at`,
			inv.InvoiceNo, inv.SupplierID, inv.InvoiceDate, inv.Subtotal, inv.Discount, inv.OtherCharges, inv.Total, nullableText(inv.Note),
		).Scan(&inv.ID, &inv.CreatedAt)
		if err != nil {
			return mapInsertErr(err)
		}

		for i := range inv.Lines {
			line := &inv.Lines[i]
			line.InvoiceID = inv.ID
			err = tx.QueryRow(ctx, `
				INSERT INTO purchase_invoice_lines (purchase_invoice_id, bundle_id, bundles_qty, unit_cost_per_bundle, line_total)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				inv.ID, line.BundleID, line.BundlesQty, line.UnitCostPerBundle, line.LineTotal,
			).Scan(&line.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseInvoice{}, err
	}
	return inv, nil
}

// GetSalesInvoice returns one sales invoice with lines.
func (r *Repository) GetSalesInvoice(ctx context.Context, id int64) (SalesInvoice, error) {
	var (
		inv  SalesInvoice
		note pgtype.Text
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, invoice_no, customer_id, invoice_date, subtotal, discount, other_charges, total, note, created_at
		FROM sales_invoices WHERE id = $1`, id).
		Scan(&inv.ID, &inv.InvoiceNo, &inv.CustomerID, &inv.InvoiceDate, &inv.Subtotal, &inv.Discount, &inv.OtherCharges, &inv.Total, &note, &inv.CreatedAt)
	if err == pgx.ErrNoRows {
		return SalesInvoice{}, ErrNotFound
	}
	if err != nil {
		return SalesInvoice{}, err
	}
	inv.Note = note.String

	rows, err := r.pool.Query(ctx, `
		SELECT id, sales_invoice_id, bundle_id, packs_qty, unit_price, unit_cost, line_total
		FROM sales_invoice_lines WHERE sales_invoice_id = $1 ORDER BY id`, id)
	if err != nil {
		return SalesInvoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line SalesLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.BundleID, &line.PacksQty, &line.UnitPrice, &line.UnitCost, &line.LineTotal); err != nil {
			return SalesInvoice{}, err
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv, rows.Err()
}

// GetPurchaseInvoice returns one purchase invoice with lines.
func (r *Repository) GetPurchaseInvoice(ctx context.Context, id int64) (PurchaseInvoice, error) {
	var (
		inv  PurchaseInvoice
		note pgtype.Text
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, invoice_no, supplier_id, invoice_date, subtotal, discount, other_charges, total, note, created_at
		FROM purchase_invoices WHERE id = $1`, id).
		Scan(&inv.ID, &inv.InvoiceNo, &inv.SupplierID, &inv.InvoiceDate, &inv.Subtotal, &inv.Discount, &inv.OtherCharges, &inv.Total, &note, &inv.CreatedAt)
	if err == pgx.ErrNoRows {
		return PurchaseInvoice{}, ErrNotFound
	}
	if err != nil {
		return PurchaseInvoice{}, err
	}
	inv.Note = note.String

	rows, err := r.pool.Query(ctx, `
		SELECT id, purchase_invoice_id, bundle_id, bundles_qty, unit_cost_per_bundle, line_total
		FROM purchase_invoice_lines WHERE purchase_invoice_id = $1 ORDER BY id`, id)
	if err != nil {
		return PurchaseInvoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line PurchaseLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.BundleID, &line.BundlesQty, &line.UnitCostPerBundle, &line.LineTotal); err != nil {
			return PurchaseInvoice{}, err
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv, rows.Err()
}

// ListSalesInvoices returns sales invoices, newest first.
func (r *Repository) ListSalesInvoices(ctx context.Context, req ListRequest) ([]SalesInvoice, error) {
	query := `
		SELECT id, invoice_no, customer_id, invoice_date, subtotal, discount, other_charges, total, note, created_at
		FROM sales_invoices`
	args := []any{}
	if req.PartyID > 0 {
		query += " WHERE customer_id = $1"
		args = append(args, req.PartyID)
	}
	query += " ORDER BY invoice_date DESC, id DESC"
	query, args = appendLimitOffset(query, args, req)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []SalesInvoice
	for rows.Next() {
		var (
			inv  SalesInvoice
			note pgtype.Text
		)
		if err := rows.Scan(&inv.ID, &inv.InvoiceNo, &inv.CustomerID, &inv.InvoiceDate, &inv.Subtotal, &inv.Discount, &inv.OtherCharges, &inv.Total, &note, &inv.CreatedAt); err != nil {
			return nil, err
		}
		inv.Note = note.String
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// ListPurchaseInvoices returns purchase invoices, newest first.
func (r *Repository) ListPurchaseInvoices(ctx context.Context, req ListRequest) ([]PurchaseInvoice, error) {
	query := `
		SELECT id, invoice_no, supplier_id, invoice_date, subtotal, discount, other_charges, total, note, created_at
		FROM purchase_invoices`
	args := []any{}
	if req.PartyID > 0 {
		query += " WHERE supplier_id = $1"
		args = append(args, req.PartyID)
	}
	query += " ORDER BY invoice_date DESC, id DESC"
	query, args = appendLimitOffset(query, args, req)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []PurchaseInvoice
	for rows.Next() {
		var (
			inv  PurchaseInvoice
			note pgtype.Text
		)
		if err := rows.Scan(&inv.ID, &inv.InvoiceNo, &inv.SupplierID, &inv.InvoiceDate, &inv.Subtotal, &inv.Discount, &inv.OtherCharges, &inv.Total, &note, &inv.CreatedAt); err != nil {
			return nil, err
		}
		inv.Note = note.String
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func appendLimitOffset(query string, args []any, req ListRequest) (string, []any) {
	if req.Limit > 0 {
		args = append(args, req.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if req.Offset > 0 {
		args = append(args, req.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func mapInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateNo
	}
	return err
}

func nullableText(s string) pgtype.Text {
	if s != "" {
		return pgtype.Text{String: s, Valid: true}
	}
	return pgtype.Text{}
}
