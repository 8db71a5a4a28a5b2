package outstanding

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads the materialized balance views.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CustomerOutstanding returns every open sales invoice, newest first.
func (r *Repository) CustomerOutstanding(ctx context.Context) ([]Invoice, error) {
	return r.queryInvoices(ctx, `
		SELECT b.invoice_id, b.invoice_no, b.invoice_date, b.customer_id, c.name, b.total, b.paid, b.balance_due
		FROM v_sales_invoice_balance b
		JOIN customers c ON c.id = b.customer_id
		WHERE b.balance_due > 0
		ORDER BY b.invoice_date DESC, b.invoice_id DESC`)
}

// SupplierOutstanding returns every open purchase invoice, newest first.
func (r *Repository) SupplierOutstanding(ctx context.Context) ([]Invoice, error) {
	return r.queryInvoices(ctx, `
		SELECT b.invoice_id, b.invoice_no, b.invoice_date, b.supplier_id, s.name, b.total, b.paid, b.balance_due
		FROM v_purchase_invoice_balance b
		JOIN suppliers s ON s.id = b.supplier_id
		WHERE b.balance_due > 0
		ORDER BY b.invoice_date DESC, b.invoice_id DESC`)
}

// CustomerOutstandingByID returns the open sales invoices of one customer.
func (r *Repository) CustomerOutstandingByID(ctx context.Context, customerID int64) ([]Invoice, error) {
	return r.queryInvoices(ctx, `
		SELECT b.invoice_id, b.invoice_no, b.invoice_date, b.customer_id, c.name, b.total, b.paid, b.balance_due
		FROM v_sales_invoice_balance b
		JOIN customers c ON c.id = b.customer_id
		WHERE b.balance_due > 0 AND b.customer_id = $1
		ORDER BY b.invoice_date DESC, b.invoice_id DESC`, customerID)
}

// SupplierOutstandingByID returns the open purchase invoices of one supplier.
func (r *Repository) SupplierOutstandingByID(ctx context.Context, supplierID int64) ([]Invoice, error) {
	return r.queryInvoices(ctx, `
		SELECT b.invoice_id, b.invoice_no, b.invoice_date, b.supplier_id, s.name, b.total, b.paid, b.balance_due
		FROM v_purchase_invoice_balance b
		JOIN suppliers s ON s.id = b.supplier_id
		WHERE b.balance_due > 0 AND b.supplier_id = $1
		ORDER BY b.invoice_date DESC, b.invoice_id DESC`, supplierID)
}

func (r *Repository) queryInvoices(ctx context.Context, query string, args ...any) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.InvoiceID, &inv.InvoiceNo, &inv.InvoiceDate, &inv.PartyID, &inv.PartyName, &inv.Total, &inv.Paid, &inv.BalanceDue); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// SalesInvoiceLines returns statement lines keyed by invoice id. A stored
// NULL line_total falls back to qty * unit_price.
func (r *Repository) SalesInvoiceLines(ctx context.Context, invoiceIDs []int64) (map[int64][]StatementLine, error) {
	return r.queryLines(ctx, `
		SELECT l.sales_invoice_id, l.bundle_id, b.name, l.packs_qty, l.unit_price, l.line_total
		FROM sales_invoice_lines l
		JOIN bundles b ON b.id = l.bundle_id
		WHERE l.sales_invoice_id = ANY($1)
		ORDER BY l.id`, invoiceIDs)
}

// PurchaseInvoiceLines returns statement lines keyed by invoice id.
func (r *Repository) PurchaseInvoiceLines(ctx context.Context, invoiceIDs []int64) (map[int64][]StatementLine, error) {
	return r.queryLines(ctx, `
		SELECT l.purchase_invoice_id, l.bundle_id, b.name, l.bundles_qty, l.unit_cost_per_bundle, l.line_total
		FROM purchase_invoice_lines l
		JOIN bundles b ON b.id = l.bundle_id
		WHERE l.purchase_invoice_id = ANY($1)
		ORDER BY l.id`, invoiceIDs)
}

func (r *Repository) queryLines(ctx context.Context, query string, invoiceIDs []int64) (map[int64][]StatementLine, error) {
	rows, err := r.pool.Query(ctx, query, invoiceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make(map[int64][]StatementLine)
	for rows.Next() {
		var (
			invoiceID int64
			line      StatementLine
			total     decimal.NullDecimal
		)
		if err := rows.Scan(&invoiceID, &line.BundleID, &line.BundleName, &line.Qty, &line.UnitPrice, &total); err != nil {
			return nil, err
		}
		if total.Valid {
			line.LineTotal = total.Decimal
		} else {
			line.LineTotal = line.Qty.Mul(line.UnitPrice)
		}
		lines[invoiceID] = append(lines[invoiceID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outstanding: scan lines: %w", err)
	}
	return lines, nil
}
