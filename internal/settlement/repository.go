package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/packledger/packledger/internal/platform/db"
)

// ErrInvoiceNotFound indicates the target invoice does not exist.
var ErrInvoiceNotFound = errors.New("settlement: invoice not found")

// Repository provides PostgreSQL backed persistence for settlement.
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

type txRepo struct {
	tx pgx.Tx
}

// LockInvoiceBalance locks the invoice row and recomputes its balance from
// the allocations written so far.
func (t *txRepo) LockInvoiceBalance(ctx context.Context, invoiceType InvoiceType, invoiceID int64) (InvoiceBalance, error) {
	var (
		lockQuery string
		paidQuery string
		bal       InvoiceBalance
	)
	switch invoiceType {
	case InvoiceSale:
		lockQuery = `SELECT id, invoice_no, customer_id, total FROM sales_invoices WHERE id = $1 FOR UPDATE`
		paidQuery = `SELECT COALESCE(SUM(amount_applied), 0) FROM payment_allocations WHERE invoice_type = 'sale' AND sales_invoice_id = $1`
	case InvoicePurchase:
		lockQuery = `SELECT id, invoice_no, supplier_id, total FROM purchase_invoices WHERE id = $1 FOR UPDATE`
		paidQuery = `SELECT COALESCE(SUM(amount_applied), 0) FROM payment_allocations WHERE invoice_type = 'purchase' AND purchase_invoice_id = $1`
	default:
		return InvoiceBalance{}, fmt.Errorf("settlement: unknown invoice type %q", invoiceType)
	}

	err := t.tx.QueryRow(ctx, lockQuery, invoiceID).Scan(&bal.InvoiceID, &bal.InvoiceNo, &bal.PartyID, &bal.Total)
	if err == pgx.ErrNoRows {
		return InvoiceBalance{}, ErrInvoiceNotFound
	}
	if err != nil {
		return InvoiceBalance{}, err
	}

	if err := t.tx.QueryRow(ctx, paidQuery, invoiceID).Scan(&bal.Paid); err != nil {
		return InvoiceBalance{}, err
	}

	bal.InvoiceType = invoiceType
	bal.BalanceDue = bal.Total.Sub(bal.Paid)
	return bal, nil
}

// InsertPayment writes one payment row.
func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO payments (party_type, customer_id, supplier_id, direction, amount, payment_date, method, reference, note, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING id`,
		p.PartyType, nullableID(p.CustomerID), nullableID(p.SupplierID), p.Direction,
		p.Amount, p.PaymentDate, p.Method, nullableText(p.Reference), p.Note, p.Source,
	).Scan(&id)
	return id, err
}

// InsertAllocation writes one allocation row referencing the payment and
// the type-specific invoice foreign key.
func (t *txRepo) InsertAllocation(ctx context.Context, a Allocation) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO payment_allocations (payment_id, invoice_type, sales_invoice_id, purchase_invoice_id, amount_applied, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id`,
		a.PaymentID, a.InvoiceType, nullableID(a.SalesInvoiceID), nullableID(a.PurchaseInvoiceID), a.AmountApplied,
	).Scan(&id)
	return id, err
}

// InsertCreditEntry writes one credit/advance ledger row.
func (t *txRepo) InsertCreditEntry(ctx context.Context, e CreditEntry) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO credit_entries (party_type, customer_id, supplier_id, payment_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id`,
		e.PartyType, nullableID(e.CustomerID), nullableID(e.SupplierID), e.PaymentID, e.Amount,
	).Scan(&id)
	return id, err
}

// ListPayments returns payments newest first with optional filters.
func (r *Repository) ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, error) {
	query := `
		SELECT id, party_type, customer_id, supplier_id, direction, amount, payment_date, method, reference, note, source, created_at
		FROM payments
		WHERE 1=1`
	args := []any{}
	argNum := 1

	if req.PartyType != "" {
		query += fmt.Sprintf(" AND party_type = $%d", argNum)
		args = append(args, string(req.PartyType))
		argNum++
	}
	if req.Source != "" {
		query += fmt.Sprintf(" AND source = $%d", argNum)
		args = append(args, req.Source)
		argNum++
	}

	query += " ORDER BY payment_date DESC, id DESC"
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, req.Limit)
		argNum++
	}
	if req.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var (
			p          Payment
			customerID pgtype.Int8
			supplierID pgtype.Int8
			reference  pgtype.Text
		)
		if err := rows.Scan(&p.ID, &p.PartyType, &customerID, &supplierID, &p.Direction, &p.Amount, &p.PaymentDate, &p.Method, &reference, &p.Note, &p.Source, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CustomerID = customerID.Int64
		p.SupplierID = supplierID.Int64
		p.Reference = reference.String
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ListCreditEntries returns the ledger rows for one party, oldest first.
func (r *Repository) ListCreditEntries(ctx context.Context, partyType PartyType, partyID int64) ([]CreditEntry, error) {
	column := "customer_id"
	if partyType == PartySupplier {
		column = "supplier_id"
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, party_type, customer_id, supplier_id, payment_id, amount, created_at
		FROM credit_entries
		WHERE party_type = $1 AND %s = $2
		ORDER BY created_at, id`, column),
		partyType, partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CreditEntry
	for rows.Next() {
		var (
			e          CreditEntry
			customerID pgtype.Int8
			supplierID pgtype.Int8
		)
		if err := rows.Scan(&e.ID, &e.PartyType, &customerID, &supplierID, &e.PaymentID, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CustomerID = customerID.Int64
		e.SupplierID = supplierID.Int64
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreditBalances reads the aggregate credit (customers) or advance
// (suppliers) view.
func (r *Repository) CreditBalances(ctx context.Context, partyType PartyType) ([]CreditBalance, error) {
	query := `SELECT customer_id, name, credit_balance FROM v_customer_credit ORDER BY name`
	if partyType == PartySupplier {
		query = `SELECT supplier_id, name, advance_balance FROM v_supplier_advance ORDER BY name`
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []CreditBalance
	for rows.Next() {
		var b CreditBalance
		if err := rows.Scan(&b.PartyID, &b.PartyName, &b.Balance); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// UnbalancedPayments returns payments whose amount does not equal the sum
// of their allocations plus credit entries. Used by the consistency scan
// job; a healthy ledger returns nothing.
func (r *Repository) UnbalancedPayments(ctx context.Context) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.party_type, p.customer_id, p.supplier_id, p.direction, p.amount, p.payment_date, p.method, p.reference, p.note, p.source, p.created_at
		FROM payments p
		LEFT JOIN LATERAL (
			SELECT COALESCE(SUM(amount_applied), 0) AS applied
			FROM payment_allocations WHERE payment_id = p.id
		) a ON TRUE
		LEFT JOIN LATERAL (
			SELECT COALESCE(SUM(amount), 0) AS credited
			FROM credit_entries WHERE payment_id = p.id
		) c ON TRUE
		WHERE p.amount <> a.applied + c.credited
		ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var (
			p          Payment
			customerID pgtype.Int8
			supplierID pgtype.Int8
			reference  pgtype.Text
		)
		if err := rows.Scan(&p.ID, &p.PartyType, &customerID, &supplierID, &p.Direction, &p.Amount, &p.PaymentDate, &p.Method, &reference, &p.Note, &p.Source, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CustomerID = customerID.Int64
		p.SupplierID = supplierID.Int64
		p.Reference = reference.String
		payments = append(payments, p)
	}
	return payments, rows.Err()
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
