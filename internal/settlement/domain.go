package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// PartyType identifies which side of the business a payment belongs to.
type PartyType string

const (
	PartyCustomer PartyType = "customer"
	PartySupplier PartyType = "supplier"
)

// InvoiceType selects the invoice series an allocation applies to.
type InvoiceType string

const (
	InvoiceSale     InvoiceType = "sale"
	InvoicePurchase InvoiceType = "purchase"
)

// Direction records whether money came in (from a customer) or went out
// (to a supplier).
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Source tags recorded on payments so reports can tell how a payment was
// entered.
const (
	SourceMarkPaid       = "mark_paid"
	SourcePartialPayment = "partial_payment"
	SourceInvoiceEntry   = "invoice_entry"
)

// Payment is one settlement action against a counterparty. Immutable once
// written.
type Payment struct {
	ID          int64
	PartyType   PartyType
	CustomerID  int64
	SupplierID  int64
	Direction   Direction
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      string
	Reference   string
	Note        string
	Source      string
	CreatedAt   time.Time
}

// Allocation links an applied amount from a payment to one invoice.
// AmountApplied is strictly positive; zero-amount allocations are never
// written.
type Allocation struct {
	ID                int64
	PaymentID         int64
	InvoiceType       InvoiceType
	SalesInvoiceID    int64
	PurchaseInvoiceID int64
	AmountApplied     decimal.Decimal
	CreatedAt         time.Time
}

// CreditEntry is the explicit ledger row for the unapplied remainder of a
// payment: customer credit or supplier advance. Append-only; together
// with allocations it accounts for the full payment amount.
type CreditEntry struct {
	ID         int64
	PartyType  PartyType
	CustomerID int64
	SupplierID int64
	PaymentID  int64
	Amount     decimal.Decimal
	CreatedAt  time.Time
}

// InvoiceBalance is the settlement view of one invoice: its fixed total
// and what remains due after all allocations.
type InvoiceBalance struct {
	InvoiceID   int64
	InvoiceType InvoiceType
	InvoiceNo   string
	PartyID     int64
	Total       decimal.Decimal
	Paid        decimal.Decimal
	BalanceDue  decimal.Decimal
}

// CreditBalance summarises the unapplied surplus held for one party.
type CreditBalance struct {
	PartyID   int64
	PartyName string
	Balance   decimal.Decimal
}

// Result describes what one settlement action wrote.
type Result struct {
	Payment   Payment
	Applied   decimal.Decimal
	Remainder decimal.Decimal
	InvoiceNo string
	Settled   bool
}

// MarkPaidInput settles the full outstanding balance of one invoice.
type MarkPaidInput struct {
	InvoiceType InvoiceType
	InvoiceID   int64
	Method      string
	ActorID     int64
}

// PartialPaymentInput applies a caller-chosen amount against one invoice.
// Amount above the outstanding balance becomes a credit entry.
type PartialPaymentInput struct {
	InvoiceType InvoiceType
	InvoiceID   int64
	Amount      decimal.Decimal
	Method      string
	Reference   string
	Note        string
	Source      string
	ActorID     int64
}

// ListPaymentsRequest filters the payment listing.
type ListPaymentsRequest struct {
	PartyType PartyType
	Source    string
	Limit     int
	Offset    int
}
