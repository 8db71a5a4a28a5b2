package outstanding

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is one open invoice row from the balance views. BalanceDue is
// always positive here; settled invoices never enter the aggregator.
type Invoice struct {
	InvoiceID   int64           `json:"invoice_id"`
	InvoiceNo   string          `json:"invoice_no"`
	InvoiceDate time.Time       `json:"invoice_date"`
	PartyID     int64           `json:"party_id"`
	PartyName   string          `json:"party_name"`
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	BalanceDue  decimal.Decimal `json:"balance_due"`
}

// Group collects the open invoices of one counterparty. On the customer
// side the sums cover only the invoices of the current page; on the
// supplier side they cover everything open.
type Group struct {
	PartyID   int64           `json:"party_id"`
	PartyName string          `json:"party_name"`
	Invoices  []Invoice       `json:"invoices"`
	Balance   decimal.Decimal `json:"balance"`
	Count     int             `json:"count"`
}

// CustomerPage is one page of customer outstanding groups. Pagination runs
// over the flat invoice list before grouping, so a customer can reappear
// on several pages with page-scoped sums.
type CustomerPage struct {
	Groups     []Group `json:"groups"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
	TotalCount int     `json:"total_count"`
}

// StatementLine is one invoice line as printed on a statement.
type StatementLine struct {
	BundleID   int64           `json:"bundle_id"`
	BundleName string          `json:"bundle_name"`
	Qty        decimal.Decimal `json:"qty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

// StatementInvoice is one open invoice with its lines.
type StatementInvoice struct {
	InvoiceID   int64           `json:"invoice_id"`
	InvoiceNo   string          `json:"invoice_no"`
	InvoiceDate time.Time       `json:"invoice_date"`
	Total       decimal.Decimal `json:"total"`
	BalanceDue  decimal.Decimal `json:"balance_due"`
	Lines       []StatementLine `json:"lines"`
}

// Statement is the printable outstanding statement for one counterparty.
type Statement struct {
	PartyID      int64              `json:"party_id"`
	PartyName    string             `json:"party_name"`
	Invoices     []StatementInvoice `json:"invoices"`
	TotalAmount  decimal.Decimal    `json:"total_amount"`
	TotalDue     decimal.Decimal    `json:"total_due"`
	InvoiceCount int                `json:"invoice_count"`
	GeneratedAt  time.Time          `json:"generated_at"`
}
