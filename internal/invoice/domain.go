package invoice

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoLines rejects invoices without any line.
	ErrNoLines = errors.New("invoice: at least one line required")
	// ErrInvalidLine rejects non-positive quantities or negative prices.
	ErrInvalidLine = errors.New("invoice: line quantity must be positive and price non-negative")
	// ErrNotFound indicates an unknown invoice id.
	ErrNotFound = errors.New("invoice: not found")
	// ErrDuplicateNo indicates the invoice number is already taken.
	ErrDuplicateNo = errors.New("invoice: invoice number already exists")
)

// SalesInvoice is one sale of packs to a customer.
type SalesInvoice struct {
	ID           int64           `json:"id"`
	InvoiceNo    string          `json:"invoice_no"`
	CustomerID   int64           `json:"customer_id"`
	InvoiceDate  time.Time       `json:"invoice_date"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	OtherCharges decimal.Decimal `json:"other_charges"`
	Total        decimal.Decimal `json:"total"`
	Note         string          `json:"note,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Lines        []SalesLine     `json:"lines,omitempty"`
}

// SalesLine is one bundle position on a sales invoice. UnitCost is the
// pack cost attributed at sale time from the purchase-history lookback;
// zero when the bundle had no usable history.
type SalesLine struct {
	ID        int64           `json:"id"`
	InvoiceID int64           `json:"invoice_id"`
	BundleID  int64           `json:"bundle_id"`
	PacksQty  int64           `json:"packs_qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// PurchaseInvoice is one inbound purchase of bundles from a supplier.
type PurchaseInvoice struct {
	ID           int64           `json:"id"`
	InvoiceNo    string          `json:"invoice_no"`
	SupplierID   int64           `json:"supplier_id"`
	InvoiceDate  time.Time       `json:"invoice_date"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	OtherCharges decimal.Decimal `json:"other_charges"`
	Total        decimal.Decimal `json:"total"`
	Note         string          `json:"note,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Lines        []PurchaseLine  `json:"lines,omitempty"`
}

// PurchaseLine is one bundle position on a purchase invoice.
type PurchaseLine struct {
	ID                int64           `json:"id"`
	InvoiceID         int64           `json:"invoice_id"`
	BundleID          int64           `json:"bundle_id"`
	BundlesQty        int64           `json:"bundles_qty"`
	UnitCostPerBundle decimal.Decimal `json:"unit_cost_per_bundle"`
	LineTotal         decimal.Decimal `json:"line_total"`
}

// SaleLineInput is one requested sales line.
type SaleLineInput struct {
	BundleID  int64
	PacksQty  int64
	UnitPrice decimal.Decimal
}

// RecordSaleInput creates a sales invoice, posts the outbound stock and
// optionally settles it on the spot.
type RecordSaleInput struct {
	CustomerID   int64
	InvoiceNo    string
	InvoiceDate  time.Time
	Lines        []SaleLineInput
	Discount     decimal.Decimal
	OtherCharges decimal.Decimal
	Note         string
	PayNow       bool
	PayAmount    decimal.Decimal
	ActorID      int64
}

// PurchaseLineInput is one requested purchase line.
type PurchaseLineInput struct {
	BundleID          int64
	BundlesQty        int64
	UnitCostPerBundle decimal.Decimal
}

// RecordPurchaseInput creates a purchase invoice and posts the inbound
// stock that feeds the costing lookback.
type RecordPurchaseInput struct {
	SupplierID   int64
	InvoiceNo    string
	InvoiceDate  time.Time
	Lines        []PurchaseLineInput
	Discount     decimal.Decimal
	OtherCharges decimal.Decimal
	Note         string
	ActorID      int64
}

// SaleResult reports what a recorded sale produced. MissingCostBundles
// lists bundle ids sold without purchase history; the sale still goes
// through with zero cost on those lines.
type SaleResult struct {
	Invoice            SalesInvoice `json:"invoice"`
	MissingCostBundles []int64      `json:"missing_cost_bundles,omitempty"`
	PaymentID          int64        `json:"payment_id,omitempty"`
}

// ListRequest filters invoice listings.
type ListRequest struct {
	PartyID int64
	Limit   int
	Offset  int
}
