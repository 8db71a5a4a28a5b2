package stock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType classifies ledger entries by what caused them.
type MovementType string

const (
	MovementPurchaseIn MovementType = "purchase_in"
	MovementSaleOut    MovementType = "sale_out"
	MovementAdjustment MovementType = "adjustment"
)

var (
	// ErrInvalidDelta rejects zero-pack movements.
	ErrInvalidDelta = errors.New("stock: packs delta must be non-zero")
	// ErrNegativeStock indicates the movement would take a bundle below zero.
	ErrNegativeStock = errors.New("stock: insufficient packs on hand")
	// ErrBundleNotFound indicates an unknown bundle id.
	ErrBundleNotFound = errors.New("stock: bundle not found")
	// ErrBalanceNotFound indicates no balance row exists yet for a bundle.
	ErrBalanceNotFound = errors.New("stock: balance not found")
)

// Bundle is the traded unit: a bundle holds a fixed number of packs.
// Sales move packs, purchases move bundles; packs_per_bundle converts
// between the two.
type Bundle struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	PacksPerBundle int64     `json:"packs_per_bundle"`
	CreatedAt      time.Time `json:"created_at"`
}

// Movement is one signed entry in the pack ledger. Positive deltas come
// from purchases or upward adjustments, negative from sales.
type Movement struct {
	ID                int64        `json:"id"`
	BundleID          int64        `json:"bundle_id"`
	Type              MovementType `json:"type"`
	PacksDelta        int64        `json:"packs_delta"`
	MovementDatetime  time.Time    `json:"movement_datetime"`
	PurchaseInvoiceID int64        `json:"purchase_invoice_id,omitempty"`
	SalesInvoiceID    int64        `json:"sales_invoice_id,omitempty"`
	Note              string       `json:"note,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

// Balance is the running packs-on-hand for one bundle.
type Balance struct {
	BundleID    int64
	PacksOnHand int64
	UpdatedAt   time.Time
}

// OnHand is the read-side stock position per bundle.
type OnHand struct {
	BundleID       int64           `json:"bundle_id"`
	BundleName     string          `json:"bundle_name"`
	PacksPerBundle int64           `json:"packs_per_bundle"`
	PacksOnHand    int64           `json:"packs_on_hand"`
	BundlesOnHand  decimal.Decimal `json:"bundles_on_hand"`
}

// MovementInput describes one movement to post.
type MovementInput struct {
	BundleID          int64
	Type              MovementType
	PacksDelta        int64
	MovementDatetime  time.Time
	PurchaseInvoiceID int64
	SalesInvoiceID    int64
	Note              string
	IdempotencyKey    string
	ActorID           int64
}

// CreateBundleInput registers a new bundle.
type CreateBundleInput struct {
	Name           string
	PacksPerBundle int64
}
