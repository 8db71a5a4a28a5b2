package party

import (
	"errors"
	"time"
)

// Kind separates the two counterparty registries.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindSupplier Kind = "supplier"
)

// ErrNotFound indicates an unknown party id.
var ErrNotFound = errors.New("party: not found")

// Party is one customer or supplier.
type Party struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateInput registers a new party.
type CreateInput struct {
	Name    string
	Phone   string
	Address string
}
