// Package ledger records every receipt submission. It is the source of
// truth for assigned prize counts; the Redis stock cache is reconciled
// against it.
package ledger

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Submission is one receipt entry. Rows are append-mostly: the only
// mutation is the manual prize assignment of a pending row.
type Submission struct {
	ID         string    `json:"id"`
	Phone      string    `json:"telefono"`
	Name       string    `json:"nombre"`
	Store      string    `json:"tienda"`
	TaxName    string    `json:"rfc_nombre"`
	Occupation string    `json:"ocupacion"`
	Occasion   string    `json:"festejo"`
	Referral   string    `json:"medio"`
	Seller     string    `json:"vendedor"`
	Amount     *float64  `json:"monto,omitempty"`
	Prize      string    `json:"premio"`
	Detail     string    `json:"motivo,omitempty"`
	PhotoRef   string    `json:"ticket,omitempty"`
	CreatedAt  time.Time `json:"timestamp"`
}

// StoreCount is a participation tally for one store.
type StoreCount struct {
	Store string `json:"tienda"`
	Count int    `json:"registros"`
}

type Store interface {
	// Append writes a new submission. The ID and CreatedAt fields are
	// assigned by the store.
	Append(ctx context.Context, sub *Submission) error

	// All returns every submission, newest first.
	All(ctx context.Context) ([]Submission, error)

	// AssignedCounts tallies confirmed prize assignments per prize name,
	// excluding sentinel outcomes (pending, review, no-stock, rejected).
	AssignedCounts(ctx context.Context) (map[string]int, error)

	// Pending returns submissions still awaiting manual review.
	Pending(ctx context.Context) ([]Submission, error)

	// AssignPrize sets the prize and amount on the oldest pending
	// submission for a phone number. ErrNotFound when none is pending.
	AssignPrize(ctx context.Context, phone, prize string, amount float64) error

	// StoreCounts tallies submissions per store, descending, at most limit.
	StoreCounts(ctx context.Context, limit int) ([]StoreCount, error)

	// TotalAmount sums all extracted amounts.
	TotalAmount(ctx context.Context) (float64, error)
}
