package escrow

import (
	"time"

	"github.com/google/uuid"
)

// PenaltyRate is the fraction of a locked escrow amount forfeited when a
// delivery ends in a no-show. Orders capture this value at creation so later
// rate changes never alter the accounting of an order already in flight.
const PenaltyRate = 0.15

// Kind tags a ledger transaction with the operation that produced it.
type Kind string

const (
	KindLock    Kind = "lock"
	KindRelease Kind = "release"
	KindRefund  Kind = "refund"
	KindPenalty Kind = "penalty"
)

// Wallet maps to the wallet table. Balance is the single mutable resource of
// the ledger; every change to it is paired with exactly one Transaction row.
type Wallet struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Address   string    `db:"address" json:"address"`
	Balance   float64   `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction maps to the escrow_transaction table. Rows are append-only: the
// table is the audit trail of all balance changes and is never updated or
// deleted from.
type Transaction struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	WalletID  uuid.UUID  `db:"wallet_id" json:"wallet_id"`
	OrderID   *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	Kind      Kind       `db:"kind" json:"kind"`
	Amount    float64    `db:"amount" json:"amount"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// PenaltySplit is the result of dividing a locked amount between the forfeited
// penalty and the refunded remainder.
type PenaltySplit struct {
	Penalty float64 `json:"penalty"`
	Refund  float64 `json:"refund"`
}

// SplitPenalty divides lockedAmount at the given rate. The two parts always
// sum to lockedAmount exactly, so the full locked amount stays accounted for.
func SplitPenalty(lockedAmount, rate float64) PenaltySplit {
	penalty := lockedAmount * rate
	return PenaltySplit{
		Penalty: penalty,
		Refund:  lockedAmount - penalty,
	}
}
