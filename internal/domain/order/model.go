package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is an order's lifecycle state. Transitions move forward along the
// graph in transitions.go and never leave a terminal state.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaidLocked     Status = "paid_locked"
	StatusPreparing      Status = "preparing"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusNoShow         Status = "no_show"
)

// IsTerminal reports whether no further transition is permitted from s.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusNoShow
}

// EscrowStatus tracks the disposition of the locked escrow amount. It is
// causally tied to Status but distinct from it: at each terminal status it is
// uniquely determined by how the money settled.
type EscrowStatus string

const (
	EscrowNone           EscrowStatus = ""
	EscrowLocked         EscrowStatus = "locked"
	EscrowReleased       EscrowStatus = "released"
	EscrowRefunded       EscrowStatus = "refunded"
	EscrowPartialRefund  EscrowStatus = "partial_refund"
	EscrowPenaltyApplied EscrowStatus = "penalty_applied"
)

const (
	// CollectionWindow is how long after creation a customer has to collect
	// the delivery. The deadline is advisory: nothing transitions an order
	// automatically when it passes.
	CollectionWindow = 24 * time.Hour

	// PreparingCancelRate is the fraction of locked escrow forfeited when an
	// order is cancelled while the pharmacy is already preparing it.
	PreparingCancelRate = 0.5
)

// Order maps to the medicine_order table.
type Order struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Status        Status          `db:"status" json:"status"`
	Items         json.RawMessage `db:"items" json:"items"`
	Pharmacy      string          `db:"pharmacy" json:"pharmacy"`
	CustomerID    uuid.UUID       `db:"customer_id" json:"customer_id"`
	CustomerPhone string          `db:"customer_phone" json:"customer_phone"`

	TotalAmount       float64 `db:"total_amount" json:"total_amount"`
	DeliveryFee       float64 `db:"delivery_fee" json:"delivery_fee"`
	TotalWithDelivery float64 `db:"total_with_delivery" json:"total_with_delivery"`

	WalletAddress       string       `db:"wallet_address" json:"wallet_address"`
	EscrowLockedAmount  float64      `db:"escrow_locked_amount" json:"escrow_locked_amount"`
	EscrowTransactionID *uuid.UUID   `db:"escrow_transaction_id" json:"escrow_transaction_id,omitempty"`
	EscrowStatus        EscrowStatus `db:"escrow_status" json:"escrow_status,omitempty"`

	CollectionDeadline time.Time `db:"collection_deadline" json:"collection_deadline"`

	RefundAmount  *float64 `db:"refund_amount" json:"refund_amount,omitempty"`
	PenaltyAmount *float64 `db:"penalty_amount" json:"penalty_amount,omitempty"`
	// PenaltyRate is captured at creation so the no-show math of an in-flight
	// order never shifts under a later rate change.
	PenaltyRate float64 `db:"penalty_rate" json:"penalty_rate"`

	OrderDate          time.Time  `db:"order_date" json:"order_date"`
	PreparingStartedAt *time.Time `db:"preparing_started_at" json:"preparing_started_at,omitempty"`
	OutForDeliveryAt   *time.Time `db:"out_for_delivery_at" json:"out_for_delivery_at,omitempty"`
	DeliveredAt        *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	NoShowAt           *time.Time `db:"no_show_at" json:"no_show_at,omitempty"`
	EscrowReleasedAt   *time.Time `db:"escrow_released_at" json:"escrow_released_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}
