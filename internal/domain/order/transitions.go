package order

import (
	"fmt"
	"time"
)

// Action names a lifecycle operation a caller can request on an order.
type Action string

const (
	ActionConfirmPreparing Action = "confirm_preparing"
	ActionOutForDelivery   Action = "out_for_delivery"
	ActionMarkCollected    Action = "mark_collected"
	ActionCancel           Action = "cancel"
	ActionMarkNoShow       Action = "mark_no_show"
	// ActionUpdateStatus is the raw-status request form; it is resolved to one
	// of the actions above through ActionForStatus before anything runs.
	ActionUpdateStatus Action = "update_status"
)

// EscrowEffect tags the ledger operation a transition requires. The state
// machine only names the effect and its amounts; the service sequences the
// actual ledger call.
type EscrowEffect int

const (
	EffectNone EscrowEffect = iota
	// EffectRelease hands the locked amount to the pharmacy.
	EffectRelease
	// EffectRefundFull returns the whole locked amount to the customer.
	EffectRefundFull
	// EffectRefundHalf splits the locked amount at PreparingCancelRate:
	// the penalty half is forfeited, the rest refunded.
	EffectRefundHalf
	// EffectPenaltySplit splits the locked amount at the order's captured
	// penalty rate (no-show).
	EffectPenaltySplit
)

// rule is one row of the transition table: an action applied in one of the
// from statuses moves the order to next and requires the given escrow effect.
type rule struct {
	from    []Status
	next    Status
	effect  EscrowEffect
	escrow  EscrowStatus
	message string
}

// transitionTable is the single source of truth for the lifecycle: the state
// machine, the update_status resolution, and the per-action response messages
// all read from it.
var transitionTable = map[Action][]rule{
	ActionConfirmPreparing: {{
		from:    []Status{StatusPaidLocked},
		next:    StatusPreparing,
		effect:  EffectNone,
		escrow:  EscrowLocked,
		message: "Order confirmed. The pharmacy is preparing your medication.",
	}},
	ActionOutForDelivery: {{
		from:    []Status{StatusPreparing},
		next:    StatusOutForDelivery,
		effect:  EffectNone,
		escrow:  EscrowLocked,
		message: "Your order is out for delivery.",
	}},
	ActionMarkCollected: {{
		from:    []Status{StatusOutForDelivery},
		next:    StatusDelivered,
		effect:  EffectRelease,
		escrow:  EscrowReleased,
		message: "Order collected. Escrow released to the pharmacy.",
	}},
	ActionCancel: {
		{
			from:    []Status{StatusPendingPayment, StatusPaidLocked},
			next:    StatusCancelled,
			effect:  EffectRefundFull,
			escrow:  EscrowRefunded,
			message: "Order cancelled. Full refund processed.",
		},
		{
			from:    []Status{StatusPreparing},
			next:    StatusCancelled,
			effect:  EffectRefundHalf,
			escrow:  EscrowPartialRefund,
			message: "Order cancelled during preparation. A 50% cancellation penalty was applied and the remainder refunded.",
		},
	},
	ActionMarkNoShow: {{
		from:    []Status{StatusOutForDelivery},
		next:    StatusNoShow,
		effect:  EffectPenaltySplit,
		escrow:  EscrowPenaltyApplied,
		message: "No-show recorded. Penalty applied and partial refund processed.",
	}},
}

// Outcome is the full decision for one transition: the next status, the escrow
// disposition, the exact amounts to move, and the user-facing message. It is
// computed without side effects; nothing is applied until the caller has run
// the ledger operation it names.
type Outcome struct {
	Action       Action
	NextStatus   Status
	EscrowStatus EscrowStatus
	Effect       EscrowEffect

	// RefundAmount and PenaltyAmount are set only by terminal money-moving
	// transitions. When both are set they sum to the order's locked amount.
	RefundAmount  *float64
	PenaltyAmount *float64

	Message string
	Now     time.Time
}

// InvalidTransitionError reports an action attempted against a status outside
// its valid set.
type InvalidTransitionError struct {
	Action  Action
	Current Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("action %q is not a valid order action (current status %q)", e.Action, e.Current)
	}
	return fmt.Sprintf("action %q is not valid in status %q (requires status %v)", e.Action, e.Current, e.Allowed)
}

// Apply computes the transition for action against the order's current status.
// It is pure: the order is not modified and no I/O happens. A rejection leaves
// everything untouched.
func Apply(o *Order, action Action, now time.Time) (Outcome, error) {
	rules, ok := transitionTable[action]
	if !ok {
		return Outcome{}, &InvalidTransitionError{Action: action, Current: o.Status}
	}

	var allowed []Status
	for _, r := range rules {
		allowed = append(allowed, r.from...)
		if !statusIn(o.Status, r.from) {
			continue
		}

		out := Outcome{
			Action:       action,
			NextStatus:   r.next,
			EscrowStatus: r.escrow,
			Effect:       r.effect,
			Message:      r.message,
			Now:          now,
		}

		locked := o.EscrowLockedAmount
		switch r.effect {
		case EffectRefundFull:
			if o.EscrowStatus != EscrowLocked {
				// Cancelled before any funds were locked; there is nothing
				// to return.
				out.Effect = EffectNone
				out.EscrowStatus = o.EscrowStatus
				out.Message = "Order cancelled."
				break
			}
			out.RefundAmount = ptr(locked)
			out.PenaltyAmount = ptr(0.0)
		case EffectRefundHalf:
			penalty := locked * PreparingCancelRate
			out.PenaltyAmount = ptr(penalty)
			out.RefundAmount = ptr(locked - penalty)
		case EffectPenaltySplit:
			penalty := locked * o.PenaltyRate
			out.PenaltyAmount = ptr(penalty)
			out.RefundAmount = ptr(locked - penalty)
		}

		return out, nil
	}

	return Outcome{}, &InvalidTransitionError{Action: action, Current: o.Status, Allowed: allowed}
}

// ActionForStatus resolves a raw requested status change to the action the
// transition table defines for it, if any. update_status requests go through
// here so the table stays the only definition of legality.
func ActionForStatus(from, to Status) (Action, bool) {
	for action, rules := range transitionTable {
		for _, r := range rules {
			if r.next == to && statusIn(from, r.from) {
				return action, true
			}
		}
	}
	return "", false
}

// ApplyTo writes the outcome onto the order, stamping the transition's
// timestamp field. Called only after the ledger effect succeeded.
func (out Outcome) ApplyTo(o *Order) {
	o.Status = out.NextStatus
	o.EscrowStatus = out.EscrowStatus
	if out.RefundAmount != nil {
		o.RefundAmount = out.RefundAmount
	}
	if out.PenaltyAmount != nil {
		o.PenaltyAmount = out.PenaltyAmount
	}

	now := out.Now
	switch out.NextStatus {
	case StatusPreparing:
		o.PreparingStartedAt = &now
	case StatusOutForDelivery:
		o.OutForDeliveryAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
		o.EscrowReleasedAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	case StatusNoShow:
		o.NoShowAt = &now
	}
	o.UpdatedAt = now
}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func ptr(f float64) *float64 { return &f }
