package order

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediport/portal/internal/domain/escrow"
)

// Notifier delivers order-event notifications. Delivery is best effort: a
// failed notification never fails the transition that triggered it.
type Notifier interface {
	NotifyOrderEvent(ctx context.Context, o *Order, message string)
}

// LedgerLog is the read side of the escrow ledger used for reconciliation.
type LedgerLog interface {
	ListOrderTransactions(ctx context.Context, orderID uuid.UUID) ([]*escrow.Transaction, error)
}

// PersistAfterLedgerError reports the dangerous failure mode: the ledger
// mutation committed but the order record write failed afterward. The ledger
// transaction id is carried so reconciliation can find the applied effect.
type PersistAfterLedgerError struct {
	OrderID             uuid.UUID
	LedgerTransactionID uuid.UUID
	Err                 error
}

func (e *PersistAfterLedgerError) Error() string {
	return fmt.Sprintf("order %s: ledger transaction %s applied but order persist failed: %v; run reconciliation",
		e.OrderID, e.LedgerTransactionID, e.Err)
}

func (e *PersistAfterLedgerError) Unwrap() error { return e.Err }

type Service struct {
	orders     OrderRepository
	ledger     escrow.Ledger
	ledgerLog  LedgerLog
	notifier   Notifier
	lockAmount float64
}

// NewService wires the order service. lockAmount is the flat per-order escrow
// deposit used when a creation request does not name one.
func NewService(orders OrderRepository, ledger escrow.Ledger, ledgerLog LedgerLog, lockAmount float64) *Service {
	return &Service{orders: orders, ledger: ledger, ledgerLog: ledgerLog, lockAmount: lockAmount}
}

// SetNotifier attaches an optional event notifier.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// CreateOrderInput carries the fields required to open an order.
type CreateOrderInput struct {
	Items              json.RawMessage `json:"items"`
	Pharmacy           string          `json:"pharmacy"`
	CustomerID         uuid.UUID       `json:"customer_id"`
	CustomerPhone      string          `json:"customer_phone"`
	TotalAmount        float64         `json:"total_amount"`
	DeliveryFee        float64         `json:"delivery_fee"`
	WalletAddress      string          `json:"wallet_address"`
	EscrowLockedAmount float64         `json:"escrow_locked_amount"`
}

func (in *CreateOrderInput) validate() error {
	if len(in.Items) == 0 || string(in.Items) == "null" || string(in.Items) == "[]" {
		return fmt.Errorf("items are required")
	}
	if strings.TrimSpace(in.Pharmacy) == "" {
		return fmt.Errorf("pharmacy is required")
	}
	if strings.TrimSpace(in.CustomerPhone) == "" {
		return fmt.Errorf("customer_phone is required")
	}
	if in.TotalAmount <= 0 {
		return fmt.Errorf("total_amount must be positive")
	}
	if in.DeliveryFee < 0 {
		return fmt.Errorf("delivery_fee must not be negative")
	}
	if strings.TrimSpace(in.WalletAddress) == "" {
		return fmt.Errorf("wallet_address is required")
	}
	if in.EscrowLockedAmount < 0 {
		return fmt.Errorf("escrow_locked_amount must not be negative")
	}
	return nil
}

// CreateOrder validates the input and persists a new order in PendingPayment.
// No ledger interaction happens here; LockEscrow performs the payment step so
// a failed lock leaves a retry-able order behind.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	locked := in.EscrowLockedAmount
	if locked == 0 {
		locked = s.lockAmount
	}

	now := time.Now().UTC()
	o := &Order{
		Status:             StatusPendingPayment,
		Items:              in.Items,
		Pharmacy:           in.Pharmacy,
		CustomerID:         in.CustomerID,
		CustomerPhone:      in.CustomerPhone,
		TotalAmount:        in.TotalAmount,
		DeliveryFee:        in.DeliveryFee,
		TotalWithDelivery:  in.TotalAmount + in.DeliveryFee,
		WalletAddress:      in.WalletAddress,
		EscrowLockedAmount: locked,
		PenaltyRate:        escrow.PenaltyRate,
		CollectionDeadline: now.Add(CollectionWindow),
		OrderDate:          now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

// LockEscrow locks the order's escrow amount and promotes the order from
// PendingPayment to PaidLocked. On a ledger failure the order keeps its
// status; the call can be retried.
func (s *Service) LockEscrow(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("order not found: %w", err)
	}
	if o.Status != StatusPendingPayment {
		return nil, &InvalidTransitionError{Action: "lock_escrow", Current: o.Status, Allowed: []Status{StatusPendingPayment}}
	}

	rec, err := s.ledger.Lock(ctx, o.WalletAddress, o.ID, o.EscrowLockedAmount)
	if err != nil {
		return nil, fmt.Errorf("lock escrow: %w", err)
	}

	o.Status = StatusPaidLocked
	o.EscrowStatus = EscrowLocked
	o.EscrowTransactionID = &rec.ID
	o.UpdatedAt = time.Now().UTC()
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, &PersistAfterLedgerError{OrderID: o.ID, LedgerTransactionID: rec.ID, Err: err}
	}

	s.notify(ctx, o, "Payment locked in escrow. Waiting for the pharmacy to confirm.")
	return o, nil
}

// Advance runs one lifecycle action: validate the transition, perform the
// ledger effect it names, then persist the new order state. A ledger failure
// leaves the order in its prior status with nothing applied.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, action Action) (*Order, string, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("order not found: %w", err)
	}

	out, err := Apply(o, action, time.Now().UTC())
	if err != nil {
		return nil, "", err
	}

	var rec *escrow.Transaction
	switch out.Effect {
	case EffectNone:
	case EffectRelease:
		rec, err = s.ledger.Release(ctx, o.WalletAddress, o.ID, o.EscrowLockedAmount)
	case EffectRefundFull, EffectRefundHalf:
		rec, err = s.ledger.Refund(ctx, o.WalletAddress, o.ID, *out.RefundAmount)
	case EffectPenaltySplit:
		rec, err = s.ledger.ApplyPenalty(ctx, o.WalletAddress, o.ID, *out.PenaltyAmount, *out.RefundAmount)
	}
	if err != nil {
		return nil, "", fmt.Errorf("escrow %s: %w", action, err)
	}

	out.ApplyTo(o)
	if err := s.orders.Update(ctx, o); err != nil {
		if rec != nil {
			return nil, "", &PersistAfterLedgerError{OrderID: o.ID, LedgerTransactionID: rec.ID, Err: err}
		}
		return nil, "", fmt.Errorf("persist order: %w", err)
	}

	s.notify(ctx, o, out.Message)
	return o, out.Message, nil
}

// UpdateStatus resolves a raw target status to its table-defined action and
// advances the order with it.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target Status) (*Order, string, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("order not found: %w", err)
	}

	action, ok := ActionForStatus(o.Status, target)
	if !ok {
		return nil, "", &InvalidTransitionError{Action: ActionUpdateStatus, Current: o.Status}
	}
	return s.Advance(ctx, id, action)
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, limit, offset int) ([]*Order, int, error) {
	return s.orders.List(ctx, limit, offset)
}

func (s *Service) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*Order, int, error) {
	return s.orders.ListByCustomer(ctx, customerID, limit, offset)
}

func (s *Service) ListOrdersByStatus(ctx context.Context, status Status, limit, offset int) ([]*Order, int, error) {
	return s.orders.ListByStatus(ctx, status, limit, offset)
}

// ListOverdue lists orders still out for delivery past their collection
// deadline. The deadline never triggers a transition by itself; an operator
// (or an external scheduler) decides what to do with the result.
func (s *Service) ListOverdue(ctx context.Context, limit, offset int) ([]*Order, int, error) {
	return s.orders.ListOverdue(ctx, time.Now().UTC(), limit, offset)
}

// ReconciliationReport compares an order's recorded escrow state with the
// ledger's transaction log for that order.
type ReconciliationReport struct {
	OrderID      uuid.UUID    `json:"order_id"`
	Status       Status       `json:"status"`
	EscrowStatus EscrowStatus `json:"escrow_status"`
	LedgerKinds  []string     `json:"ledger_kinds"`
	Consistent   bool         `json:"consistent"`
	Problems     []string     `json:"problems,omitempty"`
}

// expectedKinds maps each escrow disposition to the transaction kinds the
// ledger log must contain for it, in order.
var expectedKinds = map[EscrowStatus][]escrow.Kind{
	EscrowNone:           {},
	EscrowLocked:         {escrow.KindLock},
	EscrowReleased:       {escrow.KindLock, escrow.KindRelease},
	EscrowRefunded:       {escrow.KindLock, escrow.KindRefund},
	EscrowPartialRefund:  {escrow.KindLock, escrow.KindRefund},
	EscrowPenaltyApplied: {escrow.KindLock, escrow.KindPenalty},
}

// Reconcile re-reads the ledger log for the order and reports any effect that
// was applied without the matching order record, or vice versa. It only
// surfaces inconsistencies; it never repairs them.
func (s *Service) Reconcile(ctx context.Context, id uuid.UUID) (*ReconciliationReport, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("order not found: %w", err)
	}

	txs, err := s.ledgerLog.ListOrderTransactions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read ledger log: %w", err)
	}

	report := &ReconciliationReport{
		OrderID:      o.ID,
		Status:       o.Status,
		EscrowStatus: o.EscrowStatus,
		Consistent:   true,
	}

	var got []escrow.Kind
	for _, t := range txs {
		got = append(got, t.Kind)
		report.LedgerKinds = append(report.LedgerKinds, string(t.Kind))
	}

	want := expectedKinds[o.EscrowStatus]
	if len(got) != len(want) {
		report.Consistent = false
		report.Problems = append(report.Problems, fmt.Sprintf(
			"escrow status %q expects %d ledger transaction(s), found %d", o.EscrowStatus, len(want), len(got)))
	}
	for i := range want {
		if i >= len(got) {
			break
		}
		if got[i] != want[i] {
			report.Consistent = false
			report.Problems = append(report.Problems, fmt.Sprintf(
				"ledger transaction %d is %q, expected %q", i, got[i], want[i]))
		}
	}
	for i := len(want); i < len(got); i++ {
		report.Consistent = false
		report.Problems = append(report.Problems, fmt.Sprintf(
			"ledger holds unrecorded %q transaction for this order", got[i]))
	}

	return report, nil
}

func (s *Service) notify(ctx context.Context, o *Order, message string) {
	if s.notifier != nil {
		s.notifier.NotifyOrderEvent(ctx, o, message)
	}
}
