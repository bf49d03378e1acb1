package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mediport/portal/internal/domain/order"
)

// OrderNotifier translates order lifecycle events into SMS messages for the
// customer and, when configured, webhook events for external systems.
// Delivery failures are logged and swallowed; a notification never blocks or
// fails an order transition.
type OrderNotifier struct {
	manager *Manager
	log     zerolog.Logger
}

func NewOrderNotifier(manager *Manager, log zerolog.Logger) *OrderNotifier {
	return &OrderNotifier{manager: manager, log: log}
}

// templateFor picks the lifecycle template for the order's current state.
func templateFor(o *order.Order) (string, bool) {
	switch o.Status {
	case order.StatusPaidLocked:
		return "order-paid-locked", true
	case order.StatusPreparing:
		return "order-preparing", true
	case order.StatusOutForDelivery:
		return "order-out-for-delivery", true
	case order.StatusDelivered:
		return "order-delivered", true
	case order.StatusCancelled:
		switch o.EscrowStatus {
		case order.EscrowPartialRefund:
			return "order-cancelled-partial-refund", true
		case order.EscrowRefunded:
			return "order-cancelled-full-refund", true
		}
		// Cancelled before any funds were locked: no money moved, nothing
		// to tell the customer about.
		return "", false
	case order.StatusNoShow:
		return "order-no-show", true
	}
	return "", false
}

func templateData(o *order.Order) map[string]string {
	data := map[string]string{
		"order_id": o.ID.String(),
		"pharmacy": o.Pharmacy,
		"amount":   fmt.Sprintf("%.2f", o.EscrowLockedAmount),
		"deadline": o.CollectionDeadline.Format("Jan 2 15:04"),
	}
	if o.RefundAmount != nil {
		data["refund"] = fmt.Sprintf("%.2f", *o.RefundAmount)
	}
	if o.PenaltyAmount != nil {
		data["penalty"] = fmt.Sprintf("%.2f", *o.PenaltyAmount)
	}
	return data
}

func (n *OrderNotifier) NotifyOrderEvent(ctx context.Context, o *order.Order, message string) {
	templateID, ok := templateFor(o)
	if !ok {
		return
	}
	data := templateData(o)

	if _, err := n.manager.SendFromTemplate(ctx, ChannelSMS, templateID, data, o.CustomerPhone); err != nil {
		n.log.Warn().Err(err).
			Str("order_id", o.ID.String()).
			Str("template", templateID).
			Msg("order SMS notification failed")
	}

	if n.manager.webhook != nil {
		if _, err := n.manager.SendFromTemplate(ctx, ChannelWebhook, templateID, data, o.CustomerPhone); err != nil {
			n.log.Warn().Err(err).
				Str("order_id", o.ID.String()).
				Str("template", templateID).
				Msg("order webhook notification failed")
		}
	}
}
