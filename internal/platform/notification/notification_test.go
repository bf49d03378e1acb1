package notification

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediport/portal/internal/domain/order"
)

func TestRenderReplacesPlaceholders(t *testing.T) {
	e := NewTemplateEngine()
	body, err := e.Render("order-preparing", map[string]string{
		"pharmacy": "Central Pharmacy",
		"order_id": "abc-123",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body, "Central Pharmacy") || !strings.Contains(body, "abc-123") {
		t.Errorf("body = %q", body)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	e := NewTemplateEngine()
	if _, err := e.Render("nope", nil); err == nil {
		t.Error("Render succeeded for unknown template")
	}
}

func TestRenderLeavesMissingKeys(t *testing.T) {
	e := NewTemplateEngine()
	body, err := e.Render("order-no-show", map[string]string{"order_id": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body, "{{penalty}}") {
		t.Errorf("missing key was not left as placeholder: %q", body)
	}
}

func TestSendRecordsNotification(t *testing.T) {
	sms := &MockSMSSender{}
	m := NewManager(sms, nil, NewTemplateEngine())

	n := &Notification{Channel: ChannelSMS, Recipient: "+234800", Body: "hello"}
	if err := m.Send(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	if n.Status != "sent" || n.SentAt == nil {
		t.Errorf("status = %s, sent_at = %v", n.Status, n.SentAt)
	}
	calls := sms.Calls()
	if len(calls) != 1 || calls[0].To != "+234800" {
		t.Errorf("calls = %+v", calls)
	}
	stored, err := m.Get(n.ID)
	if err != nil || stored.Body != "hello" {
		t.Errorf("stored = %+v, err = %v", stored, err)
	}
}

func TestSendFailureThenRetry(t *testing.T) {
	sms := &MockSMSSender{ShouldFail: true, FailError: "gateway down"}
	m := NewManager(sms, nil, NewTemplateEngine())

	n := &Notification{Channel: ChannelSMS, Recipient: "+234800", Body: "hi"}
	if err := m.Send(context.Background(), n); err == nil {
		t.Fatal("Send succeeded despite failing sender")
	}
	if n.Status != "failed" || n.Error == "" {
		t.Errorf("status = %s, error = %q", n.Status, n.Error)
	}

	sms.ShouldFail = false
	if err := m.Retry(context.Background(), n.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	stored, _ := m.Get(n.ID)
	if stored.Status != "sent" || stored.Error != "" {
		t.Errorf("after retry: status = %s, error = %q", stored.Status, stored.Error)
	}

	// A sent notification cannot be retried again.
	if err := m.Retry(context.Background(), n.ID); err == nil {
		t.Error("Retry succeeded on a sent notification")
	}
}

func TestStats(t *testing.T) {
	sms := &MockSMSSender{}
	m := NewManager(sms, nil, NewTemplateEngine())

	_ = m.Send(context.Background(), &Notification{Channel: ChannelSMS, Recipient: "a", Body: "1"})
	_ = m.Send(context.Background(), &Notification{Channel: ChannelSMS, Recipient: "a", Body: "2"})
	sms.ShouldFail = true
	sms.FailError = "down"
	_ = m.Send(context.Background(), &Notification{Channel: ChannelSMS, Recipient: "a", Body: "3"})

	stats := m.Stats()
	if stats["sent"] != 2 || stats["failed"] != 1 {
		t.Errorf("stats = %v", stats)
	}
	if got := m.ListByRecipient("a", 10); len(got) != 3 {
		t.Errorf("ListByRecipient = %d items, want 3", len(got))
	}
}

func TestOrderNotifierPicksLifecycleTemplate(t *testing.T) {
	refund := 100.0
	penalty := 100.0
	cases := []struct {
		status order.Status
		escrow order.EscrowStatus
		want   string
	}{
		{order.StatusPaidLocked, order.EscrowLocked, "locked in escrow"},
		{order.StatusPreparing, order.EscrowLocked, "preparing your medication"},
		{order.StatusOutForDelivery, order.EscrowLocked, "out for delivery"},
		{order.StatusDelivered, order.EscrowReleased, "released"},
		{order.StatusCancelled, order.EscrowRefunded, "full escrow amount"},
		{order.StatusCancelled, order.EscrowPartialRefund, "cancellation penalty"},
		{order.StatusNoShow, order.EscrowPenaltyApplied, "no-show penalty"},
	}

	for _, tc := range cases {
		sms := &MockSMSSender{}
		m := NewManager(sms, nil, NewTemplateEngine())
		notifier := NewOrderNotifier(m, zerolog.Nop())

		o := &order.Order{
			ID:                 uuid.New(),
			Status:             tc.status,
			EscrowStatus:       tc.escrow,
			Pharmacy:           "Central Pharmacy",
			CustomerPhone:      "+234800",
			EscrowLockedAmount: 200,
			RefundAmount:       &refund,
			PenaltyAmount:      &penalty,
		}
		notifier.NotifyOrderEvent(context.Background(), o, "ignored")

		calls := sms.Calls()
		if len(calls) != 1 {
			t.Fatalf("%s/%s: %d SMS sent, want 1", tc.status, tc.escrow, len(calls))
		}
		if !strings.Contains(calls[0].Body, tc.want) {
			t.Errorf("%s/%s: body = %q, want substring %q", tc.status, tc.escrow, calls[0].Body, tc.want)
		}
	}
}

func TestOrderNotifierSkipsPendingPayment(t *testing.T) {
	sms := &MockSMSSender{}
	m := NewManager(sms, nil, NewTemplateEngine())
	notifier := NewOrderNotifier(m, zerolog.Nop())

	o := &order.Order{ID: uuid.New(), Status: order.StatusPendingPayment, CustomerPhone: "+234800"}
	notifier.NotifyOrderEvent(context.Background(), o, "")

	if calls := sms.Calls(); len(calls) != 0 {
		t.Errorf("%d SMS sent for pending_payment, want 0", len(calls))
	}
}
