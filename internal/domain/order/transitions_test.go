package order

import (
	"errors"
	"testing"
	"time"
)

func testOrder(status Status, locked float64) *Order {
	return &Order{
		Status:             status,
		EscrowLockedAmount: locked,
		PenaltyRate:        0.15,
	}
}

func TestApplyHappyPath(t *testing.T) {
	now := time.Now().UTC()
	steps := []struct {
		from   Status
		action Action
		next   Status
		escrow EscrowStatus
	}{
		{StatusPaidLocked, ActionConfirmPreparing, StatusPreparing, EscrowLocked},
		{StatusPreparing, ActionOutForDelivery, StatusOutForDelivery, EscrowLocked},
		{StatusOutForDelivery, ActionMarkCollected, StatusDelivered, EscrowReleased},
	}

	for _, s := range steps {
		o := testOrder(s.from, 200)
		out, err := Apply(o, s.action, now)
		if err != nil {
			t.Fatalf("Apply(%s from %s): %v", s.action, s.from, err)
		}
		if out.NextStatus != s.next {
			t.Errorf("Apply(%s from %s): next = %s, want %s", s.action, s.from, out.NextStatus, s.next)
		}
		if out.EscrowStatus != s.escrow {
			t.Errorf("Apply(%s from %s): escrow = %s, want %s", s.action, s.from, out.EscrowStatus, s.escrow)
		}
	}
}

func TestApplyCancelFullRefund(t *testing.T) {
	o := testOrder(StatusPaidLocked, 200)
	o.EscrowStatus = EscrowLocked
	out, err := Apply(o, ActionCancel, time.Now().UTC())
	if err != nil {
		t.Fatalf("cancel from paid_locked: %v", err)
	}
	if out.NextStatus != StatusCancelled {
		t.Errorf("next = %s", out.NextStatus)
	}
	if out.EscrowStatus != EscrowRefunded {
		t.Errorf("escrow = %s", out.EscrowStatus)
	}
	if *out.RefundAmount != 200 || *out.PenaltyAmount != 0 {
		t.Errorf("refund = %v, penalty = %v, want 200 and 0", *out.RefundAmount, *out.PenaltyAmount)
	}
}

func TestApplyCancelBeforeLockHasNoLedgerEffect(t *testing.T) {
	o := testOrder(StatusPendingPayment, 200)
	out, err := Apply(o, ActionCancel, time.Now().UTC())
	if err != nil {
		t.Fatalf("cancel from pending_payment: %v", err)
	}
	if out.NextStatus != StatusCancelled {
		t.Errorf("next = %s", out.NextStatus)
	}
	if out.Effect != EffectNone {
		t.Errorf("effect = %v, want none before any funds were locked", out.Effect)
	}
	if out.EscrowStatus != EscrowNone {
		t.Errorf("escrow = %s, want %s", out.EscrowStatus, EscrowNone)
	}
	if out.RefundAmount != nil || out.PenaltyAmount != nil {
		t.Error("refund/penalty recorded for an order that never locked funds")
	}
}

func TestApplyCancelDuringPreparing(t *testing.T) {
	o := testOrder(StatusPreparing, 200)
	out, err := Apply(o, ActionCancel, time.Now().UTC())
	if err != nil {
		t.Fatalf("cancel from preparing: %v", err)
	}
	if out.EscrowStatus != EscrowPartialRefund {
		t.Errorf("escrow = %s, want %s", out.EscrowStatus, EscrowPartialRefund)
	}
	if *out.PenaltyAmount != 100 {
		t.Errorf("penalty = %v, want 100", *out.PenaltyAmount)
	}
	if *out.RefundAmount != 100 {
		t.Errorf("refund = %v, want 100", *out.RefundAmount)
	}
}

func TestApplyNoShowUsesCapturedRate(t *testing.T) {
	o := testOrder(StatusOutForDelivery, 100)
	out, err := Apply(o, ActionMarkNoShow, time.Now().UTC())
	if err != nil {
		t.Fatalf("mark_no_show: %v", err)
	}
	if *out.PenaltyAmount != 15 {
		t.Errorf("penalty = %v, want 15", *out.PenaltyAmount)
	}
	if *out.RefundAmount != 85 {
		t.Errorf("refund = %v, want 85", *out.RefundAmount)
	}

	// An order created under a different rate keeps that rate.
	o = testOrder(StatusOutForDelivery, 100)
	o.PenaltyRate = 0.25
	out, err = Apply(o, ActionMarkNoShow, time.Now().UTC())
	if err != nil {
		t.Fatalf("mark_no_show: %v", err)
	}
	if *out.PenaltyAmount != 25 || *out.RefundAmount != 75 {
		t.Errorf("penalty = %v, refund = %v, want 25 and 75", *out.PenaltyAmount, *out.RefundAmount)
	}
}

func TestApplySplitSumsToLockedAmount(t *testing.T) {
	amounts := []float64{200, 99.99, 0.01, 350}
	for _, locked := range amounts {
		for _, tc := range []struct {
			from   Status
			action Action
		}{
			{StatusPreparing, ActionCancel},
			{StatusOutForDelivery, ActionMarkNoShow},
		} {
			o := testOrder(tc.from, locked)
			out, err := Apply(o, tc.action, time.Now().UTC())
			if err != nil {
				t.Fatalf("Apply(%s, locked=%v): %v", tc.action, locked, err)
			}
			if sum := *out.RefundAmount + *out.PenaltyAmount; sum != locked {
				t.Errorf("Apply(%s, locked=%v): refund+penalty = %v", tc.action, locked, sum)
			}
		}
	}
}

func TestApplyRejectsInvalidTransitions(t *testing.T) {
	cases := []struct {
		from   Status
		action Action
	}{
		{StatusPendingPayment, ActionConfirmPreparing},
		{StatusPendingPayment, ActionMarkCollected},
		{StatusPaidLocked, ActionOutForDelivery},
		{StatusPreparing, ActionMarkCollected},
		{StatusPreparing, ActionMarkNoShow},
		{StatusOutForDelivery, ActionCancel},
		{StatusOutForDelivery, ActionConfirmPreparing},
	}

	for _, tc := range cases {
		o := testOrder(tc.from, 200)
		_, err := Apply(o, tc.action, time.Now().UTC())

		var invalid *InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Errorf("Apply(%s from %s): err = %v, want InvalidTransitionError", tc.action, tc.from, err)
			continue
		}
		if o.Status != tc.from || o.EscrowStatus != EscrowNone || o.RefundAmount != nil || o.PenaltyAmount != nil {
			t.Errorf("Apply(%s from %s): rejected transition modified the order", tc.action, tc.from)
		}
	}
}

func TestApplyTerminalStatesAreImmutable(t *testing.T) {
	terminals := []Status{StatusDelivered, StatusCancelled, StatusNoShow}
	actions := []Action{ActionConfirmPreparing, ActionOutForDelivery, ActionMarkCollected, ActionCancel, ActionMarkNoShow}

	for _, from := range terminals {
		if !from.IsTerminal() {
			t.Errorf("%s should be terminal", from)
		}
		for _, action := range actions {
			o := testOrder(from, 200)
			if _, err := Apply(o, action, time.Now().UTC()); err == nil {
				t.Errorf("Apply(%s from terminal %s) succeeded", action, from)
			}
		}
	}
}

func TestApplyUnknownAction(t *testing.T) {
	o := testOrder(StatusPaidLocked, 200)
	_, err := Apply(o, Action("teleport"), time.Now().UTC())
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
}

func TestActionForStatus(t *testing.T) {
	cases := []struct {
		from, to Status
		want     Action
		ok       bool
	}{
		{StatusPaidLocked, StatusPreparing, ActionConfirmPreparing, true},
		{StatusPreparing, StatusOutForDelivery, ActionOutForDelivery, true},
		{StatusOutForDelivery, StatusDelivered, ActionMarkCollected, true},
		{StatusPaidLocked, StatusCancelled, ActionCancel, true},
		{StatusPreparing, StatusCancelled, ActionCancel, true},
		{StatusOutForDelivery, StatusNoShow, ActionMarkNoShow, true},
		{StatusPendingPayment, StatusDelivered, "", false},
		{StatusDelivered, StatusCancelled, "", false},
		{StatusOutForDelivery, StatusCancelled, "", false},
	}

	for _, tc := range cases {
		got, ok := ActionForStatus(tc.from, tc.to)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ActionForStatus(%s, %s) = (%q, %v), want (%q, %v)",
				tc.from, tc.to, got, ok, tc.want, tc.ok)
		}
	}
}

func TestOutcomeApplyToStampsTimestamps(t *testing.T) {
	now := time.Now().UTC()

	o := testOrder(StatusOutForDelivery, 200)
	out, err := Apply(o, ActionMarkCollected, now)
	if err != nil {
		t.Fatal(err)
	}
	out.ApplyTo(o)

	if o.Status != StatusDelivered {
		t.Errorf("status = %s", o.Status)
	}
	if o.DeliveredAt == nil || !o.DeliveredAt.Equal(now) {
		t.Errorf("delivered_at = %v, want %v", o.DeliveredAt, now)
	}
	if o.EscrowReleasedAt == nil || !o.EscrowReleasedAt.Equal(now) {
		t.Errorf("escrow_released_at = %v, want %v", o.EscrowReleasedAt, now)
	}

	o = testOrder(StatusOutForDelivery, 200)
	out, err = Apply(o, ActionMarkNoShow, now)
	if err != nil {
		t.Fatal(err)
	}
	out.ApplyTo(o)
	if o.NoShowAt == nil || !o.NoShowAt.Equal(now) {
		t.Errorf("no_show_at = %v, want %v", o.NoShowAt, now)
	}
	if o.RefundAmount == nil || o.PenaltyAmount == nil {
		t.Fatal("refund/penalty amounts not recorded")
	}
	if *o.RefundAmount+*o.PenaltyAmount != o.EscrowLockedAmount {
		t.Errorf("refund %v + penalty %v != locked %v", *o.RefundAmount, *o.PenaltyAmount, o.EscrowLockedAmount)
	}
}
