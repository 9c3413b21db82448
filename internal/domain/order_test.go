package domain

import "testing"

func TestOrderStatus_CanAdvanceOnlyForward(t *testing.T) {
	chain := []OrderStatus{OrderPending, OrderPaid, OrderProcessing, OrderShipped, OrderCompleted}

	for i, from := range chain {
		for j, to := range chain {
			got := from.CanAdvance(to)
			want := j == i+1
			if got != want {
				t.Errorf("CanAdvance(%s -> %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestOrderStatus_NoTransitionOutOfTerminalStates(t *testing.T) {
	all := []OrderStatus{OrderPending, OrderPaid, OrderProcessing, OrderShipped, OrderCompleted, OrderCancelled}

	for _, terminal := range []OrderStatus{OrderCompleted, OrderCancelled} {
		if !terminal.Terminal() {
			t.Fatalf("expected %s to be terminal", terminal)
		}
		for _, to := range all {
			if terminal.CanAdvance(to) {
				t.Errorf("expected no transition out of %s, but %s is allowed", terminal, to)
			}
		}
		if terminal.Cancellable() {
			t.Errorf("expected %s not to be cancellable", terminal)
		}
	}
}

func TestOrderStatus_CancellableOnlyBeforeProcessing(t *testing.T) {
	cases := map[OrderStatus]bool{
		OrderPending:    true,
		OrderPaid:       true,
		OrderProcessing: false,
		OrderShipped:    false,
		OrderCompleted:  false,
		OrderCancelled:  false,
	}
	for status, want := range cases {
		if got := status.Cancellable(); got != want {
			t.Errorf("Cancellable(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestOfferAgreedAmount_PrefersLatestCounter(t *testing.T) {
	offer := Offer{Amount: 80_000, Status: OfferAccepted}
	if got := offer.AgreedAmount(); got != 80_000 {
		t.Fatalf("expected agreed amount 80000 without counters, got %d", got)
	}

	counter := int64(90_000)
	offer.CounterAmount = &counter
	if got := offer.AgreedAmount(); got != 90_000 {
		t.Fatalf("expected agreed amount to follow counter 90000, got %d", got)
	}
}

func TestItemStatusFor_MirrorsOrderTransitions(t *testing.T) {
	cases := map[OrderStatus]ItemStatus{
		OrderPaid:       ItemPaid,
		OrderProcessing: ItemProcessing,
		OrderShipped:    ItemShipped,
		OrderCompleted:  ItemDelivered,
		OrderCancelled:  ItemCancelled,
	}
	for from, want := range cases {
		if got := ItemStatusFor(from); got != want {
			t.Errorf("ItemStatusFor(%s) = %s, want %s", from, got, want)
		}
	}
}
