package domain

import "testing"

func TestOrderStatusCodes(t *testing.T) {
	cases := []struct {
		status OrderStatus
		code   int
	}{
		{OrderStatusVerifying, 0},
		{OrderStatusProcessing, 1},
		{OrderStatusInTransit, 2},
		{OrderStatusDelivered, 3},
		{OrderStatusCanceled, 4},
	}
	for _, tc := range cases {
		if got := tc.status.Code(); got != tc.code {
			t.Fatalf("%s.Code() = %d, want %d", tc.status, got, tc.code)
		}
		roundTrip, err := OrderStatusFromCode(tc.code)
		if err != nil {
			t.Fatalf("OrderStatusFromCode(%d): %v", tc.code, err)
		}
		if roundTrip != tc.status {
			t.Fatalf("OrderStatusFromCode(%d) = %s, want %s", tc.code, roundTrip, tc.status)
		}
	}

	if got := OrderStatus("returned").Code(); got != -1 {
		t.Fatalf("unknown status code = %d, want -1", got)
	}
	if _, err := OrderStatusFromCode(9); err == nil {
		t.Fatal("expected error for unknown code")
	}
}

func TestOrderStatusCanAdvanceTo(t *testing.T) {
	statuses := []OrderStatus{
		OrderStatusVerifying,
		OrderStatusProcessing,
		OrderStatusInTransit,
		OrderStatusDelivered,
		OrderStatusCanceled,
	}
	next := map[OrderStatus]OrderStatus{
		OrderStatusVerifying:  OrderStatusProcessing,
		OrderStatusProcessing: OrderStatusInTransit,
		OrderStatusInTransit:  OrderStatusDelivered,
	}

	// Only the single forward step is legal; everything else, including
	// skips, repeats, and backward moves, is rejected.
	for _, from := range statuses {
		for _, to := range statuses {
			want := next[from] == to && to != ""
			if got := from.CanAdvanceTo(to); got != want {
				t.Fatalf("%s.CanAdvanceTo(%s) = %v, want %v", from, to, got, want)
			}
		}
	}
	if OrderStatusVerifying.CanAdvanceTo(OrderStatusCanceled) {
		t.Fatal("cancellation must not be reachable through CanAdvanceTo")
	}
}

func TestOrderStatusCancellable(t *testing.T) {
	cases := map[OrderStatus]bool{
		OrderStatusVerifying:  true,
		OrderStatusProcessing: true,
		OrderStatusInTransit:  false,
		OrderStatusDelivered:  false,
		OrderStatusCanceled:   false,
	}
	for status, want := range cases {
		if got := status.Cancellable(); got != want {
			t.Fatalf("%s.Cancellable() = %v, want %v", status, got, want)
		}
	}
}

func TestRefundStatusTerminal(t *testing.T) {
	if RefundStatusPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
	if !RefundStatusApproved.Terminal() || !RefundStatusRejected.Terminal() {
		t.Fatal("approved and rejected must be terminal")
	}
}

func TestCartIsEmpty(t *testing.T) {
	if !(Cart{OwnerKey: "user-1"}).IsEmpty() {
		t.Fatal("cart without lines should be empty")
	}
	cart := Cart{Lines: []CartLine{{ProductID: "prod-a", Quantity: 1}}}
	if cart.IsEmpty() {
		t.Fatal("cart with a line should not be empty")
	}
}
