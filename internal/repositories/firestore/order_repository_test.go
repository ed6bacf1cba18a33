package firestore

import (
	"testing"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories"
)

func TestVerifyCartUnchanged(t *testing.T) {
	orderLines := []domain.OrderLine{
		{ProductID: "prod-a", Quantity: 2},
		{ProductID: "prod-b", Quantity: 1},
	}

	cases := []struct {
		name      string
		cartLines []cartLineDocument
		wantErr   bool
	}{
		{
			name: "matching cart",
			cartLines: []cartLineDocument{
				{ProductID: "prod-a", Quantity: 2},
				{ProductID: "prod-b", Quantity: 1},
			},
		},
		{
			name: "line added after snapshot",
			cartLines: []cartLineDocument{
				{ProductID: "prod-a", Quantity: 2},
				{ProductID: "prod-b", Quantity: 1},
				{ProductID: "prod-c", Quantity: 4},
			},
			wantErr: true,
		},
		{
			name: "line removed after snapshot",
			cartLines: []cartLineDocument{
				{ProductID: "prod-a", Quantity: 2},
			},
			wantErr: true,
		},
		{
			name: "quantity changed after snapshot",
			cartLines: []cartLineDocument{
				{ProductID: "prod-a", Quantity: 5},
				{ProductID: "prod-b", Quantity: 1},
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := verifyCartUnchanged(tc.cartLines, orderLines, "user-1")
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected conflict for diverged cart")
				}
				if !repositories.IsConflict(err) {
					t.Fatalf("expected conflict classification, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
