package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/souqly/marketplace-core/internal/domain"
)

func TestSortedByListingID_StableLockOrder(t *testing.T) {
	a := uuid.MustParse("11111111-0000-0000-0000-000000000000")
	b := uuid.MustParse("22222222-0000-0000-0000-000000000000")
	c := uuid.MustParse("33333333-0000-0000-0000-000000000000")

	forward := []domain.OrderItem{{ListingID: a}, {ListingID: b}, {ListingID: c}}
	reversed := []domain.OrderItem{{ListingID: c}, {ListingID: b}, {ListingID: a}}

	// Two carts over the same listings must lock in the same sequence
	// regardless of cart order, or concurrent checkouts can deadlock.
	got1 := sortedByListingID(forward)
	got2 := sortedByListingID(reversed)
	for i := range got1 {
		if got1[i].ListingID != got2[i].ListingID {
			t.Fatalf("lock order differs at %d: %s vs %s", i, got1[i].ListingID, got2[i].ListingID)
		}
	}
	for i := 1; i < len(got1); i++ {
		if got1[i-1].ListingID.String() >= got1[i].ListingID.String() {
			t.Fatalf("lock order not ascending at %d", i)
		}
	}
}

func TestSortedByListingID_DoesNotReorderInput(t *testing.T) {
	a := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	b := uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")

	items := []domain.OrderItem{{ListingID: b}, {ListingID: a}}
	_ = sortedByListingID(items)

	if items[0].ListingID != b || items[1].ListingID != a {
		t.Fatal("cart order must survive for order_items insertion")
	}
}
