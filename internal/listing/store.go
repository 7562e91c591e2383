package listing

import (
	"context"

	id "keymarket/pkg/domain"
)

// Store persists listings. Execute runs validate then mutate while holding
// the record's lock; every state transition on a listing (update, delist,
// settle) goes through it so the Active flag behaves as a compare-and-swap.
type Store interface {
	Create(ctx context.Context, l *Listing) error
	FindByID(ctx context.Context, listingID id.ListingID) (*Listing, error)
	// ListActive enumerates currently purchasable listings.
	ListActive(ctx context.Context) ([]*Listing, error)
	ListBySeller(ctx context.Context, seller id.Principal) ([]*Listing, error)
	Execute(ctx context.Context, listingID id.ListingID, validate func(*Listing) error, mutate func(*Listing)) (*Listing, error)
}
