package asset

import (
	"context"
	"errors"
	"log/slog"

	id "keymarket/pkg/domain"
	dErrors "keymarket/pkg/domain-errors"
	audit "keymarket/pkg/platform/audit"
	"keymarket/pkg/platform/sentinel"
	"keymarket/pkg/requestcontext"
)

// Service implements the asset registry operations: mint, transfer, burn.
// Authorization follows the explicit-caller rule: every mutating operation
// takes the acting principal as a parameter and checks it against the stored
// owner before any mutation.
type Service struct {
	store  Store
	events audit.Store
	logger *slog.Logger
}

func NewService(store Store, events audit.Store, logger *slog.Logger) *Service {
	return &Service{store: store, events: events, logger: logger}
}

// Mint creates an asset owned by its creator. A zero requestedID allocates a
// fresh identifier; a caller-supplied identifier that collides with an
// existing record fails with DuplicateAsset.
func (s *Service) Mint(ctx context.Context, creator id.Principal, contentRef string, requestedID id.AssetID) (*Asset, error) {
	if creator.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "creator is required")
	}
	if contentRef == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "content reference is required")
	}

	assetID := requestedID
	if assetID.IsNil() {
		assetID = id.NewAssetID()
	}
	a := &Asset{
		ID:         assetID,
		Owner:      creator,
		Creator:    creator,
		ContentRef: contentRef,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeDuplicateAsset, "asset id already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint asset")
	}

	s.emit(ctx, audit.Event{
		Action:  audit.EventAssetMinted,
		Actor:   creator,
		AssetID: a.ID.String(),
	})
	return a, nil
}

// Get returns the asset record.
func (s *Service) Get(ctx context.Context, assetID id.AssetID) (*Asset, error) {
	a, err := s.store.FindByID(ctx, assetID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load asset")
	}
	return a, nil
}

// ListByOwner enumerates assets currently owned by a principal.
func (s *Service) ListByOwner(ctx context.Context, owner id.Principal) ([]*Asset, error) {
	assets, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assets")
	}
	return assets, nil
}

// Transfer moves ownership from the current owner to another principal.
func (s *Service) Transfer(ctx context.Context, assetID id.AssetID, from, to id.Principal) (*Asset, error) {
	if to.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "transfer target is required")
	}
	a, err := s.store.Execute(ctx, assetID,
		func(a *Asset) error {
			if a.Owner != from {
				return dErrors.New(dErrors.CodeNotOwner, "caller does not own this asset")
			}
			return nil
		},
		func(a *Asset) {
			a.Owner = to
		},
	)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to transfer asset")
	}

	s.emit(ctx, audit.Event{
		Action:  audit.EventAssetTransferred,
		Actor:   from,
		Subject: to,
		AssetID: assetID.String(),
	})
	return a, nil
}

// Burn removes the asset record. The removal does not cascade: listings and
// credentials referencing the asset become orphaned and detect the missing
// asset on their own read paths.
func (s *Service) Burn(ctx context.Context, assetID id.AssetID, owner id.Principal) error {
	err := s.store.Remove(ctx, assetID, func(a *Asset) error {
		if a.Owner != owner {
			return dErrors.New(dErrors.CodeNotOwner, "caller does not own this asset")
		}
		return nil
	})
	if err != nil {
		return wrapStoreErr(err, "failed to burn asset")
	}

	s.emit(ctx, audit.Event{
		Action:  audit.EventAssetBurned,
		Actor:   owner,
		AssetID: assetID.String(),
	})
	return nil
}

// emit appends an operations event. Registry mutations have already committed
// at this point, so append failures are logged rather than unwinding the
// operation; only the settlement path is fail-closed on audit.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit event",
			"action", event.Action,
			"asset_id", event.AssetID,
			"error", err,
		)
	}
}

func wrapStoreErr(err error, message string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "asset not found")
	default:
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, message)
	}
}
