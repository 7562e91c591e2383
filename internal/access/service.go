package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	accessmetrics "keymarket/internal/access/metrics"
	"keymarket/internal/access/revocation"
	id "keymarket/pkg/domain"
	dErrors "keymarket/pkg/domain-errors"
	audit "keymarket/pkg/platform/audit"
	"keymarket/pkg/platform/sentinel"
	"keymarket/pkg/requestcontext"
)

// secondsPerDay scales duration_days into an expiry offset.
const secondsPerDay = 24 * 60 * 60

// MintRequest carries everything the trusted settlement path supplies when
// issuing a credential.
type MintRequest struct {
	AssetID         id.AssetID
	Holder          id.Principal
	AccessType      AccessType
	DurationDays    uint32
	EncryptedKey    []byte
	SourceListingID id.ListingID
	Issuer          id.Principal
}

// Service implements the access-credential ledger: mint, validity check,
// revoke, transfer, and the per-holder enumeration.
type Service struct {
	store   Store
	revoked revocation.List
	events  audit.Store
	logger  *slog.Logger
	metrics *accessmetrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithRevocationList attaches the fast-path revocation mirror.
func WithRevocationList(list revocation.List) Option {
	return func(s *Service) { s.revoked = list }
}

// WithMetrics attaches the Prometheus collectors.
func WithMetrics(m *accessmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, events audit.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, events: events, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mint issues a credential. Only the settlement orchestrator (or an explicit
// grant path) calls this; it always succeeds on well-formed input. Expiry is
// now + duration for time-bounded types and nil for full access.
func (s *Service) Mint(ctx context.Context, req MintRequest) (*Credential, error) {
	if req.Holder.IsZero() || req.Issuer.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "holder and issuer are required")
	}
	if req.AssetID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "asset id is required")
	}
	if len(req.EncryptedKey) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "encrypted key is required")
	}

	now := requestcontext.Now(ctx)
	var expiresAt *time.Time
	switch req.AccessType {
	case AccessFull:
		// never expires
	case AccessLimited, AccessTemporary:
		if req.DurationDays == 0 {
			return nil, dErrors.New(dErrors.CodeInvalidPolicy, "time-bounded access requires a positive duration")
		}
		expiry := now.Add(time.Duration(req.DurationDays) * secondsPerDay * time.Second)
		expiresAt = &expiry
	default:
		return nil, dErrors.New(dErrors.CodeInvalidPolicy, "unrecognized access type")
	}

	c := &Credential{
		ID:              id.NewCredentialID(),
		AssetID:         req.AssetID,
		Holder:          req.Holder,
		AccessType:      req.AccessType,
		GrantedAt:       now,
		ExpiresAt:       expiresAt,
		EncryptedKey:    req.EncryptedKey,
		SourceListingID: req.SourceListingID,
		Issuer:          req.Issuer,
		Active:          true,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint credential")
	}

	s.emit(ctx, audit.Event{
		Action:       audit.EventAccessGranted,
		Actor:        req.Issuer,
		Subject:      req.Holder,
		AssetID:      req.AssetID.String(),
		ListingID:    req.SourceListingID.String(),
		CredentialID: c.ID.String(),
	})
	if s.metrics != nil {
		s.metrics.CredentialsIssued.Inc()
	}
	return c, nil
}

// Get returns the credential record to its holder or issuer. Everyone else
// gets NotAuthorized; the public validity probe is the only open read. The
// holder also recovers the wrapped key material this way after purchase.
func (s *Service) Get(ctx context.Context, credentialID id.CredentialID, caller id.Principal) (*Credential, error) {
	c, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load credential")
	}
	if caller != c.Holder && caller != c.Issuer {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "only the holder or issuer may view a credential")
	}
	return c, nil
}

// ListByHolder enumerates a principal's credentials.
func (s *Service) ListByHolder(ctx context.Context, holder id.Principal) ([]*Credential, error) {
	held, err := s.store.ListByHolder(ctx, holder)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	return held, nil
}

// CheckValid reports whether the credential grants access right now. It is a
// pure read, callable without authorization: any party may verify access.
// The revocation mirror short-circuits known-revoked credentials; mirror
// errors fall through to the primary store.
func (s *Service) CheckValid(ctx context.Context, credentialID id.CredentialID) (bool, error) {
	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, credentialID)
		if err != nil {
			s.logger.WarnContext(ctx, "revocation mirror unavailable, using primary store",
				"credential_id", credentialID.String(),
				"error", err,
			)
		} else if revoked {
			s.observeValidity(false)
			return false, nil
		}
	}

	c, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check credential")
	}
	valid := c.IsValid(requestcontext.Now(ctx))
	s.observeValidity(valid)
	return valid, nil
}

// Revoke deactivates the credential, irreversibly. Only the original issuer
// may revoke - not the current holder, even after a transfer. A second revoke
// is rejected to surface the caller error early.
func (s *Service) Revoke(ctx context.Context, credentialID id.CredentialID, caller id.Principal, reason string) error {
	c, err := s.store.Execute(ctx, credentialID,
		func(c *Credential) error {
			if c.Issuer != caller {
				return dErrors.New(dErrors.CodeNotAuthorized, "only the issuer may revoke")
			}
			if !c.Active {
				return dErrors.New(dErrors.CodeConflict, "credential already revoked")
			}
			return nil
		},
		func(c *Credential) {
			c.Active = false
		},
	)
	if err != nil {
		return wrapStoreErr(err, "failed to revoke credential")
	}

	if s.revoked != nil {
		ttl := time.Duration(0)
		if c.ExpiresAt != nil {
			// The mirror entry can lapse once the credential would have
			// expired anyway.
			if remaining := c.ExpiresAt.Sub(requestcontext.Now(ctx)); remaining > 0 {
				ttl = remaining
			} else {
				ttl = time.Minute
			}
		}
		if err := s.revoked.MarkRevoked(ctx, credentialID, ttl); err != nil {
			s.logger.ErrorContext(ctx, "failed to mirror revocation",
				"credential_id", credentialID.String(),
				"error", err,
			)
		}
	}

	s.emit(ctx, audit.Event{
		Action:       audit.EventAccessRevoked,
		Actor:        caller,
		Subject:      c.Holder,
		AssetID:      c.AssetID.String(),
		CredentialID: credentialID.String(),
		Reason:       reason,
	})
	if s.metrics != nil {
		s.metrics.CredentialsRevoked.Inc()
	}
	return nil
}

// Transfer changes the holder and re-indexes. Expiry and issuer do not
// change: the clock keeps running and revocation rights stay with the seller.
func (s *Service) Transfer(ctx context.Context, credentialID id.CredentialID, from, to id.Principal) (*Credential, error) {
	if to.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "transfer target is required")
	}
	c, err := s.store.Execute(ctx, credentialID,
		func(c *Credential) error {
			if c.Holder != from {
				return dErrors.New(dErrors.CodeNotHolder, "caller does not hold this credential")
			}
			return nil
		},
		func(c *Credential) {
			c.Holder = to
		},
	)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to transfer credential")
	}

	s.emit(ctx, audit.Event{
		Action:       audit.EventAccessTransferred,
		Actor:        from,
		Subject:      to,
		AssetID:      c.AssetID.String(),
		CredentialID: credentialID.String(),
	})
	return c, nil
}

func (s *Service) observeValidity(valid bool) {
	if s.metrics == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	s.metrics.ValidityChecks.WithLabelValues(result).Inc()
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit event",
			"action", event.Action,
			"credential_id", event.CredentialID,
			"error", err,
		)
	}
}

func wrapStoreErr(err error, message string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "credential not found")
	default:
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, message)
	}
}
