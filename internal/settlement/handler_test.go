package settlement

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"keymarket/internal/access"
	"keymarket/internal/listing"
	"keymarket/internal/revenue"
	id "keymarket/pkg/domain"
	audit "keymarket/pkg/platform/audit"
	"keymarket/pkg/requestcontext"
)

type SettlementHandlerSuite struct {
	suite.Suite
	listings *listing.Service
	router   chi.Router
	now      time.Time
}

func TestSettlementHandlerSuite(t *testing.T) {
	suite.Run(t, new(SettlementHandlerSuite))
}

func (s *SettlementHandlerSuite) SetupTest() {
	log := slog.New(slog.DiscardHandler)
	events := audit.NewInMemoryStore()
	s.listings = listing.NewService(listing.NewInMemoryStore(), events, log, 10)
	revenueSvc := revenue.NewService(revenue.NewInMemoryStore(), events, log, "treasury")
	credentials := access.NewService(access.NewInMemoryStore(), events, log)
	service := NewService(s.listings, revenueSvc, credentials, events, log)

	s.router = chi.NewRouter()
	NewHandler(service, log).Register(s.router)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *SettlementHandlerSuite) do(buyer id.Principal, body any) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, "/purchases", bytes.NewReader(raw))
	ctx := requestcontext.WithPrincipal(req.Context(), buyer)
	ctx = requestcontext.WithTime(ctx, s.now)
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *SettlementHandlerSuite) TestPurchase() {
	l, err := s.listings.List(
		requestcontext.WithTime(s.T().Context(), s.now),
		id.NewAssetID(), "alice", 100, listing.AccessPolicy{Kind: listing.PolicyFull}, "",
	)
	s.Require().NoError(err)

	key := base64.StdEncoding.EncodeToString([]byte("wrapped-key"))

	s.Run("settles and returns the receipt", func() {
		w := s.do("bob", map[string]any{
			"listing_id":     l.ID.String(),
			"payment_amount": 100,
			"encrypted_key":  key,
		})
		s.Equal(http.StatusCreated, w.Code)

		var receipt Receipt
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &receipt))
		s.Equal(l.ID, receipt.ListingID)
		s.Equal(uint64(10), receipt.PlatformFee)
		s.Equal(uint64(90), receipt.SellerAmount)
		s.False(receipt.CredentialID.IsNil())
	})

	s.Run("second purchase conflicts", func() {
		w := s.do("carol", map[string]any{
			"listing_id":     l.ID.String(),
			"payment_amount": 100,
			"encrypted_key":  key,
		})
		s.Equal(http.StatusConflict, w.Code)

		var envelope struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &envelope))
		s.Equal("inactive", envelope.Error.Code)
	})

	s.Run("malformed listing id", func() {
		w := s.do("bob", map[string]any{
			"listing_id":     "not-a-uuid",
			"payment_amount": 100,
			"encrypted_key":  key,
		})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("key must be base64", func() {
		w := s.do("bob", map[string]any{
			"listing_id":     l.ID.String(),
			"payment_amount": 100,
			"encrypted_key":  "%%%not-base64%%%",
		})
		s.Equal(http.StatusBadRequest, w.Code)
	})
}
