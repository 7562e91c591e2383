package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keymarket/internal/access"
	"keymarket/internal/asset"
	"keymarket/internal/listing"
	"keymarket/internal/platform/middleware"
	"keymarket/internal/revenue"
	"keymarket/internal/settlement"
)

// Handlers collects the domain handlers the router mounts. Any nil handler is
// skipped, so a deployment can run a subset of the surface.
type Handlers struct {
	Assets      *asset.Handler
	Listings    *listing.Handler
	Credentials *access.Handler
	Revenue     *revenue.Handler
	Settlement  *settlement.Handler
	System      *SystemHandler
}

// NewRouter assembles the full HTTP surface. The public group carries the
// read-only marketplace (browse, validity checks, fee schedule) plus health,
// metrics, and the dev login; everything mutating sits behind bearer auth.
func NewRouter(h Handlers, auth middleware.TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.RequestTime)

	r.Group(func(r chi.Router) {
		if h.System != nil {
			h.System.Register(r)
		}
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
		if h.Listings != nil {
			h.Listings.RegisterPublic(r)
		}
		if h.Credentials != nil {
			h.Credentials.RegisterPublic(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(auth, logger))
		if h.Assets != nil {
			h.Assets.Register(r)
		}
		if h.Listings != nil {
			h.Listings.Register(r)
		}
		if h.Credentials != nil {
			h.Credentials.Register(r)
		}
		if h.Revenue != nil {
			h.Revenue.Register(r)
		}
		if h.Settlement != nil {
			h.Settlement.Register(r)
		}
	})

	return r
}
