package testutil

import (
	"context"
	"testing"
	"time"

	id "keymarket/pkg/domain"
	"keymarket/pkg/requestcontext"
)

// Context returns a request-like context with a pinned clock and caller, so
// service tests exercise the same context plumbing the HTTP middleware builds.
func Context(t *testing.T, caller id.Principal, now time.Time) context.Context {
	t.Helper()
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "test-request")
	if caller != "" {
		ctx = requestcontext.WithPrincipal(ctx, caller)
	}
	return ctx
}
