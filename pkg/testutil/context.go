package testutil

import (
	"net/http"

	id "verdant/pkg/domain"
	"verdant/pkg/requestcontext"
)

// WithActor adds an authenticated actor to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// An unparsable user ID is silently ignored so tests can exercise the
// unauthenticated path with an empty string.
func WithActor(req *http.Request, userID, userName string) *http.Request {
	ctx := req.Context()
	if parsed, err := id.ParseUserID(userID); err == nil {
		ctx = requestcontext.WithUserID(ctx, parsed)
	}
	if userName != "" {
		ctx = requestcontext.WithUserName(ctx, userName)
	}
	return req.WithContext(ctx)
}
