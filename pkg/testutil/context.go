package testutil

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	id "landreg/pkg/domain"
	"landreg/pkg/requestcontext"
)

// RegistrarContext returns the context an authenticated request carries
// after the middleware chain: user, request id and a fixed clock.
func RegistrarContext(user id.UserID, at time.Time) context.Context {
	ctx := requestcontext.WithUserID(context.Background(), user)
	ctx = requestcontext.WithRequestID(ctx, uuid.NewString())
	return requestcontext.WithTime(ctx, at)
}

// WithBearer sets the Authorization header. An empty token leaves the
// request anonymous.
func WithBearer(req *http.Request, token string) *http.Request {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
