package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"landreg/pkg/requestcontext"
	"landreg/pkg/testutil"
)

// echoRegistrar exposes what the middleware chain put in the context.
type echoRegistrar struct{}

func (echoRegistrar) Register(r chi.Router) {
	r.Get("/echo", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set("X-Request-ID", requestcontext.RequestID(ctx))
		w.Header().Set("X-Client-IP", requestcontext.ClientIP(ctx))
		if requestcontext.Now(ctx).IsZero() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

type RouterSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *RouterSuite) TestMiddlewareChain() {
	router := NewRouter(s.logger, []Registrar{echoRegistrar{}})
	req := testutil.NewJSONRequest(http.MethodGet, "/echo", "")
	req.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.1")

	rec := testutil.DoRequest(router, req)
	s.Equal(http.StatusNoContent, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))
	s.Equal("10.0.0.7", rec.Header().Get("X-Client-IP"))
}

func (s *RouterSuite) TestHealth() {
	s.Run("healthy dependencies", func() {
		router := NewRouter(s.logger, nil, WithHealthCheck("postgres", func(context.Context) error { return nil }))
		rec := testutil.DoRequest(router, testutil.NewJSONRequest(http.MethodGet, "/health", ""))
		s.Equal(http.StatusOK, rec.Code)
		body := testutil.UnmarshalResponse[map[string]string](s.T(), rec)
		s.Equal("ok", (*body)["postgres"])
	})

	s.Run("failing dependency", func() {
		router := NewRouter(s.logger, nil, WithHealthCheck("redis", func(context.Context) error { return errors.New("down") }))
		rec := testutil.DoRequest(router, testutil.NewJSONRequest(http.MethodGet, "/health", ""))
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.Contains(rec.Body.String(), "redis")
	})
}

func (s *RouterSuite) TestMetrics() {
	router := NewRouter(s.logger, nil)
	rec := testutil.DoRequest(router, testutil.NewJSONRequest(http.MethodGet, "/metrics", ""))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "go_goroutines")
}
