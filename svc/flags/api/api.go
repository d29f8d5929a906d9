package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/pkg/httpserver"
	"github.com/dmitrymomot/flagkit/pkg/logger"
	"github.com/dmitrymomot/flagkit/svc/flags"
)

// EnvironmentKeyHeader carries the API key of the environment a client reads.
const EnvironmentKeyHeader = "X-Environment-Key"

// Querier is the read side of flags.Service used by the client API.
type Querier interface {
	EnvironmentByAPIKey(ctx context.Context, apiKey string) (*flags.Environment, error)
	GetIdentity(ctx context.Context, id uuid.UUID) (*flags.Identity, error)
	ListEnvironmentStates(ctx context.Context, environmentID uuid.UUID) ([]flags.EffectiveState, error)
	ListEffectiveStates(ctx context.Context, identityID uuid.UUID) ([]flags.EffectiveState, error)
	GetEffectiveValue(ctx context.Context, featureID, environmentID uuid.UUID, identityID uuid.NullUUID) (*flags.EffectiveState, error)
}

type Option func(*API)

func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

// WithReadinessChecks registers the dependency probes served on /readyz.
func WithReadinessChecks(checks map[string]httpserver.Check) Option {
	return func(a *API) { a.checks = checks }
}

// API serves flag evaluations to client applications.
type API struct {
	q      Querier
	log    *slog.Logger
	checks map[string]httpserver.Check
}

func New(q Querier, opts ...Option) *API {
	a := &API{q: q, log: logger.Discard()}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With(logger.Component("flags_api"))
	return a
}

// Routes returns the HTTP handler:
//
//	GET /healthz
//	GET /readyz
//	GET /api/v1/flags
//	GET /api/v1/identities/{identityID}/flags
//	GET /api/v1/features/{featureID}/value?identity=
//
// Every /api/v1 route requires the X-Environment-Key header.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.HealthHandler(a.log, 0, nil))
	r.Get("/readyz", httpserver.HealthHandler(a.log, 2*time.Second, a.checks))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.environmentKey)
		r.Get("/flags", a.environmentFlags)
		r.Get("/identities/{identityID}/flags", a.identityFlags)
		r.Get("/features/{featureID}/value", a.featureValue)
	})
	return r
}

// RequestIDExtractor adds the chi request id to every log record written with
// the request context.
func RequestIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := middleware.GetReqID(ctx); id != "" {
			return slog.String("request_id", id), true
		}
		return slog.Attr{}, false
	}
}

func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		a.log.Log(r.Context(), level, "request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
