package app

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/unrolled/secure"

	"github.com/arcbooks/arcbooks/internal/observability"
	"github.com/arcbooks/arcbooks/internal/platform/httpx"
	"github.com/arcbooks/arcbooks/internal/shared"
)

// TenantResolver maps a tenant id to its schema name. Implemented by
// tenant.Service; abstracted here so middleware tests can fake it.
type TenantResolver interface {
	ResolveSchema(ctx context.Context, id uuid.UUID) (string, error)
}

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the base middleware chain applied to every route.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		FeaturePolicy:         "none",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}
	rateLimit := 120
	if cfg.Config != nil && cfg.Config.RateLimitPerMinute > 0 {
		rateLimit = cfg.Config.RateLimitPerMinute
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(rateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}

// ActorMiddleware authenticates the tenant scope of a request. It reads the
// X-Tenant-ID and X-User-ID headers, resolves the tenant's schema through the
// registry, and stores the actor context for downstream handlers. Requests
// without a resolvable tenant never reach tenant-scoped routes.
func ActorMiddleware(logger *slog.Logger, tenants TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawTenant := r.Header.Get("X-Tenant-ID")
			if rawTenant == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "X-Tenant-ID header is required")
				return
			}
			tenantID, err := uuid.Parse(rawTenant)
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "X-Tenant-ID must be a UUID")
				return
			}
			schema, err := tenants.ResolveSchema(r.Context(), tenantID)
			if err != nil {
				logger.Warn("resolve tenant schema", slog.String("tenant", rawTenant), slog.Any("error", err))
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "unknown or inactive tenant")
				return
			}

			var userID int64
			if rawUser := r.Header.Get("X-User-ID"); rawUser != "" {
				userID, err = strconv.ParseInt(rawUser, 10, 64)
				if err != nil {
					httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "X-User-ID must be numeric")
					return
				}
			}

			ctx := shared.ContextWithActor(r.Context(), shared.ActorContext{
				UserID:     userID,
				TenantID:   tenantID,
				SchemaName: schema,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
