// Package router assembles the echo instance: global middleware, the error
// handler and every route group.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/akabemail-hash/asutkosks/internal/config"
	"github.com/akabemail-hash/asutkosks/internal/handler"
	"github.com/akabemail-hash/asutkosks/internal/logging"
	"github.com/akabemail-hash/asutkosks/internal/middleware"
)

// bodyLimit leaves room for two 5MB photos plus form fields.
const bodyLimit = "12M"

// Deps carries the handlers and collaborators the routes are built from.
type Deps struct {
	Tokens    middleware.TokenVerifier
	Accounts  middleware.AccountLookup
	DB        handler.Pinger
	Redis     *redis.Client
	RateLimit config.RateLimitConfig

	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Roles    *handler.RoleHandler
	Kiosks   *handler.KioskHandler
	Visits   *handler.VisitHandler
	Taxonomy *handler.TaxonomyHandler
	Stats    *handler.StatsHandler
}

// New builds the echo instance with global middleware and all routes.
func New(cfg config.Config, d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(cfg.IsProduction())

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: logging.NewRequestID}))
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit(bodyLimit))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     cfg.CORSOrigins,
			AllowCredentials: true,
			AllowHeaders: []string{
				echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
			},
		}))
	}
	if cfg.RequestTimeout > 0 {
		e.Use(echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{Timeout: cfg.RequestTimeout}))
	}

	RegisterSystem(e, d.DB)
	if cfg.UploadDir != "" {
		e.Static(cfg.UploadPrefix, cfg.UploadDir)
	}

	RegisterAuth(e, d)
	api := e.Group("/api", middleware.Authenticate(d.Tokens))
	api.GET("/auth/me", d.Auth.Me)
	RegisterAdmin(api, d)
	RegisterVisits(api, d)
	return e
}

// RegisterSystem exposes unauthenticated health and metrics endpoints.
func RegisterSystem(e *echo.Echo, db handler.Pinger) {
	e.GET("/api/health", handler.Health)
	if db != nil {
		e.GET("/api/ready", handler.Ready(db))
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth mounts the session endpoints that run before a token exists.
func RegisterAuth(e *echo.Echo, d Deps) {
	e.POST("/api/auth/login", d.Auth.Login, middleware.RateLimit(d.RateLimit, d.Redis))
	e.POST("/api/auth/logout", d.Auth.Logout)
}
