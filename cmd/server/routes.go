package main

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sudo-init-do/mintaro/internal/admin"
	"github.com/sudo-init-do/mintaro/internal/auth"
	"github.com/sudo-init-do/mintaro/internal/escrow"
	"github.com/sudo-init-do/mintaro/internal/marketplace"
	"github.com/sudo-init-do/mintaro/internal/messaging"
	"github.com/sudo-init-do/mintaro/internal/metrics"
	mware "github.com/sudo-init-do/mintaro/internal/middleware"
	"github.com/sudo-init-do/mintaro/internal/wallet"
)

// deps is everything the router needs.
type deps struct {
	engine   *escrow.Engine
	issuer   *auth.Issuer
	login    *auth.Handler
	hub      *messaging.Hub
	recorder *metrics.Recorder
	logger   *slog.Logger

	// ready reports whether the server can take traffic.
	ready func(c echo.Context) error
}

func newRouter(d deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Basic middleware
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	// Health and root routes
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "mintaro", "backend": d.engine.Backend().Name()})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", d.ready)
	e.GET("/metrics", echo.WrapHandler(d.recorder.Handler()))

	// Sign-in routes with per-IP rate limiting
	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/challenge", d.login.Challenge)
	authGroup.POST("/login", d.login.Login)

	// Protected routes
	api := e.Group("")
	api.Use(mware.JWT(d.issuer))
	api.Use(mware.RequireRoles(auth.RoleUser, auth.RoleAdmin))

	api.GET("/auth/me", d.login.Me)
	marketplace.NewHandler(d.engine, d.logger).Register(api)
	wallet.NewHandler(d.engine, d.logger).Register(api)
	api.GET("/jobs/:id/ws", d.hub.JobWS)
	api.GET("/wallet/ws", d.hub.WalletWS)

	// Admin routes
	adminGroup := e.Group("/admin")
	adminGroup.Use(mware.JWT(d.issuer))
	adminGroup.Use(mware.AdminGuard)
	admin.NewHandler(d.engine, d.logger).Register(adminGroup)

	return e
}
