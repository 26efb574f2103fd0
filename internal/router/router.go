// Package router registers the HTTP routes of the planner API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/event-seating-planner/internal/handler"
	"github.com/iliyamo/event-seating-planner/internal/middleware"
	"github.com/iliyamo/event-seating-planner/internal/model"
)

// Deps is everything the routes need.  Cache and RateLimit may be
// pass-through middleware when Redis is not configured.
type Deps struct {
	JWTSecret    string
	Auth         *handler.AuthHandler
	Events       *handler.EventHandler
	Optimization *handler.OptimizationHandler
	Cache        echo.MiddlewareFunc
	RateLimit    echo.MiddlewareFunc
	Gatherer     prometheus.Gatherer
}

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	e.GET("/v1/scoring/weights", handler.ScoringWeights, orPass(d.Cache))
	e.POST("/v1/optimize", d.Optimization.Stateless, orPass(d.RateLimit))
}

// RegisterAuth registers the session endpoints under /v1/auth and the
// protected /v1/me.
func RegisterAuth(e *echo.Echo, d Deps) {
	a := d.Auth
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)               // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess) // keeps the refresh token
	g.POST("/logout", a.Logout)                 // bearer or refresh_token, no JWT middleware

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RolePlanner, model.RoleViewer))
}

// RegisterPlanner registers event and run endpoints.  Writes need the
// PLANNER role; reads also accept VIEWER.
func RegisterPlanner(e *echo.Echo, d Deps) {
	g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))
	planner := middleware.RequireRole(model.RolePlanner)
	reader := middleware.RequireRole(model.RolePlanner, model.RoleViewer)
	limited := orPass(d.RateLimit)

	ev, opt := d.Events, d.Optimization

	// ---- Events ----
	g.POST("/events", ev.Create, planner)
	g.GET("/events", ev.List, planner)
	g.GET("/events/:id", ev.Get, reader)
	g.PUT("/events/:id", ev.Update, planner)
	g.DELETE("/events/:id", ev.Delete, planner)

	// ---- Optimization ----
	g.POST("/events/:id/optimize", opt.Optimize, planner, limited)
	g.POST("/events/:id/optimize/async", opt.OptimizeAsync, planner, limited)
	g.GET("/events/:id/runs", opt.ListRuns, reader)
	g.GET("/runs/:id", opt.GetRun, reader)
	g.POST("/runs/:id/apply", opt.ApplyRun, planner)
	g.POST("/runs/:id/discard", opt.DiscardRun, planner)
}

// Register wires every route group.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	RegisterPlanner(e, d)
}
