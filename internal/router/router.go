package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework used for routing

	"github.com/iliyamo/floor-plan-reservations/internal/handler"
	"github.com/iliyamo/floor-plan-reservations/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAPI registers the board API.  Login lives under /v1/auth and
// needs no session; everything else lives under /v1 behind the JWT
// middleware, since the board mutates real reservations.
func RegisterAPI(e *echo.Echo, a *handler.AuthHandler, b *handler.BoardHandler, r *handler.ReservationHandler, p *handler.PollHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))

	auth.GET("/floorplan", b.FloorPlan)
	auth.POST("/floorplan/refresh", b.Refresh)

	auth.POST("/reservations", r.Create)
	auth.PATCH("/reservations/:id/status", r.UpdateStatus)
	auth.DELETE("/reservations/:id", r.Delete)

	auth.POST("/poll/today", p.Today)
	auth.POST("/poll/future", p.Future)
	auth.POST("/poll/cancelled", p.Cancelled)
}
