// Package handler is the HTTP surface of the booking service. Every
// mutating route follows the same sequence: validate, persist to the
// file store, audit, mirror, broadcast.
package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"clinic-server/internal/db"
	"clinic-server/internal/hub"
	"clinic-server/internal/middleware"
	"clinic-server/internal/mirror"
	"clinic-server/internal/store"
)

type Handler struct {
	store    *store.Store
	db       *db.DB
	mirror   *mirror.Mirror // nil when no replica is configured
	hub      *hub.Hub
	secret   string
	validate *validator.Validate
}

func New(st *store.Store, d *db.DB, m *mirror.Mirror, h *hub.Hub, secret string) *Handler {
	return &Handler{
		store:    st,
		db:       d,
		mirror:   m,
		hub:      h,
		secret:   secret,
		validate: validator.New(),
	}
}

// Register wires all routes onto e. Login and refresh share one rate
// limiter; appointment mutations and staff routes require a bearer token.
func (h *Handler) Register(e *echo.Echo) {
	rl := middleware.NewRateLimiter(5, 10)

	a := e.Group("/api/auth")
	a.POST("/login", h.Login, middleware.RateLimit(rl))
	a.POST("/refresh", h.Refresh, middleware.RateLimit(rl))
	a.POST("/validate", h.Validate)

	appts := e.Group("/api/appointments")
	appts.GET("", h.ListAppointments)
	appts.GET("/:id", h.GetAppointment)
	appts.GET("/available/:date", h.AvailableSlots)
	appts.GET("/patient/:name", h.ByPatient)

	auth := middleware.Auth(h.secret)
	appts.POST("", h.CreateAppointment, auth)
	appts.PUT("/:id", h.UpdateAppointment, auth)
	appts.DELETE("/:id", h.DeleteAppointment, auth)

	staff := e.Group("/api/staff", auth)
	staff.GET("/pending", h.PendingAppointments)
	staff.POST("/confirm/:id", h.ConfirmAppointment)
	staff.GET("/audit", h.AuditLog, middleware.RequireRole("admin"))

	e.GET("/ws", h.ServeWS)
}
