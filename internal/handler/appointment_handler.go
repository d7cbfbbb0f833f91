package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"clinic-server/internal/hub"
	"clinic-server/internal/middleware"
	"clinic-server/internal/model"
)

func (h *Handler) ListAppointments(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.All())
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, ok := h.store.Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) AvailableSlots(c echo.Context) error {
	date, err := time.ParseInLocation("2006-01-02", c.Param("date"), time.Local)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	slots := h.store.AvailableSlots(date)
	if slots == nil {
		slots = []time.Time{}
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) ByPatient(c echo.Context) error {
	appts := h.store.ByPatient(c.Param("name"))
	if appts == nil {
		appts = []model.Appointment{}
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a model.Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	if err := h.validate.Struct(a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if h.store.HasOverlap(a.StartsAt, a.DurationMin, 0) {
		return echo.NewHTTPError(http.StatusConflict, "time conflicts with existing appointment")
	}

	created, err := h.store.Create(a)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.audit(c, "POST", resource(created.ID), actor(c), created.PatientName)
	if h.mirror != nil {
		h.mirror.Upsert(created)
	}
	h.hub.Publish(hub.Created(created))
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var a model.Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	if a.ID != 0 && a.ID != id {
		return echo.NewHTTPError(http.StatusBadRequest, "id mismatch")
	}
	a.ID = id
	if err := h.validate.Struct(a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// exclude self from the overlap check
	if h.store.HasOverlap(a.StartsAt, a.DurationMin, id) {
		return echo.NewHTTPError(http.StatusConflict, "time conflicts with existing appointment")
	}

	updated, ok, err := h.store.Update(a)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}

	h.audit(c, "PUT", resource(id), actor(c), updated.PatientName)
	if h.mirror != nil {
		h.mirror.Upsert(updated)
	}
	h.hub.Publish(hub.Updated(updated))
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ok, err := h.store.Delete(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}

	h.audit(c, "DELETE", resource(id), actor(c), "")
	if h.mirror != nil {
		h.mirror.Delete(id)
	}
	h.hub.Publish(hub.Deleted(id))
	return c.NoContent(http.StatusNoContent)
}

func resource(id int64) string {
	return "Appointment/" + strconv.FormatInt(id, 10)
}

// actor is the authenticated user id, or "anonymous" on open routes.
func actor(c echo.Context) string {
	if uid, ok := c.Get(middleware.UserIDKey).(string); ok && uid != "" {
		return uid
	}
	return "anonymous"
}

// audit records the operation; failures are logged, never returned, the
// log must not block bookings.
func (h *Handler) audit(c echo.Context, op, res, actor, details string) {
	if err := h.db.LogOperation(c.Request().Context(), op, res, actor, details, c.RealIP()); err != nil {
		log.Warnf("audit %s %s: %v", op, res, err)
	}
}
