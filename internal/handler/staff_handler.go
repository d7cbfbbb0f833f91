package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"clinic-server/internal/hub"
	"clinic-server/internal/model"
)

func (h *Handler) PendingAppointments(c echo.Context) error {
	appts := h.store.Pending()
	if appts == nil {
		appts = []model.Appointment{}
	}
	return c.JSON(http.StatusOK, appts)
}

// ConfirmAppointment marks an appointment confirmed and broadcasts the
// update like any other edit.
func (h *Handler) ConfirmAppointment(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, ok := h.store.Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	a.Confirmed = true
	a.Status = model.StatusConfirmed
	updated, _, err := h.store.Update(a)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.audit(c, "CONFIRM", resource(id), actor(c), updated.PatientName)
	if h.mirror != nil {
		h.mirror.Upsert(updated)
	}
	h.hub.Publish(hub.Updated(updated))
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) AuditLog(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.db.RecentAuditEntries(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, entries)
}
