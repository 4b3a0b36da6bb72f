package handler

import (
	"net/http"
	"time"

	"campuscart/internal/general/jwt"
)

type dutyRequest struct {
	OnDuty bool `json:"on_duty"`
}

// PATCH /drivers/{driver_id}/duty
// A driver flips their own flag; a dispatcher may flip anyone's.
func (handler *Handler) handleSetDuty(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	driverID := r.PathValue("driver_id")
	if !claims.Role.IsDispatcher() && driverID != claims.Subject {
		handler.httpError(ctx, w, http.StatusForbidden, "drivers may only change their own duty", nil)
		return
	}

	var req dutyRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	updated, err := handler.fleet.SetDuty(ctx, driverID, req.OnDuty)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, toDriverView(updated))
}

// GET /drivers?on_duty=true
func (handler *Handler) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	onDutyOnly := r.URL.Query().Get("on_duty") == "true"
	drivers, err := handler.fleet.ListDrivers(ctx, onDutyOnly)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"drivers": toDriverViews(drivers)})
}

type driverLocationResponse struct {
	DriverID   string    `json:"driver_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ReportedAt time.Time `json:"reported_at"`
}

// GET /drivers/{driver_id}/location
// Serves the last cached position; a driver that has not reported within the
// presence TTL reads as not found.
func (handler *Handler) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	pos, err := handler.presence.Location(ctx, r.PathValue("driver_id"))
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, driverLocationResponse{
		DriverID:   pos.DriverID,
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		ReportedAt: pos.ReportedAt,
	})
}
