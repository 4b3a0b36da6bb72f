package handler

import (
	"net/http"
	"strings"

	"campuscart/internal/domain/ride"
	"campuscart/internal/general/jwt"
	"campuscart/internal/ports"
)

type createRideRequest struct {
	PickupAddress    string  `json:"pickup_address"`
	PickupLatitude   float64 `json:"pickup_latitude"`
	PickupLongitude  float64 `json:"pickup_longitude"`
	DropoffAddress   string  `json:"dropoff_address"`
	DropoffLatitude  float64 `json:"dropoff_latitude"`
	DropoffLongitude float64 `json:"dropoff_longitude"`
	Notes            string  `json:"notes"`
}

// POST /rides
func (handler *Handler) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	var req createRideRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	created, err := handler.rides.Create(ctx, ports.CreateRideInput{
		RiderID:        claims.Subject,
		PickupAddress:  req.PickupAddress,
		PickupLat:      req.PickupLatitude,
		PickupLng:      req.PickupLongitude,
		DropoffAddress: req.DropoffAddress,
		DropoffLat:     req.DropoffLatitude,
		DropoffLng:     req.DropoffLongitude,
		Notes:          req.Notes,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(handler.log.WithRideID(ctx, created.ID), w, http.StatusCreated, toRideView(created))
}

// GET /rides?status=
func (handler *Handler) handleListRides(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	var status *ride.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, err := ride.ParseStatus(raw)
		if err != nil {
			handler.httpError(ctx, w, http.StatusBadRequest, "invalid status filter", err)
			return
		}
		status = &parsed
	}

	rides, err := handler.rides.List(ctx, claims.Subject, claims.Role, status)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"rides": toRideViews(rides)})
}

// GET /rides/{ride_id}
func (handler *Handler) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)
	ctx = handler.log.WithRideID(ctx, r.PathValue("ride_id"))

	found, err := handler.rides.Get(ctx, r.PathValue("ride_id"), claims.Subject, claims.Role)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, toRideView(found))
}

// GET /rides/{ride_id}/history
func (handler *Handler) handleRideHistory(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)
	ctx = handler.log.WithRideID(ctx, r.PathValue("ride_id"))

	events, err := handler.rides.History(ctx, r.PathValue("ride_id"), claims.Subject, claims.Role)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"events": toRideEventViews(events)})
}

// POST /rides/{ride_id}/accept
func (handler *Handler) handleAcceptRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)
	ctx = handler.log.WithRideID(ctx, r.PathValue("ride_id"))

	accepted, err := handler.rides.Accept(ctx, r.PathValue("ride_id"), claims.Subject)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, toRideView(accepted))
}

type transitionRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// POST /rides/{ride_id}/transition
func (handler *Handler) handleTransitionRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)
	ctx = handler.log.WithRideID(ctx, r.PathValue("ride_id"))

	var req transitionRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	target, err := ride.ParseStatus(req.Target)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "target must be one of: in_progress, completed, cancelled", err)
		return
	}

	updated, err := handler.rides.Transition(ctx, ports.TransitionInput{
		RideID:    r.PathValue("ride_id"),
		ActorID:   claims.Subject,
		ActorRole: claims.Role,
		Target:    target,
		Reason:    req.Reason,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, toRideView(updated))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// POST /rides/{ride_id}/cancel
func (handler *Handler) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)
	ctx = handler.log.WithRideID(ctx, r.PathValue("ride_id"))

	var req cancelRequest
	if r.ContentLength != 0 {
		if !handler.decodeJSON(ctx, w, r, &req) {
			return
		}
	}

	cancelled, err := handler.rides.Cancel(ctx, r.PathValue("ride_id"), claims.Subject, claims.Role, req.Reason)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, toRideView(cancelled))
}
