package handler

import (
	"net/http"
	"strings"

	"campuscart/internal/domain/cart"
	"campuscart/internal/general/jwt"
	"campuscart/internal/ports"
)

type cartRequest struct {
	Number      string `json:"number"`
	Description string `json:"description"`
}

// POST /carts
func (handler *Handler) handleRegisterCart(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req cartRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	created, err := handler.fleet.RegisterCart(ctx, ports.RegisterCartInput{
		Number:      req.Number,
		Description: req.Description,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusCreated, toCartView(created))
}

// GET /carts?status=
func (handler *Handler) handleListCarts(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var status *cart.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, err := cart.ParseStatus(raw)
		if err != nil {
			handler.httpError(ctx, w, http.StatusBadRequest, "invalid status filter", err)
			return
		}
		status = &parsed
	}

	carts, err := handler.fleet.ListCarts(ctx, status)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"carts": toCartViews(carts)})
}

// GET /carts/{cart_id}
func (handler *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	found, err := handler.fleet.GetCart(ctx, r.PathValue("cart_id"))
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, toCartView(found))
}

// PATCH /carts/{cart_id}
func (handler *Handler) handleUpdateCart(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req cartRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	updated, err := handler.fleet.UpdateCart(ctx, r.PathValue("cart_id"), ports.RegisterCartInput{
		Number:      req.Number,
		Description: req.Description,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, toCartView(updated))
}

type cartStatusRequest struct {
	Status string `json:"status"`
}

// POST /carts/{cart_id}/status
func (handler *Handler) handleSetCartStatus(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req cartStatusRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	status, err := cart.ParseStatus(req.Status)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "status must be one of: available, maintenance", err)
		return
	}

	updated, err := handler.fleet.SetCartStatus(ctx, r.PathValue("cart_id"), status)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, toCartView(updated))
}

type assignCartRequest struct {
	DriverID string `json:"driver_id"`
}

// POST /carts/{cart_id}/assign
func (handler *Handler) handleAssignCart(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req assignCartRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.DriverID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "driver_id is required", nil)
		return
	}

	if err := handler.fleet.AssignCart(ctx, r.PathValue("cart_id"), strings.TrimSpace(req.DriverID)); err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, nil)
}

// POST /carts/{cart_id}/unassign
func (handler *Handler) handleUnassignCart(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	if err := handler.fleet.UnassignCart(ctx, r.PathValue("cart_id"), claims.Subject, claims.Role); err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, nil)
}
