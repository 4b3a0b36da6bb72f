package handler

import (
	"net/http"
	"strings"
	"time"

	"campuscart/internal/domain/user"
)

type tokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
}

// POST /tokens issues a development token for any (user_id, role) pair.
// There is no credential check: identity verification is an upstream
// concern and this endpoint exists so clients can exercise the API.
func (handler *Handler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req tokenRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	role, err := user.ParseRole(req.Role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "role must be one of: rider, driver, dispatcher", err)
		return
	}

	signed, claims, err := handler.auth.IssueUserToken(strings.TrimSpace(req.UserID), role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	handler.log.Info(ctx, "token_generated", "development token issued", map[string]any{
		"user_id": req.UserID,
		"role":    role.String(),
	})
	handler.jsonResponse(ctx, w, http.StatusCreated, tokenResponse{
		Token:     signed,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    strings.TrimSpace(req.UserID),
		Role:      role.String(),
	})
}
