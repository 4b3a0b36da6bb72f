package handler

import (
	"net/http"
	"strings"

	"campuscart/internal/general/jwt"
)

// GET /threads
func (handler *Handler) handleListThreads(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	threads, err := handler.chats.ListThreads(ctx, claims.Subject)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"threads": toThreadViews(threads)})
}

// GET /threads/{thread_id}
func (handler *Handler) handleGetThread(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	thread, err := handler.chats.GetThread(ctx, r.PathValue("thread_id"), claims.Subject)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, toThreadView(thread, true))
}

// POST /threads/group
// Returns the fleet-wide driver group thread, creating it on first use.
func (handler *Handler) handleDriverGroupThread(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	thread, err := handler.chats.DriverGroupThread(ctx, claims.Subject, claims.Role)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, toThreadView(thread, true))
}

type privateThreadRequest struct {
	RecipientID string `json:"recipient_id"`
}

// POST /threads/private
func (handler *Handler) handlePrivateThread(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	var req privateThreadRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RecipientID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "recipient_id is required", nil)
		return
	}

	thread, err := handler.chats.PrivateThread(ctx, claims.Subject, strings.TrimSpace(req.RecipientID))
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, toThreadView(thread, true))
}

type postMessageRequest struct {
	Body string `json:"body"`
}

// POST /threads/{thread_id}/messages
func (handler *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	var req postMessageRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	msg, err := handler.chats.Post(ctx, r.PathValue("thread_id"), claims.Subject, req.Body)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusCreated, messageView{
		ID:       msg.ID,
		SenderID: msg.SenderID,
		Body:     msg.Body,
		SentAt:   msg.SentAt,
		Read:     msg.Read,
	})
}

// POST /threads/{thread_id}/read
func (handler *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	changed, err := handler.chats.MarkRead(ctx, r.PathValue("thread_id"), claims.Subject)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]int{"marked_read": changed})
}
