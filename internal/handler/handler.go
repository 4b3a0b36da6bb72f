// Package handler is the HTTP boundary: request decoding, JWT role gates,
// and sentinel-to-status-code mapping. All business rules live in the
// services; handlers only translate.
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"campuscart/internal/domain/cart"
	"campuscart/internal/domain/chat"
	"campuscart/internal/domain/ride"
	"campuscart/internal/domain/user"
	"campuscart/internal/general/jwt"
	"campuscart/internal/general/logger"
	"campuscart/internal/general/websocket"
	"campuscart/internal/ports"
)

// Handler adapts HTTP requests to the coordinator services.
type Handler struct {
	log      *logger.Logger
	auth     *jwt.Manager
	rides    ports.RideService
	fleet    ports.FleetService
	chats    ports.ChatService
	presence ports.PresenceStore
	hub      *websocket.WebSocket
}

func New(log *logger.Logger, auth *jwt.Manager, rides ports.RideService, fleet ports.FleetService, chats ports.ChatService, presence ports.PresenceStore, hub *websocket.WebSocket) *Handler {
	return &Handler{
		log:      log,
		auth:     auth,
		rides:    rides,
		fleet:    fleet,
		chats:    chats,
		presence: presence,
		hub:      hub,
	}
}

// RegisterRoutes mounts every endpoint on the provided mux. Role gates here
// are the coarse filter; per-resource ownership checks run in the services.
func (handler *Handler) RegisterRoutes(mux *http.ServeMux) {
	gate := func(h http.HandlerFunc, roles ...user.Role) http.HandlerFunc {
		return jwt.AuthMiddlewareFunc(handler.auth, roles...)(h)
	}

	// rides
	mux.HandleFunc("POST /rides", gate(handler.handleCreateRide, user.RoleRider))
	mux.HandleFunc("GET /rides", gate(handler.handleListRides))
	mux.HandleFunc("GET /rides/{ride_id}", gate(handler.handleGetRide))
	mux.HandleFunc("GET /rides/{ride_id}/history", gate(handler.handleRideHistory))
	mux.HandleFunc("POST /rides/{ride_id}/accept", gate(handler.handleAcceptRide, user.RoleDriver))
	mux.HandleFunc("POST /rides/{ride_id}/transition", gate(handler.handleTransitionRide))
	mux.HandleFunc("POST /rides/{ride_id}/cancel", gate(handler.handleCancelRide))

	// fleet
	mux.HandleFunc("POST /carts", gate(handler.handleRegisterCart, user.RoleDispatcher))
	mux.HandleFunc("GET /carts", gate(handler.handleListCarts))
	mux.HandleFunc("GET /carts/{cart_id}", gate(handler.handleGetCart))
	mux.HandleFunc("PATCH /carts/{cart_id}", gate(handler.handleUpdateCart, user.RoleDispatcher))
	mux.HandleFunc("POST /carts/{cart_id}/status", gate(handler.handleSetCartStatus, user.RoleDispatcher))
	mux.HandleFunc("POST /carts/{cart_id}/assign", gate(handler.handleAssignCart, user.RoleDispatcher))
	mux.HandleFunc("POST /carts/{cart_id}/unassign", gate(handler.handleUnassignCart, user.RoleDriver, user.RoleDispatcher))

	// drivers
	mux.HandleFunc("PATCH /drivers/{driver_id}/duty", gate(handler.handleSetDuty, user.RoleDriver, user.RoleDispatcher))
	mux.HandleFunc("GET /drivers", gate(handler.handleListDrivers, user.RoleDispatcher))
	mux.HandleFunc("GET /drivers/{driver_id}/location", gate(handler.handleDriverLocation, user.RoleDispatcher))

	// chat
	mux.HandleFunc("GET /threads", gate(handler.handleListThreads))
	mux.HandleFunc("GET /threads/{thread_id}", gate(handler.handleGetThread))
	mux.HandleFunc("POST /threads/group", gate(handler.handleDriverGroupThread, user.RoleDriver, user.RoleDispatcher))
	mux.HandleFunc("POST /threads/private", gate(handler.handlePrivateThread))
	mux.HandleFunc("POST /threads/{thread_id}/messages", gate(handler.handlePostMessage))
	mux.HandleFunc("POST /threads/{thread_id}/read", gate(handler.handleMarkRead))

	// websockets run their own first-frame auth
	mux.HandleFunc("GET /ws/drivers/{driver_id}", handler.hub.ConnectDriver)
	mux.HandleFunc("GET /ws/clients/{user_id}", handler.hub.ConnectClient)

	mux.HandleFunc("POST /tokens", handler.handleCreateToken)
	mux.HandleFunc("GET /health", handler.handleHealth)
}

func (handler *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON enforces the content type, bounds the body at 1 MiB, and
// decodes strictly. It writes the error response itself.
func (handler *Handler) decodeJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return false
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return false
	}
	return true
}

func (handler *Handler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	buf := []byte("{}")
	if data != nil {
		var err error
		buf, err = json.Marshal(data)
		if err != nil {
			handler.log.Error(ctx, "response_encode_failed", "failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func (handler *Handler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	switch {
	case status >= 500:
		action = "http_internal_error"
	case status == http.StatusBadRequest:
		action = "validation_failed"
	case status == http.StatusUnsupportedMediaType:
		action = "unsupported_media_type"
	}
	handler.log.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// serviceError maps domain sentinels to HTTP status codes.
func (handler *Handler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, ride.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, chat.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ride.ErrForbidden),
		errors.Is(err, ports.ErrForbidden),
		errors.Is(err, chat.ErrNotParticipant):
		status = http.StatusForbidden
	case errors.Is(err, ride.ErrInvalidTransition),
		errors.Is(err, ride.ErrNoLongerAvailable),
		errors.Is(err, cart.ErrDuplicateNumber),
		errors.Is(err, cart.ErrNotAvailable),
		errors.Is(err, user.ErrActiveRide),
		errors.Is(err, user.ErrOffDuty),
		errors.Is(err, user.ErrNoAssignedCart),
		errors.Is(err, user.ErrNotADriver):
		status = http.StatusConflict
	case errors.Is(err, ports.ErrUnavailable):
		status = http.StatusServiceUnavailable
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			handler.httpError(ctx, w, http.StatusInternalServerError, "database error", err)
			return
		}
	}
	handler.httpError(ctx, w, status, err.Error(), err)
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *Handler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.log.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
