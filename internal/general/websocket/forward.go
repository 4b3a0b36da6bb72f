package websocket

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"campuscart/internal/events"
	"campuscart/internal/general/contracts"
	"campuscart/internal/general/jwt"
)

// pumpBuffer is the per-connection event buffer. A client that cannot drain
// it misses events; reconnecting clients re-fetch state over HTTP.
const pumpBuffer = 64

// startEventPump subscribes the connection to the event bus and forwards
// every event the authenticated user may see. The returned function
// unsubscribes and ends the pump goroutine.
func (ws *WebSocket) startEventPump(r *http.Request, conn *websocket.Conn, claims *jwt.Claims) func() {
	ch, unsubscribe := ws.bus.Subscribe(pumpBuffer)
	go func() {
		for ev := range ch {
			if !ws.shouldForward(r.Context(), claims, ev) {
				continue
			}
			frame := map[string]any{
				"type": string(ev.Kind),
				"data": ev.Payload,
			}
			if err := ws.writeJSON(conn, frame); err != nil {
				// close to unblock the read loop; it runs the teardown
				_ = conn.Close()
				return
			}
		}
	}()
	return unsubscribe
}

// shouldForward is the per-connection visibility filter. Dispatchers see
// everything; drivers see the open request pool and their own rides; riders
// see their own rides and the position of the cart serving them. Chat events
// go to thread participants only.
func (ws *WebSocket) shouldForward(ctx context.Context, claims *jwt.Claims, ev events.Event) bool {
	if claims.Role.IsDispatcher() {
		return true
	}
	subject := claims.Subject

	switch payload := ev.Payload.(type) {
	case contracts.RideRequestedMessage:
		if claims.Role.IsDriver() {
			return true
		}
		return payload.RiderID == subject

	case contracts.RideStatusMessage:
		return payload.RiderID == subject || payload.DriverID == subject

	case contracts.MessagePostedMessage:
		thread, err := ws.threads.GetByID(ctx, payload.ThreadID)
		if err != nil {
			return false
		}
		return thread.HasParticipant(subject)

	case contracts.LocationUpdateMessage:
		if payload.DriverID == subject {
			return false // no echo back to the reporting driver
		}
		if payload.RideID == "" {
			return false
		}
		r, err := ws.rides.GetByID(ctx, payload.RideID)
		if err != nil {
			return false
		}
		return r.RiderID == subject

	default:
		return false
	}
}
