// Package websocket pushes lifecycle events to connected clients and ingests
// driver position reports. Clients authenticate with a first-frame JWT
// message; everything after that is typed JSON frames in both directions.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"campuscart/internal/domain/user"
	"campuscart/internal/events"
	"campuscart/internal/general/jwt"
	"campuscart/internal/general/logger"
	"campuscart/internal/general/metrics"
	"campuscart/internal/ports"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
	readDeadline     = 60 * time.Second
	authDeadline     = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocket upgrades client connections, authenticates them, and bridges the
// in-process event bus to the wire.
type WebSocket struct {
	log      *logger.Logger
	jwtMgr   *jwt.Manager
	presence ports.PresenceStore
	rides    ports.RideRepository
	threads  ports.ThreadRepository
	bus      *events.Bus
	stats    *metrics.Metrics

	writeLocks sync.Map // *websocket.Conn -> *sync.Mutex
}

func New(log *logger.Logger, jwtMgr *jwt.Manager, presence ports.PresenceStore, rides ports.RideRepository, threads ports.ThreadRepository, bus *events.Bus, stats *metrics.Metrics) *WebSocket {
	return &WebSocket{
		log:      log,
		jwtMgr:   jwtMgr,
		presence: presence,
		rides:    rides,
		threads:  threads,
		bus:      bus,
		stats:    stats,
	}
}

// ConnectDriver serves GET /ws/drivers/{driver_id}. Drivers receive the open
// request pool and their own ride and chat events, and report positions with
// location_update frames.
func (ws *WebSocket) ConnectDriver(w http.ResponseWriter, r *http.Request) {
	conn, claims, ok := ws.acceptConn(w, r, "driver_id", user.RoleDriver)
	if !ok {
		return
	}
	defer conn.Close()
	defer ws.writeLocks.Delete(conn)

	ws.stats.WSConnections.Inc()
	defer ws.stats.WSConnections.Dec()

	stopPing := ws.startPingLoop(conn)
	defer stopPing()
	unsubscribe := ws.startEventPump(r, conn, claims)
	defer unsubscribe()

	driverID := claims.Subject
	var lastLocAt time.Time

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			ws.closeOnReadErr(r, conn, driverID, err)
			return
		}

		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			_ = ws.wsWriteMessage(conn, websocket.TextMessage, []byte(`{"type":"error","error":"bad json"}`))
			continue
		}

		switch msg.Type {
		case "location_update":
			// handler logs its own failures; connection stays open
			_ = ws.handleLocationUpdate(r.Context(), conn, driverID, msg.Data, &lastLocAt)
		case "ping":
			_ = ws.wsWriteMessage(conn, websocket.TextMessage, []byte(`{"type":"pong"}`))
		default:
			_ = ws.wsWriteMessage(conn, websocket.TextMessage, []byte(`{"type":"error","error":"unknown message type"}`))
		}
	}
}

// ConnectClient serves GET /ws/clients/{user_id} for riders and dispatchers.
// The socket is receive-mostly: clients get their ride, chat and driver
// position events as they happen.
func (ws *WebSocket) ConnectClient(w http.ResponseWriter, r *http.Request) {
	conn, claims, ok := ws.acceptConn(w, r, "user_id", user.RoleRider, user.RoleDispatcher)
	if !ok {
		return
	}
	defer conn.Close()
	defer ws.writeLocks.Delete(conn)

	ws.stats.WSConnections.Inc()
	defer ws.stats.WSConnections.Dec()

	stopPing := ws.startPingLoop(conn)
	defer stopPing()
	unsubscribe := ws.startEventPump(r, conn, claims)
	defer unsubscribe()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			ws.closeOnReadErr(r, conn, claims.Subject, err)
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			_ = ws.wsWriteMessage(conn, websocket.TextMessage, []byte(`{"type":"error","error":"bad json"}`))
			continue
		}

		switch msg.Type {
		case "ping":
			_ = ws.wsWriteMessage(conn, websocket.TextMessage, []byte(`{"type":"pong"}`))
		default:
			_ = ws.wsWriteMessage(conn, websocket.TextMessage, []byte(`{"type":"error","error":"unknown message type"}`))
		}
	}
}

// acceptConn upgrades the request and runs the first-frame auth handshake:
// the client has authDeadline to send {"type":"auth","token":"Bearer <jwt>"},
// and the path parameter must match the token subject.
func (ws *WebSocket) acceptConn(w http.ResponseWriter, r *http.Request, pathParam string, roles ...user.Role) (*websocket.Conn, *jwt.Claims, bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.Error(r.Context(), "ws_upgrade_failed", "failed to upgrade to websocket", err, nil)
		return nil, nil, false
	}

	conn.SetReadLimit(1 << 20) // 1 MiB
	if err := conn.SetReadDeadline(time.Now().Add(authDeadline)); err != nil {
		ws.log.Error(r.Context(), "ws_set_deadline_failed", "failed to set auth read deadline", err, nil)
		ws.sendAuthError(conn, "internal server error")
		conn.Close()
		return nil, nil, false
	}

	msgType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		ws.log.Error(r.Context(), "ws_auth_read_failed", "client did not authenticate in time", err, nil)
		ws.sendAuthError(conn, "authentication timeout: send auth message within 5 seconds")
		conn.Close()
		return nil, nil, false
	}
	if msgType != websocket.TextMessage {
		ws.sendAuthError(conn, "auth message must be in text format")
		conn.Close()
		return nil, nil, false
	}

	res, err := jwt.ValidateWSAuth(firstFrame, ws.jwtMgr, roles...)
	if err != nil {
		ws.log.Error(r.Context(), "ws_auth_failed", "invalid auth message or token", err, nil)
		ws.sendAuthError(conn, "authentication failed: invalid token")
		conn.Close()
		return nil, nil, false
	}

	if id := r.PathValue(pathParam); id != "" && id != res.Claims.Subject {
		ws.log.Error(r.Context(), "ws_auth_failed", "path parameter does not match token subject", nil, map[string]any{
			"path_id":       id,
			"token_subject": res.Claims.Subject,
		})
		ws.sendAuthError(conn, "user ID mismatch")
		conn.Close()
		return nil, nil, false
	}

	if err := ws.sendAuthSuccess(conn, res.Claims); err != nil {
		ws.log.Error(r.Context(), "ws_auth_success_failed", "failed to send auth success", err, nil)
		conn.Close()
		return nil, nil, false
	}

	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	ws.log.Info(r.Context(), "ws_connected", "websocket authenticated", map[string]any{
		"user_id": res.Claims.Subject,
		"role":    res.Claims.Role,
	})
	return conn, res.Claims, true
}

// startPingLoop pings every 30s on the per-connection writer lock. A failed
// ping closes the socket to unblock the read loop.
func (ws *WebSocket) startPingLoop(conn *websocket.Conn) func() {
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		for range ticker.C {
			mu := ws.lockOf(conn)
			mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(ctrlTimeout))
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
			mu.Unlock()
			if err != nil {
				_ = conn.Close()
				return
			}
		}
	}()
	return ticker.Stop
}

func (ws *WebSocket) closeOnReadErr(r *http.Request, conn *websocket.Conn, userID string, err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
		ws.log.Error(r.Context(), "ws_unexpected_close", "connection closed unexpectedly", err, map[string]any{
			"user_id": userID,
		})
		ws.wsWriteClose(conn, websocket.CloseInternalServerErr, "internal error")
		return
	}
	ws.log.Info(r.Context(), "ws_connection_closed", "connection closed", map[string]any{
		"user_id": userID,
	})
	ws.wsWriteClose(conn, websocket.CloseNormalClosure, "bye")
}

func (ws *WebSocket) sendAuthError(conn *websocket.Conn, message string) {
	_ = ws.writeJSON(conn, map[string]any{
		"type":    "auth_error",
		"error":   message,
		"success": false,
	})
}

func (ws *WebSocket) sendAuthSuccess(conn *websocket.Conn, claims *jwt.Claims) error {
	return ws.writeJSON(conn, map[string]any{
		"type":      "auth_success",
		"success":   true,
		"user_id":   claims.Subject,
		"role":      claims.Role,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
