package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campuscart/internal/domain/user"
	"campuscart/internal/events"
	"campuscart/internal/general/jwt"
	"campuscart/internal/general/logger"
	"campuscart/internal/general/memory"
	"campuscart/internal/general/metrics"
	"campuscart/internal/general/websocket"
	"campuscart/internal/service/chats"
	"campuscart/internal/service/fleet"
	"campuscart/internal/service/rides"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store, *jwt.Manager) {
	t.Helper()

	log := logger.New("handler-test")
	store := memory.NewStore()
	bus := events.NewBus()
	stats := metrics.New()
	mgr := jwt.NewManager("handler-test-secret", time.Hour)

	rideSvc := rides.New(log, store, store.Rides(), store.RideEvents(), store.Users(), store.Threads(), bus, stats)
	fleetSvc := fleet.New(log, store, store.Carts(), store.Users(), store.Rides())
	chatSvc := chats.New(log, store, store.Users(), store.Threads(), bus, stats)
	hub := websocket.New(log, mgr, store.Presence(), store.Rides(), store.Threads(), bus, stats)

	mux := http.NewServeMux()
	New(log, mgr, rideSvc, fleetSvc, chatSvc, store.Presence(), hub).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store, mgr
}

func seedUser(t *testing.T, store *memory.Store, id string, role user.Role) {
	t.Helper()
	u, err := user.NewUser(id, "Test", "User", id+"@campus.edu", "555-0100", role)
	if err != nil {
		t.Fatal(err)
	}
	if role.IsDriver() {
		u.IsOnDuty = true
	}
	if err := store.Users().Create(t.Context(), u); err != nil {
		t.Fatal(err)
	}
}

func token(t *testing.T, mgr *jwt.Manager, id string, role user.Role) string {
	t.Helper()
	signed, _, err := mgr.IssueUserToken(id, role)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func doJSON(t *testing.T, method, url, bearer string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	// auth middleware failures are plain text; everything else is JSON
	decoded := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded
}

func TestAuthGate(t *testing.T) {
	srv, store, mgr := newTestServer(t)
	seedUser(t, store, "driver-1", user.RoleDriver)

	rideBody := map[string]any{
		"pickup_address": "Library", "pickup_latitude": 40.0, "pickup_longitude": -75.0,
		"dropoff_address": "Gym", "dropoff_latitude": 40.01, "dropoff_longitude": -75.01,
	}

	if code, _ := doJSON(t, http.MethodPost, srv.URL+"/rides", "", rideBody); code != http.StatusUnauthorized {
		t.Errorf("no token: code = %d, want 401", code)
	}

	drv := token(t, mgr, "driver-1", user.RoleDriver)
	if code, _ := doJSON(t, http.MethodPost, srv.URL+"/rides", drv, rideBody); code != http.StatusForbidden {
		t.Errorf("driver on rider route: code = %d, want 403", code)
	}
}

func TestRideFlowOverHTTP(t *testing.T) {
	srv, store, mgr := newTestServer(t)
	seedUser(t, store, "rider-1", user.RoleRider)
	seedUser(t, store, "rider-2", user.RoleRider)
	seedUser(t, store, "driver-1", user.RoleDriver)

	disp := token(t, mgr, "disp-1", user.RoleDispatcher)
	rider := token(t, mgr, "rider-1", user.RoleRider)
	drv := token(t, mgr, "driver-1", user.RoleDriver)

	// give the driver a cart so accept preconditions pass
	code, body := doJSON(t, http.MethodPost, srv.URL+"/carts", disp, map[string]any{"number": "CART-01"})
	if code != http.StatusCreated {
		t.Fatalf("register cart: code = %d, body = %v", code, body)
	}
	cartID := body["id"].(string)
	if code, body := doJSON(t, http.MethodPost, srv.URL+"/carts/"+cartID+"/assign", disp, map[string]any{"driver_id": "driver-1"}); code != http.StatusOK {
		t.Fatalf("assign cart: code = %d, body = %v", code, body)
	}

	code, body = doJSON(t, http.MethodPost, srv.URL+"/rides", rider, map[string]any{
		"pickup_address": "Library", "pickup_latitude": 40.0, "pickup_longitude": -75.0,
		"dropoff_address": "Gym", "dropoff_latitude": 40.01, "dropoff_longitude": -75.01,
		"notes": "two passengers",
	})
	if code != http.StatusCreated {
		t.Fatalf("create ride: code = %d, body = %v", code, body)
	}
	rideID := body["id"].(string)
	if body["status"] != "requested" {
		t.Errorf("status = %v", body["status"])
	}

	code, body = doJSON(t, http.MethodPost, srv.URL+"/rides/"+rideID+"/accept", drv, nil)
	if code != http.StatusOK {
		t.Fatalf("accept: code = %d, body = %v", code, body)
	}
	if body["driver_id"] != "driver-1" || body["cart_id"] != cartID {
		t.Errorf("binding = %v / %v", body["driver_id"], body["cart_id"])
	}

	if code, _ := doJSON(t, http.MethodGet, srv.URL+"/rides/"+rideID, rider, nil); code != http.StatusOK {
		t.Errorf("rider get: code = %d", code)
	}
	stranger := token(t, mgr, "rider-2", user.RoleRider)
	if code, _ := doJSON(t, http.MethodGet, srv.URL+"/rides/"+rideID, stranger, nil); code != http.StatusForbidden {
		t.Errorf("stranger get: code = %d, want 403", code)
	}

	code, body = doJSON(t, http.MethodGet, srv.URL+"/rides/"+rideID+"/history", rider, nil)
	if code != http.StatusOK {
		t.Fatalf("history: code = %d", code)
	}
	if events := body["events"].([]any); len(events) != 2 {
		t.Errorf("history length = %d, want 2", len(events))
	}

	// a second accept is a conflict, not a validation error
	if code, _ := doJSON(t, http.MethodPost, srv.URL+"/rides/"+rideID+"/accept", drv, nil); code != http.StatusConflict {
		t.Errorf("double accept: code = %d, want 409", code)
	}
}

func TestCartErrorMapping(t *testing.T) {
	srv, _, mgr := newTestServer(t)
	disp := token(t, mgr, "disp-1", user.RoleDispatcher)

	if code, _ := doJSON(t, http.MethodPost, srv.URL+"/carts", disp, map[string]any{"number": "CART-07"}); code != http.StatusCreated {
		t.Fatalf("register: code = %d", code)
	}
	if code, _ := doJSON(t, http.MethodPost, srv.URL+"/carts", disp, map[string]any{"number": "CART-07"}); code != http.StatusConflict {
		t.Errorf("duplicate number: code = %d, want 409", code)
	}
	if code, _ := doJSON(t, http.MethodGet, srv.URL+"/carts/nope", disp, nil); code != http.StatusNotFound {
		t.Errorf("unknown cart: code = %d, want 404", code)
	}
	if code, _ := doJSON(t, http.MethodPost, srv.URL+"/carts", disp, map[string]any{"number": ""}); code != http.StatusBadRequest {
		t.Errorf("blank number: code = %d, want 400", code)
	}
}

func TestTokenEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	code, body := doJSON(t, http.MethodPost, srv.URL+"/tokens", "", map[string]any{"user_id": "u-1", "role": "rider"})
	if code != http.StatusCreated {
		t.Fatalf("code = %d, body = %v", code, body)
	}
	if body["token"] == "" {
		t.Error("empty token")
	}

	if code, _ := doJSON(t, http.MethodPost, srv.URL+"/tokens", "", map[string]any{"user_id": "u-1", "role": "admin"}); code != http.StatusBadRequest {
		t.Errorf("bad role: code = %d, want 400", code)
	}
}
