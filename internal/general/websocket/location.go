package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"campuscart/internal/domain/ride"
	"campuscart/internal/events"
	"campuscart/internal/general/contracts"
	"campuscart/internal/ports"
)

// locationThrottle caps how often a driver position is accepted. Frames
// arriving faster than this are acknowledged silently and dropped.
const locationThrottle = 3 * time.Second

func (ws *WebSocket) handleLocationUpdate(ctx context.Context, conn *websocket.Conn, driverID string, data json.RawMessage, lastLocAt *time.Time) error {
	now := time.Now()
	if now.Sub(*lastLocAt) < locationThrottle {
		ws.log.Debug(ctx, "location_update_throttled", "position report dropped", map[string]any{
			"driver_id": driverID,
			"interval":  now.Sub(*lastLocAt).String(),
		})
		return nil
	}
	*lastLocAt = now

	var loc struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Address   string  `json:"address,omitempty"`
	}
	if err := json.Unmarshal(data, &loc); err != nil {
		ws.log.Error(ctx, "location_update_parse_failed", "failed to parse location data", err, map[string]any{
			"driver_id": driverID,
		})
		_ = ws.wsWriteMessage(conn, websocket.TextMessage, []byte(`{"type":"error","error":"invalid location data"}`))
		return err
	}

	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		ws.log.Error(ctx, "location_update_invalid_coords", "coordinates out of range", nil, map[string]any{
			"driver_id": driverID,
			"latitude":  loc.Latitude,
			"longitude": loc.Longitude,
		})
		_ = ws.wsWriteMessage(conn, websocket.TextMessage, []byte(`{"type":"error","error":"invalid coordinates"}`))
		return fmt.Errorf("invalid coordinates")
	}

	reportedAt := now.UTC()
	err := ws.presence.UpdateLocation(ctx, ports.DriverPosition{
		DriverID:   driverID,
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		ReportedAt: reportedAt,
	})
	if err != nil {
		ws.log.Error(ctx, "location_update_store_failed", "failed to store driver position", err, map[string]any{
			"driver_id": driverID,
		})
		_ = ws.wsWriteMessage(conn, websocket.TextMessage, []byte(`{"type":"error","error":"failed to save location"}`))
		return err
	}

	msg := contracts.LocationUpdateMessage{
		DriverID: driverID,
		Location: contracts.GeoPoint{
			Lat:     loc.Latitude,
			Lng:     loc.Longitude,
			Address: loc.Address,
		},
		Timestamp: reportedAt,
	}

	// tag the position with the driver's active ride so riders can follow
	// their cart; a free-roaming driver publishes without a ride id
	if active, err := ws.rides.ActiveForDriver(ctx, driverID); err == nil {
		msg.RideID = active.ID
	} else if !errors.Is(err, ride.ErrNotFound) {
		ws.log.Error(ctx, "active_ride_lookup_failed", "failed to look up active ride", err, map[string]any{
			"driver_id": driverID,
		})
	}

	ws.bus.Publish(events.Event{
		Kind:     events.KindDriverLocationUpdated,
		RideID:   msg.RideID,
		DriverID: driverID,
		Payload:  msg,
	})

	_ = ws.wsWriteMessage(conn, websocket.TextMessage, []byte(`{"type":"location_update_ack","status":"success"}`))
	return nil
}
