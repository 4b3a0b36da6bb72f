package contracts

import "time"

// RideRequestedMessage is published when a rider creates a ride.
// Routing key: "ride.request.{ride_id}" on ExchangeRideTopic.
type RideRequestedMessage struct {
	RideID          string   `json:"ride_id"`
	RiderID         string   `json:"rider_id"`
	Pickup          GeoPoint `json:"pickup_location"`
	Dropoff         GeoPoint `json:"dropoff_location"`
	Notes           string   `json:"notes,omitempty"`
	DistanceKM      float64  `json:"distance_km,omitempty"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	Envelope
}

// RideStatusMessage is published on every committed status change.
// Routing key: "ride.status.{status}" on ExchangeRideTopic.
type RideStatusMessage struct {
	RideID     string    `json:"ride_id"`
	RiderID    string    `json:"rider_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"` // requested|accepted|in_progress|completed|cancelled
	DriverID   string    `json:"driver_id,omitempty"`
	CartID     string    `json:"cart_id,omitempty"`
	CartNumber string    `json:"cart_number,omitempty"`
	Reason     string    `json:"reason,omitempty"` // cancellation audit text
	Timestamp  time.Time `json:"timestamp"`
	Envelope
}

// MessagePostedMessage is published when a chat message is appended.
// Routing key: "chat.message.{thread_id}" on ExchangeChatTopic.
type MessagePostedMessage struct {
	ThreadID   string    `json:"thread_id"`
	ThreadKind string    `json:"thread_kind"` // private|ride|driver_group
	MessageID  string    `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
	Envelope
}

// LocationUpdateMessage is broadcast on ExchangeLocationFanout (no routing
// key) whenever a driver reports a position.
type LocationUpdateMessage struct {
	DriverID  string    `json:"driver_id"`
	RideID    string    `json:"ride_id,omitempty"`
	Location  GeoPoint  `json:"location"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
