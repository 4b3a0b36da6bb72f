package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"campuscart/internal/events"
	"campuscart/internal/general/contracts"
	"campuscart/internal/general/logger"
)

// Relay drains the in-process event bus onto the broker so external
// consumers see the same stream websocket clients do. Forwarding is
// best-effort; a failed publish is logged, never retried, and never blocks
// the bus.
type Relay struct {
	client *Client
	bus    *events.Bus
	log    *logger.Logger
}

func NewRelay(client *Client, bus *events.Bus, log *logger.Logger) *Relay {
	return &Relay{client: client, bus: bus, log: log}
}

// Run forwards events until ctx is cancelled.
func (relay *Relay) Run(ctx context.Context) {
	ch, unsubscribe := relay.bus.Subscribe(256)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			relay.forward(ctx, ev)
		}
	}
}

func (relay *Relay) forward(ctx context.Context, ev events.Event) {
	envelope := contracts.Envelope{
		CorrelationID: uuid.NewString(),
		Producer:      contracts.ProducerName,
		SentAt:        time.Now().UTC(),
	}

	var (
		exchange   string
		routingKey string
		payload    any
	)
	switch msg := ev.Payload.(type) {
	case contracts.RideRequestedMessage:
		msg.Envelope = envelope
		exchange = contracts.ExchangeRideTopic
		routingKey = contracts.RouteRideRequestPrefix + msg.RideID
		payload = msg
	case contracts.RideStatusMessage:
		msg.Envelope = envelope
		exchange = contracts.ExchangeRideTopic
		routingKey = contracts.RouteRideStatusPrefix + msg.ToStatus
		payload = msg
	case contracts.MessagePostedMessage:
		msg.Envelope = envelope
		exchange = contracts.ExchangeChatTopic
		routingKey = contracts.RouteChatMessagePrefix + msg.ThreadID
		payload = msg
	case contracts.LocationUpdateMessage:
		msg.Envelope = envelope
		exchange = contracts.ExchangeLocationFanout
		payload = msg
	default:
		return // not a wire event
	}

	body, err := json.Marshal(payload)
	if err != nil {
		relay.log.Error(ctx, "relay_marshal_failed", "could not encode event", err, map[string]any{
			"kind": string(ev.Kind),
		})
		return
	}
	if err := relay.client.PublishMessage(exchange, routingKey, body); err != nil {
		relay.log.Error(ctx, "relay_publish_failed", "could not publish event", err, map[string]any{
			"kind":        string(ev.Kind),
			"exchange":    exchange,
			"routing_key": routingKey,
		})
	}
}
