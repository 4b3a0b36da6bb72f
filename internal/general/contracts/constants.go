package contracts

// Exchanges
const (
	ExchangeRideTopic      = "ride_topic"
	ExchangeChatTopic      = "chat_topic"
	ExchangeLocationFanout = "location_fanout"
)

// Queues (durable, declared alongside the exchanges so external observers
// have something to drain without racing service startup)
const (
	QueueRideStatus      = "ride_status"
	QueueChatMessages    = "chat_messages"
	QueueLocationUpdates = "location_updates"
)

// Routing patterns
const (
	RouteRideRequestPrefix = "ride.request." // {ride_id}
	RouteRideStatusPrefix  = "ride.status."  // {status}
	RouteChatMessagePrefix = "chat.message." // {thread_id}
)

// ProducerName identifies this service in message envelopes.
const ProducerName = "cart-coordinator"
