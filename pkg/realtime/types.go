package realtime

import "encoding/json"

// Frame is the wire envelope for every event crossing the channel, in both
// directions: a tagged variant name plus its payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Handler receives inbound events. Payload shapes are validated by the
// subscriber; anything that doesn't match its expectation is dropped there.
type Handler func(event string, data json.RawMessage)

// Subscription is a room-scoped registration on the shared connection.
// Holders call Manager.Unsubscribe exactly once when done; the underlying
// connection outlives any individual subscription.
type Subscription struct {
	id         string
	joinEvent  string
	leaveEvent string
	joinData   interface{}
	handler    Handler
}
