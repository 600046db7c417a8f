package pubsub

import "context"

// Message is an inbound publication delivered to a subscriber.
type Message struct {
	Topic   string
	Payload []byte
}

// State describes the broker connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

type MessageCallback func(msg *Message)

type StateCallback func(state State)

// Client is a topic pub/sub connection. Publish is fire-and-forget: a nil
// error means the frame was handed to the broker, not that anyone received it.
type Client interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topic string) error
	Publish(ctx context.Context, topic string, payload []byte) error
	OnMessage(cb MessageCallback) int
	RemoveMessageCallback(id int)
	OnStateChange(cb StateCallback) int
	RemoveStateCallback(id int)
	Close(ctx context.Context) error
}
