package domain

import (
	"context"
)

// EventBus is the interface for event-driven communication around the
// scoring pipeline. Implementations: Go channels (Community) or NATS (Pro).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the scoring pipeline.
const (
	// TopicScoreRequested carries async per-account scoring requests
	// consumed by the worker.
	TopicScoreRequested = "kestrel.score.requested"

	// TopicScoreComputed carries every completed evaluation.
	TopicScoreComputed = "kestrel.score.computed"

	// TopicAccountFlagged carries evaluations whose risk penalty hit the
	// cap or whose grade bottomed out.
	TopicAccountFlagged = "kestrel.account.flagged"

	// TopicConfigUpdated announces a new config revision.
	TopicConfigUpdated = "kestrel.config.updated"
)
