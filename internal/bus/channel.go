// Package bus provides event bus implementations for Kestrel.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-social/kestrel/internal/domain"
)

// ChannelBus is the community-tier bus: in-process fan-out over buffered
// channels, one delivery goroutine per subscriber. Delivery is best-effort;
// a subscriber whose buffer is full misses the message rather than blocking
// the publisher.
type ChannelBus struct {
	mu         sync.RWMutex
	bufferSize int
	subs       map[string][]*channelSub
	closed     bool
}

type channelSub struct {
	id     string
	topic  string
	inbox  chan *domain.Message
	cancel context.CancelFunc
}

// NewChannelBus creates an in-process bus with the given per-subscriber
// buffer size (default 1000).
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufferSize: bufferSize,
		subs:       make(map[string][]*channelSub),
	}
}

// Publish fans a message out to every subscriber of the topic.
func (b *ChannelBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return fmt.Errorf("topic is required")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	subs := b.subs[topic]
	b.mu.RUnlock()

	msg := &domain.Message{
		ID:        uuid.New().String(),
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}

	for _, sub := range subs {
		select {
		case sub.inbox <- msg:
		default:
			// Subscriber buffer full; drop for this subscriber.
		}
	}

	return nil
}

// Subscribe registers a handler for a topic. The handler runs on a
// dedicated goroutine until Unsubscribe or Close.
func (b *ChannelBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &channelSub{
		id:     uuid.New().String(),
		topic:  topic,
		inbox:  make(chan *domain.Message, b.bufferSize),
		cancel: cancel,
	}
	b.subs[topic] = append(b.subs[topic], sub)

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case msg := <-sub.inbox:
				if msg != nil {
					_ = handler(subCtx, msg)
				}
			}
		}
	}()

	return sub, nil
}

// Ping reports whether the bus is still open.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Close cancels all subscriptions and rejects further publishes.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.cancel()
			close(sub.inbox)
		}
	}
	b.subs = make(map[string][]*channelSub)
	return nil
}

func (s *channelSub) Unsubscribe() error {
	s.cancel()
	return nil
}

func (s *channelSub) Topic() string {
	return s.topic
}
