// Package messaging provides the event bus adapter used by the outbox
// dispatcher and the projection materializer's consumer group.
//
// The corpus this was built from never wires a reachable broker into its
// equivalent stub (adapters/events and platform/messaging were TODOs); Bus
// replaces that stub with a small in-process topic/consumer-group
// implementation over Go channels so the outbox->materializer path is real,
// exercised code rather than a no-op. It satisfies the same narrow
// publish/subscribe shape a Kafka or NATS adapter would, so swapping in a
// real broker later only touches this file.
package messaging

import (
	"context"
	"sync"
)

// Message is a delivered bus payload.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus is a topic-partitioned, multi-consumer-group in-process broker.
// Each named consumer group receives every message published to a topic it
// is subscribed to, independently of other groups — mirroring Kafka
// consumer-group semantics closely enough for single-process tests and for
// the worker process's own dispatch loop.
type Bus struct {
	mu     sync.RWMutex
	groups map[string]map[string]chan Message // topic -> group -> channel
	buffer int
}

// New creates a bus whose per-subscriber channel buffer is sized to buffer.
// A small positive buffer keeps Publish non-blocking for the common case;
// a full channel blocks the publisher, exerting natural backpressure.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		groups: make(map[string]map[string]chan Message),
		buffer: buffer,
	}
}

// Subscribe registers group as a consumer of topic and returns the channel
// it will receive messages on. Calling Subscribe again with the same
// (topic, group) pair returns the existing channel.
func (b *Bus) Subscribe(topic, group string) <-chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	groupsForTopic, ok := b.groups[topic]
	if !ok {
		groupsForTopic = make(map[string]chan Message)
		b.groups[topic] = groupsForTopic
	}
	ch, ok := groupsForTopic[group]
	if !ok {
		ch = make(chan Message, b.buffer)
		groupsForTopic[group] = ch
	}
	return ch
}

// Publish delivers payload to every consumer group subscribed to topic. It
// satisfies internal/shared/outbox.Publisher.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	groupsForTopic := b.groups[topic]
	channels := make([]chan Message, 0, len(groupsForTopic))
	for _, ch := range groupsForTopic {
		channels = append(channels, ch)
	}
	b.mu.RUnlock()

	msg := Message{Topic: topic, Payload: payload}
	for _, ch := range channels {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
