package bus

import (
	"context"
	"fmt"

	"github.com/vusociu/datn/internal/protocol"
)

// RawPublisher sends bytes to a topic.
type RawPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// EventPublisher maps locker events onto their configured topics.
type EventPublisher struct {
	raw    RawPublisher
	topics *protocol.Topics
}

// NewEventPublisher creates an event publisher over raw.
func NewEventPublisher(raw RawPublisher, topics *protocol.Topics) *EventPublisher {
	return &EventPublisher{raw: raw, topics: topics}
}

// Publish sends ev to the topic of its kind.
func (p *EventPublisher) Publish(ctx context.Context, ev protocol.Event) error {
	topic, ok := p.topics.Topic(ev.Kind)
	if !ok {
		return fmt.Errorf("%w: no topic for %s", protocol.ErrUnknownTopic, ev.Kind)
	}
	return p.raw.Publish(ctx, topic, ev.Payload)
}
