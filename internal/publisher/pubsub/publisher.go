// Package pubsub implements a Google Cloud Pub/Sub event publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// attrEventType carries the event name so subscribers can filter without
// decoding the payload.
const attrEventType = "event-type"

// Publisher publishes JSON events to one Pub/Sub topic.
type Publisher struct {
	topic *pubsub.Topic
}

// New creates a Publisher bound to topic.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// Publish marshals the payload to JSON and publishes it with the event type
// as a message attribute. It blocks until the server acknowledges the message
// and returns the server-assigned ID.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) (string, error) {
	if p.topic == nil {
		return "", fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{attrEventType: eventType},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return id, nil
}

// Stop flushes buffered messages and releases topic resources.
func (p *Publisher) Stop() {
	if p.topic != nil {
		p.topic.Stop()
	}
}
