// Package memory contains an in-memory publisher for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Publisher records published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []PublishedEvent
}

// PublishedEvent captures one publish call.
type PublishedEvent struct {
	EventType string
	Payload   any
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, eventType string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{EventType: eventType, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns the recorded publishes.
func (p *Publisher) Events() []PublishedEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedEvent, len(p.events))
	copy(out, p.events)
	return out
}
