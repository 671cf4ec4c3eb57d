package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ChangeEventType is the only event type the live feed carries
const ChangeEventType = "data_changed"

// ChangeEvent announces a committed mutation. Subscribers re-query rather
// than read data from the event.
type ChangeEvent struct {
	Type      string    `json:"type"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	Timestamp time.Time `json:"timestamp"`
}

// ChangeHandler reacts to a committed mutation
type ChangeHandler func(ctx context.Context, event ChangeEvent)

// EventBus fans committed mutations out to the cache and the live feed
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string]ChangeHandler
}

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[string]ChangeHandler)}
}

// Subscribe registers handler under name, replacing any previous one
func (b *EventBus) Subscribe(name string, handler ChangeHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = handler
}

// Publish delivers event synchronously to every subscriber. A nil bus is a
// no-op so services can run without one in tests.
func (b *EventBus) Publish(ctx context.Context, action, entity string) {
	if b == nil {
		return
	}

	event := ChangeEvent{
		Type:      ChangeEventType,
		Action:    action,
		Entity:    entity,
		Timestamp: time.Now().UTC(),
	}

	b.mu.RLock()
	handlers := make(map[string]ChangeHandler, len(b.handlers))
	for name, h := range b.handlers {
		handlers[name] = h
	}
	b.mu.RUnlock()

	for name, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithFields(logrus.Fields{
						"subscriber": name,
						"action":     action,
						"panic":      r,
					}).Error("Change subscriber panicked")
				}
			}()
			h(ctx, event)
		}()
	}
}
