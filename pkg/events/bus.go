package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/killallgit/huddle/pkg/logger"
)

// ErrClosed is returned when publishing to a closed bus
var ErrClosed = errors.New("event bus closed")

// AllEvents subscribes a handler to every event type
const AllEvents = "*"

// Event represents a generic event in the system
type Event struct {
	Type      string
	Payload   any
	Timestamp time.Time
}

// Handler is a function that handles events
type Handler func(event Event)

type queued struct {
	event   Event
	barrier chan struct{}
}

// Bus delivers events to subscribers on a single dispatch goroutine, in
// publish order, one handler at a time. Handlers must not block on Publish
// to the same bus.
type Bus struct {
	mutex    sync.RWMutex
	handlers map[string][]*Subscription
	nextID   uint64
	queue    chan queued
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once
	log      *logger.Logger
}

// NewBus creates a bus and starts its dispatch goroutine
func NewBus() *Bus {
	bus := &Bus{
		handlers: make(map[string][]*Subscription),
		queue:    make(chan queued, 256),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		log:      logger.WithComponent("event_bus"),
	}
	go bus.processEvents()
	return bus
}

// Subscription is the handle returned by Subscribe. Unsubscribe is
// idempotent and safe to call from inside a handler.
type Subscription struct {
	bus       *Bus
	eventType string
	id        uint64
	handler   Handler
	once      sync.Once
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.bus.remove(s)
	})
}

// Subscriptions collects handles owned by one component so they can be
// released together on teardown.
type Subscriptions []*Subscription

func (s *Subscriptions) Add(subs ...*Subscription) {
	*s = append(*s, subs...)
}

func (s *Subscriptions) Release() {
	for _, sub := range *s {
		sub.Unsubscribe()
	}
	*s = nil
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType string, handler Handler) *Subscription {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.nextID++
	sub := &Subscription{bus: b, eventType: eventType, id: b.nextID, handler: handler}
	b.handlers[eventType] = append(b.handlers[eventType], sub)
	b.log.Debug("Handler subscribed", "eventType", eventType, "id", sub.id)
	return sub
}

// On subscribes a handler that receives the payload as T. Events whose
// payload is not a T are logged and skipped.
func On[T any](b *Bus, eventType string, fn func(T)) *Subscription {
	return b.Subscribe(eventType, func(event Event) {
		payload, ok := event.Payload.(T)
		if !ok {
			b.log.Warn("Unexpected payload type", "eventType", event.Type, "payload", fmt.Sprintf("%T", event.Payload))
			return
		}
		fn(payload)
	})
}

func (b *Bus) remove(sub *Subscription) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	subs := b.handlers[sub.eventType]
	for i, s := range subs {
		if s.id == sub.id {
			next := make([]*Subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			b.handlers[sub.eventType] = next
			break
		}
	}
	b.log.Debug("Handler unsubscribed", "eventType", sub.eventType, "id", sub.id)
}

// HandlerCount returns the number of live subscriptions for an event type
func (b *Bus) HandlerCount(eventType string) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.handlers[eventType])
}

// Publish queues an event for delivery. It blocks while the queue is full
// and fails only once the bus is closed.
func (b *Bus) Publish(eventType string, payload any) error {
	event := Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	select {
	case b.queue <- queued{event: event}:
		return nil
	case <-b.done:
		return ErrClosed
	}
}

// Flush waits until every event published before the call has been handled
func (b *Bus) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	select {
	case b.queue <- queued{barrier: barrier}:
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-barrier:
		return nil
	case <-b.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// processEvents runs in a goroutine to deliver queued events
func (b *Bus) processEvents() {
	defer close(b.stopped)
	for {
		select {
		case item := <-b.queue:
			if item.barrier != nil {
				close(item.barrier)
				continue
			}
			b.deliverEvent(item.event)
		case <-b.done:
			return
		}
	}
}

// deliverEvent runs every matching handler in subscription order
func (b *Bus) deliverEvent(event Event) {
	b.mutex.RLock()
	subs := make([]*Subscription, 0, len(b.handlers[event.Type])+len(b.handlers[AllEvents]))
	subs = append(subs, b.handlers[event.Type]...)
	subs = append(subs, b.handlers[AllEvents]...)
	b.mutex.RUnlock()

	for _, sub := range subs {
		b.invoke(sub, event)
	}
}

func (b *Bus) invoke(sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Event handler panicked", "type", event.Type, "subscription", sub.id, "error", fmt.Sprint(r))
		}
	}()
	sub.handler(event)
}

// Close stops dispatching. Events still queued are dropped.
func (b *Bus) Close() {
	b.once.Do(func() {
		close(b.done)
	})
	<-b.stopped
}
