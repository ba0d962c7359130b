package entity

import (
	"context"
	"sync/atomic"
	"time"
)

// EventKind classifies a registry lifecycle event.
type EventKind string

// Lifecycle event kinds.
const (
	// EventCreated fires when an entity appears in the registry.
	EventCreated EventKind = "created"

	// EventUpdated fires when an existing entity receives a new update.
	EventUpdated EventKind = "updated"

	// EventRemoved fires when the sweeper or an operator removes an entity.
	EventRemoved EventKind = "removed"
)

// Event describes a single registry mutation.
//
// Record is a snapshot copy taken at mutation time; subscribers may hold
// or modify it freely.
type Event struct {
	Kind      EventKind `json:"kind"`
	Record    Record    `json:"record"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier receives registry lifecycle events.
//
// Notify is called synchronously under the registry's mutation lock, so
// implementations must be fast and must not call back into the registry.
// Slow consumers should be wrapped in a ChannelNotifier.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(Event)

// Notify calls the wrapped function.
func (f NotifierFunc) Notify(e Event) { f(e) }

// ChannelNotifier decouples slow consumers from the registry's dispatch
// path. Events are enqueued onto a bounded channel without blocking; when
// the channel is full the event is dropped and a counter incremented.
// A Run goroutine drains the channel into the downstream handler.
type ChannelNotifier struct {
	events  chan Event
	handler func(Event)
	dropped atomic.Uint64
}

// NewChannelNotifier creates a ChannelNotifier with the given buffer size
// and downstream handler. A non-positive size gets a default of 64.
func NewChannelNotifier(size int, handler func(Event)) *ChannelNotifier {
	if size <= 0 {
		size = 64
	}
	return &ChannelNotifier{
		events:  make(chan Event, size),
		handler: handler,
	}
}

// Notify enqueues the event without blocking.
// If the buffer is full the event is dropped and counted.
func (n *ChannelNotifier) Notify(e Event) {
	select {
	case n.events <- e:
	default:
		n.dropped.Add(1)
	}
}

// Run drains the channel into the handler until ctx is cancelled.
// Blocks; run in its own goroutine.
func (n *ChannelNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-n.events:
			n.handler(e)
		}
	}
}

// Dropped returns the number of events discarded due to a full buffer.
func (n *ChannelNotifier) Dropped() uint64 {
	return n.dropped.Load()
}
