package ingestion

import (
	"log/slog"
	"sync"

	"github.com/poiesic/bookmind/core"
)

// eventBufferSize is the number of undelivered events a pipeline holds
// before new events are dropped.
const eventBufferSize = 256

// EventSink receives pipeline lifecycle events.
// Events are delivered one at a time, in emission order, on a dedicated goroutine.
type EventSink interface {
	HandleEvent(event core.Event)
}

// EventFunc adapts a function to EventSink.
type EventFunc func(event core.Event)

// HandleEvent calls f(event).
func (f EventFunc) HandleEvent(event core.Event) {
	f(event)
}

// ChannelSink forwards events to a channel. Sends block until received, so
// the consumer must keep draining while the pipeline runs.
type ChannelSink chan<- core.Event

// HandleEvent sends event on the channel.
func (c ChannelSink) HandleEvent(event core.Event) {
	c <- event
}

// eventBus delivers events to sinks without blocking the emitter.
type eventBus struct {
	sinks  []EventSink
	queue  chan core.Event
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
}

func newEventBus(sinks []EventSink, logger *slog.Logger) *eventBus {
	b := &eventBus{
		sinks:  sinks,
		queue:  make(chan core.Event, eventBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go b.dispatch()
	return b
}

func (b *eventBus) dispatch() {
	defer close(b.done)
	for event := range b.queue {
		for _, sink := range b.sinks {
			b.deliver(sink, event)
		}
	}
}

func (b *eventBus) deliver(sink EventSink, event core.Event) {
	defer func() {
		if v := recover(); v != nil {
			b.logger.Error("event sink panicked", "event", event.Type, "panic", v)
		}
	}()
	sink.HandleEvent(event)
}

// emit queues event for delivery. It never blocks.
func (b *eventBus) emit(event core.Event) {
	if len(b.sinks) == 0 {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- event:
	default:
		b.logger.Warn("event dropped, sinks are not keeping up", "event", event.Type)
	}
}

// close delivers queued events and stops the dispatcher.
func (b *eventBus) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()
	<-b.done
}
