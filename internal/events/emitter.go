package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/metrics"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type envelope struct {
	key     string
	typ     EventType
	payload any
}

// Emitter buffers events and publishes them from a single goroutine so that
// request handlers never wait on Kafka. The queue is published until Close,
// even after the Start context is cancelled, so requests finishing during
// shutdown still get their events out. A nil *Emitter drops everything.
type Emitter struct {
	publisher Publisher
	metrics   *metrics.Metrics
	eventCh   chan envelope
	done      chan struct{}
	mu        sync.RWMutex
	started   bool
	closed    bool
	logger    *slog.Logger
}

func NewEmitter(publisher Publisher, m *metrics.Metrics, bufferSize int) *Emitter {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Emitter{
		publisher: publisher,
		metrics:   m,
		eventCh:   make(chan envelope, bufferSize),
		done:      make(chan struct{}),
		logger:    slog.Default().With("component", "event-emitter"),
	}
}

// Start runs the publish loop. Cancelling ctx does not stop it; only Close
// does. Publishing uses ctx without its cancellation.
func (e *Emitter) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.closed {
		return
	}
	e.started = true
	pubCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(e.done)
		for ev := range e.eventCh {
			e.publish(pubCtx, ev)
		}
	}()
	e.logger.Info("event emitter started", "buffer_size", cap(e.eventCh))
}

// AnalysisCompleted queues ev keyed by its session.
func (e *Emitter) AnalysisCompleted(ev AnalysisCompleted) {
	ev.Type = EventAnalysisCompleted
	e.track(envelope{key: ev.SessionID, typ: ev.Type, payload: ev})
}

// OverrideToggled queues ev keyed by its session.
func (e *Emitter) OverrideToggled(ev OverrideToggled) {
	ev.Type = EventOverrideToggled
	e.track(envelope{key: ev.SessionID, typ: ev.Type, payload: ev})
}

func (e *Emitter) track(ev envelope) {
	if e == nil {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.logger.Warn("event dropped (emitter closed)", "type", ev.typ)
		e.record(ev.typ, "dropped")
		return
	}
	select {
	case e.eventCh <- ev:
	default:
		e.logger.Warn("event dropped (buffer full)", "type", ev.typ)
		e.record(ev.typ, "dropped")
	}
}

// Close stops accepting events and waits until every queued event has been
// published. Events still queued when the emitter was never started are
// counted as dropped.
func (e *Emitter) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.eventCh)
	started := e.started
	e.mu.Unlock()

	if !started {
		for ev := range e.eventCh {
			e.record(ev.typ, "dropped")
		}
		return
	}
	<-e.done
	e.logger.Info("event emitter stopped")
}

func (e *Emitter) publish(ctx context.Context, ev envelope) {
	err := e.publisher.Publish(ctx, kafka.Event{Key: ev.key, Type: string(ev.typ), Value: ev.payload})
	if err != nil {
		e.logger.Error("failed to publish event", "type", ev.typ, "error", err)
		e.record(ev.typ, "error")
		return
	}
	e.record(ev.typ, "ok")
}

func (e *Emitter) record(typ EventType, status string) {
	if e.metrics != nil {
		e.metrics.EventsPublishedTotal.WithLabelValues(string(typ), status).Inc()
	}
}
