package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, ev kafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func TestEmitter_PublishesQueuedEvents(t *testing.T) {
	pub := &recordingPublisher{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := NewEmitter(pub, m, 10)
	e.Start(context.Background())

	e.AnalysisCompleted(AnalysisCompleted{SessionID: "s1", PairCount: 3})
	e.OverrideToggled(OverrideToggled{SessionID: "s1", IDA: "a", IDB: "b", Query: "q", Action: "toggle", StaysIn: dedup.SideB})
	e.Close()

	require.Len(t, pub.events, 2)
	assert.Equal(t, "s1", pub.events[0].Key)
	assert.Equal(t, string(EventAnalysisCompleted), pub.events[0].Type)
	assert.Equal(t, EventAnalysisCompleted, pub.events[0].Value.(AnalysisCompleted).Type)
	assert.Equal(t, EventOverrideToggled, pub.events[1].Value.(OverrideToggled).Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("override_toggled", "ok")))
}

func TestEmitter_PublishFailureIsCounted(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := NewEmitter(pub, m, 10)
	e.Start(context.Background())
	e.AnalysisCompleted(AnalysisCompleted{SessionID: "s1"})
	e.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("analysis_completed", "error")))
}

func TestEmitter_DropsWhenFull(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := NewEmitter(&recordingPublisher{}, m, 1)
	e.AnalysisCompleted(AnalysisCompleted{SessionID: "s1"})
	e.AnalysisCompleted(AnalysisCompleted{SessionID: "s2"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("analysis_completed", "dropped")))
}

func TestEmitter_PublishesEventsQueuedAfterCancel(t *testing.T) {
	pub := &recordingPublisher{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := NewEmitter(pub, m, 10)
	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	cancel()
	time.Sleep(10 * time.Millisecond)

	e.AnalysisCompleted(AnalysisCompleted{SessionID: "late"})
	e.Close()

	require.Len(t, pub.events, 1)
	assert.Equal(t, "late", pub.events[0].Key)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("analysis_completed", "ok")))
}

func TestEmitter_DropsAfterClose(t *testing.T) {
	pub := &recordingPublisher{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := NewEmitter(pub, m, 10)
	e.Start(context.Background())
	e.Close()
	e.Close()

	assert.NotPanics(t, func() { e.OverrideToggled(OverrideToggled{SessionID: "s1"}) })
	assert.Empty(t, pub.events)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("override_toggled", "dropped")))
}

func TestEmitter_CloseWithoutStartCountsQueuedAsDropped(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := NewEmitter(&recordingPublisher{}, m, 10)
	e.AnalysisCompleted(AnalysisCompleted{SessionID: "s1"})
	e.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("analysis_completed", "dropped")))
}

func TestEmitter_NilIsNoop(t *testing.T) {
	var e *Emitter
	assert.NotPanics(t, func() {
		e.AnalysisCompleted(AnalysisCompleted{})
		e.OverrideToggled(OverrideToggled{})
		e.Close()
	})
}

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return c.err
}

func TestSubclusterUpdateHandler(t *testing.T) {
	inv := &countingInvalidator{}
	handle := SubclusterUpdateHandler(inv)

	payload, err := json.Marshal(SubclusterUpdated{Type: EventSubclusterUpdated, SubclusterID: "paris"})
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), nil, payload))
	assert.Equal(t, 1, inv.calls)

	assert.Error(t, handle(context.Background(), nil, []byte(`{}`)))
	assert.Error(t, handle(context.Background(), nil, []byte(`garbage`)))
	assert.Equal(t, 1, inv.calls)

	inv.err = errors.New("redis down")
	assert.Error(t, handle(context.Background(), nil, payload))
}
