// Package session holds analysis sessions in memory and orchestrates the
// layers around the dedup engine: loading, the shared snapshot cache, the
// archive, events and metrics.
package session

import (
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	apperrors "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/metrics"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Registry keeps sessions until they have been idle for the configured TTL.
// Every successful Get restarts the idle clock.
type Registry struct {
	store   *cache.Cache
	opts    []dedup.SessionOption
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewRegistry(ttl, cleanupInterval time.Duration, m *metrics.Metrics, opts ...dedup.SessionOption) *Registry {
	r := &Registry{
		store:   cache.New(ttl, cleanupInterval),
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "session-registry"),
	}
	r.store.OnEvicted(func(id string, v interface{}) {
		if s, ok := v.(*dedup.Session); ok {
			s.Close()
		}
		r.logger.Info("session closed", "session_id", id)
		r.updateGauge()
	})
	return r
}

// Create starts a new empty session with a random id.
func (r *Registry) Create() *dedup.Session {
	s := dedup.NewSession(uuid.NewString(), r.opts...)
	r.store.Set(s.ID(), s, cache.DefaultExpiration)
	r.logger.Info("session created", "session_id", s.ID())
	r.updateGauge()
	return s
}

func (r *Registry) Get(id string) (*dedup.Session, error) {
	v, found := r.store.Get(id)
	if !found {
		return nil, apperrors.Newf(apperrors.ErrSessionNotFound, 404, "session %q", id)
	}
	s := v.(*dedup.Session)
	r.store.Set(id, s, cache.DefaultExpiration)
	return s, nil
}

// Delete closes and forgets the session.
func (r *Registry) Delete(id string) error {
	if _, found := r.store.Get(id); !found {
		return apperrors.Newf(apperrors.ErrSessionNotFound, 404, "session %q", id)
	}
	r.store.Delete(id)
	return nil
}

func (r *Registry) Count() int {
	return r.store.ItemCount()
}

func (r *Registry) updateGauge() {
	if r.metrics != nil {
		r.metrics.ActiveSessions.Set(float64(r.store.ItemCount()))
	}
}
