// Package snapshotcache stores computed dedup snapshots in Redis keyed by the
// fingerprint of their input, so an identical set of subclusters analyzed by
// any session is computed once until the entry expires or is invalidated.
package snapshotcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "dedup:snapshot:"

// Backend is the subset of pkg/redis.Client the cache uses.
type Backend interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type SnapshotCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over backend. m may be nil.
func New(backend Backend, cfg config.RedisConfig, m *metrics.Metrics) *SnapshotCache {
	c := &SnapshotCache{
		backend: backend,
		ttl:     cfg.SnapshotTTL,
		metrics: m,
		logger:  slog.Default().With("component", "snapshot-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("snapshot-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Get returns the cached snapshot for fingerprint. Backend failures count as
// misses; the cache never makes an analysis fail.
func (c *SnapshotCache) Get(ctx context.Context, fingerprint string) (*dedup.Snapshot, bool) {
	key := buildKey(fingerprint)
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.GetBytes(ctx, key)
		if pkgredis.IsNilError(err) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	if len(data) == 0 {
		c.recordMiss()
		return nil, false
	}
	var snap dedup.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	if snap.Fingerprint != fingerprint {
		c.logger.Warn("cache entry fingerprint mismatch", "key", key, "stored", snap.Fingerprint)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	c.logger.Debug("cache hit", "key", key, "pairs", len(snap.Pairs))
	return &snap, true
}

// Set stores snap under its own fingerprint.
func (c *SnapshotCache) Set(ctx context.Context, snap *dedup.Snapshot) {
	key := buildKey(snap.Fingerprint)
	data, err := json.Marshal(snap)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.SetBytes(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached snapshot for fingerprint or runs computeFn
// once across concurrent callers with the same fingerprint. The bool result
// reports a cache hit.
func (c *SnapshotCache) GetOrCompute(
	ctx context.Context,
	fingerprint string,
	computeFn func() (*dedup.Snapshot, error),
) (*dedup.Snapshot, bool, error) {
	if snap, ok := c.Get(ctx, fingerprint); ok {
		return snap, true, nil
	}
	val, err, _ := c.group.Do(buildKey(fingerprint), func() (interface{}, error) {
		snap, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, snap)
		return snap, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*dedup.Snapshot), false, nil
}

// Invalidate deletes every cached snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating snapshot cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *SnapshotCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *SnapshotCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.SnapshotCacheHits.Inc()
	}
}

func (c *SnapshotCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.SnapshotCacheMisses.Inc()
	}
}

func buildKey(fingerprint string) string {
	return keyPrefix + fingerprint
}
