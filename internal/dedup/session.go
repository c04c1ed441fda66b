package dedup

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/errors"
)

// Session is one analyst's working state: the current snapshot and the
// overrides made against it. Sessions share nothing with each other.
type Session struct {
	mu              sync.RWMutex
	id              string
	createdAt       time.Time
	analyzer        *Analyzer
	snapshot        *Snapshot
	overrides       *OverrideStore
	retainOverrides bool
	closed          bool
	logger          *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithRetainOverrides controls whether overrides survive a new snapshot. When
// retained, only overrides whose pair and query still intersect are kept.
func WithRetainOverrides(retain bool) SessionOption {
	return func(s *Session) {
		s.retainOverrides = retain
	}
}

// NewSession starts an empty session.
func NewSession(id string, opts ...SessionOption) *Session {
	s := &Session{
		id:              id,
		createdAt:       time.Now().UTC(),
		analyzer:        NewAnalyzer(),
		overrides:       NewOverrideStore(),
		retainOverrides: true,
		logger:          slog.Default().With("component", "dedup-session", "session_id", id),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Analyze runs the all-pairs analysis and installs the result. It returns how
// many overrides no longer applied to the new snapshot and were dropped.
func (s *Session) Analyze(sets []QuerySet) (*Snapshot, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, 0, err
	}
	snap, err := s.analyzer.AnalyzeAll(sets)
	if err != nil {
		return nil, 0, err
	}
	return snap, s.install(snap), nil
}

// Replace installs a snapshot computed elsewhere, for example one read back
// from a cache. It returns how many overrides were dropped.
func (s *Session) Replace(snap *Snapshot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return s.install(snap), nil
}

func (s *Session) install(snap *Snapshot) int {
	if s.snapshot == snap {
		return 0
	}
	dropped := 0
	if !s.retainOverrides {
		dropped = s.overrides.Len()
		s.overrides.Clear()
	} else {
		dropped = s.overrides.retainWhere(func(k OverrideKey) bool {
			return intersects(snap, k)
		})
	}
	s.snapshot = snap
	if dropped > 0 {
		s.logger.Info("overrides dropped after re-analysis", "dropped", dropped, "kept", s.overrides.Len())
	}
	return dropped
}

// Snapshot returns the current snapshot, or nil before the first analysis.
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Pair looks up a pair by its (A, B) ids.
func (s *Session) Pair(idA, idB string) (PairResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair(idA, idB)
}

func (s *Session) pair(idA, idB string) (PairResult, error) {
	if s.snapshot == nil {
		return PairResult{}, apperrors.ErrSnapshotMissing
	}
	p, ok := s.snapshot.Find(idA, idB)
	if !ok {
		return PairResult{}, fmt.Errorf("pair %s/%s: %w", idA, idB, apperrors.ErrPairNotFound)
	}
	return p, nil
}

// Toggle flips which side keeps query in pair (idA, idB) and returns the new
// effective side. The query must be a duplicate of that pair in the current
// snapshot; otherwise ErrUnknownOverrideTarget is returned and nothing is
// stored.
func (s *Session) Toggle(idA, idB, query string) (Side, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	item, err := s.target(idA, idB, query)
	if err != nil {
		return "", err
	}
	return s.overrides.Toggle(OverrideKey{IDA: idA, IDB: idB, Query: query}, item.DefaultStaysIn), nil
}

// SetOverride pins query to side in pair (idA, idB).
func (s *Session) SetOverride(idA, idB, query string, side Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.target(idA, idB, query); err != nil {
		return err
	}
	return s.overrides.Set(OverrideKey{IDA: idA, IDB: idB, Query: query}, side)
}

// ResetOverride returns query in pair (idA, idB) to its computed decision.
func (s *Session) ResetOverride(idA, idB, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.target(idA, idB, query); err != nil {
		return err
	}
	s.overrides.Delete(OverrideKey{IDA: idA, IDB: idB, Query: query})
	return nil
}

// ClearOverrides drops every override of the session.
func (s *Session) ClearOverrides() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides.Clear()
}

// Overrides returns the overridden keys with their sides.
func (s *Session) Overrides() map[OverrideKey]Side {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[OverrideKey]Side, s.overrides.Len())
	for _, k := range s.overrides.Keys() {
		side, _ := s.overrides.Lookup(k)
		out[k] = side
	}
	return out
}

// Report builds the override-aware removal report for pair (idA, idB).
func (s *Session) Report(idA, idB string) (RemovalReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.pair(idA, idB)
	if err != nil {
		return RemovalReport{}, err
	}
	return Report(p, s.overrides), nil
}

// Items resolves every duplicate of pair (idA, idB) to its current state.
func (s *Session) Items(idA, idB string) ([]ItemView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.pair(idA, idB)
	if err != nil {
		return nil, err
	}
	return ItemViews(p, s.overrides), nil
}

// Close ends the session and releases its state. Later Analyze, Replace and
// override calls fail with ErrSessionNotFound.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.snapshot = nil
	s.overrides.Clear()
	s.analyzer.Forget()
}

// checkOpen fails once Close has run. Callers hold s.mu.
func (s *Session) checkOpen() error {
	if s.closed {
		return fmt.Errorf("session %s is closed: %w", s.id, apperrors.ErrSessionNotFound)
	}
	return nil
}

func (s *Session) target(idA, idB, query string) (IntersectionItem, error) {
	if s.snapshot == nil {
		return IntersectionItem{}, fmt.Errorf("override %s/%s %q: %w", idA, idB, query, apperrors.ErrUnknownOverrideTarget)
	}
	p, ok := s.snapshot.Find(idA, idB)
	if !ok {
		return IntersectionItem{}, fmt.Errorf("override %s/%s %q: %w", idA, idB, query, apperrors.ErrUnknownOverrideTarget)
	}
	for _, item := range p.Intersection {
		if item.Query == query {
			return item, nil
		}
	}
	return IntersectionItem{}, fmt.Errorf("override %s/%s %q: %w", idA, idB, query, apperrors.ErrUnknownOverrideTarget)
}

func intersects(snap *Snapshot, k OverrideKey) bool {
	p, ok := snap.Find(k.IDA, k.IDB)
	if !ok {
		return false
	}
	for _, item := range p.Intersection {
		if item.Query == k.Query {
			return true
		}
	}
	return false
}
