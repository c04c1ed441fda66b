package dedup

import (
	"fmt"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/errors"
)

// OverrideKey identifies one duplicate query within one pair.
type OverrideKey struct {
	IDA   string `json:"id_a"`
	IDB   string `json:"id_b"`
	Query string `json:"query"`
}

// OverrideLookup resolves the effective side of a duplicate.
type OverrideLookup interface {
	Get(key OverrideKey, fallback Side) Side
}

// OverrideStore holds manual stays-in decisions for one analysis session. It
// never touches the PairResults it overrides.
type OverrideStore struct {
	sides map[OverrideKey]Side
}

// NewOverrideStore returns an empty store.
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{sides: make(map[OverrideKey]Side)}
}

// Set stores or replaces the override for key.
func (s *OverrideStore) Set(key OverrideKey, side Side) error {
	if !side.Valid() {
		return fmt.Errorf("override for %q: side %q: %w", key.Query, side, apperrors.ErrInvalidSide)
	}
	s.sides[key] = side
	return nil
}

// Get returns the stored override for key, or fallback when there is none.
func (s *OverrideStore) Get(key OverrideKey, fallback Side) Side {
	if s == nil {
		return fallback
	}
	if side, ok := s.sides[key]; ok {
		return side
	}
	return fallback
}

// Lookup reports the stored override, if any.
func (s *OverrideStore) Lookup(key OverrideKey) (Side, bool) {
	side, ok := s.sides[key]
	return side, ok
}

// Toggle flips the effective side of key and returns the new side. Flipping
// back onto fallback removes the entry, so two toggles leave the store as it
// was.
func (s *OverrideStore) Toggle(key OverrideKey, fallback Side) Side {
	next := s.Get(key, fallback).Opposite()
	if next == fallback {
		delete(s.sides, key)
	} else {
		s.sides[key] = next
	}
	return next
}

// Delete resets key to its default decision.
func (s *OverrideStore) Delete(key OverrideKey) {
	delete(s.sides, key)
}

// Clear removes every override.
func (s *OverrideStore) Clear() {
	s.sides = make(map[OverrideKey]Side)
}

// Len returns the number of stored overrides.
func (s *OverrideStore) Len() int {
	return len(s.sides)
}

// Keys returns all overridden keys sorted by pair then query.
func (s *OverrideStore) Keys() []OverrideKey {
	keys := make([]OverrideKey, 0, len(s.sides))
	for k := range s.sides {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].IDA != keys[j].IDA {
			return keys[i].IDA < keys[j].IDA
		}
		if keys[i].IDB != keys[j].IDB {
			return keys[i].IDB < keys[j].IDB
		}
		return keys[i].Query < keys[j].Query
	})
	return keys
}

// retainWhere drops every override for which keep returns false and reports
// how many were dropped.
func (s *OverrideStore) retainWhere(keep func(OverrideKey) bool) int {
	dropped := 0
	for k := range s.sides {
		if !keep(k) {
			delete(s.sides, k)
			dropped++
		}
	}
	return dropped
}
