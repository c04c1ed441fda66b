// Package events carries dedup activity to and from Kafka. Completed
// analyses and override changes are published asynchronously; upstream
// subcluster updates are consumed to invalidate cached snapshots.
package events

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
)

type EventType string

const (
	EventAnalysisCompleted EventType = "analysis_completed"
	EventOverrideToggled   EventType = "override_toggled"
	EventSubclusterUpdated EventType = "subcluster_updated"
)

// AnalysisCompleted is published after a session installs a new snapshot.
type AnalysisCompleted struct {
	Type        EventType `json:"type"`
	SessionID   string    `json:"session_id"`
	Fingerprint string    `json:"fingerprint"`
	SetCount    int       `json:"set_count"`
	PairCount   int       `json:"pair_count"`
	Duplicates  int       `json:"duplicates"`
	CacheHit    bool      `json:"cache_hit"`
	LatencyMs   int64     `json:"latency_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// OverrideToggled is published whenever an override is set, toggled or reset.
type OverrideToggled struct {
	Type      EventType  `json:"type"`
	SessionID string     `json:"session_id"`
	IDA       string     `json:"id_a"`
	IDB       string     `json:"id_b"`
	Query     string     `json:"query"`
	Action    string     `json:"action"`
	StaysIn   dedup.Side `json:"stays_in,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// SubclusterUpdated is emitted upstream when a subcluster's queries change.
type SubclusterUpdated struct {
	Type         EventType `json:"type"`
	SubclusterID string    `json:"subcluster_id"`
	ClusterID    string    `json:"cluster_id"`
	Timestamp    time.Time `json:"timestamp"`
}
