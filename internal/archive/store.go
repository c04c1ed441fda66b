// Package archive keeps a history of dedup snapshots in PostgreSQL so past
// analyses can be listed and reloaded after the session that produced them
// has expired.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/postgres"
)

// Entry describes one archived snapshot without its pairs.
type Entry struct {
	ID          int64     `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	SessionID   string    `json:"session_id"`
	SetCount    int       `json:"set_count"`
	PairCount   int       `json:"pair_count"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Store persists snapshots in the analysis_snapshots table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "snapshot-archive"),
	}
}

// Save archives snap on behalf of sessionID and returns the row id.
func (s *Store) Save(ctx context.Context, sessionID string, snap *dedup.Snapshot) (int64, error) {
	if snap == nil {
		return 0, errors.New("archiving nil snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshaling snapshot: %w", err)
	}

	var id int64
	err = s.db.DB.QueryRowContext(ctx,
		`INSERT INTO analysis_snapshots (fingerprint, session_id, data, captured_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		snap.Fingerprint, sessionID, data, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("saving snapshot: %w", err)
	}

	s.logger.Info("snapshot archived",
		"id", id,
		"session_id", sessionID,
		"pairs", len(snap.Pairs),
		"duplicates", snap.TotalDuplicates(),
	)
	return id, nil
}

// Latest loads the most recently archived snapshot. It returns nil, nil when
// the archive is empty.
func (s *Store) Latest(ctx context.Context) (*dedup.Snapshot, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM analysis_snapshots ORDER BY captured_at DESC, id DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	var snap dedup.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, fingerprint, session_id,
		        COALESCE((data->>'set_count')::int, 0),
		        COALESCE(jsonb_array_length(data->'pairs'), 0),
		        captured_at
		 FROM analysis_snapshots
		 ORDER BY captured_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Fingerprint, &e.SessionID, &e.SetCount, &e.PairCount, &e.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
