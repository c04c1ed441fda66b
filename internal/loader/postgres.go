package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	apperrors "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/resilience"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

const fetchConcurrency = 8

// PostgresLoader reads subclusters and their ranked queries from Postgres.
type PostgresLoader struct {
	db      *sql.DB
	maxSets int
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

func NewPostgresLoader(db *sql.DB, maxSets int) *PostgresLoader {
	return &PostgresLoader{
		db:      db,
		maxSets: maxSets,
		retry: resilience.RetryConfig{
			MaxAttempts: 3,
			Retryable:   isTransient,
		},
		logger: slog.Default().With("component", "pg-loader"),
	}
}

// LoadClusters returns every subcluster belonging to clusterIDs, ordered by
// the position of its cluster in clusterIDs and then by subcluster position.
// Queries keep their stored rank order.
func (l *PostgresLoader) LoadClusters(ctx context.Context, clusterIDs []string) ([]dedup.QuerySet, error) {
	if len(clusterIDs) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "no cluster ids given")
	}

	var sets []dedup.QuerySet
	err := resilience.Retry(ctx, "load-subclusters", l.retry, func() error {
		var err error
		sets, err = l.listSubclusters(ctx, clusterIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := checkLimit(len(sets), l.maxSets); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i := range sets {
		i := i
		g.Go(func() error {
			return resilience.Retry(gctx, "load-queries", l.retry, func() error {
				entries, err := l.listQueries(gctx, sets[i].ID)
				if err != nil {
					return err
				}
				sets[i].Entries = entries
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.Info("loaded subclusters", "clusters", len(clusterIDs), "subclusters", len(sets))
	return Normalize(sets)
}

func (l *PostgresLoader) listSubclusters(ctx context.Context, clusterIDs []string) ([]dedup.QuerySet, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, name, cluster_name
		FROM subclusters
		WHERE cluster_id = ANY($1)
		ORDER BY array_position($1, cluster_id), position, id`,
		pq.Array(clusterIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("querying subclusters: %w", err)
	}
	defer rows.Close()

	var sets []dedup.QuerySet
	for rows.Next() {
		var s dedup.QuerySet
		if err := rows.Scan(&s.ID, &s.Name, &s.ClusterName); err != nil {
			return nil, fmt.Errorf("scanning subcluster: %w", err)
		}
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

func (l *PostgresLoader) listQueries(ctx context.Context, subclusterID string) ([]dedup.QueryEntry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT query, volume
		FROM subcluster_queries
		WHERE subcluster_id = $1
		ORDER BY position`,
		subclusterID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying queries of %s: %w", subclusterID, err)
	}
	defer rows.Close()

	entries := make([]dedup.QueryEntry, 0)
	for rows.Next() {
		var e dedup.QueryEntry
		if err := rows.Scan(&e.Text, &e.Count); err != nil {
			return nil, fmt.Errorf("scanning query of %s: %w", subclusterID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// isTransient reports whether err is worth retrying. Context errors and
// Postgres data or syntax errors are final.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return true
		default:
			return false
		}
	}
	return true
}
