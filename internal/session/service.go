package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/archive"
	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/events"
	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/loader"
	apperrors "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/tracing"
)

// ClusterLoader loads every subcluster of the given clusters.
type ClusterLoader interface {
	LoadClusters(ctx context.Context, clusterIDs []string) ([]dedup.QuerySet, error)
}

// SnapshotCache shares snapshots between sessions by input fingerprint.
type SnapshotCache interface {
	GetOrCompute(ctx context.Context, fingerprint string, computeFn func() (*dedup.Snapshot, error)) (*dedup.Snapshot, bool, error)
}

// Archive records snapshots after they are installed.
type Archive interface {
	Save(ctx context.Context, sessionID string, snap *dedup.Snapshot) (int64, error)
	List(ctx context.Context, limit int) ([]archive.Entry, error)
}

// Deps are the optional collaborators of a Service. Nil members disable the
// feature they provide.
type Deps struct {
	Loader       ClusterLoader
	Cache        SnapshotCache
	Archive      Archive
	Emitter      *events.Emitter
	Metrics      *metrics.Metrics
	MaxQuerySets int
}

type Service struct {
	registry *Registry
	deps     Deps
	logger   *slog.Logger
}

func NewService(registry *Registry, deps Deps) *Service {
	return &Service{
		registry: registry,
		deps:     deps,
		logger:   slog.Default().With("component", "session-service"),
	}
}

func (s *Service) Create() *dedup.Session {
	return s.registry.Create()
}

func (s *Service) Delete(id string) error {
	return s.registry.Delete(id)
}

func (s *Service) Get(id string) (*dedup.Session, error) {
	return s.registry.Get(id)
}

// AnalyzeRequest names the input of an analysis: either inline query sets or
// the ids of clusters to load. Inline sets win when both are given.
type AnalyzeRequest struct {
	QuerySets  []dedup.QuerySet `json:"query_sets,omitempty"`
	ClusterIDs []string         `json:"cluster_ids,omitempty"`
}

type AnalyzeResult struct {
	Snapshot         *dedup.Snapshot `json:"snapshot"`
	CacheHit         bool            `json:"cache_hit"`
	DroppedOverrides int             `json:"dropped_overrides"`
	ArchiveID        int64           `json:"archive_id,omitempty"`
}

// Analyze runs the all-pairs analysis for session id and installs the result.
func (s *Service) Analyze(ctx context.Context, id string, req AnalyzeRequest) (*AnalyzeResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "session-service", "session_id", id)
	ctx, span := tracing.Start(ctx, "analyze")
	span.SetAttr("session_id", id)
	defer span.End()

	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	result, err := s.analyze(ctx, sess, req)
	if err != nil {
		s.observeAnalysis("error", start, nil)
		log.Warn("analysis failed", "error", err)
		return nil, err
	}

	outcome := "computed"
	if result.CacheHit {
		outcome = "cached"
	}
	s.observeAnalysis(outcome, start, result.Snapshot)
	span.SetAttr("pairs", len(result.Snapshot.Pairs))
	span.SetAttr("cache_hit", result.CacheHit)

	if s.deps.Archive != nil {
		_, archiveSpan := tracing.Start(ctx, "archive")
		archiveID, err := s.deps.Archive.Save(ctx, id, result.Snapshot)
		archiveSpan.End()
		if err != nil {
			log.Error("archiving snapshot failed", "error", err)
		}
		result.ArchiveID = archiveID
	}

	s.deps.Emitter.AnalysisCompleted(events.AnalysisCompleted{
		SessionID:   id,
		Fingerprint: result.Snapshot.Fingerprint,
		SetCount:    result.Snapshot.SetCount,
		PairCount:   len(result.Snapshot.Pairs),
		Duplicates:  result.Snapshot.TotalDuplicates(),
		CacheHit:    result.CacheHit,
		LatencyMs:   time.Since(start).Milliseconds(),
		Timestamp:   time.Now().UTC(),
	})

	log.Info("analysis completed",
		"sets", result.Snapshot.SetCount,
		"pairs", len(result.Snapshot.Pairs),
		"duplicates", result.Snapshot.TotalDuplicates(),
		"cache_hit", result.CacheHit,
		"dropped_overrides", result.DroppedOverrides,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (s *Service) analyze(ctx context.Context, sess *dedup.Session, req AnalyzeRequest) (*AnalyzeResult, error) {
	_, loadSpan := tracing.Start(ctx, "resolve_sets")
	sets, err := s.resolveSets(ctx, req)
	loadSpan.SetAttr("sets", len(sets))
	loadSpan.End()
	if err != nil {
		return nil, err
	}

	_, computeSpan := tracing.Start(ctx, "compute")
	defer computeSpan.End()

	if s.deps.Cache == nil {
		snap, dropped, err := sess.Analyze(sets)
		if err != nil {
			return nil, err
		}
		return &AnalyzeResult{Snapshot: snap, DroppedOverrides: dropped}, nil
	}

	snap, hit, err := s.deps.Cache.GetOrCompute(ctx, dedup.Fingerprint(sets), func() (*dedup.Snapshot, error) {
		return dedup.AnalyzeAll(sets)
	})
	if err != nil {
		return nil, err
	}
	dropped, err := sess.Replace(snap)
	if err != nil {
		return nil, err
	}
	return &AnalyzeResult{Snapshot: snap, CacheHit: hit, DroppedOverrides: dropped}, nil
}

func (s *Service) resolveSets(ctx context.Context, req AnalyzeRequest) ([]dedup.QuerySet, error) {
	switch {
	case req.QuerySets != nil:
		if s.deps.MaxQuerySets > 0 && len(req.QuerySets) > s.deps.MaxQuerySets {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400,
				"%d query sets exceeds the limit of %d", len(req.QuerySets), s.deps.MaxQuerySets)
		}
		return loader.Normalize(req.QuerySets)
	case len(req.ClusterIDs) > 0:
		if s.deps.Loader == nil {
			return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "loading by cluster id is not configured")
		}
		sets, err := s.deps.Loader.LoadClusters(ctx, req.ClusterIDs)
		if err != nil {
			return nil, fmt.Errorf("loading clusters: %w", err)
		}
		return sets, nil
	default:
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "either query_sets or cluster_ids is required")
	}
}

func (s *Service) observeAnalysis(outcome string, start time.Time, snap *dedup.Snapshot) {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	m.AnalysisDuration.Observe(time.Since(start).Seconds())
	if snap != nil {
		m.SnapshotPairs.Observe(float64(len(snap.Pairs)))
		m.DuplicatesFound.Observe(float64(snap.TotalDuplicates()))
	}
}

// PairQuery selects and orders the pairs returned by Pairs.
type PairQuery struct {
	Filter             dedup.PairFilter
	SortByIntersection bool
}

// Pairs lists the pairs of the session's current snapshot.
func (s *Service) Pairs(id string, q PairQuery) ([]dedup.PairResult, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	snap := sess.Snapshot()
	if snap == nil {
		return nil, apperrors.ErrSnapshotMissing
	}
	pairs := dedup.FilterPairs(snap.Pairs, q.Filter)
	if q.SortByIntersection {
		pairs = dedup.SortByIntersection(pairs)
	}
	return pairs, nil
}

// PairDetail is a pair together with its override-aware report.
type PairDetail struct {
	Pair   dedup.PairResult    `json:"pair"`
	Report dedup.RemovalReport `json:"report"`
	Items  []dedup.ItemView    `json:"items"`
}

func (s *Service) Pair(id, idA, idB string) (*PairDetail, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	pair, err := sess.Pair(idA, idB)
	if err != nil {
		return nil, err
	}
	report, err := sess.Report(idA, idB)
	if err != nil {
		return nil, err
	}
	items, err := sess.Items(idA, idB)
	if err != nil {
		return nil, err
	}
	return &PairDetail{Pair: pair, Report: report, Items: items}, nil
}

// Toggle flips the staying side of query in pair (idA, idB).
func (s *Service) Toggle(ctx context.Context, id, idA, idB, query string) (dedup.Side, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return "", err
	}
	side, err := sess.Toggle(idA, idB, query)
	if err != nil {
		return "", err
	}
	s.overrideChanged(ctx, id, idA, idB, query, "toggle", side)
	return side, nil
}

// SetOverride pins query in pair (idA, idB) to side.
func (s *Service) SetOverride(ctx context.Context, id, idA, idB, query string, side dedup.Side) error {
	sess, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	if err := sess.SetOverride(idA, idB, query, side); err != nil {
		return err
	}
	s.overrideChanged(ctx, id, idA, idB, query, "set", side)
	return nil
}

// ResetOverride restores the computed decision for query in pair (idA, idB).
func (s *Service) ResetOverride(ctx context.Context, id, idA, idB, query string) error {
	sess, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	if err := sess.ResetOverride(idA, idB, query); err != nil {
		return err
	}
	s.overrideChanged(ctx, id, idA, idB, query, "reset", "")
	return nil
}

// ClearOverrides drops every override of the session.
func (s *Service) ClearOverrides(ctx context.Context, id string) error {
	sess, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	sess.ClearOverrides()
	s.overrideChanged(ctx, id, "", "", "", "clear", "")
	return nil
}

func (s *Service) overrideChanged(ctx context.Context, id, idA, idB, query, action string, side dedup.Side) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.OverrideChangesTotal.WithLabelValues(action).Inc()
	}
	s.deps.Emitter.OverrideToggled(events.OverrideToggled{
		SessionID: id,
		IDA:       idA,
		IDB:       idB,
		Query:     query,
		Action:    action,
		StaysIn:   side,
		Timestamp: time.Now().UTC(),
	})
	logger.FromContext(ctx).Debug("override changed",
		"session_id", id, "id_a", idA, "id_b", idB, "query", query, "action", action, "stays_in", side)
}

// Export returns the queries of list for pair (idA, idB), one per line.
func (s *Service) Export(id, idA, idB string, list dedup.ExportList) (string, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return "", err
	}
	report, err := sess.Report(idA, idB)
	if err != nil {
		return "", err
	}
	return dedup.ExportLines(report.Queries(list)), nil
}

// Snapshots lists archived snapshots, newest first.
func (s *Service) Snapshots(ctx context.Context, limit int) ([]archive.Entry, error) {
	if s.deps.Archive == nil {
		return nil, apperrors.New(apperrors.ErrInternal, 501, "snapshot archive is disabled")
	}
	return s.deps.Archive.List(ctx, limit)
}
