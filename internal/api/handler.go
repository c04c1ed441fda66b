// Package api exposes analysis sessions over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/session"
	apperrors "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/logger"
)

const maxBodyBytes = 32 << 20

type Handler struct {
	sessions *session.Service
	logger   *slog.Logger
}

func NewHandler(sessions *session.Service) *Handler {
	return &Handler{
		sessions: sessions,
		logger:   slog.Default().With("component", "api-handler"),
	}
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	h.writeJSON(w, http.StatusCreated, sessionResponse{SessionID: s.ID(), CreatedAt: s.CreatedAt()})
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type analyzeResponse struct {
	SessionID        string    `json:"session_id"`
	Fingerprint      string    `json:"fingerprint"`
	SetCount         int       `json:"set_count"`
	PairCount        int       `json:"pair_count"`
	Duplicates       int       `json:"duplicates"`
	CacheHit         bool      `json:"cache_hit"`
	DroppedOverrides int       `json:"dropped_overrides"`
	ArchiveID        int64     `json:"archive_id,omitempty"`
	ComputedAt       time.Time `json:"computed_at"`
}

// Analyze runs the all-pairs analysis for a session. The body is either
// {"query_sets": [...]} or {"cluster_ids": [...]}.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req session.AnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.sessions.Analyze(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	snap := res.Snapshot
	h.writeJSON(w, http.StatusOK, analyzeResponse{
		SessionID:        id,
		Fingerprint:      snap.Fingerprint,
		SetCount:         snap.SetCount,
		PairCount:        len(snap.Pairs),
		Duplicates:       snap.TotalDuplicates(),
		CacheHit:         res.CacheHit,
		DroppedOverrides: res.DroppedOverrides,
		ArchiveID:        res.ArchiveID,
		ComputedAt:       snap.ComputedAt,
	})
}

type pairsResponse struct {
	Pairs []dedup.PairResult `json:"pairs"`
	Count int                `json:"count"`
}

// ListPairs supports ?sort=intersection, ?min=N and ?q=text.
func (h *Handler) ListPairs(w http.ResponseWriter, r *http.Request) {
	q := session.PairQuery{
		Filter: dedup.PairFilter{Search: r.URL.Query().Get("q")},
	}
	switch sort := r.URL.Query().Get("sort"); sort {
	case "", "input":
	case "intersection":
		q.SortByIntersection = true
	default:
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown sort %q", sort))
		return
	}
	if v := r.URL.Query().Get("min"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "min must be a non-negative integer"))
			return
		}
		q.Filter.MinIntersection = n
	}

	pairs, err := h.sessions.Pairs(r.PathValue("id"), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pairsResponse{Pairs: pairs, Count: len(pairs)})
}

func (h *Handler) GetPair(w http.ResponseWriter, r *http.Request) {
	detail, err := h.sessions.Pair(r.PathValue("id"), r.PathValue("idA"), r.PathValue("idB"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

type overrideRequest struct {
	Query string `json:"query"`
	Side  string `json:"side,omitempty"`
}

type toggleResponse struct {
	Query   string     `json:"query"`
	StaysIn dedup.Side `json:"stays_in"`
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	req, err := h.overrideRequest(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	side, err := h.sessions.Toggle(r.Context(), r.PathValue("id"), r.PathValue("idA"), r.PathValue("idB"), req.Query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toggleResponse{Query: req.Query, StaysIn: side})
}

func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	req, err := h.overrideRequest(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	side, err := dedup.ParseSide(req.Side)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	err = h.sessions.SetOverride(r.Context(), r.PathValue("id"), r.PathValue("idA"), r.PathValue("idB"), req.Query, side)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toggleResponse{Query: req.Query, StaysIn: side})
}

func (h *Handler) ResetOverride(w http.ResponseWriter, r *http.Request) {
	req, err := h.overrideRequest(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.sessions.ResetOverride(r.Context(), r.PathValue("id"), r.PathValue("idA"), r.PathValue("idB"), req.Query); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearOverrides(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.ClearOverrides(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type overrideEntry struct {
	IDA     string     `json:"id_a"`
	IDB     string     `json:"id_b"`
	Query   string     `json:"query"`
	StaysIn dedup.Side `json:"stays_in"`
}

func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	overrides := sess.Overrides()
	out := make([]overrideEntry, 0, len(overrides))
	for k, side := range overrides {
		out = append(out, overrideEntry{IDA: k.IDA, IDB: k.IDB, Query: k.Query, StaysIn: side})
	}
	sortOverrides(out)
	h.writeJSON(w, http.StatusOK, map[string]any{"overrides": out})
}

// Export writes one query per line, ready to paste into a removal form.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	listName := r.URL.Query().Get("list")
	if listName == "" {
		listName = string(dedup.ExportAll)
	}
	list, err := dedup.ParseExportList(listName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := h.sessions.Export(r.PathValue("id"), r.PathValue("idA"), r.PathValue("idB"), list)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}

func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(n, 100)
	}
	entries, err := h.sessions.Snapshots(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"snapshots": entries})
}

func (h *Handler) overrideRequest(w http.ResponseWriter, r *http.Request) (overrideRequest, error) {
	var req overrideRequest
	if err := decodeBody(w, r, &req); err != nil {
		return req, err
	}
	if strings.TrimSpace(req.Query) == "" {
		return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query is required")
	}
	return req, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.New(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge, "request body too large")
		}
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status code. Server-side failures are logged and
// answered with a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		message = http.StatusText(status)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}

func sortOverrides(entries []overrideEntry) {
	slices.SortFunc(entries, func(a, b overrideEntry) int {
		if c := strings.Compare(a.IDA, b.IDA); c != 0 {
			return c
		}
		if c := strings.Compare(a.IDB, b.IDB); c != 0 {
			return c
		}
		return strings.Compare(a.Query, b.Query)
	})
}
