package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/session"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analyzeBody = `{"query_sets":[
	{"id":"paris","name":"Paris tours","cluster_name":"France","entries":[
		{"text":"tour paris","count":100},
		{"text":"louvre","count":5},
		{"text":"hotel rome","count":50}]},
	{"id":"lyon","name":"Lyon food","cluster_name":"France","entries":[
		{"text":"tour paris","count":80},
		{"text":"louvre","count":9}]},
	{"id":"rome","name":"Rome","cluster_name":"Italy","entries":[
		{"text":"hotel rome","count":50}]}
]}`

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T, limiter *middleware.Limiter) *testServer {
	t.Helper()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	registry := session.NewRegistry(time.Hour, time.Hour, m)
	svc := session.NewService(registry, session.Deps{Metrics: m, MaxQuerySets: 10})
	router := NewRouter(NewHandler(svc), RouterConfig{
		Metrics:        m,
		Health:         health.NewChecker(),
		AnalyzeLimiter: limiter,
		AllowOrigins:   []string{"*"},
		RequestTimeout: 5 * time.Second,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, t: t}
}

func (s *testServer) do(method, path, body string) *http.Response {
	s.t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, s.URL+path, r)
	require.NoError(s.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) newSession() string {
	resp := s.do(http.MethodPost, "/api/v1/sessions", "")
	require.Equal(s.t, http.StatusCreated, resp.StatusCode)
	return decode[sessionResponse](s.t, resp).SessionID
}

func (s *testServer) analyzed() string {
	id := s.newSession()
	resp := s.do(http.MethodPost, "/api/v1/sessions/"+id+"/analyze", analyzeBody)
	require.Equal(s.t, http.StatusOK, resp.StatusCode)
	return id
}

func TestAnalyzeAndListPairs(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.newSession()

	resp := srv.do(http.MethodPost, "/api/v1/sessions/"+id+"/analyze", analyzeBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
	res := decode[analyzeResponse](t, resp)
	assert.Equal(t, 3, res.SetCount)
	assert.Equal(t, 3, res.PairCount)
	assert.Equal(t, 3, res.Duplicates)
	assert.NotEmpty(t, res.Fingerprint)

	resp = srv.do(http.MethodGet, "/api/v1/sessions/"+id+"/pairs?sort=intersection&min=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pairs := decode[pairsResponse](t, resp)
	require.Equal(t, 2, pairs.Count)
	assert.Equal(t, "paris", pairs.Pairs[0].IDA)
	assert.Equal(t, "lyon", pairs.Pairs[0].IDB)
	assert.Equal(t, 2, pairs.Pairs[0].IntersectionCount)

	resp = srv.do(http.MethodGet, "/api/v1/sessions/"+id+"/pairs?q=italy", "")
	pairs = decode[pairsResponse](t, resp)
	require.Equal(t, 2, pairs.Count)

	resp = srv.do(http.MethodGet, "/api/v1/sessions/"+id+"/pairs?sort=size", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = srv.do(http.MethodGet, "/api/v1/sessions/"+id+"/pairs?min=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPairsBeforeAnalysis(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.newSession()

	resp := srv.do(http.MethodGet, "/api/v1/sessions/"+id+"/pairs", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestToggleFlowAndExport(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.analyzed()
	pair := "/api/v1/sessions/" + id + "/pairs/paris/lyon"

	resp := srv.do(http.MethodGet, pair, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[session.PairDetail](t, resp)
	assert.Equal(t, 1, detail.Report.RemoveFromA)
	assert.Equal(t, 1, detail.Report.RemoveFromB)
	assert.Equal(t, []string{"tour paris"}, detail.Report.QueriesToRemoveFromB)

	resp = srv.do(http.MethodPost, pair+"/toggle", `{"query":"tour paris"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, dedup.SideB, decode[toggleResponse](t, resp).StaysIn)

	resp = srv.do(http.MethodGet, pair+"/export?list=remove_a", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "tour paris\nlouvre", string(body))

	resp = srv.do(http.MethodGet, "/api/v1/sessions/"+id+"/overrides", "")
	overrides := decode[map[string][]overrideEntry](t, resp)
	require.Len(t, overrides["overrides"], 1)
	assert.Equal(t, overrideEntry{IDA: "paris", IDB: "lyon", Query: "tour paris", StaysIn: dedup.SideB}, overrides["overrides"][0])

	resp = srv.do(http.MethodDelete, pair+"/overrides", `{"query":"tour paris"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = srv.do(http.MethodGet, pair+"/export?list=remove_b", "")
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "tour paris", string(body))

	resp = srv.do(http.MethodGet, pair+"/export?list=bogus", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetOverrideAndClear(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.analyzed()
	pair := "/api/v1/sessions/" + id + "/pairs/paris/lyon"

	resp := srv.do(http.MethodPut, pair+"/overrides", `{"query":"louvre","side":"a"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(http.MethodPut, pair+"/overrides", `{"query":"louvre","side":"C"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(http.MethodDelete, "/api/v1/sessions/"+id+"/overrides", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = srv.do(http.MethodGet, pair, "")
	detail := decode[session.PairDetail](t, resp)
	assert.Zero(t, detail.Report.Overridden)
}

func TestOverrideErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.analyzed()

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"query not shared", "/pairs/paris/lyon/toggle", `{"query":"hotel rome"}`, http.StatusConflict},
		{"reversed pair", "/pairs/lyon/paris/toggle", `{"query":"tour paris"}`, http.StatusConflict},
		{"missing query", "/pairs/paris/lyon/toggle", `{}`, http.StatusBadRequest},
		{"unknown field", "/pairs/paris/lyon/toggle", `{"query":"x","extra":1}`, http.StatusBadRequest},
		{"malformed", "/pairs/paris/lyon/toggle", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := srv.do(http.MethodPost, "/api/v1/sessions/"+id+tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	resp := srv.do(http.MethodGet, "/api/v1/sessions/"+id+"/pairs/paris/nowhere", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalyzeErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.newSession()

	resp := srv.do(http.MethodPost, "/api/v1/sessions/"+id+"/analyze", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(http.MethodPost, "/api/v1/sessions/"+id+"/analyze",
		`{"query_sets":[{"id":"a","entries":[{"text":"x","count":-4}]}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(http.MethodPost, "/api/v1/sessions/"+id+"/analyze", `{"cluster_ids":["france"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(http.MethodPost, "/api/v1/sessions/missing/analyze", analyzeBody)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.analyzed()

	resp := srv.do(http.MethodDelete, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = srv.do(http.MethodGet, "/api/v1/sessions/"+id+"/pairs", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = srv.do(http.MethodDelete, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalyzeRateLimit(t *testing.T) {
	srv := newTestServer(t, middleware.NewLimiter(1, time.Minute))
	id := srv.newSession()

	resp := srv.do(http.MethodPost, "/api/v1/sessions/"+id+"/analyze", analyzeBody)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = srv.do(http.MethodPost, "/api/v1/sessions/"+id+"/analyze", analyzeBody)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp = srv.do(http.MethodGet, "/api/v1/sessions/"+id+"/pairs", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "only analyze is limited")
}

func TestSnapshotsDisabled(t *testing.T) {
	srv := newTestServer(t, nil)
	resp := srv.do(http.MethodGet, "/api/v1/snapshots", "")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	resp = srv.do(http.MethodGet, "/api/v1/snapshots?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/health/live", "").StatusCode)
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/health/ready", "").StatusCode)
}
