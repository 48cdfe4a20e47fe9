package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/triage/pkg/archive"
	"github.com/zen-systems/triage/pkg/backend"
	"github.com/zen-systems/triage/pkg/router"
	"github.com/zen-systems/triage/pkg/schema"
)

func newTestServer(t *testing.T, opts ...router.Option) (*Server, *router.Router, http.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)
	r := router.New(append([]router.Option{router.WithLogger(log)}, opts...)...)
	s := NewServer(r, log)
	return s, r, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouteEndpoint(t *testing.T) {
	_, r, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/v1/route", gin.H{
		"id":   "req-42",
		"type": "classify",
		"text": "Server is down, customers can't access the app",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp schema.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "req-42", resp.RequestID)
	assert.Equal(t, schema.RequestClassifyPriority, resp.Type)
	require.NotNil(t, resp.Result.Classification)
	assert.Equal(t, schema.QuadrantDoFirst, resp.Result.Classification.Quadrant)
	assert.True(t, resp.Provenance.WasRuleBased)
	assert.EqualValues(t, 1, r.Stats().TotalRequests)
}

func TestRouteEndpointErrors(t *testing.T) {
	failing := backend.NewStatic("b", "m", backend.TierCloud, func(context.Context, *backend.Request) (*backend.Completion, error) {
		return nil, errors.New("down")
	})
	_, _, h := newTestServer(t, router.WithBackends(failing), router.WithMode(router.ModeLLMOnly))

	w := do(t, h, http.MethodPost, "/v1/route", gin.H{"text": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/v1/route", gin.H{"type": "translate", "text": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, http.MethodPost, "/v1/route", gin.H{"type": "CLASSIFY_PRIORITY", "text": "Water the plants"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "all backends exhausted")
}

func TestRouteEndpointHonorsOptions(t *testing.T) {
	var calls int
	b := backend.NewStatic("b", "m", backend.TierLocal, func(context.Context, *backend.Request) (*backend.Completion, error) {
		calls++
		return nil, errors.New("no")
	})
	_, _, h := newTestServer(t, router.WithBackends(b))

	w := do(t, h, http.MethodPost, "/v1/route", gin.H{
		"type":    "CLASSIFY_PRIORITY",
		"text":    "Water the plants",
		"options": gin.H{"use_escalation": false},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, calls)

	w = do(t, h, http.MethodPost, "/v1/route", gin.H{"type": "CLASSIFY_PRIORITY", "text": "Water the plants"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls)
}

func TestOverrideAndStatsEndpoints(t *testing.T) {
	_, r, h := newTestServer(t)
	for i := 0; i < 4; i++ {
		w := do(t, h, http.MethodPost, "/v1/route", gin.H{"type": "CLASSIFY_PRIORITY", "text": "Browse social media"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(t, h, http.MethodPost, "/v1/overrides", gin.H{
		"request_id":         "req-1",
		"original_quadrant":  "ELIMINATE",
		"corrected_quadrant": "q2",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/v1/overrides", gin.H{
		"request_id":         "req-2",
		"original_quadrant":  "ELIMINATE",
		"corrected_quadrant": "sideways",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Stats    router.Stats `json:"stats"`
		Accuracy float64      `json:"accuracy"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.EqualValues(t, 4, stats.Stats.TotalRequests)
	assert.EqualValues(t, 1, stats.Stats.OverrideCount)
	assert.InDelta(t, 0.75, stats.Accuracy, 1e-9)

	w = do(t, h, http.MethodGet, "/v1/overrides", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"corrected_quadrant":"SCHEDULE"`)

	w = do(t, h, http.MethodPost, "/v1/stats/reset", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, router.Stats{}, r.Stats())
	assert.Empty(t, r.OverrideHistory())
}

func TestModeEndpoints(t *testing.T) {
	_, r, h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/v1/mode", nil)
	assert.JSONEq(t, `{"mode":"hybrid"}`, w.Body.String())

	w = do(t, h, http.MethodPut, "/v1/mode", gin.H{"mode": "llm-preferred"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, router.ModeLLMPreferred, r.Mode())

	w = do(t, h, http.MethodPut, "/v1/mode", gin.H{"mode": "warp"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, router.ModeLLMPreferred, r.Mode())
}

func TestHealthListsBackends(t *testing.T) {
	down := backend.NewStatic("down", "m1", backend.TierOnDevice, nil)
	down.SetAvailable(false)
	up := backend.NewStatic("up", "m2", backend.TierCloud, nil)
	_, _, h := newTestServer(t, router.WithBackends(down, up))

	w := do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Backends []BackendStatus `json:"backends"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []BackendStatus{
		{ID: "down", Model: "m1", Tier: "on_device", Available: false},
		{ID: "up", Model: "m2", Tier: "cloud", Available: true},
	}, body.Backends)
}

func TestOverridesAreArchived(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)
	st, err := archive.NewStore(t.TempDir())
	require.NoError(t, err)
	at := time.Date(2026, time.October, 14, 9, 30, 0, 0, time.UTC)
	r := router.New(router.WithLogger(log), router.WithClock(func() time.Time { return at }))
	h := NewServer(r, log, WithArchive(st)).Handler()

	w := do(t, h, http.MethodPost, "/v1/overrides", gin.H{
		"request_id":         "req-9",
		"original_quadrant":  "DELEGATE",
		"corrected_quadrant": "DO_FIRST",
		"was_escalated":      true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/v1/overrides", gin.H{
		"request_id":         "",
		"original_quadrant":  "DELEGATE",
		"corrected_quadrant": "DO_FIRST",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	recs, err := st.Overrides()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "req-9", recs[0].RequestID)
	assert.Equal(t, schema.QuadrantDoFirst, recs[0].CorrectedQuadrant)
	assert.True(t, recs[0].WasEscalated)

	history := r.OverrideHistory()
	require.Len(t, history, 1)
	assert.True(t, recs[0].Timestamp.Equal(history[0].Timestamp))
	assert.True(t, recs[0].Timestamp.Equal(at))
}
