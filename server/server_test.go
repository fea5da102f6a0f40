package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TFMV/schelling/engine"
	"github.com/TFMV/schelling/ingest"
	"github.com/TFMV/schelling/lattice"
	"github.com/TFMV/schelling/logging"
	"github.com/TFMV/schelling/metrics"
	"github.com/TFMV/schelling/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	snap, err := ingest.ParseASCII("+...\n....\n..+.\n....\n")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	require.NoError(t, err)

	eng, err := engine.NewFromSnapshot(snap, 0.25, lattice.VonNeumann, engine.NewRand(1), engine.WithRecorder(collector))
	require.NoError(t, err)
	return New(eng, Config{Collector: collector, Gatherer: reg}), reg
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, s.engine.ID(), body["run_id"])
}

func TestReadEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/params")
	require.Equal(t, http.StatusOK, rec.Code)
	var params models.Params
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &params))
	assert.Equal(t, 4, params.Size)
	assert.Equal(t, 0.25, params.Threshold)

	rec = do(t, h, http.MethodGet, "/api/state")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, models.Positive, snap.At(0, 0))

	rec = do(t, h, http.MethodGet, "/api/counts")
	var counts models.Counts
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, models.Counts{Positive: 2, Empty: 14}, counts)

	rec = do(t, h, http.MethodGet, "/api/unsatisfied")
	var unsatisfied struct {
		Count int           `json:"count"`
		Nodes []models.Node `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unsatisfied))
	assert.Equal(t, 2, unsatisfied.Count)
	assert.Len(t, unsatisfied.Nodes, 2)

	rec = do(t, h, http.MethodGet, "/api/report")
	var report models.Metrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Populated)
	assert.Equal(t, 8, report.Surface)
}

func TestStep(t *testing.T) {
	s, reg := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/step?policy=seek&budget=1000")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Step   engine.StepResult `json:"step"`
		Report models.Metrics    `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, engine.PolicySeek, body.Step.Policy)
	assert.GreaterOrEqual(t, body.Step.Moves, 1)
	assert.True(t, body.Step.Settled)
	assert.Zero(t, body.Report.Unsatisfied)

	rec = do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `schelling_moves_total{policy="seek"} `)
	assert.Contains(t, rec.Body.String(), `schelling_settled_steps_total{policy="seek"} 1`)
	assert.Contains(t, rec.Body.String(), "schelling_unsatisfied_agents 0")

	_, err := reg.Gather()
	assert.NoError(t, err)
}

func TestStep_BadRequest(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/step?policy=annealing").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/step?policy=seek&budget=x").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/converge?max=-1").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/step").Code)
}

func TestConverge(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodPost, "/api/converge?max=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Attempts int            `json:"attempts"`
		Report   models.Metrics `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.GreaterOrEqual(t, body.Attempts, 1)
	assert.Less(t, body.Attempts, engine.ConvergenceBudget)
	assert.Zero(t, body.Report.Unsatisfied)
}

func TestRender(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/render")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Unsatisfied nodes 2 - Surface 8")

	rec = do(t, h, http.MethodGet, "/render?format=ascii")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# Unsatisfied nodes 2"))
	assert.Contains(t, rec.Body.String(), "+...\n")

	rec = do(t, h, http.MethodGet, "/render?format=png&cell=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/render?format=dot").Code)
}

func TestMetricsRouteOptional(t *testing.T) {
	eng, err := engine.New(models.NewParams(5, 0.3, 0.3, 0.5, "moore", 1), nil)
	require.NoError(t, err)
	s := New(eng, Config{})
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/metrics").Code)
}

func TestRender_FormatIsCaseInsensitive(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/render?format=SVG")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))

	rec = do(t, h, http.MethodGet, "/render?format=Json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestNodes(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/nodes?state=positive")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		State string        `json:"state"`
		Count int           `json:"count"`
		Nodes []models.Node `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "positive", body.State)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, []models.Node{{Row: 0, Col: 0}, {Row: 2, Col: 2}}, body.Nodes)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/nodes?state=neutral").Code)
}

// brokenWriter accepts headers but fails every body write
type brokenWriter struct {
	header http.Header
	status int
}

func (w *brokenWriter) Header() http.Header { return w.header }

func (w *brokenWriter) WriteHeader(status int) { w.status = status }

func (w *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestWriteErrorsAreLogged(t *testing.T) {
	var logs bytes.Buffer
	eng, err := engine.New(models.NewParams(4, 0.3, 0.3, 0.5, "moore", 1), nil)
	require.NoError(t, err)
	h := New(eng, Config{Logger: logging.New("warn", &logs)}).Handler()

	h.ServeHTTP(&brokenWriter{header: http.Header{}}, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Contains(t, logs.String(), "failed to write JSON response")
	assert.Contains(t, logs.String(), "connection reset")

	logs.Reset()
	h.ServeHTTP(&brokenWriter{header: http.Header{}}, httptest.NewRequest(http.MethodGet, "/render?format=ascii", nil))
	assert.Contains(t, logs.String(), "failed to write render response")
}
