package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-mx/internal/model"
	"github.com/sells-group/contact-mx/internal/mx"
	"github.com/sells-group/contact-mx/internal/pipeline"
	"github.com/sells-group/contact-mx/internal/resilience"
)

// gateMX blocks lookups until released or cancelled.
type gateMX struct {
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func newGateMX() *gateMX {
	return &gateMX{release: make(chan struct{}), started: make(chan struct{})}
}

func (g *gateMX) LookupMX(ctx context.Context, _ string) ([]string, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return []string{"aspmx.l.google.com"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func openMX(records ...string) mx.Lookuper {
	return mx.LookuperFunc(func(context.Context, string) ([]string, error) {
		return records, nil
	})
}

func newTestServer(t *testing.T, l mx.Lookuper, opts ...Option) *Server {
	t.Helper()
	retry := resilience.DefaultRetryConfig()
	retry.Sleep = func(context.Context, time.Duration) error { return nil }
	c := mx.NewClassifier(mx.NewRetryingResolver(l, mx.WithRetryConfig(retry)))
	p, err := pipeline.New(c, pipeline.Options{Workers: 2})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewServer(ctx, p, opts...)
	t.Cleanup(func() {
		cancel()
		s.Wait()
	})
	return s
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func submitRun(t *testing.T, h http.Handler, body string) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/runs", "text/csv", body)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp["status"])
	require.NotEmpty(t, resp["id"])
	return resp["id"]
}

func getRun(t *testing.T, h http.Handler, id string) RunView {
	t.Helper()
	rr := do(t, h, http.MethodGet, "/v1/runs/"+id, "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var v RunView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func waitForState(t *testing.T, h http.Handler, id string, want RunState) RunView {
	t.Helper()
	var v RunView
	require.Eventually(t, func() bool {
		v = getRun(t, h, id)
		return v.State == want
	}, 2*time.Second, 5*time.Millisecond)
	return v
}

const contactsCSV = "email_1,email_1_full_name,website,notes\nA@X.com,Jane Doe,http://www.x.com/about,vip\n"

func TestHealth(t *testing.T) {
	s := newTestServer(t, openMX())
	rr := do(t, s.Handler(), http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRunLifecycle_CSVExport(t *testing.T) {
	s := newTestServer(t, openMX("aspmx.l.google.com"))
	h := s.Handler()

	id := submitRun(t, h, contactsCSV)
	v := waitForState(t, h, id, RunComplete)

	assert.True(t, v.Status.IsComplete)
	assert.InDelta(t, 100, v.Status.Progress, 0.001)
	assert.Equal(t, model.TaskComplete, v.Status.CurrentTask)
	assert.Equal(t, model.ScenarioMultiEmail, v.Scenario)
	assert.Equal(t, 1, v.Records)
	require.NotNil(t, v.Stats)
	assert.Equal(t, 1, v.Stats.UniqueDomains)
	assert.NotNil(t, v.FinishedAt)
	assert.Empty(t, v.Error)

	rr := do(t, h, http.MethodGet, "/v1/runs/"+id+"/export", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rr.Header().Get("Content-Disposition"), id+".csv")

	lines, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"email_1", "email_1_full_name", "website", "notes"}, lines[0][:4])
	row := map[string]string{}
	for i, col := range lines[0] {
		row[col] = lines[1][i]
	}
	assert.Equal(t, "a@x.com", row["email"])
	assert.Equal(t, "Jane Doe", row["fullName"])
	assert.Equal(t, "x.com", row["cleanedWebsite"])
	assert.Equal(t, "google", row["mxProvider"])
	assert.Equal(t, "vip", row["notes"])
}

func TestRunLifecycle_JSONExport(t *testing.T) {
	s := newTestServer(t, openMX("mail.protection.outlook.com"))
	h := s.Handler()

	id := submitRun(t, h, contactsCSV)
	waitForState(t, h, id, RunComplete)

	rr := do(t, h, http.MethodGet, "/v1/runs/"+id+"/export?format=json", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var records []model.ContactRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, model.ProviderOutlook, records[0].MXProvider)

	rr = do(t, h, http.MethodGet, "/v1/runs/"+id+"/export?format=xml", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExport_ConflictUntilComplete(t *testing.T) {
	gate := newGateMX()
	s := newTestServer(t, gate)
	h := s.Handler()

	id := submitRun(t, h, contactsCSV)
	<-gate.started

	rr := do(t, h, http.MethodGet, "/v1/runs/"+id+"/export", "", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "running")

	v := getRun(t, h, id)
	assert.Equal(t, RunRunning, v.State)
	assert.False(t, v.Status.IsComplete)

	close(gate.release)
	waitForState(t, h, id, RunComplete)

	rr = do(t, h, http.MethodGet, "/v1/runs/"+id+"/export", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCreateRun_RegistryFull(t *testing.T) {
	gate := newGateMX()
	s := newTestServer(t, gate, WithRegistry(NewRegistry(1)))
	h := s.Handler()

	id := submitRun(t, h, contactsCSV)
	<-gate.started

	rr := do(t, h, http.MethodPost, "/v1/runs", "text/csv", contactsCSV)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "too many active runs")
	assert.Equal(t, "30", rr.Header().Get("Retry-After"))

	close(gate.release)
	waitForState(t, h, id, RunComplete)

	// The finished run is evicted to make room.
	next := submitRun(t, h, contactsCSV)
	waitForState(t, h, next, RunComplete)
	rr = do(t, h, http.MethodGet, "/v1/runs/"+id, "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRunFailed_ScenarioUndetected(t *testing.T) {
	s := newTestServer(t, openMX())
	h := s.Handler()

	id := submitRun(t, h, "name,phone\nAnn,555\n")
	v := waitForState(t, h, id, RunFailed)

	assert.NotEmpty(t, v.Error)
	assert.True(t, strings.HasPrefix(v.Status.CurrentTask, model.TaskFailedPrefix))
	assert.True(t, v.Status.IsComplete)

	rr := do(t, h, http.MethodGet, "/v1/runs/"+id+"/export", "", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCancelRun(t *testing.T) {
	gate := newGateMX()
	s := newTestServer(t, gate)
	h := s.Handler()

	id := submitRun(t, h, contactsCSV)
	<-gate.started

	rr := do(t, h, http.MethodDelete, "/v1/runs/"+id, "", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/runs/"+id, "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodDelete, "/v1/runs/"+id, "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// The background run observes the cancellation and returns.
	s.Wait()
}

func TestCreateRun_BadInput(t *testing.T) {
	s := newTestServer(t, openMX(), WithMaxBodyBytes(16))
	h := s.Handler()

	rr := do(t, h, http.MethodPost, "/v1/runs", "text/csv", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid csv")

	rr = do(t, h, http.MethodPost, "/v1/runs", "text/csv", strings.Repeat("email\n", 20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestCreateRun_TSV(t *testing.T) {
	s := newTestServer(t, openMX())
	h := s.Handler()

	id := submitRun(t, h, "email\tfull_name\na@y.com\tAnn\n")
	rr := do(t, h, http.MethodPost, "/v1/runs", "text/tab-separated-values", "email\tfull_name\na@y.com\tAnn\n")
	require.Equal(t, http.StatusAccepted, rr.Code)

	// Parsed as CSV the header is a single unknown column.
	v := waitForState(t, h, id, RunFailed)
	assert.NotEmpty(t, v.Error)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	v = waitForState(t, h, resp["id"], RunComplete)
	assert.Equal(t, model.ScenarioSingleEmail, v.Scenario)
	assert.Equal(t, 1, v.Records)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestServer(t, openMX())
	rr := do(t, s.Handler(), http.MethodGet, "/v1/runs/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, s.Handler(), http.MethodGet, "/v1/runs/nope/export", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListRuns(t *testing.T) {
	s := newTestServer(t, openMX())
	h := s.Handler()

	id := submitRun(t, h, contactsCSV)
	waitForState(t, h, id, RunComplete)

	rr := do(t, h, http.MethodGet, "/v1/runs", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var views []RunView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, id, views[0].ID)
}

func TestClassifyEndpoint(t *testing.T) {
	s := newTestServer(t, openMX("aspmx.l.google.com"))
	h := s.Handler()

	rr := do(t, h, http.MethodGet, "/v1/classify/Example.com", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var c model.Classification
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	assert.Equal(t, "example.com", c.Domain)
	assert.Equal(t, model.ProviderGoogle, c.Provider)
	assert.Equal(t, model.SourceLookup, c.Source)

	rr = do(t, h, http.MethodGet, "/v1/classify/example.com", "", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	assert.Equal(t, model.SourceCache, c.Source)

	rr = do(t, h, http.MethodGet, "/v1/classify/not-a-domain", "", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	assert.Equal(t, model.ProviderOthers, c.Provider)
	assert.Equal(t, model.SourceInvalid, c.Source)
}

func TestNilPipeline(t *testing.T) {
	s := NewServer(context.Background(), nil)
	h := s.Handler()

	rr := do(t, h, http.MethodPost, "/v1/runs", "text/csv", contactsCSV)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	rr = do(t, h, http.MethodGet, "/v1/classify/x.com", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, openMX(), WithAllowedOrigins([]string{"https://app.example.com"}))
	h := s.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/v1/runs", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/runs", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
