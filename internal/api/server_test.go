package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cap-dcis-prompt-server/internal/audit"
	"github.com/cap-dcis-prompt-server/internal/cache"
	"github.com/cap-dcis-prompt-server/internal/checklist"
	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/cap-dcis-prompt-server/internal/monitoring"
	"github.com/cap-dcis-prompt-server/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// staticConfig serves a fixed configuration
type staticConfig struct {
	cfg *domain.Config
}

func (s staticConfig) GetConfig() *domain.Config                 { return s.cfg }
func (s staticConfig) GetDatabaseConfig() *domain.DatabaseConfig { return &s.cfg.Database }
func (s staticConfig) GetServerConfig() *domain.ServerConfig     { return &s.cfg.Server }
func (s staticConfig) Reload() error                             { return nil }
func (s staticConfig) Validate() error                           { return nil }
func (s staticConfig) IsProduction() bool                        { return false }
func (s staticConfig) IsDevelopment() bool                       { return true }

func testConfig() *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{
			Host:           "127.0.0.1",
			RequestTimeout: 5 * time.Second,
			MaxBodyBytes:   1 << 16,
		},
		Logging: domain.LoggingConfig{Level: "info"},
		MCP:     domain.MCPConfig{ServerVersion: "1.0.0"},
	}
}

type fixture struct {
	server  *Server
	store   *audit.SQLiteStore
	metrics *monitoring.Metrics
}

func newFixture(t *testing.T, cfg *domain.Config) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()

	schema, err := checklist.Load()
	require.NoError(t, err)

	store, err := audit.NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	metrics := monitoring.NewMetrics()
	assembler := service.NewAssembler(logger, schema,
		service.WithCache(cache.NewTieredCache(cache.NewMemoryCache(10, time.Hour), nil, logger)),
		service.WithAuditRecorder(store),
		service.WithMetrics(metrics),
	)

	return &fixture{
		server:  NewServer(staticConfig{cfg: cfg}, logger, assembler, WithAuditStore(store), WithMetrics(metrics)),
		store:   store,
		metrics: metrics,
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

const completeCase = `{
	"case_id": "S26-0042",
	"data": {
		"procedure": "excision",
		"specimen_laterality": "left",
		"histologic_type": "dcis",
		"size_determinable": true,
		"size_extent": 12,
		"nuclear_grade": "grade_2",
		"necrosis": "focal",
		"margin_status": "all_negative",
		"closest_margin_distance": 2.50,
		"closest_margin": "anterior",
		"lymph_nodes_submitted": false,
		"pt_category": "ptis_dcis",
		"pn_category": "not_assigned",
		"specimen_weight_g": 40
	}
}`

func TestHealth(t *testing.T) {
	f := newFixture(t, testConfig())

	w := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["audit_enabled"])
	assert.NotEmpty(t, body["checklist_version"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestChecklist(t *testing.T) {
	f := newFixture(t, testConfig())

	w := f.do(http.MethodGet, "/api/v1/checklist", "")
	require.Equal(t, http.StatusOK, w.Code)

	var d checklist.Description
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	require.NotEmpty(t, d.Sections)
	assert.Equal(t, "Specimen", d.Sections[0].Heading)
	assert.Equal(t, "procedure", d.Sections[0].Elements[0].ID)
}

func TestAssemble(t *testing.T) {
	f := newFixture(t, testConfig())

	w := f.do(http.MethodPost, "/api/v1/prompts", completeCase)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result service.AssembleResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "S26-0042", result.CaseID)
	assert.True(t, strings.HasPrefix(result.Prompt, "Specimen\n"))
	assert.Contains(t, result.Prompt, "The closest margin is 2.50 mm from DCIS.")
	assert.Equal(t, []string{"specimen_weight_g"}, result.Ignored)
	assert.Nil(t, result.Envelope)
	assert.Len(t, result.Fingerprint, 64)

	// the cached prompt is reachable by fingerprint
	w = f.do(http.MethodGet, "/api/v1/prompts/"+result.Fingerprint, "")
	require.Equal(t, http.StatusOK, w.Code)
	var cached domain.CachedPrompt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cached))
	assert.Equal(t, result.Prompt, cached.Prompt)

	// the assembly was audited without case values
	records, err := f.store.ListByCase(context.Background(), "S26-0042")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, audit.StatusAssembled, records[0].Status)
	assert.Equal(t, domain.SourceHTTP, records[0].Source)
	assert.NotEmpty(t, records[0].RequestID, "correlation ID is the audit request ID")
}

func TestAssemble_Envelope(t *testing.T) {
	f := newFixture(t, testConfig())

	body := strings.Replace(completeCase, `"case_id"`, `"include_envelope": true, "case_id"`, 1)
	w := f.do(http.MethodPost, "/api/v1/prompts", body)
	require.Equal(t, http.StatusOK, w.Code)

	var result service.AssembleResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotNil(t, result.Envelope)
	assert.Contains(t, result.Envelope.User, "Report:\n"+result.Prompt+"\n")
}

func TestAssemble_CaseContext(t *testing.T) {
	f := newFixture(t, testConfig())

	plain := f.do(http.MethodPost, "/api/v1/prompts", completeCase)
	require.Equal(t, http.StatusOK, plain.Code)
	var without service.AssembleResult
	require.NoError(t, json.Unmarshal(plain.Body.Bytes(), &without))

	body := strings.Replace(completeCase, `"case_id"`,
		`"include_envelope": true, "report_date": "2026-03-14", "clinical_history": " screen-detected calcifications ", "case_id"`, 1)
	w := f.do(http.MethodPost, "/api/v1/prompts", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result service.AssembleResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotNil(t, result.Envelope)
	assert.Contains(t, result.Envelope.User, "Report date: 2026-03-14\n")
	assert.Contains(t, result.Envelope.User, "Clinical history: screen-detected calcifications\n")
	assert.Equal(t, without.Fingerprint, result.Fingerprint, "context does not change the fingerprint")

	bad := strings.Replace(completeCase, `"case_id"`, `"report_date": "14/03/2026", "case_id"`, 1)
	w = f.do(http.MethodPost, "/api/v1/prompts", bad)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "YYYY-MM-DD")
}

func TestAssemble_Violations(t *testing.T) {
	f := newFixture(t, testConfig())

	w := f.do(http.MethodPost, "/api/v1/prompts", `{"case_id": "bad", "data": {"margin_status": "all_negative", "necrosis": 3}}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body violationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, domain.ErrValidationFailed, body.Error.Code)
	assert.Equal(t, w.Header().Get("X-Correlation-ID"), body.Error.RequestID)

	byElement := map[string]domain.ReasonCode{}
	for _, v := range body.Violations {
		byElement[v.Element] = v.Reason
	}
	assert.Equal(t, domain.ReasonInvalidValue, byElement["necrosis"])
	assert.Equal(t, domain.ReasonMissingRequired, byElement["procedure"])
	assert.Equal(t, domain.ReasonMissingRequired, byElement["closest_margin_distance"], "conditionally required")

	records, err := f.store.ListByCase(context.Background(), "bad")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, audit.StatusRejected, records[0].Status)
}

func TestAssemble_BadRequests(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodyBytes = 512
	f := newFixture(t, cfg)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed", `{"data": {`, http.StatusBadRequest},
		{"empty", ``, http.StatusBadRequest},
		{"no data", `{"case_id": "x"}`, http.StatusBadRequest},
		{"data not an object", `{"data": [1]}`, http.StatusBadRequest},
		{"trailing", `{"data": {}} {}`, http.StatusBadRequest},
		{"too large", `{"data": {"comments": "` + strings.Repeat("x", 1024) + `"}}`, http.StatusRequestEntityTooLarge},
		{"empty data", `{"data": {}}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/v1/prompts", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestValidate(t *testing.T) {
	f := newFixture(t, testConfig())

	w := f.do(http.MethodPost, "/api/v1/validate", completeCase)
	require.Equal(t, http.StatusOK, w.Code)
	var body validateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Valid)
	assert.Equal(t, "S26-0042", body.CaseID)
	assert.Len(t, body.Fingerprint, 64)

	w = f.do(http.MethodPost, "/api/v1/validate", `{"data": {}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "validation alone is not audited")
}

func TestGetPrompt_NotFound(t *testing.T) {
	f := newFixture(t, testConfig())

	w := f.do(http.MethodGet, "/api/v1/prompts/deadbeef", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrNotFound)
}

func TestListAudit(t *testing.T) {
	f := newFixture(t, testConfig())
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/prompts", completeCase).Code)
	}

	w := f.do(http.MethodGet, "/api/v1/audit?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Records []*audit.AssemblyRecord `json:"records"`
		Total   int64                   `json:"total"`
		Limit   int                     `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Records, 2)
	assert.EqualValues(t, 3, body.Total)
	assert.Equal(t, 2, body.Limit)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/audit?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/audit?limit=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/audit?offset=-1", "").Code)
}

func TestListAudit_WithoutStore(t *testing.T) {
	logger, _ := test.NewNullLogger()
	schema, err := checklist.Load()
	require.NoError(t, err)
	s := NewServer(staticConfig{cfg: testConfig()}, logger, service.NewAssembler(logger, schema))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "metrics are only served when configured")
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, testConfig())
	f.do(http.MethodPost, "/api/v1/prompts", completeCase)

	w := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `capdcis_assemblies_total{outcome="assembled"} 1`)
	assert.Contains(t, w.Body.String(), `capdcis_http_requests_total{route="/api/v1/prompts",status="200"} 1`)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = domain.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}
	f := newFixture(t, cfg)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodGet, "/health", "").Code)
}

func TestStart_GracefulShutdown(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	cfg := testConfig()
	cfg.Server.Port = port
	f := newFixture(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Start(ctx) }()

	url := "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
