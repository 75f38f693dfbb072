package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomsec/scanhub/internal/engine"
	"github.com/ecomsec/scanhub/internal/store"
)

var testSecret = []byte("test-secret")

// stubChecker returns canned findings for a scan type.
type stubChecker struct {
	name     string
	kind     engine.ScanType
	findings []engine.Finding

	// block, when set, is waited on before returning. It lets tests hold
	// a scan in in_progress.
	block chan struct{}
}

func (c *stubChecker) Name() string          { return c.name }
func (c *stubChecker) Kind() engine.ScanType { return c.kind }

func (c *stubChecker) Check(ctx context.Context, targetURL string) ([]engine.Finding, error) {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	out := make([]engine.Finding, len(c.findings))
	copy(out, c.findings)
	return out, nil
}

type testEnv struct {
	ts    *httptest.Server
	store *store.SQLiteStore
}

func newTestEnv(t *testing.T, checkers ...engine.Checker) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	orch := engine.NewOrchestrator(st, engine.NewRegistry(checkers...))
	orch.Start()
	t.Cleanup(orch.Close)

	srv := NewServer(st, orch, testSecret)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st}
}

func signToken(t *testing.T, secret []byte, userID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID,
		"username": userID,
		"role":     role,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, apiEnvelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env apiEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

// waitForStatus polls the store until the scan reaches the wanted status.
func (e *testEnv) waitForStatus(t *testing.T, scanID string, want engine.ScanStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := e.store.GetScan(context.Background(), scanID)
		require.NoError(t, err)
		if rec.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("scan %s never reached status %s", scanID, want)
}

func startScan(t *testing.T, e *testEnv, token string, scanType engine.ScanType) string {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/api/scans/start", token,
		map[string]string{"scan_type": string(scanType), "target_url": "https://example.com"})
	require.Equal(t, http.StatusCreated, status)

	var data struct {
		ScanID string `json:"scan_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.ScanID)
	return data.ScanID
}

func TestHealthNoAuth(t *testing.T) {
	e := newTestEnv(t)

	resp, err := http.Get(e.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthentication(t *testing.T) {
	e := newTestEnv(t)

	status, env := e.do(t, http.MethodGet, "/api/scans/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, _ = e.do(t, http.MethodGet, "/api/scans/history", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	wrongKey := signToken(t, []byte("other-secret"), "u1", engine.RoleAdmin)
	status, _ = e.do(t, http.MethodGet, "/api/scans/history", wrongKey, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = e.do(t, http.MethodGet, "/api/scans/history", signToken(t, testSecret, "u1", engine.RoleUser), nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestStartScanAuthorization(t *testing.T) {
	e := newTestEnv(t, &stubChecker{name: "sqli", kind: engine.ScanSQLInjection})

	// Plain users can read but not manage scans.
	user := signToken(t, testSecret, "u1", engine.RoleUser)
	status, env := e.do(t, http.MethodPost, "/api/scans/start", user,
		map[string]string{"scan_type": "sql_injection"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.False(t, env.Success)

	analyst := signToken(t, testSecret, "u2", engine.RoleSecurityAnalyst)
	scanID := startScan(t, e, analyst, engine.ScanSQLInjection)
	e.waitForStatus(t, scanID, engine.StatusCompleted)
}

func TestStartScanBadRequest(t *testing.T) {
	e := newTestEnv(t)
	admin := signToken(t, testSecret, "u1", engine.RoleAdmin)

	status, _ := e.do(t, http.MethodPost, "/api/scans/start", admin,
		map[string]string{"scan_type": "port_scan"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.do(t, http.MethodPost, "/api/scans/start", admin,
		map[string]string{"scan_type": "full", "target_url": "ftp://example.com"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStartScanConflictAndCancel(t *testing.T) {
	block := make(chan struct{})
	e := newTestEnv(t, &stubChecker{name: "sqli", kind: engine.ScanSQLInjection, block: block})
	admin := signToken(t, testSecret, "u1", engine.RoleAdmin)

	scanID := startScan(t, e, admin, engine.ScanSQLInjection)
	e.waitForStatus(t, scanID, engine.StatusInProgress)

	// Only one scan may be active.
	status, env := e.do(t, http.MethodPost, "/api/scans/start", admin,
		map[string]string{"scan_type": "xss"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Another scan is currently in progress", env.Message)

	status, env = e.do(t, http.MethodPost, "/api/scans/"+scanID+"/cancel", admin, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Scan cancelled successfully", env.Message)
	e.waitForStatus(t, scanID, engine.StatusFailed)

	close(block)

	// Cancelling a terminal scan is a 404.
	status, _ = e.do(t, http.MethodPost, "/api/scans/"+scanID+"/cancel", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestScanDetails(t *testing.T) {
	e := newTestEnv(t, &stubChecker{name: "sqli", kind: engine.ScanSQLInjection, findings: []engine.Finding{
		{Type: "SQL_INJECTION", Severity: engine.SeverityCritical, Title: "Injection", CVSSScore: 9.8},
	}})
	admin := signToken(t, testSecret, "u1", engine.RoleAdmin)

	scanID := startScan(t, e, admin, engine.ScanSQLInjection)
	e.waitForStatus(t, scanID, engine.StatusCompleted)

	status, env := e.do(t, http.MethodGet, "/api/scans/"+scanID, admin, nil)
	require.Equal(t, http.StatusOK, status)

	var data struct {
		Scan            engine.ScanRecord `json:"scan"`
		Vulnerabilities []engine.Finding  `json:"vulnerabilities"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, scanID, data.Scan.ID)
	assert.Equal(t, engine.StatusCompleted, data.Scan.Status)
	assert.Equal(t, 1, data.Scan.FindingsCount)
	require.Len(t, data.Vulnerabilities, 1)
	assert.Equal(t, "SQL_INJECTION", data.Vulnerabilities[0].Type)

	status, _ = e.do(t, http.MethodGet, "/api/scans/does-not-exist", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestScanHistoryPagination(t *testing.T) {
	e := newTestEnv(t, &stubChecker{name: "sqli", kind: engine.ScanSQLInjection})
	admin := signToken(t, testSecret, "u1", engine.RoleAdmin)

	for i := 0; i < 3; i++ {
		scanID := startScan(t, e, admin, engine.ScanSQLInjection)
		e.waitForStatus(t, scanID, engine.StatusCompleted)
	}

	status, env := e.do(t, http.MethodGet, "/api/scans/history?page=1&limit=2", admin, nil)
	require.Equal(t, http.StatusOK, status)

	var data struct {
		Scans      []engine.ScanRecord `json:"scans"`
		Pagination struct {
			Page       int `json:"page"`
			Limit      int `json:"limit"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Scans, 2)
	assert.Equal(t, 3, data.Pagination.Total)
	assert.Equal(t, 2, data.Pagination.TotalPages)
}

func TestScanReportOrdering(t *testing.T) {
	e := newTestEnv(t, &stubChecker{name: "sqli", kind: engine.ScanSQLInjection, findings: []engine.Finding{
		{Type: "A", Severity: engine.SeverityMedium, Title: "medium", CVSSScore: 5.0},
		{Type: "B", Severity: engine.SeverityCritical, Title: "critical", CVSSScore: 9.8},
		{Type: "C", Severity: engine.SeverityHigh, Title: "high-weak", CVSSScore: 7.0},
		{Type: "D", Severity: engine.SeverityHigh, Title: "high-strong", CVSSScore: 8.5},
	}})
	admin := signToken(t, testSecret, "u1", engine.RoleAdmin)

	scanID := startScan(t, e, admin, engine.ScanSQLInjection)
	e.waitForStatus(t, scanID, engine.StatusCompleted)

	status, env := e.do(t, http.MethodGet, "/api/scans/"+scanID+"/report", admin, nil)
	require.Equal(t, http.StatusOK, status)

	var doc struct {
		SchemaVersion string           `json:"schema_version"`
		Findings      []engine.Finding `json:"findings"`
		Summary       struct {
			TotalFindings int `json:"total_findings"`
			Critical      int `json:"critical"`
			High          int `json:"high"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	assert.Equal(t, "1.0", doc.SchemaVersion)
	assert.Equal(t, 4, doc.Summary.TotalFindings)
	assert.Equal(t, 1, doc.Summary.Critical)
	assert.Equal(t, 2, doc.Summary.High)

	titles := make([]string, len(doc.Findings))
	for i, f := range doc.Findings {
		titles[i] = f.Title
	}
	assert.Equal(t, []string{"critical", "high-strong", "high-weak", "medium"}, titles)
}

func TestVulnerabilityListAndResolve(t *testing.T) {
	e := newTestEnv(t, &stubChecker{name: "sqli", kind: engine.ScanSQLInjection, findings: []engine.Finding{
		{Type: "SQL_INJECTION", Severity: engine.SeverityHigh, Title: "finding", CVSSScore: 8.0},
	}})
	admin := signToken(t, testSecret, "u1", engine.RoleAdmin)

	scanID := startScan(t, e, admin, engine.ScanSQLInjection)
	e.waitForStatus(t, scanID, engine.StatusCompleted)

	status, env := e.do(t, http.MethodGet, "/api/vulnerabilities", admin, nil)
	require.Equal(t, http.StatusOK, status)

	var findings []engine.Finding
	require.NoError(t, json.Unmarshal(env.Data, &findings))
	require.Len(t, findings, 1)
	assert.False(t, findings[0].IsResolved)

	// Plain users cannot resolve.
	user := signToken(t, testSecret, "u2", engine.RoleUser)
	status, _ = e.do(t, http.MethodPost, "/api/vulnerabilities/"+findings[0].ID+"/resolve", user, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = e.do(t, http.MethodPost, "/api/vulnerabilities/"+findings[0].ID+"/resolve", admin, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Vulnerability marked as resolved", env.Message)

	status, _ = e.do(t, http.MethodPost, "/api/vulnerabilities/nope/resolve", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDashboardStats(t *testing.T) {
	e := newTestEnv(t, &stubChecker{name: "sqli", kind: engine.ScanSQLInjection, findings: []engine.Finding{
		{Type: "SQL_INJECTION", Severity: engine.SeverityCritical, Title: "c", CVSSScore: 9.8},
		{Type: "XSS", Severity: engine.SeverityHigh, Title: "h", CVSSScore: 7.2},
	}})
	admin := signToken(t, testSecret, "u1", engine.RoleAdmin)

	scanID := startScan(t, e, admin, engine.ScanSQLInjection)
	e.waitForStatus(t, scanID, engine.StatusCompleted)

	status, env := e.do(t, http.MethodGet, "/api/dashboard/stats", admin, nil)
	require.Equal(t, http.StatusOK, status)

	var stats struct {
		TotalVulnerabilities int            `json:"total_vulnerabilities"`
		TotalScans           int            `json:"total_scans"`
		CriticalIssues       int            `json:"critical_issues"`
		SecurityScore        int            `json:"security_score"`
		ComplianceScore      int            `json:"compliance_score"`
		BySeverity           map[string]int `json:"vulnerabilities_by_severity"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 2, stats.TotalVulnerabilities)
	assert.Equal(t, 1, stats.TotalScans)
	assert.Equal(t, 1, stats.CriticalIssues)
	assert.Equal(t, 95, stats.ComplianceScore)
	assert.Equal(t, 85, stats.SecurityScore)
	assert.Equal(t, 1, stats.BySeverity["critical"])
}
