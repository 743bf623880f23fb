package web

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AndresFMC/Canvas-Users-Manager/internal/config"
	"github.com/AndresFMC/Canvas-Users-Manager/internal/core"
	"github.com/AndresFMC/Canvas-Users-Manager/internal/metrics"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testHeader = []string{"user_id", "name", "course_codes", "num_courses", "created_at", "last_login"}

	threeRows = [][]string{
		{"1", "Ana", "MATH101, PHY202", "2", "2020-09-15T14:27:00", ""},
		{"2", "Luis, Jr", "", "0", "", "2021-01-02 08:00:00"},
		{"3", "Eva", "PHY202", "1", "garbage", ""},
	}

	fiveRows = [][]string{
		{"1", "A", "X", "1", "", ""},
		{"2", "B", "X", "1", "", ""},
		{"3", "C", "X", "1", "", ""},
		{"4", "D", "X", "1", "", ""},
		{"5", "E", "X", "1", "", ""},
	}

	fixedNow = time.Date(2025, 3, 7, 9, 4, 5, 0, time.UTC)
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 5 * time.Second},
		Query:    config.QueryConfig{DefaultPerPage: 50, MaxPerPage: 500},
		Export:   config.ExportConfig{Entity: "usuarios_ufv", MaxConcurrent: 2, MaxWaitTime: 20 * time.Millisecond, MaxIDs: 100, MaxBodyBytes: 4096},
		Rate:     config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{EnableCSP: true},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

type testEnv struct {
	server    *Server
	collector *metrics.Collector
	limiter   *core.ExportLimiter
}

func newTestEnv(t *testing.T, rows [][]string, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	store, err := core.NewStore(&core.Table{Header: testHeader, Rows: rows})
	require.NoError(t, err)

	collector := metrics.NewCollector()
	limiter := core.NewExportLimiter(cfg.Export.MaxConcurrent, cfg.Export.MaxWaitTime)
	svc, err := core.NewService(store,
		core.WithClock(func() time.Time { return fixedNow }),
		core.WithExportLimiter(limiter),
		core.WithExportEntity(cfg.Export.Entity),
		core.WithObserver(collector),
	)
	require.NoError(t, err)

	return &testEnv{
		server:    NewServer(svc, cfg, collector),
		collector: collector,
		limiter:   limiter,
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

type usersResponse struct {
	Users      []map[string]any `json:"users"`
	Pagination core.PageInfo    `json:"pagination"`
}

func decodeUsers(t *testing.T, rec *httptest.ResponseRecorder) usersResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp usersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func userIDs(users []map[string]any) []int64 {
	out := make([]int64, len(users))
	for i, u := range users {
		out[i] = int64(u["user_id"].(float64))
	}
	return out
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, threeRows, nil)

	rec := env.do(t, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","users":3,"courses":3}`, rec.Body.String())
}

func TestListCourses(t *testing.T) {
	env := newTestEnv(t, threeRows, nil)

	rec := env.do(t, http.MethodGet, "/api/courses", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"courses":["Sin curso","MATH101","PHY202"],"total":3}`, rec.Body.String())
}

func TestListUsers_NoFilter(t *testing.T) {
	env := newTestEnv(t, threeRows, nil)

	resp := decodeUsers(t, env.do(t, http.MethodGet, "/api/users", ""))

	assert.Equal(t, []int64{1, 2, 3}, userIDs(resp.Users))
	assert.Equal(t, core.PageInfo{Page: 1, PerPage: 50, Total: 3, TotalPages: 1}, resp.Pagination)

	ana := resp.Users[0]
	assert.Equal(t, "Ana", ana["name"])
	assert.Equal(t, "15/09/2020 14:27", ana["created_at_display"])
	assert.Equal(t, "Nunca", ana["last_login_display"])
	assert.Equal(t, "garbage", resp.Users[2]["created_at_display"])
}

func TestListUsers_MarkerAndCourse(t *testing.T) {
	env := newTestEnv(t, threeRows, nil)

	resp := decodeUsers(t, env.do(t, http.MethodGet, "/api/users?courses=Sin%20curso,MATH101", ""))

	assert.Equal(t, []int64{1, 2}, userIDs(resp.Users))
	assert.Equal(t, 2, resp.Pagination.Total)
}

func TestListUsers_MarkerOnly(t *testing.T) {
	env := newTestEnv(t, threeRows, nil)

	resp := decodeUsers(t, env.do(t, http.MethodGet, "/api/users?courses=Sin%20curso", ""))

	assert.Equal(t, []int64{2}, userIDs(resp.Users))
}

func TestListUsers_Pagination(t *testing.T) {
	env := newTestEnv(t, fiveRows, nil)

	tests := []struct {
		page string
		want []int64
	}{
		{"1", []int64{1, 2}},
		{"2", []int64{3, 4}},
		{"3", []int64{5}},
		{"4", []int64{}},
	}

	for _, tt := range tests {
		t.Run("page "+tt.page, func(t *testing.T) {
			resp := decodeUsers(t, env.do(t, http.MethodGet, "/api/users?per_page=2&page="+tt.page, ""))
			assert.Equal(t, tt.want, userIDs(resp.Users))
			assert.Equal(t, 5, resp.Pagination.Total)
			assert.Equal(t, 3, resp.Pagination.TotalPages)
		})
	}
}

func TestListUsers_EmptyPageIsArray(t *testing.T) {
	env := newTestEnv(t, fiveRows, nil)

	rec := env.do(t, http.MethodGet, "/api/users?page=9", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"users":[]`)
}

func TestListUsers_InvalidParams(t *testing.T) {
	env := newTestEnv(t, threeRows, nil)

	tests := []struct {
		query string
		code  string
	}{
		{"page=0", "QRY001"},
		{"page=-3", "QRY001"},
		{"page=abc", "QRY001"},
		{"page=1.5", "QRY001"},
		{"per_page=0", "QRY002"},
		{"per_page=ten", "QRY002"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/users?"+tt.query, "")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestListUsers_PerPageClamped(t *testing.T) {
	env := newTestEnv(t, fiveRows, func(c *config.Config) { c.Query.MaxPerPage = 2 })

	resp := decodeUsers(t, env.do(t, http.MethodGet, "/api/users?per_page=1000", ""))

	assert.Equal(t, 2, resp.Pagination.PerPage)
	assert.Len(t, resp.Users, 2)
}

func TestBackup(t *testing.T) {
	env := newTestEnv(t, threeRows, nil)

	rec := env.do(t, http.MethodPost, "/api/backup", `{"user_ids":[3,2,999]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="backup_usuarios_ufv_20250307_090405.csv"`, rec.Header().Get("Content-Disposition"))

	_, err := uuid.Parse(rec.Header().Get("X-Backup-ID"))
	assert.NoError(t, err)

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{testHeader, threeRows[1], threeRows[2]}, records)

	assert.Contains(t, scrape(t, env), `canvas_users_exports_total{outcome="ok"} 1`)
}

func TestBackup_UnknownIDsOnly(t *testing.T) {
	env := newTestEnv(t, threeRows, nil)

	rec := env.do(t, http.MethodPost, "/api/backup", `{"user_ids":[42]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{testHeader}, records)
}

func TestBackup_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"empty list", `{"user_ids":[]}`, http.StatusBadRequest, "EXP001"},
		{"missing field", `{}`, http.StatusBadRequest, "EXP001"},
		{"malformed json", `{"user_ids":[1,`, http.StatusBadRequest, "REQ001"},
		{"wrong type", `{"user_ids":["1"]}`, http.StatusBadRequest, "REQ001"},
		{"too many ids", `{"user_ids":[1,2,3]}`, http.StatusBadRequest, "REQ001"},
		{"body too large", `{"user_ids":[` + strings.Repeat("1,", 20) + `1]}`, http.StatusRequestEntityTooLarge, "REQ001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, threeRows, func(c *config.Config) {
				c.Export.MaxIDs = 2
				c.Export.MaxBodyBytes = 32
			})

			rec := env.do(t, http.MethodPost, "/api/backup", tt.body)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
			assert.Empty(t, rec.Header().Get("X-Backup-ID"))
		})
	}
}

func TestBackup_EmptySelectionIsCounted(t *testing.T) {
	env := newTestEnv(t, threeRows, nil)

	env.do(t, http.MethodPost, "/api/backup", `{"user_ids":[]}`)

	assert.Contains(t, scrape(t, env), `canvas_users_exports_total{outcome="empty_selection"} 1`)
}

func TestBackup_LimiterSaturated(t *testing.T) {
	env := newTestEnv(t, threeRows, func(c *config.Config) { c.Export.MaxConcurrent = 1 })
	require.True(t, env.limiter.TryAcquire())
	defer env.limiter.Release()

	rec := env.do(t, http.MethodPost, "/api/backup", `{"user_ids":[1]}`)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "EXP002", decodeError(t, rec).Code)

	status := env.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, status.Code)
	assert.JSONEq(t, `{"active":1,"available":0,"max_concurrent":1,"served":1,"refused":1}`, status.Body.String())
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, threeRows, func(c *config.Config) {
		c.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, ExportLimit: 1}
	})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/courses", "").Code)
	}

	rec := env.do(t, http.MethodGet, "/api/courses", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimit_BackupHasOwnBudget(t *testing.T) {
	env := newTestEnv(t, threeRows, func(c *config.Config) {
		c.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, ExportLimit: 1}
	})

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/backup", `{"user_ids":[1]}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodPost, "/api/backup", `{"user_ids":[1]}`).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/courses", "").Code)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, threeRows, func(c *config.Config) {
		c.Security.CORSAllowedOrigins = []string{"https://admin.example.edu"}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/backup", strings.NewReader(`{"user_ids":[1]}`))
	req.Header.Set("Origin", "https://admin.example.edu")
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://admin.example.edu", rec.Header().Get("Access-Control-Allow-Origin"))
	exposed := strings.ToLower(rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Contains(t, exposed, "content-disposition")
	assert.Contains(t, exposed, "x-backup-id")

	req = httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, threeRows, nil)

	rec := env.do(t, http.MethodGet, "/api/courses", "")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")

	env = newTestEnv(t, threeRows, func(c *config.Config) { c.Security.EnableCSP = false })
	rec = env.do(t, http.MethodGet, "/api/courses", "")
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, threeRows, nil)

	env.do(t, http.MethodGet, "/api/users?page=1", "")

	out := scrape(t, env)
	assert.Contains(t, out, `canvas_users_http_requests_total{method="GET",route="/api/users",status="200"} 1`)
	assert.Contains(t, out, `canvas_users_query_result_rows_count{op="list_users"} 1`)

	env = newTestEnv(t, threeRows, func(c *config.Config) { c.Metrics.Enabled = false })
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/metrics", "").Code)
}

func TestNotFoundAndMethod(t *testing.T) {
	env := newTestEnv(t, threeRows, nil)

	rec := env.do(t, http.MethodGet, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "HTTP404", decodeError(t, rec).Code)

	rec = env.do(t, http.MethodGet, "/api/backup", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "HTTP405", decodeError(t, rec).Code)
}

func scrape(t *testing.T, env *testEnv) string {
	t.Helper()
	rec := httptest.NewRecorder()
	env.collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
