package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"webmonitor-engine/internal/config"
	"webmonitor-engine/internal/domain"
	"webmonitor-engine/internal/engine"
	"webmonitor-engine/internal/events"
)

type fakeFetcher struct {
	mu   sync.Mutex
	body string
}

func (f *fakeFetcher) FetchText(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body, nil
}

type testServer struct {
	*httptest.Server
	hub     *events.Hub
	cfgPath string
	cfgVal  *atomic.Value

	mu      sync.Mutex
	secrets map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.App.DataDir = dir
	cfgPath := filepath.Join(dir, "config.yml")
	if err := config.SaveAtomic(cfgPath, cfg); err != nil {
		t.Fatal(err)
	}

	hub := events.NewHub()
	e, err := engine.New(context.Background(), cfg, engine.Deps{
		Fetcher: &fakeFetcher{body: "<p>hello</p>"},
		Events:  hub,
		Passive: true,
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })

	var cfgVal atomic.Value
	cfgVal.Store(cfg)
	ts := &testServer{hub: hub, cfgPath: cfgPath, cfgVal: &cfgVal, secrets: map[string]string{}}

	h := NewRouter(Deps{
		Engine:      e,
		DB:          e.DB(),
		Hub:         hub,
		CfgVal:      &cfgVal,
		UserCfgPath: cfgPath,
		LoadCfg:     func() (config.Config, error) { return config.Load(cfgPath) },
		SetSMTPPassword: func(account, pw string) error {
			ts.mu.Lock()
			ts.secrets[account] = pw
			ts.mu.Unlock()
			return nil
		},
	})
	ts.Server = httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

const newJobBody = `{
  "name": "hello",
  "url": "https://example.com",
  "interval": 60,
  "showDiff": false,
  "filters": [{"type": "html2text"}],
  "notifications": []
}`

func TestJobLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/jobs", newJobBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d", resp.StatusCode)
	}
	job := decode[domain.Job](t, resp)
	if job.ID == "" || job.Name != "hello" {
		t.Fatalf("created = %+v", job)
	}

	list := decode[[]domain.Job](t, ts.do(t, http.MethodGet, "/jobs", ""))
	if len(list) != 1 || list[0].ID != job.ID {
		t.Fatalf("list = %+v", list)
	}

	resp = ts.do(t, http.MethodPost, "/jobs/"+job.ID+"/check", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check: status = %d", resp.StatusCode)
	}
	res := decode[struct {
		Changed  bool             `json:"changed"`
		Snapshot *domain.Snapshot `json:"snapshot"`
	}](t, resp)
	if !res.Changed || res.Snapshot == nil || res.Snapshot.Data != "hello" {
		t.Fatalf("check result = %+v", res)
	}

	latest := decode[domain.Snapshot](t, ts.do(t, http.MethodGet, "/jobs/"+job.ID+"/snapshots/latest", ""))
	if latest.ID != res.Snapshot.ID {
		t.Errorf("latest = %+v", latest)
	}
	snaps := decode[[]domain.Snapshot](t, ts.do(t, http.MethodGet, "/jobs/"+job.ID+"/snapshots", ""))
	if len(snaps) != 1 {
		t.Errorf("snapshots = %d", len(snaps))
	}
	if resp := ts.do(t, http.MethodGet, "/snapshots/"+latest.ID, ""); resp.StatusCode != http.StatusOK {
		t.Errorf("get snapshot: status = %d", resp.StatusCode)
	}

	updated := strings.Replace(newJobBody, `"hello"`, `"renamed"`, 1)
	resp = ts.do(t, http.MethodPut, "/jobs/"+job.ID, updated)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status = %d", resp.StatusCode)
	}
	if got := decode[domain.Job](t, resp); got.Name != "renamed" || got.ID != job.ID {
		t.Errorf("updated = %+v", got)
	}

	if resp := ts.do(t, http.MethodDelete, "/jobs/"+job.ID, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status = %d", resp.StatusCode)
	}
	if resp := ts.do(t, http.MethodGet, "/jobs/"+job.ID, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get deleted: status = %d", resp.StatusCode)
	}
	if resp := ts.do(t, http.MethodGet, "/snapshots/"+latest.ID, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("snapshot of deleted job: status = %d", resp.StatusCode)
	}
}

func TestErrorsUseEnvelope(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name, method, path, body string
		status                   int
		code                     string
	}{
		{"bad json", http.MethodPost, "/jobs", `{"name":`, http.StatusBadRequest, "invalid_json"},
		{"unknown field", http.MethodPost, "/jobs", `{"nme":"x"}`, http.StatusBadRequest, "invalid_json"},
		{"invalid job", http.MethodPost, "/jobs", `{"name":"x","url":"ftp://x","interval":1}`, http.StatusBadRequest, "invalid_job"},
		{"unknown filter", http.MethodPost, "/jobs", `{"name":"x","url":"https://x.example","interval":1,"filters":[{"type":"regex"}]}`, http.StatusBadRequest, "invalid_json"},
		{"missing job", http.MethodGet, "/jobs/nope", "", http.StatusNotFound, "not_found"},
		{"update missing", http.MethodPut, "/jobs/nope", newJobBody, http.StatusNotFound, "not_found"},
		{"check missing", http.MethodPost, "/jobs/nope/check", "", http.StatusNotFound, "not_found"},
		{"delete missing snapshot", http.MethodDelete, "/snapshots/nope", "", http.StatusNotFound, "not_found"},
		{"method", http.MethodPatch, "/jobs", "", http.StatusMethodNotAllowed, "method_not_allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			e := decode[APIError](t, resp)
			if e.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Error.Code, tt.code)
			}
			if e.Error.RequestID == "" || e.Error.RequestID != resp.Header.Get("X-Request-ID") {
				t.Errorf("request id = %q, header %q", e.Error.RequestID, resp.Header.Get("X-Request-ID"))
			}
		})
	}
}

func TestSchedulerAndHealth(t *testing.T) {
	ts := newTestServer(t)
	st := decode[SchedulerStatus](t, ts.do(t, http.MethodGet, "/scheduler", ""))
	if st.Count != 0 || st.Active == nil {
		t.Errorf("status = %+v", st)
	}
	h := decode[map[string]any](t, ts.do(t, http.MethodGet, "/health", ""))
	if h["ok"] != true {
		t.Errorf("health = %v", h)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/config", "")
	if ct := resp.Header.Get("Content-Type"); ct != yamlContentType {
		t.Fatalf("content type = %q", ct)
	}

	body := "fetch:\n  user_agent: test-agent\nnotify:\n  email:\n    smtp_host: smtp.example.com\n    username: bot\n"
	resp = ts.do(t, http.MethodPut, "/config", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put: status = %d", resp.StatusCode)
	}
	got := ts.cfgVal.Load().(config.Config)
	if got.Fetch.UserAgent != "test-agent" || got.Scheduler.IntervalUnit != time.Second {
		t.Errorf("stored config = %+v", got.Fetch)
	}

	resp = ts.do(t, http.MethodPut, "/config", "fetch:\n  max_bytes: -1\n")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid put: status = %d", resp.StatusCode)
	}
	if v := decode[config.Validation](t, resp); len(v.Errors) == 0 {
		t.Error("no validation errors returned")
	}
	if resp := ts.do(t, http.MethodPut, "/config", "bogus_section: 1\n"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown field: status = %d", resp.StatusCode)
	}

	p := decode[map[string]string](t, ts.do(t, http.MethodGet, "/config/path", ""))
	if !strings.HasSuffix(p["path"], "config.yml") {
		t.Errorf("path = %v", p)
	}

	resp = ts.do(t, http.MethodPost, "/api/secrets/smtp", `{"password":"pw"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("set secret: status = %d", resp.StatusCode)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.secrets["webmonitor:smtp:bot@smtp.example.com"] != "pw" {
		t.Errorf("secrets = %v", ts.secrets)
	}
}

func TestSecretRequiresSMTPHost(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodPost, "/api/secrets/smtp", `{"password":"pw"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestEventsStream(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if l := lines.Text(); strings.HasPrefix(l, "data: ") {
				return l
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}
	if l := next(); !strings.Contains(l, `"type":"ping"`) {
		t.Fatalf("first event = %s", l)
	}

	if r := ts.do(t, http.MethodPost, "/jobs", newJobBody); r.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d", r.StatusCode)
	}
	if l := next(); !strings.Contains(l, `"type":"job_created"`) {
		t.Fatalf("event = %s", l)
	}
}

func TestCheckpointLoopbackOnly(t *testing.T) {
	ts := newTestServer(t)
	if resp := ts.do(t, http.MethodPost, "/db/checkpoint", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("loopback: status = %d", resp.StatusCode)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/db/checkpoint", nil)
	req.RemoteAddr = "10.0.0.5:5555"
	DBHandler{}.Checkpoint(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote: status = %d", rec.Code)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := RequestID(Recover(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal_error") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
