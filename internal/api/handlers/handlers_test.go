package handlers_test

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tiMaxal/pairs3d/internal/api/handlers"
	"github.com/tiMaxal/pairs3d/internal/config"
	"github.com/tiMaxal/pairs3d/internal/db"
	"github.com/tiMaxal/pairs3d/internal/job"
	"github.com/tiMaxal/pairs3d/internal/scheduler"
)

// newTestServer builds an in-process API against a fresh temp database.
func newTestServer(t *testing.T) (*httptest.Server, *sql.DB) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.RunMigrations(database); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	// Load with a path that does not exist yields the built-in defaults.
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	mgr := job.NewManager(database, job.DefaultConfig())
	sched := scheduler.New()

	statusH := &handlers.StatusHandler{DB: database, Manager: mgr, Sched: sched, Version: "test"}
	jobsH := &handlers.JobsHandler{DB: database, Manager: mgr, Cfg: cfg}
	settingsH := &handlers.SettingsHandler{DB: database, Cfg: cfg}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.ServeHTTP)
		r.Post("/jobs", jobsH.Create)
		r.Get("/jobs", jobsH.List)
		r.Get("/jobs/current", jobsH.Current)
		r.Post("/jobs/current/pause", jobsH.Pause)
		r.Post("/jobs/current/resume", jobsH.Resume)
		r.Delete("/jobs/current", jobsH.Cancel)
		r.Get("/jobs/{id}", jobsH.Get)
		r.Get("/settings", settingsH.Get)
		r.Patch("/settings", settingsH.Update)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, database
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func doRequest(t *testing.T, method, url string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build %s %s: %v", method, url, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func TestStatus_Idle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body struct {
		Version   string `json:"version"`
		Status    string `json:"status"`
		TotalJobs int    `json:"total_jobs"`
	}
	decodeJSON(t, resp, &body)

	if body.Status != "idle" {
		t.Errorf("status = %q, want idle", body.Status)
	}
	if body.Version != "test" {
		t.Errorf("version = %q, want test", body.Version)
	}
	if body.TotalJobs != 0 {
		t.Errorf("total_jobs = %d, want 0", body.TotalJobs)
	}
}

func TestJobs_ListEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/jobs")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Items []json.RawMessage `json:"items"`
		Total int               `json:"total"`
	}
	decodeJSON(t, resp, &body)

	if body.Items == nil {
		t.Error("items should be an empty array, not null")
	}
	if len(body.Items) != 0 || body.Total != 0 {
		t.Errorf("got %d items (total %d), want empty", len(body.Items), body.Total)
	}
}

func TestJobs_CreateMissingRoot(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/jobs", strings.NewReader(`{}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code = %d, want 400", resp.StatusCode)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeJSON(t, resp, &body)
	if body.Error.Code != "MISSING_ROOT" {
		t.Errorf("error code = %q, want MISSING_ROOT", body.Error.Code)
	}
}

func TestJobs_CommandsWithoutActiveJob(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/jobs/current"},
		{http.MethodPost, "/api/jobs/current/pause"},
		{http.MethodPost, "/api/jobs/current/resume"},
		{http.MethodDelete, "/api/jobs/current"},
	}
	for _, tc := range cases {
		resp := doRequest(t, tc.method, srv.URL+tc.path, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s %s: status code = %d, want 404", tc.method, tc.path, resp.StatusCode)
		}
	}
}

func TestJobs_GetUnknownID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/jobs/9999", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown job: status code = %d, want 404", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/jobs/notanumber", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad job id: status code = %d, want 400", resp.StatusCode)
	}
}

func TestSettings_Defaults(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/settings", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}

	var body struct {
		TimeDeltaMaxSeconds float64 `json:"time_delta_max_seconds"`
		HashDistanceMax     int     `json:"hash_distance_max"`
	}
	decodeJSON(t, resp, &body)

	if body.TimeDeltaMaxSeconds != 2 {
		t.Errorf("time_delta_max_seconds = %v, want 2", body.TimeDeltaMaxSeconds)
	}
	if body.HashDistanceMax != 10 {
		t.Errorf("hash_distance_max = %d, want 10", body.HashDistanceMax)
	}
}

func TestSettings_PatchPersists(t *testing.T) {
	srv, database := newTestServer(t)

	patch := `{"last_root":"/photos","time_delta_max_seconds":1.5,"hash_distance_max":6}`
	resp := doRequest(t, http.MethodPatch, srv.URL+"/api/settings", strings.NewReader(patch))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}

	var body struct {
		LastRoot            string  `json:"last_root"`
		TimeDeltaMaxSeconds float64 `json:"time_delta_max_seconds"`
		HashDistanceMax     int     `json:"hash_distance_max"`
	}
	decodeJSON(t, resp, &body)

	if body.LastRoot != "/photos" {
		t.Errorf("last_root = %q, want /photos", body.LastRoot)
	}
	if body.TimeDeltaMaxSeconds != 1.5 {
		t.Errorf("time_delta_max_seconds = %v, want 1.5", body.TimeDeltaMaxSeconds)
	}
	if body.HashDistanceMax != 6 {
		t.Errorf("hash_distance_max = %d, want 6", body.HashDistanceMax)
	}

	// Changes survive a reload from the database.
	settings, err := db.LoadSettings(database)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings[db.SettingLastRoot] != "/photos" {
		t.Errorf("persisted last_root = %q, want /photos", settings[db.SettingLastRoot])
	}
	if settings[db.SettingTimeDeltaMaxMs] != "1500" {
		t.Errorf("persisted time_delta_max_ms = %q, want 1500", settings[db.SettingTimeDeltaMaxMs])
	}
}

func TestSettings_PatchRejectsInvalid(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []string{
		`{"time_delta_max_seconds":-1}`,
		`{"time_delta_max_seconds":0}`,
		`{"hash_distance_max":-1}`,
		`{"hash_distance_max":65}`,
	}
	for _, payload := range cases {
		resp := doRequest(t, http.MethodPatch, srv.URL+"/api/settings", strings.NewReader(payload))
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("PATCH %s: status code = %d, want 400", payload, resp.StatusCode)
		}
	}
}
