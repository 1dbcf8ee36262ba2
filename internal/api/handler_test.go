package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/storeconf/internal/settings"
	"github.com/eugenenazirov/storeconf/internal/storage"
)

const testFragment = `
redis:
  host: tls://127.0.0.1
  port: 6379
  password: hunter2
  ssl_context:
    cafile: /redis-certificates/ca.crt
    verify_peer_name: false
objectstore:
  backend: swift
  arguments:
    bucket: nextcloud
    user:
      name: swift
      password: swift
    url: http://keystone:5000/v3
`

var testNow = time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *storage.MemoryStorage {
	t.Helper()

	resolved, err := settings.Load(settings.Bytes("test", []byte(testFragment)))
	if err != nil {
		t.Fatalf("load test settings: %v", err)
	}
	store, err := storage.NewMemoryStorage(resolved, storage.WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func setupTestRouter(t *testing.T, opts ...HandlerOption) http.Handler {
	t.Helper()
	return setupTestRouterWithStore(t, newTestStore(t), opts...)
}

func setupTestRouterWithStore(t *testing.T, store storage.Storage, opts ...HandlerOption) http.Handler {
	t.Helper()

	opts = append([]HandlerOption{WithClock(func() time.Time { return testNow })}, opts...)
	handler := NewHandler(store, opts...)
	logger := zaptest.NewLogger(t)
	return NewRouter(handler, logger, WithLogging(false))
}

func serve(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	if got := requestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	rec := serve(t, router, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
		Sections  []string  `json:"sections"`
		Revision  uint64    `json:"revision"`
		LoadedAt  time.Time `json:"loadedAt"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Revision != 1 || !body.LoadedAt.Equal(testNow) {
		t.Fatalf("unexpected snapshot metadata: revision=%d loadedAt=%s", body.Revision, body.LoadedAt)
	}

	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if !body.Timestamp.Equal(testNow) {
		t.Fatalf("expected timestamp %s, got %s", testNow, body.Timestamp)
	}
	if want := []string{"redis", "objectstore"}; !slices.Equal(body.Sections, want) {
		t.Fatalf("expected sections %v, got %v", want, body.Sections)
	}
}

func TestGetSettingsIsRedacted(t *testing.T) {
	router := setupTestRouter(t)

	rec := serve(t, router, http.MethodGet, "/api/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "hunter2") {
		t.Fatalf("response leaked the cache password: %s", rec.Body.String())
	}
	if got := rec.Header().Get("X-Settings-Revision"); got != "1" {
		t.Fatalf("expected revision header 1, got %q", got)
	}

	var body struct {
		Redis struct {
			Host       string         `json:"host"`
			Port       int            `json:"port"`
			Password   string         `json:"password"`
			SSLContext map[string]any `json:"ssl_context"`
		} `json:"redis"`
		ObjectStore struct {
			Backend   string `json:"backend"`
			Arguments struct {
				Bucket string `json:"bucket"`
				User   struct {
					Password string `json:"password"`
				} `json:"user"`
			} `json:"arguments"`
		} `json:"objectstore"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Redis.Host != "tls://127.0.0.1" || body.Redis.Port != 6379 {
		t.Fatalf("unexpected redis section %+v", body.Redis)
	}
	if body.Redis.Password != "******" || body.ObjectStore.Arguments.User.Password != "******" {
		t.Fatalf("expected passwords to be masked, got %q and %q", body.Redis.Password, body.ObjectStore.Arguments.User.Password)
	}
	if body.Redis.SSLContext["verify_peer_name"] != false {
		t.Fatalf("unexpected ssl_context %v", body.Redis.SSLContext)
	}
	if body.ObjectStore.Backend != "swift" || body.ObjectStore.Arguments.Bucket != "nextcloud" {
		t.Fatalf("unexpected objectstore section %+v", body.ObjectStore)
	}
}

func TestValidateSettingsAcceptsFragment(t *testing.T) {
	router := setupTestRouter(t)

	payload, err := json.Marshal(map[string]any{
		"redis": map[string]any{"host": "cache.internal", "port": 6380},
	})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/settings/validate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Valid    bool     `json:"valid"`
		Sections []string `json:"sections"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !body.Valid || !slices.Equal(body.Sections, []string{"redis"}) {
		t.Fatalf("unexpected response %+v", body)
	}
}

func TestValidateSettingsReportsConfigErrors(t *testing.T) {
	router := setupTestRouter(t)

	testCases := []struct {
		name string
		body string
		kind string
		key  string
		path string
	}{
		{"missing port", "redis:\n  host: cache.internal\n", "MissingField", "port", "redis.port"},
		{"port out of range", "redis:\n  host: cache.internal\n  port: 70000\n", "InvalidRange", "port", "redis.port"},
		{"unknown backend", "objectstore:\n  backend: unknown\n", "UnknownBackend", "backend", "objectstore.backend"},
		{"port as string", `{"redis": {"host": "cache.internal", "port": "6379"}}`, "InvalidType", "port", "redis.port"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, router, http.MethodPost, "/api/settings/validate", tc.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected status 422, got %d: %s", rec.Code, rec.Body.String())
			}

			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Kind != tc.kind || body.Key != tc.key || body.Path != tc.path {
				t.Fatalf("expected %s %s %s, got %+v", tc.kind, tc.key, tc.path, body)
			}
			if body.Details == "" {
				t.Fatalf("expected error details")
			}
		})
	}
}

func TestValidateSettingsRejectsUnparsableBody(t *testing.T) {
	router := setupTestRouter(t)

	rec := serve(t, router, http.MethodPost, "/api/settings/validate", "redis: [unterminated")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Suggestion == "" {
		t.Fatalf("expected a suggestion for unparsable bodies")
	}
}

func TestValidateSettingsLimitsBodySize(t *testing.T) {
	router := setupTestRouter(t, WithMaxBodyBytes(16))

	rec := serve(t, router, http.MethodPost, "/api/settings/validate", testFragment)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rec.Code)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	router := setupTestRouter(t)

	if rec := serve(t, router, http.MethodGet, "/api/unknown", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if rec := serve(t, router, http.MethodPut, "/api/settings", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestGetSettingsFollowsReplacement(t *testing.T) {
	store := newTestStore(t)
	router := setupTestRouterWithStore(t, store)

	replacement, err := settings.Load(settings.Bytes("reload", []byte("redis:\n  host: 10.0.0.5\n  port: 6380\n")))
	if err != nil {
		t.Fatalf("load replacement: %v", err)
	}
	if _, err := store.Replace(replacement); err != nil {
		t.Fatalf("replace: %v", err)
	}

	rec := serve(t, router, http.MethodGet, "/api/settings", "")
	if got := rec.Header().Get("X-Settings-Revision"); got != "2" {
		t.Fatalf("expected revision header 2, got %q", got)
	}
	var body map[string]map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, ok := body["objectstore"]; ok {
		t.Fatalf("expected objectstore section to be gone after replacement")
	}
	if body["redis"]["host"] != "10.0.0.5" {
		t.Fatalf("expected replaced host, got %v", body["redis"]["host"])
	}
}

type failingStore struct{}

func (failingStore) Current() (storage.Snapshot, error) {
	return storage.Snapshot{}, assertError("store unavailable")
}

func (failingStore) Replace(settings.Settings) (storage.Snapshot, error) {
	return storage.Snapshot{}, assertError("store unavailable")
}

func TestStoreFailureReturnsInternalError(t *testing.T) {
	router := setupTestRouterWithStore(t, failingStore{})

	for _, target := range []string{"/api/health", "/api/settings"} {
		rec := serve(t, router, http.MethodGet, target, "")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected status 500, got %d", target, rec.Code)
		}
	}
}
