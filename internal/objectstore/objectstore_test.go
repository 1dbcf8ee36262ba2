package objectstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenenazirov/storeconf/internal/settings"
)

func swiftSettings() settings.ObjectStoreSettings {
	return settings.ObjectStoreSettings{
		Backend:    settings.BackendSwift,
		Bucket:     "nextcloud",
		Autocreate: true,
		Credentials: settings.Credentials{
			Username:   "swift",
			Password:   "swift",
			DomainName: "default",
		},
		Scope: settings.Scope{
			ProjectName:       "service",
			ProjectDomainName: "default",
		},
		TenantName:  "service",
		Region:      "regionOne",
		AuthURL:     "http://keystone:5000/v3",
		ServiceName: "swift",
	}
}

func TestNewAuthOptionsWithProjectScope(t *testing.T) {
	opts := NewAuthOptions(swiftSettings())

	assert.Equal(t, "http://keystone:5000/v3", opts.IdentityEndpoint)
	assert.Equal(t, "swift", opts.Username)
	assert.Equal(t, "swift", opts.Password)
	assert.Equal(t, "default", opts.DomainName)
	assert.True(t, opts.AllowReauth)
	require.NotNil(t, opts.Scope)
	assert.Equal(t, "service", opts.Scope.ProjectName)
	assert.Equal(t, "default", opts.Scope.DomainName)
	assert.Empty(t, opts.TenantName)
}

func TestNewAuthOptionsFallsBackToTenant(t *testing.T) {
	cfg := swiftSettings()
	cfg.Scope = settings.Scope{}

	opts := NewAuthOptions(cfg)

	assert.Nil(t, opts.Scope)
	assert.Equal(t, "service", opts.TenantName)
}

func TestNewEndpointOpts(t *testing.T) {
	opts := NewEndpointOpts(swiftSettings())

	assert.Equal(t, "swift", opts.Name)
	assert.Equal(t, "regionOne", opts.Region)
	assert.Equal(t, gophercloud.AvailabilityPublic, opts.Availability)
}

type fakeSwift struct {
	mu       sync.Mutex
	head     int
	put      int
	requests []string
}

func (f *fakeSwift) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(f.head)
	case http.MethodPut:
		w.WriteHeader(f.put)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeSwift) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newFakeClient(t *testing.T, handler http.Handler) *gophercloud.ServiceClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &gophercloud.ServiceClient{
		ProviderClient: &gophercloud.ProviderClient{
			TokenID:    "test-token",
			HTTPClient: *server.Client(),
		},
		Endpoint: server.URL + "/",
	}
}

func TestEnsureBucket(t *testing.T) {
	t.Run("existing bucket", func(t *testing.T) {
		swift := &fakeSwift{head: http.StatusNoContent}
		client := newFakeClient(t, swift)

		require.NoError(t, EnsureBucket(context.Background(), client, swiftSettings()))
		assert.Equal(t, []string{"HEAD /nextcloud"}, swift.calls())
	})

	t.Run("creates missing bucket", func(t *testing.T) {
		swift := &fakeSwift{head: http.StatusNotFound, put: http.StatusCreated}
		client := newFakeClient(t, swift)

		require.NoError(t, EnsureBucket(context.Background(), client, swiftSettings()))
		assert.Equal(t, []string{"HEAD /nextcloud", "PUT /nextcloud"}, swift.calls())
	})

	t.Run("missing bucket without autocreate", func(t *testing.T) {
		swift := &fakeSwift{head: http.StatusNotFound}
		client := newFakeClient(t, swift)
		cfg := swiftSettings()
		cfg.Autocreate = false

		err := EnsureBucket(context.Background(), client, cfg)
		assert.ErrorIs(t, err, ErrBucketMissing)
		assert.Equal(t, []string{"HEAD /nextcloud"}, swift.calls())
	})

	t.Run("server error", func(t *testing.T) {
		swift := &fakeSwift{head: http.StatusInternalServerError}
		client := newFakeClient(t, swift)

		err := EnsureBucket(context.Background(), client, swiftSettings())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrBucketMissing)
	})
}
