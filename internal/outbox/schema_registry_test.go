package outbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureSchemaReturnsExistingID(t *testing.T) {
	var posts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/subjects/footprint_activity_events-value/versions/latest":
			w.Header().Set("Content-Type", registryContentType)
			_, _ = w.Write([]byte(`{"id": 17, "version": 3}`))
		case r.Method == http.MethodPost:
			posts++
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewSchemaRegistryClient(server.URL)

	id, err := client.EnsureSchema(context.Background(), "footprint_activity_events-value", activityRecordedSchema)
	require.NoError(t, err)
	require.Equal(t, 17, id)
	require.Zero(t, posts, "existing subject must not be re-registered")
}

func TestEnsureSchemaRegistersMissingSubject(t *testing.T) {
	var registeredContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/subjects/footprint_cache_events-value/versions":
			registeredContentType = r.Header.Get("Content-Type")
			w.Header().Set("Content-Type", registryContentType)
			_, _ = w.Write([]byte(`{"id": 4}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client := NewSchemaRegistryClient(server.URL)

	id, err := client.EnsureSchema(context.Background(), "footprint_cache_events-value", footprintRefreshedSchema)
	require.NoError(t, err)
	require.Equal(t, 4, id)
	require.Equal(t, registryContentType, registeredContentType)
}

func TestEnsureSchemaPropagatesRegistryOutage(t *testing.T) {
	var posts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error_code": 50301, "message": "store is unavailable"}`))
	}))
	defer server.Close()

	client := NewSchemaRegistryClient(server.URL)

	_, err := client.EnsureSchema(context.Background(), "footprint_activity_events-value", activityRecordedSchema)
	require.Error(t, err)
	require.Contains(t, err.Error(), "schema registry")
	require.Zero(t, posts, "an outage must not trigger a register attempt")
}
