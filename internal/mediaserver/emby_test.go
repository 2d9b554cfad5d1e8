// internal/mediaserver/emby_test.go
package mediaserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbyClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/System/Info", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Emby-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ServerName":"den","Version":"4.8.0.0"}`))
	}))
	defer server.Close()

	client := NewEmbyClient(server.URL, "test-key", nil)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestEmbyClient_Ping_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewEmbyClient(server.URL, "bad-key", nil)
	assert.Error(t, client.Ping(context.Background()))
}

func TestEmbyClient_RefreshItems(t *testing.T) {
	var got mediaUpdatedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Library/Media/Updated", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-Emby-Token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewEmbyClient(server.URL, "test-key", nil)
	err := client.RefreshItems(context.Background(), []RefreshItem{
		{Title: "Heat", Year: 1995, TargetPath: "/movies/Heat (1995)"},
	})
	require.NoError(t, err)

	require.Len(t, got.Updates, 1)
	assert.Equal(t, "/movies/Heat (1995)", got.Updates[0].Path)
	assert.Equal(t, "Created", got.Updates[0].UpdateType)
}

func TestEmbyClient_RefreshLibrary(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Library/Refresh", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewEmbyClient(server.URL, "test-key", nil)
	require.NoError(t, client.RefreshLibrary(context.Background()))
	assert.True(t, called)
}

func TestJellyfinClient_RefreshLibrary(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/System/Info":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ServerName":"jf","Version":"10.9.0"}`))
		case "/Library/Refresh":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "test-key", r.Header.Get("X-Emby-Token"))
			called = true
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewJellyfinClient(server.URL, "test-key", nil)
	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.RefreshLibrary(context.Background()))
	assert.True(t, called)
}

func TestJellyfinClient_RefreshLibrary_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewJellyfinClient(server.URL, "test-key", nil)
	assert.Error(t, client.RefreshLibrary(context.Background()))
}
