package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	_ "modernc.org/sqlite"

	"github.com/vmunix/arrfresh/internal/events"
	"github.com/vmunix/arrfresh/internal/mediaserver"
	"github.com/vmunix/arrfresh/internal/migrations"
	"github.com/vmunix/arrfresh/internal/registry"
	"github.com/vmunix/arrfresh/internal/registry/mocks"
)

type fakeClient struct {
	pingErr error
}

func (c *fakeClient) Ping(ctx context.Context) error { return c.pingErr }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "open db")
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(migrations.InitialSQL)
	require.NoError(t, err, "apply schema")
	return db
}

func newTestServer(t *testing.T, deps Deps) (*Server, *http.ServeMux) {
	t.Helper()
	if deps.Bus == nil {
		deps.Bus = events.NewBus(nil, discardLogger())
		t.Cleanup(func() { deps.Bus.Close() })
	}
	srv := New(deps, discardLogger())
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	return srv, mux
}

func TestNotifyTransfer(t *testing.T) {
	bus := events.NewBus(nil, discardLogger())
	defer bus.Close()
	received := bus.Subscribe(events.EventTransferCompleted, 10)

	_, mux := newTestServer(t, Deps{Bus: bus})

	body := `{
		"mediainfo": {"title": "The Thing", "year": 1982, "type": "movie", "category": "horror"},
		"transferinfo": {"target_diritem": {"path": "/media/movies/The Thing (1982)"}}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notify/transfer", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp notifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	_, err := uuid.Parse(resp.EventID)
	assert.NoError(t, err, "event ID should be a UUID")

	select {
	case e := <-received:
		tc := e.(*events.TransferCompleted)
		assert.Equal(t, "The Thing", tc.Media.Title)
		assert.Equal(t, 1982, tc.Media.Year)
		assert.Equal(t, "movie", tc.Media.Type)
		assert.Equal(t, "horror", tc.Media.Category)
		assert.Equal(t, "/media/movies/The Thing (1982)", tc.TargetPath)
		assert.Equal(t, resp.EventID, tc.EntityID())
	case <-time.After(time.Second):
		t.Fatal("event was not published")
	}
}

func TestNotifyTransfer_MissingTargetPath(t *testing.T) {
	bus := events.NewBus(nil, discardLogger())
	defer bus.Close()
	received := bus.Subscribe(events.EventTransferCompleted, 10)

	_, mux := newTestServer(t, Deps{Bus: bus})

	// The coordinator decides how to treat an empty path; ingestion
	// accepts the notification as-is.
	body := `{"mediainfo": {"title": "The Thing"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notify/transfer", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	select {
	case e := <-received:
		assert.Empty(t, e.(*events.TransferCompleted).TargetPath)
	case <-time.After(time.Second):
		t.Fatal("event was not published")
	}
}

func TestNotifyTransfer_InvalidJSON(t *testing.T) {
	_, mux := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notify/transfer", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func TestNotifyTransfer_MethodNotAllowed(t *testing.T) {
	_, mux := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notify/transfer", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGetStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Names().Return([]string{"plex", "emby"})

	_, mux := newTestServer(t, Deps{Provider: provider})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Servers)
}

func TestListServers(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	names := []string{"plex", "jellyfin"}
	provider.EXPECT().Names().Return(names)
	provider.EXPECT().Services(names).Return(map[string]registry.ServiceInfo{
		"plex": {
			Name:       "plex",
			Client:     &fakeClient{},
			Capability: mediaserver.CapabilityItems,
		},
		"jellyfin": {
			Name:       "jellyfin",
			Client:     &fakeClient{pingErr: assert.AnError},
			Capability: mediaserver.CapabilityLibrary,
		},
	})

	_, mux := newTestServer(t, Deps{Provider: provider})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/servers", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp []serverResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)

	byName := make(map[string]serverResponse)
	for _, sr := range resp {
		byName[sr.Name] = sr
	}
	assert.True(t, byName["plex"].Connected)
	assert.Equal(t, "items", byName["plex"].Capability)
	assert.False(t, byName["jellyfin"].Connected)
	assert.Equal(t, "library", byName["jellyfin"].Capability)
	assert.NotEmpty(t, byName["jellyfin"].Error)
}

func TestListEvents(t *testing.T) {
	db := setupTestDB(t)
	log := events.NewEventLog(db)

	for i := 0; i < 3; i++ {
		_, err := log.Append(&events.RefreshCompleted{
			BaseEvent:  events.NewBaseEvent(events.EventRefreshCompleted, events.EntityTransfer, uuid.NewString()),
			TargetPath: "/media/movies/Heat (1995)",
			Servers:    []string{"plex"},
		})
		require.NoError(t, err)
	}

	_, mux := newTestServer(t, Deps{EventLog: log})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=2", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp listEventsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 2)
	for _, item := range resp.Items {
		assert.Equal(t, events.EventRefreshCompleted, item.EventType)
		assert.Equal(t, events.EntityTransfer, item.EntityType)
	}
}

func TestListEvents_NoEventLog(t *testing.T) {
	_, mux := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListEvents_NegativeLimit(t *testing.T) {
	db := setupTestDB(t)
	_, mux := newTestServer(t, Deps{EventLog: events.NewEventLog(db)})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=-1", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogRequests(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := LogRequests(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), logger)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "path=/api/v1/status")
}
