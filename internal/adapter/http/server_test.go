package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/quake-report/internal/adapter/http"
	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/loader"
	"github.com/couchcryptid/quake-report/internal/present"
	"github.com/couchcryptid/quake-report/internal/screen"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScreen struct {
	mu        sync.Mutex
	snap      screen.Snapshot
	ready     bool
	refreshes int
	updates   chan screen.Snapshot
}

func (f *fakeScreen) CheckReadiness(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		return screen.ErrNotLoaded
	}
	return nil
}

func (f *fakeScreen) Snapshot() (screen.Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.ready
}

func (f *fakeScreen) Subscribe() (<-chan screen.Snapshot, func()) {
	return f.updates, func() {}
}

func (f *fakeScreen) Refresh() {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
}

func loadedSnapshot(t *testing.T) screen.Snapshot {
	t.Helper()
	eq, err := domain.NewEarthquake(7.2, "88km N of Yelizovo, Russia", 1454124312220, "https://feed.test/a")
	require.NoError(t, err)
	quakes := []domain.Earthquake{eq}
	return screen.Snapshot{
		LoadID:      "load-1",
		FetchedAt:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Outcome:     loader.OutcomeOK,
		Earthquakes: quakes,
		Rows:        present.Rows(quakes, time.UTC),
	}
}

func newTestServer(f *fakeScreen) *httpadapter.Server {
	return httpadapter.NewServer(":0", f, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&fakeScreen{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	t.Run("before first load", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestServer(&fakeScreen{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("after first load", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestServer(&fakeScreen{ready: true}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeScreen{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestListEndpoint_Loaded(t *testing.T) {
	srv := newTestServer(&fakeScreen{snap: loadedSnapshot(t), ready: true})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/earthquakes", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"load_id": "load-1",
		"fetched_at": "2024-06-01T12:00:00Z",
		"outcome": "ok",
		"count": 1,
		"rows": [{
			"magnitude": "7.2",
			"bucket": "magnitude7",
			"color": "#E75F40",
			"location_offset": "88km N of",
			"location_primary": "Yelizovo, Russia",
			"date": "Jan 30, 2016",
			"time": "3:25 AM",
			"url": "https://feed.test/a"
		}]
	}`, rec.Body.String())
}

func TestListEndpoint_EmptyShowsMessage(t *testing.T) {
	snap := screen.Snapshot{LoadID: "load-2", Outcome: loader.OutcomeNetworkFailure, Rows: []present.Row{}}
	srv := newTestServer(&fakeScreen{snap: snap, ready: true})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/earthquakes", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, present.EmptyMessage, body["empty_message"])
	assert.Equal(t, "network_failure", body["outcome"])
	assert.InDelta(t, 0, body["count"], 0)
	assert.Equal(t, []any{}, body["rows"])
}

func TestListEndpoint_BeforeFirstLoad(t *testing.T) {
	srv := newTestServer(&fakeScreen{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/earthquakes", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "load_id")
	assert.NotContains(t, body, "fetched_at")
	assert.Equal(t, []any{}, body["rows"])
}

func TestRefreshEndpoint(t *testing.T) {
	f := &fakeScreen{}
	srv := newTestServer(f)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, f.refreshes)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/refresh", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func dialStream(t *testing.T, srv http.Handler) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/earthquakes", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
		_ = conn.Close()
	})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readList(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, conn.ReadJSON(&body))
	return body
}

func TestStream_SendsEachSnapshot(t *testing.T) {
	f := &fakeScreen{updates: make(chan screen.Snapshot, 2)}
	conn := dialStream(t, newTestServer(f))

	first := readList(t, conn)
	assert.Equal(t, present.EmptyMessage, first["empty_message"])

	f.updates <- loadedSnapshot(t)
	second := readList(t, conn)
	assert.Equal(t, "load-1", second["load_id"])
	assert.InDelta(t, 1, second["count"], 0)

	f.updates <- screen.Snapshot{LoadID: "load-2", Outcome: loader.OutcomeEmpty, Rows: []present.Row{}}
	third := readList(t, conn)
	assert.Equal(t, "load-2", third["load_id"])
	assert.InDelta(t, 0, third["count"], 0)
}

func TestStream_ClosesWithScreen(t *testing.T) {
	f := &fakeScreen{ready: true, updates: make(chan screen.Snapshot, 1)}
	f.updates <- loadedSnapshot(t)
	conn := dialStream(t, newTestServer(f))

	assert.Equal(t, "load-1", readList(t, conn)["load_id"])

	close(f.updates)
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}
