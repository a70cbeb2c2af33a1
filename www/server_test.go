package www

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angas/dkspot/config"
	"github.com/angas/dkspot/database"
	"github.com/angas/dkspot/metrics"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	rows  []database.PipelineRunRow
	err   error
	limit int
}

func (f *fakeStore) GetLogEntries(ctx context.Context, q database.LogQuery) ([]database.LogEntryRow, bool, error) {
	return nil, false, f.err
}

func (f *fakeStore) GetRecentPipelineRuns(ctx context.Context, limit int) ([]database.PipelineRunRow, error) {
	f.limit = limit
	return f.rows, f.err
}

func intPtr(v int) *int { return &v }

func newTestServer(t *testing.T, apiCnfg config.AppConfigApi, store Store, liveReload bool) (*Server, *httptest.Server, string) {
	t.Helper()
	chartPath := filepath.Join(t.TempDir(), "chart.html")
	s := NewServer(apiCnfg, chartPath, store, metrics.New(), liveReload)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, s.Start(ctx))

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv, chartPath
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestWelcome(t *testing.T) {
	_, srv, _ := newTestServer(t, config.AppConfigApi{}, nil, false)

	resp, body := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, welcomeText, body)

	resp, _ = get(t, srv.URL+"/nothing-here")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGraphNotAvailableBeforeFirstRun(t *testing.T) {
	_, srv, _ := newTestServer(t, config.AppConfigApi{}, nil, false)

	resp, body := get(t, srv.URL+"/graph")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Graph not available", body)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestGraphServesLatestFile(t *testing.T) {
	_, srv, chartPath := newTestServer(t, config.AppConfigApi{}, nil, false)

	require.NoError(t, os.WriteFile(chartPath, []byte("<html>first</html>"), 0o644))
	resp, body := get(t, srv.URL+"/graph")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>first</html>", body)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "public, max-age=21600", resp.Header.Get("Cache-Control"))

	require.NoError(t, os.WriteFile(chartPath, []byte("<html>second</html>"), 0o644))
	_, body = get(t, srv.URL+"/graph")
	assert.Equal(t, "<html>second</html>", body)
}

func TestGraphCacheHeaderDisabled(t *testing.T) {
	_, srv, chartPath := newTestServer(t, config.AppConfigApi{CacheMaxAge: intPtr(0)}, nil, false)
	require.NoError(t, os.WriteFile(chartPath, []byte("<html></html>"), 0o644))

	resp, _ := get(t, srv.URL+"/graph")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Cache-Control"))
}

func TestGraphRejectsOtherMethods(t *testing.T) {
	_, srv, _ := newTestServer(t, config.AppConfigApi{}, nil, false)

	resp, err := http.Post(srv.URL+"/graph", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGraphIsCompressed(t *testing.T) {
	_, srv, chartPath := newTestServer(t, config.AppConfigApi{}, nil, false)
	require.NoError(t, os.WriteFile(chartPath, []byte(strings.Repeat("<p>price</p>", 500)), 0o644))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/graph", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
}

func TestRuns(t *testing.T) {
	started := time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)
	runs := &fakeStore{rows: []database.PipelineRunRow{
		{ID: "abc", StartedAt: started, FinishedAt: started.Add(time.Second), Status: database.RunStatusOK, Rows: 48},
	}}
	_, srv, _ := newTestServer(t, config.AppConfigApi{}, runs, false)

	resp, body := get(t, srv.URL+"/runs?limit=5000")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, maxRunsLimit, runs.limit)
	assert.Contains(t, body, `"id":"abc"`)
	assert.Contains(t, body, `"rows":48`)

	resp, _ = get(t, srv.URL+"/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	runs.err = errors.New("database is locked")
	resp, _ = get(t, srv.URL+"/runs")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, defaultRunsLimit, runs.limit)
}

func TestHealthAndMetrics(t *testing.T) {
	_, srv, _ := newTestServer(t, config.AppConfigApi{}, nil, false)

	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)

	_, _ = get(t, srv.URL+"/graph")
	resp, body = get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `dkspot_graph_requests_total{status="404"} 1`)
}

func TestLiveReloadNotifiesClients(t *testing.T) {
	s, srv, chartPath := newTestServer(t, config.AppConfigApi{}, nil, true)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(chartPath, []byte("<html></html>"), 0o644))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "reload", string(msg))
}

func TestNoWebsocketWithoutLiveReload(t *testing.T) {
	_, srv, _ := newTestServer(t, config.AppConfigApi{}, nil, false)

	resp, _ := get(t, srv.URL+"/ws")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLogs(t *testing.T) {
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	ctx := context.Background()
	require.NoError(t, db.SaveLogEntry(ctx, database.LogEntryRow{Level: int(slog.LevelInfo), Message: "price chart task done"}))
	require.NoError(t, db.SaveLogEntry(ctx, database.LogEntryRow{Level: int(slog.LevelError), Message: "price chart task error", Attrs: `{"kind":"fetch"}`}))

	_, srv, _ := newTestServer(t, config.AppConfigApi{}, db, false)

	resp, body := get(t, srv.URL+"/logs?level=warn")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var page struct {
		Page     int  `json:"page"`
		NextPage *int `json:"nextPage"`
		Entries  []struct {
			Level   string `json:"level"`
			Message string `json:"message"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	assert.Equal(t, 1, page.Page)
	assert.Nil(t, page.NextPage)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "ERROR", page.Entries[0].Level)
	assert.Equal(t, "price chart task error", page.Entries[0].Message)

	_, body = get(t, srv.URL+"/logs?pageSize=1")
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	require.NotNil(t, page.NextPage)
	assert.Equal(t, 2, *page.NextPage)

	resp, _ = get(t, srv.URL+"/logs?page=0")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
