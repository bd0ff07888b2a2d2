package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/f1dq/pkg/config"
	"github.com/wonny/f1dq/pkg/httputil"
	"github.com/wonny/f1dq/pkg/logger"
)

func testClient() *httputil.Client {
	cfg := &config.Config{
		Fetch: config.FetchConfig{
			RatePerSec: 1000,
			Burst:      10,
			Timeout:    5 * time.Second,
			MaxRetries: 1,
		},
	}
	return httputil.New(cfg, logger.Nop()).WithRetry(1, time.Millisecond)
}

// server serves the given files by path; anything else is a 404
func server(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	srv := server(t, map[string]string{
		"/f1/status.csv": "statusId,status\n1,Finished\n",
		"/f1/races.csv":  "raceId,year\n1,2009\n",
	})
	dir := filepath.Join(t.TempDir(), "raw")

	var mu sync.Mutex
	var seen []string
	f := New(testClient(), srv.URL+"/f1/", dir, logger.Nop())
	summary, err := f.Fetch(context.Background(), []string{"status", "races", "sprint_results"}, func(table string, _ int64) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, table)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"status", "races", "sprint_results"}, seen)
	assert.Equal(t, []string{"sprint_results"}, summary.Missing())
	require.Len(t, summary.Files, 3)

	status := summary.Files[0]
	assert.Equal(t, srv.URL+"/f1/status.csv", status.URL)
	assert.Equal(t, filepath.Join(dir, "status.csv"), status.Path)
	assert.Equal(t, int64(len("statusId,status\n1,Finished\n")), status.Bytes)

	content, err := os.ReadFile(status.Path)
	require.NoError(t, err)
	assert.Equal(t, "statusId,status\n1,Finished\n", string(content))

	assert.Empty(t, summary.Files[2].Path)
	_, err = os.Stat(filepath.Join(dir, "sprint_results.csv"))
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	dir := t.TempDir()

	f := New(testClient(), srv.URL, dir, logger.Nop())
	_, err := f.Fetch(context.Background(), []string{"results"}, nil)
	require.Error(t, err)

	var statusErr *httputil.StatusError
	assert.ErrorAs(t, err, &statusErr)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetch_KeepsExistingFileOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	dir := t.TempDir()
	existing := filepath.Join(dir, "results.csv")
	require.NoError(t, os.WriteFile(existing, []byte("resultId\n1\n"), 0o644))

	_, err := New(testClient(), srv.URL, dir, logger.Nop()).Fetch(context.Background(), []string{"results"}, nil)
	require.Error(t, err)

	content, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "resultId\n1\n", string(content))
}

func TestFetch_Cancelled(t *testing.T) {
	srv := server(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testClient(), srv.URL, t.TempDir(), logger.Nop()).Fetch(ctx, []string{"status"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestURL(t *testing.T) {
	f := New(testClient(), "https://example.com/data/", t.TempDir(), logger.Nop())
	assert.Equal(t, "https://example.com/data/lap_times.csv", f.URL("lap_times"))
}
