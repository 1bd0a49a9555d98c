package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/image-scraper/pkg/config"
	"github.com/Sriram-PR/image-scraper/pkg/metrics"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testClient returns an http.Client suitable for testing
func testClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func testDownloadConfig(t *testing.T, maxRetries int) config.AppConfig {
	t.Helper()
	return config.AppConfig{
		MaxRetries:        maxRetries,
		InitialRetryDelay: time.Millisecond,
		DownloadTimeout:   5 * time.Second,
		TempDir:           t.TempDir(),
		UserAgent:         "image-scraper-test",
	}
}

// mockServer creates an httptest.Server that returns status codes in sequence, writing body on 2xx.
// Returns the server and an atomic counter tracking request attempts.
func mockServer(t *testing.T, statusCodes []int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	attemptCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := int(attemptCount.Add(1)) - 1
		if idx >= len(statusCodes) {
			idx = len(statusCodes) - 1 // repeat last status
		}
		w.WriteHeader(statusCodes[idx])
		if statusCodes[idx] < 300 {
			io.WriteString(w, body)
		}
	}))
	t.Cleanup(server.Close)
	return server, attemptCount
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestDownload_Success(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		io.WriteString(w, "fake image bytes")
	}))
	t.Cleanup(server.Close)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	cfg := testDownloadConfig(t, 3)
	d := NewDownloader(testClient(), cfg, m, testLogger())

	path, err := d.Download(context.Background(), server.URL+"/a.jpg")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake image bytes", string(data))
	assert.True(t, strings.HasPrefix(path, cfg.TempDir))
	assert.Equal(t, "image-scraper-test", gotUA)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DownloadAttempts))
}

func TestDownload_RetriesThenSucceeds(t *testing.T) {
	server, attempts := mockServer(t, []int{500, 503, 200}, "ok")
	cfg := testDownloadConfig(t, 3)
	d := NewDownloader(testClient(), cfg, nil, testLogger())

	path, err := d.Download(context.Background(), server.URL)
	require.NoError(t, err)
	os.Remove(path)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestDownload_ExhaustsRetries(t *testing.T) {
	tests := []struct {
		name     string
		statuses []int
		sentinel error
	}{
		{"server errors", []int{500}, utils.ErrServerHTTPError},
		{"not found is retried too", []int{404}, utils.ErrClientHTTPError},
		{"rate limited", []int{429}, utils.ErrClientHTTPError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, attempts := mockServer(t, tt.statuses, "")
			cfg := testDownloadConfig(t, 3)
			d := NewDownloader(testClient(), cfg, nil, testLogger())

			path, err := d.Download(context.Background(), server.URL)
			require.Error(t, err)
			assert.Empty(t, path)
			assert.Equal(t, int32(3), attempts.Load())

			var dlErr *DownloadError
			require.True(t, errors.As(err, &dlErr))
			assert.Equal(t, 3, dlErr.Attempts)
			assert.Equal(t, server.URL, dlErr.URL)
			assert.ErrorIs(t, err, utils.ErrDownloadFailed)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, strings.HasPrefix(err.Error(), "failed after 3 attempts: HTTP error "))
			assert.Zero(t, dirEntries(t, cfg.TempDir), "no temp files left behind")
		})
	}
}

func TestDownload_BackoffSequence(t *testing.T) {
	server, _ := mockServer(t, []int{500}, "")
	cfg := testDownloadConfig(t, 4)

	var delays []time.Duration
	d := NewDownloader(testClient(), cfg, nil, testLogger()).WithBackoff(func(attempt int) time.Duration {
		delays = append(delays, ExponentialBackoff(time.Second)(attempt))
		return 0
	})

	_, err := d.Download(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
}

func TestDownload_EmptyBodyIsFailure(t *testing.T) {
	server, attempts := mockServer(t, []int{200}, "")
	cfg := testDownloadConfig(t, 2)
	d := NewDownloader(testClient(), cfg, nil, testLogger())

	_, err := d.Download(context.Background(), server.URL)
	assert.ErrorIs(t, err, utils.ErrEmptyResponse)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Zero(t, dirEntries(t, cfg.TempDir))
}

func TestDownload_TooLargeIsPermanent(t *testing.T) {
	server, attempts := mockServer(t, []int{200}, strings.Repeat("x", 2048))
	cfg := testDownloadConfig(t, 3)
	cfg.MaxDownloadBytes = 1024
	d := NewDownloader(testClient(), cfg, nil, testLogger())

	_, err := d.Download(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrTooLarge)
	assert.ErrorIs(t, err, utils.ErrDownloadFailed)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, "Download_TooLarge", utils.CategorizeError(err))
	assert.Zero(t, dirEntries(t, cfg.TempDir))
}

func TestDownload_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	cfg := testDownloadConfig(t, 2)
	d := NewDownloader(testClient(), cfg, nil, testLogger())

	_, err := d.Download(context.Background(), addr)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrDownloadFailed)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
}

func TestDownload_InvalidURLIsPermanent(t *testing.T) {
	cfg := testDownloadConfig(t, 3)
	d := NewDownloader(testClient(), cfg, nil, testLogger())

	_, err := d.Download(context.Background(), "http://[::1")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRequestCreation)

	var dlErr *DownloadError
	require.True(t, errors.As(err, &dlErr))
	assert.Equal(t, 1, dlErr.Attempts)
}

func TestDownload_LogsStatusCodePerAttempt(t *testing.T) {
	server, _ := mockServer(t, []int{503, 404}, "")
	logger, hook := test.NewNullLogger()
	d := NewDownloader(testClient(), testDownloadConfig(t, 2), nil, logrus.NewEntry(logger))

	_, err := d.Download(context.Background(), server.URL+"/a.jpg")
	require.Error(t, err)

	var codes []interface{}
	for _, entry := range hook.AllEntries() {
		if strings.HasPrefix(entry.Message, "Download attempt failed") {
			codes = append(codes, entry.Data["status_code"])
		}
	}
	assert.Equal(t, []interface{}{503, 404}, codes)
}

func TestDownload_TransportFailureLogsNoStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	imageURL := server.URL + "/a.jpg"
	server.Close()
	logger, hook := test.NewNullLogger()
	d := NewDownloader(testClient(), testDownloadConfig(t, 1), nil, logrus.NewEntry(logger))

	_, err := d.Download(context.Background(), imageURL)
	require.Error(t, err)

	var failures int
	for _, entry := range hook.AllEntries() {
		if strings.HasPrefix(entry.Message, "Download attempt failed") {
			failures++
			assert.NotContains(t, entry.Data, "status_code")
		}
	}
	assert.Equal(t, 1, failures)
}
