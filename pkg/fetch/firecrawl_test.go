package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/image-scraper/pkg/config"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

const testAPIKey = "fc-test-key-1234567890"

func firecrawlConfig(baseURL, key string) config.AppConfig {
	return config.AppConfig{
		FirecrawlAPIKey:  key,
		FirecrawlBaseURL: baseURL,
		Timeout:          5 * time.Second,
	}
}

func TestFirecrawl_FetchHTML(t *testing.T) {
	var gotBody firecrawlRequest
	var gotAuth, gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `{"success":true,"data":{"html":"<img src=\"/x.png\">","markdown":"![](x.png)"}}`)
	}))
	t.Cleanup(server.Close)

	src := NewFirecrawlSource(testClient(), firecrawlConfig(server.URL+"/v1/", testAPIKey), testLogger())
	html, err := src.FetchHTML(context.Background(), "https://shop.example.com/p/1")
	require.NoError(t, err)

	assert.Equal(t, `<img src="/x.png">`, html)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v1/scrape", gotPath)
	assert.Equal(t, "Bearer "+testAPIKey, gotAuth)
	assert.Equal(t, "https://shop.example.com/p/1", gotBody.URL)
	assert.Equal(t, []string{"html", "markdown"}, gotBody.Formats)
}

func TestFirecrawl_FetchHTML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"api error message", http.StatusPaymentRequired, `{"success":false,"error":"Insufficient credits"}`, "scraping API error: Insufficient credits"},
		{"unknown api error", http.StatusInternalServerError, `not json`, "scraping API error: unknown API error"},
		{"missing html", http.StatusOK, `{"success":true,"data":{"markdown":"x"}}`, "scraping API error: invalid API response format"},
		{"missing data", http.StatusOK, `{"success":true}`, "scraping API error: invalid API response format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			t.Cleanup(server.Close)

			src := NewFirecrawlSource(testClient(), firecrawlConfig(server.URL, testAPIKey), testLogger())
			_, err := src.FetchHTML(context.Background(), "https://x.com")
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrRemoteAPI)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestFirecrawl_KeyCheckedBeforeRequest(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(server.Close)

	for _, key := range []string{"", "short", "  123456789 "} {
		src := NewFirecrawlSource(testClient(), firecrawlConfig(server.URL, key), testLogger())

		_, err := src.FetchHTML(context.Background(), "https://x.com")
		assert.ErrorIs(t, err, utils.ErrInvalidAPIKey, "key %q", key)
		assert.ErrorIs(t, src.ValidateAPIKey(context.Background()), utils.ErrInvalidAPIKey, "key %q", key)
	}
	assert.Zero(t, hits.Load())
}

func TestFirecrawl_ValidateAPIKey(t *testing.T) {
	tests := []struct {
		status  int
		wantErr bool
	}{
		{http.StatusOK, false},
		{http.StatusMethodNotAllowed, false},
		{http.StatusNotFound, false},
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var gotMethod string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(server.Close)

			src := NewFirecrawlSource(testClient(), firecrawlConfig(server.URL, testAPIKey), testLogger())
			err := src.ValidateAPIKey(context.Background())
			assert.Equal(t, http.MethodGet, gotMethod)
			if tt.wantErr {
				assert.ErrorIs(t, err, utils.ErrInvalidAPIKey)
				assert.Equal(t, "RemoteAPI_InvalidKey", utils.CategorizeError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFirecrawl_DefaultBaseURL(t *testing.T) {
	src := NewFirecrawlSource(testClient(), config.AppConfig{}, testLogger())
	assert.Equal(t, config.DefaultFirecrawlBaseURL, src.baseURL)
}
