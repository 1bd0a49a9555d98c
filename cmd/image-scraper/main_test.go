package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/image-scraper/pkg/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath
}

// storeConfig returns a config with its library and state inside a temp dir
func storeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	return writeConfig(t, fmt.Sprintf(`
library_dir: %q
state_dir: %q
temp_dir: %q
max_retries: 1
initial_retry_delay: 1ms
%s`, filepath.Join(dir, "media"), filepath.Join(dir, "state"), dir, extra))
}

// newSite serves a page with two gallery images and one logo, plus a missing image
func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 12, 8))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	imgData := buf.Bytes()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>
			<img class="gallery" src="/img/one.png" alt="One" width="12" height="8">
			<img class="gallery wide" src="/img/two.png">
			<img class="logo" src="/img/logo.png">
		</body></html>`)
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(imgData)
	})
	mux.HandleFunc("/missing.png", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	site := httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site
}

func writeBatch(t *testing.T, batch map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(batch)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	cfgPath := writeConfig(t, `
scraping_method: simple
max_images: 25
library_dir: "./media"
import_concurrency: 4
import_defaults:
  convert_format: webp
  max_width: 1200
`)

	cfg, err := loadConfig(cfgPath)

	require.NoError(t, err)
	assert.Equal(t, 25, cfg.MaxImages)
	assert.Equal(t, 4, cfg.ImportConcurrency)
	assert.Equal(t, models.FormatWebP, cfg.ImportDefaults.ConvertFormat)
	assert.Equal(t, 1200, cfg.ImportDefaults.MaxWidth)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := loadConfig("/nonexistent/path/config.yaml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	cfgPath := writeConfig(t, "{{invalid yaml")

	_, err := loadConfig(cfgPath)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestDoValidate_AppliesDefaults(t *testing.T) {
	cfgPath := writeConfig(t, "max_images: 0\n")

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	out := stdout.String()
	assert.Contains(t, out, "WARN: library_dir is empty")
	assert.Contains(t, out, "OK: scraping_method=simple max_images=50")
	assert.Contains(t, out, "catalog_backend=badger")
	assert.Contains(t, out, "Configuration valid")
}

func TestDoValidate_InvalidConfig(t *testing.T) {
	cfgPath := writeConfig(t, "scraping_method: telepathy\n")

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "ERROR")
	assert.Contains(t, stderr.String(), "telepathy")
}

func TestDoValidate_ConfigNotFound(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doValidate("/nonexistent.yaml", &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error")
}

func TestDoScrape(t *testing.T) {
	site := newSite(t)
	cfgPath := storeConfig(t, "")

	var stdout, stderr bytes.Buffer
	exitCode := doScrape(context.Background(), cfgPath, site.URL+"/page", "gallery", "", "error", &stdout, &stderr)
	require.Equal(t, 0, exitCode, stderr.String())

	var res struct {
		Images      []models.ImageRecord `json:"images"`
		ImagesCount int                  `json:"images_count"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	require.Equal(t, 2, res.ImagesCount)
	require.Len(t, res.Images, 2)
	assert.Equal(t, site.URL+"/img/one.png", res.Images[0].URL)
	assert.Equal(t, "One", res.Images[0].Alt)
	require.NotNil(t, res.Images[0].Width)
	assert.Equal(t, 12, *res.Images[0].Width)
	assert.Nil(t, res.Images[1].Width)
}

func TestDoScrape_WritesOutFile(t *testing.T) {
	site := newSite(t)
	cfgPath := storeConfig(t, "")
	outPath := filepath.Join(t.TempDir(), "scraped.json")

	var stdout, stderr bytes.Buffer
	exitCode := doScrape(context.Background(), cfgPath, site.URL+"/page", "", outPath, "error", &stdout, &stderr)
	require.Equal(t, 0, exitCode, stderr.String())
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"images_count": 3`)
}

func TestDoScrape_InvalidURL(t *testing.T) {
	cfgPath := storeConfig(t, "")

	var stdout, stderr bytes.Buffer
	exitCode := doScrape(context.Background(), cfgPath, "not a url", "", "", "error", &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "please provide a valid URL")
}

func TestDoImport_PartialFailureThenAssets(t *testing.T) {
	site := newSite(t)
	cfgPath := storeConfig(t, "")
	batchPath := writeBatch(t, map[string]interface{}{
		"images": []map[string]interface{}{
			{"url": site.URL + "/img/one.png", "alt": "One", "filename": "one.png"},
			{"url": site.URL + "/missing.png", "filename": "missing.png"},
		},
		"options": map[string]interface{}{"image_alt": "Gallery"},
	})

	var stdout, stderr bytes.Buffer
	exitCode := doImport(context.Background(), cfgPath, batchPath, "", "error", nil, &stdout, &stderr)
	assert.Equal(t, 1, exitCode, "a failed item makes the command fail")

	var res models.ImportResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	assert.Equal(t, 1, res.ImportedCount)
	assert.Equal(t, 2, res.TotalCount)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "missing.png: could not download"), res.Errors[0])

	stdout.Reset()
	exitCode = doAssets(context.Background(), cfgPath, 0, true, "error", &stdout, &stderr)
	require.Equal(t, 0, exitCode, stderr.String())

	var assets []models.Asset
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &assets))
	require.Len(t, assets, 1)
	assert.Equal(t, "image/png", assets[0].MIMEType)
	assert.Equal(t, "Gallery", assets[0].AltText)
	assert.Equal(t, res.AssetIDs[0], assets[0].ID)
}

func TestDoImport_FromStdin(t *testing.T) {
	site := newSite(t)
	cfgPath := storeConfig(t, "import_concurrency: 2\n")
	batch := fmt.Sprintf(`{"images": [{"url": %q, "filename": "a.png"}, {"url": %q, "filename": "b.png"}]}`,
		site.URL+"/img/a.png", site.URL+"/img/b.png")

	var stdout, stderr bytes.Buffer
	exitCode := doImport(context.Background(), cfgPath, "-", "", "error", strings.NewReader(batch), &stdout, &stderr)
	require.Equal(t, 0, exitCode, stderr.String())

	var res models.ImportResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	assert.Equal(t, 2, res.ImportedCount)
	assert.Empty(t, res.Errors)

	stdout.Reset()
	exitCode = doAssets(context.Background(), cfgPath, 20, false, "error", &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "2 asset(s)")
}

func TestDoImport_BadBatch(t *testing.T) {
	cfgPath := storeConfig(t, "")

	var stdout, stderr bytes.Buffer
	exitCode := doImport(context.Background(), cfgPath, "-", "", "error", strings.NewReader(`{"images": []}`), &stdout, &stderr)
	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "no images provided")

	stderr.Reset()
	exitCode = doImport(context.Background(), cfgPath, "-", "", "error", strings.NewReader(`[not json`), &stdout, &stderr)
	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "batch JSON")

	stderr.Reset()
	exitCode = doImport(context.Background(), cfgPath, "/nonexistent/batch.json", "", "error", nil, &stdout, &stderr)
	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "read batch")
}

func TestDoValidateAPIKey_RequiresFirecrawl(t *testing.T) {
	cfgPath := storeConfig(t, "")

	var stdout, stderr bytes.Buffer
	exitCode := doValidateAPIKey(context.Background(), cfgPath, "error", &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "only available when scraping_method is 'firecrawl'")
}

func TestDoValidateAPIKey(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer api.Close()
	cfgPath := storeConfig(t, fmt.Sprintf("scraping_method: firecrawl\nfirecrawl_api_key: fc-0123456789\nfirecrawl_base_url: %q\n", api.URL))

	var stdout, stderr bytes.Buffer
	exitCode := doValidateAPIKey(context.Background(), cfgPath, "error", &stdout, &stderr)
	assert.Equal(t, 0, exitCode, stderr.String())
	assert.Contains(t, stdout.String(), "API key is valid")

	status.Store(http.StatusUnauthorized)
	stdout.Reset()
	exitCode = doValidateAPIKey(context.Background(), cfgPath, "error", &stdout, &stderr)
	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "invalid API key")
}

func TestDoMcpServer_InvalidLogLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doMcpServer(context.Background(), "config.yaml", "stdio", 8080, "", "loud", &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Invalid log level")
}

func TestDoMcpServer_UnknownTransport(t *testing.T) {
	cfgPath := storeConfig(t, "")

	var stdout, stderr bytes.Buffer
	exitCode := doMcpServer(context.Background(), cfgPath, "carrier-pigeon", 0, "", "error", &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "unknown transport")
}

func TestPrintUsageTo(t *testing.T) {
	var buf bytes.Buffer
	printUsageTo(&buf)

	out := buf.String()
	for _, cmd := range []string{"scrape", "import", "assets", "validate", "validate-api-key", "mcp-server", "version"} {
		assert.Contains(t, out, cmd)
	}
}
