package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Sriram-PR/image-scraper/pkg/models"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

// Bounds for user-tunable extraction settings
const (
	DefaultMaxImages = 50
	MinMaxImages     = 1
	MaxMaxImages     = 500

	DefaultTimeout = 30 * time.Second
	MinTimeout     = 5 * time.Second
	MaxTimeout     = 300 * time.Second

	DefaultMaxDownloadsPerHost = 2
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// ScrapingMethod
	switch c.ScrapingMethod {
	case "":
		c.ScrapingMethod = ScrapingMethodSimple
	case ScrapingMethodSimple, ScrapingMethodFirecrawl:
	default:
		return warnings, fmt.Errorf("%w: unknown scraping_method %q (supported: %s, %s)",
			utils.ErrConfigValidation, c.ScrapingMethod, ScrapingMethodSimple, ScrapingMethodFirecrawl)
	}
	if c.ScrapingMethod == ScrapingMethodFirecrawl && c.FirecrawlAPIKey == "" {
		warnings = append(warnings, "scraping_method is 'firecrawl' but firecrawl_api_key is empty; scrapes will fail")
	}
	if c.FirecrawlBaseURL == "" {
		c.FirecrawlBaseURL = DefaultFirecrawlBaseURL
	}

	// MaxImages
	switch {
	case c.MaxImages == 0:
		c.MaxImages = DefaultMaxImages
	case c.MaxImages < MinMaxImages:
		warnings = append(warnings, fmt.Sprintf("max_images must be >= %d, setting to %d", MinMaxImages, MinMaxImages))
		c.MaxImages = MinMaxImages
	case c.MaxImages > MaxMaxImages:
		warnings = append(warnings, fmt.Sprintf("max_images (%d) exceeds %d, clamping", c.MaxImages, MaxMaxImages))
		c.MaxImages = MaxMaxImages
	}

	// Timeout
	switch {
	case c.Timeout == 0:
		c.Timeout = DefaultTimeout
	case c.Timeout < MinTimeout:
		warnings = append(warnings, fmt.Sprintf("timeout (%v) below minimum, setting to %v", c.Timeout, MinTimeout))
		c.Timeout = MinTimeout
	case c.Timeout > MaxTimeout:
		warnings = append(warnings, fmt.Sprintf("timeout (%v) above maximum, setting to %v", c.Timeout, MaxTimeout))
		c.Timeout = MaxTimeout
	}

	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// PlaceholderPatterns
	if _, err := utils.CompileRegexPatterns(c.PlaceholderPatterns); err != nil {
		return warnings, err
	}

	// MaxRetries (total attempts, so at least one)
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, defaulting to 3")
		c.MaxRetries = 3
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialRetryDelay <= 0 {
		c.InitialRetryDelay = 1 * time.Second
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = 60 * time.Second
	}

	// MaxDownloadBytes
	if c.MaxDownloadBytes < 0 {
		warnings = append(warnings, "max_download_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxDownloadBytes = 0
	}

	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}

	// LibraryDir
	if c.LibraryDir == "" {
		warnings = append(warnings, "library_dir is empty, defaulting to './media'")
		c.LibraryDir = "./media"
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './image_scraper_state'")
		c.StateDir = "./image_scraper_state"
	}

	// CatalogBackend
	switch c.CatalogBackend {
	case "":
		c.CatalogBackend = CatalogBackendBadger
	case CatalogBackendBadger:
	case CatalogBackendPostgres:
		if c.PostgresDSN == "" {
			return warnings, fmt.Errorf("%w: catalog_backend 'postgres' needs postgres_dsn", utils.ErrConfigValidation)
		}
	default:
		return warnings, fmt.Errorf("%w: unknown catalog_backend %q (supported: %s, %s)",
			utils.ErrConfigValidation, c.CatalogBackend, CatalogBackendBadger, CatalogBackendPostgres)
	}

	// ImportConcurrency
	if c.ImportConcurrency < 0 {
		warnings = append(warnings, "import_concurrency cannot be negative, defaulting to 1 (sequential)")
		c.ImportConcurrency = 1
	}
	if c.ImportConcurrency == 0 {
		c.ImportConcurrency = 1
	}
	if c.MaxDownloadsPerHost <= 0 {
		c.MaxDownloadsPerHost = DefaultMaxDownloadsPerHost
	}

	warnings = append(warnings, c.validateImportDefaults()...)

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateImportDefaults clears out-of-range values in the default import options.
func (c *AppConfig) validateImportDefaults() (warnings []string) {
	d := &c.ImportDefaults
	d.ConvertFormat = d.ConvertFormat.Normalize()
	if d.ConvertFormat != models.FormatNone && !d.ConvertFormat.IsValid() {
		warnings = append(warnings, fmt.Sprintf("import_defaults.convert_format %q is not supported, ignoring", d.ConvertFormat))
		d.ConvertFormat = models.FormatNone
	}
	if d.MaxWidth < 0 {
		warnings = append(warnings, "import_defaults.max_width cannot be negative, setting to 0 (unlimited)")
		d.MaxWidth = 0
	}
	if d.MaxFilesize < 0 {
		warnings = append(warnings, "import_defaults.max_filesize cannot be negative, setting to 0 (unlimited)")
		d.MaxFilesize = 0
	}
	return warnings
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		// Ceiling only; page and download timeouts are applied per request
		h.Timeout = max(45*time.Second, c.Timeout, c.DownloadTimeout)
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
