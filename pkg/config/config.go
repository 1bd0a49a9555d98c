package config

import (
	"time"

	"github.com/Sriram-PR/image-scraper/pkg/models"
)

// Supported page sources
const (
	ScrapingMethodSimple    = "simple"    // Direct HTTP fetch of the page
	ScrapingMethodFirecrawl = "firecrawl" // Remote scraping API
)

// Supported asset catalog backends
const (
	CatalogBackendBadger   = "badger"
	CatalogBackendPostgres = "postgres"
)

const (
	DefaultFirecrawlBaseURL = "https://api.firecrawl.dev/v1"
	DefaultUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// AppConfig holds the global application configuration.
// It is read once at startup and passed by value or pointer into every component; nothing mutates it afterwards.
type AppConfig struct {
	// Extraction
	ScrapingMethod      string        `yaml:"scraping_method"`
	FirecrawlAPIKey     string        `yaml:"firecrawl_api_key,omitempty"`
	FirecrawlBaseURL    string        `yaml:"firecrawl_base_url,omitempty"`
	MaxImages           int           `yaml:"max_images"`
	Timeout             time.Duration `yaml:"timeout"` // Page fetch timeout
	UserAgent           string        `yaml:"user_agent,omitempty"`
	RespectRobots       bool          `yaml:"respect_robots,omitempty"`
	PlaceholderPatterns []string      `yaml:"placeholder_patterns,omitempty"` // Extra regexes on top of the built-in placeholder set

	// Download
	MaxRetries        int           `yaml:"max_retries,omitempty"` // Total attempts per image download
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay,omitempty"`
	DownloadTimeout   time.Duration `yaml:"download_timeout,omitempty"`
	MaxDownloadBytes  int64         `yaml:"max_download_bytes,omitempty"` // 0 = unlimited
	TempDir           string        `yaml:"temp_dir,omitempty"`

	// Import and storage
	LibraryDir          string               `yaml:"library_dir"`
	StateDir            string               `yaml:"state_dir"`
	CatalogBackend      string               `yaml:"catalog_backend,omitempty"`
	PostgresDSN         string               `yaml:"postgres_dsn,omitempty"`
	ImportConcurrency   int                  `yaml:"import_concurrency,omitempty"`
	MaxDownloadsPerHost int                  `yaml:"max_downloads_per_host,omitempty"` // Only matters when import_concurrency > 1
	ImportDefaults      models.ImportOptions `yaml:"import_defaults,omitempty"`

	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// GetEffectiveImportOptions returns the request's options when supplied, else the configured defaults
func GetEffectiveImportOptions(req *models.ImportOptions, appCfg AppConfig) models.ImportOptions {
	if req != nil {
		return *req
	}
	return appCfg.ImportDefaults
}

// GetEffectiveUserAgent falls back to a browser-like agent when none is configured
func GetEffectiveUserAgent(appCfg AppConfig) string {
	if appCfg.UserAgent != "" {
		return appCfg.UserAgent
	}
	return DefaultUserAgent
}
