package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/image-scraper/pkg/orchestrate"
)

const (
	serverName    = "image-scraper"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Services    *orchestrate.Services // Must have its store opened
	ConfigPath  string
	Transport   string // "stdio" or "sse"
	Port        int
	MetricsAddr string // StartMetrics serves /metrics here when non-empty, e.g. ":9090"
	Logger      *logrus.Logger
}

// Server wraps the MCP server with the image scraping tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	svc        *orchestrate.Services
	log        *logrus.Entry
	jobManager *JobManager
	jobsWG     sync.WaitGroup // background import goroutines

	metricsSrv  *http.Server
	metricsAddr string // bound listener address, set by StartMetrics
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Services == nil {
		return nil, fmt.Errorf("services are required")
	}
	if cfg.Services.Pipeline == nil || cfg.Services.Library == nil {
		return nil, fmt.Errorf("asset store is not open")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		svc:        cfg.Services,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	scrapeTool := mcp.NewTool("scrape_images",
		mcp.WithDescription("Fetch a web page and list the images on it with their URL, alt text, dimensions and a suggested filename"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute URL of the page to scrape"),
		),
		mcp.WithString("target_class",
			mcp.Description("Only return <img> elements carrying this CSS class (exact token match)"),
		),
	)
	s.mcpServer.AddTool(scrapeTool, s.handleScrapeImages)

	importTool := mcp.NewTool("import_images",
		mcp.WithDescription("Download, optionally resize/convert/compress, and store images in the media library"),
		mcp.WithString("images",
			mcp.Required(),
			mcp.Description("JSON array of image records as returned by scrape_images, optionally with custom_* overrides"),
		),
		mcp.WithString("options",
			mcp.Description("JSON object with convert_format, max_width, max_filesize (KB), filename_prefix, image_alt, image_title. Defaults come from the config file."),
		),
		mcp.WithBoolean("background",
			mcp.Description("Return a job ID immediately and import in the background"),
		),
	)
	s.mcpServer.AddTool(importTool, s.handleImportImages)

	statusTool := mcp.NewTool("get_import_status",
		mcp.WithDescription("Get the status and result of a background import job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by import_images"),
		),
	)
	s.mcpServer.AddTool(statusTool, s.handleGetImportStatus)

	cancelTool := mcp.NewTool("cancel_import",
		mcp.WithDescription("Cancel a running background import. Items already stored are kept."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by import_images"),
		),
	)
	s.mcpServer.AddTool(cancelTool, s.handleCancelImport)

	listJobsTool := mcp.NewTool("list_import_jobs",
		mcp.WithDescription("List background import jobs, newest first"),
	)
	s.mcpServer.AddTool(listJobsTool, s.handleListImportJobs)

	validateTool := mcp.NewTool("validate_api_key",
		mcp.WithDescription("Check that the configured scraping API key is accepted"),
	)
	s.mcpServer.AddTool(validateTool, s.handleValidateAPIKey)

	listTool := mcp.NewTool("list_assets",
		mcp.WithDescription("List stored assets, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of assets to return (default: 20, max: 500)"),
		),
	)
	s.mcpServer.AddTool(listTool, s.handleListAssets)

	s.log.Infof("Registered %d MCP tools", 7)
}

// Run starts the MCP server with the configured transport.
// Call StartMetrics first if /metrics should be served.
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// StartMetrics binds the configured metrics address and serves /metrics in the background.
// It does nothing when no address is configured and must be called before Run and Shutdown.
func (s *Server) StartMetrics() error {
	if s.cfg.MetricsAddr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.svc.Registry, promhttp.HandlerOpts{}))
	s.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.metricsAddr = ln.Addr().String()

	srv := s.metricsSrv
	go func() {
		s.log.Infof("Serving metrics on %s/metrics", s.metricsAddr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("Metrics server stopped: %v", err)
		}
	}()
	return nil
}

// Shutdown cancels running import jobs, waits for them to return until ctx is done,
// and stops the metrics listener. Storage must not be closed before it returns.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()

	done := make(chan struct{})
	go func() {
		s.jobsWG.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Background imports did not stop in time")
		waitErr = fmt.Errorf("waiting for background imports: %w", ctx.Err())
	}

	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(ctx); err != nil && waitErr == nil {
			return err
		}
	}
	return waitErr
}
