package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/image-scraper/pkg/mcp"
	"github.com/Sriram-PR/image-scraper/pkg/orchestrate"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090 (disabled by default)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: image-scraper mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport (for Claude Desktop)
  image-scraper mcp-server -config config.yaml

  # Start with SSE transport on port 8080 and metrics on 9090
  image-scraper mcp-server -config config.yaml -transport sse -port 8080 -metrics-addr :9090

Available MCP Tools:
  scrape_images      List the images on a web page
  import_images      Download, transform and store images
  get_import_status  Check a background import
  cancel_import      Cancel a background import
  validate_api_key   Check the scraping API key
  list_import_jobs   List background imports
  list_assets        List stored assets
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()
	exitCode := doMcpServer(ctx, *configFile, *transport, *port, *metricsAddr, *logLevel, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(ctx context.Context, configPath, transport string, port int, metricsAddr, logLevel string, stdout, stderr io.Writer) int {
	// Setup logger
	log := logrus.New()
	log.SetOutput(stderr) // MCP protocol uses stdout, logs go to stderr
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid log level: %s\n", logLevel)
		return 1
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	// Load config
	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	svc, err := orchestrate.New(*appCfg, logrus.NewEntry(log))
	if err != nil {
		fmt.Fprintf(stderr, "Error creating services: %v\n", err)
		return 1
	}
	defer svc.Close()
	if err := svc.OpenStore(ctx); err != nil {
		fmt.Fprintf(stderr, "Error opening asset store: %v\n", err)
		return 1
	}
	svc.StartBackground(ctx)

	// Create and run MCP server
	serverCfg := &mcp.ServerConfig{
		Services:    svc,
		ConfigPath:  configPath,
		Transport:   transport,
		Port:        port,
		MetricsAddr: metricsAddr,
		Logger:      log,
	}

	server, err := mcp.NewServer(serverCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	if err := server.StartMetrics(); err != nil {
		fmt.Fprintf(stderr, "Error starting metrics server: %v\n", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", transport)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warnf("MCP server shutdown: %v", shutdownErr)
	}

	if err != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return 1
	}

	return 0
}
