// Package orchestrate wires the shared components used by the CLI and the MCP server.
package orchestrate

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/image-scraper/pkg/config"
	"github.com/Sriram-PR/image-scraper/pkg/fetch"
	"github.com/Sriram-PR/image-scraper/pkg/importer"
	"github.com/Sriram-PR/image-scraper/pkg/library"
	"github.com/Sriram-PR/image-scraper/pkg/metrics"
	"github.com/Sriram-PR/image-scraper/pkg/scraper"
	"github.com/Sriram-PR/image-scraper/pkg/transform"
)

const (
	catalogGCInterval   = 10 * time.Minute
	hostPruneInterval   = 5 * time.Minute
	backgroundStopGrace = 5 * time.Second
)

// Services holds the components shared by every entry point.
// Storage is opened separately with OpenStore so read-only commands never lock the catalog.
type Services struct {
	AppConfig config.AppConfig
	Client    *http.Client
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Scraper   *scraper.Scraper
	Firecrawl *fetch.FirecrawlSource

	// Set by OpenStore
	Library     *library.Library
	Pipeline    *importer.Pipeline
	HostLimiter *fetch.HostLimiter // nil unless import_concurrency > 1

	catalog library.Catalog
	log     *logrus.Entry
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds the HTTP client, metrics registry, scraper and API client from a validated config
func New(appCfg config.AppConfig, log *logrus.Entry) (*Services, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	client := fetch.NewClient(appCfg.HTTPClientSettings, log)
	sc, err := scraper.NewFromConfig(client, appCfg, m, log)
	if err != nil {
		return nil, err
	}

	return &Services{
		AppConfig: appCfg,
		Client:    client,
		Registry:  reg,
		Metrics:   m,
		Scraper:   sc,
		Firecrawl: fetch.NewFirecrawlSource(client, appCfg, log),
		log:       log.WithField("component", "services"),
	}, nil
}

// OpenStore opens the asset catalog and library and builds the import pipeline
func (s *Services) OpenStore(ctx context.Context) error {
	if s.Library != nil {
		return nil
	}
	catalog, err := library.OpenCatalog(ctx, s.AppConfig, s.log)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	lib, err := library.NewLibrary(s.AppConfig.LibraryDir, catalog, s.log)
	if err != nil {
		catalog.Close()
		return fmt.Errorf("open library: %w", err)
	}

	downloader := fetch.NewDownloader(s.Client, s.AppConfig, s.Metrics, s.log)
	if s.AppConfig.ImportConcurrency > 1 {
		s.HostLimiter = fetch.NewHostLimiter(s.AppConfig.MaxDownloadsPerHost, s.log)
		downloader.WithHostLimiter(s.HostLimiter)
	}
	transformer := transform.NewTransformer(s.AppConfig.TempDir, s.Metrics, s.log)

	s.catalog = catalog
	s.Library = lib
	s.Pipeline = importer.NewPipeline(downloader, transformer, lib, s.AppConfig, s.Metrics, s.log)
	return nil
}

// StartBackground runs catalog garbage collection and host limiter pruning until Close.
// Only long-running processes need it.
func (s *Services) StartBackground(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	if gc, ok := s.catalog.(*library.BadgerCatalog); ok {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			gc.RunGC(ctx, catalogGCInterval)
		}()
	}
	if s.HostLimiter != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.HostLimiter.RunPruning(ctx, hostPruneInterval)
		}()
	}
}

// Close stops background work and closes the library
func (s *Services) Close() error {
	if s.cancel != nil {
		s.cancel()
		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(backgroundStopGrace):
			s.log.Warn("Background workers did not stop in time")
		}
	}
	if s.Library != nil {
		return s.Library.Close()
	}
	return nil
}
