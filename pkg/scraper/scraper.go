// Package scraper fetches a page through the configured source and extracts its images.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/image-scraper/pkg/config"
	"github.com/Sriram-PR/image-scraper/pkg/extract"
	"github.com/Sriram-PR/image-scraper/pkg/fetch"
	"github.com/Sriram-PR/image-scraper/pkg/metrics"
	"github.com/Sriram-PR/image-scraper/pkg/models"
	"github.com/Sriram-PR/image-scraper/pkg/parse"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

// Result is the response shape of a scrape
type Result struct {
	Images      []models.ImageRecord `json:"images"`
	ImagesCount int                  `json:"images_count"`
}

// Scraper combines a page source with the image extractor
type Scraper struct {
	source    fetch.PageSource
	extractor *extract.Extractor
	log       *logrus.Entry
}

// New creates a Scraper from explicit collaborators
func New(source fetch.PageSource, extractor *extract.Extractor, log *logrus.Entry) *Scraper {
	return &Scraper{source: source, extractor: extractor, log: log.WithField("component", "scraper")}
}

// NewFromConfig picks the page source named by appCfg.ScrapingMethod and builds the extractor
func NewFromConfig(client *http.Client, appCfg config.AppConfig, m *metrics.Metrics, log *logrus.Entry) (*Scraper, error) {
	extractor, err := extract.NewExtractor(appCfg, m, log)
	if err != nil {
		return nil, err
	}

	var source fetch.PageSource
	switch appCfg.ScrapingMethod {
	case config.ScrapingMethodFirecrawl:
		source = fetch.NewFirecrawlSource(client, appCfg, log)
	case config.ScrapingMethodSimple, "":
		var robots *fetch.RobotsHandler
		if appCfg.RespectRobots {
			robots = fetch.NewRobotsHandler(client, config.GetEffectiveUserAgent(appCfg), log)
		}
		source = fetch.NewDirectSource(client, appCfg, robots, log)
	default:
		return nil, fmt.Errorf("%w: unknown scraping_method '%s'", utils.ErrConfigValidation, appCfg.ScrapingMethod)
	}
	return New(source, extractor, log), nil
}

// ScrapeURL fetches pageURL and returns the images found in it, optionally only those
// carrying targetClass. Relative image URLs resolve against pageURL.
func (s *Scraper) ScrapeURL(ctx context.Context, pageURL, targetClass string) (Result, error) {
	pageURL = strings.TrimSpace(pageURL)
	if !parse.IsValidURL(pageURL) {
		return Result{}, fmt.Errorf("%w: please provide a valid URL", utils.ErrInvalidURL)
	}
	targetClass = strings.TrimSpace(targetClass)
	scrapeLog := s.log.WithFields(logrus.Fields{"url": pageURL, "target_class": targetClass})

	html, err := s.source.FetchHTML(ctx, pageURL)
	if err != nil {
		scrapeLog.Warnf("Page fetch failed: %v", err)
		return Result{}, err
	}

	images := s.extractor.Extract(html, pageURL, targetClass)
	scrapeLog.WithField("images", len(images)).Info("Scrape finished")
	return Result{Images: images, ImagesCount: len(images)}, nil
}
