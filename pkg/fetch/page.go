package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/image-scraper/pkg/config"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

// maxPageBytes caps how much of a page body is read
const maxPageBytes = 20 << 20

// PageSource returns the HTML of a page for image extraction
type PageSource interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// DirectSource fetches pages with a single plain GET. Page fetches are never retried.
type DirectSource struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	robots    *RobotsHandler // nil = robots.txt not consulted
	log       *logrus.Entry
}

// NewDirectSource creates a DirectSource. robots may be nil.
func NewDirectSource(client *http.Client, appCfg config.AppConfig, robots *RobotsHandler, log *logrus.Entry) *DirectSource {
	return &DirectSource{
		client:    client,
		userAgent: config.GetEffectiveUserAgent(appCfg),
		timeout:   appCfg.Timeout,
		robots:    robots,
		log:       log.WithField("component", "page_fetch"),
	}
}

// FetchHTML GETs pageURL with browser-like headers.
// Transport failures, any status other than 200 and empty bodies are errors.
func (s *DirectSource) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrInvalidURL, err)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if s.robots != nil && !s.robots.TestAgent(ctx, u, s.userAgent) {
		return "", fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	pageLog := s.log.WithField("url", pageURL)
	pageLog.Debug("Fetching page")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		pageLog.WithField("status_code", resp.StatusCode).Warn("Page fetch returned non-200 status")
		return "", fmt.Errorf("%w: could not fetch the page", &HTTPStatusError{StatusCode: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", utils.ErrEmptyResponse
	}

	pageLog.WithField("bytes", len(body)).Debug("Page fetched")
	return string(body), nil
}
