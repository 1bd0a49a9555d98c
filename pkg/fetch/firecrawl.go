package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/image-scraper/pkg/config"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

const (
	minAPIKeyLength     = 10
	apiValidateTimeout  = 10 * time.Second
	maxAPIResponseBytes = 50 << 20
)

// FirecrawlSource obtains page HTML from the Firecrawl scraping API
type FirecrawlSource struct {
	client  *http.Client
	apiKey  string
	baseURL string
	timeout time.Duration
	log     *logrus.Entry
}

type firecrawlRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    *struct {
		HTML *string `json:"html"`
	} `json:"data,omitempty"`
}

// NewFirecrawlSource creates a FirecrawlSource from a validated config
func NewFirecrawlSource(client *http.Client, appCfg config.AppConfig, log *logrus.Entry) *FirecrawlSource {
	baseURL := appCfg.FirecrawlBaseURL
	if baseURL == "" {
		baseURL = config.DefaultFirecrawlBaseURL
	}
	return &FirecrawlSource{
		client:  client,
		apiKey:  strings.TrimSpace(appCfg.FirecrawlAPIKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: appCfg.Timeout,
		log:     log.WithField("component", "firecrawl"),
	}
}

func (s *FirecrawlSource) checkKey() error {
	if s.apiKey == "" {
		return fmt.Errorf("%w: API key is empty", utils.ErrInvalidAPIKey)
	}
	if len(s.apiKey) < minAPIKeyLength {
		return fmt.Errorf("%w: API key appears to be invalid (too short)", utils.ErrInvalidAPIKey)
	}
	return nil
}

// FetchHTML asks the API to scrape pageURL and returns the html format of the result
func (s *FirecrawlSource) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	if err := s.checkKey(); err != nil {
		return "", err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(firecrawlRequest{URL: pageURL, Formats: []string{"html", "markdown"}})
	if err != nil {
		return "", fmt.Errorf("%w: encoding request JSON: %w", utils.ErrParsing, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/scrape", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	s.setHeaders(req)

	apiLog := s.log.WithField("url", pageURL)
	apiLog.Debug("Requesting scrape from API")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: API request failed: %w", utils.ErrRemoteAPI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}

	var decoded firecrawlResponse
	decodeErr := json.Unmarshal(body, &decoded)

	if resp.StatusCode != http.StatusOK {
		msg := "unknown API error"
		if decodeErr == nil && decoded.Error != "" {
			msg = decoded.Error
		}
		apiLog.WithField("status_code", resp.StatusCode).Warnf("Scraping API returned an error: %s", msg)
		return "", fmt.Errorf("%w: %s", utils.ErrRemoteAPI, msg)
	}
	if decodeErr != nil || decoded.Data == nil || decoded.Data.HTML == nil {
		return "", fmt.Errorf("%w: invalid API response format", utils.ErrRemoteAPI)
	}
	return *decoded.Data.HTML, nil
}

// ValidateAPIKey checks the key against the API. Only 401 and 403 mean the key was rejected;
// any other status is accepted, including 405 for the GET on a POST-only endpoint.
func (s *FirecrawlSource) ValidateAPIKey(ctx context.Context) error {
	if err := s.checkKey(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, apiValidateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/scrape", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: connection failed: %w", utils.ErrRemoteAPI, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: API key is invalid or unauthorized (status %d)", utils.ErrInvalidAPIKey, resp.StatusCode)
	}
	s.log.WithField("status_code", resp.StatusCode).Debug("API key accepted")
	return nil
}

func (s *FirecrawlSource) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
}
