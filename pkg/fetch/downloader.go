package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/image-scraper/pkg/config"
	"github.com/Sriram-PR/image-scraper/pkg/metrics"
	"github.com/Sriram-PR/image-scraper/pkg/parse"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

// Downloader fetches images into temporary files, retrying failed attempts with exponential backoff
type Downloader struct {
	client      *http.Client
	userAgent   string
	timeout     time.Duration // Per attempt
	maxAttempts int
	backoff     BackoffFunc
	maxBytes    int64
	tempDir     string
	hosts       *HostLimiter // nil = unlimited
	metrics     *metrics.Metrics
	log         *logrus.Entry
}

// NewDownloader creates a Downloader from a validated config. m may be nil.
func NewDownloader(client *http.Client, appCfg config.AppConfig, m *metrics.Metrics, log *logrus.Entry) *Downloader {
	return &Downloader{
		client:      client,
		userAgent:   config.GetEffectiveUserAgent(appCfg),
		timeout:     appCfg.DownloadTimeout,
		maxAttempts: appCfg.MaxRetries,
		backoff:     ExponentialBackoff(appCfg.InitialRetryDelay),
		maxBytes:    appCfg.MaxDownloadBytes,
		tempDir:     appCfg.TempDir,
		metrics:     m,
		log:         log.WithField("component", "downloader"),
	}
}

// WithBackoff replaces the backoff policy. Intended for tests.
func (d *Downloader) WithBackoff(b BackoffFunc) *Downloader {
	d.backoff = b
	return d
}

// WithHostLimiter bounds concurrent downloads per host
func (d *Downloader) WithHostLimiter(l *HostLimiter) *Downloader {
	d.hosts = l
	return d
}

// Download saves imageURL into a new temporary file and returns its path. The caller owns the file.
// Any transport error, non-2xx status or empty body counts as a failed attempt. Once the attempt
// budget is spent a *DownloadError carrying the attempt count and last error is returned.
func (d *Downloader) Download(ctx context.Context, imageURL string) (string, error) {
	dlLog := d.log.WithField("img_url", imageURL)

	var path string
	attempts, err := Retry(ctx, d.maxAttempts, d.loggedBackoff(dlLog), func(ctx context.Context, attempt int) error {
		d.metrics.IncDownloadAttempts()
		p, attemptErr := d.attempt(ctx, imageURL)
		if attemptErr != nil {
			attemptLog := dlLog.WithFields(logrus.Fields{"attempt": attempt, "max_attempts": d.maxAttempts})
			if code := StatusCode(attemptErr); code != 0 {
				attemptLog = attemptLog.WithField("status_code", code)
			}
			attemptLog.Warnf("Download attempt failed: %v", attemptErr)
			return attemptErr
		}
		path = p
		return nil
	})
	if err != nil {
		return "", &DownloadError{URL: imageURL, Attempts: attempts, Err: err}
	}

	dlLog.WithFields(logrus.Fields{"attempts": attempts, "path": path}).Debug("Image downloaded")
	return path, nil
}

func (d *Downloader) loggedBackoff(dlLog *logrus.Entry) BackoffFunc {
	if d.backoff == nil {
		return nil
	}
	return func(attempt int) time.Duration {
		delay := d.backoff(attempt)
		dlLog.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).Debug("Retrying download...")
		return delay
	}
}

// attempt performs one GET and streams the body to a temp file. Partial files are removed on failure.
func (d *Downloader) attempt(ctx context.Context, imageURL string) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", Permanent(fmt.Errorf("%w: %w", utils.ErrRequestCreation, err))
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	release, err := d.hosts.Acquire(ctx, parse.HostKey(req.URL))
	if err != nil {
		return "", err
	}
	defer release()

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", &HTTPStatusError{StatusCode: resp.StatusCode}
	}
	if d.maxBytes > 0 && resp.ContentLength > d.maxBytes {
		return "", Permanent(fmt.Errorf("%w: content length %d exceeds %d bytes", utils.ErrTooLarge, resp.ContentLength, d.maxBytes))
	}

	tmp, err := os.CreateTemp(d.tempDir, "image-scraper-dl-*")
	if err != nil {
		return "", Permanent(fmt.Errorf("%w: creating temp file: %w", utils.ErrFilesystem, err))
	}
	tmpPath := tmp.Name()

	var body io.Reader = resp.Body
	if d.maxBytes > 0 {
		body = io.LimitReader(resp.Body, d.maxBytes+1)
	}
	n, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()

	switch {
	case copyErr != nil:
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, copyErr)
	case closeErr != nil:
		os.Remove(tmpPath)
		return "", Permanent(fmt.Errorf("%w: closing temp file: %w", utils.ErrFilesystem, closeErr))
	case d.maxBytes > 0 && n > d.maxBytes:
		os.Remove(tmpPath)
		return "", Permanent(fmt.Errorf("%w: body exceeds %d bytes", utils.ErrTooLarge, d.maxBytes))
	case n == 0:
		os.Remove(tmpPath)
		return "", utils.ErrEmptyResponse
	}
	return tmpPath, nil
}
