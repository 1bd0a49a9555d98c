package fetch

import (
	"errors"
	"fmt"

	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

// DownloadError is returned when an image could not be downloaded within the attempt budget
type DownloadError struct {
	URL      string
	Attempts int
	Err      error // Last underlying error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, utils.ErrDownloadFailed) hold for any DownloadError
func (e *DownloadError) Is(target error) bool {
	return target == utils.ErrDownloadFailed
}

// HTTPStatusError reports a non-success HTTP status.
// It matches the client/server/other HTTP sentinels in utils depending on the code.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP error %d", e.StatusCode)
}

func (e *HTTPStatusError) Is(target error) bool {
	switch {
	case e.StatusCode >= 500:
		return target == utils.ErrServerHTTPError
	case e.StatusCode >= 400:
		return target == utils.ErrClientHTTPError
	default:
		return target == utils.ErrOtherHTTPError
	}
}

// StatusCode extracts the HTTP status from err, or 0 if err carries none
func StatusCode(err error) int {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
