package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrInvalidURL        = errors.New("invalid URL")
	ErrNoURL             = errors.New("no URL provided")
	ErrDownloadFailed    = errors.New("download failed")      // Carries attempt count via fetch.DownloadError
	ErrImageLoadFailed   = errors.New("could not load image") // Undecodable or unreadable source image
	ErrCompressionFailed = errors.New("compression failed")   // Budget not reachable; see transform.CompressionError
	ErrEncodeFailed      = errors.New("could not encode image")
	ErrStoreFailed       = errors.New("asset store failed")

	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")    // Wraps original error/status
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")    // Wraps original error/status
	ErrOtherHTTPError   = errors.New("other HTTP error (non-2xx)") // Wraps original error/status
	ErrEmptyResponse    = errors.New("received empty response from server")
	ErrRemoteAPI        = errors.New("scraping API error")
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	ErrTooLarge         = errors.New("response exceeds size limit")
	ErrParsing          = errors.New("parsing error")    // Wraps specific parsing error (HTML, URL, JSON)
	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger/postgres errors
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
)

// WrapErrorf wraps sentinel with a formatted context message.
func WrapErrorf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Pipeline kinds first; they usually wrap transport errors underneath
	switch {
	case errors.Is(err, ErrNoURL):
		return "Import_NoURL"
	case errors.Is(err, ErrInvalidURL):
		return "Input_InvalidURL"
	case errors.Is(err, ErrDownloadFailed):
		if errors.Is(err, ErrServerHTTPError) {
			return "Download_HTTPServer"
		}
		if errors.Is(err, ErrClientHTTPError) {
			return "Download_HTTPClient"
		}
		if errors.Is(err, ErrTooLarge) {
			return "Download_TooLarge"
		}
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded") {
			return "Download_NetworkTimeout"
		}
		if strings.Contains(errMsg, "connection refused") {
			return "Download_ConnectionRefused"
		}
		if strings.Contains(errMsg, "no such host") {
			return "Download_DNSLookup"
		}
		return "Download_Other"
	case errors.Is(err, ErrImageLoadFailed):
		return "Transform_ImageLoad"
	case errors.Is(err, ErrCompressionFailed):
		return "Transform_Compression"
	case errors.Is(err, ErrEncodeFailed):
		return "Transform_Encode"
	case errors.Is(err, ErrStoreFailed):
		if errors.Is(err, ErrDatabase) {
			return "Store_Database"
		}
		if errors.Is(err, ErrFilesystem) {
			return "Store_Filesystem"
		}
		return "Store_Other"
	}

	switch {
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 401") {
			return "HTTP_401"
		}
		if strings.Contains(errMsg, " 429") {
			return "HTTP_429"
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrEmptyResponse):
		return "HTTP_EmptyResponse"
	case errors.Is(err, ErrInvalidAPIKey):
		return "RemoteAPI_InvalidKey"
	case errors.Is(err, ErrRemoteAPI):
		return "RemoteAPI_Error"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrTooLarge):
		return "Policy_TooLarge"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		if errors.Is(err, os.ErrExist) {
			return "Filesystem_Exist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}

	return "Unknown"
}
