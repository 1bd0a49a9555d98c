package models

import (
	"fmt"
	"strings"
)

// Format is a requested output image format
type Format string

const (
	FormatNone Format = ""     // Zero value = keep the source format
	FormatWebP Format = "webp" // WebP
	FormatJPEG Format = "jpeg" // JPEG, ".jpeg" extension
	FormatJPG  Format = "jpg"  // JPEG, ".jpg" extension
	FormatPNG  Format = "png"  // PNG
)

// String implements fmt.Stringer for logging
func (f Format) String() string {
	if f == "" {
		return "none"
	}
	return string(f)
}

// Normalize lowercases and trims the value; "none" maps to FormatNone
func (f Format) Normalize() Format {
	n := Format(strings.ToLower(strings.TrimSpace(string(f))))
	if n == "none" {
		return FormatNone
	}
	return n
}

// IsValid returns true if the format names a conversion target
func (f Format) IsValid() bool {
	switch f {
	case FormatWebP, FormatJPEG, FormatJPG, FormatPNG:
		return true
	}
	return false
}

// ParseFormat normalizes s and rejects anything that is not a conversion target or "none"
func ParseFormat(s string) (Format, error) {
	f := Format(s).Normalize()
	if f == FormatNone || f.IsValid() {
		return f, nil
	}
	return FormatNone, fmt.Errorf("unsupported format %q (want webp, jpeg, jpg, png or none)", s)
}

// MIMEType returns the target mime type, or "" when no conversion is requested
func (f Format) MIMEType() string {
	switch f {
	case FormatWebP:
		return "image/webp"
	case FormatJPEG, FormatJPG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	}
	return ""
}

// ImportStatus is the per-item outcome of an import, used as a metrics label
type ImportStatus string

const (
	ImportStatusUnset    ImportStatus = ""         // Zero value = unset/unknown
	ImportStatusImported ImportStatus = "imported" // Stored as a new asset
	ImportStatusFailed   ImportStatus = "failed"   // Recorded in the batch error list
)

// String implements fmt.Stringer for logging
func (s ImportStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s ImportStatus) IsValid() bool {
	switch s {
	case ImportStatusImported, ImportStatusFailed:
		return true
	}
	return false
}
