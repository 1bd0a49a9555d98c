package models

import (
	"strings"
	"time"

	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

// ImageRecord is a single image reference found on a page.
// Extraction fills the first five fields; callers may add custom_* overrides before import.
type ImageRecord struct {
	URL      string `json:"url"`
	Alt      string `json:"alt"`
	Width    *int   `json:"width"`  // nil when missing or not a positive integer
	Height   *int   `json:"height"` // nil when missing or not a positive integer
	Filename string `json:"filename"`

	CustomFilename string `json:"custom_filename,omitempty"`
	CustomAlt      string `json:"custom_alt,omitempty"`
	CustomTitle    string `json:"custom_title,omitempty"`
	CustomFormat   Format `json:"custom_format,omitempty"`
	CustomMaxWidth int    `json:"custom_max_width,omitempty"` // pixels, 0 = use global
	CustomMaxSize  int    `json:"custom_max_size,omitempty"`  // KB, 0 = use global

	// IndividualSettings is the nested override shape some clients send instead of custom_* fields
	IndividualSettings *IndividualSettings `json:"individual_settings,omitempty"`
}

// IndividualSettings holds per-image overrides in their nested form.
type IndividualSettings struct {
	Filename string `json:"filename,omitempty"`
	Alt      string `json:"alt,omitempty"`
	Title    string `json:"title,omitempty"`
	Format   Format `json:"format,omitempty"`
	MaxWidth int    `json:"max_width,omitempty"`
	MaxSize  int    `json:"max_size,omitempty"`
}

// MergeIndividualSettings copies non-empty nested overrides onto the custom_* fields.
// Values already present in custom_* are replaced. The nested block is cleared afterwards.
func (r *ImageRecord) MergeIndividualSettings() {
	s := r.IndividualSettings
	if s == nil {
		return
	}
	if s.Filename != "" {
		r.CustomFilename = s.Filename
	}
	if s.Alt != "" {
		r.CustomAlt = s.Alt
	}
	if s.Title != "" {
		r.CustomTitle = s.Title
	}
	if s.Format != FormatNone {
		r.CustomFormat = s.Format
	}
	if s.MaxWidth > 0 {
		r.CustomMaxWidth = s.MaxWidth
	}
	if s.MaxSize > 0 {
		r.CustomMaxSize = s.MaxSize
	}
	r.IndividualSettings = nil
}

// EffectiveFormat resolves the output format: per-image override, then the global option.
// Unknown values resolve to FormatNone.
func (r ImageRecord) EffectiveFormat(opts ImportOptions) Format {
	if f := r.CustomFormat.Normalize(); f.IsValid() {
		return f
	}
	if f := opts.ConvertFormat.Normalize(); f.IsValid() {
		return f
	}
	return FormatNone
}

// EffectiveMaxWidth resolves the width limit in pixels (0 = unlimited).
func (r ImageRecord) EffectiveMaxWidth(opts ImportOptions) int {
	if r.CustomMaxWidth > 0 {
		return r.CustomMaxWidth
	}
	if opts.MaxWidth > 0 {
		return opts.MaxWidth
	}
	return 0
}

// EffectiveMaxFilesize resolves the size budget in KB (0 = unlimited).
func (r ImageRecord) EffectiveMaxFilesize(opts ImportOptions) int {
	if r.CustomMaxSize > 0 {
		return r.CustomMaxSize
	}
	if opts.MaxFilesize > 0 {
		return opts.MaxFilesize
	}
	return 0
}

// EffectiveAlt resolves alt text: override, global, then the alt found on the page.
func (r ImageRecord) EffectiveAlt(opts ImportOptions) string {
	return firstNonEmpty(r.CustomAlt, opts.ImageAlt, r.Alt)
}

// EffectiveTitle resolves the asset title. The page alt is the last fallback.
func (r ImageRecord) EffectiveTitle(opts ImportOptions) string {
	return firstNonEmpty(r.CustomTitle, opts.ImageTitle, r.Alt)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ImportOptions are the batch-wide defaults for an import request.
type ImportOptions struct {
	ConvertFormat  Format `json:"convert_format" yaml:"convert_format,omitempty"`
	MaxWidth       int    `json:"max_width" yaml:"max_width,omitempty"`       // pixels, 0 = unlimited
	MaxFilesize    int    `json:"max_filesize" yaml:"max_filesize,omitempty"` // KB, 0 = unlimited
	FilenamePrefix string `json:"filename_prefix" yaml:"filename_prefix,omitempty"`
	ImageAlt       string `json:"image_alt" yaml:"image_alt,omitempty"`
	ImageTitle     string `json:"image_title" yaml:"image_title,omitempty"`
}

// Sanitize returns a copy cleaned for use at the request boundary: the prefix is made
// filesystem-safe, alt and title lose markup, unknown formats become FormatNone and
// negative limits become 0.
func (o ImportOptions) Sanitize() ImportOptions {
	out := o
	if f := o.ConvertFormat.Normalize(); f.IsValid() {
		out.ConvertFormat = f
	} else {
		out.ConvertFormat = FormatNone
	}
	if strings.TrimSpace(o.FilenamePrefix) != "" {
		out.FilenamePrefix = utils.SanitizeFilename(o.FilenamePrefix)
	} else {
		out.FilenamePrefix = ""
	}
	out.ImageAlt = utils.SanitizeText(o.ImageAlt)
	out.ImageTitle = utils.SanitizeText(o.ImageTitle)
	out.MaxWidth = max(o.MaxWidth, 0)
	out.MaxFilesize = max(o.MaxFilesize, 0)
	return out
}

// SanitizeOverrides applies the same boundary cleaning to the custom_* fields.
// The filename is left to the naming package, which sanitizes it when resolving the final name.
func (r *ImageRecord) SanitizeOverrides() {
	r.URL = strings.TrimSpace(r.URL)
	r.CustomAlt = utils.SanitizeText(r.CustomAlt)
	r.CustomTitle = utils.SanitizeText(r.CustomTitle)
	r.CustomFilename = strings.TrimSpace(r.CustomFilename)
	r.CustomMaxWidth = max(r.CustomMaxWidth, 0)
	r.CustomMaxSize = max(r.CustomMaxSize, 0)
}

// ImportResult summarises one import batch.
type ImportResult struct {
	ImportedCount int      `json:"imported_count"`
	TotalCount    int      `json:"total_count"`
	Errors        []string `json:"errors"`
	AssetIDs      []string `json:"asset_ids,omitempty"` // IDs of stored assets, in submission order
}

// Asset is a stored media item as recorded in the catalog.
type Asset struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"` // Absolute path of the stored file
	MIMEType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	SHA256    string    `json:"sha256"`
	AltText   string    `json:"alt_text,omitempty"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
