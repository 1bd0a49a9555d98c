// Package naming derives output filenames for scraped and imported images.
package naming

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/Sriram-PR/image-scraper/pkg/models"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

// DefaultExtension is used when neither a format nor the source filename yields one
const DefaultExtension = "jpg"

var imageExtension = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp|svg)$`)

// now is swapped in tests
var now = time.Now

// HasImageExtension reports whether name ends in a recognized image extension
func HasImageExtension(name string) bool {
	return imageExtension.MatchString(name)
}

// imageExt returns the lowercased image extension of name without the dot, or "" if it has none.
func imageExt(name string) string {
	m := imageExtension.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// FromURL builds the preview filename for an image URL: the last path segment, sanitized,
// with ".jpg" appended when it lacks an image extension. URLs without a usable path get
// a synthesized "image-<unix>.jpg".
func FromURL(rawURL string) string {
	var p string
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path // Already excludes the query string
	}
	base := path.Base(p)
	if p == "" || base == "/" || base == "." {
		return synthesized()
	}

	name := utils.SanitizeFilename(base)
	if !HasImageExtension(name) {
		name += "." + DefaultExtension
	}
	return name
}

func synthesized() string {
	return fmt.Sprintf("image-%d.%s", now().Unix(), DefaultExtension)
}

// Extension resolves the output extension for an import item:
// per-item format, then the global convert_format, then the extraction filename, then "jpg".
// Format values are used literally, so "jpeg" gives ".jpeg".
func Extension(rec models.ImageRecord, opts models.ImportOptions) string {
	if f := rec.EffectiveFormat(opts); f != models.FormatNone {
		return string(f)
	}
	if ext := imageExt(rec.Filename); ext != "" {
		return ext
	}
	return DefaultExtension
}

// ForImport computes the final stored filename of the item at batch position index.
//
// A per-item custom filename wins. Otherwise a non-empty prefix switches to sequential naming:
// position 0 is "{prefix}.{ext}" and position n is "{prefix}_{n}.{ext}". index must be the
// position in the submitted batch, never a count of successes, so failures do not shift names.
// Without a prefix the extraction filename is reused, swapping its extension only when a
// format conversion applies.
func ForImport(rec models.ImageRecord, opts models.ImportOptions, index int) string {
	ext := Extension(rec, opts)
	converting := rec.EffectiveFormat(opts) != models.FormatNone

	if custom := strings.TrimSpace(rec.CustomFilename); custom != "" {
		return withExtension(utils.SanitizeFilename(custom), ext, converting)
	}

	if prefix := strings.TrimSpace(opts.FilenamePrefix); prefix != "" {
		if index == 0 {
			return utils.SanitizeFilename(prefix + "." + ext)
		}
		return utils.SanitizeFilename(fmt.Sprintf("%s_%d.%s", prefix, index, ext))
	}

	name := strings.TrimSpace(rec.Filename)
	if name == "" {
		name = FromURL(rec.URL)
	}
	return withExtension(utils.SanitizeFilename(name), ext, converting)
}

// withExtension appends ext when name has no image extension, or replaces the existing one when converting.
func withExtension(name, ext string, converting bool) string {
	loc := imageExtension.FindStringIndex(name)
	if loc == nil {
		return name + "." + ext
	}
	if converting {
		return name[:loc[0]] + "." + ext
	}
	return name
}
