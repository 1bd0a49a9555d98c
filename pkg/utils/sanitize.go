package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

// --- Filename Sanitization ---
var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*#%&{}$!'@+=` + "`" + `\x00-\x1F\x7F]`) // Characters unsafe in filenames or URLs
var whitespaceRuns = regexp.MustCompile(`\s+`)
var consecutiveUnderscores = regexp.MustCompile(`_+`)
var consecutiveDashes = regexp.MustCompile(`-+`)

const maxFilenameLength = 100 // Max length for sanitized filenames

// SanitizeFilename cleans a string to be safe for use as a filename.
// Whitespace becomes "-", unsafe characters become "_" and runs of either collapse.
// Only dots and spaces are trimmed from the ends, so "shop-.jpg" survives intact.
func SanitizeFilename(name string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(name, "_")
	sanitized = whitespaceRuns.ReplaceAllString(sanitized, "-")
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = consecutiveDashes.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, ". ")

	if len(sanitized) > maxFilenameLength {
		// Keep the extension, truncate the stem
		ext := filepath.Ext(sanitized)
		if len(ext) >= maxFilenameLength {
			ext = ""
		}
		sanitized = strings.TrimRight(sanitized[:maxFilenameLength-len(ext)], ". ") + ext
	}

	if sanitized == "" || strings.Trim(sanitized, "_-") == "" {
		sanitized = "untitled"
	}
	return sanitized
}

// --- Text Sanitization ---
var htmlTags = regexp.MustCompile(`<[^>]*>`)

// SanitizeText strips markup and collapses whitespace in a free-text value such as alt text or a title.
func SanitizeText(text string) string {
	cleaned := htmlTags.ReplaceAllString(text, "")
	cleaned = whitespaceRuns.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
