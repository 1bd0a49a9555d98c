package extract

import (
	"regexp"
	"strings"
)

// placeholderPatterns match tracking pixels and layout filler images.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)1x1`),
	regexp.MustCompile(`(?i)pixel\.(gif|png|jpg)`),
	regexp.MustCompile(`(?i)transparent\.(gif|png)`),
	regexp.MustCompile(`(?i)spacer\.(gif|png)`),
	regexp.MustCompile(`(?i)blank\.(gif|png|jpg)`),
	regexp.MustCompile(`(?i)tracking`),
	regexp.MustCompile(`(?i)analytics`),
}

// IsPlaceholder reports whether a resolved image URL looks like a tracking pixel or placeholder.
func IsPlaceholder(imageURL string) bool {
	return matchesAny(placeholderPatterns, imageURL)
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// isPlaceholder applies the built-in set plus any configured patterns.
// Configured patterns see the lowercased URL.
func (e *Extractor) isPlaceholder(imageURL string) bool {
	if IsPlaceholder(imageURL) {
		return true
	}
	return matchesAny(e.extraPlaceholders, strings.ToLower(imageURL))
}
