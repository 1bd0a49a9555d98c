// Package extract turns a fetched HTML page into a bounded list of image records.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/image-scraper/pkg/config"
	"github.com/Sriram-PR/image-scraper/pkg/metrics"
	"github.com/Sriram-PR/image-scraper/pkg/models"
	"github.com/Sriram-PR/image-scraper/pkg/naming"
	"github.com/Sriram-PR/image-scraper/pkg/parse"
	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

// Skip reasons, used as log fields and metric labels
const (
	SkipEmptySrc    = "empty_src"
	SkipDataURI     = "data_uri"
	SkipInvalidURL  = "invalid_url"
	SkipPlaceholder = "placeholder"
)

// Extractor finds image elements in HTML and normalizes them into ImageRecords
type Extractor struct {
	maxImages         int
	extraPlaceholders []*regexp.Regexp
	metrics           *metrics.Metrics
	log               *logrus.Entry
}

// NewExtractor builds an Extractor from a validated config.
// m may be nil.
func NewExtractor(appCfg config.AppConfig, m *metrics.Metrics, log *logrus.Entry) (*Extractor, error) {
	extra, err := utils.CompileRegexPatterns(appCfg.PlaceholderPatterns)
	if err != nil {
		return nil, err
	}
	maxImages := appCfg.MaxImages
	if maxImages <= 0 {
		maxImages = config.DefaultMaxImages
	}
	return &Extractor{
		maxImages:         maxImages,
		extraPlaceholders: extra,
		metrics:           m,
		log:               log.WithField("component", "extractor"),
	}, nil
}

// Extract returns the images in html in document order, at most maxImages of them.
// When targetClass is non-empty only <img> elements carrying that exact class token are considered.
// Malformed markup never fails: whatever the parser recovers is scanned, and an unreadable
// document yields an empty result.
func (e *Extractor) Extract(html, baseURL, targetClass string) []models.ImageRecord {
	images := make([]models.ImageRecord, 0)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.log.WithError(err).Warn("Could not parse HTML, returning no images")
		return images
	}
	targetClass = strings.TrimSpace(targetClass)

	doc.Find("img").EachWithBreak(func(index int, element *goquery.Selection) bool {
		if targetClass != "" && !hasClassToken(element, targetClass) {
			return true
		}

		src := imageSource(element)
		if src == "" {
			e.skip(SkipEmptySrc, index, "")
			return true
		}
		if strings.HasPrefix(strings.ToLower(src), "data:") {
			e.skip(SkipDataURI, index, "")
			return true
		}

		absoluteURL := parse.ResolveURL(src, baseURL)
		if !parse.IsValidURL(absoluteURL) {
			e.skip(SkipInvalidURL, index, absoluteURL)
			return true
		}
		if e.isPlaceholder(absoluteURL) {
			e.skip(SkipPlaceholder, index, absoluteURL)
			return true
		}

		alt, _ := element.Attr("alt")
		images = append(images, models.ImageRecord{
			URL:      absoluteURL,
			Alt:      strings.TrimSpace(alt),
			Width:    dimension(element, "width"),
			Height:   dimension(element, "height"),
			Filename: naming.FromURL(absoluteURL),
		})

		return len(images) < e.maxImages
	})

	e.metrics.IncExtracted(len(images))
	e.log.WithFields(logrus.Fields{"base_url": baseURL, "count": len(images), "class": targetClass}).Debug("Extraction finished")
	return images
}

func (e *Extractor) skip(reason string, index int, imageURL string) {
	e.metrics.IncSkipped(reason)
	entry := e.log.WithFields(logrus.Fields{"index": index, "reason": reason})
	if imageURL != "" {
		entry = entry.WithField("img_url", imageURL)
	}
	entry.Debug("Skipping image")
}

// hasClassToken matches whole class tokens only: "thumb" matches class="hero thumb", "hum" does not.
func hasClassToken(element *goquery.Selection, class string) bool {
	classAttr, exists := element.Attr("class")
	if !exists {
		return false
	}
	for _, token := range strings.Fields(classAttr) {
		if token == class {
			return true
		}
	}
	return false
}

// imageSource prefers src, then data-src, then the widest srcset candidate.
func imageSource(element *goquery.Selection) string {
	if src := strings.TrimSpace(element.AttrOr("src", "")); src != "" {
		return src
	}
	if src := strings.TrimSpace(element.AttrOr("data-src", "")); src != "" {
		return src
	}
	if srcset := strings.TrimSpace(element.AttrOr("srcset", "")); srcset != "" {
		return bestSrcsetCandidate(srcset)
	}
	return ""
}

// dimension parses a width/height attribute, returning nil unless it is a positive integer.
func dimension(element *goquery.Selection, attr string) *int {
	raw, exists := element.Attr(attr)
	if !exists {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}
