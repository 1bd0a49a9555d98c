package transform

import (
	"fmt"
	"image"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/image-scraper/pkg/utils"
)

// Quality search bounds
const (
	InitialQuality     = 90
	SearchStartQuality = 85
	SearchQualityStep  = 5
	SearchFloorQuality = 40
	MaxSearchAttempts  = 10
)

// CompressionError reports that no quality within bounds met the size budget
type CompressionError struct {
	Achieved int64 // Smallest encoded size seen, in bytes
	Target   int64 // Budget, in bytes
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("could not compress to %d KB (best achieved: %d KB)", kb(e.Target), kb(e.Achieved))
}

// Is makes errors.Is(err, utils.ErrCompressionFailed) hold for any CompressionError
func (e *CompressionError) Is(target error) bool {
	return target == utils.ErrCompressionFailed
}

func kb(n int64) int64 {
	return (n + 512) / 1024
}

// compressResult is the outcome of compressToBudget: either a path that fits or the best size reached
type compressResult struct {
	Path     string
	Size     int64
	OK       bool
	Achieved int64
	Attempts int
}

// compressToBudget re-encodes img at decreasing quality until the output fits budget bytes.
// Each new file supersedes the previous one, which is deleted; on failure no file is left behind.
// prev is the already-encoded, oversized file and is deleted as soon as a re-encode succeeds.
func (t *Transformer) compressToBudget(img image.Image, enc Encoder, budget int64, prev string, prevSize int64) (compressResult, error) {
	res := compressResult{Achieved: prevSize}
	current := prev

	for quality := SearchStartQuality; quality >= SearchFloorQuality && res.Attempts < MaxSearchAttempts; quality -= SearchQualityStep {
		res.Attempts++
		t.metrics.IncCompressionAttempts()

		path, size, err := t.encodeToTemp(img, enc, quality)
		if err != nil {
			removeIfSet(current)
			return res, err
		}
		removeIfSet(current)
		current = path

		t.log.WithFields(logrus.Fields{"quality": quality, "size": size, "budget": budget}).Debug("Re-encoded")
		if size < res.Achieved {
			res.Achieved = size
		}
		if size <= budget {
			res.Path, res.Size, res.OK = path, size, true
			return res, nil
		}
	}

	removeIfSet(current)
	return res, nil
}

func removeIfSet(path string) {
	if path != "" {
		os.Remove(path)
	}
}
