package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var widthDescriptor = regexp.MustCompile(`(\d+)w`)

// bestSrcsetCandidate picks the candidate with the largest width descriptor ("640w").
// Density descriptors ("2x") are not compared; when no candidate carries a width the first one wins.
func bestSrcsetCandidate(srcset string) string {
	best := ""
	bestWidth := 0
	for _, candidate := range strings.Split(srcset, ",") {
		parts := strings.Fields(candidate)
		if len(parts) == 0 {
			continue
		}
		if best == "" {
			best = parts[0]
		}
		if len(parts) < 2 {
			continue
		}
		m := widthDescriptor.FindStringSubmatch(parts[1])
		if m == nil {
			continue
		}
		w, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if w > bestWidth {
			bestWidth = w
			best = parts[0]
		}
	}
	return best
}
