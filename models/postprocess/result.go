// Package postprocess - Candidate box post-processing for the cascade detectors.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-eyes/images"
)

// Result represents a single candidate box.
type Result struct {
	// The bounding box of the candidate.
	Box images.Rect
	// The ranking score. Cascade candidates are ranked by box area.
	Score float32
	// The index of the detector that produced the candidate.
	Class int
}

// ByArea turns raw boxes into results scored by area.
func ByArea(boxes []images.Rect, class int) []Result {
	results := make([]Result, 0, len(boxes))
	for _, b := range boxes {
		results = append(results, Result{Box: b, Score: float32(b.Area()), Class: class})
	}
	return results
}

// SortByScore orders results by descending score. The sort is stable so equal
// scores keep detector order.
func SortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// TopK returns at most k results with the highest scores, highest first.
// The input slice is not modified.
func TopK(results []Result, k int) []Result {
	if k <= 0 || len(results) == 0 {
		return nil
	}
	sorted := make([]Result, len(results))
	copy(sorted, results)
	SortByScore(sorted)
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}
