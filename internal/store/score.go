package store

import "strings"

// OverlapScore computes the interest-overlap score between two interest
// lists: shared interests divided by distinct interests across both lists.
// Either side being empty yields the neutral 0.5, matching the behavior when
// no signal is available. Comparison is case-insensitive.
func OverlapScore(a, b []string) float64 {
	setA := normalize(a)
	setB := normalize(b)

	if len(setA) == 0 || len(setB) == 0 {
		return 0.5
	}

	common := 0
	total := len(setA)
	for key := range setB {
		if setA[key] {
			common++
		} else {
			total++
		}
	}

	return float64(common) / float64(total)
}

func normalize(interests []string) map[string]bool {
	set := make(map[string]bool, len(interests))
	for _, interest := range interests {
		key := strings.ToLower(strings.TrimSpace(interest))
		if key != "" {
			set[key] = true
		}
	}
	return set
}
