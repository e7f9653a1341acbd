package graph

// CycleStats summarizes a detection run. Derived data, but consumers rely
// on it being present.
type CycleStats struct {
	Count         int         `json:"count"`
	AverageLength float64     `json:"averageLength"`
	LongestLength int         `json:"longestLength"`
	Histogram     map[int]int `json:"histogram"`
	NewCount      int         `json:"newCount"`
}

func ComputeCycleStats(cycles []CircularDependency) CycleStats {
	stats := CycleStats{Histogram: make(map[int]int)}
	if len(cycles) == 0 {
		return stats
	}

	total := 0
	for _, c := range cycles {
		n := len(c.Nodes)
		total += n
		stats.Histogram[n]++
		if n > stats.LongestLength {
			stats.LongestLength = n
		}
		if c.IsNew {
			stats.NewCount++
		}
	}
	stats.Count = len(cycles)
	stats.AverageLength = float64(total) / float64(len(cycles))
	return stats
}

// Suggest proposes a remediation for one cycle. Heuristic, not essential,
// but part of the reporting contract.
func Suggest(c CircularDependency) string {
	switch len(c.Nodes) {
	case 1:
		return "remove the self-reference or split the type"
	case 2:
		return "extract an interface so one side depends on an abstraction"
	default:
		return "move the shared code into a common dependency both sides can use"
	}
}
