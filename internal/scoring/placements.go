// internal/scoring/placements.go
package scoring

import (
	"sort"

	"github.com/k9trials/ringsync/internal/models"
)

// TotalTime is the time an entry is ranked on: the sum of its area times
// for multi-area elements, otherwise the single search time.
func TotalTime(e *models.Entry, areas int) float64 {
	if areas <= 1 {
		return e.SearchTimeSeconds
	}
	total := e.Area1TimeSeconds
	if areas >= 2 {
		total += e.Area2TimeSeconds
	}
	if areas >= 3 {
		total += e.Area3TimeSeconds
	}
	return total
}

// ComputePlacements ranks qualified entries by fault count, then total
// time, and returns placement per entry id. Non-qualified entries place 0.
func ComputePlacements(entries []models.Entry, areas int) map[int64]int {
	placements := make(map[int64]int, len(entries))

	var qualified []*models.Entry
	for i := range entries {
		e := &entries[i]
		if e.Qualified() {
			qualified = append(qualified, e)
		} else {
			placements[e.ID] = 0
		}
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		if qualified[i].FaultCount != qualified[j].FaultCount {
			return qualified[i].FaultCount < qualified[j].FaultCount
		}
		return TotalTime(qualified[i], areas) < TotalTime(qualified[j], areas)
	})

	for rank, e := range qualified {
		placements[e.ID] = rank + 1
	}

	return placements
}
