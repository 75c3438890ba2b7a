// Package metrics computes time, cost and automation figures over step sequences.
// Nothing here is cached; callers recompute on every read.
package metrics

import (
	"math"

	"github.com/kaizen-works/kaizen/pkg/models"
)

// Comparison summarises a base sequence against a compared sequence.
type Comparison struct {
	BaseTimeMinutes        int     `json:"base_time_minutes"`
	CompareTimeMinutes     int     `json:"compare_time_minutes"`
	TimeSavedMinutes       int     `json:"time_saved_minutes"`
	TimeSavedPct           int     `json:"time_saved_pct"`
	BaseCostYen            int     `json:"base_cost_yen"`
	CompareCostYen         int     `json:"compare_cost_yen"`
	CostSavedYen           int     `json:"cost_saved_yen"`
	CostSavedPct           int     `json:"cost_saved_pct"`
	BaseAutomationRatio    float64 `json:"base_automation_ratio"`
	CompareAutomationRatio float64 `json:"compare_automation_ratio"`
}

// TotalTime sums the required minutes of every step.
func TotalTime(steps []models.Step) int {
	total := 0
	for _, step := range steps {
		total += step.TimeRequiredMinutes
	}

	return total
}

// TotalCost sums step costs, counting unknown costs as zero.
func TotalCost(steps []models.Step) int {
	total := 0
	for _, step := range steps {
		total += step.Cost()
	}

	return total
}

// TimeSavedPct is the rounded share of base time removed by compare, 0 for an empty base.
func TimeSavedPct(base, compare []models.Step) int {
	return savedPct(TotalTime(base), TotalTime(compare))
}

// CostSavedPct is the rounded share of base cost removed by compare, 0 for a free base.
func CostSavedPct(base, compare []models.Step) int {
	return savedPct(TotalCost(base), TotalCost(compare))
}

// AutomationRatio is the fraction of automated steps, 0 for an empty sequence.
func AutomationRatio(steps []models.Step) float64 {
	if len(steps) == 0 {
		return 0
	}

	automated := 0
	for _, step := range steps {
		if step.IsAutomated() {
			automated++
		}
	}

	return float64(automated) / float64(len(steps))
}

// Compare computes every metric of compare against base.
func Compare(base, compare []models.Step) Comparison {
	baseTime, compareTime := TotalTime(base), TotalTime(compare)
	baseCost, compareCost := TotalCost(base), TotalCost(compare)

	return Comparison{
		BaseTimeMinutes:        baseTime,
		CompareTimeMinutes:     compareTime,
		TimeSavedMinutes:       baseTime - compareTime,
		TimeSavedPct:           savedPct(baseTime, compareTime),
		BaseCostYen:            baseCost,
		CompareCostYen:         compareCost,
		CostSavedYen:           baseCost - compareCost,
		CostSavedPct:           savedPct(baseCost, compareCost),
		BaseAutomationRatio:    AutomationRatio(base),
		CompareAutomationRatio: AutomationRatio(compare),
	}
}

func savedPct(base, compare int) int {
	if base == 0 {
		return 0
	}

	return int(math.Floor(100*float64(base-compare)/float64(base) + 0.5))
}
