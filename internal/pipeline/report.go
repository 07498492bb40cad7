package pipeline

import (
	"sort"
	"time"

	"github.com/emberline/evac-delay-etl/internal/analysis"
)

// Report is the diagnostic summary written alongside the dataset. Downstream
// dashboards read it to show data-coverage context next to the findings.
type Report struct {
	RunID          string    `json:"run_id"`
	GeneratedAt    time.Time `json:"generated_at"`
	DistanceMetric string    `json:"distance_metric"`

	TotalFires                 int `json:"total_fires"`
	FiresWithOrder             int `json:"fires_with_order"`
	FiresWithWarning           int `json:"fires_with_warning"`
	FiresWithAdvisory          int `json:"fires_with_advisory"`
	FiresWithAnyAction         int `json:"fires_with_any_action"`
	FiresWithNoConfirmedAction int `json:"fires_with_no_confirmed_action"`
	FiresWithGrowthRate        int `json:"fires_with_growth_rate"`
	FiresWithCountyMatch       int `json:"fires_with_county_match"`
	FiresWithZoneLink          int `json:"fires_with_zone_link"`
	FiresInVulnerableCounties  int `json:"fires_in_vulnerable_counties"`

	MedianHoursToOrder   *float64 `json:"median_hours_to_order,omitempty"`
	MedianGrowthRate     *float64 `json:"median_growth_rate_acres_per_hour,omitempty"`
	FractionWithNoAction float64  `json:"fraction_with_no_confirmed_action"`

	Diagnostics *Diagnostics       `json:"diagnostics"`
	Findings    *analysis.Findings `json:"findings,omitempty"`
}

// median returns the middle value of the samples, or nil when there are none.
func median(samples []float64) *float64 {
	if len(samples) == 0 {
		return nil
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	var m float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		m = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		m = sorted[mid]
	}
	return &m
}
