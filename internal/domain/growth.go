package domain

// GrowthStats summarizes a fire's size trajectory from its acreage
// observations.
type GrowthStats struct {
	// RateAcresPerHour is (last acreage - first acreage) / elapsed hours
	// between the earliest and latest observations. Nil when fewer than two
	// observations exist or the span is zero — undefined, never zero.
	// Negative rates are real: containment shrinks the measured footprint
	// in some sources, and clamping would misreport contained fires as
	// zero-growth.
	RateAcresPerHour *float64

	MaxAcres      float64
	FirstAcres    float64 // acreage before the first recorded change
	Updates       int
	DurationHours float64
}

// ComputeGrowth derives growth statistics from time-ordered acreage
// observations, as produced by AcreageSeries.
func ComputeGrowth(obs []AcreageObservation) GrowthStats {
	stats := GrowthStats{Updates: len(obs)}
	if len(obs) == 0 {
		return stats
	}

	stats.FirstAcres = obs[0].From
	for _, o := range obs {
		if o.Acres > stats.MaxAcres {
			stats.MaxAcres = o.Acres
		}
	}

	first, last := obs[0], obs[len(obs)-1]
	stats.DurationHours = last.At.Sub(first.At).Hours()
	if len(obs) < 2 || stats.DurationHours <= 0 {
		return stats
	}

	rate := (last.Acres - first.Acres) / stats.DurationHours
	stats.RateAcresPerHour = &rate
	return stats
}
