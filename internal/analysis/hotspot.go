package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// CountyDelay is one county's aggregated response delay.
type CountyDelay struct {
	FIPS           string
	Lat            float64
	Lng            float64
	MeanDelayHours float64
	Fires          int
}

// Cluster classifications at the configured significance threshold.
const (
	ClassHot            = "hot"
	ClassCold           = "cold"
	ClassNotSignificant = "not_significant"
)

// Hotspot is one county's Gi* result.
type Hotspot struct {
	FIPS           string  `json:"fips"`
	MeanDelayHours float64 `json:"mean_delay_hours"`
	Fires          int     `json:"fires"`
	Z              float64 `json:"z"`
	P              float64 `json:"p"`
	Classification string  `json:"classification"`
}

// GetisOrdGiStar computes the Gi* statistic over county-aggregated delays
// using binary k-nearest-neighbor weights (self included, as Gi* requires)
// and classifies each county as hot, cold, or not significant at the given
// |z| threshold. Counties must be deduplicated by FIPS.
func GetisOrdGiStar(counties []CountyDelay, k int, zThreshold float64) ([]Hotspot, error) {
	n := len(counties)
	if n < k+2 {
		return nil, ErrInsufficientData
	}

	mean := 0.0
	for _, c := range counties {
		mean += c.MeanDelayHours / float64(n)
	}
	variance := 0.0
	for _, c := range counties {
		d := c.MeanDelayHours - mean
		variance += d * d / float64(n)
	}
	s := math.Sqrt(variance)
	if s == 0 {
		return nil, ErrInsufficientData
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1}
	w := float64(k + 1) // binary weights: self plus k neighbors
	nf := float64(n)
	denomScale := s * math.Sqrt((nf*w-w*w)/(nf-1))

	results := make([]Hotspot, n)
	for i, c := range counties {
		neighborhood := c.MeanDelayHours
		for _, j := range nearestNeighbors(counties, i, k) {
			neighborhood += counties[j].MeanDelayHours
		}

		z := (neighborhood - mean*w) / denomScale
		class := ClassNotSignificant
		switch {
		case z >= zThreshold:
			class = ClassHot
		case z <= -zThreshold:
			class = ClassCold
		}
		results[i] = Hotspot{
			FIPS:           c.FIPS,
			MeanDelayHours: c.MeanDelayHours,
			Fires:          c.Fires,
			Z:              z,
			P:              2 * normal.Survival(math.Abs(z)),
			Classification: class,
		}
	}
	return results, nil
}

// nearestNeighbors returns the indices of the k counties closest to county i
// by planar degree distance, with index order breaking ties so repeated runs
// classify identically. The county set is small (~3k), so a linear scan per
// county is cheaper than maintaining a second spatial index here.
func nearestNeighbors(counties []CountyDelay, i, k int) []int {
	type candidate struct {
		idx  int
		dist float64
	}
	cands := make([]candidate, 0, len(counties)-1)
	for j, c := range counties {
		if j == i {
			continue
		}
		dLat := c.Lat - counties[i].Lat
		dLng := c.Lng - counties[i].Lng
		cands = append(cands, candidate{idx: j, dist: dLat*dLat + dLng*dLng})
	}
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].dist != cands[b].dist {
			return cands[a].dist < cands[b].dist
		}
		return cands[a].idx < cands[b].idx
	})
	if k > len(cands) {
		k = len(cands)
	}
	out := make([]int, k)
	for j := 0; j < k; j++ {
		out[j] = cands[j].idx
	}
	return out
}
