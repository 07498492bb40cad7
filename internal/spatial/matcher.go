// Package spatial joins fire-event coordinates to the nearest county
// centroid so county-level vulnerability covariates can be attached.
package spatial

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"

	"github.com/emberline/evac-delay-etl/internal/domain"
)

// Metric selects the distance function used for matching and reporting.
type Metric string

const (
	// MetricEuclidean measures planar distance in coordinate degrees.
	MetricEuclidean Metric = "euclidean"
	// MetricHaversine measures great-circle distance in meters.
	MetricHaversine Metric = "haversine"
)

// candidateK bounds the quadtree k-nearest scan per query. The index
// partitions in planar degree space, so for the great-circle metric the
// true nearest can rank behind a few planar-closer candidates at high
// latitudes; re-ranking a small candidate set covers that without a full
// scan. It also lets equal-distance ties resolve deterministically.
const candidateK = 8

type centroidPoint struct {
	point orb.Point
	fips  string
}

func (c centroidPoint) Point() orb.Point { return c.point }

// Matcher answers nearest-county queries against an index built once over
// the centroid set and reused for the whole batch. Safe for concurrent
// queries after construction.
type Matcher struct {
	tree   *quadtree.Quadtree
	metric Metric
	size   int
}

// NewMatcher builds the index over the given centroids. Centroids with
// out-of-range coordinates are rejected with an error: a corrupt reference
// table should fail the run, not silently shrink the match space.
func NewMatcher(centroids []domain.CountyCentroid, metric Metric) (*Matcher, error) {
	switch metric {
	case MetricEuclidean, MetricHaversine:
	default:
		return nil, fmt.Errorf("spatial matcher: unknown metric %q", metric)
	}
	if len(centroids) == 0 {
		return nil, fmt.Errorf("spatial matcher: no county centroids to index")
	}

	tree := quadtree.New(orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}})
	for _, c := range centroids {
		if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
			return nil, fmt.Errorf("spatial matcher: centroid %s has out-of-range coordinates (%f, %f)", c.FIPS, c.Lat, c.Lng)
		}
		if err := tree.Add(centroidPoint{point: c.Point(), fips: c.FIPS}); err != nil {
			return nil, fmt.Errorf("spatial matcher: index centroid %s: %w", c.FIPS, err)
		}
	}
	return &Matcher{tree: tree, metric: metric, size: len(centroids)}, nil
}

// Size returns the number of indexed centroids.
func (m *Matcher) Size() int { return m.size }

// Nearest returns the FIPS code of the county centroid closest to the query
// point and the distance in the configured metric. Ties on distance resolve
// to the lowest FIPS code so repeated runs produce identical output.
func (m *Matcher) Nearest(p orb.Point) (fips string, distance float64) {
	buf := make([]orb.Pointer, 0, candidateK)
	candidates := m.tree.KNearest(buf, p, candidateK)

	best := ""
	bestDist := 0.0
	for _, cand := range candidates {
		c := cand.(centroidPoint)
		d := m.distance(p, c.point)
		switch {
		case best == "" || d < bestDist:
			best, bestDist = c.fips, d
		case d == bestDist && c.fips < best:
			best = c.fips
		}
	}
	return best, bestDist
}

func (m *Matcher) distance(a, b orb.Point) float64 {
	if m.metric == MetricHaversine {
		return geo.Distance(a, b)
	}
	return planar.Distance(a, b)
}
