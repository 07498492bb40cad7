package pipeline

// Join-stage and table labels used in diagnostic counters and metrics.
const (
	TableFireEvents   = "fire_events"
	TableChangeLog    = "change_log"
	TableEvacZones    = "evac_zones"
	TableZoneEventMap = "zone_event_map"
	TableSVI          = "svi_counties"
	TableCentroids    = "county_centroids"
)

// Diagnostics accumulates the run's recoverable-error and join-mismatch
// counts. Each worker owns a private instance and partial results are merged
// after the fan-out, so no counter needs locking.
type Diagnostics struct {
	RowsLoaded   map[string]int `json:"rows_loaded"`
	UnmatchedIDs map[string]int `json:"unmatched_identifiers"`

	ParseErrors     int `json:"parse_errors"`
	BadTimestamps   int `json:"bad_timestamps"`
	NaiveTimestamps int `json:"naive_timestamps_assumed_utc"`

	UnmatchedCoordinates int `json:"unmatched_coordinates"`
	UnmatchedZoneUIDs    int `json:"unmatched_zone_uids"`
	ClippedDelays        int `json:"clipped_delays"`
	AcreageSkipped       int `json:"acreage_observations_skipped"`
	CentroidsWithoutSVI  int `json:"centroids_without_vulnerability"`
}

// NewDiagnostics returns an empty accumulator.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{
		RowsLoaded:   make(map[string]int),
		UnmatchedIDs: make(map[string]int),
	}
}

// Merge adds another accumulator's counts into this one. Addition commutes,
// so merging worker partials in any order gives the same totals.
func (d *Diagnostics) Merge(o *Diagnostics) {
	for k, v := range o.RowsLoaded {
		d.RowsLoaded[k] += v
	}
	for k, v := range o.UnmatchedIDs {
		d.UnmatchedIDs[k] += v
	}
	d.ParseErrors += o.ParseErrors
	d.BadTimestamps += o.BadTimestamps
	d.NaiveTimestamps += o.NaiveTimestamps
	d.UnmatchedCoordinates += o.UnmatchedCoordinates
	d.UnmatchedZoneUIDs += o.UnmatchedZoneUIDs
	d.ClippedDelays += o.ClippedDelays
	d.AcreageSkipped += o.AcreageSkipped
	d.CentroidsWithoutSVI += o.CentroidsWithoutSVI
}
