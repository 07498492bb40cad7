package domain

import (
	"math"
	"time"

	"github.com/paulmach/orb"
)

// FireEvent is one row of the master geo-event table. Immutable once loaded;
// lives for a single pipeline run.
type FireEvent struct {
	ID               string // canonical identifier, see NormalizeID
	Name             string
	Active           bool
	NotificationType string
	GeoEventType     string
	Lat              float64 // NaN when absent from the extract
	Lng              float64
	Started          AlignedTime // date_created, aligned to UTC
}

// Coords returns the event's location and whether it is usable for spatial
// matching. Missing or out-of-range coordinates are never matched to an
// arbitrary nearest county.
func (f FireEvent) Coords() (orb.Point, bool) {
	if math.IsNaN(f.Lat) || math.IsNaN(f.Lng) {
		return orb.Point{}, false
	}
	if f.Lat < -90 || f.Lat > 90 || f.Lng < -180 || f.Lng > 180 {
		return orb.Point{}, false
	}
	if f.Lat == 0 && f.Lng == 0 {
		// Null Island rows are placeholder coordinates in this extract.
		return orb.Point{}, false
	}
	return orb.Point{f.Lng, f.Lat}, true
}

// ChangeRecord is one row of the append-only change log, already decoded.
// The log may contain the same entity many times and is not guaranteed to be
// in timestamp order.
type ChangeRecord struct {
	EventID   string // canonical identifier
	Timestamp time.Time
	Changes   []FieldChange
}

// EvacZone is one row of the evacuation-zone table.
type EvacZone struct {
	UID         string
	DisplayName string
	Status      string // human-readable, authoritative
	StatusCode  string // coded fallback
	Active      bool
}

// ZoneEventLink maps an evacuation zone to a fire event, stamped with the
// time the mapping was created.
type ZoneEventLink struct {
	ZoneUID  string
	EventID  string // canonical identifier
	LinkedAt time.Time
}

// CountyVulnerability is one row of the CDC/ATSDR SVI county file.
// Component fields may be NaN where the source suppresses an estimate.
type CountyVulnerability struct {
	FIPS  string // 5-digit county code
	Name  string
	State string

	Score         float64 // composite percentile rank, [0,1]
	Socioeconomic float64
	Household     float64
	Minority      float64
	Housing       float64

	PopAge65      float64
	PopPoverty    float64
	PopDisability float64
	PopNoVehicle  float64
}

// VulnerableThreshold is the composite-score cutoff for the top SVI quartile.
const VulnerableThreshold = 0.75

// CountyCentroid is one row of the Census population-centroid file. Used only
// for spatial matching; vulnerability values come from CountyVulnerability.
type CountyCentroid struct {
	FIPS string
	Lat  float64
	Lng  float64
}

// Point returns the centroid as an orb point (lng, lat order).
func (c CountyCentroid) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// DelayRecord is the pipeline's output: one row per fire event, emitted
// exactly once per run regardless of how many joins resolved. Nil pointer
// fields serialize as empty cells and mean "no confirmed data", never zero.
type DelayRecord struct {
	GeoEventID       string
	Name             string
	Active           bool
	NotificationType string
	Lat              float64
	Lng              float64
	FireStart        time.Time

	FirstOrderAt    *time.Time
	FirstWarningAt  *time.Time
	FirstAdvisoryAt *time.Time

	HoursToOrder    *float64
	HoursToWarning  *float64
	HoursToAdvisory *float64

	// EvacuationDelayHours is the headline delay: hours to first order,
	// falling back to hours to first warning when no order was confirmed.
	EvacuationDelayHours     *float64
	EvacuationOccurred       bool
	ExceedsCriticalThreshold bool

	GrowthRateAcresPerHour *float64
	MaxAcres               *float64
	FirstAcres             *float64
	AcreageUpdates         int
	FireDurationHours      *float64
	FinalContainmentPct    *float64
	LastSpreadRate         string

	ZonesLinked     int
	HoursToZoneLink *float64
	FirstZoneStatus string

	CountyFIPS     string // empty when unmatched
	CountyName     string
	CountyState    string
	CountyDistance *float64 // in the configured metric's unit

	SVIScore         *float64
	SVISocioeconomic *float64
	SVIHousehold     *float64
	SVIMinority      *float64
	SVIHousing       *float64
	PopAge65         *float64
	PopDisability    *float64
	PopPoverty       *float64
	PopNoVehicle     *float64
	IsVulnerable     bool
}

// CriticalDelayThresholdHours flags fires whose first action came later than
// the operational response window used in the equity analysis.
const CriticalDelayThresholdHours = 6.0
