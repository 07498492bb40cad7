// Package dataset persists a run's two artifacts: the delay dataset CSV and
// the JSON run report. Writes are atomic (temp file + rename) so a failed
// run can never leave a truncated snapshot for the dashboard to load.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/emberline/evac-delay-etl/internal/domain"
	"github.com/emberline/evac-delay-etl/internal/pipeline"
)

// Header is the output schema, one column per DelayRecord field. Downstream
// consumers key on these names; treat order changes as breaking.
var Header = []string{
	"geo_event_id", "name", "is_active", "notification_type",
	"latitude", "longitude", "fire_start",
	"first_order_at", "first_warning_at", "first_advisory_at",
	"hours_to_order", "hours_to_warning", "hours_to_advisory",
	"evacuation_delay_hours", "evacuation_occurred", "exceeds_critical_threshold",
	"growth_rate_acres_per_hour", "max_acres", "first_acres",
	"n_acreage_updates", "fire_duration_hours",
	"final_containment_pct", "last_spread_rate",
	"zones_linked", "hours_to_zone_link", "first_zone_status",
	"county_fips", "county_name", "state", "county_distance",
	"svi_score", "svi_socioeconomic", "svi_household", "svi_minority", "svi_housing",
	"pop_age65", "pop_disability", "pop_poverty", "pop_no_vehicle",
	"is_vulnerable",
}

// WriteSnapshot writes the dataset CSV atomically: records go to a temp file
// in the destination directory, which is renamed over the target only after
// a clean flush.
func WriteSnapshot(path string, records []domain.DelayRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("dataset: create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("dataset: create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("dataset: write header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(Row(rec)); err != nil {
			return fmt.Errorf("dataset: write record %s: %w", rec.GeoEventID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("dataset: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("dataset: close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("dataset: publish snapshot: %w", err)
	}
	return nil
}

// WriteReport writes the run report JSON atomically, same scheme as the
// snapshot.
func WriteReport(path string, report pipeline.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("dataset: create report dir: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("dataset: marshal report: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("dataset: create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("dataset: write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("dataset: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("dataset: publish report: %w", err)
	}
	return nil
}

// Row serializes one record in Header order. Nil and NaN fields become
// empty cells — the dashboard's null, never a zero.
func Row(rec domain.DelayRecord) []string {
	return []string{
		rec.GeoEventID,
		rec.Name,
		strconv.FormatBool(rec.Active),
		rec.NotificationType,
		cellFloat(rec.Lat),
		cellFloat(rec.Lng),
		cellTime(rec.FireStart),
		cellTimePtr(rec.FirstOrderAt),
		cellTimePtr(rec.FirstWarningAt),
		cellTimePtr(rec.FirstAdvisoryAt),
		cellPtr(rec.HoursToOrder),
		cellPtr(rec.HoursToWarning),
		cellPtr(rec.HoursToAdvisory),
		cellPtr(rec.EvacuationDelayHours),
		cellFlag(rec.EvacuationOccurred),
		cellFlag(rec.ExceedsCriticalThreshold),
		cellPtr(rec.GrowthRateAcresPerHour),
		cellPtr(rec.MaxAcres),
		cellPtr(rec.FirstAcres),
		strconv.Itoa(rec.AcreageUpdates),
		cellPtr(rec.FireDurationHours),
		cellPtr(rec.FinalContainmentPct),
		rec.LastSpreadRate,
		strconv.Itoa(rec.ZonesLinked),
		cellPtr(rec.HoursToZoneLink),
		rec.FirstZoneStatus,
		rec.CountyFIPS,
		rec.CountyName,
		rec.CountyState,
		cellPtr(rec.CountyDistance),
		cellPtr(rec.SVIScore),
		cellPtr(rec.SVISocioeconomic),
		cellPtr(rec.SVIHousehold),
		cellPtr(rec.SVIMinority),
		cellPtr(rec.SVIHousing),
		cellPtr(rec.PopAge65),
		cellPtr(rec.PopDisability),
		cellPtr(rec.PopPoverty),
		cellPtr(rec.PopNoVehicle),
		cellFlag(rec.IsVulnerable),
	}
}

func cellFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func cellPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return cellFloat(*v)
}

func cellTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func cellTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return cellTime(*t)
}

// cellFlag writes derived booleans as 0/1, matching the original dataset's
// integer flag columns.
func cellFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
