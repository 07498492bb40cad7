// Package pipeline orchestrates the evacuation-delay reconstruction run:
// load the six extracts, reconcile identifiers and timestamps, extract first
// evacuation actions, join vulnerability covariates spatially, and emit one
// delay record per fire event.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emberline/evac-delay-etl/internal/config"
	"github.com/emberline/evac-delay-etl/internal/domain"
	"github.com/emberline/evac-delay-etl/internal/ingest"
	"github.com/emberline/evac-delay-etl/internal/observability"
	"github.com/emberline/evac-delay-etl/internal/spatial"
)

// Builder runs the delay-dataset build. All inputs are immutable once
// loaded; per-fire work is data-parallel with per-worker diagnostics merged
// at the end.
type Builder struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Result is a completed run: the output rows in master-table order plus the
// diagnostic report.
type Result struct {
	Records []domain.DelayRecord
	Report  Report
}

// NewBuilder creates a Builder.
func NewBuilder(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Builder {
	return &Builder{cfg: cfg, logger: logger, metrics: metrics}
}

// Run executes one complete build. It either returns a full Result or an
// error before any output could exist; there is no partial state to recover.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	diag := NewDiagnostics()

	in, err := b.loadTables(diag)
	if err != nil {
		return nil, err
	}

	matcher, err := b.buildMatcher(in, diag)
	if err != nil {
		return nil, err
	}

	linksByEvent := groupLinks(in.links)

	records, workerDiags := b.buildRecords(ctx, in, matcher, linksByEvent)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: build interrupted: %w", err)
	}
	for _, wd := range workerDiags {
		diag.Merge(wd)
	}

	report := b.summarize(records, diag)
	b.logSummary(report)

	return &Result{Records: records, Report: report}, nil
}

// inputs holds the loaded reference tables for one run.
type inputs struct {
	fires     []domain.FireEvent
	changes   map[string][]domain.ChangeRecord
	zones     map[string]domain.EvacZone
	links     []domain.ZoneEventLink
	counties  map[string]domain.CountyVulnerability
	centroids []domain.CountyCentroid
}

func (b *Builder) loadTables(diag *Diagnostics) (*inputs, error) {
	in := &inputs{}

	var stats ingest.Stats
	var err error

	if in.fires, stats, err = ingest.LoadFireEvents(b.cfg.Inputs.FireEvents); err != nil {
		return nil, err
	}
	b.recordStats(diag, TableFireEvents, stats)

	var parseErrors int
	if in.changes, stats, parseErrors, err = ingest.LoadChangeRecords(b.cfg.Inputs.ChangeLog); err != nil {
		return nil, err
	}
	b.recordStats(diag, TableChangeLog, stats)
	diag.ParseErrors += parseErrors
	b.metrics.ParseErrors.Add(float64(parseErrors))

	if in.zones, stats, err = ingest.LoadEvacZones(b.cfg.Inputs.EvacZones); err != nil {
		return nil, err
	}
	b.recordStats(diag, TableEvacZones, stats)

	if in.links, stats, err = ingest.LoadZoneEventLinks(b.cfg.Inputs.ZoneEventMap); err != nil {
		return nil, err
	}
	b.recordStats(diag, TableZoneEventMap, stats)

	if in.counties, stats, err = ingest.LoadCountyVulnerability(b.cfg.Inputs.SVICounties); err != nil {
		return nil, err
	}
	b.recordStats(diag, TableSVI, stats)

	if in.centroids, stats, err = ingest.LoadCountyCentroids(b.cfg.Inputs.Centroids); err != nil {
		return nil, err
	}
	b.recordStats(diag, TableCentroids, stats)

	b.logger.Info("input tables loaded",
		"fires", len(in.fires),
		"change_entities", len(in.changes),
		"zones", len(in.zones),
		"zone_links", len(in.links),
		"svi_counties", len(in.counties),
		"centroids", len(in.centroids),
	)
	return in, nil
}

func (b *Builder) recordStats(diag *Diagnostics, table string, s ingest.Stats) {
	diag.RowsLoaded[table] += s.Rows
	diag.UnmatchedIDs[table] += s.UnmatchedIDs
	diag.BadTimestamps += s.BadTimestamps
	diag.NaiveTimestamps += s.NaiveTimestamps
	b.metrics.RowsLoaded.WithLabelValues(table).Add(float64(s.Rows))
	b.metrics.UnmatchedIDs.WithLabelValues(table).Add(float64(s.UnmatchedIDs))
}

// buildMatcher indexes only centroids whose county appears in the SVI table,
// so every spatial match resolves to usable covariates (the original joins
// the tables before building its tree for the same reason).
func (b *Builder) buildMatcher(in *inputs, diag *Diagnostics) (*spatial.Matcher, error) {
	usable := make([]domain.CountyCentroid, 0, len(in.centroids))
	for _, c := range in.centroids {
		if _, ok := in.counties[c.FIPS]; ok {
			usable = append(usable, c)
		} else {
			diag.CentroidsWithoutSVI++
		}
	}
	return spatial.NewMatcher(usable, spatial.Metric(b.cfg.DistanceMetric))
}

func groupLinks(links []domain.ZoneEventLink) map[string][]domain.ZoneEventLink {
	byEvent := make(map[string][]domain.ZoneEventLink)
	for _, l := range links {
		byEvent[l.EventID] = append(byEvent[l.EventID], l)
	}
	for id := range byEvent {
		ls := byEvent[id]
		sort.Slice(ls, func(i, j int) bool { return ls[i].LinkedAt.Before(ls[j].LinkedAt) })
		byEvent[id] = ls
	}
	return byEvent
}

// buildRecords fans the fires out across a fixed worker pool. Results land
// at their fire's index, so output order always follows the master table
// regardless of scheduling.
func (b *Builder) buildRecords(ctx context.Context, in *inputs, matcher *spatial.Matcher, linksByEvent map[string][]domain.ZoneEventLink) ([]domain.DelayRecord, []*Diagnostics) {
	records := make([]domain.DelayRecord, len(in.fires))
	workerDiags := make([]*Diagnostics, b.cfg.Workers)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < b.cfg.Workers; w++ {
		wd := NewDiagnostics()
		workerDiags[w] = wd
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i] = b.buildRecord(in.fires[i], in, matcher, linksByEvent, wd)
			}
		}()
	}

	for i := range in.fires {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return records, workerDiags
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	b.metrics.FiresProcessed.Add(float64(len(in.fires)))
	return records, workerDiags
}

// buildRecord derives one fire's output row. Every join failure leaves the
// affected fields null and counts the mismatch; the row itself is always
// emitted.
func (b *Builder) buildRecord(fire domain.FireEvent, in *inputs, matcher *spatial.Matcher, linksByEvent map[string][]domain.ZoneEventLink, diag *Diagnostics) domain.DelayRecord {
	rec := domain.DelayRecord{
		GeoEventID:       fire.ID,
		Name:             fire.Name,
		Active:           fire.Active,
		NotificationType: fire.NotificationType,
		Lat:              fire.Lat,
		Lng:              fire.Lng,
		FireStart:        fire.Started.Time,
	}

	changes := in.changes[fire.ID]

	if at, ok := domain.FirstActivation(changes, domain.FamilyOrders); ok {
		rec.FirstOrderAt = &at
		rec.HoursToOrder = b.delayHours(fire, at, diag)
	}
	if at, ok := domain.FirstActivation(changes, domain.FamilyWarnings); ok {
		rec.FirstWarningAt = &at
		rec.HoursToWarning = b.delayHours(fire, at, diag)
	}
	if at, ok := domain.FirstActivation(changes, domain.FamilyAdvisories); ok {
		rec.FirstAdvisoryAt = &at
		rec.HoursToAdvisory = b.delayHours(fire, at, diag)
	}

	switch {
	case rec.HoursToOrder != nil:
		rec.EvacuationDelayHours = rec.HoursToOrder
	case rec.HoursToWarning != nil:
		rec.EvacuationDelayHours = rec.HoursToWarning
	}
	rec.EvacuationOccurred = rec.EvacuationDelayHours != nil
	rec.ExceedsCriticalThreshold = rec.EvacuationDelayHours != nil &&
		*rec.EvacuationDelayHours > domain.CriticalDelayThresholdHours

	obs, skipped := domain.AcreageSeries(changes)
	diag.AcreageSkipped += skipped
	growth := domain.ComputeGrowth(obs)
	rec.GrowthRateAcresPerHour = growth.RateAcresPerHour
	rec.AcreageUpdates = growth.Updates
	if growth.Updates > 0 {
		rec.MaxAcres = ptr(growth.MaxAcres)
		rec.FirstAcres = ptr(growth.FirstAcres)
		rec.FireDurationHours = ptr(growth.DurationHours)
	}
	if pct, ok := domain.FinalContainment(changes); ok {
		rec.FinalContainmentPct = &pct
	}
	rec.LastSpreadRate = domain.LastSpreadRate(changes)

	b.joinZones(&rec, fire, linksByEvent[fire.ID], in.zones, diag)
	b.joinCounty(&rec, fire, matcher, in.counties, diag)

	return rec
}

// delayHours converts an action timestamp into hours since fire start,
// clipped to [0, DELAY_CLIP_MAX_HOURS]. Small negative deltas come from
// data-entry backfills; the ceiling drops year-long stale-record artifacts.
// Returns nil when the fire has no usable start time.
func (b *Builder) delayHours(fire domain.FireEvent, at time.Time, diag *Diagnostics) *float64 {
	if fire.Started.IsZero() {
		return nil
	}
	return b.clip(at.Sub(fire.Started.Time).Hours(), diag)
}

func (b *Builder) joinZones(rec *domain.DelayRecord, fire domain.FireEvent, links []domain.ZoneEventLink, zones map[string]domain.EvacZone, diag *Diagnostics) {
	rec.ZonesLinked = len(links)
	if len(links) == 0 {
		return
	}
	first := links[0]
	if !fire.Started.IsZero() {
		rec.HoursToZoneLink = b.clip(first.LinkedAt.Sub(fire.Started.Time).Hours(), diag)
	}
	if zone, ok := zones[first.ZoneUID]; ok {
		rec.FirstZoneStatus = domain.ResolveZoneStatus(zone.Status, zone.StatusCode)
	} else {
		diag.UnmatchedZoneUIDs++
	}
}

func (b *Builder) joinCounty(rec *domain.DelayRecord, fire domain.FireEvent, matcher *spatial.Matcher, counties map[string]domain.CountyVulnerability, diag *Diagnostics) {
	point, ok := fire.Coords()
	if !ok {
		diag.UnmatchedCoordinates++
		return
	}
	fips, dist := matcher.Nearest(point)
	county, ok := counties[fips]
	if !ok {
		// Matcher only indexes SVI-joined centroids, so this is unreachable
		// unless the reference tables changed under us.
		diag.UnmatchedIDs[TableSVI]++
		return
	}

	rec.CountyFIPS = county.FIPS
	rec.CountyName = county.Name
	rec.CountyState = county.State
	rec.CountyDistance = ptr(dist)
	rec.SVIScore = ptr(county.Score)
	rec.SVISocioeconomic = ptrNaN(county.Socioeconomic)
	rec.SVIHousehold = ptrNaN(county.Household)
	rec.SVIMinority = ptrNaN(county.Minority)
	rec.SVIHousing = ptrNaN(county.Housing)
	rec.PopAge65 = ptrNaN(county.PopAge65)
	rec.PopDisability = ptrNaN(county.PopDisability)
	rec.PopPoverty = ptrNaN(county.PopPoverty)
	rec.PopNoVehicle = ptrNaN(county.PopNoVehicle)
	rec.IsVulnerable = county.Score >= domain.VulnerableThreshold
}

// clip bounds a delay to [0, DELAY_CLIP_MAX_HOURS], counting when it bites.
func (b *Builder) clip(hours float64, diag *Diagnostics) *float64 {
	switch {
	case hours < 0:
		diag.ClippedDelays++
		hours = 0
	case hours > b.cfg.DelayClipMaxHours:
		diag.ClippedDelays++
		hours = b.cfg.DelayClipMaxHours
	}
	return &hours
}

func (b *Builder) summarize(records []domain.DelayRecord, diag *Diagnostics) Report {
	report := Report{
		RunID:          uuid.NewString(),
		GeneratedAt:    domain.Now().UTC(),
		DistanceMetric: b.cfg.DistanceMetric,
		TotalFires:     len(records),
		Diagnostics:    diag,
	}

	var orderDelays, growthRates []float64
	for _, rec := range records {
		if rec.HoursToOrder != nil {
			report.FiresWithOrder++
			orderDelays = append(orderDelays, *rec.HoursToOrder)
		}
		if rec.HoursToWarning != nil {
			report.FiresWithWarning++
		}
		if rec.HoursToAdvisory != nil {
			report.FiresWithAdvisory++
		}
		if rec.HoursToOrder != nil || rec.HoursToWarning != nil || rec.HoursToAdvisory != nil {
			report.FiresWithAnyAction++
		} else {
			report.FiresWithNoConfirmedAction++
		}
		if rec.GrowthRateAcresPerHour != nil {
			report.FiresWithGrowthRate++
			growthRates = append(growthRates, *rec.GrowthRateAcresPerHour)
		}
		if rec.CountyFIPS != "" {
			report.FiresWithCountyMatch++
		}
		if rec.ZonesLinked > 0 {
			report.FiresWithZoneLink++
		}
		if rec.IsVulnerable {
			report.FiresInVulnerableCounties++
		}
	}

	report.MedianHoursToOrder = median(orderDelays)
	report.MedianGrowthRate = median(growthRates)
	if len(records) > 0 {
		report.FractionWithNoAction = float64(report.FiresWithNoConfirmedAction) / float64(len(records))
	}

	b.metrics.RecordsEmitted.Add(float64(len(records)))
	return report
}

func (b *Builder) logSummary(r Report) {
	b.logger.Info("delay dataset built",
		"run_id", r.RunID,
		"total_fires", r.TotalFires,
		"with_order", r.FiresWithOrder,
		"with_warning", r.FiresWithWarning,
		"with_advisory", r.FiresWithAdvisory,
		"no_confirmed_action", r.FiresWithNoConfirmedAction,
		"with_growth_rate", r.FiresWithGrowthRate,
		"with_county_match", r.FiresWithCountyMatch,
		"parse_errors", r.Diagnostics.ParseErrors,
	)
}

func ptr(v float64) *float64 { return &v }

// ptrNaN maps NaN (missing source value) to nil.
func ptrNaN(v float64) *float64 {
	if v != v {
		return nil
	}
	return &v
}
