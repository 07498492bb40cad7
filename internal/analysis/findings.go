package analysis

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/emberline/evac-delay-etl/internal/domain"
)

// Findings bundles the advisory analysis results attached to a run report.
// A nil model plus a non-empty error string means "insufficient data", which
// downstream displays as a note rather than a finding.
type Findings struct {
	Survival      *CoxModel `json:"survival,omitempty"`
	SurvivalError string    `json:"survival_error,omitempty"`
	Hotspots      []Hotspot `json:"hotspots,omitempty"`
	HotspotError  string    `json:"hotspot_error,omitempty"`
}

// Options tune the analyzer.
type Options struct {
	// WindowHours is the censoring horizon: fires with no confirmed order
	// are treated as order-free for at least this long.
	WindowHours float64
	HotspotK    int
	ZThreshold  float64
}

// Analyze fits both models over a completed delay dataset. Degenerate
// inputs produce warnings inside Findings, never an error — the analysis is
// exploratory and must not gate the pipeline.
func Analyze(records []domain.DelayRecord, opts Options, logger *slog.Logger) Findings {
	var findings Findings

	model, err := fitSurvival(records, opts.WindowHours)
	if err != nil {
		findings.SurvivalError = err.Error()
		if errors.Is(err, ErrInsufficientData) {
			logger.Warn("survival model not fitted", "error", err)
		} else {
			logger.Error("survival model not fitted", "error", err)
		}
	} else {
		findings.Survival = model
	}

	hotspots, err := fitHotspots(records, opts.HotspotK, opts.ZThreshold)
	if err != nil {
		findings.HotspotError = err.Error()
		logger.Warn("hotspot analysis not fitted", "error", err)
	} else {
		findings.Hotspots = hotspots
	}

	return findings
}

// survivalCovariates names the model terms, in column order.
var survivalCovariates = []string{
	"svi_score",
	"growth_rate_acres_per_hour",
	"pop_age65",
	"pop_disability",
	"pop_poverty",
	"pop_no_vehicle",
}

// fitSurvival builds the time-to-first-order survival frame. Fires missing
// any covariate are excluded (complete-case, as the source analysis did);
// fires with no confirmed order are right-censored at the window horizon.
func fitSurvival(records []domain.DelayRecord, windowHours float64) (*CoxModel, error) {
	var subjects []Subject
	for _, rec := range records {
		covs, ok := covariateRow(rec)
		if !ok {
			continue
		}
		if rec.HoursToOrder != nil {
			subjects = append(subjects, Subject{
				DurationHours: *rec.HoursToOrder,
				ObservedEvent: true,
				Covariates:    covs,
			})
		} else {
			subjects = append(subjects, Subject{
				DurationHours: windowHours,
				ObservedEvent: false,
				Covariates:    covs,
			})
		}
	}
	return FitCoxPH(survivalCovariates, subjects)
}

func covariateRow(rec domain.DelayRecord) ([]float64, bool) {
	fields := []*float64{
		rec.SVIScore,
		rec.GrowthRateAcresPerHour,
		rec.PopAge65,
		rec.PopDisability,
		rec.PopPoverty,
		rec.PopNoVehicle,
	}
	covs := make([]float64, len(fields))
	for i, f := range fields {
		if f == nil {
			return nil, false
		}
		covs[i] = *f
	}
	return covs, true
}

// fitHotspots aggregates delay by matched county and runs the Gi* scan.
// County position is the mean of its fires' coordinates; only fires with a
// confirmed delay and a county match participate.
func fitHotspots(records []domain.DelayRecord, k int, zThreshold float64) ([]Hotspot, error) {
	type agg struct {
		lat, lng, delay float64
		fires           int
	}
	byCounty := make(map[string]*agg)
	for _, rec := range records {
		if rec.CountyFIPS == "" || rec.EvacuationDelayHours == nil {
			continue
		}
		a, ok := byCounty[rec.CountyFIPS]
		if !ok {
			a = &agg{}
			byCounty[rec.CountyFIPS] = a
		}
		a.lat += rec.Lat
		a.lng += rec.Lng
		a.delay += *rec.EvacuationDelayHours
		a.fires++
	}

	counties := make([]CountyDelay, 0, len(byCounty))
	for fips, a := range byCounty {
		n := float64(a.fires)
		counties = append(counties, CountyDelay{
			FIPS:           fips,
			Lat:            a.lat / n,
			Lng:            a.lng / n,
			MeanDelayHours: a.delay / n,
			Fires:          a.fires,
		})
	}
	// Map order is random; sort so z-scores and output order are stable.
	sort.Slice(counties, func(i, j int) bool { return counties[i].FIPS < counties[j].FIPS })

	return GetisOrdGiStar(counties, k, zThreshold)
}
