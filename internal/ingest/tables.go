package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/emberline/evac-delay-etl/internal/domain"
)

// LoadFireEvents loads the master geo-event table. Rows whose identifier
// fails normalization are skipped and counted — a fire we cannot key can
// never be joined or emitted.
func LoadFireEvents(path string) ([]domain.FireEvent, Stats, error) {
	t, err := openTable(path, "id", "name", "is_active", "lat", "lng",
		"notification_type", "geo_event_type", "date_created")
	if err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	events := make([]domain.FireEvent, 0, len(t.rows))
	for _, row := range t.rows {
		stats.Rows++
		id, ok := domain.NormalizeID(t.get(row, "id"))
		if !ok {
			stats.UnmatchedIDs++
			stats.SkippedRows++
			continue
		}

		started, err := domain.ParseTimestamp(t.get(row, "date_created"))
		if err != nil {
			stats.BadTimestamps++
		} else if started.NaiveAssumedUTC {
			stats.NaiveTimestamps++
		}

		events = append(events, domain.FireEvent{
			ID:               id,
			Name:             t.get(row, "name"),
			Active:           isTrue(t.get(row, "is_active")),
			NotificationType: t.get(row, "notification_type"),
			GeoEventType:     t.get(row, "geo_event_type"),
			Lat:              floatOrNaN(t.get(row, "lat")),
			Lng:              floatOrNaN(t.get(row, "lng")),
			Started:          started,
		})
	}
	return events, stats, nil
}

// LoadChangeRecords loads the change log grouped by canonical event ID.
// Rows with unparseable identifiers or timestamps are skipped and counted;
// malformed payloads are counted as parse errors but the row's timestamp
// context is preserved for the remaining entities.
func LoadChangeRecords(path string) (map[string][]domain.ChangeRecord, Stats, int, error) {
	t, err := openTable(path, "geo_event_id", "date_created", "changes")
	if err != nil {
		return nil, Stats{}, 0, err
	}

	var stats Stats
	parseErrors := 0
	byEvent := make(map[string][]domain.ChangeRecord)
	for _, row := range t.rows {
		stats.Rows++
		id, ok := domain.NormalizeID(t.get(row, "geo_event_id"))
		if !ok {
			stats.UnmatchedIDs++
			stats.SkippedRows++
			continue
		}

		at, err := domain.ParseTimestamp(t.get(row, "date_created"))
		if err != nil {
			stats.BadTimestamps++
			stats.SkippedRows++
			continue
		}
		if at.NaiveAssumedUTC {
			stats.NaiveTimestamps++
		}

		changes, err := domain.DecodeChanges([]byte(t.get(row, "changes")))
		if err != nil {
			parseErrors++
			continue
		}

		byEvent[id] = append(byEvent[id], domain.ChangeRecord{
			EventID:   id,
			Timestamp: at.Time,
			Changes:   changes,
		})
	}
	return byEvent, stats, parseErrors, nil
}

// LoadEvacZones loads the evacuation-zone table keyed by zone UID.
func LoadEvacZones(path string) (map[string]domain.EvacZone, Stats, error) {
	t, err := openTable(path, "uid_v2", "display_name", "external_status", "status", "is_active")
	if err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	zones := make(map[string]domain.EvacZone, len(t.rows))
	for _, row := range t.rows {
		stats.Rows++
		uid := strings.TrimSpace(t.get(row, "uid_v2"))
		if uid == "" {
			stats.UnmatchedIDs++
			stats.SkippedRows++
			continue
		}
		zones[uid] = domain.EvacZone{
			UID:         uid,
			DisplayName: t.get(row, "display_name"),
			Status:      t.get(row, "external_status"),
			StatusCode:  t.get(row, "status"),
			Active:      isTrue(t.get(row, "is_active")),
		}
	}
	return zones, stats, nil
}

// LoadZoneEventLinks loads the zone-to-event mapping table.
func LoadZoneEventLinks(path string) ([]domain.ZoneEventLink, Stats, error) {
	t, err := openTable(path, "evac_zone_id", "geo_event_id", "date_created")
	if err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	links := make([]domain.ZoneEventLink, 0, len(t.rows))
	for _, row := range t.rows {
		stats.Rows++
		eventID, ok := domain.NormalizeID(t.get(row, "geo_event_id"))
		if !ok {
			stats.UnmatchedIDs++
			stats.SkippedRows++
			continue
		}
		at, err := domain.ParseTimestamp(t.get(row, "date_created"))
		if err != nil {
			stats.BadTimestamps++
			stats.SkippedRows++
			continue
		}
		if at.NaiveAssumedUTC {
			stats.NaiveTimestamps++
		}
		links = append(links, domain.ZoneEventLink{
			ZoneUID:  strings.TrimSpace(t.get(row, "evac_zone_id")),
			EventID:  eventID,
			LinkedAt: at.Time,
		})
	}
	return links, stats, nil
}

// LoadCountyVulnerability loads the SVI county file keyed by 5-digit FIPS.
func LoadCountyVulnerability(path string) (map[string]domain.CountyVulnerability, Stats, error) {
	t, err := openTable(path, "FIPS", "COUNTY", "STATE", "RPL_THEMES")
	if err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	counties := make(map[string]domain.CountyVulnerability, len(t.rows))
	for _, row := range t.rows {
		stats.Rows++
		fips, ok := domain.NormalizeFIPS(t.get(row, "FIPS"))
		if !ok {
			stats.UnmatchedIDs++
			stats.SkippedRows++
			continue
		}
		score := floatOrNaN(t.get(row, "RPL_THEMES"))
		if math.IsNaN(score) || score < 0 || score > 1 {
			// SVI publishes -999 for suppressed counties.
			stats.SkippedRows++
			continue
		}
		counties[fips] = domain.CountyVulnerability{
			FIPS:          fips,
			Name:          t.get(row, "COUNTY"),
			State:         t.get(row, "STATE"),
			Score:         score,
			Socioeconomic: floatOrNaN(t.get(row, "RPL_THEME1")),
			Household:     floatOrNaN(t.get(row, "RPL_THEME2")),
			Minority:      floatOrNaN(t.get(row, "RPL_THEME3")),
			Housing:       floatOrNaN(t.get(row, "RPL_THEME4")),
			PopAge65:      floatOrNaN(t.get(row, "E_AGE65")),
			PopPoverty:    floatOrNaN(t.get(row, "E_POV150")),
			PopDisability: floatOrNaN(t.get(row, "E_DISABL")),
			PopNoVehicle:  floatOrNaN(t.get(row, "E_NOVEH")),
		}
	}
	return counties, stats, nil
}

// LoadCountyCentroids loads the Census population-centroid file.
func LoadCountyCentroids(path string) ([]domain.CountyCentroid, Stats, error) {
	t, err := openTable(path, "STATEFP", "COUNTYFP", "LATITUDE", "LONGITUDE")
	if err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	centroids := make([]domain.CountyCentroid, 0, len(t.rows))
	for _, row := range t.rows {
		stats.Rows++
		fips, ok := domain.JoinFIPS(t.get(row, "STATEFP"), t.get(row, "COUNTYFP"))
		if !ok {
			stats.UnmatchedIDs++
			stats.SkippedRows++
			continue
		}
		lat := floatOrNaN(t.get(row, "LATITUDE"))
		lng := floatOrNaN(t.get(row, "LONGITUDE"))
		if math.IsNaN(lat) || math.IsNaN(lng) {
			stats.SkippedRows++
			continue
		}
		centroids = append(centroids, domain.CountyCentroid{FIPS: fips, Lat: lat, Lng: lng})
	}
	return centroids, stats, nil
}

// floatOrNaN parses a numeric cell, returning NaN for empty or unparseable
// values so "missing" stays distinguishable from zero.
func floatOrNaN(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
