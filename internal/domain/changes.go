package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FieldFamily tags a decoded change with the field it touched.
type FieldFamily string

const (
	FamilyOrders       FieldFamily = "evacuation_orders"
	FamilyWarnings     FieldFamily = "evacuation_warnings"
	FamilyAdvisories   FieldFamily = "evacuation_advisories"
	FamilyAcreage      FieldFamily = "acreage"
	FamilyContainment  FieldFamily = "containment"
	FamilySpreadRate   FieldFamily = "spread_rate"
	FamilyUnrecognized FieldFamily = "unrecognized"
)

// familyByPath maps the change log's field paths to their families.
// Unknown paths fall through to FamilyUnrecognized so schema drift stays
// contained here.
var familyByPath = map[string]FieldFamily{
	"data.evacuation_orders":                 FamilyOrders,
	"data.evacuation_warnings":               FamilyWarnings,
	"data.evacuation_advisories":             FamilyAdvisories,
	"data.acreage":                           FamilyAcreage,
	"data.containment":                       FamilyContainment,
	"radio_traffic_indicates_rate_of_spread": FamilySpreadRate,
}

// FieldChange is one decoded field delta: the payload maps a field path to an
// [old, new] pair. Old and New hold the values normalized to strings; JSON
// null becomes the empty string.
type FieldChange struct {
	Family FieldFamily
	Path   string
	Old    string
	New    string
}

// Activates reports whether this change newly introduces a value: the new
// value is non-empty and the old one was empty or absent. Re-emptying and
// repeated values never activate.
func (c FieldChange) Activates() bool {
	return !emptyChangeValue(c.New) && emptyChangeValue(c.Old)
}

// emptyChangeValue matches the upstream product's interchangeable spellings
// of "no value".
func emptyChangeValue(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "null", "None", "[]":
		return true
	}
	return false
}

// DecodeChanges parses a change-log payload into tagged field changes.
// Returns an error when the payload is not the expected object-of-pairs
// structure; callers skip the record and count a parse error rather than
// aborting the entity.
func DecodeChanges(payload []byte) ([]FieldChange, error) {
	var raw map[string][2]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode changes payload: %w", err)
	}

	changes := make([]FieldChange, 0, len(raw))
	for path, pair := range raw {
		family, ok := familyByPath[path]
		if !ok {
			family = FamilyUnrecognized
		}
		changes = append(changes, FieldChange{
			Family: family,
			Path:   path,
			Old:    rawValueString(pair[0]),
			New:    rawValueString(pair[1]),
		})
	}
	// Map iteration order is random; keep decoded output deterministic.
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// rawValueString flattens a JSON value to its string form: strings are
// unquoted, null is empty, numbers/arrays/objects keep their compact JSON.
func rawValueString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return trimmed
}

// FirstActivation returns the timestamp of the earliest record whose payload
// newly introduces a non-empty value for the given field family, scanning in
// ascending timestamp order. Log order is not trustworthy, so records are
// sorted by timestamp first. Returns ok=false when no record activates.
//
// Deterministic: the same record set yields the same answer regardless of
// input ordering.
func FirstActivation(records []ChangeRecord, family FieldFamily) (time.Time, bool) {
	sorted := sortedByTime(records)
	for _, rec := range sorted {
		for _, ch := range rec.Changes {
			if ch.Family == family && ch.Activates() {
				return rec.Timestamp, true
			}
		}
	}
	return time.Time{}, false
}

// AcreageObservation is one acreage delta in time.
type AcreageObservation struct {
	At    time.Time
	From  float64 // acreage before the change, 0 when the old value was empty
	Acres float64 // acreage reported at this change
}

// AcreageSeries extracts the time-ordered acreage observations from a fire's
// change records. Changes whose values fail numeric parsing are skipped and
// counted through the skipped return.
func AcreageSeries(records []ChangeRecord) (obs []AcreageObservation, skipped int) {
	for _, rec := range sortedByTime(records) {
		for _, ch := range rec.Changes {
			if ch.Family != FamilyAcreage {
				continue
			}
			to, okTo := parseAcres(ch.New)
			from, okFrom := parseAcres(ch.Old)
			if !okTo || !okFrom {
				skipped++
				continue
			}
			obs = append(obs, AcreageObservation{At: rec.Timestamp, From: from, Acres: to})
		}
	}
	return obs, skipped
}

// parseAcres treats empty values as zero, matching the change log's habit of
// writing null for a fire's first reported size.
func parseAcres(s string) (float64, bool) {
	if emptyChangeValue(s) {
		return 0, true
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FinalContainment returns the containment percentage from the latest
// containment change, or ok=false when none parsed.
func FinalContainment(records []ChangeRecord) (pct float64, ok bool) {
	for _, rec := range sortedByTime(records) {
		for _, ch := range rec.Changes {
			if ch.Family != FamilyContainment || emptyChangeValue(ch.New) {
				continue
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(ch.New), 64); err == nil {
				pct, ok = v, true
			}
		}
	}
	return pct, ok
}

// LastSpreadRate returns the most recent radio-traffic spread-rate note, or
// "" when none was recorded.
func LastSpreadRate(records []ChangeRecord) string {
	last := ""
	for _, rec := range sortedByTime(records) {
		for _, ch := range rec.Changes {
			if ch.Family == FamilySpreadRate && !emptyChangeValue(ch.New) {
				last = ch.New
			}
		}
	}
	return last
}

// sortedByTime returns a copy of records in ascending timestamp order.
// Ties keep their relative input order stable.
func sortedByTime(records []ChangeRecord) []ChangeRecord {
	sorted := make([]ChangeRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}
