// Package domain models the wildfire incident-feed extracts that the
// evacuation-delay pipeline reconstructs timing data from.
//
// # Data Source
//
// The inputs are static CSV extracts of an incident-tracking product's
// database: a master geo-event table (one row per tracked fire), an
// append-only per-event change log, an evacuation-zone table, a
// zone-to-event mapping table, the CDC/ATSDR Social Vulnerability Index
// county file, and a Census county population-centroid file.
//
// # Identifier Conventions
//
// Event identifiers are numeric, but the extracts disagree on encoding:
// the master table stores them as integers while the change log and zone
// map round-trip them through floats, producing strings like "22429.0".
// [NormalizeID] canonicalizes every representation to the plain integer
// decimal string; values that cannot be parsed as a number are reported
// as unmatched and excluded from joins. County FIPS codes are 5 digits
// with a significant leading zero that float round-tripping destroys;
// [NormalizeFIPS] re-pads them.
//
// # Change Log Format
//
// Each change-log row carries a JSON object mapping a field path to an
// [old, new] pair:
//
//	{"data.evacuation_orders": [null, "[\"zone-1\"]"],
//	 "data.acreage": ["120", "450.5"]}
//
// Known field families are evacuation orders, warnings and advisories,
// acreage, containment percentage, and the radio-traffic spread-rate
// note. Anything else decodes to an Unrecognized change so schema drift
// is confined to [DecodeChanges]. An evacuation field "activates" when
// its new value is non-empty and its old value was empty — the upstream
// product writes "", "null", "None", and "[]" interchangeably for empty.
//
// # Timestamp Conventions
//
// The master table's date_created values are timezone-naive; the change
// log's are zone-aware. The product's documentation states that naive
// values already represent UTC. [ParseTimestamp] follows that convention
// but labels the result, so the run report can state how many rows rest
// on the unverified assumption rather than silently inheriting it.
//
// # Zone Status
//
// Evacuation zones carry the status twice: a human-readable string
// (authoritative) and a coded fallback. [ResolveZoneStatus] prefers the
// readable form and falls back to the code only when it is absent.
package domain
