package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NormalizeID canonicalizes a raw event identifier to its integer decimal
// string form. The extracts encode the same ID as "22429", "22429.0", or with
// stray whitespace depending on which table round-tripped it through a float
// column. Returns ok=false for values that cannot be parsed as a finite
// number; callers count those as unmatched rather than dropping rows
// silently.
//
// Idempotent: NormalizeID of an already-canonical ID returns it unchanged.
func NormalizeID(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}
	return strconv.FormatInt(int64(v), 10), true
}

// NormalizeFIPS canonicalizes a county FIPS code to its 5-digit zero-padded
// form. Codes below 01000 lose their leading zero whenever a source stores
// them numerically ("6037.0" is Los Angeles County, 06037).
func NormalizeFIPS(raw string) (string, bool) {
	id, ok := NormalizeID(raw)
	if !ok {
		return "", false
	}
	n, err := strconv.Atoi(id)
	if err != nil || n < 0 || n > 99999 {
		return "", false
	}
	return fmt.Sprintf("%05d", n), true
}

// JoinFIPS builds a 5-digit county code from separate state and county FIPS
// parts, as the Census centroid file ships them.
func JoinFIPS(state, county string) (string, bool) {
	s, ok := NormalizeID(state)
	if !ok {
		return "", false
	}
	c, ok := NormalizeID(county)
	if !ok {
		return "", false
	}
	sn, err1 := strconv.Atoi(s)
	cn, err2 := strconv.Atoi(c)
	if err1 != nil || err2 != nil || sn < 0 || sn > 99 || cn < 0 || cn > 999 {
		return "", false
	}
	return fmt.Sprintf("%02d%03d", sn, cn), true
}
