// Command validate performs end-to-end integrity checks on a completed run:
// the output dataset against the input extracts, the run report against the
// dataset, and the derived columns against their definitions. It verifies
// row counts, delay semantics, flag consistency, and join coherence.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -fires data/geo_events_geoevent.csv \
//	  -svi data/SVI_2022_US_county.csv \
//	  -dataset out/fire_events_with_svi_and_delays.csv \
//	  -report out/run_report.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/emberline/evac-delay-etl/internal/adapter/dataset"
	"github.com/emberline/evac-delay-etl/internal/domain"
	"github.com/emberline/evac-delay-etl/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	firesPath := flag.String("fires", "", "path to the master geo-event CSV")
	sviPath := flag.String("svi", "", "path to the SVI county CSV")
	datasetPath := flag.String("dataset", "", "path to the output delay dataset CSV")
	reportPath := flag.String("report", "", "path to the run report JSON")
	flag.Parse()

	if *firesPath == "" || *sviPath == "" || *datasetPath == "" || *reportPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*firesPath, *sviPath, *datasetPath, *reportPath); code != 0 {
		os.Exit(code)
	}
}

func run(firesPath, sviPath, datasetPath, reportPath string) int {
	fmt.Println("=== Delay Dataset Integrity Validation ===")
	fmt.Println()

	fires, err := loadCSV(firesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fires CSV: %v\n", err)
		return 1
	}
	svi, err := loadCSV(sviPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load SVI CSV: %v\n", err)
		return 1
	}
	rows, err := loadCSV(datasetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load dataset CSV: %v\n", err)
		return 1
	}
	report, err := loadReport(reportPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load report JSON: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateShape(rows, fires),
		validateDelaySemantics(rows),
		validateReportReconciliation(rows, report),
		validateCountyJoin(rows, svi),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-46s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d fires in, %d delay records out, report run %s\n",
		len(fires), len(rows), report.RunID)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

func (r csvRow) get(col string) string { return r.fields[col] }

func loadCSV(path string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) < 1 {
		return nil, fmt.Errorf("no header row in %s", path)
	}

	header := all[0]
	var rows []csvRow
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[h] = strings.TrimSpace(row[j])
			}
		}
		rows = append(rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return rows, nil
}

func loadReport(path string) (pipeline.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Report{}, err
	}
	var report pipeline.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return pipeline.Report{}, err
	}
	return report, nil
}

// ── Phase 1: Dataset Shape ──
// One row per normalizable fire event, well-formed identifiers, valid flags.

func validateShape(rows, fires []csvRow) *phase {
	p := &phase{name: "Phase 1: Dataset Shape"}

	expected := map[string]bool{}
	for _, f := range fires {
		if id, ok := domain.NormalizeID(f.get("id")); ok {
			expected[id] = true
		}
	}
	if len(rows) != len(expected) {
		p.errorf("row count: %d normalizable fires, %d dataset rows", len(expected), len(rows))
	}

	seen := map[string]int{}
	for _, row := range rows {
		id := row.get("geo_event_id")
		if id == "" {
			p.errorf("line %d: empty geo_event_id", row.lineNum)
			continue
		}
		if prev, dup := seen[id]; dup {
			p.errorf("line %d: duplicate geo_event_id %q (first at line %d)", row.lineNum, id, prev)
		}
		seen[id] = row.lineNum
		if !expected[id] {
			p.errorf("line %d: geo_event_id %q not in master table", row.lineNum, id)
		}
		for _, col := range []string{"evacuation_occurred", "exceeds_critical_threshold", "is_vulnerable"} {
			if v := row.get(col); v != "0" && v != "1" {
				p.errorf("line %d: %s=%q, want 0 or 1", row.lineNum, col, v)
			}
		}
	}

	// Header columns must match the writer's schema exactly.
	if len(rows) > 0 {
		for _, col := range dataset.Header {
			if _, ok := rows[0].fields[col]; !ok {
				p.errorf("dataset missing column %q", col)
			}
		}
	}
	return p
}

// ── Phase 2: Delay Semantics ──
// The composite delay follows the order-then-warning fallback and the
// derived flags agree with it.

func validateDelaySemantics(rows []csvRow) *phase {
	p := &phase{name: "Phase 2: Delay Semantics"}

	for _, row := range rows {
		delay, hasDelay := floatCell(row.get("evacuation_delay_hours"))
		order, hasOrder := floatCell(row.get("hours_to_order"))
		warning, hasWarning := floatCell(row.get("hours_to_warning"))

		switch {
		case hasOrder:
			if !hasDelay || !floatEq(delay, order) {
				p.errorf("line %d: delay should equal hours_to_order %g, got %q",
					row.lineNum, order, row.get("evacuation_delay_hours"))
			}
		case hasWarning:
			if !hasDelay || !floatEq(delay, warning) {
				p.errorf("line %d: delay should fall back to hours_to_warning %g, got %q",
					row.lineNum, warning, row.get("evacuation_delay_hours"))
			}
		default:
			if hasDelay {
				p.errorf("line %d: delay %g present without order or warning", row.lineNum, delay)
			}
		}

		if hasDelay && delay < 0 {
			p.errorf("line %d: negative delay %g", row.lineNum, delay)
		}
		if occurred := row.get("evacuation_occurred") == "1"; occurred != hasDelay {
			p.errorf("line %d: evacuation_occurred=%v but delay present=%v", row.lineNum, occurred, hasDelay)
		}
		critical := row.get("exceeds_critical_threshold") == "1"
		if critical != (hasDelay && delay > domain.CriticalDelayThresholdHours) {
			p.errorf("line %d: exceeds_critical_threshold=%v inconsistent with delay %q",
				row.lineNum, critical, row.get("evacuation_delay_hours"))
		}
	}
	return p
}

// ── Phase 3: Report Reconciliation ──
// Every count in the report must be recomputable from the dataset.

func validateReportReconciliation(rows []csvRow, report pipeline.Report) *phase {
	p := &phase{name: "Phase 3: Report Reconciliation"}

	var withOrder, withWarning, withAdvisory, noAction, withCounty, vulnerable int
	for _, row := range rows {
		hasOrder := row.get("hours_to_order") != ""
		hasWarning := row.get("hours_to_warning") != ""
		hasAdvisory := row.get("hours_to_advisory") != ""
		if hasOrder {
			withOrder++
		}
		if hasWarning {
			withWarning++
		}
		if hasAdvisory {
			withAdvisory++
		}
		if !hasOrder && !hasWarning && !hasAdvisory {
			noAction++
		}
		if row.get("county_fips") != "" {
			withCounty++
		}
		if row.get("is_vulnerable") == "1" {
			vulnerable++
		}
	}

	checks := []struct {
		name     string
		got, exp int
	}{
		{"total_fires", report.TotalFires, len(rows)},
		{"fires_with_order", report.FiresWithOrder, withOrder},
		{"fires_with_warning", report.FiresWithWarning, withWarning},
		{"fires_with_advisory", report.FiresWithAdvisory, withAdvisory},
		{"fires_with_no_confirmed_action", report.FiresWithNoConfirmedAction, noAction},
		{"fires_with_county_match", report.FiresWithCountyMatch, withCounty},
		{"fires_in_vulnerable_counties", report.FiresInVulnerableCounties, vulnerable},
	}
	for _, c := range checks {
		if c.got != c.exp {
			p.errorf("%s: report says %d, dataset recount is %d", c.name, c.got, c.exp)
		}
	}

	if len(rows) > 0 {
		frac := float64(noAction) / float64(len(rows))
		if !floatEq(report.FractionWithNoAction, frac) {
			p.errorf("fraction_with_no_confirmed_action: report %g, recount %g",
				report.FractionWithNoAction, frac)
		}
	}
	if report.RunID == "" {
		p.errorf("report run_id is empty")
	}
	if report.GeneratedAt.IsZero() {
		p.errorf("report generated_at is zero")
	}
	return p
}

// ── Phase 4: County Join Coherence ──
// A matched county must exist in the SVI file with a usable score, and the
// vulnerability flag must agree with the score.

func validateCountyJoin(rows, svi []csvRow) *phase {
	p := &phase{name: "Phase 4: County Join Coherence"}

	scores := map[string]float64{}
	for _, row := range svi {
		fips, ok := domain.NormalizeFIPS(row.get("FIPS"))
		if !ok {
			continue
		}
		if score, ok := floatCell(row.get("RPL_THEMES")); ok && score >= 0 && score <= 1 {
			scores[fips] = score
		}
	}

	for _, row := range rows {
		fips := row.get("county_fips")
		score, hasScore := floatCell(row.get("svi_score"))

		if fips == "" {
			if hasScore {
				p.errorf("line %d: svi_score %g without a county match", row.lineNum, score)
			}
			continue
		}
		if len(fips) != 5 {
			p.errorf("line %d: county_fips %q is not 5 digits", row.lineNum, fips)
			continue
		}
		expected, ok := scores[fips]
		if !ok {
			p.errorf("line %d: county_fips %q not found with usable score in SVI file", row.lineNum, fips)
			continue
		}
		if !hasScore || !floatEq(score, expected) {
			p.errorf("line %d: svi_score %q, SVI file says %g", row.lineNum, row.get("svi_score"), expected)
		}
		if vulnerable := row.get("is_vulnerable") == "1"; vulnerable != (expected >= domain.VulnerableThreshold) {
			p.errorf("line %d: is_vulnerable=%v but score is %g", row.lineNum, vulnerable, expected)
		}
	}
	return p
}

// ── Helpers ──

func floatCell(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
