// Command genmock generates the six synthetic CSV extracts the pipeline
// reads, shaped like the production exports. It writes through the actual
// domain conventions (float-formatted change-log IDs, naive timestamps,
// suppressed SVI rows) so fixtures exercise the same normalization paths as
// real data.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir testdata/mock -fires 40 -seed 7
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/emberline/evac-delay-etl/internal/domain"
)

var baseDate = time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "directory to write the fixture CSVs into")
	fires := flag.Int("fires", 40, "number of fire events to generate")
	seed := flag.Int64("seed", 1, "random seed, fixed for reproducible fixtures")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out-dir")
	}

	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	g := &generator{rng: rand.New(rand.NewSource(*seed))}
	g.makeCounties()
	g.makeFires(*fires)
	g.makeZones()

	tables := []struct {
		file   string
		header []string
		rows   [][]string
	}{
		{"geo_events_geoevent.csv", eventHeader, g.eventRows},
		{"geo_events_geoeventchangelog.csv", changelogHeader, g.changelogRows},
		{"evac_zones_gis_evaczone.csv", zoneHeader, g.zoneRows},
		{"evac_zone_status_geo_event_map.csv", zoneMapHeader, g.zoneMapRows},
		{"SVI_2022_US_county.csv", sviHeader, g.sviRows},
		{"CenPop2020_Mean_CO.csv", centroidHeader, g.centroidRows},
	}
	for _, t := range tables {
		path := filepath.Join(*outDir, t.file)
		if err := writeCSV(path, t.header, t.rows); err != nil {
			return fmt.Errorf("writing %s: %w", t.file, err)
		}
		log.Printf("wrote %s: %d rows", path, len(t.rows))
	}

	g.printStats()
	return nil
}

var (
	eventHeader     = []string{"id", "name", "is_active", "lat", "lng", "notification_type", "geo_event_type", "date_created"}
	changelogHeader = []string{"geo_event_id", "date_created", "changes"}
	zoneHeader      = []string{"uid_v2", "display_name", "external_status", "status", "is_active"}
	zoneMapHeader   = []string{"evac_zone_id", "geo_event_id", "date_created"}
	sviHeader       = []string{"FIPS", "COUNTY", "STATE", "RPL_THEMES", "RPL_THEME1", "RPL_THEME2", "RPL_THEME3", "RPL_THEME4", "E_AGE65", "E_POV150", "E_DISABL", "E_NOVEH"}
	centroidHeader  = []string{"STATEFP", "COUNTYFP", "LATITUDE", "LONGITUDE"}
)

type county struct {
	fips     string
	name     string
	lat, lng float64
	svi      float64
}

type generator struct {
	rng      *rand.Rand
	counties []county

	eventRows     [][]string
	changelogRows [][]string
	zoneRows      [][]string
	zoneMapRows   [][]string
	sviRows       [][]string
	centroidRows  [][]string

	withOrder, withWarningOnly, withNoAction, naiveStamps, badPayloads int
}

// makeCounties lays a 4x3 centroid grid over northern California and gives
// each county an SVI percentile. One extra county is published suppressed
// (-999) so the loader's skip path has a fixture row.
func (g *generator) makeCounties() {
	names := []string{"Alder", "Basalt", "Cinder", "Dove", "Ember", "Flint",
		"Granite", "Hollow", "Iron", "Juniper", "Kestrel", "Larkspur"}
	for i, name := range names {
		c := county{
			fips: fmt.Sprintf("06%03d", 2*i+1),
			name: name + " County",
			lat:  38.0 + float64(i/4)*0.8,
			lng:  -122.5 + float64(i%4)*0.9,
			svi:  g.rng.Float64(),
		}
		g.counties = append(g.counties, c)
		g.sviRows = append(g.sviRows, []string{
			c.fips, c.name, "California",
			fmt.Sprintf("%.4f", c.svi),
			fmt.Sprintf("%.4f", g.rng.Float64()),
			fmt.Sprintf("%.4f", g.rng.Float64()),
			fmt.Sprintf("%.4f", g.rng.Float64()),
			fmt.Sprintf("%.4f", g.rng.Float64()),
			fmt.Sprintf("%d", 1000+g.rng.Intn(20000)),
			fmt.Sprintf("%d", 2000+g.rng.Intn(30000)),
			fmt.Sprintf("%d", 500+g.rng.Intn(10000)),
			fmt.Sprintf("%d", 100+g.rng.Intn(5000)),
		})
		g.centroidRows = append(g.centroidRows, []string{
			"6", c.fips[2:],
			fmt.Sprintf("%.6f", c.lat),
			fmt.Sprintf("%.6f", c.lng),
		})
	}
	g.sviRows = append(g.sviRows, []string{
		"06999", "Suppressed County", "California", "-999",
		"-999", "-999", "-999", "-999", "", "", "", "",
	})
}

func (g *generator) makeFires(n int) {
	for i := 0; i < n; i++ {
		id := 22400 + i
		c := g.counties[g.rng.Intn(len(g.counties))]
		start := baseDate.Add(time.Duration(g.rng.Intn(45*24)) * time.Hour)
		lat := c.lat + (g.rng.Float64()-0.5)*0.3
		lng := c.lng + (g.rng.Float64()-0.5)*0.3

		g.eventRows = append(g.eventRows, []string{
			fmt.Sprintf("%d", id),
			fmt.Sprintf("Mock Fire %d", i+1),
			boolCell(g.rng.Float64() < 0.3),
			fmt.Sprintf("%.6f", lat),
			fmt.Sprintf("%.6f", lng),
			"wildfire",
			"wildfire",
			start.Format(time.RFC3339),
		})
		g.makeChangelog(id, start)
	}
}

// makeChangelog writes a fire's acreage trajectory and, probabilistically,
// its evacuation actions. Change-log IDs are written float-formatted
// ("22429.0") the way the export does, and roughly a fifth of timestamps
// drop their zone suffix.
func (g *generator) makeChangelog(id int, start time.Time) {
	logID := fmt.Sprintf("%d.0", id)

	acres := 5 + g.rng.Float64()*50
	prev := ""
	updates := 2 + g.rng.Intn(5)
	for u := 0; u < updates; u++ {
		at := start.Add(time.Duration(u*6+g.rng.Intn(6)) * time.Hour)
		cur := fmt.Sprintf("%.1f", acres)
		payload := fmt.Sprintf(`{"data.acreage": [%s, %s]}`, orNull(prev), cur)
		g.appendChange(logID, at, payload)
		prev = cur
		acres *= 1 + g.rng.Float64()
	}

	switch r := g.rng.Float64(); {
	case r < 0.55:
		at := start.Add(time.Duration(1+g.rng.Intn(48)) * time.Hour)
		g.appendChange(logID, at, `{"data.evacuation_orders": ["[]", "[\"zone-1\"]"]}`)
		if g.rng.Float64() < 0.5 {
			g.appendChange(logID, at.Add(-2*time.Hour), `{"data.evacuation_warnings": [null, "[\"zone-1\"]"]}`)
		}
		g.withOrder++
	case r < 0.75:
		at := start.Add(time.Duration(1+g.rng.Intn(72)) * time.Hour)
		g.appendChange(logID, at, `{"data.evacuation_warnings": ["", "[\"zone-2\"]"]}`)
		g.withWarningOnly++
	default:
		g.withNoAction++
	}

	if g.rng.Float64() < 0.6 {
		at := start.Add(time.Duration(updates*6+12) * time.Hour)
		g.appendChange(logID, at, fmt.Sprintf(`{"data.containment": [null, %d]}`, 40+g.rng.Intn(60)))
	}
	if g.rng.Float64() < 0.1 {
		g.appendChange(logID, start.Add(time.Hour), `not a json object`)
		g.badPayloads++
	}
}

func (g *generator) appendChange(logID string, at time.Time, payload string) {
	stamp := at.Format(time.RFC3339)
	if g.rng.Float64() < 0.2 {
		stamp = at.Format("2006-01-02 15:04:05")
		g.naiveStamps++
	}
	g.changelogRows = append(g.changelogRows, []string{logID, stamp, payload})
}

// makeZones creates one zone per county and links roughly half the fires to
// the zone of a nearby county.
func (g *generator) makeZones() {
	for i, c := range g.counties {
		g.zoneRows = append(g.zoneRows, []string{
			fmt.Sprintf("zone-%03d", i+1),
			c.name + " Zone A",
			pick(g.rng, "Evacuation Order", "Evacuation Warning", "Normal"),
			pick(g.rng, "order", "warning", "normal"),
			boolCell(true),
		})
	}
	for _, row := range g.eventRows {
		if g.rng.Float64() < 0.5 {
			continue
		}
		start, _ := time.Parse(time.RFC3339, row[7])
		g.zoneMapRows = append(g.zoneMapRows, []string{
			fmt.Sprintf("zone-%03d", 1+g.rng.Intn(len(g.counties))),
			row[0] + ".0",
			start.Add(time.Duration(2+g.rng.Intn(24)) * time.Hour).Format(time.RFC3339),
		})
	}
}

func (g *generator) printStats() {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Fires: %d\n", len(g.eventRows))
	fmt.Printf("With order: %d, warning only: %d, no action: %d\n",
		g.withOrder, g.withWarningOnly, g.withNoAction)
	fmt.Printf("Changelog rows: %d (naive timestamps: %d, bad payloads: %d)\n",
		len(g.changelogRows), g.naiveStamps, g.badPayloads)
	fmt.Printf("Zone links: %d\n", len(g.zoneMapRows))
	fmt.Printf("SVI counties: %d (one suppressed)\n", len(g.sviRows))
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func boolCell(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func orNull(s string) string {
	if s == "" {
		return "null"
	}
	return s
}

func pick(rng *rand.Rand, options ...string) string {
	return options[rng.Intn(len(options))]
}
