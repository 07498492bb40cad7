package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberline/evac-delay-etl/internal/config"
	"github.com/emberline/evac-delay-etl/internal/domain"
	"github.com/emberline/evac-delay-etl/internal/observability"
)

// fixtureConfig writes a small but complete six-table input set and returns
// a config pointing at it. The scenario:
//
//	fire 101: order at +5h, warning at +3h, 2 acreage updates, zone link
//	fire 102: warning only at +2h
//	fire 103: no change records at all
//	fire 104: order backdated 1h before fire start (clips to 0)
//	fire 105: no usable coordinates
func fixtureConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	fires := write("fires.csv",
		"id,name,is_active,lat,lng,notification_type,geo_event_type,date_created\n"+
			"101,Alder Fire,True,38.20,-122.30,wildfire,wildfire,2025-01-06T00:00:00Z\n"+
			"102.0,Basalt Fire,True,38.90,-121.40,wildfire,wildfire,2025-01-07T00:00:00Z\n"+
			"103,Cinder Fire,False,38.15,-122.35,wildfire,wildfire,2025-01-08T00:00:00Z\n"+
			"104,Dove Fire,True,38.85,-121.45,wildfire,wildfire,2025-01-09T00:00:00Z\n"+
			"105,Ember Fire,True,0,0,wildfire,wildfire,2025-01-10T00:00:00Z\n")

	changelog := write("changelog.csv",
		"geo_event_id,date_created,changes\n"+
			`101.0,2025-01-06T05:00:00Z,"{""data.evacuation_orders"": [null, ""[\""z1\""]""]}"`+"\n"+
			`101.0,2025-01-06T03:00:00Z,"{""data.evacuation_warnings"": [""[]"", ""[\""z1\""]""]}"`+"\n"+
			`101.0,2025-01-06T01:00:00Z,"{""data.acreage"": [null, ""40""]}"`+"\n"+
			`101.0,2025-01-06T11:00:00Z,"{""data.acreage"": [""40"", ""240""]}"`+"\n"+
			`101.0,2025-01-06T20:00:00Z,"{""data.containment"": [null, ""55""]}"`+"\n"+
			`102,2025-01-07T02:00:00Z,"{""data.evacuation_warnings"": [null, ""[\""z2\""]""]}"`+"\n"+
			`104,2025-01-08T23:00:00Z,"{""data.evacuation_orders"": [null, ""[\""z4\""]""]}"`+"\n"+
			`105,2025-01-10T04:00:00Z,"{""data.evacuation_orders"": [null, ""[\""z5\""]""]}"`+"\n")

	zones := write("zones.csv",
		"uid_v2,display_name,external_status,status,is_active\n"+
			"zone-001,Alder Zone A,Evacuation Order,order,True\n")

	zoneMap := write("zone_map.csv",
		"evac_zone_id,geo_event_id,date_created\n"+
			"zone-001,101,2025-01-06T06:00:00Z\n"+
			"zone-001,101,2025-01-06T08:00:00Z\n"+
			"zone-missing,102,2025-01-07T03:00:00Z\n")

	svi := write("svi.csv",
		"FIPS,COUNTY,STATE,RPL_THEMES,RPL_THEME1,RPL_THEME2,RPL_THEME3,RPL_THEME4,E_AGE65,E_POV150,E_DISABL,E_NOVEH\n"+
			"6001,Near,California,0.82,0.8,0.7,0.9,0.6,5000,9000,3000,1200\n"+
			"6003,Far,California,0.20,0.1,0.2,0.3,0.2,4000,2000,1000,400\n")

	// 06001 sits near fires 101/103, 06003 near 102/104. A third centroid has
	// no SVI row and must never be matched.
	centroids := write("centroids.csv",
		"STATEFP,COUNTYFP,LATITUDE,LONGITUDE\n"+
			"6,1,38.18,-122.32\n"+
			"6,3,38.88,-121.42\n"+
			"6,5,38.19,-122.31\n")

	return &config.Config{
		Inputs: config.InputConfig{
			FireEvents:   fires,
			ChangeLog:    changelog,
			EvacZones:    zones,
			ZoneEventMap: zoneMap,
			SVICounties:  svi,
			Centroids:    centroids,
		},
		Outputs:           config.OutputConfig{Dataset: filepath.Join(dir, "out.csv"), Report: filepath.Join(dir, "report.json")},
		DistanceMetric:    "haversine",
		Workers:           3,
		DelayClipMaxHours: 720,
		HotspotK:          2,
		HotspotZThreshold: 1.96,
	}
}

func newTestBuilder(t *testing.T, cfg *config.Config) *Builder {
	t.Helper()
	logger := observability.NewLogger("error", "text")
	return NewBuilder(cfg, logger, observability.NewMetricsForTesting())
}

func recordByID(t *testing.T, records []domain.DelayRecord, id string) domain.DelayRecord {
	t.Helper()
	for _, rec := range records {
		if rec.GeoEventID == id {
			return rec
		}
	}
	t.Fatalf("no record for fire %s", id)
	return domain.DelayRecord{}
}

func TestBuilder_Run(t *testing.T) {
	cfg := fixtureConfig(t)
	b := newTestBuilder(t, cfg)

	result, err := b.Run(context.Background())
	require.NoError(t, err)

	t.Run("one row per fire in master order", func(t *testing.T) {
		require.Len(t, result.Records, 5)
		ids := make([]string, len(result.Records))
		for i, rec := range result.Records {
			ids[i] = rec.GeoEventID
		}
		assert.Equal(t, []string{"101", "102", "103", "104", "105"}, ids)
	})

	t.Run("order and warning delays", func(t *testing.T) {
		rec := recordByID(t, result.Records, "101")
		require.NotNil(t, rec.HoursToOrder)
		assert.InDelta(t, 5.0, *rec.HoursToOrder, 1e-9)
		require.NotNil(t, rec.HoursToWarning)
		assert.InDelta(t, 3.0, *rec.HoursToWarning, 1e-9)

		// Headline delay prefers the order even when the warning came first.
		require.NotNil(t, rec.EvacuationDelayHours)
		assert.InDelta(t, 5.0, *rec.EvacuationDelayHours, 1e-9)
		assert.True(t, rec.EvacuationOccurred)
		assert.False(t, rec.ExceedsCriticalThreshold)
	})

	t.Run("warning fallback", func(t *testing.T) {
		rec := recordByID(t, result.Records, "102")
		assert.Nil(t, rec.HoursToOrder)
		require.NotNil(t, rec.EvacuationDelayHours)
		assert.InDelta(t, 2.0, *rec.EvacuationDelayHours, 1e-9)
	})

	t.Run("fire with no change records keeps nulls", func(t *testing.T) {
		rec := recordByID(t, result.Records, "103")
		assert.Nil(t, rec.HoursToOrder)
		assert.Nil(t, rec.HoursToWarning)
		assert.Nil(t, rec.EvacuationDelayHours)
		assert.False(t, rec.EvacuationOccurred)
		assert.Nil(t, rec.GrowthRateAcresPerHour)
		assert.Zero(t, rec.AcreageUpdates)
		// County join still resolves; the row is not dropped.
		assert.Equal(t, "06001", rec.CountyFIPS)
	})

	t.Run("backdated order clips to zero", func(t *testing.T) {
		rec := recordByID(t, result.Records, "104")
		require.NotNil(t, rec.HoursToOrder)
		assert.Zero(t, *rec.HoursToOrder)
		assert.GreaterOrEqual(t, result.Report.Diagnostics.ClippedDelays, 1)
	})

	t.Run("growth from first to last observation", func(t *testing.T) {
		rec := recordByID(t, result.Records, "101")
		require.NotNil(t, rec.GrowthRateAcresPerHour)
		assert.InDelta(t, 20.0, *rec.GrowthRateAcresPerHour, 1e-9) // (240-40)/10h
		assert.Equal(t, 2, rec.AcreageUpdates)
		require.NotNil(t, rec.MaxAcres)
		assert.Equal(t, 240.0, *rec.MaxAcres)
		require.NotNil(t, rec.FinalContainmentPct)
		assert.Equal(t, 55.0, *rec.FinalContainmentPct)
	})

	t.Run("county join attaches covariates and flag", func(t *testing.T) {
		near := recordByID(t, result.Records, "101")
		assert.Equal(t, "06001", near.CountyFIPS)
		require.NotNil(t, near.SVIScore)
		assert.Equal(t, 0.82, *near.SVIScore)
		assert.True(t, near.IsVulnerable)
		require.NotNil(t, near.PopAge65)
		assert.Equal(t, 5000.0, *near.PopAge65)

		far := recordByID(t, result.Records, "102")
		assert.Equal(t, "06003", far.CountyFIPS)
		assert.False(t, far.IsVulnerable)
	})

	t.Run("null island coordinates never match", func(t *testing.T) {
		rec := recordByID(t, result.Records, "105")
		assert.Empty(t, rec.CountyFIPS)
		assert.Nil(t, rec.SVIScore)
		assert.Equal(t, 1, result.Report.Diagnostics.UnmatchedCoordinates)
		// Its order delay is still computed.
		require.NotNil(t, rec.HoursToOrder)
		assert.InDelta(t, 4.0, *rec.HoursToOrder, 1e-9)
	})

	t.Run("zone join uses earliest link", func(t *testing.T) {
		rec := recordByID(t, result.Records, "101")
		assert.Equal(t, 2, rec.ZonesLinked)
		require.NotNil(t, rec.HoursToZoneLink)
		assert.InDelta(t, 6.0, *rec.HoursToZoneLink, 1e-9)
		assert.Equal(t, "Evacuation Order", rec.FirstZoneStatus)

		// Fire 102's only link points at a zone absent from the zone table.
		other := recordByID(t, result.Records, "102")
		assert.Equal(t, 1, other.ZonesLinked)
		assert.Empty(t, other.FirstZoneStatus)
		assert.Equal(t, 1, result.Report.Diagnostics.UnmatchedZoneUIDs)
	})

	t.Run("centroid without vulnerability row is not indexed", func(t *testing.T) {
		// 06005 is closer to fire 101 than 06001 but has no SVI row.
		assert.Equal(t, 1, result.Report.Diagnostics.CentroidsWithoutSVI)
		rec := recordByID(t, result.Records, "101")
		assert.Equal(t, "06001", rec.CountyFIPS)
	})

	t.Run("report reconciles with records", func(t *testing.T) {
		r := result.Report
		assert.NotEmpty(t, r.RunID)
		assert.Equal(t, 5, r.TotalFires)
		assert.Equal(t, 3, r.FiresWithOrder)
		assert.Equal(t, 2, r.FiresWithWarning)
		assert.Equal(t, 1, r.FiresWithNoConfirmedAction)
		assert.Equal(t, 4, r.FiresWithAnyAction)
		assert.Equal(t, 4, r.FiresWithCountyMatch)
		assert.Equal(t, 2, r.FiresWithZoneLink)
		assert.Equal(t, 2, r.FiresInVulnerableCounties)
		assert.InDelta(t, 0.2, r.FractionWithNoAction, 1e-9)
		require.NotNil(t, r.MedianHoursToOrder)
		assert.InDelta(t, 4.0, *r.MedianHoursToOrder, 1e-9)
	})
}

func TestBuilder_RunDeterministic(t *testing.T) {
	cfg := fixtureConfig(t)

	first, err := newTestBuilder(t, cfg).Run(context.Background())
	require.NoError(t, err)
	second, err := newTestBuilder(t, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Report.Diagnostics, second.Report.Diagnostics)
}

func TestBuilder_RunCancelled(t *testing.T) {
	cfg := fixtureConfig(t)
	b := newTestBuilder(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuilder_RunMissingInput(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.Inputs.ChangeLog = filepath.Join(t.TempDir(), "absent.csv")
	b := newTestBuilder(t, cfg)

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.csv")
}

func TestMedian(t *testing.T) {
	assert.Nil(t, median(nil))

	odd := median([]float64{9, 1, 5})
	require.NotNil(t, odd)
	assert.Equal(t, 5.0, *odd)

	even := median([]float64{4, 1, 3, 2})
	require.NotNil(t, even)
	assert.Equal(t, 2.5, *even)
}
