package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/geo_events_geoevent.csv", cfg.Inputs.FireEvents)
	assert.Equal(t, "data/geo_events_geoeventchangelog.csv", cfg.Inputs.ChangeLog)
	assert.Equal(t, "data/evac_zones_gis_evaczone.csv", cfg.Inputs.EvacZones)
	assert.Equal(t, "data/evac_zone_status_geo_event_map.csv", cfg.Inputs.ZoneEventMap)
	assert.Equal(t, "data/SVI_2022_US_county.csv", cfg.Inputs.SVICounties)
	assert.Equal(t, "data/CenPop2020_Mean_CO.csv", cfg.Inputs.Centroids)
	assert.Equal(t, "out/fire_events_with_svi_and_delays.csv", cfg.Outputs.Dataset)
	assert.Equal(t, "out/run_report.json", cfg.Outputs.Report)
	assert.Equal(t, "euclidean", cfg.DistanceMetric)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 720.0, cfg.DelayClipMaxHours)
	assert.Equal(t, 8, cfg.HotspotK)
	assert.Equal(t, 1.96, cfg.HotspotZThreshold)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, time.Duration(0), cfg.RunInterval)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "evac-delay-records", cfg.Kafka.Topic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("FIRE_EVENTS_PATH", "/tmp/fires.csv")
	t.Setenv("DISTANCE_METRIC", "Haversine")
	t.Setenv("WORKERS", "16")
	t.Setenv("DELAY_CLIP_MAX_HOURS", "168")
	t.Setenv("RUN_INTERVAL", "6h")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-topic")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/fires.csv", cfg.Inputs.FireEvents)
	assert.Equal(t, "haversine", cfg.DistanceMetric)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, 168.0, cfg.DelayClipMaxHours)
	assert.Equal(t, 6*time.Hour, cfg.RunInterval)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "custom-topic", cfg.Kafka.Topic)
}

func TestLoad_InvalidRunInterval(t *testing.T) {
	t.Setenv("RUN_INTERVAL", "whenever")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RUN_INTERVAL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"empty input path", map[string]string{"SVI_PATH": "  "}, "SVI_PATH"},
		{"blank dataset out", map[string]string{"DATASET_OUT": " "}, "DATASET_OUT"},
		{"blank report out", map[string]string{"REPORT_OUT": " "}, "REPORT_OUT"},
		{"unknown metric", map[string]string{"DISTANCE_METRIC": "manhattan"}, "DISTANCE_METRIC"},
		{"zero workers", map[string]string{"WORKERS": "0"}, "WORKERS"},
		{"negative clip", map[string]string{"DELAY_CLIP_MAX_HOURS": "-1"}, "DELAY_CLIP_MAX_HOURS"},
		{"zero hotspot k", map[string]string{"HOTSPOT_K": "0"}, "HOTSPOT_K"},
		{"zero z threshold", map[string]string{"HOTSPOT_Z_THRESHOLD": "0"}, "HOTSPOT_Z_THRESHOLD"},
		{"kafka without brokers", map[string]string{"KAFKA_ENABLED": "true", "KAFKA_BROKERS": " , "}, "KAFKA_BROKERS"},
		{"kafka without topic", map[string]string{"KAFKA_ENABLED": "true", "KAFKA_TOPIC": " "}, "KAFKA_TOPIC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
