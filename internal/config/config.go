// Package config loads pipeline settings from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	Inputs  InputConfig
	Outputs OutputConfig

	DistanceMetric    string // "euclidean" or "haversine"
	Workers           int
	DelayClipMaxHours float64

	HotspotK          int
	HotspotZThreshold float64

	LogLevel  string
	LogFormat string

	// RunInterval > 0 re-runs the batch on a schedule and serves the admin
	// endpoints; 0 means run once and exit.
	RunInterval time.Duration
	HTTPAddr    string

	Kafka KafkaConfig
}

// InputConfig names the six read-only source extracts.
type InputConfig struct {
	FireEvents   string
	ChangeLog    string
	EvacZones    string
	ZoneEventMap string
	SVICounties  string
	Centroids    string
}

// OutputConfig names the artifacts a successful run writes.
type OutputConfig struct {
	Dataset string
	Report  string
}

// KafkaConfig controls the optional snapshot publisher.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("FIRE_EVENTS_PATH", "data/geo_events_geoevent.csv")
	v.SetDefault("CHANGELOG_PATH", "data/geo_events_geoeventchangelog.csv")
	v.SetDefault("EVAC_ZONES_PATH", "data/evac_zones_gis_evaczone.csv")
	v.SetDefault("ZONE_EVENT_MAP_PATH", "data/evac_zone_status_geo_event_map.csv")
	v.SetDefault("SVI_PATH", "data/SVI_2022_US_county.csv")
	v.SetDefault("CENTROIDS_PATH", "data/CenPop2020_Mean_CO.csv")
	v.SetDefault("DATASET_OUT", "out/fire_events_with_svi_and_delays.csv")
	v.SetDefault("REPORT_OUT", "out/run_report.json")
	v.SetDefault("DISTANCE_METRIC", "euclidean")
	v.SetDefault("WORKERS", 4)
	v.SetDefault("DELAY_CLIP_MAX_HOURS", 720.0)
	v.SetDefault("HOTSPOT_K", 8)
	v.SetDefault("HOTSPOT_Z_THRESHOLD", 1.96)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("RUN_INTERVAL", "0s")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "evac-delay-records")

	v.AutomaticEnv()

	interval, err := time.ParseDuration(v.GetString("RUN_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid RUN_INTERVAL: %w", err)
	}

	cfg := &Config{
		Inputs: InputConfig{
			FireEvents:   v.GetString("FIRE_EVENTS_PATH"),
			ChangeLog:    v.GetString("CHANGELOG_PATH"),
			EvacZones:    v.GetString("EVAC_ZONES_PATH"),
			ZoneEventMap: v.GetString("ZONE_EVENT_MAP_PATH"),
			SVICounties:  v.GetString("SVI_PATH"),
			Centroids:    v.GetString("CENTROIDS_PATH"),
		},
		Outputs: OutputConfig{
			Dataset: v.GetString("DATASET_OUT"),
			Report:  v.GetString("REPORT_OUT"),
		},
		DistanceMetric:    strings.ToLower(v.GetString("DISTANCE_METRIC")),
		Workers:           v.GetInt("WORKERS"),
		DelayClipMaxHours: v.GetFloat64("DELAY_CLIP_MAX_HOURS"),
		HotspotK:          v.GetInt("HOTSPOT_K"),
		HotspotZThreshold: v.GetFloat64("HOTSPOT_Z_THRESHOLD"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
		RunInterval:       interval,
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		Kafka: KafkaConfig{
			Enabled: v.GetBool("KAFKA_ENABLED"),
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and coherent.
func (c *Config) Validate() error {
	inputs := map[string]string{
		"FIRE_EVENTS_PATH":    c.Inputs.FireEvents,
		"CHANGELOG_PATH":      c.Inputs.ChangeLog,
		"EVAC_ZONES_PATH":     c.Inputs.EvacZones,
		"ZONE_EVENT_MAP_PATH": c.Inputs.ZoneEventMap,
		"SVI_PATH":            c.Inputs.SVICounties,
		"CENTROIDS_PATH":      c.Inputs.Centroids,
	}
	for name, path := range inputs {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("config: %s is required", name)
		}
	}
	if strings.TrimSpace(c.Outputs.Dataset) == "" {
		return fmt.Errorf("config: DATASET_OUT is required")
	}
	if strings.TrimSpace(c.Outputs.Report) == "" {
		return fmt.Errorf("config: REPORT_OUT is required")
	}
	if c.DistanceMetric != "euclidean" && c.DistanceMetric != "haversine" {
		return fmt.Errorf("config: DISTANCE_METRIC must be euclidean or haversine, got %q", c.DistanceMetric)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: WORKERS must be at least 1")
	}
	if c.DelayClipMaxHours <= 0 {
		return fmt.Errorf("config: DELAY_CLIP_MAX_HOURS must be positive")
	}
	if c.HotspotK < 1 {
		return fmt.Errorf("config: HOTSPOT_K must be at least 1")
	}
	if c.HotspotZThreshold <= 0 {
		return fmt.Errorf("config: HOTSPOT_Z_THRESHOLD must be positive")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if strings.TrimSpace(c.Kafka.Topic) == "" {
			return fmt.Errorf("config: KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
