package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top-level application configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Logging    LoggingConfig    `toml:"logging"`
	Ingest     IngestConfig     `toml:"ingest"`
	RefData    RefDataConfig    `toml:"refdata"`
	Storage    StorageConfig    `toml:"storage"`
	Prediction PredictionConfig `toml:"prediction"`
	Separation SeparationConfig `toml:"separation"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Profile    ProfileConfig    `toml:"profile"`
	Advisory   AdvisoryConfig   `toml:"advisory"`
}

// ServerConfig holds the HTTP/WebSocket server settings
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// LoggingConfig holds the logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, console
}

// IngestConfig points at an HTTP telemetry feed. An empty URL
// disables polling; snapshots then arrive over the websocket only.
type IngestConfig struct {
	URL             string `toml:"url"`
	IntervalSeconds int    `toml:"interval_seconds"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// RefDataConfig points at the static reference data (waypoints, wind
// table, routes) and names the merge point waypoint
type RefDataConfig struct {
	Path       string `toml:"path"`
	MergePoint string `toml:"merge_point"`
}

// StorageConfig holds the SQLite settings. An empty path disables
// advisory/schedule persistence.
type StorageConfig struct {
	Path string `toml:"path"`
}

// PredictionConfig bounds the trajectory extrapolation
type PredictionConfig struct {
	HorizonSeconds int     `toml:"horizon_seconds"`
	StepSeconds    int     `toml:"step_seconds"`
	ArrivalGateNM  float64 `toml:"arrival_gate_nm"` // prediction stops inside this ring
}

// SeparationConfig holds the conflict detection minima
type SeparationConfig struct {
	HorizontalNM float64 `toml:"horizontal_nm"`
	VerticalFt   float64 `toml:"vertical_ft"`
}

// SchedulerConfig holds the merge point slot spacing
type SchedulerConfig struct {
	SpacingSeconds int `toml:"spacing_seconds"`
}

// ProfileConfig holds the descent/speed profile constants. These are
// operational heuristics, kept configurable so they can be tuned and
// tested independently.
type ProfileConfig struct {
	FinalAltitudeFt      float64 `toml:"final_altitude_ft"`       // crossing altitude at the merge point
	FinalSpeedKt         float64 `toml:"final_speed_kt"`          // crossing speed at the merge point
	SpeedLimitAltFt      float64 `toml:"speed_limit_alt_ft"`      // regulation altitude boundary
	SpeedLimitKt         float64 `toml:"speed_limit_kt"`          // IAS limit below the boundary
	HighAltSpeedCapKt    float64 `toml:"high_alt_speed_cap_kt"`   // target speed cap above the boundary
	FinalApproachSpeedKt float64 `toml:"final_approach_speed_kt"` // inside 10 nm
	GlideSlopeDeg        float64 `toml:"glide_slope_deg"`
	FAFDistanceNM        float64 `toml:"faf_distance_nm"`
	FAFAltitudeFt        float64 `toml:"faf_altitude_ft"`
	Flap5DistanceNM      float64 `toml:"flap5_distance_nm"`
	MarginHighNM         float64 `toml:"margin_high_nm"` // safety margin above 20,000 ft
	MarginMidNM          float64 `toml:"margin_mid_nm"`  // 10,000-20,000 ft
	MarginLowNM          float64 `toml:"margin_low_nm"`  // below 10,000 ft
	PolicyToleranceFpm   float64 `toml:"policy_tolerance_fpm"`
}

// AdvisoryConfig holds the synthesizer heuristics
type AdvisoryConfig struct {
	CooldownSeconds          int     `toml:"cooldown_seconds"`
	DelayRouteThresholdMin   float64 `toml:"delay_route_threshold_min"`   // delay beyond this keeps the longer/default path
	AdvanceRouteThresholdMin float64 `toml:"advance_route_threshold_min"` // advance beyond this prefers the direct path
	ConflictSpeedDecrementKt float64 `toml:"conflict_speed_decrement_kt"`
	ArcWindowMin             float64 `toml:"arc_window_min"` // minimum ETA window for arc-route conflict resolution
	AltitudeDeadbandFt       float64 `toml:"altitude_deadband_ft"`
	SpeedDeadbandKt          float64 `toml:"speed_deadband_kt"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			CORSAllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Ingest: IngestConfig{
			URL:             "",
			IntervalSeconds: 5,
			TimeoutSeconds:  10,
		},
		RefData: RefDataConfig{
			Path:       "refdata.json",
			MergePoint: "MP",
		},
		Storage: StorageConfig{
			Path: "mp-director.db",
		},
		Prediction: PredictionConfig{
			HorizonSeconds: 600,
			StepSeconds:    30,
			ArrivalGateNM:  1.0,
		},
		Separation: SeparationConfig{
			HorizontalNM: 3.0,
			VerticalFt:   1000,
		},
		Scheduler: SchedulerConfig{
			SpacingSeconds: 120,
		},
		Profile: ProfileConfig{
			FinalAltitudeFt:      2000,
			FinalSpeedKt:         180,
			SpeedLimitAltFt:      10000,
			SpeedLimitKt:         250,
			HighAltSpeedCapKt:    300,
			FinalApproachSpeedKt: 180,
			GlideSlopeDeg:        3.0,
			FAFDistanceNM:        9,
			FAFAltitudeFt:        900,
			Flap5DistanceNM:      10,
			MarginHighNM:         15,
			MarginMidNM:          8,
			MarginLowNM:          3,
			PolicyToleranceFpm:   200,
		},
		Advisory: AdvisoryConfig{
			CooldownSeconds:          30,
			DelayRouteThresholdMin:   2.0,
			AdvanceRouteThresholdMin: 1.0,
			ConflictSpeedDecrementKt: 20,
			ArcWindowMin:             10,
			AltitudeDeadbandFt:       500,
			SpeedDeadbandKt:          10,
		},
	}
}

// Load reads the configuration file at path, overlaying it on the
// defaults. A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Prediction.StepSeconds <= 0 {
		return fmt.Errorf("prediction step must be positive, got %d", c.Prediction.StepSeconds)
	}
	if c.Prediction.HorizonSeconds < c.Prediction.StepSeconds {
		return fmt.Errorf("prediction horizon (%ds) shorter than step (%ds)",
			c.Prediction.HorizonSeconds, c.Prediction.StepSeconds)
	}
	if c.Scheduler.SpacingSeconds <= 0 {
		return fmt.Errorf("scheduler spacing must be positive, got %d", c.Scheduler.SpacingSeconds)
	}
	if c.Ingest.URL != "" && c.Ingest.IntervalSeconds <= 0 {
		return fmt.Errorf("ingest interval must be positive, got %d", c.Ingest.IntervalSeconds)
	}
	return nil
}
