package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds process configuration. Values come from an optional YAML file;
// a few deployment-critical fields fall back to environment variables.
type Config struct {
	Addr          string        `yaml:"addr"`
	DatabasePath  string        `yaml:"database_path"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	SenderName    string        `yaml:"sender_name"`
	ScalePoints   int           `yaml:"scale_points"`
	ScanInterval  time.Duration `yaml:"scan_interval"`
	RetentionHour int           `yaml:"retention_hour"`
	Scoring       Scoring       `yaml:"scoring"`
}

// Scoring carries the report thresholds. Averages and bands are expressed on
// a 1-5 basis and rescaled to the configured scale at use, except CriticalGap
// and UniformVariance which are absolute scale units. The substitution pair
// is an empirically tuned judgment call and still awaits domain validation;
// that is why it lives here and not in code.
type Scoring struct {
	CriticalBelow    float64 `yaml:"critical_below"`
	WarningBelow     float64 `yaml:"warning_below"`
	CriticalGap      float64 `yaml:"critical_gap"`
	SubstitutionHigh float64 `yaml:"substitution_high"`
	SubstitutionLow  float64 `yaml:"substitution_low"`
	UniformVariance  float64 `yaml:"uniform_variance"`
}

// Load reads configuration from path (optional) on top of defaults and
// environment fallbacks.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Addr:          getEnv("FRIKTION_ADDR", ":8080"),
		DatabasePath:  getEnv("FRIKTION_DB_PATH", "friktion.db"),
		JWTSecret:     getEnv("FRIKTION_JWT_SECRET", "friktion-dev-secret"),
		APITimeout:    15 * time.Second,
		SenderName:    "Friktion",
		ScalePoints:   5,
		ScanInterval:  time.Minute,
		RetentionHour: 3,
		Scoring: Scoring{
			CriticalBelow:    2.5,
			WarningBelow:     3.5,
			CriticalGap:      1.5,
			SubstitutionHigh: 3.5,
			SubstitutionLow:  2.5,
			UniformVariance:  0.25,
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
