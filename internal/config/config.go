package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultJWTSecret = "your-secret-key-change-in-production"
	minSecretLength  = 32
	minJWTExpiry     = time.Minute
	maxJWTExpiry     = 30 * 24 * time.Hour
)

type Config struct {
	Environment string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTExpiry   time.Duration

	DatabaseDSN string
	HTTPAddr    string

	LogLevel  string
	LogFormat string

	// CourtStations is the jurisdiction list offered to clients and used to
	// validate a user's village.
	CourtStations []string

	// ImportMapping points at a YAML header mapping for spreadsheet imports.
	// Empty uses the built-in mapping.
	ImportMapping string

	EnableMetrics   bool
	MaxUploadBytes  int64
	AutoMigrate     bool
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment and, when CONFIG_FILE is set,
// from that file. Environment variables win over file values.
func Load() *Config {
	cfg, err := load()
	if err != nil {
		// An unreadable CONFIG_FILE falls back to env + defaults.
		cfg = loadFrom(newViper())
	}
	return cfg
}

func load() (*Config, error) {
	v := newViper()
	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return loadFrom(v), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ISS", "surety-registry-api")
	v.SetDefault("JWT_AUD", "surety-registry-api")
	v.SetDefault("JWT_EXPIRY", "24h")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("COURT_STATIONS", "")
	v.SetDefault("IMPORT_MAPPING", "")
	v.SetDefault("ENABLE_METRICS", false)
	v.SetDefault("MAX_UPLOAD_BYTES", int64(20<<20))
	v.SetDefault("AUTO_MIGRATE", false)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	return v
}

func loadFrom(v *viper.Viper) *Config {
	cfg := &Config{
		Environment:     v.GetString("ENVIRONMENT"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		JWTIssuer:       v.GetString("JWT_ISS"),
		JWTAudience:     v.GetString("JWT_AUD"),
		JWTExpiry:       24 * time.Hour,
		DatabaseDSN:     v.GetString("DB_DSN"),
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		CourtStations:   splitList(v.GetString("COURT_STATIONS")),
		ImportMapping:   v.GetString("IMPORT_MAPPING"),
		EnableMetrics:   v.GetBool("ENABLE_METRICS"),
		MaxUploadBytes:  v.GetInt64("MAX_UPLOAD_BYTES"),
		AutoMigrate:     v.GetBool("AUTO_MIGRATE"),
		ShutdownTimeout: 10 * time.Second,
	}

	// Unparseable durations keep their defaults.
	if d, err := time.ParseDuration(v.GetString("JWT_EXPIRY")); err == nil {
		cfg.JWTExpiry = d
	}
	if d, err := time.ParseDuration(v.GetString("SHUTDOWN_TIMEOUT")); err == nil && d > 0 {
		cfg.ShutdownTimeout = d
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}

	return cfg
}

// Validate checks the JWT settings that would make tokens unsafe or unusable.
func (c *Config) Validate() error {
	var errs []error

	switch {
	case c.JWTSecret == "":
		errs = append(errs, errors.New("JWT_SECRET is required"))
	case len(c.JWTSecret) < minSecretLength:
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be changed from the default in production"))
	}
	if c.JWTIssuer == "" {
		errs = append(errs, errors.New("JWT_ISS is required"))
	}
	if c.JWTAudience == "" {
		errs = append(errs, errors.New("JWT_AUD is required"))
	}
	switch {
	case c.JWTExpiry <= 0:
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	case c.JWTExpiry < minJWTExpiry:
		errs = append(errs, fmt.Errorf("JWT_EXPIRY must be at least %v", minJWTExpiry))
	case c.JWTExpiry > maxJWTExpiry:
		errs = append(errs, fmt.Errorf("JWT_EXPIRY must not exceed %v", maxJWTExpiry))
	}

	return errors.Join(errs...)
}

// LoadAndValidate loads configuration and fails on invalid settings.
func LoadAndValidate() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// HasStation reports whether name is one of the configured court stations.
// An empty station list accepts every name.
func (c *Config) HasStation(name string) bool {
	if len(c.CourtStations) == 0 {
		return true
	}
	for _, s := range c.CourtStations {
		if strings.EqualFold(s, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
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
