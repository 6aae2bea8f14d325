package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	LookupTransportNATS = "nats"
	LookupTransportHTTP = "http"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	Storage       StorageConfig       `yaml:"storage"`
	NATS          NATSConfig          `yaml:"nats"`
	HTTP          HTTPConfig          `yaml:"http"`
	AttemptLookup AttemptLookupConfig `yaml:"attempt_lookup"`
	Gamification  GamificationConfig  `yaml:"gamification"`
	Transport     TransportConfig     `yaml:"transport"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// StorageConfig selects the ledger implementation.
type StorageConfig struct {
	Driver string `yaml:"driver"` // postgres|memory
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL        string `yaml:"url"`
	JetStream  bool   `yaml:"jetstream"`
	QueueGroup string `yaml:"queue_group"`
}

// HTTPConfig holds the query surface configuration.
type HTTPConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
}

// AttemptLookupConfig configures how attempt operands are resolved.
type AttemptLookupConfig struct {
	Transport string        `yaml:"transport"` // nats|http
	Subject   string        `yaml:"subject"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

// GamificationConfig holds the scoring constants and badge thresholds.
type GamificationConfig struct {
	ScorePerEvent   int `yaml:"score_per_event"`
	BronzeThreshold int `yaml:"bronze_threshold"`
	SilverThreshold int `yaml:"silver_threshold"`
	GoldThreshold   int `yaml:"gold_threshold"`
	SpecialValue    int `yaml:"special_value"`
	LeaderboardSize int `yaml:"leaderboard_size"`
}

// TransportConfig controls redelivery of failed messages.
type TransportConfig struct {
	MaxRetries int `yaml:"max_retries"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	MetricsAddress  string  `yaml:"metrics_address"`
	OTLPEndpoint    string  `yaml:"otlp_endpoint"`
	Environment     string  `yaml:"environment"`
	LogLevel        string  `yaml:"log_level"`
	TraceSampleRate float64 `yaml:"trace_sample_rate"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: StorageDriverPostgres},
		NATS: NATSConfig{
			URL:        "nats://localhost:4222",
			QueueGroup: "gamification",
		},
		HTTP: HTTPConfig{
			Address:   ":8081",
			RateLimit: 20,
			RateBurst: 40,
		},
		AttemptLookup: AttemptLookupConfig{
			Transport: LookupTransportNATS,
			Subject:   "quiz.attempt.lookup",
			Timeout:   3 * time.Second,
		},
		Gamification: GamificationConfig{
			ScorePerEvent:   10,
			BronzeThreshold: 100,
			SilverThreshold: 500,
			GoldThreshold:   1000,
			SpecialValue:    44,
			LeaderboardSize: 10,
		},
		Transport: TransportConfig{MaxRetries: 3},
		Observability: ObservabilityConfig{
			MetricsAddress:  ":9090",
			Environment:     "development",
			LogLevel:        "info",
			TraceSampleRate: 0.1,
		},
	}
}

// LoadConfig loads the configuration from a YAML file. Environment variables
// override file values; without a file the configuration comes from the
// environment alone.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return loadConfigFromEnv()
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	cfg := Default()

	if os.Getenv("NATS_URL") == "" {
		return nil, fmt.Errorf("NATS_URL environment variable not set")
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides cfg with every environment variable that is set.
func applyEnv(cfg *Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			*dst = v == "true"
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s value: %w", name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v := os.Getenv(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s value: %w", name, err))
				return
			}
			*dst = f
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s value: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str("DATABASE_URL", &cfg.Postgres.DSN)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)

	str("NATS_URL", &cfg.NATS.URL)
	boolean("NATS_JETSTREAM", &cfg.NATS.JetStream)
	str("NATS_QUEUE_GROUP", &cfg.NATS.QueueGroup)

	str("HTTP_ADDRESS", &cfg.HTTP.Address)
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	float("HTTP_RATE_LIMIT", &cfg.HTTP.RateLimit)
	integer("HTTP_RATE_BURST", &cfg.HTTP.RateBurst)

	str("ATTEMPT_LOOKUP_TRANSPORT", &cfg.AttemptLookup.Transport)
	str("ATTEMPT_LOOKUP_SUBJECT", &cfg.AttemptLookup.Subject)
	str("ATTEMPT_LOOKUP_BASE_URL", &cfg.AttemptLookup.BaseURL)
	duration("ATTEMPT_LOOKUP_TIMEOUT", &cfg.AttemptLookup.Timeout)

	integer("GAMIFICATION_SCORE_PER_EVENT", &cfg.Gamification.ScorePerEvent)
	integer("GAMIFICATION_BRONZE_THRESHOLD", &cfg.Gamification.BronzeThreshold)
	integer("GAMIFICATION_SILVER_THRESHOLD", &cfg.Gamification.SilverThreshold)
	integer("GAMIFICATION_GOLD_THRESHOLD", &cfg.Gamification.GoldThreshold)
	integer("GAMIFICATION_SPECIAL_VALUE", &cfg.Gamification.SpecialValue)
	integer("GAMIFICATION_LEADERBOARD_SIZE", &cfg.Gamification.LeaderboardSize)

	integer("TRANSPORT_MAX_RETRIES", &cfg.Transport.MaxRetries)

	str("METRICS_ADDRESS", &cfg.Observability.MetricsAddress)
	str("OTLP_ENDPOINT", &cfg.Observability.OTLPEndpoint)
	str("ENV", &cfg.Observability.Environment)
	str("LOG_LEVEL", &cfg.Observability.LogLevel)
	float("TRACE_SAMPLE_RATE", &cfg.Observability.TraceSampleRate)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required when storage.driver is postgres"))
		}
	case StorageDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	if c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required"))
	}

	switch c.AttemptLookup.Transport {
	case LookupTransportNATS:
		if c.AttemptLookup.Subject == "" {
			errs = append(errs, errors.New("attempt_lookup.subject is required for the nats transport"))
		}
	case LookupTransportHTTP:
		if c.AttemptLookup.BaseURL == "" {
			errs = append(errs, errors.New("attempt_lookup.base_url is required for the http transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown attempt_lookup.transport %q", c.AttemptLookup.Transport))
	}

	g := c.Gamification
	if g.ScorePerEvent <= 0 {
		errs = append(errs, errors.New("gamification.score_per_event must be positive"))
	}
	if g.BronzeThreshold <= 0 || g.SilverThreshold <= g.BronzeThreshold || g.GoldThreshold <= g.SilverThreshold {
		errs = append(errs, fmt.Errorf("gamification thresholds must satisfy 0 < bronze < silver < gold, got %d/%d/%d",
			g.BronzeThreshold, g.SilverThreshold, g.GoldThreshold))
	}
	if g.LeaderboardSize <= 0 {
		errs = append(errs, errors.New("gamification.leaderboard_size must be positive"))
	}

	if c.Transport.MaxRetries < 0 {
		errs = append(errs, errors.New("transport.max_retries must not be negative"))
	}
	if c.HTTP.RateLimit <= 0 || c.HTTP.RateBurst <= 0 {
		errs = append(errs, errors.New("http.rate_limit and http.rate_burst must be positive"))
	}
	if r := c.Observability.TraceSampleRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observability.trace_sample_rate must be within [0,1], got %v", r))
	}

	return errors.Join(errs...)
}
