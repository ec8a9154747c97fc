package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir         string
	IngestInterval  time.Duration
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Region alias overlay, merged over the built-in table.
	AliasesFile string

	// Query defaults.
	RollingWindow int
	TopN          int
	APICacheSize  int

	// Kafka sink for latest-date country rows.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	// SQL sink. An empty driver disables it.
	StoreDriver string
	StoreDSN    string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	ingestInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("INGEST_INTERVAL", "6h"))
	if err != nil || ingestInterval <= 0 {
		return nil, errors.New("invalid INGEST_INTERVAL")
	}

	rollingWindow, err := parsePositiveInt("ROLLING_WINDOW", 7)
	if err != nil {
		return nil, err
	}
	topN, err := parsePositiveInt("TOP_N", 10)
	if err != nil {
		return nil, err
	}
	apiCacheSize, err := parsePositiveInt("API_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	kafkaEnabled := os.Getenv("KAFKA_BROKERS") != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		DataDir:         sharedcfg.EnvOrDefault("DATA_DIR", "data/daily_reports"),
		IngestInterval:  ingestInterval,
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		AliasesFile: os.Getenv("ALIASES_FILE"),

		RollingWindow: rollingWindow,
		TopN:          topN,
		APICacheSize:  apiCacheSize,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "covid-country-daily"),

		StoreDriver: os.Getenv("STORE_DRIVER"),
		StoreDSN:    os.Getenv("STORE_DSN"),
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	switch cfg.StoreDriver {
	case "":
	case DriverSQLite, DriverPostgres, DriverMySQL:
		if cfg.StoreDSN == "" {
			return nil, errors.New("STORE_DSN is required when STORE_DRIVER is set")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// aliasFile is the YAML layout of ALIASES_FILE:
//
//	aliases:
//	  Viet Nam: Vietnam
//	  Taiwan*: Taiwan
type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadAliases reads a region alias overlay. An empty path yields no overlay.
func LoadAliases(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases file: %w", err)
	}
	var f aliasFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse aliases file: %w", err)
	}
	return f.Aliases, nil
}
