package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Report store.
	StoreBackend      string
	StorePath         string
	StoreKey          string
	StoreMaxBytes     int
	StoreThreshold    float64
	StoreQuotaRetries int
	MongoURI          string
	MongoDB           string
	MaxImageBytes     int

	// Nominatim geocoding and office search.
	NominatimURL       string
	NominatimUserAgent string
	NominatimTimeout   time.Duration
	GeocodeCacheSize   int
	SearchLimit        int
	SearchDelay        time.Duration
	SearchRetries      int

	// User location.
	IPProviders          []string
	IPTimeout            time.Duration
	LocationHighAccuracy bool
	LocationTimeout      time.Duration
	LocationMaxAge       time.Duration

	RouteProvider string

	// Event publication. Empty KafkaBrokers disables it.
	KafkaBrokers       []string
	KafkaTopic         string
	EventBatchSize     int
	EventFlushInterval time.Duration
	EventQueueSize     int
}

// PublishingEnabled reports whether report events go to Kafka.
func (c *Config) PublishingEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		StoreBackend: strings.ToLower(sharedcfg.EnvOrDefault("STORE_BACKEND", BackendFile)),
		StorePath:    sharedcfg.EnvOrDefault("STORE_PATH", "data"),
		StoreKey:     sharedcfg.EnvOrDefault("STORE_KEY", "ecosphere-reports"),
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoDB:      sharedcfg.EnvOrDefault("MONGO_DB", "ecosphere"),

		NominatimURL:       strings.TrimRight(sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"), "/"),
		NominatimUserAgent: sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "EcoSphere/1.0 (waste-management-app)"),

		IPProviders:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("IP_PROVIDERS", "ipapi,ipwhois")),
		RouteProvider: strings.ToLower(sharedcfg.EnvOrDefault("ROUTE_PROVIDER", "google")),

		KafkaBrokers: sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "report-events"),
	}

	ints := []struct {
		key string
		def int
		min int
		dst *int
	}{
		{"STORE_MAX_BYTES", 4 << 20, 1, &cfg.StoreMaxBytes},
		{"STORE_QUOTA_RETRIES", 1, 0, &cfg.StoreQuotaRetries},
		{"MAX_IMAGE_BYTES", 10 << 20, 1, &cfg.MaxImageBytes},
		{"GEOCODE_CACHE_SIZE", 1000, 1, &cfg.GeocodeCacheSize},
		{"SEARCH_LIMIT", 5, 1, &cfg.SearchLimit},
		{"SEARCH_RETRIES", 1, 0, &cfg.SearchRetries},
		{"EVENT_BATCH_SIZE", 50, 1, &cfg.EventBatchSize},
		{"EVENT_QUEUE_SIZE", 1024, 1, &cfg.EventQueueSize},
	}
	for _, f := range ints {
		if *f.dst, err = parseInt(f.key, f.def, f.min); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		key       string
		def       string
		allowZero bool
		dst       *time.Duration
	}{
		{"NOMINATIM_TIMEOUT", "10s", false, &cfg.NominatimTimeout},
		{"SEARCH_DELAY", "500ms", true, &cfg.SearchDelay},
		{"IP_TIMEOUT", "5s", false, &cfg.IPTimeout},
		{"LOCATION_TIMEOUT", "10s", false, &cfg.LocationTimeout},
		{"LOCATION_MAX_AGE", "0s", true, &cfg.LocationMaxAge},
		{"EVENT_FLUSH_INTERVAL", "500ms", false, &cfg.EventFlushInterval},
	}
	for _, f := range durations {
		if *f.dst, err = parseDuration(f.key, f.def, f.allowZero); err != nil {
			return nil, err
		}
	}

	if cfg.StoreThreshold, err = strconv.ParseFloat(sharedcfg.EnvOrDefault("STORE_THRESHOLD", "0.9"), 64); err != nil ||
		cfg.StoreThreshold <= 0 || cfg.StoreThreshold > 1 {
		return nil, errors.New("invalid STORE_THRESHOLD: must be in (0, 1]")
	}

	if cfg.LocationHighAccuracy, err = strconv.ParseBool(sharedcfg.EnvOrDefault("LOCATION_HIGH_ACCURACY", "true")); err != nil {
		return nil, errors.New("invalid LOCATION_HIGH_ACCURACY")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("STORE_BACKEND is mongo but MONGO_URI is not set")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}

	if c.StoreKey == "" {
		return errors.New("STORE_KEY is required")
	}

	switch c.RouteProvider {
	case "google", "graphhopper":
	default:
		return fmt.Errorf("invalid ROUTE_PROVIDER %q", c.RouteProvider)
	}

	for _, p := range c.IPProviders {
		if p != "ipapi" && p != "ipwhois" {
			return fmt.Errorf("invalid IP_PROVIDERS entry %q", p)
		}
	}

	if c.PublishingEnabled() && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func parseInt(key string, def, minValue int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minValue {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minValue)
	}
	return n, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
