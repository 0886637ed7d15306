package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Geocoder  GeocoderConfig  `yaml:"geocoder" mapstructure:"geocoder"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Solar     SolarConfig     `yaml:"solar" mapstructure:"solar"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lead store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocoderConfig holds Nominatim settings.
type GeocoderConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// PlacesConfig holds business enrichment API credentials.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SolarConfig holds solar insights API credentials.
type SolarConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OverpassConfig holds footprint source settings.
type OverpassConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	BuildingFilter string `yaml:"building_filter" mapstructure:"building_filter"`
}

// PipelineConfig tunes resolution, eligibility, and enrichment behavior.
type PipelineConfig struct {
	MinRoofAreaSqft          float64 `yaml:"min_roof_area_sqft" mapstructure:"min_roof_area_sqft"`
	DedupDistanceMeters      float64 `yaml:"dedup_distance_meters" mapstructure:"dedup_distance_meters"`
	MaxConcurrentEnrichments int     `yaml:"max_concurrent_enrichments" mapstructure:"max_concurrent_enrichments"`
	DefaultCity              string  `yaml:"default_city" mapstructure:"default_city"`
	DefaultState             string  `yaml:"default_state" mapstructure:"default_state"`
}

// DiscoveryConfig tunes the grid sweep and query memory.
type DiscoveryConfig struct {
	DatabaseURL   string  `yaml:"database_url" mapstructure:"database_url"`
	StalenessDays int     `yaml:"staleness_days" mapstructure:"staleness_days"`
	CellKM        float64 `yaml:"cell_km" mapstructure:"cell_km"`
}

// ServerConfig configures the read-only leads server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leads.db")
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "leadscout/1.0")
	v.SetDefault("places.base_url", "https://places.googleapis.com")
	v.SetDefault("solar.base_url", "https://solar.googleapis.com")
	v.SetDefault("overpass.base_url", "https://overpass-api.de")
	v.SetDefault("overpass.building_filter", "commercial|industrial|warehouse|retail|office")
	v.SetDefault("pipeline.min_roof_area_sqft", 3000.0)
	v.SetDefault("pipeline.dedup_distance_meters", 20.0)
	v.SetDefault("pipeline.max_concurrent_enrichments", 5)
	v.SetDefault("discovery.database_url", "discovery.db")
	v.SetDefault("discovery.staleness_days", 30)
	v.SetDefault("discovery.cell_km", 2.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
