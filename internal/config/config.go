// Package config loads crosswalk-cli settings from file, .env and environment.
package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Inputs     InputsConfig   `yaml:"inputs" mapstructure:"inputs"`
	Geocode    GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Spatial    SpatialConfig  `yaml:"spatial" mapstructure:"spatial"`
	Merge      MergeConfig    `yaml:"merge" mapstructure:"merge"`
	Validation ValidateConfig `yaml:"validate" mapstructure:"validate"`
	Output     OutputConfig   `yaml:"output" mapstructure:"output"`
	Store      StoreConfig    `yaml:"store" mapstructure:"store"`
	Log        LogConfig      `yaml:"log" mapstructure:"log"`
}

// InputsConfig points at the files a reconcile run reads.
type InputsConfig struct {
	Candidates         string `yaml:"candidates" mapstructure:"candidates"`
	CandidatesSheet    string `yaml:"candidates_sheet" mapstructure:"candidates_sheet"`
	CandidatesDelim    string `yaml:"candidates_delimiter" mapstructure:"candidates_delimiter"`
	CandidatesSkipRows int    `yaml:"candidates_skip_rows" mapstructure:"candidates_skip_rows"`
	SLICrosswalk       string `yaml:"sli_crosswalk" mapstructure:"sli_crosswalk"`
	WeightedCrosswalk  string `yaml:"weighted_crosswalk" mapstructure:"weighted_crosswalk"`
	Neighbourhoods     string `yaml:"neighbourhoods" mapstructure:"neighbourhoods"`
	ReferenceShapefile string `yaml:"reference_shapefile" mapstructure:"reference_shapefile"`
}

// GeocodeConfig configures the external geocoding service.
type GeocodeConfig struct {
	APIKey       string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	Region       string  `yaml:"region" mapstructure:"region"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst        int     `yaml:"burst" mapstructure:"burst"`
	Concurrency  int     `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CachePath    string  `yaml:"cache_path" mapstructure:"cache_path"`
	CacheTTLDays int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
}

// SpatialConfig configures polygon layers and their reference systems.
type SpatialConfig struct {
	NeighbourhoodIDField string `yaml:"neighbourhood_id_field" mapstructure:"neighbourhood_id_field"`
	NeighbourhoodEPSG    int    `yaml:"neighbourhood_epsg" mapstructure:"neighbourhood_epsg"`
	ReferenceIDField     string `yaml:"reference_id_field" mapstructure:"reference_id_field"`
	ReferenceEPSG        int    `yaml:"reference_epsg" mapstructure:"reference_epsg"`
}

// MergeConfig configures how additions are appended to existing crosswalks.
type MergeConfig struct {
	ConflictPolicy string `yaml:"conflict_policy" mapstructure:"conflict_policy"`
}

// ValidateConfig configures the postal code validity predicate.
type ValidateConfig struct {
	Pattern   string `yaml:"pattern" mapstructure:"pattern"`
	MinLength int    `yaml:"min_length" mapstructure:"min_length"`
}

// OutputConfig configures where run outputs are written.
type OutputConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Progress bool   `yaml:"progress" mapstructure:"progress"`
}

// StoreConfig configures the Postgres target used by publish.
type StoreConfig struct {
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	SLITable      string `yaml:"sli_table" mapstructure:"sli_table"`
	WeightedTable string `yaml:"weighted_table" mapstructure:"weighted_table"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// Secrets usually live in .env next to config.yaml; absence is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CROSSWALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("inputs.candidates", "")
	v.SetDefault("inputs.candidates_sheet", "")
	v.SetDefault("inputs.candidates_delimiter", ",")
	v.SetDefault("inputs.candidates_skip_rows", 0)
	v.SetDefault("inputs.sli_crosswalk", "")
	v.SetDefault("inputs.weighted_crosswalk", "")
	v.SetDefault("inputs.neighbourhoods", "")
	v.SetDefault("inputs.reference_shapefile", "")
	v.SetDefault("geocode.api_key", "")
	v.SetDefault("geocode.base_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("geocode.region", "ca")
	v.SetDefault("geocode.rate_limit", 40.0)
	v.SetDefault("geocode.burst", 1)
	v.SetDefault("geocode.concurrency", 1)
	v.SetDefault("geocode.timeout_secs", 30)
	v.SetDefault("geocode.cache_path", "")
	v.SetDefault("geocode.cache_ttl_days", 30)
	v.SetDefault("spatial.neighbourhood_id_field", "ONS_ID")
	v.SetDefault("spatial.neighbourhood_epsg", 0)
	v.SetDefault("spatial.reference_id_field", "POSTALCODE")
	v.SetDefault("spatial.reference_epsg", 0)
	v.SetDefault("merge.conflict_policy", "append")
	v.SetDefault("validate.pattern", `^[A-Za-z0-9 ]+$`)
	v.SetDefault("validate.min_length", 3)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.progress", true)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sli_table", "crosswalk_sli")
	v.SetDefault("store.weighted_table", "crosswalk_weighted")
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
