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
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Adjacency AdjacencyConfig `yaml:"adjacency" mapstructure:"adjacency"`
	Render    RenderConfig    `yaml:"render" mapstructure:"render"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SourceConfig configures the traffic tracker API.
type SourceConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	AppToken    string `yaml:"app_token" mapstructure:"app_token"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	PageSize    int    `yaml:"page_size" mapstructure:"page_size"`
	MaxOffset   int    `yaml:"max_offset" mapstructure:"max_offset"`
	PageDelayMS int    `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// MaxRetries is the attempt count for the single-shot map request only.
	// Paginated fetches always stop at the first failed page.
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	SpeedColumn string `yaml:"speed_column" mapstructure:"speed_column"`
}

// StoreConfig configures the relational store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// AdjacencyConfig configures the adjacency search.
type AdjacencyConfig struct {
	IDColumn   string  `yaml:"id_column" mapstructure:"id_column"`
	LngColumn  string  `yaml:"lng_column" mapstructure:"lng_column"`
	LatColumn  string  `yaml:"lat_column" mapstructure:"lat_column"`
	Radius     float64 `yaml:"radius" mapstructure:"radius"`
	MaxEntries int     `yaml:"max_entries" mapstructure:"max_entries"`
	Strategy   string  `yaml:"strategy" mapstructure:"strategy"`
}

// RenderConfig configures the HTML map artifacts.
type RenderConfig struct {
	OutputDir   string `yaml:"output_dir" mapstructure:"output_dir"`
	MarkerFile  string `yaml:"marker_file" mapstructure:"marker_file"`
	HeatPattern string `yaml:"heat_pattern" mapstructure:"heat_pattern"`
	TimeColumn  string `yaml:"time_column" mapstructure:"time_column"`
	MapZoom     int    `yaml:"map_zoom" mapstructure:"map_zoom"`
	HeatZoom    int    `yaml:"heat_zoom" mapstructure:"heat_zoom"`
	HeatRadius  int    `yaml:"heat_radius" mapstructure:"heat_radius"`
}

// ServerConfig configures the browse API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MetricsConfig configures metrics output for one-shot commands.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" mapstructure:"textfile_path"`
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
	v.SetEnvPrefix("TRAFFIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.url", "https://data.cityofchicago.org/resource/sxs8-h27x.json")
	v.SetDefault("source.app_token", "")
	v.SetDefault("source.user_agent", "traffic-cli/1.0")
	v.SetDefault("source.page_size", 500)
	v.SetDefault("source.max_offset", 900)
	v.SetDefault("source.page_delay_ms", 1000)
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("source.max_retries", 1)
	v.SetDefault("source.speed_column", "_traffic")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "traffic_data.db")
	v.SetDefault("store.table", "traffic_table")
	v.SetDefault("adjacency.id_column", "street")
	v.SetDefault("adjacency.lng_column", "start_longitude")
	v.SetDefault("adjacency.lat_column", "start_latitude")
	v.SetDefault("adjacency.radius", 0.001)
	v.SetDefault("adjacency.max_entries", 0)
	v.SetDefault("adjacency.strategy", "grid")
	v.SetDefault("render.output_dir", ".")
	v.SetDefault("render.marker_file", "chicago_folium_map.html")
	v.SetDefault("render.heat_pattern", "chicago_traffic_heat_%d_map.html")
	v.SetDefault("render.time_column", "time")
	v.SetDefault("render.map_zoom", 12)
	v.SetDefault("render.heat_zoom", 9)
	v.SetDefault("render.heat_radius", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("metrics.textfile_path", "")
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

// Validate checks the settings a command mode depends on. Mode is one of
// "run", "map", "export" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "map":
		errs = append(errs, c.validateSource()...)
		errs = append(errs, c.validateAdjacency()...)
		if mode == "run" {
			errs = append(errs, c.validateStore()...)
		}
	case "export":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateAdjacency()...)
	case "serve":
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateSource() []string {
	var errs []string
	if c.Source.URL == "" {
		errs = append(errs, "source.url is required")
	}
	if c.Source.PageSize <= 0 {
		errs = append(errs, "source.page_size must be > 0")
	}
	if c.Source.MaxOffset < 0 {
		errs = append(errs, "source.max_offset must be >= 0")
	}
	if c.Source.PageDelayMS < 0 {
		errs = append(errs, "source.page_delay_ms must be >= 0")
	}
	return errs
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.Table == "" {
		errs = append(errs, "store.table is required")
	}
	return errs
}

func (c *Config) validateAdjacency() []string {
	var errs []string
	if c.Adjacency.Radius <= 0 {
		errs = append(errs, "adjacency.radius must be > 0")
	}
	if c.Adjacency.MaxEntries < 0 {
		errs = append(errs, "adjacency.max_entries must be >= 0")
	}
	switch c.Adjacency.Strategy {
	case "", "grid", "scan":
	default:
		errs = append(errs, "adjacency.strategy must be grid or scan")
	}
	return errs
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
