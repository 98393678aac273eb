package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/KhavKivar/piwebapi-etl/internal/model"
)

// Auth modes accepted in site configuration.
const (
	AuthBasic      = "BASIC"
	AuthIntegrated = "INTEGRATED"
)

// SiteConfig describes one PI Web API deployment: endpoint, asset database,
// event frame template, timezone and auth mode. Immutable after load.
type SiteConfig struct {
	APIURL        string            `mapstructure:"api_url"`
	DatabaseWebID string            `mapstructure:"database_webid"`
	TemplateName  string            `mapstructure:"template_name"`
	Timezone      string            `mapstructure:"timezone"`
	Auth          string            `mapstructure:"auth"`
	Aliases       map[string]string `mapstructure:"aliases"`     // sink column -> site-specific attribute name
	LimitRules    map[string]string `mapstructure:"limit_rules"` // excursion text -> sink column holding the breached limit
}

// BasicAuth reports whether the site uses a username/password pair. Anything
// else is treated as integrated/negotiated auth.
func (s SiteConfig) BasicAuth() bool { return s.Auth == AuthBasic }

// EngineConfig holds extraction engine tuning.
type EngineConfig struct {
	PageCap            int  `mapstructure:"page_cap"`
	FrameWorkers       int  `mapstructure:"frame_workers"`
	AttrWorkers        int  `mapstructure:"attr_workers"`
	MaxSplitDepth      int  `mapstructure:"max_split_depth"`
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// DatabaseConfig holds the relational sink settings.
type DatabaseConfig struct {
	Path  string `mapstructure:"path"`
	Table string `mapstructure:"table"`
}

// SchemaConfig describes the sink row shape: ordered columns plus the sets
// that get typed parsing on the way in.
type SchemaConfig struct {
	Columns         []string          `mapstructure:"columns"`
	FloatColumns    []string          `mapstructure:"float_columns"`
	DatetimeColumns []string          `mapstructure:"datetime_columns"`
	NameColumns     []string          `mapstructure:"name_columns"`   // JSON {"Name": ...} envelopes reduced to the name
	PrefixColumns   []string          `mapstructure:"prefix_columns"` // keep only the token before the first space/underscore
	ColumnMap       map[string]string `mapstructure:"column_map"`     // sink column -> record field name
	ExcursionColumn string            `mapstructure:"excursion_column"`
	LimitColumn     string            `mapstructure:"limit_column"`
}

// KafkaConfig holds the optional message-bus sink settings.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// RunConfig holds the continuous polling loop settings.
type RunConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Lookback time.Duration `mapstructure:"lookback"`
}

// Config is the full application configuration.
type Config struct {
	LogLevel string                `mapstructure:"log_level"`
	Sites    map[string]SiteConfig `mapstructure:"sites"`
	SitesRun []string              `mapstructure:"sites_run"`
	Engine   EngineConfig          `mapstructure:"engine"`
	Database DatabaseConfig        `mapstructure:"database"`
	Schema   SchemaConfig          `mapstructure:"schema"`
	Kafka    KafkaConfig           `mapstructure:"kafka"`
	Run      RunConfig             `mapstructure:"run"`
}

// Site looks up a site by identifier.
func (c *Config) Site(name string) (SiteConfig, error) {
	s, ok := c.Sites[name]
	if !ok {
		return SiteConfig{}, fmt.Errorf("%w: site %q not found in configuration", model.ErrInvalidInput, name)
	}
	return s, nil
}

// Load reads configuration from the given YAML file. A local .env file, if
// present, is loaded into the environment first so that credential lookups
// see it.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrConfiguration, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", model.ErrConfiguration, path, err)
	}
	if len(cfg.Sites) == 0 {
		return nil, fmt.Errorf("%w: no sites defined in %s", model.ErrConfiguration, path)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("engine.page_cap", 1000)
	v.SetDefault("engine.frame_workers", 20)
	v.SetDefault("engine.attr_workers", 5)
	v.SetDefault("engine.max_split_depth", 32)
	v.SetDefault("engine.insecure_skip_verify", true)
	v.SetDefault("database.path", "eventframes.db")
	v.SetDefault("database.table", "eventframe_cache")
	v.SetDefault("run.interval", time.Hour)
	v.SetDefault("run.lookback", 360*time.Hour)
}
