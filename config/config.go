package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/angas/dkspot/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingApiKey = errors.New("API_KEY is not set, please check your .env file")

type AppConfigApi struct {
	Address string
	Port    int16
	// Seconds browsers and proxies may cache the chart, 0 disables the header. Default: 21600
	CacheMaxAge *int  `mapstructure:"cache_max_age"`
	Compress    *bool `mapstructure:"compress"` // gzip responses, default: true
}

func (a AppConfigApi) GetCacheMaxAge() int {
	if a.CacheMaxAge == nil {
		return 21600
	}
	return *a.CacheMaxAge
}

func (a AppConfigApi) GetCompress() bool {
	return a.Compress == nil || *a.Compress
}

func (a AppConfigApi) ListenAddr() string {
	return fmt.Sprintf("%s:%d", a.Address, a.Port)
}

type AppConfigEntsoe struct {
	BaseURL string        `mapstructure:"base_url"`
	ApiKey  string        `mapstructure:"api_key"` // Security token issued by the transparency platform
	Timeout time.Duration `mapstructure:"timeout"` // HTTP client timeout
}

type AppConfigPipeline struct {
	// Directory for the intermediate CSV files and the chart
	WorkDir      string  `mapstructure:"work_dir"`
	ChartFile    string  `mapstructure:"chart_file"`
	ExchangeRate float64 `mapstructure:"exchange_rate"` // DKK per EUR
	// Render pre-tax and tax inclusive series, otherwise prices only
	IncludeTax bool `mapstructure:"include_tax"`
}

// ChartPath is the chart file shared by the pipeline and the web server.
func (p AppConfigPipeline) ChartPath() string {
	return p.resolve(p.ChartFile)
}

func (p AppConfigPipeline) CSVPath(name string) string {
	return p.resolve(name)
}

func (p AppConfigPipeline) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.WorkDir, name)
}

type AppConfigSchedule struct {
	RunAt         string        `mapstructure:"run_at"` // cron spec, "@every 6h" or "@every 1h"
	Timeout       time.Duration `mapstructure:"timeout"`
	MaintenanceAt string        `mapstructure:"maintenance_at"`
}

type AppConfigDatabase struct {
	Path string
	// How many days pipeline runs are kept, default: 30
	RetentionDays *int `mapstructure:"retention_days"`
}

func (d AppConfigDatabase) GetRetentionDays() int {
	if d.RetentionDays == nil {
		return 30
	}
	return *d.RetentionDays
}

type AppConfigMqtt struct {
	Broker      string // Publishing is disabled when empty
	Port        int16
	Username    string
	Password    string
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

func (m AppConfigMqtt) Enabled() bool {
	return m.Broker != ""
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat == nil {
		return logging.LogAttrFormatJSON
	}
	if strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Api      AppConfigApi
	Entsoe   AppConfigEntsoe   `mapstructure:"entsoe"`
	Pipeline AppConfigPipeline `mapstructure:"pipeline"`
	Schedule AppConfigSchedule `mapstructure:"schedule"`
	Database AppConfigDatabase `mapstructure:"database"`
	Mqtt     AppConfigMqtt     `mapstructure:"mqtt"`
	Logging  AppConfigLogging  `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.address", "0.0.0.0")
	v.SetDefault("api.port", 5000)
	v.SetDefault("api.cache_max_age", 21600)
	v.SetDefault("api.compress", true)
	v.SetDefault("entsoe.base_url", "https://web-api.tp.entsoe.eu")
	v.SetDefault("entsoe.api_key", "")
	v.SetDefault("entsoe.timeout", 30*time.Second)
	v.SetDefault("pipeline.work_dir", ".")
	v.SetDefault("pipeline.chart_file", "day_ahead_prices_barchart.html")
	v.SetDefault("pipeline.exchange_rate", 7.45)
	v.SetDefault("pipeline.include_tax", true)
	v.SetDefault("schedule.run_at", "@every 6h")
	v.SetDefault("schedule.timeout", 2*time.Minute)
	v.SetDefault("schedule.maintenance_at", "30 2 * * *")
	v.SetDefault("database.path", "dkspot.db")
	v.SetDefault("database.retention_days", 30)
	v.SetDefault("logging.db_level", "INFO")
	v.SetDefault("logging.db_attrs_format", "JSON")
	v.SetDefault("logging.db_max_entries", 10000)
	v.SetDefault("logging.console_level", "INFO")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "dkspot")
	v.SetDefault("mqtt.topic_prefix", "dkspot/prices")
}

// Load reads the optional .env file, the config file and environment
// overrides such as API_PORT or SCHEDULE_RUN_AT. With an empty path the
// config file is looked up as config/config.yaml and may be missing.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("unable to read .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("entsoe.api_key", "ENTSOE_API_KEY", "API_KEY"); err != nil {
		return nil, fmt.Errorf("unable to bind api key: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	return &c, nil
}

func (c *AppConfig) Validate() error {
	if c.Entsoe.ApiKey == "" {
		return ErrMissingApiKey
	}
	if c.Pipeline.ExchangeRate <= 0 {
		return fmt.Errorf("pipeline.exchange_rate must be positive, got %v", c.Pipeline.ExchangeRate)
	}
	if c.Pipeline.ChartFile == "" {
		return errors.New("pipeline.chart_file is not set")
	}
	return nil
}
