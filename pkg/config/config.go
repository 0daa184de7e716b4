package config

import (
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ajitpratap0/gdi/pkg/errors"
)

// Source names understood by the registry.
const (
	SourceWorldBank = "worldbank"
	SourceMarket    = "market"
	SourceCSV       = "csv"
)

// Warehouse drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the complete runtime configuration of gdi.
type Config struct {
	// Name identifies this deployment in logs and traces
	Name string `yaml:"name" json:"name" mapstructure:"name" validate:"required"`

	// Warehouse holds the star-schema database connection
	Warehouse WarehouseConfig `yaml:"warehouse" json:"warehouse" mapstructure:"warehouse"`

	// Sources selects and configures the providers fetched on each run
	Sources SourcesConfig `yaml:"sources" json:"sources" mapstructure:"sources"`

	// HTTP configures the client shared by HTTP sources
	HTTP HTTPConfig `yaml:"http" json:"http" mapstructure:"http"`

	// Archive optionally stores raw provider payloads
	Archive ArchiveConfig `yaml:"archive" json:"archive" mapstructure:"archive"`

	// Quality configures the post-load checks
	Quality QualityConfig `yaml:"quality" json:"quality" mapstructure:"quality"`

	// Transform configures the downstream transformation command
	Transform TransformConfig `yaml:"transform" json:"transform" mapstructure:"transform"`

	// Schedule configures the bundled scheduler
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule" mapstructure:"schedule"`

	// Observability settings for logging, metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// WarehouseConfig contains the connection parameters of the warehouse.
type WarehouseConfig struct {
	// Driver is postgres, or memory for dry runs
	Driver         string        `yaml:"driver" json:"driver" mapstructure:"driver" validate:"oneof=postgres memory"`
	User           string        `yaml:"user" json:"user" mapstructure:"user" validate:"required_if=Driver postgres"`
	Password       string        `yaml:"password" json:"password" mapstructure:"password"`
	Database       string        `yaml:"database" json:"database" mapstructure:"database" validate:"required_if=Driver postgres"`
	Host           string        `yaml:"host" json:"host" mapstructure:"host" validate:"required_if=Driver postgres"`
	Port           int           `yaml:"port" json:"port" mapstructure:"port" validate:"min=1,max=65535"`
	SSLMode        string        `yaml:"ssl_mode" json:"ssl_mode" mapstructure:"ssl_mode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns       int32         `yaml:"max_conns" json:"max_conns" mapstructure:"max_conns" validate:"min=1"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" mapstructure:"connect_timeout" validate:"gt=0"`
	// AutoMigrate applies schema migrations before each ingestion run
	AutoMigrate bool `yaml:"auto_migrate" json:"auto_migrate" mapstructure:"auto_migrate"`
}

// DSN returns the connection URL for the warehouse.
func (w *WarehouseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(w.User, w.Password),
		Host:   net.JoinHostPort(w.Host, strconv.Itoa(w.Port)),
		Path:   "/" + w.Database,
	}
	q := url.Values{}
	q.Set("sslmode", w.SSLMode)
	if w.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(w.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// SourcesConfig lists the enabled sources in fetch order.
type SourcesConfig struct {
	Enabled   []string        `yaml:"enabled" json:"enabled" mapstructure:"enabled" validate:"min=1,dive,oneof=worldbank market csv"`
	WorldBank WorldBankConfig `yaml:"worldbank" json:"worldbank" mapstructure:"worldbank"`
	Market    MarketConfig    `yaml:"market" json:"market" mapstructure:"market"`
	CSV       CSVConfig       `yaml:"csv" json:"csv" mapstructure:"csv"`
}

// IsEnabled reports whether the named source is enabled.
func (s *SourcesConfig) IsEnabled(name string) bool {
	for _, n := range s.Enabled {
		if n == name {
			return true
		}
	}
	return false
}

// WorldBankConfig configures the macro-indicator source.
type WorldBankConfig struct {
	BaseURL    string            `yaml:"base_url" json:"base_url" mapstructure:"base_url" validate:"required,url"`
	Countries  []string          `yaml:"countries" json:"countries" mapstructure:"countries" validate:"min=1,dive,required"`
	Indicators []IndicatorConfig `yaml:"indicators" json:"indicators" mapstructure:"indicators" validate:"min=1,dive"`
	StartYear  int               `yaml:"start_year" json:"start_year" mapstructure:"start_year" validate:"min=1960"`
	EndYear    int               `yaml:"end_year" json:"end_year" mapstructure:"end_year" validate:"gtefield=StartYear"`
	PerPage    int               `yaml:"per_page" json:"per_page" mapstructure:"per_page" validate:"min=1,max=32500"`
	Domain     string            `yaml:"domain" json:"domain" mapstructure:"domain" validate:"required"`
}

// IndicatorConfig names one World Bank indicator.
type IndicatorConfig struct {
	Code string `yaml:"code" json:"code" mapstructure:"code" validate:"required"`
	Name string `yaml:"name" json:"name" mapstructure:"name" validate:"required"`
	Unit string `yaml:"unit" json:"unit" mapstructure:"unit" validate:"required"`
}

// MarketConfig configures the market-index source.
type MarketConfig struct {
	BaseURL     string `yaml:"base_url" json:"base_url" mapstructure:"base_url" validate:"required,url"`
	Ticker      string `yaml:"ticker" json:"ticker" mapstructure:"ticker" validate:"required"`
	Range       string `yaml:"range" json:"range" mapstructure:"range" validate:"required"`
	Interval    string `yaml:"interval" json:"interval" mapstructure:"interval" validate:"required"`
	CountryCode string `yaml:"country_code" json:"country_code" mapstructure:"country_code" validate:"required"`
	CountryName string `yaml:"country_name" json:"country_name" mapstructure:"country_name" validate:"required"`
	// Unit is used when the provider does not report a currency
	Unit   string `yaml:"unit" json:"unit" mapstructure:"unit" validate:"required"`
	Domain string `yaml:"domain" json:"domain" mapstructure:"domain" validate:"required"`
}

// CSVConfig configures the canonical CSV file source.
type CSVConfig struct {
	Path string `yaml:"path" json:"path" mapstructure:"path"`
	// Domain overrides the domain_name column when set
	Domain string `yaml:"domain" json:"domain" mapstructure:"domain"`
}

// HTTPConfig configures outbound requests to providers.
type HTTPConfig struct {
	// RequestTimeout bounds every single request
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" mapstructure:"request_timeout" validate:"gt=0"`
	// RateLimit is the sustained request rate per second, 0 disables limiting
	RateLimit           float64 `yaml:"rate_limit" json:"rate_limit" mapstructure:"rate_limit" validate:"min=0"`
	RateBurst           int     `yaml:"rate_burst" json:"rate_burst" mapstructure:"rate_burst" validate:"min=1"`
	UserAgent           string  `yaml:"user_agent" json:"user_agent" mapstructure:"user_agent" validate:"required"`
	EnableHTTP2         bool    `yaml:"enable_http2" json:"enable_http2" mapstructure:"enable_http2"`
	MaxIdleConnsPerHost int     `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host" mapstructure:"max_idle_conns_per_host" validate:"min=1"`
}

// ArchiveConfig configures raw payload archiving.
type ArchiveConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	// Kind is file or s3
	Kind string `yaml:"kind" json:"kind" mapstructure:"kind" validate:"oneof=file s3"`
	// Codec is none, zstd or lz4
	Codec    string `yaml:"codec" json:"codec" mapstructure:"codec" validate:"oneof=none zstd lz4"`
	Dir      string `yaml:"dir" json:"dir" mapstructure:"dir"`
	Bucket   string `yaml:"bucket" json:"bucket" mapstructure:"bucket"`
	Prefix   string `yaml:"prefix" json:"prefix" mapstructure:"prefix"`
	Region   string `yaml:"region" json:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
}

// QualityConfig configures the post-load quality checks.
type QualityConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	// MinValue is the exclusive lower bound for fact values
	MinValue float64 `yaml:"min_value" json:"min_value" mapstructure:"min_value"`
}

// TransformConfig configures the transformation command run after quality checks.
type TransformConfig struct {
	Enabled    bool          `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Command    string        `yaml:"command" json:"command" mapstructure:"command" validate:"required"`
	Args       []string      `yaml:"args" json:"args" mapstructure:"args"`
	ProjectDir string        `yaml:"project_dir" json:"project_dir" mapstructure:"project_dir"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

// CommandArgs returns Args followed by --project-dir when ProjectDir is set.
func (t *TransformConfig) CommandArgs() []string {
	args := append([]string(nil), t.Args...)
	if t.ProjectDir != "" {
		args = append(args, "--project-dir", t.ProjectDir)
	}
	return args
}

// ScheduleConfig configures the bundled scheduler.
type ScheduleConfig struct {
	// Cron is a standard five field expression
	Cron       string        `yaml:"cron" json:"cron" mapstructure:"cron" validate:"required"`
	Timezone   string        `yaml:"timezone" json:"timezone" mapstructure:"timezone" validate:"required"`
	Retries    int           `yaml:"retries" json:"retries" mapstructure:"retries" validate:"min=0"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay" mapstructure:"retry_delay" validate:"min=0"`
	RunOnStart bool          `yaml:"run_on_start" json:"run_on_start" mapstructure:"run_on_start"`
}

// ObservabilityConfig contains logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel      string `yaml:"log_level" json:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogEncoding   string `yaml:"log_encoding" json:"log_encoding" mapstructure:"log_encoding" validate:"oneof=json console"`
	Development   bool   `yaml:"development" json:"development" mapstructure:"development"`
	EnableTracing bool   `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	ServiceName   string `yaml:"service_name" json:"service_name" mapstructure:"service_name" validate:"required"`
	MetricsAddr   string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
}

// Default returns a Config with the documented defaults applied.
func Default() *Config {
	return &Config{
		Name: "gdi",
		Warehouse: WarehouseConfig{
			Driver:         DriverPostgres,
			User:           "gdi_user",
			Password:       "gdi_password",
			Database:       "gdi_db",
			Host:           "localhost",
			Port:           5432,
			SSLMode:        "disable",
			MaxConns:       4,
			ConnectTimeout: 10 * time.Second,
			AutoMigrate:    true,
		},
		Sources: SourcesConfig{
			Enabled: []string{SourceWorldBank, SourceMarket},
			WorldBank: WorldBankConfig{
				BaseURL:   "https://api.worldbank.org/v2",
				Countries: []string{"FRA", "USA", "DEU"},
				Indicators: []IndicatorConfig{
					{Code: "NY.GDP.PCAP.CD", Name: "GDP per capita (current US$)", Unit: "USD"},
				},
				StartYear: 2000,
				EndYear:   2023,
				PerPage:   1000,
				Domain:    "economy",
			},
			Market: MarketConfig{
				BaseURL:     "https://query1.finance.yahoo.com",
				Ticker:      "SPY",
				Range:       "5y",
				Interval:    "1d",
				CountryCode: "WLD",
				CountryName: "Global",
				Unit:        "USD",
				Domain:      "finance",
			},
		},
		HTTP: HTTPConfig{
			RequestTimeout:      30 * time.Second,
			RateLimit:           5,
			RateBurst:           1,
			UserAgent:           "gdi/1.0",
			EnableHTTP2:         true,
			MaxIdleConnsPerHost: 4,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Kind:    "file",
			Codec:   "zstd",
			Dir:     "./data/raw",
			Prefix:  "raw",
		},
		Quality: QualityConfig{
			Enabled:  true,
			MinValue: 0,
		},
		Transform: TransformConfig{
			Enabled:    true,
			Command:    "dbt",
			Args:       []string{"run"},
			ProjectDir: "./dbt_project",
			Timeout:    30 * time.Minute,
		},
		Schedule: ScheduleConfig{
			Cron:       "0 0 * * *",
			Timezone:   "UTC",
			Retries:    1,
			RetryDelay: 5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogEncoding: "json",
			ServiceName: "gdi",
			MetricsAddr: ":9090",
		},
	}
}

// Validate checks struct constraints and the cross-section rules that tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return errors.Wrap(err, errors.KindConfig, "invalid configuration")
	}

	if c.Sources.IsEnabled(SourceCSV) && c.Sources.CSV.Path == "" {
		return errors.New(errors.KindConfig, "sources.csv.path is required when the csv source is enabled")
	}

	if c.Archive.Enabled {
		switch c.Archive.Kind {
		case "file":
			if c.Archive.Dir == "" {
				return errors.New(errors.KindConfig, "archive.dir is required for file archives")
			}
		case "s3":
			if c.Archive.Bucket == "" {
				return errors.New(errors.KindConfig, "archive.bucket is required for s3 archives")
			}
		}
	}

	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return errors.Wrap(err, errors.KindConfig, "invalid schedule.timezone")
	}

	return nil
}

// Redacted returns a copy of c that is safe to print.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Warehouse.Password != "" {
		cp.Warehouse.Password = "****"
	}
	return &cp
}
