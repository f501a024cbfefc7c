package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DateLayout is the accepted format of the export date
const DateLayout = "2006-01-02"

// Configuration errors, returned before any network call
var (
	ErrMissingShop        = errors.New("config: shop name is required (set SHOP or shop.name)")
	ErrMissingCredentials = errors.New("config: credentials are required (set TOKEN, or API_KEY and PASSWORD)")
	ErrInvalidDate        = errors.New("config: unable to parse date, pass DATE=YYYY-MM-DD")
)

// Config holds all application configuration
type Config struct {
	Shop    ShopConfig
	Export  ExportConfig
	Retry   RetryConfig
	Log     LogConfig
	Storage StorageConfig
}

// ShopConfig holds the commerce platform connection settings
type ShopConfig struct {
	Name       string
	Token      string
	APIKey     string
	Password   string
	APIVersion string
	BaseURL    string
	Timeout    time.Duration
}

// HasToken reports whether token authentication is configured
func (s *ShopConfig) HasToken() bool {
	return s.Token != ""
}

// ExportConfig holds the run parameters
type ExportConfig struct {
	// DateRaw is the date as supplied; empty means today in the shop's time zone
	DateRaw string
	// Date is DateRaw parsed; zero when unset
	Date time.Time
	// MaxRecords caps the exported orders; zero or negative means unlimited
	MaxRecords int
	// PageSize is clamped by the pipeline; zero means the default
	PageSize  int
	OutputDir string
	// Progress selects the progress display: console, log or none
	Progress string
	// Format selects the output file format: csv or xlsx
	Format string
}

// HasDate reports whether an explicit date was supplied
func (e *ExportConfig) HasDate() bool {
	return !e.Date.IsZero()
}

// RetryConfig bounds retries around source calls
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// StorageConfig holds S3-compatible upload settings
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
	Prefix       string

	// PresignExpiration is the lifetime of the download link printed after upload
	PresignExpiration time.Duration
}

// Progress display modes
const (
	ProgressConsole = "console"
	ProgressLog     = "log"
	ProgressNone    = "none"
)

// Output formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// loadOptions collects Load options
type loadOptions struct {
	configFile string
	flags      *pflag.FlagSet
}

// LoadOption is a functional option for Load
type LoadOption func(*loadOptions)

// WithConfigFile reads the given file instead of searching for orderexport.toml
func WithConfigFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.configFile = path
	}
}

// WithFlags binds command-line flags on top of file and environment values
func WithFlags(flags *pflag.FlagSet) LoadOption {
	return func(o *loadOptions) {
		o.flags = flags
	}
}

// flagKeys maps command-line flags onto configuration keys
var flagKeys = map[string]string{
	"date":        "export.date",
	"max-records": "export.max_records",
	"page-size":   "export.page_size",
	"output-dir":  "export.output_dir",
	"progress":    "export.progress",
	"format":      "export.format",
	"log-level":   "log.level",
}

// envAliases binds the bare variable names used by earlier export scripts
var envAliases = map[string]string{
	"shop.name":          "SHOP",
	"shop.token":         "TOKEN",
	"shop.api_key":       "API_KEY",
	"shop.password":      "PASSWORD",
	"export.date":        "DATE",
	"export.max_records": "MAX_RECORDS",
	"export.page_size":   "PAGE_SIZE",
}

// Load loads configuration.
// Priority (highest to lowest):
// 1. Command-line flags that were set
// 2. Environment variables with ORDEREXPORT_ prefix (e.g., ORDEREXPORT_SHOP_TOKEN)
// 3. Bare environment variables (SHOP, TOKEN, API_KEY, PASSWORD, DATE, MAX_RECORDS, PAGE_SIZE)
// 4. orderexport.toml
// 5. Built-in defaults
func Load(opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()

	// Set config file settings
	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
	} else {
		v.SetConfigName("orderexport")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/orderexport")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("ORDEREXPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		prefixed := "ORDEREXPORT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("binding %s: %w", alias, err)
		}
	}

	if o.flags != nil {
		for name, key := range flagKeys {
			if f := o.flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	// Build config struct
	cfg := &Config{
		Shop: ShopConfig{
			Name:       v.GetString("shop.name"),
			Token:      v.GetString("shop.token"),
			APIKey:     v.GetString("shop.api_key"),
			Password:   v.GetString("shop.password"),
			APIVersion: v.GetString("shop.api_version"),
			BaseURL:    v.GetString("shop.base_url"),
			Timeout:    v.GetDuration("shop.timeout"),
		},
		Export: ExportConfig{
			DateRaw:    strings.TrimSpace(v.GetString("export.date")),
			MaxRecords: v.GetInt("export.max_records"),
			PageSize:   v.GetInt("export.page_size"),
			OutputDir:  v.GetString("export.output_dir"),
			Progress:   strings.ToLower(v.GetString("export.progress")),
			Format:     strings.ToLower(v.GetString("export.format")),
		},
		Retry: RetryConfig{
			MaxAttempts:     v.GetInt("retry.max_attempts"),
			InitialInterval: v.GetDuration("retry.initial_interval"),
			MaxInterval:     v.GetDuration("retry.max_interval"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			Prefix:       v.GetString("storage.prefix"),

			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.Shop.Timeout <= 0 {
		cfg.Shop.Timeout = 30 * time.Second
	}
	if cfg.Export.OutputDir == "" {
		cfg.Export.OutputDir = "."
	}
	if cfg.Export.Progress == "" {
		cfg.Export.Progress = ProgressConsole
	}
	if cfg.Export.Format == "" {
		cfg.Export.Format = FormatCSV
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.InitialInterval <= 0 {
		cfg.Retry.InitialInterval = time.Second
	}
	if cfg.Retry.MaxInterval <= 0 {
		cfg.Retry.MaxInterval = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		// stdout carries the progress line and summary
		cfg.Log.Output = "stderr"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.PresignExpiration <= 0 {
		cfg.Storage.PresignExpiration = 24 * time.Hour
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Shop.Name == "" && c.Shop.BaseURL == "" {
		return ErrMissingShop
	}
	if c.Shop.Token == "" && (c.Shop.APIKey == "" || c.Shop.Password == "") {
		return ErrMissingCredentials
	}

	if c.Export.DateRaw != "" {
		d, err := time.Parse(DateLayout, c.Export.DateRaw)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDate, c.Export.DateRaw)
		}
		c.Export.Date = d
	}

	switch c.Export.Progress {
	case ProgressConsole, ProgressLog, ProgressNone:
	default:
		return fmt.Errorf("export.progress must be one of console, log, none, got %q", c.Export.Progress)
	}

	if c.Export.Format != FormatCSV && c.Export.Format != FormatXLSX {
		return fmt.Errorf("export.format must be csv or xlsx, got %q", c.Export.Format)
	}

	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("retry.max_interval (%s) cannot be less than retry.initial_interval (%s)",
			c.Retry.MaxInterval, c.Retry.InitialInterval)
	}

	if c.Storage.Enabled {
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage is enabled")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage.access_key and storage.secret_key are required when storage is enabled")
		}
	}

	return nil
}
