package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Parse isolation modes
const (
	IsolationProcess   = "process"
	IsolationInProcess = "inprocess"
)

type Config struct {
	Host               string
	Port               string
	GinMode            string
	LogLevel           string
	RequestTimeout     time.Duration
	AssetFetchTimeout  time.Duration
	MaxRequestBodySize int64
	MaxUploadSize      int64

	// Layer parsing
	ParseTimeout   time.Duration
	ParseIsolation string
	ParseMaxOutput int64
	LayerOCR       bool
	OCRLanguage    string

	// Admission control and compositing
	MaxInFlight      int
	QueueTimeout     time.Duration
	CompositeWorkers int

	// Output
	JPEGQuality int
	OutputDPI   int

	// Placement geometry
	FallbackScalePercent int
	CandidateMinArea     int
	CandidateMaxArea     int
	CandidateMinAspect   float64
	CandidateMaxAspect   float64
	MaxImagePixels       int64

	// Result cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Asset sources
	AzureAccountName string
	AzureAccountKey  string
	MockupDir        string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// CacheEnabled reports whether a Redis address is configured
func (c *Config) CacheEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

// AzureEnabled reports whether Azure Blob credentials are configured
func (c *Config) AzureEnabled() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("asset_fetch_timeout", 15*time.Second)
	v.SetDefault("max_request_body_size", 64*1024*1024)
	v.SetDefault("max_upload_size", 50*1024*1024)

	v.SetDefault("parse_timeout", 25*time.Second)
	v.SetDefault("parse_isolation", IsolationProcess)
	v.SetDefault("parse_max_output", 512*1024*1024)
	v.SetDefault("layer_ocr_enabled", false)
	v.SetDefault("ocr_language", "eng")

	v.SetDefault("max_in_flight", 4)
	v.SetDefault("queue_timeout", 10*time.Second)
	v.SetDefault("composite_workers", 0)

	v.SetDefault("jpeg_quality", 90)
	v.SetDefault("output_dpi", 300)

	v.SetDefault("fallback_scale_percent", 70)
	v.SetDefault("candidate_min_area", 10000)
	v.SetDefault("candidate_max_area", 2000000)
	v.SetDefault("candidate_min_aspect", 0.5)
	v.SetDefault("candidate_max_aspect", 2.0)
	v.SetDefault("max_image_pixels", 100000000)

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("cache_ttl", 24*time.Hour)

	v.SetDefault("azure_storage_account", "")
	v.SetDefault("azure_storage_key", "")
	v.SetDefault("mockup_dir", "./data/mockups")
}

// LoadFromEnv reads configuration from the environment and, when CONFIG_FILE
// is set, from that YAML file. Environment values take precedence.
func LoadFromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Host:               strings.TrimSpace(v.GetString("host")),
		Port:               strings.TrimSpace(v.GetString("port")),
		GinMode:            v.GetString("gin_mode"),
		LogLevel:           v.GetString("log_level"),
		RequestTimeout:     v.GetDuration("request_timeout"),
		AssetFetchTimeout:  v.GetDuration("asset_fetch_timeout"),
		MaxRequestBodySize: v.GetInt64("max_request_body_size"),
		MaxUploadSize:      v.GetInt64("max_upload_size"),

		ParseTimeout:   v.GetDuration("parse_timeout"),
		ParseIsolation: strings.ToLower(strings.TrimSpace(v.GetString("parse_isolation"))),
		ParseMaxOutput: v.GetInt64("parse_max_output"),
		LayerOCR:       v.GetBool("layer_ocr_enabled"),
		OCRLanguage:    v.GetString("ocr_language"),

		MaxInFlight:      v.GetInt("max_in_flight"),
		QueueTimeout:     v.GetDuration("queue_timeout"),
		CompositeWorkers: v.GetInt("composite_workers"),

		JPEGQuality: v.GetInt("jpeg_quality"),
		OutputDPI:   v.GetInt("output_dpi"),

		FallbackScalePercent: v.GetInt("fallback_scale_percent"),
		CandidateMinArea:     v.GetInt("candidate_min_area"),
		CandidateMaxArea:     v.GetInt("candidate_max_area"),
		CandidateMinAspect:   v.GetFloat64("candidate_min_aspect"),
		CandidateMaxAspect:   v.GetFloat64("candidate_max_aspect"),
		MaxImagePixels:       v.GetInt64("max_image_pixels"),

		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		CacheTTL:      v.GetDuration("cache_ttl"),

		AzureAccountName: v.GetString("azure_storage_account"),
		AzureAccountKey:  v.GetString("azure_storage_key"),
		MockupDir:        v.GetString("mockup_dir"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and relationships between settings
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 || c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE and MAX_UPLOAD_SIZE must be > 0 (got %d, %d)",
			c.MaxRequestBodySize, c.MaxUploadSize)
	}
	if c.RequestTimeout <= 0 || c.AssetFetchTimeout <= 0 || c.ParseTimeout <= 0 || c.QueueTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, parse=%s, queue=%s)",
			c.RequestTimeout, c.AssetFetchTimeout, c.ParseTimeout, c.QueueTimeout)
	}
	if c.ParseIsolation != IsolationProcess && c.ParseIsolation != IsolationInProcess {
		return fmt.Errorf("PARSE_ISOLATION must be %q or %q (got %q)", IsolationProcess, IsolationInProcess, c.ParseIsolation)
	}
	if c.ParseMaxOutput <= 0 {
		return fmt.Errorf("PARSE_MAX_OUTPUT must be > 0 (got %d)", c.ParseMaxOutput)
	}
	if c.MaxInFlight < 1 {
		return fmt.Errorf("MAX_IN_FLIGHT must be >= 1 (got %d)", c.MaxInFlight)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be in [1,100] (got %d)", c.JPEGQuality)
	}
	if c.OutputDPI < 1 || c.OutputDPI > 65535 {
		return fmt.Errorf("OUTPUT_DPI must be in [1,65535] (got %d)", c.OutputDPI)
	}
	if c.FallbackScalePercent <= 0 || c.FallbackScalePercent > 100 {
		return fmt.Errorf("FALLBACK_SCALE_PERCENT must be in (0,100] (got %d)", c.FallbackScalePercent)
	}
	if c.CandidateMinArea < 0 || c.CandidateMinArea >= c.CandidateMaxArea {
		return fmt.Errorf("candidate area bounds must satisfy 0 <= min < max (got %d, %d)",
			c.CandidateMinArea, c.CandidateMaxArea)
	}
	if c.CandidateMinAspect <= 0 || c.CandidateMinAspect > c.CandidateMaxAspect {
		return fmt.Errorf("candidate aspect bounds must satisfy 0 < min <= max (got %g, %g)",
			c.CandidateMinAspect, c.CandidateMaxAspect)
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be > 0 (got %d)", c.MaxImagePixels)
	}
	return nil
}
