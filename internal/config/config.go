package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	EnvContentDir = "LIVESITE_CONTENT_DIR"
	EnvOutputDir  = "LIVESITE_OUTPUT_DIR"
	EnvListen     = "LIVESITE_LISTEN"
	EnvRedisURL   = "LIVESITE_REDIS_URL"

	defaultContentDir       = "content"
	defaultOutputDir        = "html"
	defaultListen           = ":8080"
	defaultWorkers          = 4
	defaultContentFileName  = "content.md"
	defaultRecentEntries    = 5
	defaultPageSize         = 10
	defaultRedisChannel     = "livesite:builds"
	defaultRedisKeyPrefix   = "livesite"
	defaultSiteTitle        = "Sup"
	defaultSiteDescription  = "It's The Rotoclone Zone"
	defaultBlogTitle        = "The Rotoclone Zone Blog"
	defaultBlogDescription  = "It's The Rotoclone Zone Blog"
	defaultAboutTitle       = "About The Rotoclone Zone"
	defaultRedisPingTimeout = 2 * time.Second
)

type IndexerConfig struct {
	ContentDir      string `yaml:"content_dir"`
	OutputDir       string `yaml:"output_dir"`
	Workers         int    `yaml:"workers"`
	ContentFileName string `yaml:"content_filename"`
	LegacyFiles     bool   `yaml:"legacy_files"`
}

type WatcherConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Debounce       time.Duration `yaml:"debounce"`
	ResyncInterval time.Duration `yaml:"resync_interval"`
}

type ViewConfig struct {
	RecentEntries   int    `yaml:"recent_entries"`
	PageSize        int    `yaml:"page_size"`
	SiteTitle       string `yaml:"site_title"`
	SiteDescription string `yaml:"site_description"`
	BlogTitle       string `yaml:"blog_title"`
	BlogDescription string `yaml:"blog_description"`
	AboutTitle      string `yaml:"about_title"`
}

type RedisConfig struct {
	URL         string        `yaml:"url"`
	Channel     string        `yaml:"channel"`
	KeyPrefix   string        `yaml:"key_prefix"`
	PingTimeout time.Duration `yaml:"ping_timeout"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	Listen        string        `yaml:"listen"`
	LogLevel      string        `yaml:"log_level"`
	IndexerConfig IndexerConfig `yaml:"indexer"`
	Watcher       WatcherConfig `yaml:"watcher"`
	View          ViewConfig    `yaml:"view"`
	Redis         RedisConfig   `yaml:"redis"`
	Metrics       MetricsConfig `yaml:"metrics"`
}

func (c *Config) SetDefaults() {
	c.Listen = defaultListen
	c.LogLevel = LogLevelInfo

	c.IndexerConfig = IndexerConfig{
		ContentDir:      defaultContentDir,
		OutputDir:       defaultOutputDir,
		Workers:         defaultWorkers,
		ContentFileName: defaultContentFileName,
	}

	c.Watcher = WatcherConfig{Enabled: true}

	c.View = ViewConfig{
		RecentEntries:   defaultRecentEntries,
		PageSize:        defaultPageSize,
		SiteTitle:       defaultSiteTitle,
		SiteDescription: defaultSiteDescription,
		BlogTitle:       defaultBlogTitle,
		BlogDescription: defaultBlogDescription,
		AboutTitle:      defaultAboutTitle,
	}

	c.Redis = RedisConfig{
		Channel:     defaultRedisChannel,
		KeyPrefix:   defaultRedisKeyPrefix,
		PingTimeout: defaultRedisPingTimeout,
	}

	c.Metrics = MetricsConfig{Enabled: true}
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}

	if c.IndexerConfig.ContentDir == "" {
		return fmt.Errorf("content_dir must be set")
	}

	if c.IndexerConfig.OutputDir == "" {
		return fmt.Errorf("output_dir must be set")
	}

	if c.IndexerConfig.ContentFileName == "" {
		return fmt.Errorf("content_filename must be set")
	}

	if c.IndexerConfig.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.IndexerConfig.Workers)
	}

	if c.View.RecentEntries < 1 || c.View.PageSize < 1 {
		return fmt.Errorf("recent_entries and page_size must be positive")
	}

	if c.Watcher.Debounce < 0 || c.Watcher.ResyncInterval < 0 {
		return fmt.Errorf("watcher durations must not be negative")
	}

	return nil
}

// Load reads the yaml file at path on top of the defaults. A missing file is not an error.
// Variables from a .env file next to the working directory are loaded first and never
// override the process environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot load .env file: %w", err)
	}

	cfg := &Config{}
	cfg.SetDefaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot unmarshal config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvContentDir); v != "" {
		c.IndexerConfig.ContentDir = v
	}

	if v := os.Getenv(EnvOutputDir); v != "" {
		c.IndexerConfig.OutputDir = v
	}

	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}

	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
	}
}

// BlogDirName is the sub directory of both the content and output roots holding entries.
const BlogDirName = "blog"

// BlogURLPrefix is prepended to entry slugs to build their URLs.
const BlogURLPrefix = "/" + BlogDirName

type FSAdapterConfig struct {
	ContentFileName string
	URLPrefix       string
}

func (c *Config) FSAdapterConfig() *FSAdapterConfig {
	return &FSAdapterConfig{
		ContentFileName: c.IndexerConfig.ContentFileName,
		URLPrefix:       BlogURLPrefix,
	}
}
