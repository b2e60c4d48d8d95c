// Path: internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Fetch     FetchConfig
	Cache     CacheConfig
	Images    ImagesConfig
	Database  DatabaseConfig
	Watcher   WatcherConfig
	Logging   LoggingConfig
	Inference InferenceConfig
}

// ServerConfig holds the API server settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// UpstreamConfig holds settings for the model-hub search API.
type UpstreamConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	SearchPath        string `mapstructure:"search_path"`
	TokenEnv          string `mapstructure:"token_env"`
	CSRFEnv           string `mapstructure:"csrf_env"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	RequestsPerSecond int    `mapstructure:"requests_per_second"`
	BurstLimit        int    `mapstructure:"burst_limit"`
}

// Timeout returns the per-request timeout.
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// FetchConfig holds the defaults for one fetch-or-serve call.
type FetchConfig struct {
	Limit          int      `mapstructure:"limit"`
	Tag            string   `mapstructure:"tag"`
	PageSize       int      `mapstructure:"page_size"`
	MaxPages       int      `mapstructure:"max_pages"`
	TTLSeconds     int      `mapstructure:"ttl_seconds"`
	PerTaskCache   bool     `mapstructure:"per_task_cache"`
	DownloadImages bool     `mapstructure:"download_images"`
	Tasks          []string `mapstructure:"tasks"`
}

// TTL returns the cache time-to-live.
func (f FetchConfig) TTL() time.Duration {
	return time.Duration(f.TTLSeconds) * time.Second
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	ImagesDir   string `mapstructure:"images_dir"`
	RedisURL    string `mapstructure:"redis_url"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

// ImagesConfig holds cover download settings.
type ImagesConfig struct {
	Retries           int `mapstructure:"retries"`
	TimeoutSeconds    int `mapstructure:"timeout_seconds"`
	RequestsPerSecond int `mapstructure:"requests_per_second"`
}

// DatabaseConfig holds the catalog database settings.
// An empty URI disables the catalog mirror.
type DatabaseConfig struct {
	URI              string `mapstructure:"uri"`
	Name             string `mapstructure:"name"`
	Collection       string `mapstructure:"collection"`
	StatusCollection string `mapstructure:"status_collection"`
}

// WatcherConfig holds settings for the periodic refresher.
type WatcherConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// LoggingConfig controls log level and destination.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

// InferenceConfig holds settings for the generation job client.
type InferenceConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	OutputDir      string `mapstructure:"output_dir"`
	Retries        int    `mapstructure:"retries"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// TaskPresets maps short task names to the upstream task identifiers.
var TaskPresets = map[string]string{
	"text-to-image":  "text-to-image-synthesis",
	"image-to-video": "image-to-video",
}

// ResolveTask expands a preset name; unknown names pass through unchanged.
func ResolveTask(task string) string {
	if full, ok := TaskPresets[task]; ok {
		return full
	}
	return task
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER.PORT", "8080")

	v.SetDefault("UPSTREAM.BASE_URL", "https://www.modelscope.cn")
	v.SetDefault("UPSTREAM.SEARCH_PATH", "/api/v1/dolphin/models")
	v.SetDefault("UPSTREAM.TOKEN_ENV", "MODELSCOPE_API_TOKEN")
	v.SetDefault("UPSTREAM.CSRF_ENV", "MODELSCOPE_CSRF_TOKEN")
	v.SetDefault("UPSTREAM.TIMEOUT_SECONDS", 20)
	v.SetDefault("UPSTREAM.REQUESTS_PER_SECOND", 5)
	v.SetDefault("UPSTREAM.BURST_LIMIT", 10)

	v.SetDefault("FETCH.LIMIT", 20)
	v.SetDefault("FETCH.TAG", "lora")
	v.SetDefault("FETCH.PAGE_SIZE", 0)
	v.SetDefault("FETCH.MAX_PAGES", 5)
	v.SetDefault("FETCH.TTL_SECONDS", 300)
	v.SetDefault("FETCH.PER_TASK_CACHE", true)
	v.SetDefault("FETCH.DOWNLOAD_IMAGES", true)
	v.SetDefault("FETCH.TASKS", []string{"text-to-image-synthesis", "image-to-video"})

	v.SetDefault("CACHE.BACKEND", "file")
	v.SetDefault("CACHE.DIR", "cache")
	v.SetDefault("CACHE.IMAGES_DIR", "cache/images")
	v.SetDefault("CACHE.REDIS_URL", "")
	v.SetDefault("CACHE.REDIS_PREFIX", "toploras:")

	v.SetDefault("IMAGES.RETRIES", 2)
	v.SetDefault("IMAGES.TIMEOUT_SECONDS", 15)
	v.SetDefault("IMAGES.REQUESTS_PER_SECOND", 10)

	v.SetDefault("DATABASE.URI", "")
	v.SetDefault("DATABASE.NAME", "top-loras")
	v.SetDefault("DATABASE.COLLECTION", "loras")
	v.SetDefault("DATABASE.STATUS_COLLECTION", "_status")

	v.SetDefault("WATCHER.INTERVAL_MINUTES", 5)

	v.SetDefault("LOGGING.LEVEL", "info")
	v.SetDefault("LOGGING.FILE", "")
	v.SetDefault("LOGGING.MAX_SIZE_MB", 10)

	v.SetDefault("INFERENCE.ENDPOINT", "https://www.modelscope.cn/api/v1/inference")
	v.SetDefault("INFERENCE.OUTPUT_DIR", "cache/outputs")
	v.SetDefault("INFERENCE.RETRIES", 3)
	v.SetDefault("INFERENCE.TIMEOUT_SECONDS", 30)
}

// Load loads the configuration from an optional .env file, a config file and
// environment variables. An empty path searches ./configs for config.yaml.
func Load(path string) (*Config, error) {
	// Tokens usually live in .env next to the binary; a missing file is fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err // Only return error if it's not a "file not found" error
		}
	}

	// Load from environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
