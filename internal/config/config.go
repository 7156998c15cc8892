// Package config provides configuration management for chapterforge using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultMaxOpenConns     = 25
	defaultMaxIdleConns     = 10
	defaultConnMaxIdleTime  = 30 * time.Minute
	defaultHTTPTimeout      = 60 * time.Second
	defaultDeployTimeout    = 10 * time.Minute
	defaultPollInterval     = 30 * time.Second
	defaultRetryAttempts    = 3
	defaultRetryDelay       = 5 * time.Second
	defaultLLMTimeout       = 5 * time.Minute
	defaultChunkSize        = 25
	defaultContextParas     = 1
	defaultMinBreakIndex    = 3
	defaultPassingRating    = 8
	defaultWhisperModel     = "large-v3"
	defaultStageMaxAttempts = 5
)

// Config holds all configuration for the application.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Whisper  WhisperConfig  `mapstructure:"whisper"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Media    MediaConfig    `mapstructure:"media"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	// BaseDir is the project root; job directories live under it.
	BaseDir string `mapstructure:"base_dir"`
	JobsDir string `mapstructure:"jobs_dir"`
	LogsDir string `mapstructure:"logs_dir"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// WhisperConfig holds remote transcription worker configuration.
type WhisperConfig struct {
	// BaseURL is the root URL of the transcription worker
	// (e.g. "http://gpu-box:9000").
	BaseURL string `mapstructure:"base_url"`

	// Model is the whisper model name sent with each deploy.
	Model string `mapstructure:"model"`

	// DeployTimeout bounds the multipart upload of the audio segment.
	DeployTimeout time.Duration `mapstructure:"deploy_timeout"`

	// HTTPTimeout bounds status and retrieve calls.
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	// PollInterval is how often the watch loop checks running jobs.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// LLMEndpointConfig describes one language-model endpoint.
type LLMEndpointConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLMConfig holds language-model endpoint configuration. Gemini is the
// primary cloud endpoint; Ollama is the local endpoint used for paragraph
// editing.
type LLMConfig struct {
	Gemini        LLMEndpointConfig `mapstructure:"gemini"`
	Ollama        LLMEndpointConfig `mapstructure:"ollama"`
	RetryAttempts int               `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration     `mapstructure:"retry_delay"`
}

// MediaConfig holds external media tool configuration.
type MediaConfig struct {
	// DownloaderPath is the yt-dlp binary (empty = find on PATH).
	DownloaderPath string `mapstructure:"downloader_path"`
	// FFmpegPath is the ffmpeg binary (empty = find on PATH).
	FFmpegPath string `mapstructure:"ffmpeg_path"`
	// AudioFormat is the container requested from the downloader.
	AudioFormat string `mapstructure:"audio_format"`
}

// PipelineConfig holds stage tuning parameters.
type PipelineConfig struct {
	// ChunkSize is the number of sentences offered to the model per
	// paragraph-break question.
	ChunkSize int `mapstructure:"chunk_size"`

	// ContextParagraphs is how many formed paragraphs accompany each chunk.
	ContextParagraphs int `mapstructure:"context_paragraphs"`

	// MinBreakIndex is the smallest accepted break index; smaller replies
	// advance by the full chunk to avoid stub paragraphs.
	MinBreakIndex int `mapstructure:"min_break_index"`

	// PassingRating is the minimum evaluator rating for a paragraph to pass.
	PassingRating int `mapstructure:"passing_rating"`

	// MaxAttempts caps automatic retries for auto-retry stages.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with CHAPTERFORGE_ and use underscores
// for nesting. Example: CHAPTERFORGE_WHISPER_BASE_URL=http://gpu:9000.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/chapterforge")
		v.AddConfigPath("$HOME/.chapterforge")
	}

	v.SetEnvPrefix("CHAPTERFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.jobs_dir", "jobs")
	v.SetDefault("storage.logs_dir", "logs")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "chapterforge.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Whisper worker defaults
	v.SetDefault("whisper.base_url", "http://localhost:9000")
	v.SetDefault("whisper.model", defaultWhisperModel)
	v.SetDefault("whisper.deploy_timeout", defaultDeployTimeout)
	v.SetDefault("whisper.http_timeout", defaultHTTPTimeout)
	v.SetDefault("whisper.poll_interval", defaultPollInterval)
	v.SetDefault("whisper.retry_attempts", defaultRetryAttempts)
	v.SetDefault("whisper.retry_delay", defaultRetryDelay)

	// LLM defaults
	v.SetDefault("llm.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta/openai")
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.model", "gemini-2.0-flash")
	v.SetDefault("llm.gemini.timeout", defaultLLMTimeout)
	v.SetDefault("llm.ollama.base_url", "http://localhost:11434")
	v.SetDefault("llm.ollama.api_key", "")
	v.SetDefault("llm.ollama.model", "llama3.1")
	v.SetDefault("llm.ollama.timeout", defaultLLMTimeout)
	v.SetDefault("llm.retry_attempts", defaultRetryAttempts)
	v.SetDefault("llm.retry_delay", defaultRetryDelay)

	// Media tool defaults
	v.SetDefault("media.downloader_path", "yt-dlp")
	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.audio_format", "m4a")

	// Pipeline defaults
	v.SetDefault("pipeline.chunk_size", defaultChunkSize)
	v.SetDefault("pipeline.context_paragraphs", defaultContextParas)
	v.SetDefault("pipeline.min_break_index", defaultMinBreakIndex)
	v.SetDefault("pipeline.passing_rating", defaultPassingRating)
	v.SetDefault("pipeline.max_attempts", defaultStageMaxAttempts)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Whisper.BaseURL == "" {
		return fmt.Errorf("whisper.base_url is required")
	}

	if c.Pipeline.ChunkSize < 1 {
		return fmt.Errorf("pipeline.chunk_size must be at least 1")
	}
	if c.Pipeline.PassingRating < 1 || c.Pipeline.PassingRating > 10 {
		return fmt.Errorf("pipeline.passing_rating must be between 1 and 10")
	}

	return nil
}

// JobsPath returns the full path to the jobs directory.
func (c *StorageConfig) JobsPath() string {
	return filepath.Join(c.BaseDir, c.JobsDir)
}

// LogsPath returns the full path to the logs directory.
func (c *StorageConfig) LogsPath() string {
	return filepath.Join(c.BaseDir, c.LogsDir)
}
