package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Pool     PoolConfig     `mapstructure:"pool"`
	OSS      OSSConfig      `mapstructure:"oss"`
	LLM      LLMConfig      `mapstructure:"llm"`
	TTS      TTSConfig      `mapstructure:"tts"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Podcast  PodcastConfig  `mapstructure:"podcast"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// QueueConfig tunes the broker facade and the job processor.
// disable_broker forces the in-memory no-op queue even when redis is up.
type QueueConfig struct {
	DisableBroker         bool  `mapstructure:"disable_broker"`
	MemoryConcurrency     int   `mapstructure:"memory_concurrency"`
	PodcastConcurrency    int   `mapstructure:"podcast_concurrency"`
	DefaultAttempts       int   `mapstructure:"default_attempts"`
	DefaultBackoffMS      int   `mapstructure:"default_backoff_ms"`
	StallTimeoutSeconds   int   `mapstructure:"stall_timeout_seconds"`
	HealthIntervalSeconds int   `mapstructure:"health_interval_seconds"`
	BacklogWarnThreshold  int64 `mapstructure:"backlog_warn_threshold"`
}

type PoolConfig struct {
	MaxHandles int `mapstructure:"max_handles"`
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type LLMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type TTSConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	DefaultVoice string `mapstructure:"default_voice"`
}

// MemoryConfig holds the mastery scoring constants. The deltas are
// heuristic, not derived from any documented pedagogy, so they stay
// configurable instead of hard-coded.
type MemoryConfig struct {
	InitialLevel    int `mapstructure:"initial_level"`
	UnderstoodDelta int `mapstructure:"understood_delta"`
	StrugglingDelta int `mapstructure:"struggling_delta"`
}

type PodcastConfig struct {
	SoftChunkLimit int `mapstructure:"soft_chunk_limit"`
	HardChunkLimit int `mapstructure:"hard_chunk_limit"`
	CharsPerSecond int `mapstructure:"chars_per_second"`
}

func Load(configPath string) (*Config, error) {
	// Prefer config.local.yaml when present (real credentials, not committed)
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Environment variables override file values
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("queue.memory_concurrency", 6)
	viper.SetDefault("queue.podcast_concurrency", 2)
	viper.SetDefault("queue.default_attempts", 3)
	viper.SetDefault("queue.default_backoff_ms", 5000)
	viper.SetDefault("queue.stall_timeout_seconds", 600)
	viper.SetDefault("queue.health_interval_seconds", 60)
	viper.SetDefault("queue.backlog_warn_threshold", 100)

	viper.SetDefault("pool.max_handles", 8)
	viper.SetDefault("pool.ttl_seconds", 300)

	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o-mini")

	viper.SetDefault("tts.base_url", "https://api.openai.com/v1")
	viper.SetDefault("tts.model", "tts-1")
	viper.SetDefault("tts.default_voice", "nova")

	viper.SetDefault("memory.initial_level", 50)
	viper.SetDefault("memory.understood_delta", 10)
	viper.SetDefault("memory.struggling_delta", 5)

	viper.SetDefault("podcast.soft_chunk_limit", 3000)
	viper.SetDefault("podcast.hard_chunk_limit", 4000)
	viper.SetDefault("podcast.chars_per_second", 15)
}
