package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"news_recommend/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 对应 configs/server.yaml，环境变量前缀 RECOMMEND_
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Store     StoreConfig     `mapstructure:"store"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Session   SessionConfig   `mapstructure:"session"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	History   HistoryConfig   `mapstructure:"history"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Debug          bool          `mapstructure:"debug"`
	LogFormat      string        `mapstructure:"log_format"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	TaskTimeout    time.Duration `mapstructure:"task_timeout"`
	TaskRetention  time.Duration `mapstructure:"task_retention"`
}

type PathsConfig struct {
	Users        string `mapstructure:"users"`
	Pipelines    string `mapstructure:"pipelines"`
	Interactions string `mapstructure:"interactions"`
	Corpus       string `mapstructure:"corpus"`
}

// EmbeddingConfig 向量服务，provider 为 gemini 或 openai
type EmbeddingConfig struct {
	Provider      string        `mapstructure:"provider"`
	Endpoint      string        `mapstructure:"endpoint"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Dimensions    int           `mapstructure:"dimensions"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	// BreakerFailures 连续失败多少次后熔断
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// StoreConfig 候选存储，driver 为 mongo 或 file
type StoreConfig struct {
	Driver         string        `mapstructure:"driver"`
	MongoURI       string        `mapstructure:"mongo_uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
}

// SessionConfig 已吊销 token 的存放位置，backend 为 memory 或 redis
type SessionConfig struct {
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
	MaxEntries    int           `mapstructure:"max_entries"`
}

type RecommendConfig struct {
	DefaultLimit int    `mapstructure:"default_limit"`
	MaxLimit     int    `mapstructure:"max_limit"`
	DefaultScene string `mapstructure:"default_scene"`
}

type HistoryConfig struct {
	// RetentionDays <= 0 表示不清理
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.log_format", "console")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.task_timeout", "2m")
	v.SetDefault("server.task_retention", "1h")

	v.SetDefault("paths.users", "configs/users.yaml")
	v.SetDefault("paths.pipelines", "configs/pipelines.json")
	v.SetDefault("paths.interactions", "data/interactions.jsonl")
	v.SetDefault("paths.corpus", "data/corpus.jsonl")

	v.SetDefault("embedding.provider", "gemini")
	v.SetDefault("embedding.endpoint", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "models/text-embedding-004")
	v.SetDefault("embedding.dimensions", 768)
	v.SetDefault("embedding.timeout", "10s")
	v.SetDefault("embedding.rate_per_second", 0)
	v.SetDefault("embedding.burst", 1)
	v.SetDefault("embedding.breaker_failures", 5)
	v.SetDefault("embedding.breaker_timeout", "30s")

	v.SetDefault("store.driver", "mongo")
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("store.database", "cognitive_project")
	v.SetDefault("store.collection", "news_scraper")
	v.SetDefault("store.connect_timeout", "10s")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_interval", "200ms")
	v.SetDefault("retry.max_interval", "2s")
	v.SetDefault("retry.call_timeout", "5s")

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.redis_password", "")
	v.SetDefault("session.redis_db", 0)
	v.SetDefault("session.ttl", "30m")
	v.SetDefault("session.max_entries", 10000)

	v.SetDefault("recommend.default_limit", 10)
	v.SetDefault("recommend.max_limit", 100)
	v.SetDefault("recommend.default_scene", "news")

	v.SetDefault("history.retention_days", 0)
	v.SetDefault("history.cleanup_interval", "24h")
}

// LoadConfig 加载配置，优先级：命令行参数 > 环境变量 > 配置文件 > 默认值
func LoadConfig(args []string) (*Config, error) {
	fset := flag.NewFlagSet("recommend", flag.ContinueOnError)
	configPath := fset.String("config", "configs/server.yaml", "Path to server config file")
	envFile := fset.String("env", ".env", "Path to .env file")
	fset.String("port", "", "Server port")
	fset.Bool("debug", false, "Enable debug logging")
	fset.String("users", "", "Path to users.yaml")
	fset.String("pipelines", "", "Path to pipelines.json")
	fset.String("interactions", "", "Path to interactions.jsonl")
	fset.String("corpus", "", "Path to corpus.jsonl (file store)")
	fset.String("store", "", "Candidate store driver: mongo | file")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	// .env 不存在时忽略，已存在的环境变量不会被覆盖
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", *envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(*configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RECOMMEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", *configPath, err)
		}
		logger.Info("Could not load config file '%s', using defaults, env and flags", *configPath)
	}

	// 只覆盖显式传入的命令行参数
	flagKeys := map[string]string{
		"port":         "server.port",
		"debug":        "server.debug",
		"users":        "paths.users",
		"pipelines":    "paths.pipelines",
		"interactions": "paths.interactions",
		"corpus":       "paths.corpus",
		"store":        "store.driver",
	}
	fset.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			v.Set(key, f.Value.String())
		}
	})

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Embedding.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive")
	}
	switch c.Store.Driver {
	case "mongo", "file":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive")
	}
	if c.Recommend.MaxLimit <= 0 || c.Recommend.DefaultLimit <= 0 {
		return fmt.Errorf("recommend limits must be positive")
	}
	return nil
}
