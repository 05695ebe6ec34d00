package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the triage engine.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	NATS       NATSConfig       `yaml:"nats"`
	Model      ModelConfig      `yaml:"model"`
	CodeHost   CodeHostConfig   `yaml:"codehost"`
	Chat       ChatConfig       `yaml:"chat"`
	Wiki       WikiConfig       `yaml:"wiki"`
	Rules      RulesConfig      `yaml:"rules"`
	Cache      CacheConfig      `yaml:"cache"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Insights InsightsConfig `yaml:"insights"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the metrics listener and shutdown behaviour.
type ServerConfig struct {
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// NATSConfig configures the inbound error-event subscription.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"`
}

// ModelConfig configures the inference backend and its retry policy.
type ModelConfig struct {
	Provider      string        `yaml:"provider"`
	Name          string        `yaml:"name"`
	Version       string        `yaml:"version"`
	APIKey        string        `yaml:"apiKey"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"maxAttempts"`
	InitialDelay  time.Duration `yaml:"initialDelay"`
	MaxDelay      time.Duration `yaml:"maxDelay"`
	BackoffFactor float64       `yaml:"backoffFactor"`
}

// CodeHostConfig configures the source-repository browsing client.
type CodeHostConfig struct {
	BaseURL       string        `yaml:"baseURL"`
	Token         string        `yaml:"token"`
	DefaultBranch string        `yaml:"defaultBranch"`
	Timeout       time.Duration `yaml:"timeout"`
	SnippetRadius int           `yaml:"snippetRadius"`
}

// ChatConfig configures the notification webhook.
type ChatConfig struct {
	WebhookURL string        `yaml:"webhookURL"`
	Channel    string        `yaml:"channel"`
	Timeout    time.Duration `yaml:"timeout"`
}

// WikiConfig configures the documentation publisher.
type WikiConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Token   string        `yaml:"token"`
	Space   string        `yaml:"space"`
	Timeout time.Duration `yaml:"timeout"`
}

// RulesConfig points at the escalation rule pack.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls the analysis signature cache. With Enabled set and no
// Addr, an in-process LRU provider is used instead of Valkey.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	AnalysisTTL  time.Duration `yaml:"analysisTTL"`
	MemorySize   int           `yaml:"memorySize"`
}

// PipelineConfig bounds a single triage run.
type PipelineConfig struct {
	RunTimeout time.Duration `yaml:"runTimeout"`
}

// InsightsConfig controls periodic recurrence digests. Issues repeating
// fewer than MinRecurrence times stay out of the digest.
type InsightsConfig struct {
	Interval      time.Duration `yaml:"interval"`
	TopN          int           `yaml:"topN"`
	MinRecurrence int           `yaml:"minRecurrence"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TRIAGE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "errors.events",
			Queue:   "triage-engine",
		},
		Model: ModelConfig{
			Provider:      "gemini",
			Name:          "gemini-2.0-flash",
			Timeout:       30 * time.Second,
			MaxAttempts:   3,
			InitialDelay:  time.Second,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2,
		},
		CodeHost: CodeHostConfig{
			DefaultBranch: "main",
			Timeout:       5 * time.Second,
			SnippetRadius: 8,
		},
		Chat:  ChatConfig{Channel: "#incidents", Timeout: 5 * time.Second},
		Wiki:  WikiConfig{Space: "OPS", Timeout: 5 * time.Second},
		Rules: RulesConfig{Path: "configs/rules/default.yaml"},
		Cache: CacheConfig{
			Enabled:      false,
			AnalysisTTL:  time.Hour,
			MemorySize:   4096,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
		Pipeline: PipelineConfig{RunTimeout: 2 * time.Minute},
		Insights: InsightsConfig{Interval: time.Hour, TopN: 5, MinRecurrence: 2},
		Logging:  LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRIAGE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("TRIAGE_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("TRIAGE_NATS_SUBJECT"); v != "" {
		cfg.NATS.Subject = v
	}
	if v := os.Getenv("TRIAGE_NATS_QUEUE"); v != "" {
		cfg.NATS.Queue = v
	}
	if v := os.Getenv("TRIAGE_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("TRIAGE_MODEL_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("TRIAGE_MODEL_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Model.MaxAttempts = n
		}
	}
	if v := os.Getenv("TRIAGE_CODEHOST_BASE_URL"); v != "" {
		cfg.CodeHost.BaseURL = v
	}
	if v := os.Getenv("TRIAGE_CODEHOST_TOKEN"); v != "" {
		cfg.CodeHost.Token = v
	}
	if v := os.Getenv("TRIAGE_CHAT_WEBHOOK_URL"); v != "" {
		cfg.Chat.WebhookURL = v
	}
	if v := os.Getenv("TRIAGE_CHAT_CHANNEL"); v != "" {
		cfg.Chat.Channel = v
	}
	if v := os.Getenv("TRIAGE_WIKI_BASE_URL"); v != "" {
		cfg.Wiki.BaseURL = v
	}
	if v := os.Getenv("TRIAGE_WIKI_TOKEN"); v != "" {
		cfg.Wiki.Token = v
	}
	if v := os.Getenv("TRIAGE_WIKI_SPACE"); v != "" {
		cfg.Wiki.Space = v
	}
	if v := os.Getenv("TRIAGE_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("TRIAGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRIAGE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("TRIAGE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("TRIAGE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("TRIAGE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("TRIAGE_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("TRIAGE_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("TRIAGE_CACHE_ANALYSIS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.AnalysisTTL = d
		}
	}
	if v := os.Getenv("TRIAGE_PIPELINE_RUN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.RunTimeout = d
		}
	}
	if v := os.Getenv("TRIAGE_INSIGHTS_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Insights.Interval = d
		}
	}
}
