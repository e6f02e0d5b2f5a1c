// Package config loads the settings that wire together every other
// component: broker/store backends, revision and summarization
// budgets, per-node/per-job timeouts, and adapter credentials.
//
// A YAML file is loaded with gopkg.in/yaml.v3, environment variables
// fill in anything the file leaves blank, defaults apply last, and a
// Validate pass runs before the config is handed to callers.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting needed to wire up the broker, store,
// worker, and HTTP API.
type Config struct {
	LLMModel string `yaml:"llm_model"`

	MaxRevisions           int `yaml:"max_revisions"`
	HierarchicalThreshold  int `yaml:"hierarchical_threshold"`
	ChunkSize              int `yaml:"chunk_size"`
	KeepRecentMessages     int `yaml:"keep_recent_messages"`

	ClaimTimeout    time.Duration `yaml:"t_claim"`
	NodeTimeout     time.Duration `yaml:"t_node"`
	RetrievalTimeout time.Duration `yaml:"t_retrieval"`
	GeneratorTimeout time.Duration `yaml:"t_generator"`
	JobTimeout      time.Duration `yaml:"t_job"`
	SubGrace        time.Duration `yaml:"sub_grace"`
	ReplayBuffer    int           `yaml:"replay_buffer"`

	BrokerURL string `yaml:"broker_url"`
	StoreURL  string `yaml:"store_url"`

	WebSearchKey        string `yaml:"web_search_key"`
	RetrieverIndexPath  string `yaml:"retriever_index_path"`

	// FallbackWebOnEmptyRetrieval defaults to true. Since a plain bool's
	// zero value can't distinguish "unset" from "explicitly false", YAML
	// unmarshals into FallbackWebRaw (nil meaning "unset") and
	// applyDefaults squashes it into this field.
	FallbackWebOnEmptyRetrieval bool  `yaml:"-"`
	FallbackWebRaw              *bool `yaml:"fallback_web_on_empty_retrieval"`

	BaseLanguage string `yaml:"base_language"`

	OpenAIKey      string `yaml:"openai_key"`
	BedrockRegion  string `yaml:"bedrock_region"`

	HTTPAddr string `yaml:"http_addr"`

	// SessionRetention bounds how long a session's checkpoint survives
	// after its last update; cmd/qagraph's background sweep deletes
	// anything older. Zero disables the sweep.
	SessionRetention time.Duration `yaml:"session_retention"`

	// GCInterval is how often the background sweep runs, as a
	// robfig/cron spec (e.g. "@every 1h").
	GCInterval string `yaml:"gc_interval"`
}

// Load reads path (if non-empty and present) as YAML, then fills in
// anything still unset from the environment, applies defaults, and
// validates the result. path == "" skips the file and relies entirely
// on environment/defaults — useful for tests and container deploys
// that configure purely through env vars.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if c.LLMModel == "" {
		c.LLMModel = os.Getenv("LLM_MODEL")
	}
	envInt(&c.MaxRevisions, "MAX_REVISIONS")
	envInt(&c.HierarchicalThreshold, "HIERARCHICAL_THRESHOLD")
	envInt(&c.ChunkSize, "CHUNK_SIZE")
	envInt(&c.KeepRecentMessages, "KEEP_RECENT_MESSAGES")
	envDuration(&c.ClaimTimeout, "T_CLAIM")
	envDuration(&c.NodeTimeout, "T_NODE")
	envDuration(&c.JobTimeout, "T_JOB")
	envDuration(&c.SubGrace, "SUB_GRACE")
	envInt(&c.ReplayBuffer, "REPLAY_BUFFER")
	envDuration(&c.SessionRetention, "SESSION_RETENTION")
	if c.GCInterval == "" {
		c.GCInterval = os.Getenv("GC_INTERVAL")
	}

	if c.BrokerURL == "" {
		c.BrokerURL = os.Getenv("BROKER_URL")
	}
	if c.StoreURL == "" {
		c.StoreURL = os.Getenv("STORE_URL")
	}
	if c.WebSearchKey == "" {
		c.WebSearchKey = os.Getenv("WEB_SEARCH_KEY")
	}
	if c.RetrieverIndexPath == "" {
		c.RetrieverIndexPath = os.Getenv("RETRIEVER_INDEX_PATH")
	}
	if c.FallbackWebRaw == nil {
		if v := os.Getenv("FALLBACK_WEB_ON_EMPTY_RETRIEVAL"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.FallbackWebRaw = &b
			}
		}
	}
	if c.OpenAIKey == "" {
		c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.BedrockRegion == "" {
		c.BedrockRegion = os.Getenv("AWS_REGION")
	}
}

func envInt(dst *int, key string) {
	if *dst != 0 {
		return
	}
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(dst *time.Duration, key string) {
	if *dst != 0 {
		return
	}
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// applyDefaults fills in every zero-valued field with its default.
func (c *Config) applyDefaults() {
	if c.LLMModel == "" {
		c.LLMModel = "gpt-4o-mini"
	}
	if c.MaxRevisions == 0 {
		c.MaxRevisions = 2
	}
	if c.HierarchicalThreshold == 0 {
		c.HierarchicalThreshold = 100
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 20
	}
	if c.KeepRecentMessages == 0 {
		c.KeepRecentMessages = 4
	}
	if c.ClaimTimeout == 0 {
		c.ClaimTimeout = 5 * time.Second
	}
	if c.NodeTimeout == 0 {
		c.NodeTimeout = 60 * time.Second
	}
	if c.RetrievalTimeout == 0 {
		c.RetrievalTimeout = 120 * time.Second
	}
	if c.GeneratorTimeout == 0 {
		c.GeneratorTimeout = 180 * time.Second
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = 10 * time.Minute
	}
	if c.SubGrace == 0 {
		c.SubGrace = 300 * time.Second
	}
	if c.ReplayBuffer == 0 {
		c.ReplayBuffer = 64
	}
	if c.BaseLanguage == "" {
		c.BaseLanguage = "english"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.BrokerURL == "" {
		c.BrokerURL = "memory://"
	}
	if c.StoreURL == "" {
		c.StoreURL = "memory://"
	}
	if c.SessionRetention == 0 {
		c.SessionRetention = 30 * 24 * time.Hour
	}
	if c.GCInterval == "" {
		c.GCInterval = "@every 1h"
	}
	if c.FallbackWebRaw != nil {
		c.FallbackWebOnEmptyRetrieval = *c.FallbackWebRaw
	} else {
		c.FallbackWebOnEmptyRetrieval = true
	}
}

// Validate rejects configurations the rest of the system can't safely
// run with.
func (c *Config) Validate() error {
	if c.MaxRevisions < 0 {
		return fmt.Errorf("config: max_revisions must be >= 0")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be > 0")
	}
	if c.HierarchicalThreshold <= c.KeepRecentMessages {
		return fmt.Errorf("config: hierarchical_threshold must exceed keep_recent_messages")
	}
	if c.OpenAIKey == "" && c.BedrockRegion == "" {
		return fmt.Errorf("config: at least one LLM provider must be configured (openai_key or bedrock_region)")
	}
	return nil
}
