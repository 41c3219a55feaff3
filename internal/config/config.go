// Package config loads settings from config files, .env files, the
// environment, and the OS keychain. Precedence for secrets: environment
// variable, then keychain, then config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all settings.
type Config struct {
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
	LLM     LLMConfig     `yaml:"llm" mapstructure:"llm"`
	Agent   AgentConfig   `yaml:"agent" mapstructure:"agent"`
	Risk    RiskConfig    `yaml:"risk" mapstructure:"risk"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

type StorageConfig struct {
	GraphPath   string `yaml:"graph_path" mapstructure:"graph_path"`
	HistoryPath string `yaml:"history_path" mapstructure:"history_path"`
}

type SearchConfig struct {
	WeaviateURL string `yaml:"weaviate_url" mapstructure:"weaviate_url"`
}

type LLMConfig struct {
	Provider          string `yaml:"provider" mapstructure:"provider"` // "gemini" or "openai"
	Model             string `yaml:"model" mapstructure:"model"`
	APIKey            string `yaml:"api_key" mapstructure:"api_key"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations" mapstructure:"max_iterations"`
	MaxReadBytes  int `yaml:"max_read_bytes" mapstructure:"max_read_bytes"`
}

type RiskConfig struct {
	FanInThreshold int    `yaml:"fan_in_threshold" mapstructure:"fan_in_threshold"`
	TestPattern    string `yaml:"test_pattern" mapstructure:"test_pattern"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
	File  string `yaml:"file" mapstructure:"file"`
}

// Dir returns the per-user state directory.
func Dir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".codeatlas")
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := Dir()
	return &Config{
		Storage: StorageConfig{
			GraphPath:   filepath.Join(dir, "graphs.db"),
			HistoryPath: filepath.Join(dir, "history.db"),
		},
		Search: SearchConfig{
			WeaviateURL: "http://localhost:8080",
		},
		LLM: LLMConfig{
			Provider:          "gemini",
			RequestsPerMinute: 15,
		},
		Agent: AgentConfig{
			MaxIterations: 10,
			MaxReadBytes:  64 * 1024,
		},
		Risk: RiskConfig{
			FanInThreshold: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration. path may be empty, in which case standard
// locations are searched (./.codeatlas, ., ~/.codeatlas).
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("search", cfg.Search)
	v.SetDefault("llm", cfg.LLM)
	v.SetDefault("agent", cfg.Agent)
	v.SetDefault("risk", cfg.Risk)
	v.SetDefault("log", cfg.Log)

	v.SetEnvPrefix("CODEATLAS")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".codeatlas")
		v.AddConfigPath(".")
		v.AddConfigPath(Dir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if path != "" || !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("storage", c.Storage)
	v.Set("search", c.Search)
	v.Set("llm", c.LLM)
	v.Set("agent", c.Agent)
	v.Set("risk", c.Risk)
	v.Set("log", c.Log)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}
	homeEnv := filepath.Join(Dir(), ".env")
	if _, err := os.Stat(homeEnv); err == nil {
		godotenv.Load(homeEnv)
	}
}

func applyEnvOverrides(cfg *Config) {
	if url := os.Getenv("WEAVIATE_URL"); url != "" {
		cfg.Search.WeaviateURL = url
	}
	if provider := os.Getenv("CODEATLAS_LLM_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if model := os.Getenv("CODEATLAS_LLM_MODEL"); model != "" {
		cfg.LLM.Model = model
	}

	// Secrets: env var first, then keychain, then whatever the config
	// file carried.
	envKey := "GEMINI_API_KEY"
	if cfg.LLM.Provider == "openai" {
		envKey = "OPENAI_API_KEY"
	}
	if key := os.Getenv(envKey); key != "" {
		cfg.LLM.APIKey = key
	} else if cfg.LLM.APIKey == "" {
		if key, err := GetAPIKey(cfg.LLM.Provider); err == nil && key != "" {
			cfg.LLM.APIKey = key
		}
	}
}
