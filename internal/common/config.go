package common

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	DocIntel DocIntelConfig `yaml:"docintel"`
	LLM      LLMConfig      `yaml:"llm"`
	Session  SessionConfig  `yaml:"session"`
}

// DocIntelConfig holds Azure Document Intelligence configuration.
type DocIntelConfig struct {
	Endpoint string `yaml:"endpoint"`
	Key      string `yaml:"key"`
	ModelID  string `yaml:"model_id"`
}

// LLMConfig holds template-generation provider configuration. Provider
// selects which block is consumed; the other may stay empty.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "azure" or "ollama"

	AzureEndpoint   string `yaml:"azure_endpoint"`
	AzureKey        string `yaml:"azure_key"`
	AzureDeployment string `yaml:"azure_deployment"`

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
}

// SessionConfig holds local session storage configuration.
type SessionConfig struct {
	DBPath   string `yaml:"db_path"`
	InboxDir string `yaml:"inbox_dir"`
	LogPath  string `yaml:"log_path"`
}

// Providers accepted in LLMConfig.Provider.
const (
	ProviderAzure  = "azure"
	ProviderOllama = "ollama"
)

// LoadConfig loads configuration from environment variables. If QSCAN_CONFIG
// points at a YAML file, the file is loaded first and env values override it.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		LLM: LLMConfig{
			Provider:        ProviderAzure,
			AzureDeployment: "gpt-4o",
			OllamaEndpoint:  "http://localhost:11434",
			OllamaModel:     "llama3-jp",
		},
		Session: SessionConfig{
			DBPath:  "./qscan.db",
			LogPath: "./qscan-debug.json",
		},
	}

	if path := os.Getenv("QSCAN_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	overlay(&cfg.DocIntel.Endpoint, "AZURE_DI_ENDPOINT")
	overlay(&cfg.DocIntel.Key, "AZURE_DI_KEY")
	overlay(&cfg.DocIntel.ModelID, "AZURE_DI_MODEL_ID")
	overlay(&cfg.LLM.Provider, "LLM_PROVIDER")
	overlay(&cfg.LLM.AzureEndpoint, "AZURE_OPENAI_ENDPOINT")
	overlay(&cfg.LLM.AzureKey, "AZURE_OPENAI_KEY")
	overlay(&cfg.LLM.AzureDeployment, "AZURE_OPENAI_DEPLOYMENT")
	overlay(&cfg.LLM.OllamaEndpoint, "OLLAMA_ENDPOINT")
	overlay(&cfg.LLM.OllamaModel, "OLLAMA_MODEL")
	overlay(&cfg.Session.DBPath, "QSCAN_DB_PATH")
	overlay(&cfg.Session.InboxDir, "QSCAN_INBOX_DIR")
	overlay(&cfg.Session.LogPath, "QSCAN_LOG_PATH")

	return cfg, nil
}

func overlay(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

// Validate checks fields the pipeline cannot run without. Provider-specific
// credential checks happen at call time in the component that needs them, so
// an offline masking run does not demand remote credentials.
func (c *Config) Validate() error {
	if c.LLM.Provider != ProviderAzure && c.LLM.Provider != ProviderOllama {
		return NewAppError("CONFIG_ERROR", "LLM_PROVIDER must be azure or ollama", ErrConfiguration)
	}
	if c.Session.DBPath == "" {
		return NewAppError("CONFIG_ERROR", "QSCAN_DB_PATH is required", ErrConfiguration)
	}
	return nil
}
