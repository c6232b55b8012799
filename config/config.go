package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"

	"chartchat/model"
)

// OpenAIConfig holds model-endpoint settings. The API key is normally
// supplied through the environment (OPENAI_API_KEY or a .env file), not the
// config file.
type OpenAIConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key,omitempty"`
	Model   string `toml:"model"`
}

// StudyConfig selects the session's chart, dataset, modality and the content
// shown by the companion viewer.
type StudyConfig struct {
	SessionID   string `toml:"session_id"`
	ChartType   string `toml:"chart_type"`
	Dataset     string `toml:"dataset"`
	Modality    string `toml:"modality"`
	ContentType string `toml:"content_type"`
}

// AssetsConfig locates the study asset server (CSV data, instruction
// markdown).
type AssetsConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ChatConfig tunes the turn orchestration.
type ChatConfig struct {
	// BackgroundStrategy is "tool-driven" (the model requests context via
	// tool calls) or "keyword-router" (a keyword/classifier gate attaches
	// context up front).
	BackgroundStrategy string `toml:"background_strategy"`
	Multimodal         bool   `toml:"multimodal"`
	// SystemPrompt, when set, replaces the built-in study prompt entirely.
	SystemPrompt      string  `toml:"system_prompt,omitempty"`
	DecisionMaxTokens int64   `toml:"decision_max_tokens"`
	MaxOutputTokens   int64   `toml:"max_output_tokens"`
	Temperature       float64 `toml:"temperature"`
}

// ProvenanceConfig controls snapshot storage. A non-empty passphrase turns on
// at-rest encryption of snapshot payloads.
type ProvenanceConfig struct {
	Passphrase string `toml:"passphrase,omitempty"`
}

type Config struct {
	DataDirectory string           `toml:"data_directory"`
	LogLevel      string           `toml:"log_level"`
	OpenAI        OpenAIConfig     `toml:"openai"`
	Study         StudyConfig      `toml:"study"`
	Assets        AssetsConfig     `toml:"assets"`
	Chat          ChatConfig       `toml:"chat"`
	Provenance    ProvenanceConfig `toml:"provenance"`
}

// envOverrides are applied on top of the config file. Processed with the
// CHARTCHAT prefix, e.g. CHARTCHAT_DATA_DIR, CHARTCHAT_OPENAI_API_KEY.
type envOverrides struct {
	DataDir              string `envconfig:"DATA_DIR"`
	LogLevel             string `envconfig:"LOG_LEVEL"`
	OpenAIAPIKey         string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL        string `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel          string `envconfig:"OPENAI_MODEL"`
	AssetsBaseURL        string `envconfig:"ASSETS_BASE_URL"`
	SessionID            string `envconfig:"SESSION_ID"`
	ProvenancePassphrase string `envconfig:"PROVENANCE_PASSPHRASE"`
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// StudyParams converts the study section into the typed session context.
func (c *Config) StudyParams() (model.StudyParams, error) {
	params := model.StudyParams{
		ChartType:   model.ChartType(c.Study.ChartType),
		Dataset:     model.Dataset(c.Study.Dataset),
		Modality:    model.Modality(c.Study.Modality),
		ContentType: model.ContentType(c.Study.ContentType),
	}
	if err := params.Validate(); err != nil {
		return model.StudyParams{}, fmt.Errorf("invalid study config: %w", err)
	}
	return params, nil
}

func (c *Config) applyEnvOverrides() error {
	var ov envOverrides
	if err := envconfig.Process("chartchat", &ov); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}

	if ov.DataDir != "" {
		c.DataDirectory = ov.DataDir
	}
	if ov.LogLevel != "" {
		c.LogLevel = ov.LogLevel
	}
	if ov.OpenAIAPIKey != "" {
		c.OpenAI.APIKey = ov.OpenAIAPIKey
	}
	if ov.OpenAIBaseURL != "" {
		c.OpenAI.BaseURL = ov.OpenAIBaseURL
	}
	if ov.OpenAIModel != "" {
		c.OpenAI.Model = ov.OpenAIModel
	}
	if ov.AssetsBaseURL != "" {
		c.Assets.BaseURL = ov.AssetsBaseURL
	}
	if ov.SessionID != "" {
		c.Study.SessionID = ov.SessionID
	}
	if ov.ProvenancePassphrase != "" {
		c.Provenance.Passphrase = ov.ProvenancePassphrase
	}

	// The plain OPENAI_API_KEY variable wins last so a .env file with just
	// the key works without any CHARTCHAT_ prefixing.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = key
	}
	return nil
}

// validate rejects settings values no code path would act on. Study params
// are validated separately when converted via StudyParams.
func (c *Config) validate() error {
	switch c.Chat.BackgroundStrategy {
	case "tool-driven", "keyword-router":
	default:
		return fmt.Errorf("invalid chat config: unknown background strategy: %q", c.Chat.BackgroundStrategy)
	}
	return nil
}

// Load reads the config file (creating a default one on first run), applies
// environment overrides, validates the result, and makes sure the data
// directory exists. CHARTCHAT_CONFIG selects an alternate settings file,
// for running several study configurations side by side; a missing file at
// that path is created with the defaults.
func Load() (*Config, error) {
	var cfg *Config
	var err error

	if path := os.Getenv("CHARTCHAT_CONFIG"); path != "" {
		path = ExpandPath(path)
		cfg, err = LoadSettingsFromPath(path)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			cfg = DefaultConfig()
			if err := SaveSettings(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to create settings file: %w", err)
			}
		}
	} else {
		cfg, err = LoadSettings()
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}
