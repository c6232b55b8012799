package config

func DefaultConfig() *Config {
	return &Config{
		DataDirectory: "~/.local/share/chartchat",
		LogLevel:      "info",
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o",
		},
		Study: StudyConfig{
			SessionID:   "default",
			ChartType:   "violin-plot",
			Dataset:     "simple",
			Modality:    "tactile",
			ContentType: "instructions",
		},
		Assets: AssetsConfig{
			BaseURL:        "http://localhost:8080/assets",
			TimeoutSeconds: 30,
		},
		Chat: ChatConfig{
			BackgroundStrategy: "tool-driven",
			Multimodal:         true,
			DecisionMaxTokens:  64,
			MaxOutputTokens:    1000,
			Temperature:        0.7,
		},
	}
}

func GenerateSettingsTemplate() string {
	return `# chartchat configuration
# Location: ~/.config/chartchat/settings.toml (CHARTCHAT_CONFIG selects another file)
# This file uses TOML format: https://toml.io

# Directory where provenance snapshots and logs are stored
data_directory = "~/.local/share/chartchat"

# Log level: debug, info, warn, error
log_level = "info"

[openai]
# Model API base URL
base_url = "https://api.openai.com/v1"

# Model used for both the tool-decision call and the streamed answer
model = "gpt-4o"

# Prefer setting the key via OPENAI_API_KEY (or a .env file) rather than here
# api_key = ""

[study]
# Session identifier used to key provenance snapshots
session_id = "default"

# Chart under study: "violin-plot" or "clustered-heatmap"
chart_type = "violin-plot"

# Dataset variant: "simple" or "complex"
dataset = "simple"

# Session modality: "tactile" or "text"
modality = "tactile"

# Companion viewer content: "instructions" or "alt-text"
content_type = "instructions"

[assets]
# Base URL of the study asset server
base_url = "http://localhost:8080/assets"

# Per-request timeout for asset fetches
timeout_seconds = 30

[chat]
# "tool-driven": the model requests background via tool calls
# "keyword-router": a keyword/classifier gate attaches background up front
background_strategy = "tool-driven"

# Attach the chart image reference to follow-up calls
multimodal = true

# Replaces the built-in study prompt when set
# system_prompt = ""

# Output cap for the cheap tool-decision probe
decision_max_tokens = 64

# Output cap and temperature for the streamed answer
max_output_tokens = 1000
temperature = 0.7

[provenance]
# Setting a passphrase encrypts snapshot payloads at rest
# passphrase = ""
`
}
