package configs

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Index  IndexConfig  `yaml:"index"`
	LLM    LLMConfig    `yaml:"llm"`
	Run    RunConfig    `yaml:"run"`
	Data   DataConfig   `yaml:"data"`
	Notify NotifyConfig `yaml:"notify"`
}

type IndexConfig struct {
	Backend      string `yaml:"backend" validate:"required,oneof=opensearch qdrant"`
	URL          string `yaml:"url"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port" validate:"min=0,max=65535"`
	Name         string `yaml:"name" validate:"required"`
	Pipeline     string `yaml:"pipeline"`
	ModelName    string `yaml:"model_name"`
	ModelVersion string `yaml:"model_version"`
	Dimension    int    `yaml:"dimension" validate:"required,min=1"`
}

type LLMConfig struct {
	BaseURL         string `yaml:"base_url"`
	Model           string `yaml:"model" validate:"required"`
	EmbeddingsModel string `yaml:"embeddings_model"`
}

type RunConfig struct {
	NumQuestions int  `yaml:"num_questions" validate:"min=0"`
	TopK         int  `yaml:"top_k" validate:"min=0,max=100"`
	Workers      int  `yaml:"workers" validate:"min=0,max=64"`
	FailFast     bool `yaml:"fail_fast"`
}

type DataConfig struct {
	Corpus    string `yaml:"corpus" validate:"required"`
	Questions string `yaml:"questions" validate:"required"`
	DBPath    string `yaml:"db_path"`
	AuditLog  string `yaml:"audit_log"`
}

type NotifyConfig struct {
	DiscordToken     string `yaml:"discord_token"`
	DiscordChannelID string `yaml:"discord_channel_id"`
}

// LoadConfig reads a YAML config, expanding ${VAR} references from the
// environment before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configs file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Index.Backend == "" {
		c.Index.Backend = "opensearch"
	}
	if c.Index.URL == "" {
		c.Index.URL = "http://localhost:9200"
	}
	if c.Index.Name == "" {
		c.Index.Name = "wiki-passages"
	}
	if c.Index.Pipeline == "" {
		c.Index.Pipeline = "passage-embedding-pipeline"
	}
	if c.Index.ModelName == "" {
		c.Index.ModelName = "huggingface/sentence-transformers/all-MiniLM-L6-v2"
	}
	if c.Index.ModelVersion == "" {
		c.Index.ModelVersion = "1.0.1"
	}
	if c.Index.Dimension == 0 {
		c.Index.Dimension = 384
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "http://localhost:11434"
	}
	if c.Run.TopK == 0 {
		c.Run.TopK = 10
	}
	if c.Run.Workers == 0 {
		c.Run.Workers = 1
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configs: %w", err)
	}

	if c.Index.Backend == "qdrant" && c.LLM.EmbeddingsModel == "" {
		return fmt.Errorf("invalid configs: qdrant backend requires llm.embeddings_model")
	}
	if (c.Notify.DiscordToken == "") != (c.Notify.DiscordChannelID == "") {
		return fmt.Errorf("invalid configs: discord_token and discord_channel_id must be set together")
	}

	return nil
}
