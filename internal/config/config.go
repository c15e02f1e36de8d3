package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"moderation/internal/engine"
	"moderation/internal/models"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Retrieval struct {
		URL      string  `yaml:"url"`
		TopK     int     `yaml:"top_k"`
		MinScore float64 `yaml:"min_score"`
	} `yaml:"retrieval"`
	Classifier struct {
		URL    string `yaml:"url"`
		APIKey string `yaml:"api_key"`
	} `yaml:"classifier"`
	// Safety holds fallback values used only when the safety_settings table
	// carries no row yet.
	Safety struct {
		Provider            string  `yaml:"provider"`
		ModelID             string  `yaml:"model_id"`
		TimeoutMs           int64   `yaml:"timeout_ms"`
		ConfidenceThreshold float64 `yaml:"confidence_threshold"`
		HeldMessage         string  `yaml:"held_message"`
		RejectedMessage     string  `yaml:"rejected_message"`
	} `yaml:"safety"`
	Audit struct {
		QueueSize int `yaml:"queue_size"`
	} `yaml:"audit"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if config.Retrieval.TopK <= 0 {
		config.Retrieval.TopK = 5
	}
	if config.Safety.TimeoutMs <= 0 {
		config.Safety.TimeoutMs = 10000
	}
	if config.Safety.ConfidenceThreshold <= 0 {
		config.Safety.ConfidenceThreshold = engine.DefaultConfidenceThreshold
	}

	return config, nil
}

// DefaultSettings builds a settings snapshot from config fallbacks, used
// when the operator has not created a safety_settings row yet. The blocklist
// is empty ("no rule matches"), so gating falls entirely to the classifier,
// which still fails closed.
func (c *Config) DefaultSettings() *models.SafetySettings {
	return &models.SafetySettings{
		Enabled:             true,
		Provider:            c.Safety.Provider,
		ModelID:             c.Safety.ModelID,
		TimeoutMs:           c.Safety.TimeoutMs,
		ConfidenceThreshold: c.Safety.ConfidenceThreshold,
		HeldMessage:         c.Safety.HeldMessage,
		RejectedMessage:     c.Safety.RejectedMessage,
	}
}
