// Package config provides the configuration structure for the mimic3-tts service.
package config

import (
	"fmt"
	"maps"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                      string `toml:"url"`
	TextProcessedSubject     string `toml:"text_processed_subject"`
	AudioChunkCreatedSubject string `toml:"audio_chunk_created_subject"`
	TextObjectStoreBucket    string `toml:"text_object_store_bucket"`
	AudioObjectStoreBucket   string `toml:"audio_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS  NATSConfig  `toml:"nats"`
	Paths PathsConfig `toml:"paths"`
	// Plugin is the flat option map handed to the Mimic3 adapter as is.
	Plugin map[string]any `toml:"tts_plugin"`
}

// PluginOptions returns a copy of the plugin option map, with per-host
// overrides applied on top.
func (c *Config) PluginOptions(overrides map[string]any) map[string]any {
	options := make(map[string]any, len(c.Plugin)+len(overrides))
	maps.Copy(options, c.Plugin)
	maps.Copy(options, overrides)

	return options
}

// Load loads the configuration for the mimic3-tts service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}
