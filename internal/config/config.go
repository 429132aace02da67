package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Audio        AudioConfig        `yaml:"audio"`
	VAD          VADConfig          `yaml:"vad"`
	Conversation ConversationConfig `yaml:"conversation"`
	Store        StoreConfig        `yaml:"store"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig contains HTTP/WebSocket server configuration
type ServerConfig struct {
	Port               int    `yaml:"port"`
	Address            string `yaml:"address"`
	MaxConcurrentCalls int    `yaml:"max_concurrent_calls"`
	SessionTimeout     int    `yaml:"session_timeout"` // seconds
}

// AudioConfig contains the media parameters of the relay
type AudioConfig struct {
	TelephonyRate    int `yaml:"telephony_rate"`
	ConversationRate int `yaml:"conversation_rate"`
	FrameDurationMs  int `yaml:"frame_duration_ms"`
	MaxBufferBytes   int `yaml:"max_buffer_bytes"`
	FlushIntervalMs  int `yaml:"flush_interval_ms"`
}

// VADConfig contains local voice activity detection configuration
type VADConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"` // RMS energy
}

// ConversationConfig contains the speech-to-speech API configuration.
// The API key is read from the environment, never from the file.
type ConversationConfig struct {
	URL          string `yaml:"url"`
	APIKeyEnv    string `yaml:"api_key_env"`
	Model        string `yaml:"model"`
	Voice        string `yaml:"voice"`
	Instructions string `yaml:"instructions"`
	BargeIn      bool   `yaml:"barge_in"`
}

// StoreConfig contains call history configuration
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Conversation.Validate(); err != nil {
		return fmt.Errorf("conversation config: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if s.MaxConcurrentCalls < 1 {
		return fmt.Errorf("max_concurrent_calls must be at least 1, got %d", s.MaxConcurrentCalls)
	}

	if s.SessionTimeout < 1 {
		return fmt.Errorf("session_timeout must be at least 1 second, got %d", s.SessionTimeout)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.TelephonyRate != 8000 {
		return fmt.Errorf("telephony_rate must be 8000 Hz for μ-law media streams, got %d", a.TelephonyRate)
	}

	if a.ConversationRate < 8000 {
		return fmt.Errorf("conversation_rate must be at least 8000 Hz, got %d", a.ConversationRate)
	}

	if a.FrameDurationMs < 10 || a.FrameDurationMs > 60 {
		return fmt.Errorf("frame_duration_ms must be between 10 and 60, got %d", a.FrameDurationMs)
	}

	if a.MaxBufferBytes < 1024 {
		return fmt.Errorf("max_buffer_bytes must be at least 1024, got %d", a.MaxBufferBytes)
	}

	if a.FlushIntervalMs < 1 {
		return fmt.Errorf("flush_interval_ms must be at least 1, got %d", a.FlushIntervalMs)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.Enabled && v.Threshold < 0 {
		return fmt.Errorf("threshold cannot be negative, got %f", v.Threshold)
	}

	return nil
}

// Validate validates conversation configuration
func (c *ConversationConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}

	if c.APIKeyEnv == "" {
		return fmt.Errorf("api_key_env cannot be empty")
	}

	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	return nil
}

// Validate validates store configuration
func (s *StoreConfig) Validate() error {
	if s.Enabled && s.Path == "" {
		return fmt.Errorf("path cannot be empty when the store is enabled")
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetSessionTimeout returns the session timeout as a time.Duration
func (s *ServerConfig) GetSessionTimeout() time.Duration {
	return time.Duration(s.SessionTimeout) * time.Second
}

// GetFlushInterval returns the outbound flush interval as a time.Duration
func (a *AudioConfig) GetFlushInterval() time.Duration {
	return time.Duration(a.FlushIntervalMs) * time.Millisecond
}

// APIKey resolves the conversation API key from the environment
func (c *ConversationConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}
