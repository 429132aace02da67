package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:               8080,
			Address:            "0.0.0.0",
			MaxConcurrentCalls: 100,
			SessionTimeout:     120,
		},
		Audio: AudioConfig{
			TelephonyRate:    8000,
			ConversationRate: 24000,
			FrameDurationMs:  20,
			MaxBufferBytes:   1 << 20,
			FlushIntervalMs:  100,
		},
		VAD: VADConfig{
			Enabled:   true,
			Threshold: 500,
		},
		Conversation: ConversationConfig{
			URL:          "wss://api.example.com/v1/realtime",
			APIKeyEnv:    "CONVERSATION_API_KEY",
			Model:        "realtime-voice-1",
			Voice:        "alloy",
			Instructions: "You are a hotel concierge.",
			BargeIn:      true,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    "./calls.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{
			name:   "valid configuration",
			mutate: func(*Config) {},
		},
		{
			name:     "invalid server port",
			mutate:   func(c *Config) { c.Server.Port = 70000 },
			errorMsg: "port must be between 1 and 65535",
		},
		{
			name:     "empty server address",
			mutate:   func(c *Config) { c.Server.Address = "" },
			errorMsg: "address cannot be empty",
		},
		{
			name:     "invalid telephony rate",
			mutate:   func(c *Config) { c.Audio.TelephonyRate = 16000 },
			errorMsg: "telephony_rate must be 8000 Hz",
		},
		{
			name:     "frame duration out of range",
			mutate:   func(c *Config) { c.Audio.FrameDurationMs = 5 },
			errorMsg: "frame_duration_ms must be between 10 and 60",
		},
		{
			name:     "negative VAD threshold",
			mutate:   func(c *Config) { c.VAD.Threshold = -1 },
			errorMsg: "threshold cannot be negative",
		},
		{
			name:     "missing conversation URL",
			mutate:   func(c *Config) { c.Conversation.URL = "" },
			errorMsg: "url cannot be empty",
		},
		{
			name:     "missing api key env",
			mutate:   func(c *Config) { c.Conversation.APIKeyEnv = "" },
			errorMsg: "api_key_env cannot be empty",
		},
		{
			name:     "missing model",
			mutate:   func(c *Config) { c.Conversation.Model = "" },
			errorMsg: "model cannot be empty",
		},
		{
			name:     "store enabled without path",
			mutate:   func(c *Config) { c.Store.Path = "" },
			errorMsg: "path cannot be empty",
		},
		{
			name:     "invalid log level",
			mutate:   func(c *Config) { c.Logging.Level = "trace" },
			errorMsg: "level must be one of",
		},
		{
			name:     "invalid log format",
			mutate:   func(c *Config) { c.Logging.Format = "xml" },
			errorMsg: "format must be 'json' or 'text'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Expected error but got none")
			} else if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config file",
			configYAML: `
server:
  port: 8080
  address: "0.0.0.0"
  max_concurrent_calls: 100
  session_timeout: 120
audio:
  telephony_rate: 8000
  conversation_rate: 24000
  frame_duration_ms: 20
  max_buffer_bytes: 1048576
  flush_interval_ms: 100
vad:
  enabled: true
  threshold: 500
conversation:
  url: "wss://api.example.com/v1/realtime"
  api_key_env: "CONVERSATION_API_KEY"
  model: "realtime-voice-1"
  voice: "alloy"
  barge_in: true
store:
  enabled: false
logging:
  level: "info"
  format: "json"
  output: "stdout"
`,
			expectError: false,
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
server:
  port: 8080
  max_concurrent_calls: not_a_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "missing required fields",
			configYAML: `
server:
  port: 8080
`,
			expectError: true,
			errorMsg:    "address cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				} else if config == nil {
					t.Errorf("Expected config to be loaded but got nil")
				}
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Errorf("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	server := ServerConfig{SessionTimeout: 120}
	if server.GetSessionTimeout() != 2*time.Minute {
		t.Errorf("Expected 2 minutes, got %v", server.GetSessionTimeout())
	}

	audio := AudioConfig{FlushIntervalMs: 100}
	if audio.GetFlushInterval() != 100*time.Millisecond {
		t.Errorf("Expected 100ms, got %v", audio.GetFlushInterval())
	}
}

func TestAPIKeyFromEnvironment(t *testing.T) {
	conv := ConversationConfig{APIKeyEnv: "TEST_CONCIERGE_KEY"}

	t.Setenv("TEST_CONCIERGE_KEY", "sk-secret")
	if got := conv.APIKey(); got != "sk-secret" {
		t.Errorf("Expected key from environment, got %q", got)
	}
}
