// Package gateway wires channel adapters together behind one configuration
// and one host-facing handler set.
//
// Configuration is loaded from a YAML file with the following main sections:
//
//   - channels: one block per platform (telegram, discord, feishu, dingtalk)
//     with credentials and an optional allowed_users list
//   - logging: log configuration
//
// # Example Configuration
//
//	channels:
//	  telegram:
//	    enabled: true
//	    token: "${TELEGRAM_BOT_TOKEN}"
//	    allowed_users:
//	      - "123456789"
//	  feishu:
//	    enabled: true
//	    app_id: "${FEISHU_APP_ID}"
//	    app_secret: "${FEISHU_APP_SECRET}"
//	logging:
//	  level: info
//	  file: /var/log/chanbridge/chanbridge.log
package gateway

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultLogLevel        = "info"
	DefaultLogMaxSize      = 100 // MB
	DefaultLogMaxBackups   = 5
	DefaultLogMaxAge       = 30 // days
	DefaultLogCompress     = true
	DefaultLogEnableStdout = true
)

// ChannelKeyTelegram and friends are the channel keys accepted under the
// channels: config section.
const (
	ChannelKeyTelegram = "telegram"
	ChannelKeyDiscord  = "discord"
	ChannelKeyFeishu   = "feishu"
	ChannelKeyDingTalk = "dingtalk"
)

// Config represents the complete chanbridge configuration structure
type Config struct {
	Channels map[string]ChannelConfig `yaml:"channels"`
	Logging  LoggingConfig            `yaml:"logging"`
}

// ChannelConfig represents one channel's configuration. Credential fields
// are platform-specific; only the ones the named platform needs are read.
type ChannelConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Token             string   `yaml:"token"`              // Telegram, Discord
	ChannelID         string   `yaml:"channel_id"`         // Discord: default channel for sends
	AppID             string   `yaml:"app_id"`             // Feishu
	AppSecret         string   `yaml:"app_secret"`         // Feishu
	EncryptKey        string   `yaml:"encrypt_key"`        // Feishu: event encryption key (optional)
	VerificationToken string   `yaml:"verification_token"` // Feishu: verification token (optional)
	ClientID          string   `yaml:"client_id"`          // DingTalk
	ClientSecret      string   `yaml:"client_secret"`      // DingTalk
	AllowedUsers      []string `yaml:"allowed_users"`      // empty list allows everyone
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	File         string `yaml:"file"`          // Log file path
	MaxSize      int    `yaml:"max_size"`      // Single file max size in MB (default: 100)
	MaxBackups   int    `yaml:"max_backups"`   // Number of backups to keep (default: 5)
	MaxAge       int    `yaml:"max_age"`       // Maximum days to retain (default: 30)
	Compress     bool   `yaml:"compress"`      // Whether to compress old logs (default: true)
	EnableStdout bool   `yaml:"enable_stdout"` // Also output to stdout (default: true)
}

// LoadConfig loads configuration from file and expands environment variables
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData, err := expandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// expandEnv replaces ${VAR_NAME} patterns with environment variable values
func expandEnv(input string) (string, error) {
	var missingVars []string

	result := os.Expand(input, func(key string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		missingVars = append(missingVars, key)
		return ""
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missingVars, ", "))
	}

	return result, nil
}

// validateConfig performs basic validation on the configuration
func validateConfig(config *Config) error {
	// Set default logging configuration
	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	if config.Logging.MaxSize == 0 {
		config.Logging.MaxSize = DefaultLogMaxSize
	}
	if config.Logging.MaxBackups == 0 {
		config.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if config.Logging.MaxAge == 0 {
		config.Logging.MaxAge = DefaultLogMaxAge
	}
	if !config.Logging.Compress {
		config.Logging.Compress = DefaultLogCompress
	}
	if !config.Logging.EnableStdout {
		config.Logging.EnableStdout = DefaultLogEnableStdout
	}

	if len(config.Channels) == 0 {
		return fmt.Errorf("at least one channel must be configured")
	}

	enabled := 0
	for name, ch := range config.Channels {
		switch name {
		case ChannelKeyTelegram, ChannelKeyDiscord:
			if ch.Enabled && ch.Token == "" {
				return fmt.Errorf("channel %s requires a token", name)
			}
		case ChannelKeyFeishu:
			if ch.Enabled && (ch.AppID == "" || ch.AppSecret == "") {
				return fmt.Errorf("channel %s requires app_id and app_secret", name)
			}
		case ChannelKeyDingTalk:
			if ch.Enabled && (ch.ClientID == "" || ch.ClientSecret == "") {
				return fmt.Errorf("channel %s requires client_id and client_secret", name)
			}
		default:
			return fmt.Errorf("unknown channel type %q in configuration", name)
		}
		if ch.Enabled {
			enabled++
		}
	}

	if enabled == 0 {
		return fmt.Errorf("at least one channel must be enabled")
	}

	return nil
}

// GetChannelConfig retrieves configuration for a specific channel
func (c *Config) GetChannelConfig(name string) (ChannelConfig, error) {
	ch, exists := c.Channels[name]
	if !exists {
		return ChannelConfig{}, fmt.Errorf("channel type %s not found in configuration", name)
	}

	if !ch.Enabled {
		return ChannelConfig{}, fmt.Errorf("channel type %s is disabled", name)
	}

	return ch, nil
}
