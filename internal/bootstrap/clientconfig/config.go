// Package clientconfig resolves the client's runtime configuration from
// defaults, an optional yaml file and environment overrides, in that order.
package clientconfig

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved configuration.
type Config struct {
	Server ServerConfig
	Push   PushConfig
	Send   SendConfig
	Cache  CacheConfig
}

type ServerConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type PushConfig struct {
	URL                  string
	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	HeartbeatInterval    time.Duration
}

type SendConfig struct {
	RatePerSecond float64
	Burst         int
}

type CacheConfig struct {
	Path       string
	Passphrase string
}

// FileConfig mirrors the yaml layout. Pointer and zero-value fields
// distinguish "absent" from "explicitly set" during the merge.
type FileConfig struct {
	Server FileServerConfig `yaml:"server"`
	Push   FilePushConfig   `yaml:"push"`
	Send   FileSendConfig   `yaml:"send"`
	Cache  FileCacheConfig  `yaml:"cache"`
}

type FileServerConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type FilePushConfig struct {
	URL                  string        `yaml:"url"`
	AutoReconnect        *bool         `yaml:"autoReconnect"`
	MaxReconnectAttempts int           `yaml:"maxReconnectAttempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnectBaseDelay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnectMaxDelay"`
	HeartbeatInterval    time.Duration `yaml:"heartbeatInterval"`
}

type FileSendConfig struct {
	RatePerSecond float64 `yaml:"ratePerSecond"`
	Burst         int     `yaml:"burst"`
}

type FileCacheConfig struct {
	Path       string `yaml:"path"`
	Passphrase string `yaml:"passphrase"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 30 * time.Second,
		},
		Push: PushConfig{
			URL:                  "ws://localhost:5000/push",
			AutoReconnect:        true,
			MaxReconnectAttempts: 10,
			ReconnectBaseDelay:   time.Second,
			ReconnectMaxDelay:    30 * time.Second,
			HeartbeatInterval:    25 * time.Second,
		},
		Send: SendConfig{
			RatePerSecond: 2,
			Burst:         5,
		},
	}
}

// LoadFromPath resolves the configuration. A missing or unreadable file is
// not an error; defaults plus environment overrides stand.
func LoadFromPath(configPath string) Config {
	cfg := DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/client.yaml",
			"client.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}

		merged := cfg
		Merge(&merged, parsed)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src FileConfig) {
	if src.Server.BaseURL != "" {
		dst.Server.BaseURL = src.Server.BaseURL
	}
	if src.Server.Token != "" {
		dst.Server.Token = src.Server.Token
	}
	if src.Server.Timeout != 0 {
		dst.Server.Timeout = src.Server.Timeout
	}
	if src.Push.URL != "" {
		dst.Push.URL = src.Push.URL
	}
	if src.Push.AutoReconnect != nil {
		dst.Push.AutoReconnect = *src.Push.AutoReconnect
	}
	if src.Push.MaxReconnectAttempts != 0 {
		dst.Push.MaxReconnectAttempts = src.Push.MaxReconnectAttempts
	}
	if src.Push.ReconnectBaseDelay != 0 {
		dst.Push.ReconnectBaseDelay = src.Push.ReconnectBaseDelay
	}
	if src.Push.ReconnectMaxDelay != 0 {
		dst.Push.ReconnectMaxDelay = src.Push.ReconnectMaxDelay
	}
	if src.Push.HeartbeatInterval != 0 {
		dst.Push.HeartbeatInterval = src.Push.HeartbeatInterval
	}
	if src.Send.RatePerSecond != 0 {
		dst.Send.RatePerSecond = src.Send.RatePerSecond
	}
	if src.Send.Burst != 0 {
		dst.Send.Burst = src.Send.Burst
	}
	if src.Cache.Path != "" {
		dst.Cache.Path = src.Cache.Path
	}
	if src.Cache.Passphrase != "" {
		dst.Cache.Passphrase = src.Cache.Passphrase
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PULSE_SERVER_URL")); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PULSE_SERVER_TOKEN")); v != "" {
		cfg.Server.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("PULSE_PUSH_URL")); v != "" {
		cfg.Push.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("PULSE_CACHE_PATH")); v != "" {
		cfg.Cache.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("PULSE_CACHE_PASSPHRASE")); v != "" {
		cfg.Cache.Passphrase = v
	}
	if raw := strings.TrimSpace(os.Getenv("PULSE_PUSH_AUTORECONNECT")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Push.AutoReconnect = v
		}
	}
}
