// Package config loads all externally supplied options from the
// environment. Provider selection happens here, once, at process start;
// nothing downstream branches on the provider kind.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderMock = "mock"
	ProviderArk  = "ark"
)

// Config aggregates every recognized option.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Provider ProviderConfig
	Send     SendConfig
	Log      LogConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// StoreConfig locates the sqlite database.
type StoreConfig struct {
	Path string
}

// ProviderConfig selects and configures the active completion provider.
type ProviderConfig struct {
	Kind       string
	ArkAPIKey  string
	ArkModel   string
	ArkBaseURL string
	MockReply  string
	MockDelay  time.Duration
}

// SendConfig bounds one send's provider call.
type SendConfig struct {
	Timeout time.Duration
}

// LogConfig sets verbosity: debug, info, warn or error.
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	prov, err := loadProviderConfig()
	if err != nil {
		return nil, err
	}

	send, err := loadSendConfig()
	if err != nil {
		return nil, err
	}

	log, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Store:    StoreConfig{Path: getEnvOrDefault("DATABASE_PATH", "parley.db")},
		Provider: prov,
		Send:     send,
		Log:      log,
	}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func loadProviderConfig() (ProviderConfig, error) {
	kind := strings.ToLower(getEnvOrDefault("PROVIDER", ProviderMock))
	if kind != ProviderMock && kind != ProviderArk {
		return ProviderConfig{}, fmt.Errorf("PROVIDER must be %q or %q, got %q", ProviderMock, ProviderArk, kind)
	}

	delayMS, err := parseIntEnv("MOCK_REPLY_DELAY_MS", 0)
	if err != nil {
		return ProviderConfig{}, err
	}
	if delayMS < 0 {
		return ProviderConfig{}, fmt.Errorf("MOCK_REPLY_DELAY_MS must not be negative")
	}

	cfg := ProviderConfig{
		Kind:       kind,
		ArkAPIKey:  strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		ArkModel:   strings.TrimSpace(os.Getenv("ARK_MODEL")),
		ArkBaseURL: getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		MockReply:  os.Getenv("MOCK_REPLY"),
		MockDelay:  time.Duration(delayMS) * time.Millisecond,
	}

	if kind == ProviderArk && (cfg.ArkAPIKey == "" || cfg.ArkModel == "") {
		return ProviderConfig{}, fmt.Errorf("PROVIDER=ark requires ARK_API_KEY and ARK_MODEL")
	}
	return cfg, nil
}

func loadSendConfig() (SendConfig, error) {
	timeoutMS, err := parseIntEnv("SEND_TIMEOUT_MS", 12000)
	if err != nil {
		return SendConfig{}, err
	}
	if timeoutMS < 1 {
		return SendConfig{}, fmt.Errorf("SEND_TIMEOUT_MS must be positive")
	}
	return SendConfig{Timeout: time.Duration(timeoutMS) * time.Millisecond}, nil
}

func loadLogConfig() (LogConfig, error) {
	level := strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))
	switch level {
	case "debug", "info", "warn", "error":
		return LogConfig{Level: level}, nil
	default:
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value: %q", level)
	}
}

func getEnvOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return value, nil
}
