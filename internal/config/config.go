package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice call service.
type Config struct {
	BindAddr         string
	PublicBaseURL    string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	RedisURL    string
	SessionTTL  time.Duration
	DatabaseURL string
	TenantDir   string

	EnforceSignatures bool

	TelnyxAPIKey        string
	TwilioAccountSID    string
	TwilioAuthToken     string
	DefaultConnectionID string

	LLMProvider    string
	OpenAIAPIKey   string
	OpenAIModel    string
	LocalLLMURL    string
	STTProvider    string
	STTFallback    string
	DeepgramAPIKey string
	WhisperURL     string
	TTSProvider    string
	ElevenLabsKey  string

	CarrierTimeout time.Duration
	LLMTimeout     time.Duration
	STTTimeout     time.Duration
	TTSTimeout     time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		PublicBaseURL:    envOrDefault("VOICE_OS_BASE_URL", "http://localhost:8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "voiceos"),
		RedisURL:         stringsTrimSpace("REDIS_URL"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		TenantDir:        envOrDefault("TENANT_DIR", "tenants"),
		// Matches the retention window of a call: sessions outlive the
		// longest plausible call, then expire on their own.
		SessionTTL:          4 * time.Hour,
		EnforceSignatures:   true,
		TelnyxAPIKey:        stringsTrimSpace("TELNYX_API_KEY"),
		TwilioAccountSID:    stringsTrimSpace("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:     stringsTrimSpace("TWILIO_AUTH_TOKEN"),
		DefaultConnectionID: stringsTrimSpace("TELNYX_CONNECTION_ID"),
		LLMProvider:         envOrDefault("LLM_PROVIDER", "mock"),
		OpenAIAPIKey:        stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIModel:         envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		LocalLLMURL:         stringsTrimSpace("LOCAL_LLM_URL"),
		STTProvider:         envOrDefault("STT_PROVIDER", "mock"),
		STTFallback:         stringsTrimSpace("STT_FALLBACK_PROVIDER"),
		DeepgramAPIKey:      stringsTrimSpace("DEEPGRAM_API_KEY"),
		WhisperURL:          envOrDefault("WHISPER_URL", "http://localhost:9000"),
		TTSProvider:         envOrDefault("TTS_PROVIDER", "mock"),
		ElevenLabsKey:       stringsTrimSpace("ELEVENLABS_API_KEY"),
		ShutdownTimeout:     15 * time.Second,
		CarrierTimeout:      10 * time.Second,
		LLMTimeout:          30 * time.Second,
		STTTimeout:          30 * time.Second,
		TTSTimeout:          15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL, err = durationFromEnv("CALL_SESSION_TTL", cfg.SessionTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.EnforceSignatures, err = boolFromEnv("WEBHOOK_ENFORCE_SIGNATURES", cfg.EnforceSignatures)
	if err != nil {
		return Config{}, err
	}
	cfg.CarrierTimeout, err = durationFromEnv("CARRIER_TIMEOUT", cfg.CarrierTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTimeout, err = durationFromEnv("LLM_TIMEOUT", cfg.LLMTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.STTTimeout, err = durationFromEnv("STT_TIMEOUT", cfg.STTTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSTimeout, err = durationFromEnv("TTS_TIMEOUT", cfg.TTSTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionTTL < time.Minute {
		return Config{}, fmt.Errorf("CALL_SESSION_TTL must be at least 1m")
	}
	if cfg.CarrierTimeout <= 0 || cfg.LLMTimeout <= 0 || cfg.STTTimeout <= 0 || cfg.TTSTimeout <= 0 {
		return Config{}, fmt.Errorf("provider timeouts must be positive")
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
