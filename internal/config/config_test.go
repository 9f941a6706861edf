package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.SessionTTL != 4*time.Hour {
		t.Fatalf("SessionTTL = %v, want 4h", cfg.SessionTTL)
	}
	if !cfg.EnforceSignatures {
		t.Fatalf("EnforceSignatures should default to true")
	}
	if cfg.LLMProvider != "mock" || cfg.STTProvider != "mock" || cfg.TTSProvider != "mock" {
		t.Fatalf("provider defaults should be mock, got %q/%q/%q", cfg.LLMProvider, cfg.STTProvider, cfg.TTSProvider)
	}
}

func TestLoadTrimsBaseURLTrailingSlash(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VOICE_OS_BASE_URL", "https://voice.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PublicBaseURL != "https://voice.example.com" {
		t.Fatalf("PublicBaseURL = %q, want trailing slash removed", cfg.PublicBaseURL)
	}
}

func TestLoadRejectsTinySessionTTL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("CALL_SESSION_TTL", "10s")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject CALL_SESSION_TTL below 1m")
	}
}

func TestLoadParsesSignatureToggle(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("WEBHOOK_ENFORCE_SIGNATURES", "off")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EnforceSignatures {
		t.Fatalf("EnforceSignatures = true, want false")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"VOICE_OS_BASE_URL",
		"REDIS_URL",
		"CALL_SESSION_TTL",
		"DATABASE_URL",
		"TENANT_DIR",
		"WEBHOOK_ENFORCE_SIGNATURES",
		"TELNYX_API_KEY",
		"TELNYX_CONNECTION_ID",
		"TWILIO_ACCOUNT_SID",
		"TWILIO_AUTH_TOKEN",
		"LLM_PROVIDER",
		"OPENAI_API_KEY",
		"OPENAI_MODEL",
		"LOCAL_LLM_URL",
		"STT_PROVIDER",
		"STT_FALLBACK_PROVIDER",
		"DEEPGRAM_API_KEY",
		"WHISPER_URL",
		"TTS_PROVIDER",
		"ELEVENLABS_API_KEY",
		"CARRIER_TIMEOUT",
		"LLM_TIMEOUT",
		"STT_TIMEOUT",
		"TTS_TIMEOUT",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
