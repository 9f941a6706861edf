package provider

import (
	"context"
	"log"
)

// FallbackSTT retries a failed primary transcription against a secondary
// provider within the same request. When the secondary is absent or
// fallback is disabled, the primary's error-tagged result passes through;
// callers never see an error escape.
type FallbackSTT struct {
	primary   STTProvider
	secondary STTProvider
	enabled   bool
}

func NewFallbackSTT(primary, secondary STTProvider, enabled bool) *FallbackSTT {
	return &FallbackSTT{primary: primary, secondary: secondary, enabled: enabled}
}

func (p *FallbackSTT) Transcribe(ctx context.Context, audio []byte, language string) STTResult {
	result := p.primary.Transcribe(ctx, audio, language)
	if result.OK() {
		return result
	}
	if !p.enabled || p.secondary == nil {
		return result
	}

	log.Printf("[STT] %s failed (%s), falling back to %s",
		p.primary.ModelInfo().Provider, result.Err, p.secondary.ModelInfo().Provider)
	fallback := p.secondary.Transcribe(ctx, audio, language)
	if fallback.OK() {
		fallback.Provider = fallback.Provider + "_fallback"
		return fallback
	}
	// Both failed; surface the primary's tag, it is the configured path.
	return result
}

func (p *FallbackSTT) HealthCheck(ctx context.Context) bool {
	if p.primary.HealthCheck(ctx) {
		return true
	}
	return p.enabled && p.secondary != nil && p.secondary.HealthCheck(ctx)
}

func (p *FallbackSTT) ModelInfo() ModelInfo {
	return p.primary.ModelInfo()
}
