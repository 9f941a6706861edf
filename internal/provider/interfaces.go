// Package provider defines the pluggable LLM, STT and TTS capability
// contracts and their backend implementations.
package provider

import "context"

// ModelInfo describes a provider's active backend model.
type ModelInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Message is one turn of LLM conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest carries the prompt material for one LLM call.
type GenerateRequest struct {
	SystemPrompt string
	UserMessage  string
	History      []Message
	TenantID     string
}

// GenerateResult is a successful LLM completion.
type GenerateResult struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model"`
	Provider   string `json:"provider"`
}

// LLMProvider generates conversational responses.
type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
	HealthCheck(ctx context.Context) bool
	ModelInfo() ModelInfo
}

// STTResult is always returned, never an error: failures are tagged in Err
// so call handling can degrade instead of aborting the webhook.
type STTResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
	Provider   string  `json:"provider"`
	Err        string  `json:"error,omitempty"`
}

// OK reports whether the transcription succeeded.
func (r STTResult) OK() bool {
	return r.Err == ""
}

// STTProvider transcribes caller audio.
type STTProvider interface {
	Transcribe(ctx context.Context, audio []byte, language string) STTResult
	HealthCheck(ctx context.Context) bool
	ModelInfo() ModelInfo
}

// SynthesizeRequest carries one TTS call, scoped by tenant and voice config.
type SynthesizeRequest struct {
	Text      string
	VoiceID   string
	VoiceType string
	Language  string
	TenantID  string
}

// SynthesizeResult holds the synthesized audio and its content type.
type SynthesizeResult struct {
	Audio       []byte
	ContentType string
	Provider    string
}

// TTSProvider synthesizes speech.
type TTSProvider interface {
	Synthesize(ctx context.Context, req SynthesizeRequest) (SynthesizeResult, error)
	HealthCheck(ctx context.Context) bool
	Voices() map[string]string
}
