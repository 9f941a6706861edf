package provider

import "context"

// MockLLM returns canned responses. Default for keyless startup and tests.
type MockLLM struct {
	Response string
	Fail     error
}

func NewMockLLM() *MockLLM {
	return &MockLLM{Response: "Thank you for that input. How can I help you further?"}
}

func (p *MockLLM) Generate(_ context.Context, _ GenerateRequest) (GenerateResult, error) {
	if p.Fail != nil {
		return GenerateResult{}, p.Fail
	}
	return GenerateResult{Text: p.Response, Model: "mock", Provider: "mock"}, nil
}

func (p *MockLLM) HealthCheck(context.Context) bool { return true }

func (p *MockLLM) ModelInfo() ModelInfo { return ModelInfo{Provider: "mock", Model: "mock"} }

// MockSTT returns a fixed transcription, or an error tag when ErrTag is set.
type MockSTT struct {
	Text   string
	ErrTag string
}

func NewMockSTT() *MockSTT {
	return &MockSTT{Text: "hello"}
}

func (p *MockSTT) Transcribe(_ context.Context, _ []byte, language string) STTResult {
	if p.ErrTag != "" {
		return STTResult{Language: language, Provider: "mock", Err: p.ErrTag}
	}
	return STTResult{Text: p.Text, Confidence: 0.99, Language: language, Provider: "mock"}
}

func (p *MockSTT) HealthCheck(context.Context) bool { return true }

func (p *MockSTT) ModelInfo() ModelInfo { return ModelInfo{Provider: "mock", Model: "mock"} }

// MockTTS returns a tiny fixed audio payload.
type MockTTS struct {
	Fail error
}

func NewMockTTS() *MockTTS { return &MockTTS{} }

func (p *MockTTS) Synthesize(_ context.Context, _ SynthesizeRequest) (SynthesizeResult, error) {
	if p.Fail != nil {
		return SynthesizeResult{}, p.Fail
	}
	return SynthesizeResult{
		Audio:       []byte("mock-audio"),
		ContentType: "audio/mpeg",
		Provider:    "mock",
	}, nil
}

func (p *MockTTS) HealthCheck(context.Context) bool { return true }

func (p *MockTTS) Voices() map[string]string { return map[string]string{"mock": "mock"} }
