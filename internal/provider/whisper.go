package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// WhisperSTT transcribes audio through a local whisper server. It is the
// on-box fallback when the cloud recognizer is down or rejected the audio.
type WhisperSTT struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewWhisperSTT(baseURL string, timeout time.Duration) *WhisperSTT {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WhisperSTT{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   "base",
		client:  &http.Client{Timeout: timeout},
	}
}

type whisperResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func (p *WhisperSTT) Transcribe(ctx context.Context, audio []byte, language string) STTResult {
	result := STTResult{Language: language, Provider: "whisper"}
	if p.baseURL == "" {
		result.Err = "whisper url not configured"
		return result
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "audio.wav")
	if err != nil {
		result.Err = err.Error()
		return result
	}
	if _, err := part.Write(audio); err != nil {
		result.Err = err.Error()
		return result
	}
	_ = mw.WriteField("language", language)
	if err := mw.Close(); err != nil {
		result.Err = err.Error()
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/transcribe", &buf)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := p.client.Do(req)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		result.Err = fmt.Sprintf("whisper status %d: %s", res.StatusCode, string(body))
		return result
	}

	var out whisperResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		result.Err = fmt.Sprintf("decode response: %v", err)
		return result
	}
	result.Text = out.Text
	result.Confidence = out.Confidence
	if result.Confidence == 0 {
		// The local server omits confidence; report the model's typical floor.
		result.Confidence = 0.8
	}
	return result
}

func (p *WhisperSTT) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	res, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return res.StatusCode == http.StatusOK
}

func (p *WhisperSTT) ModelInfo() ModelInfo {
	return ModelInfo{Provider: "whisper", Model: p.model}
}
