package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DeepgramSTT transcribes audio through the Deepgram REST API.
type DeepgramSTT struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewDeepgramSTT(apiKey string, timeout time.Duration) *DeepgramSTT {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DeepgramSTT{
		apiKey:  apiKey,
		baseURL: "https://api.deepgram.com/v1",
		model:   "nova-2",
		client:  &http.Client{Timeout: timeout},
	}
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (p *DeepgramSTT) Transcribe(ctx context.Context, audio []byte, language string) STTResult {
	result := STTResult{Language: language, Provider: "deepgram"}
	if p.apiKey == "" {
		result.Err = "deepgram api key not configured"
		return result
	}

	url := fmt.Sprintf("%s/listen?model=%s&language=%s", p.baseURL, p.model, language)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(audio))
	if err != nil {
		result.Err = err.Error()
		return result
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	res, err := p.client.Do(req)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		result.Err = fmt.Sprintf("deepgram status %d: %s", res.StatusCode, string(body))
		return result
	}

	var out deepgramResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		result.Err = fmt.Sprintf("decode response: %v", err)
		return result
	}
	if len(out.Results.Channels) == 0 || len(out.Results.Channels[0].Alternatives) == 0 {
		result.Err = "deepgram: empty result"
		return result
	}

	alt := out.Results.Channels[0].Alternatives[0]
	result.Text = alt.Transcript
	result.Confidence = alt.Confidence
	return result
}

func (p *DeepgramSTT) HealthCheck(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	res, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return res.StatusCode == http.StatusOK
}

func (p *DeepgramSTT) ModelInfo() ModelInfo {
	return ModelInfo{Provider: "deepgram", Model: p.model}
}
