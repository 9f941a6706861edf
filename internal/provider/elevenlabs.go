package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// voiceMapping resolves friendly voice names to ElevenLabs voice ids.
var voiceMapping = map[string]string{
	"sarah":   "EXAVITQu4vr4xnSDxMaL",
	"maria":   "ErXwobaYiN019PkySvjV",
	"jessica": "cgSgspJ2msm6clMCkdW9",
	"michael": "flq6f7yk4E4fJM5XTYuZ",
	"carlos":  "onwK4e9ZLuTAKqWW03F9",
	"david":   "pNInz6obpgDQGcFmaJgB",
}

const defaultVoice = "sarah"

// ElevenLabsTTS synthesizes speech through the ElevenLabs REST API.
type ElevenLabsTTS struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewElevenLabsTTS(apiKey string, timeout time.Duration) *ElevenLabsTTS {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ElevenLabsTTS{
		apiKey:  apiKey,
		baseURL: "https://api.elevenlabs.io/v1",
		client:  &http.Client{Timeout: timeout},
	}
}

type elevenLabsPayload struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings map[string]any `json:"voice_settings"`
}

func (p *ElevenLabsTTS) Synthesize(ctx context.Context, req SynthesizeRequest) (SynthesizeResult, error) {
	if p.apiKey == "" {
		return SynthesizeResult{}, errors.New("elevenlabs api key not configured")
	}

	voiceID, ok := voiceMapping[req.VoiceID]
	if !ok {
		voiceID = voiceMapping[defaultVoice]
	}

	payload, err := json.Marshal(elevenLabsPayload{
		Text:    req.Text,
		ModelID: "eleven_multilingual_v2",
		VoiceSettings: map[string]any{
			"stability":         0.75,
			"similarity_boost":  0.8,
			"style":             0.3,
			"use_speaker_boost": true,
		},
	})
	if err != nil {
		return SynthesizeResult{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := p.baseURL + "/text-to-speech/" + url.PathEscape(voiceID) + "/stream"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return SynthesizeResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", p.apiKey)

	res, err := p.client.Do(httpReq)
	if err != nil {
		return SynthesizeResult{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return SynthesizeResult{}, fmt.Errorf("elevenlabs status %d: %s", res.StatusCode, string(body))
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return SynthesizeResult{}, fmt.Errorf("read audio: %w", err)
	}

	log.Printf("[ELEVENLABS] synthesized %d bytes for tenant %s", len(audio), req.TenantID)
	return SynthesizeResult{
		Audio:       audio,
		ContentType: "audio/mpeg",
		Provider:    "elevenlabs",
	}, nil
}

func (p *ElevenLabsTTS) HealthCheck(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/voices", nil)
	if err != nil {
		return false
	}
	req.Header.Set("xi-api-key", p.apiKey)
	res, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return res.StatusCode == http.StatusOK
}

func (p *ElevenLabsTTS) Voices() map[string]string {
	out := make(map[string]string, len(voiceMapping))
	for k, v := range voiceMapping {
		out[k] = v
	}
	return out
}
