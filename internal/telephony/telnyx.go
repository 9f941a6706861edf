package telephony

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

// Telnyx drives the Telnyx Call Control API: one POST to start a call,
// then per-call commands while the call is live. Webhook events flow back
// separately through the callflow adapter.
type Telnyx struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewTelnyx(apiKey string, timeout time.Duration) *Telnyx {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Telnyx{
		apiKey:  apiKey,
		baseURL: "https://api.telnyx.com/v2",
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *Telnyx) Name() string { return "telnyx" }

func (t *Telnyx) InitiateCall(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	if t.apiKey == "" {
		return InitiateResult{}, errors.New("telnyx api key not configured")
	}
	if req.ConnectionID == "" {
		return InitiateResult{}, errors.New("telnyx requires a connection_id")
	}

	payload := map[string]any{
		"connection_id":      req.ConnectionID,
		"to":                 req.To,
		"from":               req.From,
		"webhook_url":        req.WebhookURL,
		"webhook_url_method": "POST",
		"custom_headers": []map[string]string{
			{"name": "X-Webhook-Type", "value": "telnyx"},
		},
		"client_state":              req.ClientState,
		"answerOnBridge":            false,
		"answeringMachineDetection": "greeting_end",
		"answeringMachineDetectionConfig": map[string]string{
			"beep_detection": "greeting_end_beep_detect",
		},
	}

	var out struct {
		Data struct {
			CallControlID string `json:"call_control_id"`
		} `json:"data"`
	}
	if err := t.post(ctx, "/calls", payload, &out); err != nil {
		return InitiateResult{}, err
	}
	if out.Data.CallControlID == "" {
		return InitiateResult{}, errors.New("telnyx response missing call_control_id")
	}

	log.Printf("[TELNYX] call initiated: %s", out.Data.CallControlID)
	return InitiateResult{
		CallID:   out.Data.CallControlID,
		Status:   "initiated",
		Provider: "telnyx",
	}, nil
}

func (t *Telnyx) PlayAudio(ctx context.Context, callControlID, audioURL string, loop bool) error {
	payload := map[string]any{
		"audio_url": audioURL,
		"loop":      loop,
		"overlay":   false,
	}
	return t.post(ctx, "/calls/"+url.PathEscape(callControlID)+"/actions/playback_start", payload, nil)
}

func (t *Telnyx) Speak(ctx context.Context, callControlID, text, language, voice string) error {
	if language == "" {
		language = "en-US"
	}
	if voice == "" {
		voice = "female"
	}
	payload := map[string]any{
		"payload":  text,
		"language": language,
		"voice":    voice,
		"loop":     false,
	}
	return t.post(ctx, "/calls/"+url.PathEscape(callControlID)+"/actions/speak", payload, nil)
}

func (t *Telnyx) GatherDigits(ctx context.Context, callControlID string, opts GatherOptions) error {
	payload := map[string]any{
		"max_digits":               opts.MaxDigits,
		"timeout_secs":             opts.TimeoutSecs,
		"valid_digits":             opts.ValidDigits,
		"terminating_digit":        opts.TerminatingDigit,
		"inter_digit_timeout_secs": opts.InterDigitTimeout,
	}
	return t.post(ctx, "/calls/"+url.PathEscape(callControlID)+"/actions/gather", payload, nil)
}

func (t *Telnyx) Hangup(ctx context.Context, callControlID string) error {
	return t.post(ctx, "/calls/"+url.PathEscape(callControlID)+"/actions/hangup", map[string]any{}, nil)
}

func (t *Telnyx) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		resBody, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("telnyx status %d: %s", res.StatusCode, string(resBody))
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
