package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LocalLLM talks to a llama.cpp-style server exposing an OpenAI-compatible
// chat completions endpoint. Used for on-prem tenants.
type LocalLLM struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewLocalLLM(baseURL, model string, timeout time.Duration) (*LocalLLM, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("local llm url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LocalLLM{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type localChatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type localChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *LocalLLM) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	messages := make([]Message, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: "user", Content: req.UserMessage})

	payload, err := json.Marshal(localChatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return GenerateResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(httpReq)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return GenerateResult{}, fmt.Errorf("local llm status %d: %s", res.StatusCode, string(body))
	}

	var out localChatResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return GenerateResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return GenerateResult{}, errors.New("local llm: no choices returned")
	}

	model := out.Model
	if model == "" {
		model = p.model
	}
	return GenerateResult{
		Text:       out.Choices[0].Message.Content,
		TokensUsed: out.Usage.TotalTokens,
		Model:      model,
		Provider:   "local",
	}, nil
}

func (p *LocalLLM) HealthCheck(ctx context.Context) bool {
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

func (p *LocalLLM) ModelInfo() ModelInfo {
	return ModelInfo{Provider: "local", Model: p.model}
}
