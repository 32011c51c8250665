package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/study"
)

// httpModelClient talks to an OpenAI-compatible endpoint. It is deliberately
// thin: the audit subsystem only needs response text, model id and token
// counts back from it.
type httpModelClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func newHTTPModelClient(apiKey, baseURL, model string) *httpModelClient {
	return &httpModelClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *httpModelClient) Chat(ctx context.Context, prompt string, parameters map[string]interface{}) (study.ModelResult, error) {
	payload := chatCompletionRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return study.ModelResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return study.ModelResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return study.ModelResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return study.ModelResult{}, fmt.Errorf("model endpoint returned %d: %s", resp.StatusCode, string(data))
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return study.ModelResult{}, err
	}
	if len(completion.Choices) == 0 {
		return study.ModelResult{}, fmt.Errorf("model endpoint returned no choices")
	}

	return study.ModelResult{
		Output: completion.Choices[0].Message.Content,
		Model:  completion.Model,
		TokenUsage: map[string]interface{}{
			"prompt_tokens":     completion.Usage.PromptTokens,
			"completion_tokens": completion.Usage.CompletionTokens,
			"total_tokens":      completion.Usage.TotalTokens,
		},
	}, nil
}

func (c *httpModelClient) GenerateImage(ctx context.Context, prompt string, parameters map[string]interface{}) (study.ModelResult, error) {
	payload := map[string]interface{}{
		"model":  c.model,
		"prompt": prompt,
		"n":      1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return study.ModelResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return study.ModelResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return study.ModelResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return study.ModelResult{}, fmt.Errorf("model endpoint returned %d: %s", resp.StatusCode, string(data))
	}

	var generation struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&generation); err != nil {
		return study.ModelResult{}, err
	}
	if len(generation.Data) == 0 {
		return study.ModelResult{}, fmt.Errorf("model endpoint returned no images")
	}

	return study.ModelResult{
		Output: generation.Data[0].URL,
		Model:  c.model,
	}, nil
}
