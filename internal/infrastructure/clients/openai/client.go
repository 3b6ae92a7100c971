package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/providers"
	"github.com/adetayo/edflowsim/backend/pkg/config"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements the discharge assessor against the OpenAI chat
// completions API with a JSON response format.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ providers.DischargeAssessor = (*Client)(nil)

// NewClient creates a new OpenAI client
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}

	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatEnvelope struct {
	Choices []chatChoice `json:"choices"`
}

// Assess returns a structured discharge readiness verdict for the patient
func (c *Client) Assess(ctx context.Context, patient *entities.Patient, currentTick int) (*entities.DischargeVerdict, error) {
	if patient == nil {
		return nil, errors.New("patient is required")
	}

	payload := map[string]interface{}{
		"model": c.model,
		"messages": []chatMessage{
			{Role: "user", Content: buildDischargePrompt(patient)},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0.3,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("openai returned status %d: %s", resp.StatusCode, data)
	}

	var envelope chatEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode openai response: %w", err)
	}
	if len(envelope.Choices) == 0 {
		return nil, errors.New("openai response contained no choices")
	}

	var verdict entities.DischargeVerdict
	if err := json.Unmarshal([]byte(envelope.Choices[0].Message.Content), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse discharge verdict: %w", err)
	}

	return &verdict, nil
}
