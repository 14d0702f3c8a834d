package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	insightsSchemaName  = "job_insights"
	maxCompletionTokens = 1024
	maxResponseBytes    = 1 << 20
	maxErrorBody        = 512

	systemPrompt = "You extract structured, factual metadata from job postings. Never invent details the posting does not state."
)

// ErrTruncated means the model hit the token limit before closing its JSON.
var ErrTruncated = errors.New("llm reply truncated")

// insightsSchema is enforced server-side through structured outputs and
// mirrors rawInsights.
func insightsSchema() map[string]any {
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	keyPoints := map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 3, "maxItems": 3}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"seniority":  map[string]any{"type": "string", "enum": seniorityLevels},
			"years_exp":  map[string]any{"type": "string"},
			"tech_stack": stringList,
			"key_points": keyPoints,
		},
		"required": []string{"seniority", "years_exp", "tech_stack", "key_points"},
	}
}

// StatusError is a non-200 reply from the completions endpoint.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration // 0 when the header is absent or not in seconds
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm returned HTTP %d: %s", e.StatusCode, e.Body)
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

var _ LLMProvider = (*OpenAIProvider)(nil)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	endpoint   string
	apiKey     string
	model      string
	schema     map[string]any
	httpClient *http.Client
}

func NewOpenAIProvider(baseURL, apiKey, model string, httpClient *http.Client) *OpenAIProvider {
	return &OpenAIProvider{
		endpoint:   strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey:     apiKey,
		model:      model,
		schema:     insightsSchema(),
		httpClient: httpClient,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string       `json:"type"`
	JSONSchema schemaFormat `json:"json_schema"`
}

type schemaFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
}

type completionRequest struct {
	Model          string         `json:"model"`
	Messages       []message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type completionChoice struct {
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type completionResponse struct {
	Choices []completionChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete returns the JSON text of the first choice.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	req, err := p.newRequest(ctx, prompt)
	if err != nil {
		return "", err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	return decodeCompletion(resp)
}

func (p *OpenAIProvider) newRequest(ctx context.Context, prompt string) (*http.Request, error) {
	body, err := json.Marshal(completionRequest{
		Model: p.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxCompletionTokens,
		ResponseFormat: responseFormat{
			Type:       "json_schema",
			JSONSchema: schemaFormat{Name: insightsSchemaName, Schema: p.schema},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	return req, nil
}

func decodeCompletion(resp *http.Response) (string, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read llm response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return "", &StatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Body:       string(data),
		}
	}

	var cr completionResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", fmt.Errorf("parse llm response: %w", err)
	}
	switch {
	case cr.Error != nil:
		return "", fmt.Errorf("llm error (%s): %s", cr.Error.Type, cr.Error.Message)
	case len(cr.Choices) == 0:
		return "", errors.New("llm returned no choices")
	case cr.Choices[0].FinishReason == "length":
		return "", ErrTruncated
	}
	return cr.Choices[0].Message.Content, nil
}
