package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the OpenAI API root. Any compatible gateway works.
const DefaultBaseURL = "https://api.openai.com/v1"

type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	tokens  *ServiceTokenSigner
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(u string) OpenAIOption {
	return func(c *OpenAIClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(h *http.Client) OpenAIOption {
	return func(c *OpenAIClient) {
		if h != nil {
			c.http = h
		}
	}
}

// WithServiceToken authenticates with a short-lived signed token instead of
// a static API key, for internal gateways.
func WithServiceToken(s *ServiceTokenSigner) OpenAIOption {
	return func(c *OpenAIClient) {
		c.tokens = s
	}
}

func NewOpenAIClient(apiKey, model string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []Message             `json:"messages"`
	Temperature    float64               `json:"temperature,omitempty"`
	TopP           float64               `json:"top_p,omitempty"`
	Seed           int64                 `json:"seed,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) Chat(ctx context.Context, msgs []Message, options *SamplingOptions) (*Response, error) {
	reqBody := openAIRequest{
		Model:    c.model,
		Messages: msgs,
	}

	if options != nil {
		reqBody.Temperature = options.Temperature
		reqBody.TopP = options.TopP
		reqBody.Seed = options.Seed
		if options.JSONMode {
			reqBody.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
		}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	bearer := c.apiKey
	if c.tokens != nil {
		if bearer, err = c.tokens.Sign(); err != nil {
			return nil, fmt.Errorf("openai: sign service token: %w", err)
		}
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("openai error: %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var oaiResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}

	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	return &Response{
		Content: oaiResp.Choices[0].Message.Content,
		Model:   oaiResp.Model,
	}, nil
}
