package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"agrodetect/llm"
	"agrodetect/models"
)

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	System  string          `json:"system,omitempty"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type tagsResponse struct {
	Models []models.LLMModel `json:"models"`
}

// Client talks to the Ollama HTTP API.
type Client struct {
	baseURL       string
	model         string
	system        string
	timeout       time.Duration
	healthTimeout time.Duration
	http          *http.Client
}

// NewClient creates a client for the Ollama server at baseURL (e.g. http://localhost:11434).
// The system prompt is sent with every generate request.
func NewClient(baseURL, model, system string, timeout, healthTimeout time.Duration) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		model:         model,
		system:        system,
		timeout:       timeout,
		healthTimeout: healthTimeout,
		http:          &http.Client{},
	}
}

func (c *Client) SourceName() string {
	return "Ollama"
}

// Generate sends one non-streaming completion request.
func (c *Client) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if opts.Temperature == 0 {
		opts.Temperature = llm.DefaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = llm.DefaultTopP
	}

	body := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		System: c.system,
		Options: generateOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", &llm.LLMError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", &llm.LLMError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &llm.LLMError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(respBody))),
		}
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", &llm.LLMError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return out.Response, nil
}

// ListModels returns the locally installed models from /api/tags.
func (c *Client) ListModels(ctx context.Context) ([]models.LLMModel, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, &llm.LLMError{Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &llm.LLMError{StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	var out tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &llm.LLMError{Err: fmt.Errorf("failed to decode tags: %w", err)}
	}
	if out.Models == nil {
		out.Models = []models.LLMModel{}
	}
	return out.Models, nil
}

// classify maps transport failures onto the llm sentinel errors.
func classify(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return llm.ErrLLMUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.ErrLLMTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return llm.ErrLLMTimeout
	}
	return &llm.LLMError{Err: err}
}
