package llm

import (
	"context"
	"errors"
	"fmt"

	"agrodetect/models"
)

const (
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
)

var (
	// ErrLLMUnavailable is returned when the LLM service refuses the connection.
	ErrLLMUnavailable = errors.New("Ollama service is not running. Please start Ollama.")
	// ErrLLMTimeout is returned when a generate call exceeds its deadline.
	ErrLLMTimeout = errors.New("Ollama request timed out. Try again.")
)

// LLMError wraps any other failure of the LLM service, including non-2xx answers.
type LLMError struct {
	StatusCode int
	Err        error
}

func (e *LLMError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("Ollama error: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("Ollama error: %v", e.Err)
}

func (e *LLMError) Unwrap() error { return e.Err }

// Options are the sampling parameters of one generate call.
type Options struct {
	Temperature float64
	TopP        float64
}

// DefaultOptions returns temperature 0.7 and top_p 0.9.
func DefaultOptions() Options {
	return Options{Temperature: DefaultTemperature, TopP: DefaultTopP}
}

// WithTemperature returns the default options with the temperature overridden.
func WithTemperature(t float64) Options {
	o := DefaultOptions()
	o.Temperature = t
	return o
}

// Client abstracts the text-generation provider used by the advisor and the chat service.
// Implementations must be concurrency-safe.
type Client interface {
	// Generate sends one non-streaming completion request and returns the raw text.
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
	// ListModels returns the models the provider advertises. It is used as the health probe.
	ListModels(ctx context.Context) ([]models.LLMModel, error)
	// SourceName returns a short provider label (e.g., "Ollama").
	SourceName() string
}
