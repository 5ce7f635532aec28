package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agrodetect/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSendsRequestBody(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","response":"{\"ok\":true}","done":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "llama3", "be terse", time.Second, time.Second)
	out, err := c.Generate(context.Background(), "hello", llm.WithTemperature(0.6))

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "hello", got.Prompt)
	assert.False(t, got.Stream)
	assert.Equal(t, "be terse", got.System)
	assert.Equal(t, 0.6, got.Options.Temperature)
	assert.Equal(t, 0.9, got.Options.TopP)
}

func TestGenerateDefaultsZeroOptions(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"response":"x"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "llama3", "", time.Second, time.Second)
	_, err := c.Generate(context.Background(), "p", llm.Options{})

	require.NoError(t, err)
	assert.Equal(t, llm.DefaultTemperature, got.Options.Temperature)
	assert.Equal(t, llm.DefaultTopP, got.Options.TopP)
}

func TestGenerateNon2xxIsLLMError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "missing", "", time.Second, time.Second)
	_, err := c.Generate(context.Background(), "p", llm.DefaultOptions())

	var llmErr *llm.LLMError
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, http.StatusNotFound, llmErr.StatusCode)
	assert.Contains(t, err.Error(), "model not found")
}

func TestGenerateConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := NewClient("http://"+addr, "llama3", "", time.Second, time.Second)
	_, err = c.Generate(context.Background(), "p", llm.DefaultOptions())

	assert.ErrorIs(t, err, llm.ErrLLMUnavailable)
}

func TestGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, "llama3", "", 50*time.Millisecond, time.Second)
	_, err := c.Generate(context.Background(), "p", llm.DefaultOptions())

	assert.ErrorIs(t, err, llm.ErrLLMTimeout)
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest","model":"llama3:latest","size":4661224676,"modified_at":"2024-05-01T10:00:00Z"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "llama3", "", time.Second, time.Second)
	got, err := c.ListModels(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "llama3:latest", got[0].Name)
	assert.Equal(t, int64(4661224676), got[0].Size)
}

func TestListModelsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "llama3", "", time.Second, time.Second)
	got, err := c.ListModels(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
