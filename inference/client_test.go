package inference

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"agrodetect/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leaf.jpg")
	require.NoError(t, os.WriteFile(path, []byte("\xff\xd8\xff\xe0fake-jpeg"), 0o644))
	return path
}

func TestPredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "leaf.jpg", header.Filename)
		assert.Equal(t, "\xff\xd8\xff\xe0fake-jpeg", string(data))
		_, _ = w.Write([]byte(`{"disease":"Tomato___Early_blight","confidence":0.93,"model":"EfficientNetB0-PyTorch"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, time.Second)
	got, err := c.Predict(context.Background(), writeImage(t))

	require.NoError(t, err)
	assert.Equal(t, &models.DiagnosisResult{Disease: "Tomato___Early_blight", Confidence: 0.93, Model: "EfficientNetB0-PyTorch"}, got)
}

func TestPredictFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error body", http.StatusInternalServerError, `{"error":"CUDA out of memory"}`, "CUDA out of memory"},
		{"undecodable body", http.StatusOK, `<html>`, "failed to decode prediction"},
		{"missing disease", http.StatusOK, `{"confidence":0.5}`, "no disease label"},
		{"confidence out of range", http.StatusOK, `{"disease":"Rust","confidence":93}`, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, time.Second, time.Second)
			_, err := c.Predict(context.Background(), writeImage(t))

			var infErr *InferenceError
			require.True(t, errors.As(err, &infErr), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPredictServiceUnavailable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := NewClient("http://"+addr, time.Second, time.Second)
	_, err = c.Predict(context.Background(), writeImage(t))

	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Contains(t, err.Error(), addr)
}

func TestPredictMissingFile(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second, time.Second)
	_, err := c.Predict(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"))

	var infErr *InferenceError
	assert.True(t, errors.As(err, &infErr))
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy","model_loaded":true,"device":"cuda"}`))
	}))
	defer srv.Close()

	got := NewClient(srv.URL, time.Second, time.Second).HealthCheck(context.Background())

	assert.Equal(t, models.StatusOnline, got.Status)
	assert.Equal(t, "cuda", got.Device)
	require.NotNil(t, got.ModelLoaded)
	assert.True(t, *got.ModelLoaded)
}

func TestHealthCheckOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	got := NewClient(srv.URL, time.Second, time.Second).HealthCheck(context.Background())
	assert.Equal(t, models.StatusOffline, got.Status)
	assert.NotEmpty(t, got.Error)

	srv.Close()
	got = NewClient(srv.URL, time.Second, time.Second).HealthCheck(context.Background())
	assert.Equal(t, models.StatusOffline, got.Status)
	assert.NotEmpty(t, got.Error)
}
