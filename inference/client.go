package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"agrodetect/metrics"
	"agrodetect/models"
)

// ErrServiceUnavailable is returned when the ML service refuses the connection.
var ErrServiceUnavailable = errors.New("ML service not running")

// InferenceError is any other prediction failure.
type InferenceError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *InferenceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ML prediction failed: status %d: %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("ML prediction failed: %v", e.Err)
	}
	return "ML prediction failed: " + e.Message
}

func (e *InferenceError) Unwrap() error { return e.Err }

type errorBody struct {
	Error string `json:"error"`
}

type healthBody struct {
	Status      string `json:"status"`
	ModelLoaded *bool  `json:"model_loaded"`
	Device      string `json:"device"`
}

// Client calls the external ML inference service.
type Client struct {
	baseURL       string
	timeout       time.Duration
	healthTimeout time.Duration
	http          *http.Client
}

func NewClient(baseURL string, timeout, healthTimeout time.Duration) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		timeout:       timeout,
		healthTimeout: healthTimeout,
		http:          &http.Client{},
	}
}

// Predict uploads the image at imagePath to /predict and returns the classifier output.
func (c *Client) Predict(ctx context.Context, imagePath string) (*models.DiagnosisResult, error) {
	start := time.Now()
	result, err := c.predict(ctx, imagePath)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.InferenceDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return result, err
}

func (c *Client) predict(ctx context.Context, imagePath string) (*models.DiagnosisResult, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, &InferenceError{Err: fmt.Errorf("failed to open image: %w", err)}
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, &InferenceError{Err: fmt.Errorf("failed to read image: %w", err)}
	}
	if err := w.Close(); err != nil {
		return nil, &InferenceError{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", &body)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("%w at %s. Start the ML service (ml_service.py) first", ErrServiceUnavailable, c.baseURL)
		}
		return nil, &InferenceError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		return nil, &InferenceError{StatusCode: resp.StatusCode, Message: msg}
	}

	var result models.DiagnosisResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &InferenceError{Err: fmt.Errorf("failed to decode prediction: %w", err)}
	}
	if result.Disease == "" {
		return nil, &InferenceError{Message: "prediction has no disease label"}
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, &InferenceError{Message: fmt.Sprintf("confidence %v out of range", result.Confidence)}
	}
	return &result, nil
}

// HealthCheck probes /health. It never fails; an unreachable service is reported offline.
func (c *Client) HealthCheck(ctx context.Context) models.ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return models.ServiceHealth{Status: models.StatusOffline, Error: err.Error()}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return models.ServiceHealth{Status: models.StatusOffline, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.ServiceHealth{Status: models.StatusOffline, Error: resp.Status}
	}

	var hb healthBody
	if err := json.NewDecoder(resp.Body).Decode(&hb); err != nil {
		return models.ServiceHealth{Status: models.StatusOffline, Error: fmt.Sprintf("invalid health response: %v", err)}
	}
	return models.ServiceHealth{
		Status:      models.StatusOnline,
		Device:      hb.Device,
		ModelLoaded: hb.ModelLoaded,
	}
}
