package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"agrodetect/llm"
	"agrodetect/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	response string
	err      error
	models   []models.LLMModel

	prompts []string
	opts    []llm.Options
}

func (f *fakeClient) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	return f.response, f.err
}

func (f *fakeClient) ListModels(ctx context.Context) ([]models.LLMModel, error) {
	return f.models, f.err
}

func (f *fakeClient) SourceName() string { return "Fake" }

func TestFallbackResponse(t *testing.T) {
	got := FallbackResponse("Leaf Blight", 0.92, models.ScenarioHomeGardener)

	assert.Equal(t, models.SeverityHigh, got.Severity)
	assert.Equal(t, models.ScenarioHomeGardener, got.Scenario)
	assert.Equal(t, "Leaf Blight", got.Disease)
	assert.Equal(t, 0.92, got.Confidence)
	assert.True(t, strings.HasPrefix(got.Summary, "Leaf Blight detected with 92.0% confidence."))
	require.Len(t, got.Actions, 5)
	require.Len(t, got.Prevention, 5)
	assert.Equal(t, "Apply appropriate fungicide/pesticide: Apply copper-based fungicide (Bordeaux mixture) at 2-3 g/L every 7-10 days", got.Actions[2])
	for _, s := range append(got.Actions, got.Prevention...) {
		assert.NotEmpty(t, s)
	}
}

func TestFallbackResponseSeverityThresholds(t *testing.T) {
	assert.Equal(t, models.SeverityModerate, FallbackResponse("Rust", 0.60, models.DefaultScenario).Severity)
	assert.Equal(t, models.SeverityUncertain, FallbackResponse("Rust", 0.59, models.DefaultScenario).Severity)
	assert.Equal(t, models.SeverityHigh, FallbackResponse("Rust", 0.85, models.DefaultScenario).Severity)
}

func TestAnalyzeDiseaseMalformedOutputEqualsFallback(t *testing.T) {
	fc := &fakeClient{response: "Sorry, I can only answer in prose."}
	a := New(fc)

	got, err := a.AnalyzeDisease(context.Background(), "Leaf Blight", 0.92, models.ScenarioHomeGardener)

	require.NoError(t, err)
	assert.Equal(t, FallbackResponse("Leaf Blight", 0.92, models.ScenarioHomeGardener), got)
}

func TestAnalyzeDiseasePromptAndTemperature(t *testing.T) {
	fc := &fakeClient{response: "{}"}
	a := New(fc)

	_, err := a.AnalyzeDisease(context.Background(), "Powdery Mildew", 0.75, models.ScenarioAgriculturalTraining)
	require.NoError(t, err)

	require.Len(t, fc.prompts, 1)
	assert.Contains(t, fc.prompts[0], "Detected Disease: Powdery Mildew\n")
	assert.Contains(t, fc.prompts[0], "Confidence: 75.0%\n")
	assert.Contains(t, fc.prompts[0], "Scenario: agricultural_training\n")
	assert.Equal(t, 0.6, fc.opts[0].Temperature)
	assert.Equal(t, 0.9, fc.opts[0].TopP)
}

func TestAnalyzeDiseaseSanitizesItems(t *testing.T) {
	fc := &fakeClient{response: `Result: {"scenario":"farm_monitoring","disease":"Rust","confidence":0.7,"severity":"Moderate",
		"summary":"Rust reduces yield.","actions":["water plants",{"step":"spray","details":"apply neem oil"}],
		"prevention":[{"practice":"rotate crops"}]}`}
	a := New(fc)

	got, err := a.AnalyzeDisease(context.Background(), "Rust", 0.7, models.DefaultScenario)

	require.NoError(t, err)
	assert.Equal(t, []string{"water plants", "apply neem oil"}, got.Actions)
	assert.Equal(t, []string{"rotate crops"}, got.Prevention)
}

func TestAnalyzeDiseaseKeepsModelSeverity(t *testing.T) {
	// Severity written by the model is not checked against the confidence rule.
	fc := &fakeClient{response: `{"scenario":"farm_monitoring","disease":"Rust","confidence":0.4,"severity":"High",
		"summary":"s","actions":["a"],"prevention":["p"]}`}
	a := New(fc)

	got, err := a.AnalyzeDisease(context.Background(), "Rust", 0.4, models.DefaultScenario)

	require.NoError(t, err)
	assert.Equal(t, models.SeverityHigh, got.Severity)
	assert.NotEqual(t, models.SeverityFor(0.4), got.Severity)
}

func TestAnalyzeDiseasePropagatesTransportErrors(t *testing.T) {
	fc := &fakeClient{err: llm.ErrLLMUnavailable}
	a := New(fc)

	got, err := a.AnalyzeDisease(context.Background(), "Rust", 0.7, models.DefaultScenario)

	assert.Nil(t, got)
	assert.ErrorIs(t, err, llm.ErrLLMUnavailable)
}

func TestFreeTextOperations(t *testing.T) {
	fc := &fakeClient{response: "  Rust is a fungal disease.\n"}
	a := New(fc)
	ctx := context.Background()

	exp, err := a.ExplainDisease(ctx, "Rust", 0.9)
	require.NoError(t, err)
	assert.Equal(t, "Rust is a fungal disease.", exp.Explanation)
	assert.Equal(t, 0.5, fc.opts[0].Temperature)
	assert.Contains(t, fc.prompts[0], `"Rust" detected with 90.0% confidence`)

	adv, err := a.FarmerAdvice(ctx, "Rust", 0.9, "")
	require.NoError(t, err)
	assert.Equal(t, "general", adv.Crop)
	assert.Equal(t, "high", adv.Urgency)
	assert.Equal(t, 0.6, fc.opts[1].Temperature)
	assert.Contains(t, fc.prompts[1], "on their general crop")

	edu, err := a.EducationalExplanation(ctx, "Rust", 0.9)
	require.NoError(t, err)
	assert.Equal(t, "intermediate", edu.DifficultyLevel)
	assert.Equal(t, 0.4, fc.opts[2].Temperature)
}

func TestFreeTextOperationsPropagateErrors(t *testing.T) {
	fc := &fakeClient{err: llm.ErrLLMTimeout}
	a := New(fc)
	ctx := context.Background()

	_, err := a.ExplainDisease(ctx, "Rust", 0.9)
	assert.ErrorIs(t, err, llm.ErrLLMTimeout)
	_, err = a.FarmerAdvice(ctx, "Rust", 0.9, "tomato")
	assert.ErrorIs(t, err, llm.ErrLLMTimeout)
	_, err = a.EducationalExplanation(ctx, "Rust", 0.9)
	assert.ErrorIs(t, err, llm.ErrLLMTimeout)
}

func TestUrgency(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{0.95, "high"},
		{0.81, "high"},
		{0.8, "medium"},
		{0.61, "medium"},
		{0.6, "low"},
		{0.1, "low"},
	}
	for _, tc := range tests {
		if got := Urgency(tc.confidence); got != tc.want {
			t.Errorf("Urgency(%v) = %q, want %q", tc.confidence, got, tc.want)
		}
	}
}

func TestCheckHealth(t *testing.T) {
	online := New(&fakeClient{models: []models.LLMModel{{Name: "llama3:latest"}}}).CheckHealth(context.Background())
	assert.Equal(t, models.StatusOnline, online.Status)
	assert.Len(t, online.Models, 1)

	offline := New(&fakeClient{err: errors.New("dial tcp: connection refused")}).CheckHealth(context.Background())
	assert.Equal(t, models.StatusOffline, offline.Status)
	assert.Contains(t, offline.Error, "connection refused")
}
