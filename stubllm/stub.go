package stubllm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"agrodetect/llm"
	"agrodetect/models"
)

// Client is a deterministic, no-network LLM stub intended for CI and local end-to-end tests.
// Disease-analysis prompts get a schema-valid advisory so the upload path exercises parsing and
// persistence. Every other prompt gets a short plain-text answer.
type Client struct{}

func NewClient() *Client { return &Client{} }

func (c *Client) SourceName() string { return "Stub" }

var (
	diseaseLine    = regexp.MustCompile(`(?m)^Detected Disease: (.+)$`)
	confidenceLine = regexp.MustCompile(`(?m)^Confidence: ([0-9.]+)%$`)
	scenarioLine   = regexp.MustCompile(`(?m)^Scenario: (\S+)$`)
)

func (c *Client) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(prompt))
	short := hex.EncodeToString(sum[:4])

	m := diseaseLine.FindStringSubmatch(prompt)
	if m == nil {
		return fmt.Sprintf("Stubbed response (%s): keep monitoring your plants and consult a local extension officer.", short), nil
	}

	disease := strings.TrimSpace(m[1])
	confidence := 0.5
	if cm := confidenceLine.FindStringSubmatch(prompt); cm != nil {
		if pct, err := strconv.ParseFloat(cm[1], 64); err == nil {
			confidence = pct / 100
		}
	}
	scenario := models.DefaultScenario
	if sm := scenarioLine.FindStringSubmatch(prompt); sm != nil {
		scenario = models.ScenarioOrDefault(sm[1])
	}

	out := map[string]any{
		"scenario":   scenario,
		"disease":    disease,
		"confidence": confidence,
		"severity":   models.SeverityFor(confidence),
		"summary":    fmt.Sprintf("Stub analysis (%s) for %s.", short, disease),
		"actions": []string{
			"Remove infected leaves",
			"Apply neem oil spray (5ml/L) weekly",
		},
		"prevention": []string{
			"Rotate crops every season",
			"Water at the base of plants",
		},
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Client) ListModels(ctx context.Context) ([]models.LLMModel, error) {
	return []models.LLMModel{{Name: "stub:latest", Model: "stub:latest"}}, nil
}
