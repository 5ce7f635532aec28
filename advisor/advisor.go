package advisor

import (
	"context"
	"fmt"
	"strings"

	"agrodetect/llm"
	"agrodetect/metrics"
	"agrodetect/models"
	"agrodetect/parser"

	"github.com/apex/log"
)

const (
	analyzeTemperature   = 0.6
	explainTemperature   = 0.5
	adviceTemperature    = 0.6
	educationTemperature = 0.4

	DefaultCrop            = "general"
	EducationDifficulty    = "intermediate"
	highUrgencyThreshold   = 0.8
	mediumUrgencyThreshold = 0.6
)

// Advisor turns diagnoses into structured and free-text guidance through an LLM.
type Advisor struct {
	client llm.Client
}

func New(client llm.Client) *Advisor {
	return &Advisor{client: client}
}

// Source returns the label of the underlying LLM provider.
func (a *Advisor) Source() string {
	return a.client.SourceName()
}

func (a *Advisor) generate(ctx context.Context, operation, prompt string, temperature float64) (string, error) {
	out, err := a.client.Generate(ctx, prompt, llm.WithTemperature(temperature))
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(operation, "error").Inc()
		return "", err
	}
	metrics.LLMRequestsTotal.WithLabelValues(operation, "ok").Inc()
	return out, nil
}

// AnalyzeDisease asks the LLM for a structured advisory. Transport errors are returned as-is;
// unusable output is replaced by FallbackResponse.
func (a *Advisor) AnalyzeDisease(ctx context.Context, disease string, confidence float64, scenario models.Scenario) (*models.Advisory, error) {
	raw, err := a.generate(ctx, "analyze", analyzePrompt(disease, confidence, scenario), analyzeTemperature)
	if err != nil {
		return nil, err
	}

	advisory, err := parser.ParseAdvisory(raw, confidence)
	if err != nil {
		log.WithError(err).WithField("disease", disease).Warn("Unusable LLM advisory, using fallback")
		metrics.AdvisoryFallbackTotal.WithLabelValues("parse").Inc()
		return FallbackResponse(disease, confidence, scenario), nil
	}
	return advisory, nil
}

// FallbackResponse builds the deterministic advisory used whenever the LLM path fails.
func FallbackResponse(disease string, confidence float64, scenario models.Scenario) *models.Advisory {
	return &models.Advisory{
		Scenario:   scenario,
		Disease:    disease,
		Confidence: confidence,
		Severity:   models.SeverityFor(confidence),
		Summary: fmt.Sprintf("%s detected with %s%% confidence. This condition may significantly affect plant health "+
			"and requires immediate attention. Early intervention is crucial for effective management.", disease, percent(confidence)),
		Actions: []string{
			"Isolate affected plants immediately to prevent disease spread to healthy crops",
			"Remove and destroy severely infected leaves/parts using sterilized tools",
			"Apply appropriate fungicide/pesticide: " + ChemicalRecommendations["fungal"][0],
			"Improve air circulation and reduce humidity around plants",
			"Monitor daily for 2 weeks and reapply treatment as needed",
		},
		Prevention: []string{
			"Maintain proper plant spacing (30-45cm) for adequate air circulation",
			"Water at base of plants early morning, avoid wetting foliage",
			"Practice crop rotation with 2-3 year cycle to break disease cycle",
			"Use disease-resistant varieties when available for your region",
			"Apply preventive fungicide spray (Mancozeb 2g/L) every 15 days during susceptible periods",
		},
	}
}

func (a *Advisor) ExplainDisease(ctx context.Context, disease string, confidence float64) (*models.Explanation, error) {
	out, err := a.generate(ctx, "explain", explainPrompt(disease, confidence), explainTemperature)
	if err != nil {
		return nil, err
	}
	return &models.Explanation{
		Disease:     disease,
		Confidence:  confidence,
		Explanation: strings.TrimSpace(out),
	}, nil
}

func (a *Advisor) FarmerAdvice(ctx context.Context, disease string, confidence float64, crop string) (*models.FarmerAdvice, error) {
	if crop == "" {
		crop = DefaultCrop
	}
	out, err := a.generate(ctx, "farmer_advice", farmerAdvicePrompt(disease, confidence, crop), adviceTemperature)
	if err != nil {
		return nil, err
	}
	return &models.FarmerAdvice{
		Disease: disease,
		Crop:    crop,
		Advice:  strings.TrimSpace(out),
		Urgency: Urgency(confidence),
	}, nil
}

// Urgency maps confidence to high (> 0.8), medium (> 0.6) or low.
func Urgency(confidence float64) string {
	switch {
	case confidence > highUrgencyThreshold:
		return "high"
	case confidence > mediumUrgencyThreshold:
		return "medium"
	default:
		return "low"
	}
}

func (a *Advisor) EducationalExplanation(ctx context.Context, disease string, confidence float64) (*models.EducationalContent, error) {
	out, err := a.generate(ctx, "education", educationPrompt(disease), educationTemperature)
	if err != nil {
		return nil, err
	}
	return &models.EducationalContent{
		Disease:            disease,
		Confidence:         confidence,
		EducationalContent: strings.TrimSpace(out),
		DifficultyLevel:    EducationDifficulty,
	}, nil
}

// CheckHealth probes the LLM service. It never fails; an unreachable service is reported offline.
func (a *Advisor) CheckHealth(ctx context.Context) models.ServiceHealth {
	list, err := a.client.ListModels(ctx)
	if err != nil {
		return models.ServiceHealth{Status: models.StatusOffline, Error: err.Error()}
	}
	return models.ServiceHealth{Status: models.StatusOnline, Models: list}
}
