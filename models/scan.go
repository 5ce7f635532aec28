package models

import (
	"time"
)

// Scenario is the audience preset that frames every LLM prompt
type Scenario string

const (
	ScenarioFarmMonitoring       Scenario = "farm_monitoring"
	ScenarioHomeGardener         Scenario = "home_gardener"
	ScenarioAgriculturalTraining Scenario = "agricultural_training"

	DefaultScenario = ScenarioFarmMonitoring
)

// Scenarios lists the accepted scenarios in display order
var Scenarios = []Scenario{
	ScenarioFarmMonitoring,
	ScenarioHomeGardener,
	ScenarioAgriculturalTraining,
}

// Valid reports whether s is one of the three known scenarios
func (s Scenario) Valid() bool {
	switch s {
	case ScenarioFarmMonitoring, ScenarioHomeGardener, ScenarioAgriculturalTraining:
		return true
	}
	return false
}

// ScenarioOrDefault returns the scenario named by raw, or farm_monitoring when raw is empty or unknown
func ScenarioOrDefault(raw string) Scenario {
	s := Scenario(raw)
	if s.Valid() {
		return s
	}
	return DefaultScenario
}

// Severity is the coarse risk level attached to a diagnosis
type Severity string

const (
	SeverityHigh      Severity = "High"
	SeverityModerate  Severity = "Moderate"
	SeverityUncertain Severity = "Uncertain"
)

const (
	HighSeverityThreshold     = 0.85
	ModerateSeverityThreshold = 0.60
)

// Valid reports whether s is one of the three persisted severities
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityModerate, SeverityUncertain:
		return true
	}
	return false
}

// SeverityFor maps a model confidence onto a severity. Lower bounds are inclusive.
func SeverityFor(confidence float64) Severity {
	switch {
	case confidence >= HighSeverityThreshold:
		return SeverityHigh
	case confidence >= ModerateSeverityThreshold:
		return SeverityModerate
	default:
		return SeverityUncertain
	}
}

// DefaultModelUsed is recorded when the inference service does not name its model
const DefaultModelUsed = "EfficientNetB0"

// DiagnosisResult is the answer of the inference service for one image
type DiagnosisResult struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model"`
}

// AIAnalysis is the persisted subset of an Advisory
type AIAnalysis struct {
	Summary    string   `json:"summary"`
	Actions    []string `json:"actions"`
	Prevention []string `json:"prevention"`
}

// ScanRecord represents one persisted image analysis
type ScanRecord struct {
	ID             string     `json:"id"`
	Disease        string     `json:"disease"`
	Confidence     float64    `json:"confidence"`
	Severity       Severity   `json:"severity"`
	Scenario       Scenario   `json:"scenario"`
	ImageURL       string     `json:"image_url"`
	AIAnalysis     AIAnalysis `json:"ai_analysis"`
	ModelUsed      string     `json:"model_used"`
	ProcessingTime float64    `json:"processing_time"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Pagination describes one page of history
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ScanPage is a page of scans sorted newest first
type ScanPage struct {
	Scans      []*ScanRecord `json:"scans"`
	Pagination Pagination    `json:"pagination"`
}

// ScanStats aggregates the stored scans
type ScanStats struct {
	Total      int            `json:"total"`
	ByDisease  map[string]int `json:"by_disease"`
	BySeverity map[string]int `json:"by_severity"`
}

// AnalysisResponse is returned by the upload endpoint
type AnalysisResponse struct {
	Disease        string    `json:"disease"`
	Confidence     float64   `json:"confidence"`
	Model          string    `json:"model"`
	ProcessingTime string    `json:"processing_time"`
	ImageURL       string    `json:"image_url"`
	AIAnalysis     *Advisory `json:"ai_analysis"`
	ScanID         string    `json:"scan_id,omitempty"`
	Timestamp      string    `json:"timestamp"`
}
