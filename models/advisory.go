package models

// Advisory is the structured treatment and prevention guidance for one diagnosis
type Advisory struct {
	Scenario   Scenario `json:"scenario"`
	Disease    string   `json:"disease"`
	Confidence float64  `json:"confidence"`
	Severity   Severity `json:"severity"`
	Summary    string   `json:"summary"`
	Actions    []string `json:"actions"`
	Prevention []string `json:"prevention"`
}

// Analysis returns the persisted part of the advisory
func (a *Advisory) Analysis() AIAnalysis {
	return AIAnalysis{
		Summary:    a.Summary,
		Actions:    a.Actions,
		Prevention: a.Prevention,
	}
}

// Explanation is a plain-language description of a disease
type Explanation struct {
	Disease     string  `json:"disease"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// FarmerAdvice is practical advice for a grower
type FarmerAdvice struct {
	Disease string `json:"disease"`
	Crop    string `json:"crop"`
	Advice  string `json:"advice"`
	Urgency string `json:"urgency"`
}

// EducationalContent is a plant pathology lesson
type EducationalContent struct {
	Disease            string  `json:"disease"`
	Confidence         float64 `json:"confidence"`
	EducationalContent string  `json:"educational_content"`
	DifficultyLevel    string  `json:"difficulty_level"`
}

// LLMModel is one model advertised by the LLM service
type LLMModel struct {
	Name       string `json:"name"`
	Model      string `json:"model,omitempty"`
	Size       int64  `json:"size,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

// ServiceHealth is the status of an external AI dependency
type ServiceHealth struct {
	Status      string     `json:"status"`
	Models      []LLMModel `json:"models,omitempty"`
	Device      string     `json:"device,omitempty"`
	ModelLoaded *bool      `json:"model_loaded,omitempty"`
	Error       string     `json:"error,omitempty"`
}

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ChatReply is the answer of the conversational endpoint
type ChatReply struct {
	Response string   `json:"response"`
	Scenario Scenario `json:"scenario"`
}
