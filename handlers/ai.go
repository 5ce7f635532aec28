package handlers

import (
	"errors"
	"io"
	"net/http"

	"agrodetect/advisor"
	"agrodetect/models"
	"agrodetect/service"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

const (
	defaultConfidence = 0.5

	explainFallback   = "AI service unavailable. Please try again later."
	adviceFallback    = "AI service unavailable. Please consult local agricultural extension."
	educationFallback = "AI service unavailable. Please refer to textbook resources."
)

// AIRequest is the body shared by the /api/ai disease endpoints
type AIRequest struct {
	Disease    string   `json:"disease"`
	Confidence *float64 `json:"confidence"`
	Scenario   string   `json:"scenario"`
	Crop       string   `json:"crop"`
}

// confidence returns the requested confidence; missing or zero means 0.5.
func (r AIRequest) confidence() float64 {
	if r.Confidence == nil || *r.Confidence == 0 {
		return defaultConfidence
	}
	return *r.Confidence
}

func bindAIRequest(c *gin.Context) (AIRequest, bool) {
	var req AIRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "Invalid request body", nil)
		return req, false
	}
	if req.Disease == "" {
		fail(c, http.StatusBadRequest, "Disease name is required", nil)
		return req, false
	}
	return req, true
}

// aiFailure answers 500 with the error message and a fallback payload.
func aiFailure(c *gin.Context, op string, err error, fallback any) {
	log.WithError(err).Errorf("%s failed", op)
	c.JSON(http.StatusInternalServerError, gin.H{
		"success":  false,
		"message":  err.Error(),
		"fallback": fallback,
	})
}

// AnalyzeDisease handles POST /api/ai/analyze
func (h *Handlers) AnalyzeDisease(c *gin.Context) {
	req, valid := bindAIRequest(c)
	if !valid {
		return
	}
	scenario := models.ScenarioOrDefault(req.Scenario)

	result, err := h.AI.AnalyzeDisease(c.Request.Context(), req.Disease, req.confidence(), scenario)
	if err != nil {
		aiFailure(c, "Analyze disease", err, advisor.FallbackResponse(req.Disease, req.confidence(), scenario))
		return
	}
	ok(c, result)
}

// ExplainDisease handles POST /api/ai/explain
func (h *Handlers) ExplainDisease(c *gin.Context) {
	req, valid := bindAIRequest(c)
	if !valid {
		return
	}

	result, err := h.AI.ExplainDisease(c.Request.Context(), req.Disease, req.confidence())
	if err != nil {
		aiFailure(c, "Explain disease", err, explainFallback)
		return
	}
	ok(c, result)
}

// FarmerAdvice handles POST /api/ai/farmer-advice
func (h *Handlers) FarmerAdvice(c *gin.Context) {
	req, valid := bindAIRequest(c)
	if !valid {
		return
	}

	result, err := h.AI.FarmerAdvice(c.Request.Context(), req.Disease, req.confidence(), req.Crop)
	if err != nil {
		aiFailure(c, "Farmer advice", err, adviceFallback)
		return
	}
	ok(c, result)
}

// Education handles POST /api/ai/education
func (h *Handlers) Education(c *gin.Context) {
	req, valid := bindAIRequest(c)
	if !valid {
		return
	}

	result, err := h.AI.EducationalExplanation(c.Request.Context(), req.Disease, req.confidence())
	if err != nil {
		aiFailure(c, "Educational explanation", err, educationFallback)
		return
	}
	ok(c, result)
}

// AIHealth handles GET /api/ai/health
func (h *Handlers) AIHealth(c *gin.Context) {
	ok(c, h.AI.CheckHealth(c.Request.Context()))
}

type chatRequest struct {
	Message  string `json:"message"`
	Scenario string `json:"scenario"`
}

// Chat handles POST /api/ai/chat
func (h *Handlers) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	reply, err := h.ChatService.Chat(c.Request.Context(), req.Message, req.Scenario)
	if err != nil {
		status := statusFor(err)
		if status < http.StatusInternalServerError {
			fail(c, status, err.Error(), nil)
			return
		}
		apology := service.ChatApology
		if reply != nil {
			apology = reply.Response
		}
		c.JSON(status, gin.H{
			"success": false,
			"message": err.Error(),
			"data":    gin.H{"response": apology},
		})
		return
	}
	ok(c, reply)
}
