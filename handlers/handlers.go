package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"agrodetect/database"
	"agrodetect/devices"
	"agrodetect/images"
	"agrodetect/models"
	"agrodetect/service"
	"agrodetect/version"
	ws "agrodetect/websocket"

	"github.com/gin-gonic/gin"
)

const ServiceName = "agrodetect"

// Analyzer runs the upload pipeline
type Analyzer interface {
	SubmitImage(ctx context.Context, in service.ImageInput, scenario string) (*models.AnalysisResponse, error)
}

// ScanReader is the read/delete side of the record store
type ScanReader interface {
	GetScan(ctx context.Context, id string) (*models.ScanRecord, error)
	DeleteScan(ctx context.Context, id string) (*models.ScanRecord, error)
	ListScans(ctx context.Context, page, limit int) (*models.ScanPage, error)
	Stats(ctx context.Context) (*models.ScanStats, error)
}

// FrameStore stores base64 frames sent by ESP devices
type FrameStore interface {
	SaveBase64(payload string) (*images.Image, error)
}

// MLHealth probes the inference service
type MLHealth interface {
	HealthCheck(ctx context.Context) models.ServiceHealth
}

// AIAdvisor is the structured and free-text LLM surface
type AIAdvisor interface {
	AnalyzeDisease(ctx context.Context, disease string, confidence float64, scenario models.Scenario) (*models.Advisory, error)
	ExplainDisease(ctx context.Context, disease string, confidence float64) (*models.Explanation, error)
	FarmerAdvice(ctx context.Context, disease string, confidence float64, crop string) (*models.FarmerAdvice, error)
	EducationalExplanation(ctx context.Context, disease string, confidence float64) (*models.EducationalContent, error)
	CheckHealth(ctx context.Context) models.ServiceHealth
}

// Chatter answers chat messages
type Chatter interface {
	Chat(ctx context.Context, message, scenario string) (*models.ChatReply, error)
}

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
	Dialect() string
}

// Deps groups the collaborators of the HTTP layer
type Deps struct {
	Analysis       Analyzer
	Scans          ScanReader
	Frames         FrameStore
	ML             MLHealth
	AI             AIAdvisor
	ChatService    Chatter
	Registry       *devices.Registry
	Hub            *ws.Hub
	DB             Pinger
	MaxUploadBytes int64
}

// Handlers contains all HTTP handlers
type Handlers struct {
	Deps
	now func() time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{Deps: deps, now: time.Now}
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, status int, message string, err error) {
	body := gin.H{"success": false, "message": message}
	if err != nil && status >= http.StatusInternalServerError {
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}

// failErr answers with the status of err; client errors carry err's own message.
func failErr(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		message = err.Error()
	}
	fail(c, status, message, err)
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Root returns the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":  "AgroDetect AI Backend",
		"status":   "running",
		"version":  version.BuildVersion,
		"features":  []string{"ML Prediction", "AI Analysis", "Database Storage", "IoT Integration", "Live Feed"},
		"scenarios": models.Scenarios,
		"endpoints": []string{
			"POST /api/analysis/upload - Web image upload with AI analysis",
			"POST /api/analysis/upload-esp - ESP32 base64 image upload",
			"GET /api/analysis/history - Get scan history",
			"GET /api/analysis/stats - Get scan statistics",
			"GET /api/analysis/ml-health - Check ML service health",
			"GET /api/analysis/live - Live scan feed (websocket)",
			"GET /api/analysis/esp-devices - List ESP devices",
			"GET /api/analysis/:id - Get single scan",
			"DELETE /api/analysis/:id - Delete scan",
			"GET /api/analysis/:id/report.pdf - Export scan report",
			"POST /api/analysis/esp-status - ESP heartbeat",
			"POST /api/analysis/esp-enable - Enable ESP device",
			"POST /api/analysis/esp-disable - Disable ESP device",
			"POST /api/ai/analyze - Scenario-aware disease analysis",
			"POST /api/ai/explain - Get disease explanation",
			"POST /api/ai/farmer-advice - Get farmer advice",
			"POST /api/ai/education - Get educational content",
			"POST /api/ai/chat - Scenario-aware chat",
			"GET /api/ai/health - Check AI service health",
		},
	})
}

// HealthCheck returns the service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	status := "healthy"
	dbStatus := "ok"
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			status = "degraded"
			dbStatus = err.Error()
		}
	}

	body := gin.H{
		"status":    status,
		"service":   ServiceName,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"database":  dbStatus,
	}
	if h.DB != nil {
		body["database_driver"] = h.DB.Dialect()
	}
	if h.Hub != nil {
		body["live_clients"] = h.Hub.ClientCount()
	}
	c.JSON(http.StatusOK, body)
}

// Version returns build information
func (h *Handlers) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get(ServiceName))
}
