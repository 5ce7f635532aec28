package handlers

import "github.com/gin-gonic/gin"

const (
	EndPointRoot    = "/"
	EndPointHealth  = "/health"
	EndPointVersion = "/version"

	GroupAnalysis = "/api/analysis"
	GroupAI       = "/api/ai"
)

// RegisterRoutes mounts the API on router. aiMiddleware is applied to the /api/ai group only.
func RegisterRoutes(router gin.IRouter, h *Handlers, aiMiddleware ...gin.HandlerFunc) {
	router.GET(EndPointRoot, h.Root)
	router.GET(EndPointHealth, h.HealthCheck)
	router.GET(EndPointVersion, h.Version)

	analysis := router.Group(GroupAnalysis)
	{
		analysis.POST("/upload", h.UploadImage)
		analysis.POST("/upload-esp", h.UploadEsp)
		analysis.GET("/history", h.GetHistory)
		analysis.GET("/stats", h.GetStats)
		analysis.GET("/ml-health", h.MLHealth)
		analysis.GET("/live", h.LiveFeed)

		analysis.GET("/esp-devices", h.ListEspDevices)
		analysis.POST("/esp-status", h.EspStatus)
		analysis.POST("/esp-enable", h.EspEnable)
		analysis.POST("/esp-disable", h.EspDisable)

		analysis.GET("/:id", h.GetScan)
		analysis.DELETE("/:id", h.DeleteScan)
		analysis.GET("/:id/report.pdf", h.ScanReport)
	}

	ai := router.Group(GroupAI, aiMiddleware...)
	{
		ai.POST("/analyze", h.AnalyzeDisease)
		ai.POST("/explain", h.ExplainDisease)
		ai.POST("/farmer-advice", h.FarmerAdvice)
		ai.POST("/education", h.Education)
		ai.GET("/health", h.AIHealth)
		ai.POST("/chat", h.Chat)
	}
}
