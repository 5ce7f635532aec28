package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"agrodetect/models"
	"agrodetect/report"
	"agrodetect/service"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*models.AnalysisResponse
}

// UploadImage handles POST /api/analysis/upload
func (h *Handlers) UploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, "No image file provided", nil)
		return
	}
	if h.MaxUploadBytes > 0 && file.Size > h.MaxUploadBytes {
		fail(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("Image exceeds %d bytes", h.MaxUploadBytes), nil)
		return
	}

	f, err := file.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "Could not read image", nil)
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		fail(c, http.StatusBadRequest, "Could not read image", nil)
		return
	}

	// the analysis and its write complete even when the client goes away
	ctx := context.WithoutCancel(c.Request.Context())
	resp, err := h.Analysis.SubmitImage(ctx, service.ImageInput{Name: file.Filename, Data: data}, c.PostForm("scenario"))
	if err != nil {
		log.WithError(err).WithField("file", file.Filename).Error("Upload analysis failed")
		failErr(c, "Analysis failed", err)
		return
	}

	c.JSON(http.StatusOK, uploadResponse{Success: true, Message: "Analysis complete", AnalysisResponse: resp})
}

// GetHistory handles GET /api/analysis/history
func (h *Handlers) GetHistory(c *gin.Context) {
	page := positiveInt(c.Query("page"), 0)
	limit := positiveInt(c.Query("limit"), 0)

	result, err := h.Scans.ListScans(c.Request.Context(), page, limit)
	if err != nil {
		log.WithError(err).Error("Failed to fetch history")
		fail(c, http.StatusInternalServerError, "Failed to fetch history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"scans":      result.Scans,
		"pagination": result.Pagination,
	})
}

// positiveInt parses s, returning def for anything that is not a positive integer.
func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// GetStats handles GET /api/analysis/stats
func (h *Handlers) GetStats(c *gin.Context) {
	stats, err := h.Scans.Stats(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to compute stats")
		fail(c, http.StatusInternalServerError, "Failed to fetch stats", err)
		return
	}
	ok(c, stats)
}

// MLHealth handles GET /api/analysis/ml-health
func (h *Handlers) MLHealth(c *gin.Context) {
	ok(c, h.ML.HealthCheck(c.Request.Context()))
}

// GetScan handles GET /api/analysis/:id
func (h *Handlers) GetScan(c *gin.Context) {
	scan, err := h.Scans.GetScan(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, "Failed to fetch scan", err)
		return
	}
	ok(c, scan)
}

// DeleteScan handles DELETE /api/analysis/:id
func (h *Handlers) DeleteScan(c *gin.Context) {
	if _, err := h.Scans.DeleteScan(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, "Failed to delete scan", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Scan deleted successfully"})
}

// ScanReport handles GET /api/analysis/:id/report.pdf
func (h *Handlers) ScanReport(c *gin.Context) {
	scan, err := h.Scans.GetScan(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, "Failed to fetch scan", err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteScanPDF(&buf, scan, h.now()); err != nil {
		log.WithError(err).WithField("scan_id", scan.ID).Error("Failed to render report")
		fail(c, http.StatusInternalServerError, "Failed to render report", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="scan-%s.pdf"`, scan.ID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// LiveFeed handles GET /api/analysis/live
func (h *Handlers) LiveFeed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to upgrade live feed connection")
		return
	}
	h.Hub.Serve(conn)
}
