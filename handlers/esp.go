package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agrodetect/metrics"
	"agrodetect/models"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// EspUploadRequest is the JSON body an ESP32 camera posts
type EspUploadRequest struct {
	ImageBase64        string                     `json:"image_base64"`
	Crop               json.RawMessage            `json:"crop,omitempty"`
	EfficientNetOutput *models.EfficientNetOutput `json:"efficientnet_output,omitempty"`
	YoloOutput         json.RawMessage            `json:"yolo_output,omitempty"`
}

type espUploadData struct {
	ImageURL           string                     `json:"image_url"`
	Crop               json.RawMessage            `json:"crop,omitempty"`
	YoloOutput         json.RawMessage            `json:"yolo_output,omitempty"`
	EfficientNetOutput *models.EfficientNetOutput `json:"efficientnet_output,omitempty"`
	FinalDecision      models.FinalDecision       `json:"final_decision"`
	Timestamp          string                     `json:"timestamp"`
}

// finalDecision trusts the on-device classifier when it named a disease, and reports healthy otherwise.
func finalDecision(out *models.EfficientNetOutput) models.FinalDecision {
	if out == nil || out.PredictedDisease == "" {
		return models.FinalDecision{IsHealthy: true}
	}
	name := out.PredictedDisease
	return models.FinalDecision{
		DiseaseName: &name,
		IsHealthy:   strings.EqualFold(name, "healthy"),
		Confidence:  out.Confidence,
	}
}

// UploadEsp handles POST /api/analysis/upload-esp
func (h *Handlers) UploadEsp(c *gin.Context) {
	var req EspUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if req.ImageBase64 == "" {
		fail(c, http.StatusBadRequest, "image_base64 is required", nil)
		return
	}

	img, err := h.Frames.SaveBase64(req.ImageBase64)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("esp_error").Inc()
		log.WithError(err).Error("ESP upload failed")
		failErr(c, "ESP upload failed", err)
		return
	}
	metrics.UploadsTotal.WithLabelValues("esp").Inc()

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "ESP image saved",
		"data": espUploadData{
			ImageURL:           img.URL,
			Crop:               req.Crop,
			YoloOutput:         req.YoloOutput,
			EfficientNetOutput: req.EfficientNetOutput,
			FinalDecision:      finalDecision(req.EfficientNetOutput),
			Timestamp:          h.now().UTC().Format(time.RFC3339Nano),
		},
	})
}

type deviceRequest struct {
	DeviceID string `json:"device_id"`
	IP       string `json:"ip"`
	FreeHeap *int64 `json:"free_heap"`
}

func bindDevice(c *gin.Context) (deviceRequest, bool) {
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "Invalid request body", nil)
		return req, false
	}
	if req.DeviceID == "" {
		fail(c, http.StatusBadRequest, "device_id required", nil)
		return req, false
	}
	return req, true
}

// EspStatus handles POST /api/analysis/esp-status
func (h *Handlers) EspStatus(c *gin.Context) {
	req, valid := bindDevice(c)
	if !valid {
		return
	}

	device := h.Registry.Heartbeat(models.Heartbeat{DeviceID: req.DeviceID, IP: req.IP, FreeHeap: req.FreeHeap})
	metrics.EspHeartbeatsTotal.WithLabelValues("http").Inc()

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "ESP heartbeat received",
		"enabled":     device.Enabled,
		"server_time": h.now().UTC().Format(time.RFC3339Nano),
	})
}

// EspEnable handles POST /api/analysis/esp-enable
func (h *Handlers) EspEnable(c *gin.Context) {
	h.setEnabled(c, true)
}

// EspDisable handles POST /api/analysis/esp-disable
func (h *Handlers) EspDisable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *Handlers) setEnabled(c *gin.Context, enabled bool) {
	req, valid := bindDevice(c)
	if !valid {
		return
	}

	device := h.Registry.SetEnabled(req.DeviceID, enabled)
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	log.WithField("device_id", req.DeviceID).Infof("ESP %s", state)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("ESP %s %s", req.DeviceID, state),
		"data":    device,
	})
}

// ListEspDevices handles GET /api/analysis/esp-devices
func (h *Handlers) ListEspDevices(c *gin.Context) {
	ok(c, h.Registry.List())
}
