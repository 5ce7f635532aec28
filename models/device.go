package models

import "time"

// EspDevice represents an ESP32 camera unit known from its heartbeats
type EspDevice struct {
	DeviceID string     `json:"device_id"`
	Enabled  bool       `json:"enabled"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
	IP       string     `json:"ip,omitempty"`
	FreeHeap *int64     `json:"free_heap,omitempty"`
}

// Heartbeat is the status payload an ESP unit reports
type Heartbeat struct {
	DeviceID string `json:"device_id"`
	IP       string `json:"ip"`
	FreeHeap *int64 `json:"free_heap"`
}

// EspControl is pushed to a device when it is enabled or disabled
type EspControl struct {
	DeviceID string `json:"device_id"`
	Enabled  bool   `json:"enabled"`
}

// EfficientNetOutput is the on-device classifier output attached to ESP uploads
type EfficientNetOutput struct {
	PredictedDisease string  `json:"predicted_disease"`
	Confidence       float64 `json:"confidence"`
}

// FinalDecision summarises an ESP upload
type FinalDecision struct {
	DiseaseName *string `json:"disease_name"`
	IsHealthy   bool    `json:"is_healthy"`
	Confidence  float64 `json:"confidence"`
}
