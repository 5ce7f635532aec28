package report

import (
	"bytes"
	"testing"
	"time"

	"agrodetect/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteScanPDF(t *testing.T) {
	rec := &models.ScanRecord{
		ID:         "3f0e6c1a-0000-4000-8000-000000000001",
		Disease:    "Tomato Early Blight",
		Confidence: 0.91,
		Severity:   models.SeverityHigh,
		Scenario:   models.ScenarioFarmMonitoring,
		AIAnalysis: models.AIAnalysis{
			Summary:    "Fungal leaf spots with concentric rings.",
			Actions:    []string{"Remove infected leaves", "Apply copper fungicide"},
			Prevention: []string{"Rotate crops"},
		},
		ModelUsed: "EfficientNetB0",
		Timestamp: time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteScanPDF(&buf, rec, time.Now()))

	out := buf.Bytes()
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Contains(t, string(out), "%%EOF")
}

func TestWriteScanPDFEmptyAnalysis(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScanPDF(&buf, &models.ScanRecord{ID: "x", Disease: "Healthy"}, time.Now()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}
