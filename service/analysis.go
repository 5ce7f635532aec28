package service

import (
	"context"
	"fmt"
	"time"

	"agrodetect/advisor"
	"agrodetect/images"
	"agrodetect/metrics"
	"agrodetect/models"
	"agrodetect/parser"

	"github.com/apex/log"
)

// TimestampFormat is the millisecond ISO-8601 layout used in API responses.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// ImageInput is one uploaded file.
type ImageInput struct {
	Name string
	Data []byte
}

// ImageStore writes and removes uploaded images.
type ImageStore interface {
	Save(name string, data []byte) (*images.Image, error)
	Remove(path string) error
}

// Predictor classifies a stored image.
type Predictor interface {
	Predict(ctx context.Context, imagePath string) (*models.DiagnosisResult, error)
}

// DiseaseAdvisor produces the structured advisory for a diagnosis.
type DiseaseAdvisor interface {
	AnalyzeDisease(ctx context.Context, disease string, confidence float64, scenario models.Scenario) (*models.Advisory, error)
}

// ScanRepository persists scan records.
type ScanRepository interface {
	CreateScan(ctx context.Context, record *models.ScanRecord) (*models.ScanRecord, error)
}

// ScanListener is notified after a scan has been persisted. Implementations must not block.
type ScanListener interface {
	ScanCreated(record *models.ScanRecord)
}

// AnalysisService runs the upload pipeline: inference, advisory, persistence.
type AnalysisService struct {
	images    ImageStore
	predictor Predictor
	advisor   DiseaseAdvisor
	scans     ScanRepository
	listeners []ScanListener
	now       func() time.Time
}

// NewAnalysisService creates the upload pipeline. Listeners may be added later with AddListener.
func NewAnalysisService(store ImageStore, predictor Predictor, adv DiseaseAdvisor, scans ScanRepository) *AnalysisService {
	return &AnalysisService{
		images:    store,
		predictor: predictor,
		advisor:   adv,
		scans:     scans,
		now:       time.Now,
	}
}

// AddListener registers a listener for persisted scans. Call before serving.
func (s *AnalysisService) AddListener(l ScanListener) {
	s.listeners = append(s.listeners, l)
}

// SubmitImage stores the image, classifies it, asks for an advisory and persists the result.
// Only image storage and inference failures fail the call; the advisory and persistence degrade.
func (s *AnalysisService) SubmitImage(ctx context.Context, in ImageInput, rawScenario string) (*models.AnalysisResponse, error) {
	start := s.now()
	scenario := models.ScenarioOrDefault(rawScenario)

	img, err := s.images.Save(in.Name, in.Data)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("invalid_image").Inc()
		return nil, err
	}

	diagnosis, err := s.predictor.Predict(ctx, img.Path)
	if err != nil {
		_ = s.images.Remove(img.Path)
		metrics.UploadsTotal.WithLabelValues("inference_error").Inc()
		log.WithError(err).WithField("image", img.URL).Error("Inference failed")
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	advisory := s.advisoryOrFallback(ctx, diagnosis, scenario)
	advisory.Actions = parser.SanitizeStrings(advisory.Actions)
	advisory.Prevention = parser.SanitizeStrings(advisory.Prevention)

	modelUsed := diagnosis.Model
	if modelUsed == "" {
		modelUsed = models.DefaultModelUsed
	}
	processing := s.now().Sub(start).Seconds()

	record := &models.ScanRecord{
		Disease:        diagnosis.Disease,
		Confidence:     diagnosis.Confidence,
		Severity:       advisory.Severity,
		Scenario:       scenario,
		ImageURL:       img.URL,
		AIAnalysis:     advisory.Analysis(),
		ModelUsed:      modelUsed,
		ProcessingTime: processing,
		Timestamp:      s.now(),
	}
	saved := s.persist(ctx, record)

	resp := &models.AnalysisResponse{
		Disease:        diagnosis.Disease,
		Confidence:     diagnosis.Confidence,
		Model:          diagnosis.Model,
		ProcessingTime: fmt.Sprintf("%.2f", processing),
		ImageURL:       img.URL,
		AIAnalysis:     advisory,
		Timestamp:      record.Timestamp.UTC().Format(TimestampFormat),
	}
	if saved != nil {
		resp.ScanID = saved.ID
		resp.Timestamp = saved.Timestamp.Format(TimestampFormat)
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	metrics.AnalysisDurationSeconds.Observe(s.now().Sub(start).Seconds())
	return resp, nil
}

// advisoryOrFallback returns the LLM advisory, or the deterministic fallback when the LLM call fails.
func (s *AnalysisService) advisoryOrFallback(ctx context.Context, d *models.DiagnosisResult, scenario models.Scenario) *models.Advisory {
	advisory, err := s.advisor.AnalyzeDisease(ctx, d.Disease, d.Confidence, scenario)
	if err != nil {
		log.WithError(err).WithField("disease", d.Disease).Warn("LLM advisory unavailable, using fallback")
		metrics.AdvisoryFallbackTotal.WithLabelValues("llm_error").Inc()
		return advisor.FallbackResponse(d.Disease, d.Confidence, scenario)
	}
	return advisory
}

// persist stores the record and notifies listeners. A failure is logged and yields nil.
func (s *AnalysisService) persist(ctx context.Context, record *models.ScanRecord) *models.ScanRecord {
	saved, err := s.scans.CreateScan(ctx, record)
	if err != nil {
		log.WithError(err).WithField("disease", record.Disease).Error("Failed to save scan, continuing without scan_id")
		metrics.PersistErrorTotal.Inc()
		return nil
	}

	for _, l := range s.listeners {
		l.ScanCreated(saved)
	}
	return saved
}
