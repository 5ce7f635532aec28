package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"agrodetect/models"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no scan has the requested id
var ErrNotFound = errors.New("Scan not found")

const (
	DefaultPage  = 1
	DefaultLimit = 10

	scanColumns = `id, disease, confidence, severity, scenario, image_url, ai_analysis, model_used, processing_time, timestamp_ms`
)

// ScanStore persists ScanRecords. Queries use ? placeholders and run on MySQL and SQLite alike.
type ScanStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewScanStore(db *sql.DB) *ScanStore {
	return &ScanStore{db: db, now: time.Now}
}

func validateScan(r *models.ScanRecord) error {
	if r.Disease == "" {
		return models.NewValidationError("disease is required")
	}
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return models.NewValidationError(fmt.Sprintf("confidence %v must be between 0 and 1", r.Confidence))
	}
	if !r.Severity.Valid() {
		return models.NewValidationError(fmt.Sprintf("severity %q is not one of High, Moderate, Uncertain", r.Severity))
	}
	if !r.Scenario.Valid() {
		return models.NewValidationError(fmt.Sprintf("scenario %q is not a known scenario", r.Scenario))
	}
	return nil
}

// CreateScan validates and stores a record, assigning its id and defaults.
// The input is not modified; the stored record is returned.
func (s *ScanStore) CreateScan(ctx context.Context, record *models.ScanRecord) (*models.ScanRecord, error) {
	rec := *record
	if rec.Scenario == "" {
		rec.Scenario = models.DefaultScenario
	}
	if rec.ModelUsed == "" {
		rec.ModelUsed = models.DefaultModelUsed
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	rec.Timestamp = rec.Timestamp.UTC().Truncate(time.Millisecond)
	if rec.AIAnalysis.Actions == nil {
		rec.AIAnalysis.Actions = []string{}
	}
	if rec.AIAnalysis.Prevention == nil {
		rec.AIAnalysis.Prevention = []string{}
	}
	if err := validateScan(&rec); err != nil {
		return nil, err
	}
	rec.ID = uuid.NewString()

	analysis, err := json.Marshal(rec.AIAnalysis)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ai_analysis: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (`+scanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Disease, rec.Confidence, string(rec.Severity), string(rec.Scenario),
		rec.ImageURL, string(analysis), rec.ModelUsed, rec.ProcessingTime, rec.Timestamp.UnixMilli())
	logResult("CreateScan", result, err)
	if err != nil {
		return nil, fmt.Errorf("failed to insert scan: %w", err)
	}
	return &rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ScanRecord, error) {
	var (
		rec            models.ScanRecord
		severity       string
		scenario       string
		imageURL       sql.NullString
		analysis       sql.NullString
		processingTime sql.NullFloat64
		timestampMs    int64
	)
	if err := row.Scan(&rec.ID, &rec.Disease, &rec.Confidence, &severity, &scenario,
		&imageURL, &analysis, &rec.ModelUsed, &processingTime, &timestampMs); err != nil {
		return nil, err
	}
	rec.Severity = models.Severity(severity)
	rec.Scenario = models.Scenario(scenario)
	rec.ImageURL = imageURL.String
	rec.ProcessingTime = processingTime.Float64
	rec.Timestamp = time.UnixMilli(timestampMs).UTC()
	if analysis.Valid && analysis.String != "" {
		if err := json.Unmarshal([]byte(analysis.String), &rec.AIAnalysis); err != nil {
			return nil, fmt.Errorf("failed to decode ai_analysis of %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

// GetScan returns the record with the given id, or ErrNotFound.
func (s *ScanStore) GetScan(ctx context.Context, id string) (*models.ScanRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan %s: %w", id, err)
	}
	return rec, nil
}

// DeleteScan removes the record and returns it, or ErrNotFound.
func (s *ScanStore) DeleteScan(ctx context.Context, id string) (*models.ScanRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rec, err := scanRecord(tx.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan %s: %w", id, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	logResult("DeleteScan", result, err)
	if err != nil {
		return nil, fmt.Errorf("failed to delete scan %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete of %s: %w", id, err)
	}
	return rec, nil
}

// ListScans returns one page of scans, newest first. Non-positive page or limit take the defaults.
func (s *ScanStore) ListScans(ctx context.Context, page, limit int) (*models.ScanPage, error) {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count scans: %w", err)
	}

	result := &models.ScanPage{
		Scans: []*models.ScanRecord{},
		Pagination: models.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages(total, limit),
		},
	}
	// an offset past MaxInt is past every row
	if page-1 > math.MaxInt/limit {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scanColumns+`
		FROM scans
		ORDER BY timestamp_ms DESC, id DESC
		LIMIT ? OFFSET ?`, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	scans := result.Scans
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read scan: %w", err)
		}
		scans = append(scans, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scans: %w", err)
	}

	result.Scans = scans
	return result, nil
}

func totalPages(total, limit int) int {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return pages
}

// Stats aggregates the stored scans by disease and severity.
func (s *ScanStore) Stats(ctx context.Context) (*models.ScanStats, error) {
	stats := &models.ScanStats{
		ByDisease:  map[string]int{},
		BySeverity: map[string]int{},
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to count scans: %w", err)
	}
	if err := s.countBy(ctx, "disease", stats.ByDisease); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "severity", stats.BySeverity); err != nil {
		return nil, err
	}
	return stats, nil
}

// countBy groups on a fixed column name; it is never caller-supplied.
func (s *ScanStore) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+column+`, COUNT(*) FROM scans GROUP BY `+column)
	if err != nil {
		return fmt.Errorf("failed to group scans by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("failed to read %s count: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}

func logResult(operation string, result sql.Result, err error) {
	if err != nil {
		log.Errorf("Error in %s: %v", operation, err)
		return
	}
	rowsAffected, _ := result.RowsAffected()
	log.Debugf("%s: %d rows affected", operation, rowsAffected)
}
