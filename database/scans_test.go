package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"agrodetect/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

var cols = []string{"id", "disease", "confidence", "severity", "scenario", "image_url", "ai_analysis", "model_used", "processing_time", "timestamp_ms"}

var fixedNow = time.Date(2024, 5, 1, 10, 30, 0, 123456789, time.UTC)

func newMockStore() *ScanStore {
	s := NewScanStore(db)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestCreateScan(t *testing.T) {
	it(func() {
		s := newMockStore()
		in := &models.ScanRecord{
			Disease:        "Tomato Early Blight",
			Confidence:     0.92,
			Severity:       models.SeverityHigh,
			ImageURL:       "/uploads/plant_images/1-leaf.jpg",
			AIAnalysis:     models.AIAnalysis{Summary: "s", Actions: []string{"a"}, Prevention: []string{"p"}},
			ProcessingTime: 1.25,
		}

		mock.ExpectExec("INSERT INTO scans").
			WithArgs(sqlmock.AnyArg(), "Tomato Early Blight", 0.92, "High", "farm_monitoring",
				"/uploads/plant_images/1-leaf.jpg", `{"summary":"s","actions":["a"],"prevention":["p"]}`,
				"EfficientNetB0", 1.25, fixedNow.UnixMilli()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		got, err := s.CreateScan(context.Background(), in)
		if err != nil {
			t.Fatalf("CreateScan() error = %v", err)
		}
		if len(got.ID) != 36 {
			t.Errorf("expected uuid id, got %q", got.ID)
		}
		if got.Scenario != models.ScenarioFarmMonitoring || got.ModelUsed != models.DefaultModelUsed {
			t.Errorf("defaults not applied: %+v", got)
		}
		if !got.Timestamp.Equal(fixedNow.Truncate(time.Millisecond)) {
			t.Errorf("Timestamp = %v", got.Timestamp)
		}
		if in.ID != "" {
			t.Error("input record must not be modified")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestCreateScanValidation(t *testing.T) {
	it(func() {
		s := newMockStore()
		testCases := []struct {
			name   string
			record models.ScanRecord
		}{
			{"missing disease", models.ScanRecord{Confidence: 0.5, Severity: models.SeverityUncertain}},
			{"confidence above 1", models.ScanRecord{Disease: "Rust", Confidence: 1.5, Severity: models.SeverityHigh}},
			{"negative confidence", models.ScanRecord{Disease: "Rust", Confidence: -0.1, Severity: models.SeverityHigh}},
			{"lowercase severity", models.ScanRecord{Disease: "Rust", Confidence: 0.9, Severity: "high"}},
			{"unknown scenario", models.ScanRecord{Disease: "Rust", Confidence: 0.9, Severity: models.SeverityHigh, Scenario: "greenhouse"}},
		}

		for _, tc := range testCases {
			_, err := s.CreateScan(context.Background(), &tc.record)
			var vErr *models.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("%s: expected ValidationError, got %v", tc.name, err)
			}
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("no query expected: %s", err)
		}
	})
}

func TestGetScan(t *testing.T) {
	it(func() {
		s := newMockStore()
		mock.ExpectQuery(`SELECT (.+) FROM scans WHERE id = \?`).
			WithArgs("abc").
			WillReturnRows(sqlmock.NewRows(cols).AddRow("abc", "Rust", 0.7, "Moderate", "home_gardener",
				"/uploads/plant_images/x.jpg", `{"summary":"s","actions":["a"],"prevention":["p"]}`,
				"EfficientNetB0", 2.5, fixedNow.UnixMilli()))

		got, err := s.GetScan(context.Background(), "abc")
		if err != nil {
			t.Fatalf("GetScan() error = %v", err)
		}
		if got.Disease != "Rust" || got.Severity != models.SeverityModerate || got.Scenario != models.ScenarioHomeGardener {
			t.Errorf("unexpected record %+v", got)
		}
		if len(got.AIAnalysis.Actions) != 1 || got.AIAnalysis.Actions[0] != "a" {
			t.Errorf("ai_analysis not decoded: %+v", got.AIAnalysis)
		}
		if got.Timestamp.UnixMilli() != fixedNow.UnixMilli() {
			t.Errorf("Timestamp = %v", got.Timestamp)
		}
	})
}

func TestGetScanNotFound(t *testing.T) {
	it(func() {
		s := newMockStore()
		mock.ExpectQuery(`SELECT (.+) FROM scans WHERE id = \?`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(cols))

		_, err := s.GetScan(context.Background(), "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteScan(t *testing.T) {
	it(func() {
		s := newMockStore()
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM scans WHERE id = \?`).
			WithArgs("abc").
			WillReturnRows(sqlmock.NewRows(cols).AddRow("abc", "Rust", 0.7, "Moderate", "farm_monitoring",
				nil, nil, "EfficientNetB0", nil, fixedNow.UnixMilli()))
		mock.ExpectExec(`DELETE FROM scans WHERE id = \?`).
			WithArgs("abc").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		got, err := s.DeleteScan(context.Background(), "abc")
		if err != nil {
			t.Fatalf("DeleteScan() error = %v", err)
		}
		if got.ID != "abc" {
			t.Errorf("ID = %q", got.ID)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestDeleteScanNotFound(t *testing.T) {
	it(func() {
		s := newMockStore()
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM scans WHERE id = \?`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(cols))
		mock.ExpectRollback()

		_, err := s.DeleteScan(context.Background(), "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestListScansDefaults(t *testing.T) {
	it(func() {
		s := newMockStore()
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scans`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(`SELECT (.+) FROM scans ORDER BY timestamp_ms DESC, id DESC LIMIT \? OFFSET \?`).
			WithArgs(10, 0).
			WillReturnRows(sqlmock.NewRows(cols))

		got, err := s.ListScans(context.Background(), 0, -3)
		if err != nil {
			t.Fatalf("ListScans() error = %v", err)
		}
		want := models.Pagination{Page: 1, Limit: 10, Total: 0, TotalPages: 0}
		if got.Pagination != want {
			t.Errorf("Pagination = %+v, want %+v", got.Pagination, want)
		}
		if got.Scans == nil {
			t.Error("Scans must be an empty list, not nil")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestStats(t *testing.T) {
	it(func() {
		s := newMockStore()
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scans`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectQuery(`SELECT disease, COUNT\(\*\) FROM scans GROUP BY disease`).
			WillReturnRows(sqlmock.NewRows([]string{"disease", "count"}).AddRow("Rust", 2).AddRow("Healthy", 1))
		mock.ExpectQuery(`SELECT severity, COUNT\(\*\) FROM scans GROUP BY severity`).
			WillReturnRows(sqlmock.NewRows([]string{"severity", "count"}).AddRow("High", 3))

		got, err := s.Stats(context.Background())
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if got.Total != 3 || got.ByDisease["Rust"] != 2 || got.BySeverity["High"] != 3 {
			t.Errorf("unexpected stats %+v", got)
		}
	})
}
