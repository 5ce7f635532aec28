package database

import (
	"database/sql"
	"fmt"

	"agrodetect/config"

	"github.com/apex/log"
)

const mysqlScansTable = `
	CREATE TABLE IF NOT EXISTS scans(
		id CHAR(36) NOT NULL,
		disease VARCHAR(255) NOT NULL,
		confidence DOUBLE NOT NULL,
		severity ENUM('High', 'Moderate', 'Uncertain') NOT NULL,
		scenario ENUM('farm_monitoring', 'home_gardener', 'agricultural_training') NOT NULL DEFAULT 'farm_monitoring',
		image_url VARCHAR(512),
		ai_analysis JSON,
		model_used VARCHAR(255) NOT NULL DEFAULT 'EfficientNetB0',
		processing_time DOUBLE,
		timestamp_ms BIGINT NOT NULL,
		PRIMARY KEY (id),
		INDEX timestamp_index (timestamp_ms),
		INDEX disease_index (disease)
	)`

var sqliteStatements = []string{`
	CREATE TABLE IF NOT EXISTS scans(
		id TEXT NOT NULL PRIMARY KEY,
		disease TEXT NOT NULL,
		confidence REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
		severity TEXT NOT NULL CHECK (severity IN ('High', 'Moderate', 'Uncertain')),
		scenario TEXT NOT NULL DEFAULT 'farm_monitoring'
			CHECK (scenario IN ('farm_monitoring', 'home_gardener', 'agricultural_training')),
		image_url TEXT,
		ai_analysis TEXT,
		model_used TEXT NOT NULL DEFAULT 'EfficientNetB0',
		processing_time REAL,
		timestamp_ms INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scans_timestamp ON scans(timestamp_ms)`,
	`CREATE INDEX IF NOT EXISTS idx_scans_disease ON scans(disease)`,
}

// InitSchema creates the necessary database tables if they don't exist
func InitSchema(db *sql.DB, dialect string) error {
	log.Infof("Initializing %s database schema...", dialect)

	statements := []string{mysqlScansTable}
	if dialect == config.DriverSQLite {
		statements = sqliteStatements
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create scans table: %w", err)
		}
	}
	log.Info("Scans table created/verified")
	return nil
}
