package database

import (
	"database/sql"
	"fmt"
	"log"
)

// schemaVersion is the version this build expects. Version 1 predates the
// source column on assessments.
const schemaVersion = 2

// CreateTables creates all service tables if they don't exist
func (d *Database) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS leads (
			email VARCHAR(320) NOT NULL PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_leads_created (created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS assessments (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(320) NOT NULL,
			route VARCHAR(64) NOT NULL,
			score INT NOT NULL,
			source VARCHAR(64) DEFAULT '',
			input_data JSON,
			result_data JSON,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_assessments_created (created_at),
			INDEX idx_assessments_route (route),
			INDEX idx_assessments_email (email)
		)`,
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id VARCHAR(36) NOT NULL PRIMARY KEY,
			version INT NOT NULL,
			profile JSON NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS advisor_cache (
			cell_id BIGINT UNSIGNED NOT NULL PRIMARY KEY,
			directory JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP NOT NULL,
			INDEX idx_advisor_expires (expires_at)
		)`,
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Println("service tables created/verified successfully")
	return nil
}

// columnExists checks if a column exists in a table
func (d *Database) columnExists(tableName, columnName string) (bool, error) {
	query := `
	SELECT COUNT(*)
	FROM INFORMATION_SCHEMA.COLUMNS
	WHERE TABLE_SCHEMA = DATABASE()
	AND TABLE_NAME = ?
	AND COLUMN_NAME = ?`

	var count int
	err := d.db.QueryRow(query, tableName, columnName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check if column exists: %w", err)
	}

	return count > 0, nil
}

// Migrate brings an existing schema up to the current version and records
// the result in schema_version.
func (d *Database) Migrate() error {
	current, err := d.storedSchemaVersion()
	if err != nil {
		return err
	}

	if current < 2 {
		exists, err := d.columnExists("assessments", "source")
		if err != nil {
			return fmt.Errorf("failed to check if source column exists: %w", err)
		}
		if !exists {
			log.Printf("Adding source column to assessments table...")
			if _, err := d.db.Exec("ALTER TABLE assessments ADD COLUMN source VARCHAR(64) DEFAULT ''"); err != nil {
				return fmt.Errorf("failed to add source column: %w", err)
			}
			log.Printf("Successfully added source column to assessments table")
		} else {
			log.Printf("source column already exists in assessments table, skipping migration")
		}
	}

	return d.writeSchemaVersion(schemaVersion)
}

func (d *Database) storedSchemaVersion() (int, error) {
	var version sql.NullInt64
	err := d.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

func (d *Database) writeSchemaVersion(version int) error {
	if _, err := d.db.Exec(`DELETE FROM schema_version`); err != nil {
		return fmt.Errorf("failed to clear schema version: %w", err)
	}
	if _, err := d.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	log.Printf("schema at version %d", version)
	return nil
}
