package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"visa-assessor/config"
	"visa-assessor/models"
)

// Database represents the database connection
type Database struct {
	db *sql.DB
}

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection with bounded exponential backoff
	deadline := time.Now().Add(60 * time.Second)
	waitInterval := 1 * time.Second
	for {
		pingErr := db.Ping()
		if pingErr == nil {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("database ping timeout: %w", pingErr)
		}
		log.Printf("Database connection failed, retrying in %v: %v", waitInterval, pingErr)
		time.Sleep(waitInterval)
		waitInterval *= 2
		if waitInterval > 15*time.Second {
			waitInterval = 15 * time.Second
		}
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Database{db: db}, nil
}

// NewWithDB wraps an existing connection; used by tests.
func NewWithDB(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// GetDB returns the underlying sql.DB for direct queries
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// UpsertLead inserts a lead or refreshes an existing one, keyed on email.
// Returns true when the email was not seen before.
func (d *Database) UpsertLead(email string) (bool, error) {
	query := `
	INSERT INTO leads (email)
	VALUES (?)
	ON DUPLICATE KEY UPDATE email = VALUES(email)`

	result, err := d.db.Exec(query, email)
	if err != nil {
		return false, fmt.Errorf("failed to upsert lead: %w", err)
	}

	// MySQL reports 1 affected row on insert, 0 on a no-op duplicate.
	rows, err := result.RowsAffected()
	if err != nil {
		return false, nil
	}
	return rows == 1, nil
}

// GetLeads returns all captured leads, newest first, without pagination.
func (d *Database) GetLeads() ([]models.Lead, error) {
	rows, err := d.db.Query(`SELECT email, created_at FROM leads ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var lead models.Lead
		if err := rows.Scan(&lead.Email, &lead.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// SaveAssessment stores one submitted questionnaire together with its
// analysis result. Insert-only; records are never mutated.
func (d *Database) SaveAssessment(rec *models.AssessmentRecord) error {
	query := `
	INSERT INTO assessments (id, name, email, route, score, source, input_data, result_data)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := d.db.Exec(query,
		rec.ID,
		rec.Name,
		rec.Email,
		rec.Route,
		rec.Score,
		rec.Source,
		[]byte(rec.InputData),
		[]byte(rec.ResultData),
	)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

// GetAssessments returns all stored assessments, newest first, without
// pagination. Raw input/result JSON is included.
func (d *Database) GetAssessments() ([]models.AssessmentRecord, error) {
	query := `
	SELECT id, name, email, route, score, source, input_data, result_data, created_at
	FROM assessments
	ORDER BY created_at DESC`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var records []models.AssessmentRecord
	for rows.Next() {
		var rec models.AssessmentRecord
		var input, result sql.NullString
		var source sql.NullString
		err := rows.Scan(
			&rec.ID,
			&rec.Name,
			&rec.Email,
			&rec.Route,
			&rec.Score,
			&source,
			&input,
			&result,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		rec.Source = source.String
		rec.InputData = json.RawMessage(input.String)
		rec.ResultData = json.RawMessage(result.String)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetLastAssessmentByEmail returns the newest stored assessment for an
// email, or nil when none exists.
func (d *Database) GetLastAssessmentByEmail(email string) (*models.AssessmentRecord, error) {
	query := `
	SELECT id, name, email, route, score, source, input_data, result_data, created_at
	FROM assessments
	WHERE email = ?
	ORDER BY created_at DESC
	LIMIT 1`

	var rec models.AssessmentRecord
	var input, result, source sql.NullString
	err := d.db.QueryRow(query, email).Scan(
		&rec.ID,
		&rec.Name,
		&rec.Email,
		&rec.Route,
		&rec.Score,
		&source,
		&input,
		&result,
		&rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last assessment: %w", err)
	}
	rec.Source = source.String
	rec.InputData = json.RawMessage(input.String)
	rec.ResultData = json.RawMessage(result.String)
	return &rec, nil
}

// GetProfile loads a stored profile, migrating old serialization versions on
// read. A missing profile returns defaults without creating a row.
func (d *Database) GetProfile(userID string) (*models.UserProfile, error) {
	var raw []byte
	err := d.db.QueryRow(`SELECT profile FROM user_profiles WHERE user_id = ?`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return models.DefaultProfile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return models.DecodeProfile(raw)
}

// SaveProfile persists a profile at the current serialization version.
func (d *Database) SaveProfile(userID string, profile *models.UserProfile) error {
	profile.Version = models.ProfileVersion
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	query := `
	INSERT INTO user_profiles (user_id, version, profile)
	VALUES (?, ?, ?)
	ON DUPLICATE KEY UPDATE version = VALUES(version), profile = VALUES(profile)`

	if _, err := d.db.Exec(query, userID, profile.Version, raw); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// DeleteProfile implements the explicit "wipe all local data" action.
func (d *Database) DeleteProfile(userID string) error {
	if _, err := d.db.Exec(`DELETE FROM user_profiles WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}
