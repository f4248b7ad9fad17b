package database

import "fmt"

// schemaStatements bootstraps the tables the service needs. Schema migration
// tooling lives outside this service; this only guarantees a dev database is
// usable.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username VARCHAR(100) UNIQUE NOT NULL,
		email VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL,
		specialty VARCHAR(100) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		notification_prefs JSONB,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS medical_records (
		id UUID PRIMARY KEY,
		patient_id UUID NOT NULL,
		doctor_id UUID,
		title VARCHAR(255) NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		file_url TEXT NOT NULL DEFAULT '',
		record_date TIMESTAMPTZ NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_medical_records_patient
		ON medical_records (patient_id)`,

	`CREATE TABLE IF NOT EXISTS access_requests (
		id UUID PRIMARY KEY,
		doctor_id UUID NOT NULL,
		patient_id UUID NOT NULL,
		purpose TEXT NOT NULL,
		duration_days INTEGER NOT NULL,
		status VARCHAR(20) NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		limited_scope BOOLEAN NOT NULL DEFAULT FALSE,
		request_date TIMESTAMPTZ NOT NULL,
		expiry_date TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS idx_access_requests_pair
		ON access_requests (doctor_id, patient_id)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		action VARCHAR(50) NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		ip_address VARCHAR(45) NOT NULL DEFAULT '',
		timestamp TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp
		ON audit_logs (timestamp DESC)`,
}

// InitSchema creates the tables and indexes if they do not exist
func (db *DB) InitSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	db.logger.Info("Database schema initialized")
	return nil
}
