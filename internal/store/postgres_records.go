package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rajatsgill7/medicalledger/pkg/types"
)

// CreateRecord creates a new medical record in the database
func (s *PostgresStore) CreateRecord(ctx context.Context, record *types.MedicalRecord) error {
	query := `
		INSERT INTO medical_records (id, patient_id, doctor_id, title, notes,
			file_url, record_date, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.PatientID,
		nullableString(record.DoctorID),
		record.Title,
		record.Notes,
		record.FileURL,
		record.RecordDate,
		record.Verified,
		record.CreatedAt,
		record.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create medical record: %w", err)
	}

	s.logger.Info("Medical record created", "record_id", record.ID, "patient_id", record.PatientID)
	return nil
}

// GetRecord retrieves a medical record by ID
func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*types.MedicalRecord, error) {
	query := `
		SELECT id, patient_id, doctor_id, title, notes, file_url,
			record_date, verified, created_at, updated_at
		FROM medical_records
		WHERE id = $1`

	record, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("RECORD_NOT_FOUND", "medical record not found")
		}
		return nil, fmt.Errorf("failed to get medical record: %w", err)
	}

	return record, nil
}

// ListRecordsByPatient returns all records owned by the patient, newest first
func (s *PostgresStore) ListRecordsByPatient(ctx context.Context, patientID string) ([]*types.MedicalRecord, error) {
	query := `
		SELECT id, patient_id, doctor_id, title, notes, file_url,
			record_date, verified, created_at, updated_at
		FROM medical_records
		WHERE patient_id = $1
		ORDER BY record_date DESC`

	rows, err := s.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medical records: %w", err)
	}
	defer rows.Close()

	var records []*types.MedicalRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medical record row: %w", err)
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating medical record rows: %w", err)
	}

	return records, nil
}

// UpdateRecord applies updates to the mutable fields of a record
func (s *PostgresStore) UpdateRecord(ctx context.Context, id string, updates *types.RecordUpdates) (*types.MedicalRecord, error) {
	setParts := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	argIndex := 1

	if updates.Notes != nil {
		setParts = append(setParts, fmt.Sprintf("notes = $%d", argIndex))
		args = append(args, *updates.Notes)
		argIndex++
	}
	if updates.FileURL != nil {
		setParts = append(setParts, fmt.Sprintf("file_url = $%d", argIndex))
		args = append(args, *updates.FileURL)
		argIndex++
	}
	if updates.Verified != nil {
		setParts = append(setParts, fmt.Sprintf("verified = $%d", argIndex))
		args = append(args, *updates.Verified)
		argIndex++
	}

	if len(setParts) == 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "no record updates provided", nil)
	}

	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", argIndex))
	args = append(args, time.Now().UTC())
	argIndex++

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE medical_records SET %s WHERE id = $%d
		RETURNING id, patient_id, doctor_id, title, notes, file_url,
			record_date, verified, created_at, updated_at`,
		strings.Join(setParts, ", "), argIndex)

	record, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("RECORD_NOT_FOUND", "medical record not found")
		}
		return nil, fmt.Errorf("failed to update medical record: %w", err)
	}

	return record, nil
}

// CountRecordsByPatient counts records owned by the patient
func (s *PostgresStore) CountRecordsByPatient(ctx context.Context, patientID string) (int, error) {
	query := `SELECT COUNT(*) FROM medical_records WHERE patient_id = $1`

	var count int
	if err := s.db.QueryRowContext(ctx, query, patientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count medical records: %w", err)
	}

	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*types.MedicalRecord, error) {
	var record types.MedicalRecord
	var doctorID sql.NullString

	err := row.Scan(
		&record.ID,
		&record.PatientID,
		&doctorID,
		&record.Title,
		&record.Notes,
		&record.FileURL,
		&record.RecordDate,
		&record.Verified,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if doctorID.Valid {
		record.DoctorID = doctorID.String
	}
	return &record, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
