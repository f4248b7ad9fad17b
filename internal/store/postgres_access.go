package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rajatsgill7/medicalledger/pkg/types"
)

// CreateAccessRequest creates a new access request in the database
func (s *PostgresStore) CreateAccessRequest(ctx context.Context, req *types.AccessRequest) error {
	query := `
		INSERT INTO access_requests (id, doctor_id, patient_id, purpose,
			duration_days, status, notes, limited_scope, request_date, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		req.ID,
		req.DoctorID,
		req.PatientID,
		req.Purpose,
		req.DurationDays,
		req.Status,
		req.Notes,
		req.LimitedScope,
		req.RequestDate,
		req.ExpiryDate,
	)

	if err != nil {
		return fmt.Errorf("failed to create access request: %w", err)
	}

	s.logger.Info("Access request created",
		"request_id", req.ID,
		"doctor_id", req.DoctorID,
		"patient_id", req.PatientID,
	)
	return nil
}

// GetAccessRequest retrieves an access request by ID
func (s *PostgresStore) GetAccessRequest(ctx context.Context, id string) (*types.AccessRequest, error) {
	query := accessRequestSelect + ` WHERE id = $1`

	req, err := scanAccessRequest(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("ACCESS_REQUEST_NOT_FOUND", "access request not found")
		}
		return nil, fmt.Errorf("failed to get access request: %w", err)
	}

	return req, nil
}

// FindApprovedGrants returns approved requests for the doctor/patient pair.
// Expiry is not filtered here; the grant engine evaluates it at call time.
func (s *PostgresStore) FindApprovedGrants(ctx context.Context, doctorID, patientID string) ([]*types.AccessRequest, error) {
	query := accessRequestSelect + `
		WHERE doctor_id = $1 AND patient_id = $2 AND status = $3`

	return s.queryAccessRequests(ctx, query, doctorID, patientID, types.StatusApproved)
}

// ListAccessRequestsByPatient returns all requests targeting the patient
func (s *PostgresStore) ListAccessRequestsByPatient(ctx context.Context, patientID string) ([]*types.AccessRequest, error) {
	query := accessRequestSelect + `
		WHERE patient_id = $1
		ORDER BY request_date DESC`

	return s.queryAccessRequests(ctx, query, patientID)
}

// ListAccessRequestsByDoctor returns all requests made by the doctor
func (s *PostgresStore) ListAccessRequestsByDoctor(ctx context.Context, doctorID string) ([]*types.AccessRequest, error) {
	query := accessRequestSelect + `
		WHERE doctor_id = $1
		ORDER BY request_date DESC`

	return s.queryAccessRequests(ctx, query, doctorID)
}

// UpdateAccessRequestStatus transitions a request guarded by the expected
// current status. The WHERE clause carries the precondition so concurrent
// decisions on the same row cannot interleave.
func (s *PostgresStore) UpdateAccessRequestStatus(ctx context.Context, id string, expected, next types.RequestStatus, expiry *time.Time) error {
	query := `
		UPDATE access_requests
		SET status = $1, expiry_date = COALESCE($2, expiry_date)
		WHERE id = $3 AND status = $4`

	result, err := s.db.ExecContext(ctx, query, next, expiry, id, expected)
	if err != nil {
		return fmt.Errorf("failed to update access request status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Distinguish a missing row from a lost race
		if _, getErr := s.GetAccessRequest(ctx, id); getErr != nil {
			return getErr
		}
		return ErrStaleStatus
	}

	return nil
}

const accessRequestSelect = `
	SELECT id, doctor_id, patient_id, purpose, duration_days, status,
		notes, limited_scope, request_date, expiry_date
	FROM access_requests`

func (s *PostgresStore) queryAccessRequests(ctx context.Context, query string, args ...interface{}) ([]*types.AccessRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query access requests: %w", err)
	}
	defer rows.Close()

	var requests []*types.AccessRequest
	for rows.Next() {
		req, err := scanAccessRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access request row: %w", err)
		}
		requests = append(requests, req)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access request rows: %w", err)
	}

	return requests, nil
}

func scanAccessRequest(row rowScanner) (*types.AccessRequest, error) {
	var req types.AccessRequest
	var expiry sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.DoctorID,
		&req.PatientID,
		&req.Purpose,
		&req.DurationDays,
		&req.Status,
		&req.Notes,
		&req.LimitedScope,
		&req.RequestDate,
		&expiry,
	)
	if err != nil {
		return nil, err
	}

	if expiry.Valid {
		t := expiry.Time
		req.ExpiryDate = &t
	}
	return &req, nil
}
