package store

import (
	"context"
	"errors"
	"time"

	"github.com/rajatsgill7/medicalledger/pkg/types"
)

// ErrStaleStatus is returned by UpdateAccessRequestStatus when the stored
// status no longer matches the expected one. Callers re-read and re-validate
// rather than overwriting; last-writer-wins could silently resurrect a
// revoked grant.
var ErrStaleStatus = errors.New("access request status changed concurrently")

// UserStore defines user persistence operations
type UserStore interface {
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, id string) (*types.User, error)
	GetUserByUsername(ctx context.Context, username string) (*types.User, error)
	UpdateUserProfile(ctx context.Context, id string, updates *types.ProfileUpdates) error
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	GetNotificationPreferences(ctx context.Context, id string) ([]byte, error)
	SetNotificationPreferences(ctx context.Context, id string, raw []byte) error
}

// RecordStore defines medical record persistence operations
type RecordStore interface {
	CreateRecord(ctx context.Context, record *types.MedicalRecord) error
	GetRecord(ctx context.Context, id string) (*types.MedicalRecord, error)
	ListRecordsByPatient(ctx context.Context, patientID string) ([]*types.MedicalRecord, error)
	UpdateRecord(ctx context.Context, id string, updates *types.RecordUpdates) (*types.MedicalRecord, error)
	CountRecordsByPatient(ctx context.Context, patientID string) (int, error)
}

// AccessRequestStore defines access request persistence operations. The grant
// engine expresses its reads as store queries; filtering belongs here, not in
// the engine.
type AccessRequestStore interface {
	CreateAccessRequest(ctx context.Context, req *types.AccessRequest) error
	GetAccessRequest(ctx context.Context, id string) (*types.AccessRequest, error)

	// FindApprovedGrants returns every request for the doctor/patient pair
	// currently in status approved, regardless of expiry. Expiry is the
	// engine's call to make at query time.
	FindApprovedGrants(ctx context.Context, doctorID, patientID string) ([]*types.AccessRequest, error)

	ListAccessRequestsByPatient(ctx context.Context, patientID string) ([]*types.AccessRequest, error)
	ListAccessRequestsByDoctor(ctx context.Context, doctorID string) ([]*types.AccessRequest, error)

	// UpdateAccessRequestStatus transitions a request from the expected
	// status to the new one, setting expiry when non-nil. Returns
	// ErrStaleStatus if the stored status does not match expected.
	UpdateAccessRequestStatus(ctx context.Context, id string, expected, next types.RequestStatus, expiry *time.Time) error
}

// AuditStore defines append-only audit log persistence. Entries are never
// updated or deleted.
type AuditStore interface {
	AppendAuditLog(ctx context.Context, entry *types.AuditLog) error
	ListAuditLogs(ctx context.Context, limit, offset int) ([]*types.AuditLog, error)
}

// Store combines all entity persistence interfaces
type Store interface {
	UserStore
	RecordStore
	AccessRequestStore
	AuditStore
}
