package types

import "time"

// RequestStatus represents the lifecycle state of an access request. The
// string values are part of the external contract and must not be renamed.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDenied   RequestStatus = "denied"
	StatusRevoked  RequestStatus = "revoked"
)

// Valid reports whether the status is one of the known statuses
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied, StatusRevoked:
		return true
	}
	return false
}

// DefaultGrantDurationDays is applied when a request reaches approval with no
// duration recorded. Approval stays available rather than failing on a
// missing value; creation validation makes this path unreachable in practice.
const DefaultGrantDurationDays = 30

// AccessRequest represents a doctor's time-boxed request for access to a
// patient's records. DoctorID and PatientID are immutable once created.
// ExpiryDate is set only when the request is approved and is preserved on
// revocation so the historical grant window stays on record.
type AccessRequest struct {
	ID           string        `json:"id" db:"id"`
	DoctorID     string        `json:"doctor_id" db:"doctor_id"`
	PatientID    string        `json:"patient_id" db:"patient_id"`
	Purpose      string        `json:"purpose" db:"purpose"`
	DurationDays int           `json:"duration" db:"duration_days"`
	Status       RequestStatus `json:"status" db:"status"`
	Notes        string        `json:"notes,omitempty" db:"notes"`
	LimitedScope bool          `json:"limited_scope" db:"limited_scope"`
	RequestDate  time.Time     `json:"request_date" db:"request_date"`
	ExpiryDate   *time.Time    `json:"expiry_date,omitempty" db:"expiry_date"`
}

// CreateAccessRequest represents the payload for requesting access
type CreateAccessRequest struct {
	DoctorID     string `json:"doctor_id"`
	PatientID    string `json:"patient_id"`
	Purpose      string `json:"purpose"`
	Duration     int    `json:"duration"`
	Notes        string `json:"notes,omitempty"`
	LimitedScope bool   `json:"limited_scope,omitempty"`
}

// DecideAccessRequest represents the payload for deciding a pending or
// previously decided request
type DecideAccessRequest struct {
	Status RequestStatus `json:"status"`
}

// PatientAccessView is an access request embedding the requesting doctor's
// summary, returned on the patient-facing listing
type PatientAccessView struct {
	AccessRequest
	Doctor UserSummary `json:"doctor"`
}

// DoctorAccessView is an access request embedding the patient's summary and
// record count, returned on the doctor-facing listing
type DoctorAccessView struct {
	AccessRequest
	Patient     UserSummary `json:"patient"`
	RecordCount int         `json:"record_count"`
}
