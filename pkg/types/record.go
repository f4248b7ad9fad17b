package types

import "time"

// MedicalRecord represents a medical record owned by exactly one patient.
// DoctorID is empty when the record was uploaded by the patient. Records are
// never deleted; updates touch only the mutable fields.
type MedicalRecord struct {
	ID         string    `json:"id" db:"id"`
	PatientID  string    `json:"patient_id" db:"patient_id"`
	DoctorID   string    `json:"doctor_id,omitempty" db:"doctor_id"`
	Title      string    `json:"title" db:"title"`
	Notes      string    `json:"notes,omitempty" db:"notes"`
	FileURL    string    `json:"file_url,omitempty" db:"file_url"`
	RecordDate time.Time `json:"record_date" db:"record_date"`
	Verified   bool      `json:"verified" db:"verified"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// RecordUpdates represents the mutable fields of a medical record
type RecordUpdates struct {
	Notes    *string `json:"notes,omitempty"`
	FileURL  *string `json:"file_url,omitempty"`
	Verified *bool   `json:"verified,omitempty"`
}

// CreateRecordRequest represents the payload for uploading a record
type CreateRecordRequest struct {
	PatientID  string    `json:"patient_id"`
	DoctorID   string    `json:"doctor_id,omitempty"`
	Title      string    `json:"title"`
	Notes      string    `json:"notes,omitempty"`
	FileURL    string    `json:"file_url,omitempty"`
	RecordDate time.Time `json:"record_date"`
}
