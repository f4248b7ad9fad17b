package types

import "time"

// AuditAction is a tag from the fixed audit vocabulary. These values are part
// of the external contract (clients filter and display by them).
type AuditAction string

const (
	ActionLogin             AuditAction = "login"
	ActionLogout            AuditAction = "logout"
	ActionRecordCreated     AuditAction = "record_created"
	ActionRecordAccessed    AuditAction = "record_accessed"
	ActionRecordsAccessed   AuditAction = "records_accessed"
	ActionAccessRequested   AuditAction = "access_requested"
	ActionAccessApproved    AuditAction = "access_approved"
	ActionAccessDenied      AuditAction = "access_denied"
	ActionAccessRevoked     AuditAction = "access_revoked"
	ActionProfileUpdated    AuditAction = "profile_updated"
	ActionPasswordChanged   AuditAction = "password_changed"
	ActionNotificationPrefs AuditAction = "notification_preferences_updated"
)

// AuditLog represents an append-only record of a security-relevant event.
// Entries are never updated or deleted; timestamp ordering is the
// authoritative order of the trail.
type AuditLog struct {
	ID        string      `json:"id" db:"id"`
	UserID    string      `json:"user_id" db:"user_id"`
	Action    AuditAction `json:"action" db:"action"`
	Details   string      `json:"details" db:"details"`
	IPAddress string      `json:"ip_address" db:"ip_address"`
	Timestamp time.Time   `json:"timestamp" db:"timestamp"`
}

// AuditLogView is an audit entry embedding the actor's summary, returned on
// the admin-facing listing
type AuditLogView struct {
	AuditLog
	Actor UserSummary `json:"actor"`
}
