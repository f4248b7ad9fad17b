package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rajatsgill7/medicalledger/internal/store"
	"github.com/rajatsgill7/medicalledger/pkg/logger"
	"github.com/rajatsgill7/medicalledger/pkg/types"
)

// Logger appends immutable audit entries. The append is synchronous: the
// triggering action is not complete until its entry is durably recorded, and
// a write failure fails the action. An unaudited access decision is a
// compliance violation, not a degraded success.
type Logger struct {
	store store.AuditStore
	log   *logger.Logger
}

// NewLogger creates a new audit logger
func NewLogger(s store.AuditStore, log *logger.Logger) *Logger {
	return &Logger{
		store: s,
		log:   log,
	}
}

// Record appends an audit entry for a security-relevant event
func (l *Logger) Record(ctx context.Context, userID string, action types.AuditAction, details, ipAddress string) error {
	entry := &types.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		IPAddress: ipAddress,
		Timestamp: time.Now().UTC(),
	}

	if err := l.store.AppendAuditLog(ctx, entry); err != nil {
		l.log.Error("Failed to append audit log",
			"user_id", userID,
			"action", string(action),
			"error", err,
		)
		return types.NewStoreError(types.ErrCodeAuditFailure, "failed to record audit entry", err)
	}

	// Mirror to the structured log for operational visibility
	l.log.Audit(userID, string(action), details, true)
	return nil
}
