package store

import (
	"context"
	"fmt"

	"github.com/rajatsgill7/medicalledger/pkg/types"
)

// AppendAuditLog appends an immutable audit entry. There is no update or
// delete path for audit rows anywhere in the store.
func (s *PostgresStore) AppendAuditLog(ctx context.Context, entry *types.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, user_id, action, details, ip_address, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.Details,
		entry.IPAddress,
		entry.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}

	return nil
}

// ListAuditLogs returns audit entries newest first
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit, offset int) ([]*types.AuditLog, error) {
	query := `
		SELECT id, user_id, action, details, ip_address, timestamp
		FROM audit_logs
		ORDER BY timestamp DESC
		LIMIT $1 OFFSET $2`

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []*types.AuditLog
	for rows.Next() {
		var entry types.AuditLog
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Action,
			&entry.Details,
			&entry.IPAddress,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log row: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return entries, nil
}
