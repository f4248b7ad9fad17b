package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rajatsgill7/medicalledger/pkg/logger"
	"github.com/rajatsgill7/medicalledger/pkg/types"
)

type mockAuditStore struct {
	mock.Mock
}

func (m *mockAuditStore) AppendAuditLog(ctx context.Context, entry *types.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockAuditStore) ListAuditLogs(ctx context.Context, limit, offset int) ([]*types.AuditLog, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.AuditLog), args.Error(1)
}

func TestRecordAppendsEntry(t *testing.T) {
	store := new(mockAuditStore)
	auditLog := NewLogger(store, logger.NewNop())

	var captured *types.AuditLog
	store.On("AppendAuditLog", mock.Anything, mock.AnythingOfType("*types.AuditLog")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*types.AuditLog)
		}).
		Return(nil)

	err := auditLog.Record(context.Background(), "doctor-5", types.ActionRecordAccessed, "record_id=rec-1", "10.0.0.3")
	require.NoError(t, err)

	store.AssertExpectations(t)
	require.NotNil(t, captured)
	assert.NotEmpty(t, captured.ID)
	assert.Equal(t, "doctor-5", captured.UserID)
	assert.Equal(t, types.ActionRecordAccessed, captured.Action)
	assert.Equal(t, "record_id=rec-1", captured.Details)
	assert.Equal(t, "10.0.0.3", captured.IPAddress)
	assert.False(t, captured.Timestamp.IsZero())
	assert.Equal(t, captured.Timestamp.UTC(), captured.Timestamp)
}

func TestRecordFailsWhenAppendFails(t *testing.T) {
	store := new(mockAuditStore)
	auditLog := NewLogger(store, logger.NewNop())

	store.On("AppendAuditLog", mock.Anything, mock.Anything).
		Return(errors.New("disk full"))

	err := auditLog.Record(context.Background(), "doctor-5", types.ActionLogin, "", "")
	require.Error(t, err)

	ledgerErr, ok := err.(*types.LedgerError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeStore, ledgerErr.Type)
	assert.Equal(t, types.ErrCodeAuditFailure, ledgerErr.Code)
	assert.ErrorContains(t, ledgerErr.Cause, "disk full")
}

func TestRecordEntriesGetDistinctIDs(t *testing.T) {
	store := new(mockAuditStore)
	auditLog := NewLogger(store, logger.NewNop())

	seen := map[string]bool{}
	store.On("AppendAuditLog", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			entry := args.Get(1).(*types.AuditLog)
			assert.False(t, seen[entry.ID], "audit entry id reused")
			seen[entry.ID] = true
		}).
		Return(nil)

	for i := 0; i < 10; i++ {
		require.NoError(t, auditLog.Record(context.Background(), "user-1", types.ActionLogin, "", ""))
	}
	assert.Len(t, seen, 10)
}
