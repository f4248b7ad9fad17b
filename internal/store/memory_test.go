package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajatsgill7/medicalledger/pkg/types"
)

func seedRequest(t *testing.T, s *MemoryStore, id string, status types.RequestStatus) {
	t.Helper()

	require.NoError(t, s.CreateAccessRequest(context.Background(), &types.AccessRequest{
		ID:           id,
		DoctorID:     "doctor-5",
		PatientID:    "patient-9",
		Purpose:      "Treatment",
		DurationDays: 30,
		Status:       status,
		RequestDate:  time.Now().UTC(),
	}))
}

func TestUpdateAccessRequestStatusPrecondition(t *testing.T) {
	s := NewMemoryStore()
	seedRequest(t, s, "req-1", types.StatusPending)

	expiry := time.Now().UTC().AddDate(0, 0, 30)
	err := s.UpdateAccessRequestStatus(context.Background(), "req-1", types.StatusPending, types.StatusApproved, &expiry)
	require.NoError(t, err)

	// A second writer still expecting pending gets the stale sentinel
	err = s.UpdateAccessRequestStatus(context.Background(), "req-1", types.StatusPending, types.StatusDenied, nil)
	assert.Equal(t, ErrStaleStatus, err)

	stored, err := s.GetAccessRequest(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, stored.Status)
	require.NotNil(t, stored.ExpiryDate)
}

func TestUpdateAccessRequestStatusPreservesExpiryOnNil(t *testing.T) {
	s := NewMemoryStore()
	seedRequest(t, s, "req-1", types.StatusPending)

	expiry := time.Now().UTC().AddDate(0, 0, 30)
	require.NoError(t, s.UpdateAccessRequestStatus(context.Background(), "req-1", types.StatusPending, types.StatusApproved, &expiry))

	// Revocation passes nil expiry; the stored window stays on record
	require.NoError(t, s.UpdateAccessRequestStatus(context.Background(), "req-1", types.StatusApproved, types.StatusRevoked, nil))

	stored, err := s.GetAccessRequest(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusRevoked, stored.Status)
	require.NotNil(t, stored.ExpiryDate)
	assert.Equal(t, expiry, *stored.ExpiryDate)
}

func TestUpdateAccessRequestStatusUnknownRequest(t *testing.T) {
	s := NewMemoryStore()

	err := s.UpdateAccessRequestStatus(context.Background(), "missing", types.StatusPending, types.StatusApproved, nil)
	require.Error(t, err)

	ledgerErr, ok := err.(*types.LedgerError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeNotFound, ledgerErr.Type)
}

func TestFindApprovedGrantsFiltersByStatusOnly(t *testing.T) {
	s := NewMemoryStore()
	seedRequest(t, s, "req-approved", types.StatusApproved)
	seedRequest(t, s, "req-pending", types.StatusPending)
	seedRequest(t, s, "req-denied", types.StatusDenied)
	seedRequest(t, s, "req-revoked", types.StatusRevoked)

	grants, err := s.FindApprovedGrants(context.Background(), "doctor-5", "patient-9")
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "req-approved", grants[0].ID)

	grants, err = s.FindApprovedGrants(context.Background(), "doctor-other", "patient-9")
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestGetAccessRequestReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	seedRequest(t, s, "req-1", types.StatusPending)

	first, err := s.GetAccessRequest(context.Background(), "req-1")
	require.NoError(t, err)
	first.Status = types.StatusApproved

	second, err := s.GetAccessRequest(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, second.Status, "mutating a returned request must not touch the store")
}

func TestListAuditLogsOrderingAndPaging(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendAuditLog(context.Background(), &types.AuditLog{
			ID:        string(rune('a' + i)),
			UserID:    "user-1",
			Action:    types.ActionLogin,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.ListAuditLogs(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e", entries[0].ID, "newest first")
	assert.Equal(t, "d", entries[1].ID)

	entries, err = s.ListAuditLogs(context.Background(), 2, 4)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID)

	entries, err = s.ListAuditLogs(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUsernameUniqueness(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.CreateUser(context.Background(), &types.User{ID: "u1", Username: "pat"}))

	err := s.CreateUser(context.Background(), &types.User{ID: "u2", Username: "pat"})
	require.Error(t, err)

	ledgerErr, ok := err.(*types.LedgerError)
	require.True(t, ok)
	assert.Equal(t, "USERNAME_EXISTS", ledgerErr.Code)
}
