package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajatsgill7/medicalledger/internal/audit"
	"github.com/rajatsgill7/medicalledger/internal/grants"
	"github.com/rajatsgill7/medicalledger/internal/store"
	"github.com/rajatsgill7/medicalledger/pkg/logger"
	"github.com/rajatsgill7/medicalledger/pkg/types"
)

var (
	patientCaller      = Caller{ID: "patient-9", Role: types.RolePatient, IP: "10.0.0.1"}
	otherPatientCaller = Caller{ID: "patient-2", Role: types.RolePatient, IP: "10.0.0.2"}
	doctorCaller       = Caller{ID: "doctor-5", Role: types.RoleDoctor, IP: "10.0.0.3"}
	adminCaller        = Caller{ID: "admin-1", Role: types.RoleAdmin, IP: "10.0.0.4"}
)

type gateFixture struct {
	gate   *Gate
	store  *store.MemoryStore
	engine *grants.Engine
	now    *time.Time
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	memStore := store.NewMemoryStore()

	users := []*types.User{
		{ID: patientCaller.ID, Username: "pat", Name: "Pat Doe", Email: "pat@example.com", Role: types.RolePatient, IsActive: true},
		{ID: otherPatientCaller.ID, Username: "sam", Name: "Sam Roe", Email: "sam@example.com", Role: types.RolePatient, IsActive: true},
		{ID: doctorCaller.ID, Username: "dr-grey", Name: "Dr. Grey", Email: "grey@example.com", Role: types.RoleDoctor, Specialty: "Cardiology", IsActive: true},
		{ID: adminCaller.ID, Username: "root", Name: "Admin", Email: "admin@example.com", Role: types.RoleAdmin, IsActive: true},
	}
	for _, user := range users {
		require.NoError(t, memStore.CreateUser(context.Background(), user))
	}

	nop := logger.NewNop()
	engine := grants.NewEngine(memStore, nop).WithClock(func() time.Time { return now })
	gate := NewGate(memStore, engine, audit.NewLogger(memStore, nop), nop)

	return &gateFixture{gate: gate, store: memStore, engine: engine, now: &now}
}

func (f *gateFixture) seedRecord(t *testing.T, id, patientID string) *types.MedicalRecord {
	t.Helper()

	record := &types.MedicalRecord{
		ID:         id,
		PatientID:  patientID,
		Title:      "Blood Panel",
		RecordDate: *f.now,
		CreatedAt:  *f.now,
		UpdatedAt:  *f.now,
	}
	require.NoError(t, f.store.CreateRecord(context.Background(), record))
	return record
}

func (f *gateFixture) grantAccess(t *testing.T, doctorID, patientID string, days int) *types.AccessRequest {
	t.Helper()

	req, err := f.engine.CreateRequest(context.Background(), &types.CreateAccessRequest{
		DoctorID:  doctorID,
		PatientID: patientID,
		Purpose:   "Treatment",
		Duration:  days,
	})
	require.NoError(t, err)

	approved, err := f.engine.Decide(context.Background(), req.ID, types.StatusApproved, patientID)
	require.NoError(t, err)
	return approved
}

func (f *gateFixture) auditEntries(t *testing.T) []*types.AuditLog {
	t.Helper()

	entries, err := f.store.ListAuditLogs(context.Background(), 0, 0)
	require.NoError(t, err)
	return entries
}

func assertForbidden(t *testing.T, err error) {
	t.Helper()

	require.Error(t, err)
	ledgerErr, ok := err.(*types.LedgerError)
	require.True(t, ok, "expected a LedgerError, got %T", err)
	assert.Equal(t, types.ErrorTypeForbidden, ledgerErr.Type)
}

func TestPatientReadsOwnRecords(t *testing.T) {
	f := newGateFixture(t)
	record := f.seedRecord(t, "rec-1", patientCaller.ID)

	got, err := f.gate.FetchRecord(context.Background(), patientCaller, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	// Self-access does not produce an audit entry
	assert.Empty(t, f.auditEntries(t))
}

func TestPatientCannotReadOthersRecords(t *testing.T) {
	f := newGateFixture(t)
	record := f.seedRecord(t, "rec-1", patientCaller.ID)

	_, err := f.gate.FetchRecord(context.Background(), otherPatientCaller, record.ID)
	assertForbidden(t, err)
	assert.Empty(t, f.auditEntries(t))
}

func TestDoctorWithoutGrantDenied(t *testing.T) {
	f := newGateFixture(t)
	record := f.seedRecord(t, "rec-1", patientCaller.ID)

	_, err := f.gate.FetchRecord(context.Background(), doctorCaller, record.ID)
	assertForbidden(t, err)

	_, err = f.gate.ListPatientRecords(context.Background(), doctorCaller, patientCaller.ID)
	assertForbidden(t, err)
}

func TestDoctorWithGrantReadsAndAudits(t *testing.T) {
	f := newGateFixture(t)
	record := f.seedRecord(t, "rec-1", patientCaller.ID)
	f.grantAccess(t, doctorCaller.ID, patientCaller.ID, 30)

	got, err := f.gate.FetchRecord(context.Background(), doctorCaller, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, types.ActionRecordAccessed, entries[0].Action)
	assert.Equal(t, doctorCaller.ID, entries[0].UserID)
	assert.Contains(t, entries[0].Details, "patient_id="+patientCaller.ID)
	assert.Equal(t, doctorCaller.IP, entries[0].IPAddress)
}

func TestDoctorListAuditsOnce(t *testing.T) {
	f := newGateFixture(t)
	f.seedRecord(t, "rec-1", patientCaller.ID)
	f.seedRecord(t, "rec-2", patientCaller.ID)
	f.grantAccess(t, doctorCaller.ID, patientCaller.ID, 30)

	records, err := f.gate.ListPatientRecords(context.Background(), doctorCaller, patientCaller.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// One records_accessed entry for the listing, not one per record
	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, types.ActionRecordsAccessed, entries[0].Action)
	assert.Contains(t, entries[0].Details, "count=2")
}

func TestDoctorGrantExpiryCheckedPerCall(t *testing.T) {
	f := newGateFixture(t)
	record := f.seedRecord(t, "rec-1", patientCaller.ID)
	f.grantAccess(t, doctorCaller.ID, patientCaller.ID, 7)

	_, err := f.gate.FetchRecord(context.Background(), doctorCaller, record.ID)
	require.NoError(t, err)

	// The same caller is rejected once the grant lapses; nothing is cached
	*f.now = f.now.AddDate(0, 0, 8)
	_, err = f.gate.FetchRecord(context.Background(), doctorCaller, record.ID)
	assertForbidden(t, err)
}

func TestRevocationTakesEffectImmediately(t *testing.T) {
	f := newGateFixture(t)
	record := f.seedRecord(t, "rec-1", patientCaller.ID)
	grant := f.grantAccess(t, doctorCaller.ID, patientCaller.ID, 30)

	_, err := f.gate.FetchRecord(context.Background(), doctorCaller, record.ID)
	require.NoError(t, err)

	_, err = f.gate.DecideRequest(context.Background(), patientCaller, grant.ID, types.StatusRevoked)
	require.NoError(t, err)

	_, err = f.gate.FetchRecord(context.Background(), doctorCaller, record.ID)
	assertForbidden(t, err)
}

func TestDoctorSelfAccess(t *testing.T) {
	f := newGateFixture(t)

	// A doctor who is also a patient reads their own records without a grant
	record := f.seedRecord(t, "rec-1", doctorCaller.ID)

	got, err := f.gate.FetchRecord(context.Background(), doctorCaller, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Empty(t, f.auditEntries(t))
}

func TestAdminReadsEverythingAndIsAudited(t *testing.T) {
	f := newGateFixture(t)
	record := f.seedRecord(t, "rec-1", patientCaller.ID)

	got, err := f.gate.FetchRecord(context.Background(), adminCaller, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	// Admin reads of patient data land in the trail with the admin as actor
	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, types.ActionRecordAccessed, entries[0].Action)
	assert.Equal(t, adminCaller.ID, entries[0].UserID)
}

func TestFetchUnknownRecord(t *testing.T) {
	f := newGateFixture(t)

	_, err := f.gate.FetchRecord(context.Background(), adminCaller, "no-such-record")
	require.Error(t, err)

	ledgerErr, ok := err.(*types.LedgerError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeNotFound, ledgerErr.Type)
}

// failingAuditStore rejects every append, simulating an unavailable audit
// backend.
type failingAuditStore struct {
	store.Store
}

func (f *failingAuditStore) AppendAuditLog(ctx context.Context, entry *types.AuditLog) error {
	return errors.New("audit backend unavailable")
}

func TestAuditFailureFailsTheAction(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	memStore := store.NewMemoryStore()

	for _, user := range []*types.User{
		{ID: patientCaller.ID, Username: "pat", Role: types.RolePatient, IsActive: true},
		{ID: doctorCaller.ID, Username: "dr-grey", Role: types.RoleDoctor, IsActive: true},
	} {
		require.NoError(t, memStore.CreateUser(context.Background(), user))
	}

	record := &types.MedicalRecord{ID: "rec-1", PatientID: patientCaller.ID, Title: "Blood Panel", RecordDate: now}
	require.NoError(t, memStore.CreateRecord(context.Background(), record))

	nop := logger.NewNop()
	engine := grants.NewEngine(memStore, nop).WithClock(func() time.Time { return now })
	failing := &failingAuditStore{Store: memStore}
	gate := NewGate(memStore, engine, audit.NewLogger(failing, nop), nop)

	req, err := engine.CreateRequest(context.Background(), &types.CreateAccessRequest{
		DoctorID:  doctorCaller.ID,
		PatientID: patientCaller.ID,
		Purpose:   "Treatment",
		Duration:  30,
	})
	require.NoError(t, err)
	_, err = engine.Decide(context.Background(), req.ID, types.StatusApproved, patientCaller.ID)
	require.NoError(t, err)

	// The read itself is authorized, but the unrecordable audit entry fails it
	_, err = gate.FetchRecord(context.Background(), doctorCaller, record.ID)
	require.Error(t, err)

	ledgerErr, ok := err.(*types.LedgerError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeStore, ledgerErr.Type)
	assert.Equal(t, types.ErrCodeAuditFailure, ledgerErr.Code)
}

func TestCreateRecordByDoctor(t *testing.T) {
	f := newGateFixture(t)
	f.grantAccess(t, doctorCaller.ID, patientCaller.ID, 30)

	record, err := f.gate.CreateRecord(context.Background(), doctorCaller, &types.CreateRecordRequest{
		PatientID: patientCaller.ID,
		Title:     "Consultation Notes",
		Notes:     "Follow up in two weeks",
	})
	require.NoError(t, err)

	assert.Equal(t, doctorCaller.ID, record.DoctorID)
	assert.True(t, record.Verified)
	assert.Equal(t, patientCaller.ID, record.PatientID)

	entries := f.auditEntries(t)
	var created int
	for _, entry := range entries {
		if entry.Action == types.ActionRecordCreated {
			created++
			assert.Equal(t, doctorCaller.ID, entry.UserID)
		}
	}
	assert.Equal(t, 1, created)
}

func TestCreateRecordByPatient(t *testing.T) {
	f := newGateFixture(t)

	record, err := f.gate.CreateRecord(context.Background(), patientCaller, &types.CreateRecordRequest{
		PatientID: patientCaller.ID,
		Title:     "Home Blood Pressure Log",
	})
	require.NoError(t, err)

	// Patient uploads carry no authoring doctor and start unverified
	assert.Empty(t, record.DoctorID)
	assert.False(t, record.Verified)

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, types.ActionRecordCreated, entries[0].Action)
	assert.Equal(t, patientCaller.ID, entries[0].UserID)
}

func TestCreateRecordValidation(t *testing.T) {
	f := newGateFixture(t)

	_, err := f.gate.CreateRecord(context.Background(), patientCaller, &types.CreateRecordRequest{Title: "No Patient"})
	require.Error(t, err)

	_, err = f.gate.CreateRecord(context.Background(), patientCaller, &types.CreateRecordRequest{PatientID: patientCaller.ID})
	require.Error(t, err)
}

func TestPatientCannotVerifyRecord(t *testing.T) {
	f := newGateFixture(t)
	record := f.seedRecord(t, "rec-1", patientCaller.ID)

	verified := true
	_, err := f.gate.UpdateRecord(context.Background(), patientCaller, record.ID, &types.RecordUpdates{
		Verified: &verified,
	})
	assertForbidden(t, err)

	// Non-verification updates are fine
	notes := "corrected dosage"
	updated, err := f.gate.UpdateRecord(context.Background(), patientCaller, record.ID, &types.RecordUpdates{
		Notes: &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
}

func TestRequestAccessOnlyForDoctors(t *testing.T) {
	f := newGateFixture(t)

	_, err := f.gate.RequestAccess(context.Background(), patientCaller, &types.CreateAccessRequest{
		PatientID: otherPatientCaller.ID,
		Purpose:   "Curiosity",
		Duration:  30,
	})
	assertForbidden(t, err)

	_, err = f.gate.RequestAccess(context.Background(), doctorCaller, &types.CreateAccessRequest{
		DoctorID:  "doctor-other",
		PatientID: patientCaller.ID,
		Purpose:   "Treatment",
		Duration:  30,
	})
	assertForbidden(t, err)
}

func TestRequestAccessAudits(t *testing.T) {
	f := newGateFixture(t)

	req, err := f.gate.RequestAccess(context.Background(), doctorCaller, &types.CreateAccessRequest{
		PatientID: patientCaller.ID,
		Purpose:   "Treatment",
		Duration:  14,
	})
	require.NoError(t, err)

	assert.Equal(t, doctorCaller.ID, req.DoctorID)
	assert.Equal(t, types.StatusPending, req.Status)

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, types.ActionAccessRequested, entries[0].Action)
	assert.Equal(t, doctorCaller.ID, entries[0].UserID)
	assert.Contains(t, entries[0].Details, "request_id="+req.ID)
}

func TestDecideRequestAuthorization(t *testing.T) {
	f := newGateFixture(t)

	req, err := f.gate.RequestAccess(context.Background(), doctorCaller, &types.CreateAccessRequest{
		PatientID: patientCaller.ID,
		Purpose:   "Treatment",
		Duration:  30,
	})
	require.NoError(t, err)

	// Neither the requesting doctor nor an unrelated patient may decide
	_, err = f.gate.DecideRequest(context.Background(), doctorCaller, req.ID, types.StatusApproved)
	assertForbidden(t, err)
	_, err = f.gate.DecideRequest(context.Background(), otherPatientCaller, req.ID, types.StatusApproved)
	assertForbidden(t, err)

	updated, err := f.gate.DecideRequest(context.Background(), patientCaller, req.ID, types.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, updated.Status)

	// Admin may revoke
	revoked, err := f.gate.DecideRequest(context.Background(), adminCaller, req.ID, types.StatusRevoked)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRevoked, revoked.Status)
}

func TestDecisionAuditActions(t *testing.T) {
	f := newGateFixture(t)

	approve, err := f.gate.RequestAccess(context.Background(), doctorCaller, &types.CreateAccessRequest{
		PatientID: patientCaller.ID, Purpose: "Treatment", Duration: 30,
	})
	require.NoError(t, err)
	deny, err := f.gate.RequestAccess(context.Background(), doctorCaller, &types.CreateAccessRequest{
		PatientID: patientCaller.ID, Purpose: "Second opinion", Duration: 30,
	})
	require.NoError(t, err)

	_, err = f.gate.DecideRequest(context.Background(), patientCaller, approve.ID, types.StatusApproved)
	require.NoError(t, err)
	_, err = f.gate.DecideRequest(context.Background(), patientCaller, deny.ID, types.StatusDenied)
	require.NoError(t, err)
	_, err = f.gate.DecideRequest(context.Background(), patientCaller, approve.ID, types.StatusRevoked)
	require.NoError(t, err)

	actions := map[types.AuditAction]int{}
	for _, entry := range f.auditEntries(t) {
		actions[entry.Action]++
	}
	assert.Equal(t, 1, actions[types.ActionAccessApproved])
	assert.Equal(t, 1, actions[types.ActionAccessDenied])
	assert.Equal(t, 1, actions[types.ActionAccessRevoked])
	assert.Equal(t, 2, actions[types.ActionAccessRequested])
}

func TestFailedDecisionLeavesNoAuditEntry(t *testing.T) {
	f := newGateFixture(t)

	req, err := f.gate.RequestAccess(context.Background(), doctorCaller, &types.CreateAccessRequest{
		PatientID: patientCaller.ID, Purpose: "Treatment", Duration: 30,
	})
	require.NoError(t, err)

	// pending -> revoked is invalid; no decision entry may appear
	_, err = f.gate.DecideRequest(context.Background(), patientCaller, req.ID, types.StatusRevoked)
	require.Error(t, err)

	for _, entry := range f.auditEntries(t) {
		assert.NotEqual(t, types.ActionAccessRevoked, entry.Action)
	}
}

func TestListAccessForPatient(t *testing.T) {
	f := newGateFixture(t)

	req, err := f.gate.RequestAccess(context.Background(), doctorCaller, &types.CreateAccessRequest{
		PatientID: patientCaller.ID, Purpose: "Treatment", Duration: 30,
	})
	require.NoError(t, err)

	// Another patient may not see the listing
	_, err = f.gate.ListAccessForPatient(context.Background(), otherPatientCaller, patientCaller.ID)
	assertForbidden(t, err)

	views, err := f.gate.ListAccessForPatient(context.Background(), patientCaller, patientCaller.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, req.ID, views[0].ID)
	assert.Equal(t, doctorCaller.ID, views[0].Doctor.ID)
	assert.Equal(t, "Dr. Grey", views[0].Doctor.Name)

	// Admin sees any patient's listing
	_, err = f.gate.ListAccessForPatient(context.Background(), adminCaller, patientCaller.ID)
	require.NoError(t, err)
}

func TestListAccessForDoctorIncludesRecordCount(t *testing.T) {
	f := newGateFixture(t)
	f.seedRecord(t, "rec-1", patientCaller.ID)
	f.seedRecord(t, "rec-2", patientCaller.ID)

	_, err := f.gate.RequestAccess(context.Background(), doctorCaller, &types.CreateAccessRequest{
		PatientID: patientCaller.ID, Purpose: "Treatment", Duration: 30,
	})
	require.NoError(t, err)

	_, err = f.gate.ListAccessForDoctor(context.Background(), patientCaller, doctorCaller.ID)
	assertForbidden(t, err)

	views, err := f.gate.ListAccessForDoctor(context.Background(), doctorCaller, doctorCaller.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, patientCaller.ID, views[0].Patient.ID)
	assert.Equal(t, 2, views[0].RecordCount)
}

func TestListingToleratesDanglingUserReference(t *testing.T) {
	f := newGateFixture(t)

	// An access request whose doctor id no longer resolves
	req := &types.AccessRequest{
		ID:           "req-dangling",
		DoctorID:     "doctor-gone",
		PatientID:    patientCaller.ID,
		Purpose:      "Treatment",
		DurationDays: 30,
		Status:       types.StatusPending,
		RequestDate:  *f.now,
	}
	require.NoError(t, f.store.CreateAccessRequest(context.Background(), req))

	views, err := f.gate.ListAccessForPatient(context.Background(), patientCaller, patientCaller.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "doctor-gone", views[0].Doctor.ID)
	assert.Equal(t, "Unknown User", views[0].Doctor.Name)
}

func TestListAuditLogsAdminOnly(t *testing.T) {
	f := newGateFixture(t)

	_, err := f.gate.RequestAccess(context.Background(), doctorCaller, &types.CreateAccessRequest{
		PatientID: patientCaller.ID, Purpose: "Treatment", Duration: 30,
	})
	require.NoError(t, err)

	_, err = f.gate.ListAuditLogs(context.Background(), patientCaller, 100, 0)
	assertForbidden(t, err)
	_, err = f.gate.ListAuditLogs(context.Background(), doctorCaller, 100, 0)
	assertForbidden(t, err)

	views, err := f.gate.ListAuditLogs(context.Background(), adminCaller, 100, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, types.ActionAccessRequested, views[0].Action)
	assert.Equal(t, doctorCaller.ID, views[0].Actor.ID)
	assert.Equal(t, "Dr. Grey", views[0].Actor.Name)
}
