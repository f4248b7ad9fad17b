package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rajatsgill7/medicalledger/internal/audit"
	"github.com/rajatsgill7/medicalledger/internal/grants"
	"github.com/rajatsgill7/medicalledger/internal/store"
	"github.com/rajatsgill7/medicalledger/pkg/logger"
	"github.com/rajatsgill7/medicalledger/pkg/monitoring"
	"github.com/rajatsgill7/medicalledger/pkg/types"
)

// Caller identifies the authenticated user behind a request
type Caller struct {
	ID   string
	Role types.UserRole
	IP   string
}

// Gate mediates every record and access-request operation through role and
// grant checks, and triggers audit entries for the operations that demand
// them. Authorization failure is terminal for the request; the gate never
// tries alternate authorization paths.
type Gate struct {
	store  store.Store
	engine *grants.Engine
	audit  *audit.Logger
	logger *logger.Logger
}

// NewGate creates a new authorization gate
func NewGate(s store.Store, engine *grants.Engine, auditLog *audit.Logger, log *logger.Logger) *Gate {
	return &Gate{
		store:  s,
		engine: engine,
		audit:  auditLog,
		logger: log,
	}
}

// FetchRecord returns a single record if the caller may read it
func (g *Gate) FetchRecord(ctx context.Context, caller Caller, recordID string) (*types.MedicalRecord, error) {
	record, err := g.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	crossPatient, err := g.authorizeRecordAccess(ctx, caller, record.PatientID, "read")
	if err != nil {
		return nil, err
	}

	if crossPatient {
		details := fmt.Sprintf("record_id=%s patient_id=%s", record.ID, record.PatientID)
		if err := g.audit.Record(ctx, caller.ID, types.ActionRecordAccessed, details, caller.IP); err != nil {
			return nil, err
		}
	}

	return record, nil
}

// ListPatientRecords returns all of a patient's records if the caller may
// read them
func (g *Gate) ListPatientRecords(ctx context.Context, caller Caller, patientID string) ([]*types.MedicalRecord, error) {
	crossPatient, err := g.authorizeRecordAccess(ctx, caller, patientID, "list")
	if err != nil {
		return nil, err
	}

	records, err := g.store.ListRecordsByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if crossPatient {
		details := fmt.Sprintf("patient_id=%s count=%d", patientID, len(records))
		if err := g.audit.Record(ctx, caller.ID, types.ActionRecordsAccessed, details, caller.IP); err != nil {
			return nil, err
		}
	}

	return records, nil
}

// CreateRecord creates a medical record on behalf of the caller
func (g *Gate) CreateRecord(ctx context.Context, caller Caller, in *types.CreateRecordRequest) (*types.MedicalRecord, error) {
	if in.PatientID == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "patient_id is required", nil)
	}
	if in.Title == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "title is required", nil)
	}

	if _, err := g.authorizeRecordAccess(ctx, caller, in.PatientID, "create"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &types.MedicalRecord{
		ID:         uuid.New().String(),
		PatientID:  in.PatientID,
		Title:      in.Title,
		Notes:      in.Notes,
		FileURL:    in.FileURL,
		RecordDate: in.RecordDate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if record.RecordDate.IsZero() {
		record.RecordDate = now
	}

	// A record is doctor-authored and verified only when a doctor created it;
	// patient uploads carry no authoring doctor.
	if caller.Role == types.RoleDoctor && caller.ID != in.PatientID {
		record.DoctorID = caller.ID
		record.Verified = true
	} else if caller.Role == types.RoleAdmin && in.DoctorID != "" {
		record.DoctorID = in.DoctorID
	}

	if err := g.store.CreateRecord(ctx, record); err != nil {
		return nil, err
	}

	details := fmt.Sprintf("record_id=%s patient_id=%s", record.ID, record.PatientID)
	if err := g.audit.Record(ctx, caller.ID, types.ActionRecordCreated, details, caller.IP); err != nil {
		return nil, err
	}

	return record, nil
}

// UpdateRecord updates the mutable fields of a record
func (g *Gate) UpdateRecord(ctx context.Context, caller Caller, recordID string, updates *types.RecordUpdates) (*types.MedicalRecord, error) {
	record, err := g.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	if _, err := g.authorizeRecordAccess(ctx, caller, record.PatientID, "update"); err != nil {
		return nil, err
	}

	// Only a doctor or admin can confirm a record as verified
	if updates.Verified != nil && caller.Role == types.RolePatient {
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "patients cannot change record verification")
	}

	return g.store.UpdateRecord(ctx, recordID, updates)
}

// ListAccessForPatient returns the patient's access requests with the
// requesting doctor embedded
func (g *Gate) ListAccessForPatient(ctx context.Context, caller Caller, patientID string) ([]*types.PatientAccessView, error) {
	if caller.Role != types.RoleAdmin && caller.ID != patientID {
		g.logDenial(caller, "list_patient_access", patientID)
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "cannot view another patient's access requests")
	}

	reqs, err := g.store.ListAccessRequestsByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	views := make([]*types.PatientAccessView, 0, len(reqs))
	summaries := map[string]types.UserSummary{}
	for _, req := range reqs {
		views = append(views, &types.PatientAccessView{
			AccessRequest: *req,
			Doctor:        g.userSummary(ctx, summaries, req.DoctorID),
		})
	}
	return views, nil
}

// ListAccessForDoctor returns the doctor's access requests with the patient
// and their record count embedded
func (g *Gate) ListAccessForDoctor(ctx context.Context, caller Caller, doctorID string) ([]*types.DoctorAccessView, error) {
	if caller.Role != types.RoleAdmin && caller.ID != doctorID {
		g.logDenial(caller, "list_doctor_access", doctorID)
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "cannot view another doctor's access requests")
	}

	reqs, err := g.store.ListAccessRequestsByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	views := make([]*types.DoctorAccessView, 0, len(reqs))
	summaries := map[string]types.UserSummary{}
	counts := map[string]int{}
	for _, req := range reqs {
		count, ok := counts[req.PatientID]
		if !ok {
			count, err = g.store.CountRecordsByPatient(ctx, req.PatientID)
			if err != nil {
				return nil, err
			}
			counts[req.PatientID] = count
		}

		views = append(views, &types.DoctorAccessView{
			AccessRequest: *req,
			Patient:       g.userSummary(ctx, summaries, req.PatientID),
			RecordCount:   count,
		})
	}
	return views, nil
}

// RequestAccess creates a pending access request on behalf of the calling
// doctor. A doctor cannot request access for another doctor.
func (g *Gate) RequestAccess(ctx context.Context, caller Caller, in *types.CreateAccessRequest) (*types.AccessRequest, error) {
	if caller.Role != types.RoleDoctor {
		g.logDenial(caller, "request_access", in.PatientID)
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "only doctors can request record access")
	}
	if in.DoctorID != "" && in.DoctorID != caller.ID {
		g.logDenial(caller, "request_access", in.PatientID)
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "cannot request access on another doctor's behalf")
	}
	in.DoctorID = caller.ID

	req, err := g.engine.CreateRequest(ctx, in)
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("request_id=%s patient_id=%s duration=%d", req.ID, req.PatientID, req.DurationDays)
	if err := g.audit.Record(ctx, caller.ID, types.ActionAccessRequested, details, caller.IP); err != nil {
		return nil, err
	}

	return req, nil
}

// DecideRequest transitions an access request. The patient the request
// targets or an admin may decide it.
func (g *Gate) DecideRequest(ctx context.Context, caller Caller, requestID string, newStatus types.RequestStatus) (*types.AccessRequest, error) {
	req, err := g.store.GetAccessRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if caller.Role != types.RoleAdmin && caller.ID != req.PatientID {
		g.logDenial(caller, "decide_access", requestID)
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "not permitted to decide this access request")
	}

	updated, err := g.engine.Decide(ctx, requestID, newStatus, caller.ID)
	if err != nil {
		return nil, err
	}

	action, ok := decisionAction(newStatus)
	if ok {
		details := fmt.Sprintf("request_id=%s doctor_id=%s patient_id=%s", updated.ID, updated.DoctorID, updated.PatientID)
		if err := g.audit.Record(ctx, caller.ID, action, details, caller.IP); err != nil {
			return nil, err
		}
	}

	return updated, nil
}

// ListAuditLogs returns the audit trail with actor summaries embedded.
// Admin only.
func (g *Gate) ListAuditLogs(ctx context.Context, caller Caller, limit, offset int) ([]*types.AuditLogView, error) {
	if caller.Role != types.RoleAdmin {
		g.logDenial(caller, "list_audit_logs", "")
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "audit logs are restricted to administrators")
	}

	entries, err := g.store.ListAuditLogs(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	views := make([]*types.AuditLogView, 0, len(entries))
	summaries := map[string]types.UserSummary{}
	for _, entry := range entries {
		views = append(views, &types.AuditLogView{
			AuditLog: *entry,
			Actor:    g.userSummary(ctx, summaries, entry.UserID),
		})
	}
	return views, nil
}

// authorizeRecordAccess applies the role rules for record operations and
// reports whether the allowed access touches another patient's data (which
// the caller must audit with the admin's or doctor's id as actor).
//
//	patient: own records only, no grant consult
//	doctor:  own records, or a currently valid grant for the patient
//	admin:   everything
func (g *Gate) authorizeRecordAccess(ctx context.Context, caller Caller, patientID, operation string) (bool, error) {
	switch caller.Role {
	case types.RoleAdmin:
		monitoring.RecordAccessDecision("allowed")
		return caller.ID != patientID, nil

	case types.RolePatient:
		if caller.ID == patientID {
			monitoring.RecordAccessDecision("allowed")
			return false, nil
		}

	case types.RoleDoctor:
		// Self-access: a doctor reading records where they are the patient
		if caller.ID == patientID {
			monitoring.RecordAccessDecision("allowed")
			return false, nil
		}
		ok, err := g.engine.HasAccess(ctx, caller.ID, patientID)
		if err != nil {
			return false, err
		}
		if ok {
			monitoring.RecordAccessDecision("allowed")
			return true, nil
		}
	}

	monitoring.RecordAccessDecision("denied")
	g.logDenial(caller, operation, patientID)
	return false, types.NewForbiddenError(types.ErrCodeForbidden, "no authorized access to this patient's records")
}

// logDenial records denied attempts in the structured security log. Denials
// are not written to the audit trail; its action vocabulary is fixed and
// covers decisions, not attempts.
func (g *Gate) logDenial(caller Caller, operation, resourceID string) {
	g.logger.Security("access_denied", caller.ID, map[string]interface{}{
		"role":        string(caller.Role),
		"operation":   operation,
		"resource_id": resourceID,
	})
}

func (g *Gate) userSummary(ctx context.Context, cache map[string]types.UserSummary, userID string) types.UserSummary {
	if summary, ok := cache[userID]; ok {
		return summary
	}

	user, err := g.store.GetUser(ctx, userID)
	if err != nil {
		// Dangling references resolve to a placeholder, never a failure
		summary := types.UnknownUserSummary(userID)
		cache[userID] = summary
		return summary
	}

	summary := user.Summary()
	cache[userID] = summary
	return summary
}

func decisionAction(status types.RequestStatus) (types.AuditAction, bool) {
	switch status {
	case types.StatusApproved:
		return types.ActionAccessApproved, true
	case types.StatusDenied:
		return types.ActionAccessDenied, true
	case types.StatusRevoked:
		return types.ActionAccessRevoked, true
	}
	return "", false
}
