package grants

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rajatsgill7/medicalledger/internal/store"
	"github.com/rajatsgill7/medicalledger/pkg/logger"
	"github.com/rajatsgill7/medicalledger/pkg/types"
)

// Engine answers whether a doctor currently has access to a patient's records
// and manages access request state transitions. All expiry evaluation happens
// at call time against the wall clock; nothing is cached across the expiry
// boundary.
type Engine struct {
	store  store.Store
	logger *logger.Logger
	now    func() time.Time
}

// NewEngine creates a new access grant engine
func NewEngine(s store.Store, log *logger.Logger) *Engine {
	return &Engine{
		store:  s,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the engine's clock, for use in tests
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// HasAccess reports whether the doctor holds at least one currently valid
// grant for the patient. Side-effect-free and safe to call on every read.
func (e *Engine) HasAccess(ctx context.Context, doctorID, patientID string) (bool, error) {
	reqs, err := e.store.FindApprovedGrants(ctx, doctorID, patientID)
	if err != nil {
		return false, err
	}

	now := e.now()
	for _, req := range reqs {
		if grantActive(req, now) {
			return true, nil
		}
	}
	return false, nil
}

// ActiveGrants returns every request currently satisfying the HasAccess
// predicate. Multiple concurrently valid grants are returned as-is; it is
// the caller's choice to treat any one as sufficient.
func (e *Engine) ActiveGrants(ctx context.Context, doctorID, patientID string) ([]*types.AccessRequest, error) {
	reqs, err := e.store.FindApprovedGrants(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var active []*types.AccessRequest
	for _, req := range reqs {
		if grantActive(req, now) {
			active = append(active, req)
		}
	}
	return active, nil
}

// CreateRequest creates a new pending access request. No access is granted by
// this call alone, and no audit entry is emitted here; the authorization gate
// owns audit logging for the operation.
func (e *Engine) CreateRequest(ctx context.Context, in *types.CreateAccessRequest) (*types.AccessRequest, error) {
	if strings.TrimSpace(in.Purpose) == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "purpose is required", nil)
	}
	if in.Duration <= 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "duration must be a positive number of days", map[string]interface{}{
			"duration": in.Duration,
		})
	}
	if in.DoctorID == "" || in.PatientID == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "doctor_id and patient_id are required", nil)
	}

	patient, err := e.store.GetUser(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if patient.Role != types.RolePatient {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "target user is not a patient", map[string]interface{}{
			"patient_id": in.PatientID,
		})
	}

	req := &types.AccessRequest{
		ID:           uuid.New().String(),
		DoctorID:     in.DoctorID,
		PatientID:    in.PatientID,
		Purpose:      in.Purpose,
		DurationDays: in.Duration,
		Status:       types.StatusPending,
		Notes:        in.Notes,
		LimitedScope: in.LimitedScope,
		RequestDate:  e.now().UTC(),
	}

	if err := e.store.CreateAccessRequest(ctx, req); err != nil {
		return nil, err
	}

	e.logger.Info("Access request created",
		"request_id", req.ID,
		"doctor_id", req.DoctorID,
		"patient_id", req.PatientID,
		"duration_days", req.DurationDays,
	)
	return req, nil
}

// Decide transitions an access request to a new status. Allowed transitions:
//
//	pending  -> approved   expiry set to now + duration
//	pending  -> denied     expiry stays null
//	approved -> revoked    expiry preserved; status alone kills the grant
//	denied   -> approved   expiry recomputed from the moment of override
//	approved -> approved   renewal; expiry recomputed from the renewal moment
//
// Anything else is rejected and the stored status is left unchanged. The
// write is guarded by a status precondition so concurrent decisions on the
// same request serialize instead of clobbering each other.
func (e *Engine) Decide(ctx context.Context, requestID string, newStatus types.RequestStatus, deciderID string) (*types.AccessRequest, error) {
	switch newStatus {
	case types.StatusApproved, types.StatusDenied, types.StatusRevoked:
	default:
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "status must be approved, denied or revoked", map[string]interface{}{
			"status": string(newStatus),
		})
	}

	// One retry covers the benign race where a concurrent renewal leaves the
	// request in a state the transition is still valid from.
	for attempt := 0; attempt < 2; attempt++ {
		req, err := e.store.GetAccessRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}

		if !transitionAllowed(req.Status, newStatus) {
			return nil, types.NewInvalidTransitionError(req.Status, newStatus)
		}

		var expiry *time.Time
		if newStatus == types.StatusApproved {
			days := req.DurationDays
			if days <= 0 {
				// Fail open with the default window rather than rejecting an
				// otherwise valid approval over a missing duration.
				days = types.DefaultGrantDurationDays
				e.logger.Warn("Access request missing duration, applying default",
					"request_id", req.ID,
					"default_days", days,
				)
			}
			t := e.now().UTC().AddDate(0, 0, days)
			expiry = &t
		}

		err = e.store.UpdateAccessRequestStatus(ctx, requestID, req.Status, newStatus, expiry)
		if err == store.ErrStaleStatus {
			continue
		}
		if err != nil {
			return nil, err
		}

		updated := *req
		updated.Status = newStatus
		if expiry != nil {
			updated.ExpiryDate = expiry
		}

		e.logger.Info("Access request decided",
			"request_id", requestID,
			"status", string(newStatus),
			"decided_by", deciderID,
		)
		return &updated, nil
	}

	return nil, &types.LedgerError{
		Type:    types.ErrorTypeConflict,
		Code:    types.ErrCodeConflict,
		Message: "access request was modified concurrently, retry the decision",
	}
}

// grantActive reports whether the request grants access at the given instant.
// Status must be approved strictly; a revoked request never grants even with
// a future expiry. A nil expiry on an approved request grants indefinitely.
func grantActive(req *types.AccessRequest, now time.Time) bool {
	if req.Status != types.StatusApproved {
		return false
	}
	if req.ExpiryDate == nil {
		return true
	}
	return req.ExpiryDate.After(now)
}

func transitionAllowed(current, next types.RequestStatus) bool {
	switch current {
	case types.StatusPending:
		return next == types.StatusApproved || next == types.StatusDenied
	case types.StatusApproved:
		return next == types.StatusRevoked || next == types.StatusApproved
	case types.StatusDenied:
		return next == types.StatusApproved
	}
	return false
}
