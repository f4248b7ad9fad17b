package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rajatsgill7/medicalledger/pkg/types"
)

// MemoryStore is an in-memory Store implementation used by tests and dev
// mode. It honors the same status precondition semantics as the Postgres
// store.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*types.User
	prefs    map[string][]byte
	records  map[string]*types.MedicalRecord
	requests map[string]*types.AccessRequest
	audits   []*types.AuditLog
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*types.User),
		prefs:    make(map[string][]byte),
		records:  make(map[string]*types.MedicalRecord),
		requests: make(map[string]*types.AccessRequest),
	}
}

// CreateUser stores a new user
func (s *MemoryStore) CreateUser(ctx context.Context, user *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return types.NewValidationError(types.ErrCodeConflict, "user already exists", nil)
	}
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return types.NewValidationError("USERNAME_EXISTS", "username already exists", nil)
		}
	}

	copied := *user
	s.users[user.ID] = &copied
	return nil
}

// GetUser retrieves a user by id
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, types.NewNotFoundError("USER_NOT_FOUND", "user not found")
	}
	copied := *user
	return &copied, nil
}

// GetUserByUsername retrieves a user by username
func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, types.NewNotFoundError("USER_NOT_FOUND", "user not found")
}

// UpdateUserProfile updates mutable profile fields
func (s *MemoryStore) UpdateUserProfile(ctx context.Context, id string, updates *types.ProfileUpdates) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return types.NewNotFoundError("USER_NOT_FOUND", "user not found")
	}

	if updates.Name != "" {
		user.Name = updates.Name
	}
	if updates.Email != "" {
		user.Email = updates.Email
	}
	if updates.Specialty != "" {
		user.Specialty = updates.Specialty
	}
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateUserPassword replaces the stored password hash
func (s *MemoryStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return types.NewNotFoundError("USER_NOT_FOUND", "user not found")
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// GetNotificationPreferences returns the stored settings blob, nil when unset
func (s *MemoryStore) GetNotificationPreferences(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[id]; !ok {
		return nil, types.NewNotFoundError("USER_NOT_FOUND", "user not found")
	}
	raw, ok := s.prefs[id]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// SetNotificationPreferences replaces the stored settings blob
func (s *MemoryStore) SetNotificationPreferences(ctx context.Context, id string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return types.NewNotFoundError("USER_NOT_FOUND", "user not found")
	}
	stored := make([]byte, len(raw))
	copy(stored, raw)
	s.prefs[id] = stored
	return nil
}

// CreateRecord stores a new medical record
func (s *MemoryStore) CreateRecord(ctx context.Context, record *types.MedicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return types.NewValidationError(types.ErrCodeConflict, "record already exists", nil)
	}
	copied := *record
	s.records[record.ID] = &copied
	return nil
}

// GetRecord retrieves a medical record by id
func (s *MemoryStore) GetRecord(ctx context.Context, id string) (*types.MedicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, types.NewNotFoundError("RECORD_NOT_FOUND", "medical record not found")
	}
	copied := *record
	return &copied, nil
}

// ListRecordsByPatient returns all records owned by the patient, newest first
func (s *MemoryStore) ListRecordsByPatient(ctx context.Context, patientID string) ([]*types.MedicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.MedicalRecord
	for _, record := range s.records {
		if record.PatientID == patientID {
			copied := *record
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RecordDate.After(out[j].RecordDate)
	})
	return out, nil
}

// UpdateRecord applies updates to the mutable fields of a record
func (s *MemoryStore) UpdateRecord(ctx context.Context, id string, updates *types.RecordUpdates) (*types.MedicalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, types.NewNotFoundError("RECORD_NOT_FOUND", "medical record not found")
	}

	if updates.Notes != nil {
		record.Notes = *updates.Notes
	}
	if updates.FileURL != nil {
		record.FileURL = *updates.FileURL
	}
	if updates.Verified != nil {
		record.Verified = *updates.Verified
	}
	record.UpdatedAt = time.Now().UTC()

	copied := *record
	return &copied, nil
}

// CountRecordsByPatient counts records owned by the patient
func (s *MemoryStore) CountRecordsByPatient(ctx context.Context, patientID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, record := range s.records {
		if record.PatientID == patientID {
			count++
		}
	}
	return count, nil
}

// CreateAccessRequest stores a new access request
func (s *MemoryStore) CreateAccessRequest(ctx context.Context, req *types.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return types.NewValidationError(types.ErrCodeConflict, "access request already exists", nil)
	}
	copied := copyAccessRequest(req)
	s.requests[req.ID] = copied
	return nil
}

// GetAccessRequest retrieves an access request by id
func (s *MemoryStore) GetAccessRequest(ctx context.Context, id string) (*types.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, types.NewNotFoundError("ACCESS_REQUEST_NOT_FOUND", "access request not found")
	}
	return copyAccessRequest(req), nil
}

// FindApprovedGrants returns approved requests for the doctor/patient pair
func (s *MemoryStore) FindApprovedGrants(ctx context.Context, doctorID, patientID string) ([]*types.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.AccessRequest
	for _, req := range s.requests {
		if req.DoctorID == doctorID && req.PatientID == patientID && req.Status == types.StatusApproved {
			out = append(out, copyAccessRequest(req))
		}
	}
	return out, nil
}

// ListAccessRequestsByPatient returns all requests targeting the patient
func (s *MemoryStore) ListAccessRequestsByPatient(ctx context.Context, patientID string) ([]*types.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.AccessRequest
	for _, req := range s.requests {
		if req.PatientID == patientID {
			out = append(out, copyAccessRequest(req))
		}
	}
	sortAccessRequests(out)
	return out, nil
}

// ListAccessRequestsByDoctor returns all requests made by the doctor
func (s *MemoryStore) ListAccessRequestsByDoctor(ctx context.Context, doctorID string) ([]*types.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.AccessRequest
	for _, req := range s.requests {
		if req.DoctorID == doctorID {
			out = append(out, copyAccessRequest(req))
		}
	}
	sortAccessRequests(out)
	return out, nil
}

// UpdateAccessRequestStatus transitions a request guarded by the expected
// current status
func (s *MemoryStore) UpdateAccessRequestStatus(ctx context.Context, id string, expected, next types.RequestStatus, expiry *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return types.NewNotFoundError("ACCESS_REQUEST_NOT_FOUND", "access request not found")
	}
	if req.Status != expected {
		return ErrStaleStatus
	}

	req.Status = next
	if expiry != nil {
		copied := *expiry
		req.ExpiryDate = &copied
	}
	return nil
}

// AppendAuditLog appends an audit entry
func (s *MemoryStore) AppendAuditLog(ctx context.Context, entry *types.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *entry
	s.audits = append(s.audits, &copied)
	return nil
}

// ListAuditLogs returns audit entries newest first
func (s *MemoryStore) ListAuditLogs(ctx context.Context, limit, offset int) ([]*types.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := make([]*types.AuditLog, len(s.audits))
	copy(sorted, s.audits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	if offset >= len(sorted) {
		return nil, nil
	}
	sorted = sorted[offset:]
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}

	out := make([]*types.AuditLog, len(sorted))
	for i, entry := range sorted {
		copied := *entry
		out[i] = &copied
	}
	return out, nil
}

func copyAccessRequest(req *types.AccessRequest) *types.AccessRequest {
	copied := *req
	if req.ExpiryDate != nil {
		expiry := *req.ExpiryDate
		copied.ExpiryDate = &expiry
	}
	return &copied
}

func sortAccessRequests(reqs []*types.AccessRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].RequestDate.After(reqs[j].RequestDate)
	})
}
