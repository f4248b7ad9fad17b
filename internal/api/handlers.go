package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rajatsgill7/medicalledger/internal/audit"
	"github.com/rajatsgill7/medicalledger/internal/authz"
	"github.com/rajatsgill7/medicalledger/internal/store"
	"github.com/rajatsgill7/medicalledger/pkg/logger"
	"github.com/rajatsgill7/medicalledger/pkg/monitoring"
	"github.com/rajatsgill7/medicalledger/pkg/types"
)

// Handlers contains the HTTP handlers for the access-control service
type Handlers struct {
	gate         *authz.Gate
	store        store.Store
	audit        *audit.Logger
	tokens       *TokenValidator
	revocation   RevocationList
	loginLimiter *LoginLimiter
	logger       *logger.Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(gate *authz.Gate, s store.Store, auditLog *audit.Logger, tokens *TokenValidator, revocation RevocationList, limiter *LoginLimiter, log *logger.Logger) *Handlers {
	return &Handlers{
		gate:         gate,
		store:        s,
		audit:        auditLog,
		tokens:       tokens,
		revocation:   revocation,
		loginLimiter: limiter,
		logger:       log,
	}
}

// Router builds the service router with all middleware and routes registered
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.corsMiddleware)
	router.Use(h.securityHeadersMiddleware)
	router.Use(h.loggingMiddleware)
	router.Use(monitoring.HTTPMiddleware)

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Handle("/auth/login", h.rateLimitMiddleware(http.HandlerFunc(h.Login))).Methods("POST")

	protected := api.NewRoute().Subrouter()
	protected.Use(h.authMiddleware)

	protected.HandleFunc("/auth/logout", h.Logout).Methods("POST")

	// Records
	protected.HandleFunc("/records", h.CreateRecord).Methods("POST")
	protected.HandleFunc("/records/{recordID}", h.GetRecord).Methods("GET")
	protected.HandleFunc("/records/{recordID}", h.UpdateRecord).Methods("PUT")
	protected.HandleFunc("/patients/{patientID}/records", h.ListPatientRecords).Methods("GET")

	// Access requests
	protected.HandleFunc("/access-requests", h.CreateAccessRequest).Methods("POST")
	protected.HandleFunc("/access-requests/{requestID}", h.DecideAccessRequest).Methods("PUT")
	protected.HandleFunc("/patients/{patientID}/access-requests", h.ListPatientAccess).Methods("GET")
	protected.HandleFunc("/doctors/{doctorID}/access-requests", h.ListDoctorAccess).Methods("GET")

	// Audit trail
	protected.HandleFunc("/audit-logs", h.ListAuditLogs).Methods("GET")

	// Profile and settings
	protected.HandleFunc("/profile", h.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/profile/password", h.ChangePassword).Methods("PUT")
	protected.HandleFunc("/profile/notifications", h.GetNotificationPreferences).Methods("GET")
	protected.HandleFunc("/profile/notifications", h.UpdateNotificationPreferences).Methods("PUT")

	return router
}

// HealthCheck reports service liveness
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "access-service",
		"timestamp": time.Now().UTC(),
	})
}

// GetRecord handles single record retrieval
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	recordID := mux.Vars(r)["recordID"]

	record, err := h.gate.FetchRecord(r.Context(), caller, recordID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// ListPatientRecords handles listing a patient's records
func (h *Handlers) ListPatientRecords(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	patientID := mux.Vars(r)["patientID"]

	records, err := h.gate.ListPatientRecords(r.Context(), caller, patientID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	if records == nil {
		records = []*types.MedicalRecord{}
	}
	h.writeJSON(w, http.StatusOK, records)
}

// CreateRecord handles medical record upload
func (h *Handlers) CreateRecord(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req types.CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	record, err := h.gate.CreateRecord(r.Context(), caller, &req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, record)
}

// UpdateRecord handles updates to a record's mutable fields
func (h *Handlers) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	recordID := mux.Vars(r)["recordID"]

	var updates types.RecordUpdates
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	record, err := h.gate.UpdateRecord(r.Context(), caller, recordID, &updates)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// CreateAccessRequest handles a doctor requesting access to a patient's
// records
func (h *Handlers) CreateAccessRequest(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req types.CreateAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	created, err := h.gate.RequestAccess(r.Context(), caller, &req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

// DecideAccessRequest handles approving, denying or revoking a request
func (h *Handlers) DecideAccessRequest(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	requestID := mux.Vars(r)["requestID"]

	var decision types.DecideAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	updated, err := h.gate.DecideRequest(r.Context(), caller, requestID, decision.Status)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, updated)
}

// ListPatientAccess handles the patient-facing access request listing
func (h *Handlers) ListPatientAccess(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	patientID := mux.Vars(r)["patientID"]

	views, err := h.gate.ListAccessForPatient(r.Context(), caller, patientID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	if views == nil {
		views = []*types.PatientAccessView{}
	}
	h.writeJSON(w, http.StatusOK, views)
}

// ListDoctorAccess handles the doctor-facing access request listing
func (h *Handlers) ListDoctorAccess(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	doctorID := mux.Vars(r)["doctorID"]

	views, err := h.gate.ListAccessForDoctor(r.Context(), caller, doctorID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	if views == nil {
		views = []*types.DoctorAccessView{}
	}
	h.writeJSON(w, http.StatusOK, views)
}

// ListAuditLogs handles the admin audit trail listing
func (h *Handlers) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	views, err := h.gate.ListAuditLogs(r.Context(), caller, limit, offset)
	if err != nil {
		h.handleError(w, err)
		return
	}

	if views == nil {
		views = []*types.AuditLogView{}
	}
	h.writeJSON(w, http.StatusOK, views)
}

// caller resolves the authenticated caller from the request context
func (h *Handlers) caller(w http.ResponseWriter, r *http.Request) (authz.Caller, bool) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User identity not found in request")
		return authz.Caller{}, false
	}
	return authz.Caller{
		ID:   claims.UserID,
		Role: claims.Role,
		IP:   clientIP(r),
	}, true
}

// handleError maps structured errors to HTTP responses
func (h *Handlers) handleError(w http.ResponseWriter, err error) {
	if ledgerErr, ok := err.(*types.LedgerError); ok {
		status := http.StatusInternalServerError
		switch ledgerErr.Type {
		case types.ErrorTypeValidation, types.ErrorTypeInvalidTransition:
			status = http.StatusBadRequest
		case types.ErrorTypeAuthentication:
			status = http.StatusUnauthorized
		case types.ErrorTypeForbidden:
			status = http.StatusForbidden
		case types.ErrorTypeNotFound:
			status = http.StatusNotFound
		case types.ErrorTypeConflict:
			status = http.StatusConflict
		}
		h.writeError(w, status, ledgerErr.Code, ledgerErr.Message)
		return
	}

	h.logger.Error("Unhandled error", "error", err)
	h.writeError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, code, message string) {
	errorResponse := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}

	h.writeJSON(w, status, errorResponse)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
