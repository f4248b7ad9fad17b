package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rajatsgill7/medicalledger/pkg/types"
)

// Login handles user authentication and token issuance
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var credentials types.Credentials
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	if credentials.Username == "" || credentials.Password == "" {
		h.writeError(w, http.StatusBadRequest, "validation_error", "Username and password are required")
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), credentials.Username)
	if err != nil {
		// Same response for unknown user and bad password
		h.logger.Security("login_failed", credentials.Username, map[string]interface{}{
			"remote_addr": r.RemoteAddr,
		})
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credentials.Password)); err != nil {
		h.logger.Security("login_failed", user.ID, map[string]interface{}{
			"remote_addr": r.RemoteAddr,
		})
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
		return
	}

	if !user.IsActive {
		h.writeError(w, http.StatusForbidden, "forbidden", "Account is deactivated")
		return
	}

	token, err := h.tokens.IssueToken(user)
	if err != nil {
		h.logger.Error("Failed to issue token", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to issue token")
		return
	}

	if err := h.audit.Record(r.Context(), user.ID, types.ActionLogin, "username="+user.Username, clientIP(r)); err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user.Summary(),
	})
}

// Logout revokes the presented token for its remaining lifetime
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	claims, err := h.tokens.ValidateToken(parts[1])
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}

	ttl := time.Duration(0)
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := h.revocation.Revoke(r.Context(), claims.ID, ttl); err != nil {
		h.logger.Error("Failed to revoke token", "error", err, "user_id", caller.ID)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to revoke token")
		return
	}

	if err := h.audit.Record(r.Context(), caller.ID, types.ActionLogout, "", caller.IP); err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// UpdateProfile handles updates to the caller's own profile fields
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var updates types.ProfileUpdates
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	if err := h.store.UpdateUserProfile(r.Context(), caller.ID, &updates); err != nil {
		h.handleError(w, err)
		return
	}

	if err := h.audit.Record(r.Context(), caller.ID, types.ActionProfileUpdated, "", caller.IP); err != nil {
		h.handleError(w, err)
		return
	}

	user, err := h.store.GetUser(r.Context(), caller.ID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// ChangePassword handles the caller changing their own password
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var change types.PasswordChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	if len(change.NewPassword) < 8 {
		h.writeError(w, http.StatusBadRequest, "validation_error", "New password must be at least 8 characters")
		return
	}

	user, err := h.store.GetUser(r.Context(), caller.ID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(change.CurrentPassword)); err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(change.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("Failed to hash password", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to change password")
		return
	}

	if err := h.store.UpdateUserPassword(r.Context(), caller.ID, string(hash)); err != nil {
		h.handleError(w, err)
		return
	}

	if err := h.audit.Record(r.Context(), caller.ID, types.ActionPasswordChanged, "", caller.IP); err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// GetNotificationPreferences returns the caller's notification settings
func (h *Handlers) GetNotificationPreferences(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	raw, err := h.store.GetNotificationPreferences(r.Context(), caller.ID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, types.ParseNotificationPreferences(raw))
}

// UpdateNotificationPreferences replaces the caller's notification settings
func (h *Handlers) UpdateNotificationPreferences(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var prefs types.NotificationPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	// Stored blobs always carry the current schema version
	prefs.Version = types.NotificationPreferencesVersion

	raw, err := json.Marshal(prefs)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to encode preferences")
		return
	}

	if err := h.store.SetNotificationPreferences(r.Context(), caller.ID, raw); err != nil {
		h.handleError(w, err)
		return
	}

	if err := h.audit.Record(r.Context(), caller.ID, types.ActionNotificationPrefs, "", caller.IP); err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, prefs)
}
