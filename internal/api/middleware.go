package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rajatsgill7/medicalledger/pkg/types"
)

type contextKey string

const claimsContextKey contextKey = "user_claims"

// ClaimsFromContext extracts the authenticated user claims from the request
// context
func ClaimsFromContext(ctx context.Context) (*types.UserClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*types.UserClaims)
	return claims, ok
}

// corsMiddleware handles CORS headers
func (h *Handlers) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds security headers
func (h *Handlers) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs requests and responses
func (h *Handlers) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)

		h.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"status_code", recorder.statusCode,
			"duration_ms", duration.Milliseconds(),
		)
	})
}

// authMiddleware validates JWT tokens and injects the caller's claims into
// the request context
func (h *Handlers) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization header format")
			return
		}

		claims, err := h.tokens.ValidateToken(parts[1])
		if err != nil {
			h.logger.Warn("Token validation failed", "error", err)
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}

		revoked, err := h.revocation.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			h.logger.Error("Revocation check failed", "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to verify token status")
			return
		}
		if revoked {
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "token has been revoked")
			return
		}

		userClaims := &types.UserClaims{
			UserID:   claims.UserID,
			Username: claims.Username,
			Role:     types.UserRole(claims.Role),
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, userClaims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP extracts the client address, honoring X-Forwarded-For when the
// service sits behind a proxy
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
