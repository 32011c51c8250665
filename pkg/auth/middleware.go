package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/logger"
	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/google/uuid"
)

type contextKey string

const staffContextKey contextKey = "staff"

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		r.Header.Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)

		logger.Log.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
			"request_id":  reqID,
			"duration":    time.Since(start).Milliseconds(),
		}).Info("HTTP request")
	})
}

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Log.WithField("error", err).Error("Panic recovered")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// MaxBody caps the request body size. Oversized payloads make the handler's
// body read fail, which surfaces as a 400 from the JSON decoders.
func MaxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate validates the bearer token and stores the staff identity in
// the request context for downstream access-level checks.
func Authenticate(manager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("Authorization")
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			token = strings.TrimPrefix(token, "Bearer ")

			claims, err := manager.ValidateToken(r.Context(), token)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			staff := StaffIdentity{
				StaffID:     claims.StaffID,
				Email:       claims.Email,
				AccessLevel: claims.AccessLevel,
			}
			ctx := context.WithValue(r.Context(), staffContextKey, staff)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireLevel denies requests whose authenticated staff identity ranks
// below the given access level.
func RequireLevel(level string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			staff, ok := StaffFromContext(r.Context())
			if !ok || models.AccessRank(staff.AccessLevel) < models.AccessRank(level) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func StaffFromContext(ctx context.Context) (StaffIdentity, bool) {
	staff, ok := ctx.Value(staffContextKey).(StaffIdentity)
	return staff, ok
}
