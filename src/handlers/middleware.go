package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/username/sellersync/backend/src/logger"
	"github.com/username/sellersync/backend/src/security"
	"github.com/username/sellersync/backend/src/utils"
)

type contextKey string

const companyIDContextKey = contextKey("companyID")

// GetCompanyIDFromContext returns the caller's company id placed in the
// request context by AuthMiddleware.
func GetCompanyIDFromContext(ctx context.Context) (string, bool) {
	companyID, ok := ctx.Value(companyIDContextKey).(string)
	return companyID, ok
}

// AuthMiddleware validates the ERP-issued bearer token and stashes the
// caller identity in the request context.
func AuthMiddleware(authService *security.AuthService, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.L.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			logger.L.Debug("AuthMiddleware: Token string empty", "path", r.URL.Path)
			utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		companyID, err := authService.ValidateToken(tokenString)
		if err != nil {
			logger.L.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), companyIDContextKey, companyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
