package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const tenantKey contextKey = "tenantId"

// AdminAuth guards the administrative surface. Full administrator identity
// lives in an external system; this service only checks the shared API key
// and takes the caller's tenant from the X-Tenant-ID header.
func AdminAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Api-Key") != apiKey {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			tenantID, err := uuid.Parse(r.Header.Get("X-Tenant-ID"))
			if err != nil {
				http.Error(w, "X-Tenant-ID header must be a valid UUID", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), tenantKey, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFromContext returns the tenant set by AdminAuth.
func TenantFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(tenantKey).(uuid.UUID)
	return id, ok
}
