package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ownerContextKey struct{}

// OwnerKey carries the authenticated caller identity through the context.
// Authentication itself happens upstream; this service trusts the header its
// fronting layer sets.
var OwnerKey = ownerContextKey{}

const ownerHeader = "X-Owner-ID"

// ClientOwner requires the caller identity header on owned routes.
func ClientOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(ownerHeader))
		if owner == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","message":"missing owner identity"}`))
			return
		}
		ctx := context.WithValue(r.Context(), OwnerKey, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OwnerFromContext returns the caller identity, empty when absent.
func OwnerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(OwnerKey).(string); ok {
		return v
	}
	return ""
}
