package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tablecast/internal/models"
	"tablecast/internal/store"
)

type contextKey string

const tableContextKey contextKey = "table"

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// adminAuth guards facilitator endpoints with the configured admin token.
func (a *API) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.adminToken == "" {
			writeError(w, http.StatusServiceUnavailable, "admin token not configured")
			return
		}
		if bearerToken(r) != a.adminToken {
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// deviceAuth resolves the device token to its registered table and stashes
// it in the request context.
func (a *API) deviceAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing device token")
			return
		}
		tbl, err := a.store.GetTableByToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unknown device token")
				return
			}
			a.logger.Error().Err(err).Msg("Device token lookup failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		ctx := context.WithValue(r.Context(), tableContextKey, tbl)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tableFromContext returns the table resolved by deviceAuth.
func tableFromContext(ctx context.Context) *models.Table {
	tbl, _ := ctx.Value(tableContextKey).(*models.Table)
	return tbl
}
