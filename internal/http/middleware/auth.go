package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/attendance-beacon/internal/domain"
	"github.com/diagnosis/attendance-beacon/internal/http/response"
	"github.com/diagnosis/attendance-beacon/internal/repo/postgres"
	"github.com/diagnosis/attendance-beacon/pkg/auth"
	"github.com/diagnosis/attendance-beacon/pkg/logger"
)

type ctxKey string

const (
	CtxClaims ctxKey = "claims"
	CtxOrg    ctxKey = "org"
)

// RequireMemberJWT authenticates members via bearer token and puts the
// parsed claims in the request context.
func RequireMemberJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				response.Unauthorized(w, "missing or invalid authorization header")
				return
			}

			raw := strings.TrimPrefix(authz, "Bearer ")
			claims, err := auth.Parse(raw, secret)
			if err != nil {
				response.Unauthorized(w, "invalid authorization token")
				return
			}

			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			ctx = context.WithValue(ctx, logger.MemberIDKey, claims.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Claims returns the member claims from the request context, nil if absent.
func Claims(r *http.Request) *auth.Claims {
	v := r.Context().Value(CtxClaims)
	if v == nil {
		return nil
	}
	return v.(*auth.Claims)
}

// RequireOrgKey authenticates organizer endpoints with the per-org
// provisioning key from the X-Org-Key header, verified against the stored
// argon2id hash. The resolved org is placed in the request context.
func RequireOrgKey(orgs postgres.OrgRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := chi.URLParam(r, "slug")
			key := r.Header.Get("X-Org-Key")
			if slug == "" || key == "" {
				response.Unauthorized(w, "missing organization key")
				return
			}

			org, err := orgs.FindBySlug(r.Context(), slug)
			if err != nil {
				logger.ErrorContext(r.Context(), "Failed to load organization", "error", err, "slug", slug)
				response.InternalError(w, "failed to load organization")
				return
			}
			if org == nil {
				response.NotFound(w, "unknown organization")
				return
			}
			if !org.Active {
				response.Forbidden(w, "organization is not active")
				return
			}

			match, err := argon2id.ComparePasswordAndHash(key, org.APIKeyHash)
			if err != nil || !match {
				response.Unauthorized(w, "invalid organization key")
				return
			}

			ctx := context.WithValue(r.Context(), CtxOrg, org)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Org returns the authenticated organization from the request context.
func Org(r *http.Request) *domain.Org {
	v := r.Context().Value(CtxOrg)
	if v == nil {
		return nil
	}
	return v.(*domain.Org)
}
