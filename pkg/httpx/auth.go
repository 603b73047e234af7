package httpx

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/triage/pkg/errcode"
	"github.com/aussiebroadwan/triage/pkg/slogx"
)

// Authenticator resolves an Authorization header value to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, authorizationHeader string) (int64, error)
}

// PermissionChecker authorizes an already authenticated user.
type PermissionChecker interface {
	RequirePermission(ctx context.Context, userID int64, permission string) error
	RequireSelfOr(ctx context.Context, userID, targetID int64, permission string) error
}

// RequireAuth rejects requests without a valid access token and stores the
// caller's id in the request context.
func RequireAuth(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")

			userID, err := a.Authenticate(r.Context(), header)
			if err != nil {
				slogx.FromContext(r.Context()).Debug("authentication failed", "code", errcode.Of(err))
				errcode.Write(w, err)
				return
			}

			ctx := WithUserID(r.Context(), userID)
			ctx = withToken(ctx, BearerToken(header))
			ctx = slogx.WithUserID(ctx, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission must run after RequireAuth.
func RequirePermission(c PermissionChecker, permission string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFrom(r.Context())
			if err := c.RequirePermission(r.Context(), userID, permission); err != nil {
				errcode.Write(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSelfOr lets a user act on their own record, identified by the
// path value param, or anyone holding permission act on any record.
func RequireSelfOr(c PermissionChecker, param, permission string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFrom(r.Context())

			// An unparsable target is never "self".
			target, err := strconv.ParseInt(r.PathValue(param), 10, 64)
			if err != nil {
				target = -1
			}

			if err := c.RequireSelfOr(r.Context(), userID, target, permission); err != nil {
				errcode.Write(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// value. The scheme is matched case-insensitively.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
