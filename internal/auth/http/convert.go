package http

import (
	"net/http"

	"github.com/aussiebroadwan/triage/internal/auth/domain"
	"github.com/aussiebroadwan/triage/pkg/authsdk"
	"github.com/aussiebroadwan/triage/pkg/errcode"
	"github.com/aussiebroadwan/triage/pkg/httpx"
	"github.com/aussiebroadwan/triage/pkg/slogx"
)

func toUserResponse(u domain.User) authsdk.UserResponse {
	return authsdk.UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FullName:    u.FullName,
		Role:        string(u.Role),
		Permissions: domain.PermissionsFor(u.Role),
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func toTokenResponse(p domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
	}
}

// writeError renders err and logs it when it is not a client error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if code := errcode.Of(err); code == errcode.ServerError {
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
	}
	errcode.Write(w, err)
}

// decode reads and validates a JSON request body, writing the error response
// itself. It reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		errcode.Write(w, err)
		return false
	}
	return true
}
