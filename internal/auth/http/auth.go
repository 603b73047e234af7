package http

import (
	"net/http"

	"github.com/aussiebroadwan/triage/internal/auth/service"
	"github.com/aussiebroadwan/triage/pkg/authsdk"
	"github.com/aussiebroadwan/triage/pkg/httpx"
)

// resetRequestedMessage is returned for every reset request, whether or not
// the address is registered.
const resetRequestedMessage = "If the email is registered, a password reset link has been sent."

// AuthHandler serves the /v1/auth endpoints.
type AuthHandler struct {
	AuthService *service.AuthService
}

// HandleRegister godoc
//
//	@Summary		Register an account
//	@Description	Creates a viewer account and sends an email verification token.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"Account details"
//	@Success		201		{object}	authsdk.UserResponse
//	@Failure		409		{object}	authsdk.ErrorResponse	"EMAIL_ALREADY_REGISTERED or USERNAME_TAKEN"
//	@Failure		422		{object}	authsdk.ErrorResponse	"WEAK_PASSWORD or VALIDATION_ERROR"
//	@Failure		429		{object}	authsdk.ErrorResponse	"RATE_LIMIT_EXCEEDED"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.AuthService.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// HandleLogin godoc
//
//	@Summary		Log in
//	@Description	Exchanges an email or username and password for an access and refresh token.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"INVALID_CREDENTIALS"
//	@Failure		403		{object}	authsdk.ErrorResponse	"ACCOUNT_INACTIVE"
//	@Failure		429		{object}	authsdk.ErrorResponse	"RATE_LIMIT_EXCEEDED"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	pair, user, err := h.AuthService.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := toTokenResponse(pair)
	u := toUserResponse(user)
	resp.User = &u

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleRefresh godoc
//
//	@Summary		Refresh tokens
//	@Description	Exchanges a refresh token for a new token pair. The presented refresh token is revoked.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"INVALID_TOKEN or INVALID_REFRESH_TOKEN"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.AuthService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(pair))
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Revokes the access token used for the request and, when given, the refresh token.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LogoutRequest	false	"Refresh token to revoke"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		401		{object}	authsdk.ErrorResponse
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LogoutRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	userID, _ := httpx.UserIDFrom(r.Context())
	if err := h.AuthService.Logout(r.Context(), userID, httpx.TokenFrom(r.Context()), req.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Logged out."})
}

// HandleMe godoc
//
//	@Summary		Current user
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Failure		403	{object}	authsdk.ErrorResponse	"ACCOUNT_INACTIVE"
//	@Router			/v1/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserIDFrom(r.Context())

	user, err := h.AuthService.Me(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleChangePassword godoc
//
//	@Summary		Change password
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"INVALID_CREDENTIALS"
//	@Failure		422		{object}	authsdk.ErrorResponse	"WEAK_PASSWORD"
//	@Router			/v1/auth/change-password [post].
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	userID, _ := httpx.UserIDFrom(r.Context())
	if err := h.AuthService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Password changed."})
}

// HandlePasswordResetRequest godoc
//
//	@Summary		Request a password reset
//	@Description	Always answers with the same message so registered addresses cannot be discovered.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasswordResetRequest	true	"Email address"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		429		{object}	authsdk.ErrorResponse	"RATE_LIMIT_EXCEEDED"
//	@Router			/v1/auth/password-reset/request [post].
func (h *AuthHandler) HandlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PasswordResetRequest
	if !decode(w, r, &req) {
		return
	}

	_ = h.AuthService.RequestPasswordReset(r.Context(), req.Email)
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: resetRequestedMessage})
}

// HandlePasswordResetConfirm godoc
//
//	@Summary		Reset a password
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasswordResetConfirmRequest	true	"Reset token and new password"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"INVALID_RESET_TOKEN"
//	@Failure		422		{object}	authsdk.ErrorResponse	"WEAK_PASSWORD"
//	@Router			/v1/auth/password-reset/confirm [post].
func (h *AuthHandler) HandlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PasswordResetConfirmRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.AuthService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Password has been reset."})
}

// HandleVerifyEmail godoc
//
//	@Summary		Verify an email address
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyEmailRequest	true	"Verification token"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"INVALID_VERIFICATION_TOKEN"
//	@Router			/v1/auth/verify-email [post].
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyEmailRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.AuthService.VerifyEmail(r.Context(), req.Token); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Email verified."})
}

// HandleValidatePassword godoc
//
//	@Summary		Check a password against the policy
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ValidatePasswordRequest	true	"Candidate password"
//	@Success		200		{object}	authsdk.ValidatePasswordResponse
//	@Router			/v1/auth/password/validate [post].
func (h *AuthHandler) HandleValidatePassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ValidatePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	res := h.AuthService.ValidatePassword(req.Password)
	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.ValidatePasswordResponse{
		IsValid: res.IsValid,
		Errors:  errs,
		Score:   res.Score,
	})
}
