// Package errcode declares the machine-readable failure codes returned to API
// clients and renders coded errors as JSON responses.
//
// Errors are built with github.com/samber/oops so that a code travels with
// the error through service layers:
//
//	return oops.Code(errcode.InvalidToken).Errorf("token verification failed")
//
// Handlers call Write and never decide status codes themselves.
package errcode

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/oops"
)

// Authentication failures. A client distinguishes "not logged in" from
// "bad or expired session" from "wrong token family" using these.
const (
	AuthenticationRequired = "AUTHENTICATION_REQUIRED"
	InvalidToken           = "INVALID_TOKEN"
	InvalidRefreshToken    = "INVALID_REFRESH_TOKEN"
	InvalidUserID          = "INVALID_USER_ID"
	InvalidCredentials     = "INVALID_CREDENTIALS"
	AccountInactive        = "ACCOUNT_INACTIVE"
)

// Authorization failures.
const (
	InsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	AccessDenied            = "ACCESS_DENIED"
)

// Validation and account lifecycle failures.
const (
	InvalidRequest           = "INVALID_REQUEST"
	ValidationError          = "VALIDATION_ERROR"
	WeakPassword             = "WEAK_PASSWORD"
	EmailAlreadyRegistered   = "EMAIL_ALREADY_REGISTERED"
	UsernameTaken            = "USERNAME_TAKEN"
	InvalidResetToken        = "INVALID_RESET_TOKEN"
	InvalidVerificationToken = "INVALID_VERIFICATION_TOKEN"
	UserNotFound             = "USER_NOT_FOUND"
)

// Throttling and infrastructure.
const (
	RateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	ServerError        = "SERVER_ERROR"
)

// Context keys attached with oops.With and surfaced to clients.
const (
	KeyLimit     = "limit"
	KeyRemaining = "remaining"
	KeyResetTime = "reset_time"
	KeyErrors    = "errors"
)

var statusByCode = map[string]int{
	AuthenticationRequired: http.StatusUnauthorized,
	InvalidToken:           http.StatusUnauthorized,
	InvalidRefreshToken:    http.StatusUnauthorized,
	InvalidUserID:          http.StatusUnauthorized,
	InvalidCredentials:     http.StatusUnauthorized,
	AccountInactive:        http.StatusForbidden,

	InsufficientPermissions: http.StatusForbidden,
	AccessDenied:            http.StatusForbidden,

	InvalidRequest:           http.StatusBadRequest,
	ValidationError:          http.StatusUnprocessableEntity,
	WeakPassword:             http.StatusUnprocessableEntity,
	EmailAlreadyRegistered:   http.StatusConflict,
	UsernameTaken:            http.StatusConflict,
	InvalidResetToken:        http.StatusBadRequest,
	InvalidVerificationToken: http.StatusBadRequest,
	UserNotFound:             http.StatusNotFound,

	RateLimitExceeded:  http.StatusTooManyRequests,
	ServiceUnavailable: http.StatusServiceUnavailable,
	ServerError:        http.StatusInternalServerError,
}

// Response is the JSON body written for every failed request.
type Response struct {
	Code        string   `json:"error"`
	Description string   `json:"error_description"`
	Errors      []string `json:"errors,omitempty"`
	Limit       *int     `json:"limit,omitempty"`
	Remaining   *int     `json:"remaining,omitempty"`
	ResetTime   *int64   `json:"reset_time,omitempty"`
}

// Of returns the code carried by err, or ServerError when err carries none.
func Of(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ServerError
	}
	code := fmt.Sprint(oopsErr.Code())
	if _, known := statusByCode[code]; !known {
		return ServerError
	}
	return code
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && Of(err) == code
}

// Status maps a code to its HTTP status.
func Status(code string) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Context returns the key/value context attached to a coded error.
func Context(err error) map[string]any {
	var oopsErr oops.OopsError
	if !errors.As(err, &oopsErr) {
		return nil
	}
	return oopsErr.Context()
}

// Describe builds the response body for err. Server errors never expose the
// underlying message.
func Describe(err error) Response {
	code := Of(err)
	resp := Response{Code: code, Description: "internal server error"}
	if code == ServerError {
		return resp
	}

	var oopsErr oops.OopsError
	if errors.As(err, &oopsErr) {
		resp.Description = oopsErr.Error()
	}

	ctx := Context(err)
	if v, ok := ctx[KeyErrors].([]string); ok {
		resp.Errors = v
	}
	if v, ok := ctx[KeyLimit].(int); ok {
		resp.Limit = &v
	}
	if v, ok := ctx[KeyRemaining].(int); ok {
		resp.Remaining = &v
	}
	if v, ok := ctx[KeyResetTime].(int64); ok {
		resp.ResetTime = &v
	}
	return resp
}

// Write renders err as a JSON error response. Rate-limit failures also get
// Retry-After and X-RateLimit-* headers.
func Write(w http.ResponseWriter, err error) {
	resp := Describe(err)

	if resp.Code == RateLimitExceeded && resp.ResetTime != nil {
		retryAfter := max(*resp.ResetTime-time.Now().Unix(), 1)
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(*resp.ResetTime, 10))
		if resp.Limit != nil {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(*resp.Limit))
		}
		w.Header().Set("X-RateLimit-Remaining", "0")
	}
	if resp.Code == AuthenticationRequired || resp.Code == InvalidToken {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}

	writeJSON(w, Status(resp.Code), resp)
}
