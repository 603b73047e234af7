package http

import (
	"net/http"
	"strconv"

	"github.com/samber/oops"

	"github.com/aussiebroadwan/triage/internal/auth/domain"
	"github.com/aussiebroadwan/triage/internal/auth/service"
	"github.com/aussiebroadwan/triage/pkg/authsdk"
	"github.com/aussiebroadwan/triage/pkg/errcode"
	"github.com/aussiebroadwan/triage/pkg/httpx"
)

// UsersHandler serves /v1/users. Route middleware has already checked the
// caller's permissions.
type UsersHandler struct {
	UserService *service.UserService
}

// HandleList godoc
//
//	@Summary		List users
//	@Description	Requires users:read.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			role	query		string	false	"Filter by role"	Enums(admin, operator, analyst, viewer)
//	@Param			offset	query		int		false	"Rows to skip"
//	@Param			limit	query		int		false	"Page size (max 200)"
//	@Success		200		{object}	authsdk.ListUsersResponse
//	@Failure		401		{object}	authsdk.ErrorResponse
//	@Failure		403		{object}	authsdk.ErrorResponse	"INSUFFICIENT_PERMISSIONS"
//	@Router			/v1/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	offset, err := queryInt(q.Get("offset"), "offset")
	if err != nil {
		errcode.Write(w, err)
		return
	}
	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		errcode.Write(w, err)
		return
	}

	filter := domain.UserFilter{Offset: offset, Limit: limit}
	if role := q.Get("role"); role != "" {
		filter.Role, _ = domain.ParseRole(role)
	}

	users, total, err := h.UserService.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := authsdk.ListUsersResponse{
		Users:  make([]authsdk.UserResponse, len(users)),
		Total:  total,
		Offset: offset,
		Limit:  service.DefaultPageSize,
	}
	if limit > 0 {
		resp.Limit = min(limit, service.MaxPageSize)
	}
	for i, u := range users {
		resp.Users[i] = toUserResponse(u)
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet godoc
//
//	@Summary		Get a user
//	@Description	Users may fetch themselves; anyone else needs users:read.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		int	true	"User id"
//	@Success		200	{object}	authsdk.UserResponse
//	@Failure		403	{object}	authsdk.ErrorResponse	"ACCESS_DENIED"
//	@Failure		404	{object}	authsdk.ErrorResponse	"USER_NOT_FOUND"
//	@Router			/v1/users/{id} [get].
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	user, err := h.UserService.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleUpdateRole godoc
//
//	@Summary		Change a user's role
//	@Description	Requires users:manage. Callers cannot change their own role.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int							true	"User id"
//	@Param			request	body		authsdk.UpdateRoleRequest	true	"New role"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		403		{object}	authsdk.ErrorResponse	"INSUFFICIENT_PERMISSIONS"
//	@Failure		404		{object}	authsdk.ErrorResponse	"USER_NOT_FOUND"
//	@Failure		422		{object}	authsdk.ErrorResponse	"VALIDATION_ERROR"
//	@Router			/v1/users/{id}/role [patch].
func (h *UsersHandler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req authsdk.UpdateRoleRequest
	if !decode(w, r, &req) {
		return
	}

	actor, _ := httpx.UserIDFrom(r.Context())
	user, err := h.UserService.ChangeRole(r.Context(), actor, id, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleUpdateActive godoc
//
//	@Summary		Activate or deactivate a user
//	@Description	Requires users:manage. Callers cannot deactivate themselves.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int							true	"User id"
//	@Param			request	body		authsdk.UpdateActiveRequest	true	"Activation flag"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		403		{object}	authsdk.ErrorResponse	"INSUFFICIENT_PERMISSIONS"
//	@Failure		404		{object}	authsdk.ErrorResponse	"USER_NOT_FOUND"
//	@Router			/v1/users/{id}/active [patch].
func (h *UsersHandler) HandleUpdateActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req authsdk.UpdateActiveRequest
	if !decode(w, r, &req) {
		return
	}

	actor, _ := httpx.UserIDFrom(r.Context())
	user, err := h.UserService.SetActive(r.Context(), actor, id, *req.IsActive)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleDelete godoc
//
//	@Summary		Delete a user
//	@Description	Requires users:delete. The account is soft-deleted.
//	@Tags			Users
//	@Security		BearerAuth
//	@Param			id	path	int	true	"User id"
//	@Success		204
//	@Failure		403	{object}	authsdk.ErrorResponse	"INSUFFICIENT_PERMISSIONS"
//	@Failure		404	{object}	authsdk.ErrorResponse	"USER_NOT_FOUND"
//	@Router			/v1/users/{id} [delete].
func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	actor, _ := httpx.UserIDFrom(r.Context())
	if err := h.UserService.Delete(r.Context(), actor, id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		errcode.Write(w, oops.Code(errcode.UserNotFound).Errorf("user not found"))
		return 0, false
	}
	return id, true
}

func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, oops.
			Code(errcode.ValidationError).
			With(errcode.KeyErrors, []string{name + " must be a non-negative integer"}).
			Errorf("request validation failed")
	}
	return n, nil
}
