package http

import (
	"net/http"

	"github.com/aussiebroadwan/triage/internal/auth/service"
	"github.com/aussiebroadwan/triage/pkg/authsdk"
	"github.com/aussiebroadwan/triage/pkg/httpx"
)

type RolesHandler struct {
	UserService *service.UserService
}

// ServeHTTP handles the list roles endpoint
//
//	@Summary		List all roles
//	@Description	Returns every role with the permissions it grants.
//	@Tags			Roles
//	@Produce		json
//	@Success		200	{object}	authsdk.ListRolesResponse	"List of roles"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Unauthorized - missing or invalid token"
//	@Security		BearerAuth
//	@Router			/v1/roles [get].
func (h *RolesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roles := h.UserService.Roles()

	response := authsdk.ListRolesResponse{
		Roles: make([]authsdk.RoleInfo, len(roles)),
	}
	for i, role := range roles {
		response.Roles[i] = authsdk.RoleInfo{
			Name:        string(role.Name),
			Permissions: role.Permissions,
		}
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}
