package domain

import (
	"slices"
	"strings"
)

// Role names a fixed permission set. A user holds exactly one role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleAnalyst  Role = "analyst"
	RoleViewer   Role = "viewer"
)

// DefaultRole is assigned at registration.
const DefaultRole = RoleViewer

// Permission strings are "<resource>:<action>".
const (
	PermUsersRead   = "users:read"
	PermUsersManage = "users:manage"
	PermUsersDelete = "users:delete"

	PermScenariosRead   = "scenarios:read"
	PermScenariosWrite  = "scenarios:write"
	PermScenariosDelete = "scenarios:delete"

	PermAgentsRead    = "agents:read"
	PermAgentsWrite   = "agents:write"
	PermAgentsExecute = "agents:execute"

	PermResourcesRead  = "resources:read"
	PermResourcesWrite = "resources:write"

	PermDecisionsRead    = "decisions:read"
	PermDecisionsWrite   = "decisions:write"
	PermDecisionsApprove = "decisions:approve"

	PermMessagesRead  = "messages:read"
	PermMessagesWrite = "messages:write"

	PermSystemAdmin = "system:admin"
)

var readOnly = []string{
	PermScenariosRead,
	PermAgentsRead,
	PermResourcesRead,
	PermDecisionsRead,
	PermMessagesRead,
}

// rolePermissions is fixed at process start and never mutated.
var rolePermissions = map[Role][]string{
	RoleAdmin: {
		PermUsersRead, PermUsersManage, PermUsersDelete,
		PermScenariosRead, PermScenariosWrite, PermScenariosDelete,
		PermAgentsRead, PermAgentsWrite, PermAgentsExecute,
		PermResourcesRead, PermResourcesWrite,
		PermDecisionsRead, PermDecisionsWrite, PermDecisionsApprove,
		PermMessagesRead, PermMessagesWrite,
		PermSystemAdmin,
	},
	RoleOperator: {
		PermUsersRead,
		PermScenariosRead, PermScenariosWrite,
		PermAgentsRead, PermAgentsWrite, PermAgentsExecute,
		PermResourcesRead, PermResourcesWrite,
		PermDecisionsRead, PermDecisionsWrite, PermDecisionsApprove,
		PermMessagesRead, PermMessagesWrite,
	},
	RoleAnalyst: {
		PermScenariosRead,
		PermAgentsRead,
		PermResourcesRead,
		PermDecisionsRead, PermDecisionsWrite,
		PermMessagesRead, PermMessagesWrite,
	},
	RoleViewer: readOnly,
}

// Roles lists every role, most privileged first.
func Roles() []Role {
	return []Role{RoleAdmin, RoleOperator, RoleAnalyst, RoleViewer}
}

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	_, ok := rolePermissions[r]
	return r, ok
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// PermissionsFor returns a copy of the role's permissions, or nil for an
// unknown role.
func PermissionsFor(r Role) []string {
	return slices.Clone(rolePermissions[r])
}

// HasPermission reports whether r grants perm. Unknown roles grant nothing.
func HasPermission(r Role, perm string) bool {
	return slices.Contains(rolePermissions[r], perm)
}
