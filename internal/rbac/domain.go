package rbac

import "slices"

// Role is the single access tier assigned to a user for a session.
type Role string

// Canonical roles. Comparison is exact; there is no case folding.
const (
	RoleOwner      Role = "owner"
	RoleManager    Role = "manager"
	RoleSupervisor Role = "supervisor"
	RoleCleaner    Role = "cleaner"
	RoleClient     Role = "client"
)

// Module is a coarse functional area subject to access control.
type Module string

// Modules known to the matrix.
const (
	ModuleDashboard    Module = "dashboard"
	ModuleTasks        Module = "tasks"
	ModuleEmployees    Module = "employees"
	ModuleProperties   Module = "properties"
	ModuleBookings     Module = "bookings"
	ModuleInventory    Module = "inventory"
	ModuleInvoices     Module = "invoices"
	ModuleFinance      Module = "finance"
	ModuleTraining     Module = "training"
	ModuleAnalytics    Module = "analytics"
	ModuleReports      Module = "reports"
	ModuleSettings     Module = "settings"
	ModuleIntegrations Module = "integrations"
)

// Action is an operation within a module.
type Action string

// Actions known to the matrix.
const (
	ActionView        Action = "view"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionManageUsers Action = "manage_users"
	ActionConfigure   Action = "configure"
	ActionViewFinance Action = "view_finance"
	ActionAccess      Action = "access"
	ActionExport      Action = "export"
	ActionAssign      Action = "assign"
)

var (
	allRoles = []Role{RoleOwner, RoleManager, RoleSupervisor, RoleCleaner, RoleClient}

	allModules = []Module{
		ModuleDashboard, ModuleTasks, ModuleEmployees, ModuleProperties, ModuleBookings,
		ModuleInventory, ModuleInvoices, ModuleFinance, ModuleTraining, ModuleAnalytics,
		ModuleReports, ModuleSettings, ModuleIntegrations,
	}

	allActions = []Action{
		ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionManageUsers,
		ActionConfigure, ActionViewFinance, ActionAccess, ActionExport, ActionAssign,
	}
)

// Roles returns the canonical role list, most privileged first.
func Roles() []Role {
	return slices.Clone(allRoles)
}

// ParseRole maps a stored role name to a canonical Role.
// Anything outside the canonical set is rejected rather than normalised.
func ParseRole(raw string) (Role, bool) {
	role := Role(raw)
	if !role.Valid() {
		return "", false
	}
	return role, true
}

// Valid reports whether r belongs to the canonical set.
func (r Role) Valid() bool {
	return slices.Contains(allRoles, r)
}

// Valid reports whether m is a declared module.
func (m Module) Valid() bool {
	return slices.Contains(allModules, m)
}

// Valid reports whether a is a declared action.
func (a Action) Valid() bool {
	return slices.Contains(allActions, a)
}

// User is the identity produced by the session layer. A nil *User is the
// unauthenticated state.
type User struct {
	ID    int64
	Name  string
	Role  Role
	Email string
}

// RoleSet is an explicit role allow-list.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from roles. Non-canonical names are dropped.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r.Valid() {
			set[r] = struct{}{}
		}
	}
	return set
}

// Contains reports membership.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}
