package rbac

import "strings"

// Criteria is the raw authorization request a screen declares. Several
// fields may be set; Resolve picks exactly one.
type Criteria struct {
	Module       Module
	Action       Action
	Feature      string
	Route        string
	AllowedRoles []Role
}

// AccessQuery is the resolved intent of a single check. The concrete types
// below are its only implementations.
type AccessQuery interface {
	accessQuery()
	Kind() string
}

// ByPermission checks one matrix cell.
type ByPermission struct {
	Module Module
	Action Action
}

// ByFeature checks a catalog feature key.
type ByFeature struct {
	Key string
}

// ByRoute checks a catalog route.
type ByRoute struct {
	Path string
}

// ByRoleSet checks membership in an explicit role allow-list.
type ByRoleSet struct {
	Roles RoleSet
}

// Unrestricted is resolved when the caller declared no criterion.
type Unrestricted struct{}

func (ByPermission) accessQuery() {}
func (ByFeature) accessQuery()    {}
func (ByRoute) accessQuery()      {}
func (ByRoleSet) accessQuery()    {}
func (Unrestricted) accessQuery() {}

func (ByPermission) Kind() string { return "permission" }
func (ByFeature) Kind() string    { return "feature" }
func (ByRoute) Kind() string      { return "route" }
func (ByRoleSet) Kind() string    { return "roles" }
func (Unrestricted) Kind() string { return "none" }

// Resolve selects one query using the fixed precedence
// permission > feature > route > role set. Lower-precedence criteria are
// ignored, not combined. A module without an action (or the reverse) still
// counts as a permission criterion and can never be granted.
func Resolve(c Criteria) AccessQuery {
	switch {
	case c.Module != "" || c.Action != "":
		return ByPermission{Module: c.Module, Action: c.Action}
	case strings.TrimSpace(c.Feature) != "":
		return ByFeature{Key: c.Feature}
	case strings.TrimSpace(c.Route) != "":
		return ByRoute{Path: c.Route}
	case c.AllowedRoles != nil:
		return ByRoleSet{Roles: NewRoleSet(c.AllowedRoles...)}
	default:
		return Unrestricted{}
	}
}

// Check dispatches q for user. A nil user is denied for every variant,
// including Unrestricted; callers gate on authentication first.
func (e *Evaluator) Check(user *User, q AccessQuery) bool {
	if user == nil {
		return false
	}
	switch q := q.(type) {
	case ByPermission:
		return e.HasPermission(user, q.Module, q.Action)
	case ByFeature:
		return e.CanAccessFeature(user, q.Key)
	case ByRoute:
		return e.CanAccessRoute(user, q.Path)
	case ByRoleSet:
		return e.HasRole(user, q.Roles)
	case Unrestricted:
		return true
	default:
		return false
	}
}
