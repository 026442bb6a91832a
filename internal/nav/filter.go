// Package nav derives the sidebar for a role from the catalog's master list.
package nav

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cleanops/cleanops/internal/rbac"
)

// Entry is one navigation item together with the permission it needs.
type Entry struct {
	ID       string
	Label    string
	Route    string
	Requires rbac.Permission
	Active   bool
}

// Filter computes role-appropriate navigation.
type Filter struct {
	eval *rbac.Evaluator
}

// NewFilter constructs a Filter.
func NewFilter(eval *rbac.Evaluator) *Filter {
	return &Filter{eval: eval}
}

// ForRole returns the master list entries role can reach, in master order.
// Unknown or empty roles get the public entries only.
func (f *Filter) ForRole(role rbac.Role) []Entry {
	catalog := f.eval.Catalog()
	items := catalog.Navigation()
	out := make([]Entry, 0, len(items))

	if !role.Valid() {
		for _, item := range items {
			if item.Public {
				out = append(out, toEntry(catalog, item))
			}
		}
		return out
	}

	user := &rbac.User{Role: role}
	for _, item := range items {
		if f.eval.CanAccessRoute(user, item.Route) {
			out = append(out, toEntry(catalog, item))
		}
	}
	return out
}

// ForPath is ForRole with the entry owning currentPath marked active.
func (f *Filter) ForPath(role rbac.Role, currentPath string) []Entry {
	entries := f.ForRole(role)
	best := -1
	for i, e := range entries {
		if matches(e.Route, currentPath) && (best < 0 || len(e.Route) > len(entries[best].Route)) {
			best = i
		}
	}
	if best >= 0 {
		entries[best].Active = true
	}
	return entries
}

// RoleLabel renders a role name for display, e.g. "Supervisor".
func RoleLabel(role rbac.Role) string {
	if !role.Valid() {
		return "Guest"
	}
	return cases.Title(language.English).String(string(role))
}

func toEntry(catalog *rbac.Catalog, item rbac.NavItem) Entry {
	req, _ := catalog.RouteRequirement(item.Route)
	return Entry{ID: item.ID, Label: item.Label, Route: item.Route, Requires: req}
}

func matches(route, current string) bool {
	if route == "/" {
		return current == "/"
	}
	if len(current) < len(route) || current[:len(route)] != route {
		return false
	}
	return len(current) == len(route) || current[len(route)] == '/'
}
