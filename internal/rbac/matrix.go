package rbac

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed policy/model.conf
var embeddedModel string

//go:embed policy/policy.csv
var embeddedPolicy string

// Permission names one (module, action) cell of the matrix.
type Permission struct {
	Module Module
	Action Action
}

// String renders the permission as "module.action".
func (p Permission) String() string {
	return string(p.Module) + "." + string(p.Action)
}

// Matrix is the total, default-deny mapping (Role, Module, Action) -> bool.
// It is built once and never mutated, so it can be shared freely.
type Matrix struct {
	grants map[Role]map[Permission]struct{}
}

// NewMatrix builds a Matrix from explicit grants. Unknown roles, modules and
// actions are ignored.
func NewMatrix(grants map[Role][]Permission) *Matrix {
	m := &Matrix{grants: make(map[Role]map[Permission]struct{}, len(grants))}
	for role, perms := range grants {
		if !role.Valid() {
			continue
		}
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			if !p.Module.Valid() || !p.Action.Valid() {
				continue
			}
			set[p] = struct{}{}
		}
		m.grants[role] = set
	}
	return m
}

// Allows reports whether role may perform action within module. Any triple
// not granted, including unknown identifiers, evaluates to false.
func (m *Matrix) Allows(role Role, module Module, action Action) bool {
	if m == nil {
		return false
	}
	perms, ok := m.grants[role]
	if !ok {
		return false
	}
	_, ok = perms[Permission{Module: module, Action: action}]
	return ok
}

// Grants returns the role's permissions sorted by module then action.
func (m *Matrix) Grants(role Role) []Permission {
	if m == nil {
		return nil
	}
	perms := make([]Permission, 0, len(m.grants[role]))
	for p := range m.grants[role] {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Module != perms[j].Module {
			return perms[i].Module < perms[j].Module
		}
		return perms[i].Action < perms[j].Action
	})
	return perms
}

// LoadMatrix builds the matrix from the embedded Casbin policy, or from
// policyPath when it is set.
func LoadMatrix(policyPath string) (*Matrix, error) {
	policy := embeddedPolicy
	if policyPath != "" {
		raw, err := os.ReadFile(policyPath)
		if err != nil {
			return nil, fmt.Errorf("rbac: read policy: %w", err)
		}
		policy = string(raw)
	}
	return ParseMatrix(policy)
}

// ParseMatrix builds the matrix from Casbin policy text. Role inheritance
// ("g" rows) is flattened so the resulting lookups never walk a hierarchy.
func ParseMatrix(policy string) (*Matrix, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("rbac: load casbin model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac: create casbin enforcer: %w", err)
	}
	if err := loadPolicyRows(enforcer, policy); err != nil {
		return nil, err
	}

	grants := make(map[Role][]Permission, len(allRoles))
	for _, role := range allRoles {
		rows, err := enforcer.GetImplicitPermissionsForUser(string(role))
		if err != nil {
			return nil, fmt.Errorf("rbac: expand %s: %w", role, err)
		}
		for _, row := range rows {
			if len(row) < 3 {
				continue
			}
			grants[role] = append(grants[role], Permission{Module: Module(row[1]), Action: Action(row[2])})
		}
	}
	return NewMatrix(grants), nil
}

func loadPolicyRows(enforcer *casbin.Enforcer, policy string) error {
	for n, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch parts[0] {
		case "p":
			if len(parts) != 4 {
				return fmt.Errorf("rbac: policy line %d: want p, role, module, action", n+1)
			}
			role, module, action := Role(parts[1]), Module(parts[2]), Action(parts[3])
			if !role.Valid() {
				return fmt.Errorf("rbac: policy line %d: unknown role %q", n+1, parts[1])
			}
			if !module.Valid() {
				return fmt.Errorf("rbac: policy line %d: unknown module %q", n+1, parts[2])
			}
			if !action.Valid() {
				return fmt.Errorf("rbac: policy line %d: unknown action %q", n+1, parts[3])
			}
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("rbac: policy line %d: %w", n+1, err)
			}
		case "g":
			if len(parts) != 3 {
				return fmt.Errorf("rbac: policy line %d: want g, role, parent", n+1)
			}
			if !Role(parts[1]).Valid() || !Role(parts[2]).Valid() {
				return fmt.Errorf("rbac: policy line %d: unknown role in %q", n+1, line)
			}
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("rbac: policy line %d: %w", n+1, err)
			}
		default:
			return fmt.Errorf("rbac: policy line %d: unknown row type %q", n+1, parts[0])
		}
	}
	return nil
}
