package rbac

// Evaluator answers "can this user do X" against an immutable Matrix and
// Catalog. Every method is pure, never blocks, and resolves unknown input to
// denial.
type Evaluator struct {
	matrix  *Matrix
	catalog *Catalog
}

// NewEvaluator wires an evaluator.
func NewEvaluator(matrix *Matrix, catalog *Catalog) *Evaluator {
	return &Evaluator{matrix: matrix, catalog: catalog}
}

// Load builds the matrix and catalog from the embedded policy, or from the
// given override paths.
func Load(policyPath, catalogPath string) (*Evaluator, error) {
	matrix, err := LoadMatrix(policyPath)
	if err != nil {
		return nil, err
	}
	catalog, err := LoadCatalog(catalogPath)
	if err != nil {
		return nil, err
	}
	return NewEvaluator(matrix, catalog), nil
}

// Matrix exposes the underlying matrix.
func (e *Evaluator) Matrix() *Matrix {
	if e == nil {
		return nil
	}
	return e.matrix
}

// Catalog exposes the underlying catalog.
func (e *Evaluator) Catalog() *Catalog {
	if e == nil {
		return nil
	}
	return e.catalog
}

// HasPermission reports whether user may perform action within module.
// A nil user is always denied.
func (e *Evaluator) HasPermission(user *User, module Module, action Action) bool {
	if e == nil || user == nil {
		return false
	}
	return e.matrix.Allows(user.Role, module, action)
}

// CanAccessFeature resolves featureKey through the catalog. Undeclared keys
// are denied.
func (e *Evaluator) CanAccessFeature(user *User, featureKey string) bool {
	if e == nil || user == nil {
		return false
	}
	perm, ok := e.catalog.FeatureRequirement(featureKey)
	if !ok {
		return false
	}
	return e.matrix.Allows(user.Role, perm.Module, perm.Action)
}

// CanAccessRoute resolves routePath through the catalog. Undeclared routes
// are denied.
func (e *Evaluator) CanAccessRoute(user *User, routePath string) bool {
	if e == nil || user == nil {
		return false
	}
	perm, ok := e.catalog.RouteRequirement(routePath)
	if !ok {
		return false
	}
	return e.matrix.Allows(user.Role, perm.Module, perm.Action)
}

// HasRole reports whether user's role is in allowed. Roles outside the
// canonical set never match, even when allowed names them.
func (e *Evaluator) HasRole(user *User, allowed RoleSet) bool {
	if user == nil || !user.Role.Valid() {
		return false
	}
	return allowed.Contains(user.Role)
}

// RolesWithFeature lists the canonical roles that can reach featureKey.
// Feature-local allow-lists are derived here instead of being kept by hand.
func (e *Evaluator) RolesWithFeature(featureKey string) []Role {
	roles := make([]Role, 0, len(allRoles))
	for _, role := range allRoles {
		if e.CanAccessFeature(&User{Role: role}, featureKey) {
			roles = append(roles, role)
		}
	}
	return roles
}
