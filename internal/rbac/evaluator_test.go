package rbac_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanops/cleanops/internal/rbac"
)

func newEvaluator(t *testing.T) *rbac.Evaluator {
	t.Helper()
	eval, err := rbac.Load("", "")
	require.NoError(t, err)
	return eval
}

func user(role rbac.Role) *rbac.User {
	return &rbac.User{ID: 1, Name: "Test", Role: role}
}

func TestNilUserIsAlwaysDenied(t *testing.T) {
	eval := newEvaluator(t)

	assert.False(t, eval.HasPermission(nil, rbac.ModuleDashboard, rbac.ActionView))
	assert.False(t, eval.CanAccessFeature(nil, "dashboard.overview"))
	assert.False(t, eval.CanAccessRoute(nil, "/"))
	assert.False(t, eval.HasRole(nil, rbac.NewRoleSet(rbac.Roles()...)))
}

func TestHasPermission(t *testing.T) {
	eval := newEvaluator(t)

	assert.True(t, eval.HasPermission(user(rbac.RoleOwner), rbac.ModuleFinance, rbac.ActionViewFinance))
	assert.False(t, eval.HasPermission(user(rbac.RoleManager), rbac.ModuleFinance, rbac.ActionViewFinance))
	assert.False(t, eval.HasPermission(user("ADMIN"), rbac.ModuleDashboard, rbac.ActionView))
}

func TestCanAccessFeature(t *testing.T) {
	eval := newEvaluator(t)

	assert.True(t, eval.CanAccessFeature(user(rbac.RoleSupervisor), "tasks.create_button"))
	assert.False(t, eval.CanAccessFeature(user(rbac.RoleCleaner), "tasks.create_button"))
	assert.False(t, eval.CanAccessFeature(user(rbac.RoleOwner), "no.such.feature"))
}

func TestCanAccessRoute(t *testing.T) {
	eval := newEvaluator(t)

	assert.True(t, eval.CanAccessRoute(user(rbac.RoleCleaner), "/tasks/17"))
	assert.False(t, eval.CanAccessRoute(user(rbac.RoleCleaner), "/tasks/new"))
	assert.True(t, eval.CanAccessRoute(user(rbac.RoleClient), "/bookings"))
	assert.False(t, eval.CanAccessRoute(user(rbac.RoleOwner), "/no-such-page"))
}

func TestHasRoleIsExactMembership(t *testing.T) {
	eval := newEvaluator(t)
	allowed := rbac.NewRoleSet(rbac.RoleOwner, rbac.RoleManager)

	assert.True(t, eval.HasRole(user(rbac.RoleManager), allowed))
	assert.False(t, eval.HasRole(user(rbac.RoleSupervisor), allowed))
	assert.False(t, eval.HasRole(user("Manager"), allowed))
	assert.False(t, eval.HasRole(user(rbac.RoleOwner), rbac.NewRoleSet()))
}

func TestHasRoleNeverMatchesNonCanonicalNames(t *testing.T) {
	eval := newEvaluator(t)

	assert.False(t, eval.HasRole(user("ADMIN"), rbac.NewRoleSet("ADMIN")))
	assert.False(t, eval.HasRole(user("ADMIN"), rbac.RoleSet{"ADMIN": {}}))
	assert.Empty(t, rbac.NewRoleSet("ADMIN", "Owner"))
	assert.True(t, rbac.NewRoleSet("ADMIN", rbac.RoleOwner).Contains(rbac.RoleOwner))
}

func TestRolesWithFeatureDerivesAllowLists(t *testing.T) {
	eval := newEvaluator(t)

	assert.Equal(t, []rbac.Role{rbac.RoleOwner}, eval.RolesWithFeature("settings.tab.users"))
	assert.Equal(t, []rbac.Role{rbac.RoleOwner, rbac.RoleManager}, eval.RolesWithFeature("settings.tab.company"))
	assert.Empty(t, eval.RolesWithFeature("settings.tab.missing"))
}

func TestEvaluationIsDeterministic(t *testing.T) {
	eval := newEvaluator(t)
	u := user(rbac.RoleSupervisor)

	first := eval.CanAccessRoute(u, "/tasks/new")
	for i := 0; i < 100; i++ {
		require.Equal(t, first, eval.CanAccessRoute(u, "/tasks/new"))
	}
}

func TestParseRole(t *testing.T) {
	role, ok := rbac.ParseRole("cleaner")
	assert.True(t, ok)
	assert.Equal(t, rbac.RoleCleaner, role)

	for _, raw := range []string{"CLEANER", "Cleaner", " cleaner", "employee", ""} {
		_, ok := rbac.ParseRole(raw)
		assert.False(t, ok, raw)
	}
}
