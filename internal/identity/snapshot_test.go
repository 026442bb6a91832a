package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cleanops/cleanops/internal/rbac"
)

func TestPrincipalRequiresEveryFlag(t *testing.T) {
	u := &rbac.User{ID: 1, Role: rbac.RoleCleaner}

	assert.Same(t, u, Authenticated(u).Principal())
	assert.Equal(t, rbac.RoleCleaner, Authenticated(u).Role())
	assert.Nil(t, Snapshot{User: u, AuthChecked: true, IsAuthenticated: true}.Principal())
	assert.Nil(t, Snapshot{User: u, IsHydrated: true, IsAuthenticated: true}.Principal())
	assert.Nil(t, Snapshot{User: u, IsHydrated: true, AuthChecked: true}.Principal())
	assert.Equal(t, rbac.Role(""), Anonymous().Role())
	assert.Equal(t, Anonymous(), Authenticated(nil))
}

func TestSnapshotContext(t *testing.T) {
	assert.Equal(t, Snapshot{}, FromContext(context.Background()))

	ctx := ContextWithSnapshot(context.Background(), Pending())
	assert.Equal(t, Pending(), FromContext(ctx))
}
