// Package identity is the read-only seam between the session layer and the
// authorization core. Nothing in here issues or refreshes sessions; it only
// reports what the session layer has determined so far.
package identity

import (
	"context"

	"github.com/cleanops/cleanops/internal/rbac"
)

// Snapshot is the identity state observed at one point in time. The zero
// value is the unhydrated state.
type Snapshot struct {
	User            *rbac.User
	AuthChecked     bool
	IsAuthenticated bool
	IsHydrated      bool
}

// Anonymous is a hydrated, checked snapshot without a user.
func Anonymous() Snapshot {
	return Snapshot{IsHydrated: true, AuthChecked: true}
}

// Pending is a hydrated snapshot whose auth determination has not finished.
func Pending() Snapshot {
	return Snapshot{IsHydrated: true}
}

// Authenticated is a hydrated, checked snapshot for user. A nil user yields
// Anonymous.
func Authenticated(user *rbac.User) Snapshot {
	if user == nil {
		return Anonymous()
	}
	return Snapshot{User: user, IsHydrated: true, AuthChecked: true, IsAuthenticated: true}
}

// Principal returns the user only when every flag agrees that it can be
// trusted; otherwise nil.
func (s Snapshot) Principal() *rbac.User {
	if !s.IsHydrated || !s.AuthChecked || !s.IsAuthenticated {
		return nil
	}
	return s.User
}

// Role returns the trusted user's role, or "" when there is none.
func (s Snapshot) Role() rbac.Role {
	if u := s.Principal(); u != nil {
		return u.Role
	}
	return ""
}

type snapshotContextKey struct{}

// ContextWithSnapshot stores s in ctx.
func ContextWithSnapshot(ctx context.Context, s Snapshot) context.Context {
	return context.WithValue(ctx, snapshotContextKey{}, s)
}

// FromContext returns the snapshot stored in ctx, or the unhydrated zero
// value when none was stored.
func FromContext(ctx context.Context) Snapshot {
	s, _ := ctx.Value(snapshotContextKey{}).(Snapshot)
	return s
}
