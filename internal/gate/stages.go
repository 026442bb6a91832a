package gate

import (
	"github.com/cleanops/cleanops/internal/identity"
	"github.com/cleanops/cleanops/internal/rbac"
)

// The stage types below enforce the read order
// isHydrated -> authChecked -> isAuthenticated -> permission result.
// Each value can only be obtained from the previous stage, and only an
// authenticated value can produce a grant.

type observed struct {
	snap identity.Snapshot
}

type hydrated struct {
	snap identity.Snapshot
}

type checked struct {
	snap identity.Snapshot
}

type authenticated struct {
	user *rbac.User
}

func observe(snap identity.Snapshot) observed {
	return observed{snap: snap}
}

func (o observed) hydrated() (hydrated, bool) {
	if !o.snap.IsHydrated {
		return hydrated{}, false
	}
	return hydrated(o), true
}

func (h hydrated) checked() (checked, bool) {
	if !h.snap.AuthChecked {
		return checked{}, false
	}
	return checked(h), true
}

func (c checked) authenticated() (authenticated, bool) {
	user := c.snap.Principal()
	if user == nil {
		return authenticated{}, false
	}
	return authenticated{user: user}, true
}

func (a authenticated) allowed(eval *rbac.Evaluator, q rbac.AccessQuery) bool {
	return eval.Check(a.user, q)
}
