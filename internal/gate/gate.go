// Package gate turns an identity snapshot and an access request into a
// render decision: nothing, loading, children, login-required, a fallback,
// or a redirect.
package gate

import (
	"github.com/cleanops/cleanops/internal/identity"
	"github.com/cleanops/cleanops/internal/rbac"
)

// Default denial copy.
const (
	DefaultNoAccessMessage      = "You don't have access to this section."
	DefaultLoginRequiredMessage = "Please sign in to continue."
)

// Props is the caller's declaration for one gated region.
type Props struct {
	rbac.Criteria

	Fallback Fallback
	// ShowNoAccess enables login-required and panel denial UI. When false,
	// only an explicit node or the minimal marker is shown on denial.
	ShowNoAccess    bool
	NoAccessMessage string
	RedirectTo      string
}

// Recorder observes settled decisions.
type Recorder interface {
	ObserveGateDecision(state, outcome, query string)
}

// Gate evaluates Props against identity snapshots.
type Gate struct {
	eval     *rbac.Evaluator
	recorder Recorder
}

// New constructs a Gate. recorder may be nil.
func New(eval *rbac.Evaluator, recorder Recorder) *Gate {
	return &Gate{eval: eval, recorder: recorder}
}

// Evaluator exposes the evaluator backing the gate.
func (g *Gate) Evaluator() *rbac.Evaluator {
	return g.eval
}

// Evaluate runs one pass. It is pure: identical inputs give identical
// decisions, and neither the snapshot nor the matrix is modified.
func (g *Gate) Evaluate(snap identity.Snapshot, props Props) Decision {
	d := g.evaluate(snap, props)
	g.record(d)
	return d
}

func (g *Gate) record(d Decision) {
	if g.recorder != nil {
		g.recorder.ObserveGateDecision(d.State.String(), d.Outcome.String(), d.Query)
	}
}

func (g *Gate) evaluate(snap identity.Snapshot, props Props) Decision {
	h, ok := observe(snap).hydrated()
	if !ok {
		return Decision{State: Unhydrated, Outcome: RenderNothing}
	}
	c, ok := h.checked()
	if !ok {
		return Decision{State: CheckingAuth, Outcome: RenderLoading}
	}
	a, ok := c.authenticated()
	if !ok {
		return unauthenticated(props)
	}

	q := rbac.Resolve(props.Criteria)
	if a.allowed(g.eval, q) {
		return Decision{State: Granted, Outcome: RenderChildren, Query: q.Kind()}
	}
	d := denied(props)
	d.Query = q.Kind()
	return d
}

func unauthenticated(props Props) Decision {
	d := Decision{State: Unauthenticated, Fallback: props.Fallback}
	switch {
	case props.Fallback.Kind() == FallbackNone:
		d.Outcome = RenderNothing
	case props.ShowNoAccess:
		d.Outcome = RenderLoginRequired
		d.Message = DefaultLoginRequiredMessage
	default:
		applyFallback(&d, props)
	}
	return d
}

func denied(props Props) Decision {
	d := Decision{State: Denied, Fallback: props.Fallback}
	if props.RedirectTo != "" {
		d.Outcome = Redirect
		d.RedirectTo = props.RedirectTo
		return d
	}
	applyFallback(&d, props)
	return d
}

// applyFallback resolves, top-down: caller node, none, minimal, default
// panel. The panel is suppressed when ShowNoAccess is off.
func applyFallback(d *Decision, props Props) {
	msg := props.NoAccessMessage
	if msg == "" {
		msg = DefaultNoAccessMessage
	}
	switch props.Fallback.Kind() {
	case FallbackNode:
		d.Outcome = RenderFallback
	case FallbackNone:
		d.Outcome = RenderNothing
	case FallbackMinimal:
		d.Outcome = RenderFallback
		d.Message = msg
	default:
		if !props.ShowNoAccess {
			d.Outcome = RenderNothing
			return
		}
		d.Outcome = RenderFallback
		d.Message = msg
	}
}
