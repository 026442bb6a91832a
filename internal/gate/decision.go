package gate

// State is a Render Gate state.
type State int

// Gate states. Unhydrated and CheckingAuth are transient; Unauthenticated,
// Granted and Denied are terminal for one evaluation pass. Resolving is
// passed through while the access query runs and is never returned.
const (
	Unhydrated State = iota
	CheckingAuth
	Unauthenticated
	Resolving
	Granted
	Denied
)

func (s State) String() string {
	switch s {
	case Unhydrated:
		return "unhydrated"
	case CheckingAuth:
		return "checking_auth"
	case Unauthenticated:
		return "unauthenticated"
	case Resolving:
		return "resolving"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further input is needed to settle s.
func (s State) Terminal() bool {
	return s == Unauthenticated || s == Granted || s == Denied
}

// Outcome is what the caller should put on screen.
type Outcome int

// Outcomes.
const (
	RenderNothing Outcome = iota
	RenderLoading
	RenderChildren
	RenderLoginRequired
	RenderFallback
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case RenderNothing:
		return "nothing"
	case RenderLoading:
		return "loading"
	case RenderChildren:
		return "children"
	case RenderLoginRequired:
		return "login_required"
	case RenderFallback:
		return "fallback"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the settled result of one evaluation pass.
type Decision struct {
	State    State
	Outcome  Outcome
	Fallback Fallback
	// Message is the denial text for login-required and fallback outcomes.
	Message string
	// RedirectTo is set only when Outcome is Redirect.
	RedirectTo string
	// Query names the access query variant that was evaluated, if any.
	Query string
}

// Allowed reports whether the protected content is shown.
func (d Decision) Allowed() bool {
	return d.State == Granted
}
