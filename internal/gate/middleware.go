package gate

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cleanops/cleanops/internal/identity"
	"github.com/cleanops/cleanops/internal/platform/httpx"
	"github.com/cleanops/cleanops/internal/rbac"
	"github.com/cleanops/cleanops/internal/shared"
)

// LoginPath is where unauthenticated page requests are sent.
const LoginPath = "/auth/login"

// PageWriter renders a full page around a gate fragment.
type PageWriter interface {
	WritePage(w http.ResponseWriter, r *http.Request, status int, title string, body template.HTML)
}

// Auditor records access events.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Middleware wires the gate into HTTP handlers. Renderer, Pages and Audit
// are optional.
type Middleware struct {
	Gate     *Gate
	Renderer *Renderer
	Pages    PageWriter
	Audit    Auditor
	Logger   *slog.Logger
}

// Require gates a handler with props. Granted requests reach next.
// Unauthenticated page requests are redirected to LoginPath and JSON
// requests get 401. Denied requests follow RedirectTo when set, otherwise
// they get 403 with the fallback fragment. While identity is still being
// determined the response is 503.
func (m Middleware) Require(props Props) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := identity.FromContext(r.Context())
			d := m.Gate.Evaluate(snap, props)
			switch d.State {
			case Granted:
				next.ServeHTTP(w, r)
			case Unauthenticated:
				if httpx.WantsJSON(r) {
					httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", DefaultLoginRequiredMessage)
					return
				}
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			case Denied:
				m.logger().Debug("gate denied request",
					slog.String("path", r.URL.Path),
					slog.String("query", d.Query),
					slog.String("outcome", d.Outcome.String()))
				m.audit(r, snap, d)
				if d.Outcome == Redirect {
					http.Redirect(w, r, d.RedirectTo, http.StatusSeeOther)
					return
				}
				if httpx.WantsJSON(r) {
					httpx.Problem(w, http.StatusForbidden, "Forbidden", denialDetail(d))
					return
				}
				m.writePage(w, r, http.StatusForbidden, "Access restricted", d)
			default:
				w.Header().Set("Retry-After", "1")
				if httpx.WantsJSON(r) {
					httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "identity not yet determined")
					return
				}
				m.writePage(w, r, http.StatusServiceUnavailable, "Loading", d)
			}
		})
	}
}

// RequirePermission is Require for a single matrix cell with the default
// panel.
func (m Middleware) RequirePermission(module rbac.Module, action rbac.Action) func(http.Handler) http.Handler {
	return m.Require(Props{
		Criteria:     rbac.Criteria{Module: module, Action: action},
		ShowNoAccess: true,
	})
}

// RequireRoute is Require for the catalog requirement of the request path.
func (m Middleware) RequireRoute(showNoAccess bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			props := Props{Criteria: rbac.Criteria{Route: r.URL.Path}, ShowNoAccess: showNoAccess}
			m.Require(props)(next).ServeHTTP(w, r)
		})
	}
}

func (m Middleware) writePage(w http.ResponseWriter, r *http.Request, status int, title string, d Decision) {
	var body template.HTML
	if m.Renderer != nil {
		body = m.Renderer.Render(d, nil)
	}
	if m.Pages == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	m.Pages.WritePage(w, r, status, title, body)
}

func (m Middleware) audit(r *http.Request, snap identity.Snapshot, d Decision) {
	if m.Audit == nil {
		return
	}
	var actor int64
	if u := snap.Principal(); u != nil {
		actor = u.ID
	}
	err := m.Audit.Record(r.Context(), shared.AuditLog{
		ActorID:  actor,
		Action:   shared.AuditAccessDeny,
		Entity:   "route",
		EntityID: r.URL.Path,
		Meta:     map[string]any{"query": d.Query, "outcome": d.Outcome.String(), "role": string(snap.Role())},
	})
	if err != nil {
		m.logger().Warn("gate: audit denial", slog.Any("error", err))
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func denialDetail(d Decision) string {
	if strings.TrimSpace(d.Message) != "" {
		return d.Message
	}
	return DefaultNoAccessMessage
}
