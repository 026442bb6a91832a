package dashboard

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cleanops/cleanops/internal/gate"
	"github.com/cleanops/cleanops/internal/identity"
	"github.com/cleanops/cleanops/internal/nav"
	"github.com/cleanops/cleanops/internal/rbac"
	"github.com/cleanops/cleanops/internal/view"
)

const settingsTabPrefix = "settings.tab."

// Handler serves the dashboard screens.
type Handler struct {
	logger    *slog.Logger
	pages     *Pages
	templates *view.Engine
	gate      *gate.Gate
	renderer  *gate.Renderer
	access    gate.Middleware
	stream    *Stream
}

// NewHandler constructs a Handler. stream may be nil.
func NewHandler(logger *slog.Logger, pages *Pages, templates *view.Engine, g *gate.Gate, renderer *gate.Renderer, access gate.Middleware, stream *Stream) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, pages: pages, templates: templates, gate: g, renderer: renderer, access: access, stream: stream}
}

// MountRoutes registers the dashboard screens on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/welcome", h.welcome)
	r.Get("/", h.home)

	for _, s := range sections {
		r.With(h.access.RequireRoute(true)).Get(s.Route, h.section(s))
	}
	r.With(h.access.Require(gate.Props{
		Criteria:   rbac.Criteria{Route: "/tasks/new"},
		RedirectTo: "/tasks",
	})).Get("/tasks/new", h.section(newTask))

	r.With(h.access.RequireRoute(true)).Get("/settings", h.settings)
	r.With(h.access.Require(gate.Props{
		Criteria:     rbac.Criteria{Module: rbac.ModuleSettings, Action: rbac.ActionConfigure},
		Fallback:     gate.Panel(gate.VerbosityDetailed),
		ShowNoAccess: true,
	})).Get("/settings/permissions", h.permissions)

	r.Get("/api/access", gate.NewAccessHandler(h.gate).ServeHTTP)
	if h.stream != nil {
		r.Get("/api/access/stream", h.stream.ServeHTTP)
	}
}

func (h *Handler) welcome(w http.ResponseWriter, r *http.Request) {
	if identity.FromContext(r.Context()).Principal() != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.pages.Render(w, r, http.StatusOK, "pages/landing.html", "Welcome", nil)
}

type homeData struct {
	CreateTask   template.HTML
	Widgets      []template.HTML
	SettingsTabs []settingsTab
}

type widget struct {
	template string
	props    gate.Props
}

// homeWidgets lists the dashboard cards in display order.
var homeWidgets = []widget{
	{template: "widgets/overview", props: gate.Props{Criteria: rbac.Criteria{Feature: "dashboard.overview"}}},
	{template: "widgets/tasks", props: gate.Props{Criteria: rbac.Criteria{Feature: "tasks.board"}, Fallback: gate.Minimal()}},
	{template: "widgets/bookings", props: gate.Props{Criteria: rbac.Criteria{Feature: "bookings.calendar"}, Fallback: gate.NoRender()}},
	{template: "widgets/crew", props: gate.Props{
		Criteria: rbac.Criteria{AllowedRoles: []rbac.Role{rbac.RoleOwner, rbac.RoleManager, rbac.RoleSupervisor}},
		Fallback: gate.NoRender(),
	}},
	{template: "widgets/finance", props: gate.Props{
		Criteria: rbac.Criteria{Module: rbac.ModuleFinance, Action: rbac.ActionViewFinance},
		Fallback: gate.NoRender(),
	}},
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	snap := identity.FromContext(r.Context())
	if snap.IsHydrated && snap.AuthChecked && snap.Principal() == nil {
		http.Redirect(w, r, "/welcome", http.StatusSeeOther)
		return
	}

	data := homeData{
		CreateTask: h.renderer.Wrap(snap, gate.Props{
			Criteria: rbac.Criteria{Feature: "tasks.create_button"},
			Fallback: gate.NoRender(),
		}, h.fragment("widgets/action", actionLink{Label: "New task", Href: "/tasks/new"})),
		SettingsTabs: h.settingsTabs(snap),
	}
	for _, wd := range homeWidgets {
		if html := h.renderer.Wrap(snap, wd.props, h.fragment(wd.template, nil)); html != "" {
			data.Widgets = append(data.Widgets, html)
		}
	}
	h.pages.Render(w, r, http.StatusOK, "pages/home.html", "Dashboard", data)
}

type settingsTab struct {
	Key      string
	Label    string
	Href     string
	Audience string
}

// settingsTabs derives the visible tabs from the matrix through the catalog
// features under settings.tab. Each tab lists the roles that can open it.
func (h *Handler) settingsTabs(snap identity.Snapshot) []settingsTab {
	eval := h.gate.Evaluator()
	user := snap.Principal()
	var tabs []settingsTab
	for _, key := range eval.Catalog().FeatureKeys(settingsTabPrefix) {
		if !eval.CanAccessFeature(user, key) {
			continue
		}
		name := strings.TrimPrefix(key, settingsTabPrefix)
		href := "/settings#" + name
		if name == "permissions" {
			href = "/settings/permissions"
		}
		roles := eval.RolesWithFeature(key)
		labels := make([]string, len(roles))
		for i, role := range roles {
			labels[i] = nav.RoleLabel(role)
		}
		tabs = append(tabs, settingsTab{
			Key:      name,
			Label:    cases.Title(language.English).String(name),
			Href:     href,
			Audience: strings.Join(labels, ", "),
		})
	}
	return tabs
}

func (h *Handler) settings(w http.ResponseWriter, r *http.Request) {
	tabs := h.settingsTabs(identity.FromContext(r.Context()))
	h.pages.Render(w, r, http.StatusOK, "pages/settings.html", "Settings", map[string]any{"Tabs": tabs})
}

type matrixRow struct {
	Permission string
	Cells      []bool
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	roles := rbac.Roles()
	h.pages.Render(w, r, http.StatusOK, "pages/permissions.html", "Permissions", map[string]any{
		"Roles": roles,
		"Rows":  matrixRows(h.gate.Evaluator().Matrix(), roles),
	})
}

// matrixRows lists every permission granted to at least one role, sorted,
// with one cell per role.
func matrixRows(m *rbac.Matrix, roles []rbac.Role) []matrixRow {
	seen := make(map[rbac.Permission]struct{})
	var perms []rbac.Permission
	for _, role := range roles {
		for _, p := range m.Grants(role) {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				perms = append(perms, p)
			}
		}
	}
	sortPermissions(perms)

	rows := make([]matrixRow, 0, len(perms))
	for _, p := range perms {
		cells := make([]bool, len(roles))
		for i, role := range roles {
			cells[i] = m.Allows(role, p.Module, p.Action)
		}
		rows = append(rows, matrixRow{Permission: p.String(), Cells: cells})
	}
	return rows
}

// fragment returns a children func for the gate renderer. Template errors
// are logged and render nothing.
func (h *Handler) fragment(name string, data any) func() template.HTML {
	return func() template.HTML {
		html, err := h.templates.Fragment(name, data)
		if err != nil {
			h.logger.Error("render fragment", slog.String("template", name), slog.Any("error", err))
			return ""
		}
		return html
	}
}
