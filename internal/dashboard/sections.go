package dashboard

import (
	"html/template"
	"net/http"
	"sort"

	"github.com/cleanops/cleanops/internal/gate"
	"github.com/cleanops/cleanops/internal/identity"
	"github.com/cleanops/cleanops/internal/rbac"
)

type actionLink struct {
	Label string
	Href  string
}

type sectionAction struct {
	link    actionLink
	feature string
}

type section struct {
	Route   string
	Heading string
	Summary string
	Actions []sectionAction
}

var sections = []section{
	{Route: "/tasks", Heading: "Tasks", Summary: "Jobs scheduled for your crews.", Actions: []sectionAction{
		{link: actionLink{Label: "New task", Href: "/tasks/new"}, feature: "tasks.create_button"},
		{link: actionLink{Label: "Assign crews", Href: "/tasks#assign"}, feature: "tasks.assign"},
	}},
	{Route: "/bookings", Heading: "Bookings", Summary: "Client visits, confirmed and requested.", Actions: []sectionAction{
		{link: actionLink{Label: "Request booking", Href: "/bookings#request"}, feature: "bookings.request"},
	}},
	{Route: "/properties", Heading: "Properties", Summary: "Sites and access notes."},
	{Route: "/employees", Heading: "Team", Summary: "Staff directory and shifts.", Actions: []sectionAction{
		{link: actionLink{Label: "Invite member", Href: "/employees/new"}, feature: "employees.invite"},
	}},
	{Route: "/inventory", Heading: "Inventory", Summary: "Supplies and equipment on hand.", Actions: []sectionAction{
		{link: actionLink{Label: "Restock", Href: "/inventory#restock"}, feature: "inventory.restock"},
	}},
	{Route: "/training", Heading: "Training", Summary: "Courses and certifications."},
	{Route: "/invoices", Heading: "Invoices", Summary: "Billing history."},
	{Route: "/finance", Heading: "Finance", Summary: "Revenue, costs and margins.", Actions: []sectionAction{
		{link: actionLink{Label: "Export", Href: "/finance/export"}, feature: "finance.export"},
	}},
	{Route: "/analytics", Heading: "Analytics", Summary: "Trends across jobs and clients."},
	{Route: "/reports", Heading: "Reports", Summary: "Operational reports.", Actions: []sectionAction{
		{link: actionLink{Label: "Export", Href: "/reports/export"}, feature: "reports.export"},
	}},
	{Route: "/integrations", Heading: "Integrations", Summary: "Connected services."},
}

var newTask = section{Route: "/tasks/new", Heading: "New task", Summary: "Schedule a job and assign a crew."}

func (h *Handler) section(s section) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := identity.FromContext(r.Context())
		actions := make([]template.HTML, 0, len(s.Actions))
		for _, a := range s.Actions {
			html := h.renderer.Wrap(snap, gate.Props{
				Criteria: rbac.Criteria{Feature: a.feature},
				Fallback: gate.NoRender(),
			}, h.fragment("widgets/action", a.link))
			if html != "" {
				actions = append(actions, html)
			}
		}
		h.pages.Render(w, r, http.StatusOK, "pages/section.html", s.Heading, map[string]any{
			"Heading": s.Heading,
			"Summary": s.Summary,
			"Actions": actions,
		})
	}
}

func sortPermissions(perms []rbac.Permission) {
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Module != perms[j].Module {
			return perms[i].Module < perms[j].Module
		}
		return perms[i].Action < perms[j].Action
	})
}
