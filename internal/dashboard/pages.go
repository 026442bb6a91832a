// Package dashboard holds the screens of the operations dashboard. Every
// screen asks the gate what to show; none of them checks roles directly.
package dashboard

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/cleanops/cleanops/internal/identity"
	"github.com/cleanops/cleanops/internal/nav"
	"github.com/cleanops/cleanops/internal/shared"
	"github.com/cleanops/cleanops/internal/view"
)

// Pages renders full pages with the layout chrome for the current viewer.
type Pages struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	nav       *nav.Filter
}

// NewPages constructs Pages.
func NewPages(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, filter *nav.Filter) *Pages {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pages{logger: logger, templates: templates, csrf: csrf, nav: filter}
}

// Data assembles the layout values for r.
func (p *Pages) Data(r *http.Request, title string, data any) view.TemplateData {
	snap := identity.FromContext(r.Context())
	csrfToken, _ := p.csrf.EnsureToken(shared.SessionFromContext(r.Context()))
	td := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       shared.PopFlash(r.Context()),
		CurrentPath: r.URL.Path,
		Viewer:      view.NewViewer(snap.Principal()),
		Data:        data,
	}
	if snap.Principal() != nil {
		td.Nav = p.nav.ForPath(snap.Role(), r.URL.Path)
	}
	return td
}

// Render writes the named page with status.
func (p *Pages) Render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	td := p.Data(r, title, data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := p.templates.Render(w, name, td); err != nil {
		p.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
	}
}

// WritePage renders body inside the status page layout.
func (p *Pages) WritePage(w http.ResponseWriter, r *http.Request, status int, title string, body template.HTML) {
	p.Render(w, r, status, "pages/status.html", title, map[string]any{"Body": body})
}
