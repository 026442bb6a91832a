package gate

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"

	"github.com/cleanops/cleanops/internal/identity"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer turns decisions into HTML fragments.
type Renderer struct {
	gate      *Gate
	templates *template.Template
	logger    *slog.Logger
}

// NewRenderer parses the embedded fragments.
func NewRenderer(g *Gate, logger *slog.Logger) (*Renderer, error) {
	tpl, err := template.New("gate").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{gate: g, templates: tpl, logger: logger}, nil
}

// Wrap evaluates props for snap and renders the result. children is only
// called when access is granted.
func (r *Renderer) Wrap(snap identity.Snapshot, props Props, children func() template.HTML) template.HTML {
	return r.Render(r.gate.Evaluate(snap, props), children)
}

// Render renders d. Redirect decisions render nothing; the redirect itself
// is the caller's effect to perform.
func (r *Renderer) Render(d Decision, children func() template.HTML) template.HTML {
	switch d.Outcome {
	case RenderChildren:
		if children == nil {
			return ""
		}
		return children()
	case RenderLoading:
		return r.execute("gate/loading", d)
	case RenderLoginRequired:
		return r.execute("gate/login_required", d)
	case RenderFallback:
		return r.fallback(d)
	default:
		return ""
	}
}

func (r *Renderer) fallback(d Decision) template.HTML {
	switch d.Fallback.Kind() {
	case FallbackNode:
		return d.Fallback.HTML()
	case FallbackNone:
		return ""
	case FallbackMinimal:
		return r.execute("gate/minimal", d)
	}
	switch d.Fallback.Verbosity() {
	case VerbosityCompact:
		return r.execute("gate/panel_compact", d)
	case VerbosityDetailed:
		return r.execute("gate/panel_detailed", d)
	default:
		return r.execute("gate/panel_default", d)
	}
}

func (r *Renderer) execute(name string, d Decision) template.HTML {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, d); err != nil {
		r.logger.Error("gate: render fragment", slog.String("template", name), slog.Any("error", err))
		return ""
	}
	return template.HTML(buf.String())
}
