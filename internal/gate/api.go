package gate

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cleanops/cleanops/internal/identity"
	"github.com/cleanops/cleanops/internal/platform/httpx"
	"github.com/cleanops/cleanops/internal/rbac"
)

// AccessResponse is the JSON body of the access API.
type AccessResponse struct {
	State   string `json:"state"`
	Outcome string `json:"outcome"`
	Query   string `json:"query,omitempty"`
	Allowed bool   `json:"allowed"`
	Message string `json:"message,omitempty"`
	// Panel is the denial panel layout when the outcome is the default panel.
	Panel string `json:"panel,omitempty"`
}

// NewAccessResponse summarises d.
func NewAccessResponse(d Decision) AccessResponse {
	resp := AccessResponse{
		State:   d.State.String(),
		Outcome: d.Outcome.String(),
		Query:   d.Query,
		Allowed: d.Allowed(),
		Message: d.Message,
	}
	if d.Outcome == RenderFallback && d.Fallback.Kind() == FallbackPanel {
		resp.Panel = d.Fallback.Verbosity().String()
	}
	return resp
}

// AccessHandler answers access questions for client-side widgets. A denial
// is a normal answer and is returned with 200.
type AccessHandler struct {
	gate *Gate
}

// NewAccessHandler constructs an AccessHandler.
func NewAccessHandler(g *Gate) *AccessHandler {
	return &AccessHandler{gate: g}
}

// ServeHTTP implements http.Handler for GET
// /api/access?module=&action=|feature=|route=|roles=a,b with the optional
// presentation parameters read by PropsFromQuery.
func (h *AccessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
		return
	}
	d := h.gate.Evaluate(identity.FromContext(r.Context()), PropsFromQuery(r))
	httpx.JSON(w, http.StatusOK, NewAccessResponse(d))
}

// PropsFromQuery reads criteria plus fallback=none|minimal,
// verbosity=compact|default|detailed, show_no_access, message and
// redirect_to.
func PropsFromQuery(r *http.Request) Props {
	q := r.URL.Query()
	showNoAccess, _ := strconv.ParseBool(q.Get("show_no_access"))
	return Props{
		Criteria:        CriteriaFromQuery(r),
		Fallback:        ParseFallback(q.Get("fallback"), ParseVerbosity(q.Get("verbosity"))),
		ShowNoAccess:    showNoAccess,
		NoAccessMessage: strings.TrimSpace(q.Get("message")),
		RedirectTo:      q.Get("redirect_to"),
	}
}

// CriteriaFromQuery reads access criteria from URL parameters. Role names
// are kept verbatim; names outside the canonical set never match a user.
func CriteriaFromQuery(r *http.Request) rbac.Criteria {
	q := r.URL.Query()
	c := rbac.Criteria{
		Module:  rbac.Module(strings.TrimSpace(q.Get("module"))),
		Action:  rbac.Action(strings.TrimSpace(q.Get("action"))),
		Feature: strings.TrimSpace(q.Get("feature")),
		Route:   strings.TrimSpace(q.Get("route")),
	}
	if q.Has("roles") {
		c.AllowedRoles = []rbac.Role{}
		for _, raw := range strings.Split(q.Get("roles"), ",") {
			if raw = strings.TrimSpace(raw); raw != "" {
				c.AllowedRoles = append(c.AllowedRoles, rbac.Role(raw))
			}
		}
	}
	return c
}
