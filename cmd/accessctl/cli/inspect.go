// Package cli implements accessctl, the operator tool for checking an access
// policy before it is deployed.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cleanops/cleanops/internal/nav"
	"github.com/cleanops/cleanops/internal/rbac"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitDenied  = 10
	ExitInvalid = 2
)

// Options carries the parsed flags.
type Options struct {
	PolicyPath  string
	CatalogPath string
	Role        string
	Check       string
	JSONOutput  bool
	Stdout      io.Writer
	Stderr      io.Writer
}

// Report is the JSON form of an inspection.
type Report struct {
	Role       string     `json:"role,omitempty"`
	Grants     []string   `json:"grants,omitempty"`
	Navigation []string   `json:"navigation,omitempty"`
	Check      *CheckLine `json:"check,omitempty"`
	Roles      []string   `json:"roles,omitempty"`
}

// CheckLine is the answer to --check.
type CheckLine struct {
	Query   string `json:"query"`
	Allowed bool   `json:"allowed"`
}

// Run loads the policy and prints what it grants. Without --role it only
// validates the policy and lists the roles.
func Run(opts Options) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	eval, err := rbac.Load(opts.PolicyPath, opts.CatalogPath)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "accessctl: %v\n", err)
		return ExitError
	}

	var report Report
	if strings.TrimSpace(opts.Role) == "" {
		if opts.Check != "" {
			_, _ = fmt.Fprintln(opts.Stderr, "accessctl: --check needs --role")
			return ExitInvalid
		}
		for _, r := range rbac.Roles() {
			report.Roles = append(report.Roles, string(r))
		}
		return emit(opts, report, ExitOK)
	}

	role, ok := rbac.ParseRole(opts.Role)
	if !ok {
		_, _ = fmt.Fprintf(opts.Stderr, "accessctl: unknown role %q\n", opts.Role)
		return ExitInvalid
	}
	report.Role = string(role)
	for _, p := range eval.Matrix().Grants(role) {
		report.Grants = append(report.Grants, p.String())
	}
	for _, e := range nav.NewFilter(eval).ForRole(role) {
		report.Navigation = append(report.Navigation, e.Route)
	}

	code := ExitOK
	if opts.Check != "" {
		criteria, err := ParseCheck(opts.Check)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "accessctl: %v\n", err)
			return ExitInvalid
		}
		q := rbac.Resolve(criteria)
		allowed := eval.Check(&rbac.User{Role: role}, q)
		report.Check = &CheckLine{Query: q.Kind(), Allowed: allowed}
		if !allowed {
			code = ExitDenied
		}
	}
	return emit(opts, report, code)
}

// ParseCheck reads a --check argument: permission=module.action,
// feature=key, route=/path or roles=a|b.
func ParseCheck(raw string) (rbac.Criteria, error) {
	kind, value, ok := strings.Cut(strings.TrimSpace(raw), "=")
	if !ok || value == "" {
		return rbac.Criteria{}, fmt.Errorf("invalid check %q (want kind=value)", raw)
	}
	switch kind {
	case "permission":
		module, action, ok := strings.Cut(value, ".")
		if !ok {
			return rbac.Criteria{}, fmt.Errorf("invalid permission %q (want module.action)", value)
		}
		return rbac.Criteria{Module: rbac.Module(module), Action: rbac.Action(action)}, nil
	case "feature":
		return rbac.Criteria{Feature: value}, nil
	case "route":
		return rbac.Criteria{Route: value}, nil
	case "roles":
		var roles []rbac.Role
		for _, r := range strings.Split(value, "|") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, rbac.Role(r))
			}
		}
		return rbac.Criteria{AllowedRoles: roles}, nil
	default:
		return rbac.Criteria{}, fmt.Errorf("unknown check kind %q", kind)
	}
}

func emit(opts Options, report Report, code int) int {
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(report); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "accessctl: encode json: %v\n", err)
			return ExitError
		}
		return code
	}
	renderHuman(opts.Stdout, report)
	return code
}

func renderHuman(out io.Writer, report Report) {
	if report.Role == "" {
		_, _ = fmt.Fprintln(out, "Policy OK.")
		_, _ = fmt.Fprintf(out, "Roles: %s\n", strings.Join(report.Roles, ", "))
		return
	}
	_, _ = fmt.Fprintf(out, "Role %s: %d permission(s)\n", report.Role, len(report.Grants))
	for _, g := range report.Grants {
		_, _ = fmt.Fprintf(out, " - %s\n", g)
	}
	_, _ = fmt.Fprintf(out, "Navigation: %s\n", strings.Join(report.Navigation, " "))
	if report.Check != nil {
		verdict := "denied"
		if report.Check.Allowed {
			verdict = "allowed"
		}
		_, _ = fmt.Fprintf(out, "Check (%s): %s\n", report.Check.Query, verdict)
	}
}
