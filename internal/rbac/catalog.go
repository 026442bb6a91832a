package rbac

import (
	_ "embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed policy/catalog.yaml
var embeddedCatalog []byte

// Requirement binds a catalog entry to one matrix cell.
type Requirement struct {
	Module Module `yaml:"module" validate:"required"`
	Action Action `yaml:"action" validate:"required"`
}

// Permission returns the matrix cell the requirement points at.
func (r Requirement) Permission() Permission {
	return Permission{Module: r.Module, Action: r.Action}
}

// FeatureRule maps a feature key to its requirement.
type FeatureRule struct {
	Key         string `yaml:"key" validate:"required"`
	Requirement `yaml:",inline"`
}

// RouteRule maps a path prefix to its requirement.
type RouteRule struct {
	Path        string `yaml:"path" validate:"required,startswith=/"`
	Requirement `yaml:",inline"`
}

// NavItem is one entry of the master navigation list.
type NavItem struct {
	ID     string `yaml:"id" validate:"required"`
	Label  string `yaml:"label" validate:"required"`
	Route  string `yaml:"route" validate:"required,startswith=/"`
	Public bool   `yaml:"public"`
}

type catalogDocument struct {
	Features   []FeatureRule `yaml:"features" validate:"dive"`
	Routes     []RouteRule   `yaml:"routes" validate:"dive"`
	Navigation []NavItem     `yaml:"navigation" validate:"dive"`
}

// Catalog resolves feature keys and routes to matrix cells and carries the
// master navigation list. It is read-only after loading.
type Catalog struct {
	features   map[string]Permission
	routes     map[string]Permission
	navigation []NavItem
}

// LoadCatalog decodes the embedded catalog, or the file at catalogPath when
// it is set.
func LoadCatalog(catalogPath string) (*Catalog, error) {
	raw := embeddedCatalog
	if catalogPath != "" {
		data, err := os.ReadFile(catalogPath)
		if err != nil {
			return nil, fmt.Errorf("rbac: read catalog: %w", err)
		}
		raw = data
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("rbac: decode catalog: %w", err)
	}
	if err := validator.New().Struct(doc); err != nil {
		return nil, fmt.Errorf("rbac: validate catalog: %w", err)
	}

	c := &Catalog{
		features:   make(map[string]Permission, len(doc.Features)),
		routes:     make(map[string]Permission, len(doc.Routes)),
		navigation: make([]NavItem, 0, len(doc.Navigation)),
	}
	for _, f := range doc.Features {
		if err := checkRequirement("feature "+f.Key, f.Requirement); err != nil {
			return nil, err
		}
		if _, dup := c.features[f.Key]; dup {
			return nil, fmt.Errorf("rbac: duplicate feature %q", f.Key)
		}
		c.features[f.Key] = f.Permission()
	}
	for _, r := range doc.Routes {
		if err := checkRequirement("route "+r.Path, r.Requirement); err != nil {
			return nil, err
		}
		p := cleanRoute(r.Path)
		if _, dup := c.routes[p]; dup {
			return nil, fmt.Errorf("rbac: duplicate route %q", r.Path)
		}
		c.routes[p] = r.Permission()
	}
	seen := make(map[string]struct{}, len(doc.Navigation))
	for _, item := range doc.Navigation {
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("rbac: duplicate navigation id %q", item.ID)
		}
		seen[item.ID] = struct{}{}
		if _, ok := c.RouteRequirement(item.Route); !ok {
			return nil, fmt.Errorf("rbac: navigation %q points at undeclared route %q", item.ID, item.Route)
		}
		c.navigation = append(c.navigation, item)
	}
	return c, nil
}

func checkRequirement(owner string, req Requirement) error {
	if !req.Module.Valid() {
		return fmt.Errorf("rbac: %s: unknown module %q", owner, req.Module)
	}
	if !req.Action.Valid() {
		return fmt.Errorf("rbac: %s: unknown action %q", owner, req.Action)
	}
	return nil
}

// FeatureRequirement resolves a feature key.
func (c *Catalog) FeatureRequirement(key string) (Permission, bool) {
	if c == nil {
		return Permission{}, false
	}
	p, ok := c.features[key]
	return p, ok
}

// RouteRequirement resolves a request path by longest declared prefix,
// matching on whole path segments only. The root route matches itself only.
func (c *Catalog) RouteRequirement(routePath string) (Permission, bool) {
	if c == nil || !strings.HasPrefix(routePath, "/") {
		return Permission{}, false
	}
	p := cleanRoute(routePath)
	if p == "/" {
		perm, ok := c.routes[p]
		return perm, ok
	}
	for ; p != "/"; p = path.Dir(p) {
		if perm, ok := c.routes[p]; ok {
			return perm, true
		}
	}
	return Permission{}, false
}

// Navigation returns a copy of the master navigation list in declared order.
func (c *Catalog) Navigation() []NavItem {
	if c == nil {
		return nil
	}
	out := make([]NavItem, len(c.navigation))
	copy(out, c.navigation)
	return out
}

// FeatureKeys lists declared feature keys with the given prefix, sorted.
func (c *Catalog) FeatureKeys(prefix string) []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0)
	for k := range c.features {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func cleanRoute(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return path.Clean(p)
}
