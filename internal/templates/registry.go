// Package templates holds the read-only catalog of approved message
// templates and quick-reply action codes.
package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ikanisa/easymo-router/internal/models"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Template is a pre-approved, parameterized message.
type Template struct {
	Name       string            `yaml:"name"`
	Domain     string            `yaml:"domain"`
	ContentSID string            `yaml:"content_sid"`
	Language   string            `yaml:"language"`
	Approved   bool              `yaml:"approved"`
	Variables  []string          `yaml:"variables"`
	Defaults   map[string]string `yaml:"defaults"`
}

// QuickReply maps an action code to its user-facing label.
type QuickReply struct {
	Code   string `yaml:"code"`
	Domain string `yaml:"domain"`
	Label  string `yaml:"label"`
}

type catalogFile struct {
	Version      string       `yaml:"version"`
	Templates    []Template   `yaml:"templates"`
	QuickReplies []QuickReply `yaml:"quick_replies"`
}

// Registry is safe for concurrent reads; it is never modified after Load.
type Registry struct {
	version      string
	templates    []Template
	byName       map[string]Template
	quickReplies []QuickReply
}

// Default returns the embedded catalog.
func Default() (*Registry, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, or the embedded one when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Registry, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}

	r := &Registry{
		version:      f.Version,
		templates:    f.Templates,
		byName:       make(map[string]Template, len(f.Templates)),
		quickReplies: f.QuickReplies,
	}

	var errs []error
	for i, t := range f.Templates {
		if t.Name == "" || t.Domain == "" {
			errs = append(errs, fmt.Errorf("template #%d: name and domain are required", i))
			continue
		}
		if _, dup := r.byName[t.Name]; dup {
			errs = append(errs, fmt.Errorf("template %q declared twice", t.Name))
			continue
		}
		r.byName[t.Name] = t
	}
	type replyKey struct{ code, domain string }
	seen := make(map[replyKey]bool)
	for i, q := range f.QuickReplies {
		if q.Code == "" || q.Domain == "" || q.Label == "" {
			errs = append(errs, fmt.Errorf("quick reply #%d: code, domain and label are required", i))
			continue
		}
		if _, ok := models.ParseActionCode(q.Code); !ok {
			errs = append(errs, fmt.Errorf("quick reply %q: malformed action code", q.Code))
		}
		k := replyKey{q.Code, q.Domain}
		if seen[k] {
			errs = append(errs, fmt.Errorf("quick reply %q declared twice for %q", q.Code, q.Domain))
		}
		seen[k] = true
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Version is the catalog version string.
func (r *Registry) Version() string { return r.version }

// Len returns the number of templates.
func (r *Registry) Len() int { return len(r.templates) }

// Template looks a template up by name.
func (r *Registry) Template(name string) (Template, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Templates returns every template in catalog order.
func (r *Registry) Templates() []Template {
	return append([]Template(nil), r.templates...)
}

// TemplateFor returns the first approved template whose tag matches domain.
func (r *Registry) TemplateFor(domain string) (Template, bool) {
	for _, t := range r.templates {
		if t.Approved && tagMatches(t.Domain, domain) {
			return t, true
		}
	}
	return Template{}, false
}

// QuickReplies returns at most max quick replies whose tag matches domain.
// A non-positive max means no limit.
func (r *Registry) QuickReplies(domain string, max int) []QuickReply {
	var out []QuickReply
	for _, q := range r.quickReplies {
		if !tagMatches(q.Domain, domain) {
			continue
		}
		out = append(out, q)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

func tagMatches(tag, domain string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	domain = strings.ToLower(strings.TrimSpace(domain))
	return tag != "" && domain != "" && strings.Contains(domain, tag)
}

// Bind resolves variables for t. Values are taken from vars first, then
// t.Defaults; missing required variables are reported.
func (t Template) Bind(vars map[string]string) (*models.TemplateRef, error) {
	bound := make(map[string]string, len(t.Variables))
	params := make([]string, 0, len(t.Variables))
	var missing []string
	for _, name := range t.Variables {
		v := strings.TrimSpace(vars[name])
		if v == "" {
			v = t.Defaults[name]
		}
		if v == "" {
			missing = append(missing, name)
			continue
		}
		bound[name] = v
		params = append(params, v)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("template %s: missing variables %s", t.Name, strings.Join(missing, ", "))
	}
	return &models.TemplateRef{
		Name:      t.Name,
		ContentID: t.ContentSID,
		Language:  t.Language,
		Variables: bound,
		Params:    params,
	}, nil
}
