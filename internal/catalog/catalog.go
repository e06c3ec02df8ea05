// Package catalog serves the static knowledge the LLM needs to write good
// queries: the configured repository list, pre-built query templates, the
// function reference, and query best practices.
//
// Repositories and templates load from YAML files in a config directory;
// the function reference and best practices ship with the binary.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Repository describes one NG-SIEM repository available to the user.
type Repository struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	DataTypes   []string `yaml:"data_types" json:"data_types,omitempty"`
	UseCases    []string `yaml:"use_cases" json:"use_cases,omitempty"`
	Retention   string   `yaml:"retention" json:"retention,omitempty"`
	Default     bool     `yaml:"default" json:"default,omitempty"`
}

// Template is a pre-built query with {{param}} placeholders.
type Template struct {
	ID          string            `yaml:"-" json:"id"`
	Category    string            `yaml:"-" json:"category"`
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Severity    string            `yaml:"severity" json:"severity,omitempty"`
	Query       string            `yaml:"query" json:"query"`
	Attack      []string          `yaml:"attack" json:"attack,omitempty"`
	Parameters  map[string]string `yaml:"parameters" json:"parameters,omitempty"`
}

// Catalog holds the loaded reference data. Read-only after Load, safe for
// concurrent use.
type Catalog struct {
	repositories []Repository
	templates    map[string]Template // keyed by template id
}

type repositoriesFile struct {
	Repositories []Repository `yaml:"repositories"`
}

// templates.yaml groups templates by category, keyed by template id.
type templatesFile struct {
	Categories map[string]map[string]Template `yaml:"categories"`
}

// Load reads repositories.yaml and templates.yaml from dir. Missing files
// are logged and yield an empty section, so the server still runs without
// any local catalog.
func Load(dir string, log zerolog.Logger) (*Catalog, error) {
	c := &Catalog{templates: make(map[string]Template)}

	reposPath := filepath.Join(dir, "repositories.yaml")
	if raw, err := os.ReadFile(reposPath); err == nil {
		var f repositoriesFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", reposPath, err)
		}
		c.repositories = f.Repositories
	} else if os.IsNotExist(err) {
		log.Warn().Str("path", reposPath).Msg("no repository catalog found")
	} else {
		return nil, err
	}

	templatesPath := filepath.Join(dir, "templates.yaml")
	if raw, err := os.ReadFile(templatesPath); err == nil {
		var f templatesFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", templatesPath, err)
		}
		for category, entries := range f.Categories {
			for id, tpl := range entries {
				tpl.ID = id
				tpl.Category = category
				c.templates[id] = tpl
			}
		}
	} else if os.IsNotExist(err) {
		log.Warn().Str("path", templatesPath).Msg("no template catalog found")
	} else {
		return nil, err
	}

	log.Info().
		Int("repositories", len(c.repositories)).
		Int("templates", len(c.templates)).
		Msg("catalog loaded")
	return c, nil
}

// Repositories returns the configured repository list.
func (c *Catalog) Repositories() []Repository {
	return c.repositories
}

// DefaultRepository returns the name of the repository flagged as default,
// falling back to the first entry. Empty when no catalog is configured.
func (c *Catalog) DefaultRepository() string {
	for _, r := range c.repositories {
		if r.Default {
			return r.Name
		}
	}
	if len(c.repositories) > 0 {
		return c.repositories[0].Name
	}
	return ""
}

// Templates lists templates, optionally filtered by category and a
// case-insensitive search term over id, name and description. Results are
// ordered by id for stable output.
func (c *Catalog) Templates(category, searchTerm string) []Template {
	term := strings.ToLower(searchTerm)
	var out []Template
	for _, tpl := range c.templates {
		if category != "" && tpl.Category != category {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(tpl.ID), term) &&
			!strings.Contains(strings.ToLower(tpl.Name), term) &&
			!strings.Contains(strings.ToLower(tpl.Description), term) {
			continue
		}
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Template looks up a single template by id.
func (c *Catalog) Template(id string) (Template, bool) {
	tpl, ok := c.templates[id]
	return tpl, ok
}

var placeholderRe = regexp.MustCompile(`{{\s*(\w+)\s*}}`)

// RenderTemplate fills a template's placeholders with the given parameter
// values. Values have quotes escaped so they cannot break out of a quoted
// query segment. Unresolved placeholders are an error: they would otherwise
// trip the dangerous-pattern check downstream with a confusing message.
func (c *Catalog) RenderTemplate(id string, params map[string]string) (string, error) {
	tpl, ok := c.templates[id]
	if !ok {
		return "", fmt.Errorf("unknown template: %s", id)
	}

	query := tpl.Query
	for name, value := range params {
		safe := strings.ReplaceAll(value, `"`, `\"`)
		safe = strings.ReplaceAll(safe, `'`, `\'`)
		re := regexp.MustCompile(`{{\s*` + regexp.QuoteMeta(name) + `\s*}}`)
		query = re.ReplaceAllLiteralString(query, safe)
	}

	if missing := placeholderRe.FindAllStringSubmatch(query, -1); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, m := range missing {
			names = append(names, m[1])
		}
		return "", fmt.Errorf("template %s is missing parameters: %s", id, strings.Join(names, ", "))
	}

	return strings.TrimSpace(query), nil
}
