// Package catalog holds the static category -> news source table and resolves
// per-request source selections on top of it.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var embeddedTable []byte

// ErrUnknownCategory is returned when a chosen category is not in the table.
var ErrUnknownCategory = errors.New("unknown category")

// Category is one thematic bucket with its default sources.
type Category struct {
	Name string `yaml:"name" json:"name"`
	// CustomSources marks categories whose sources the user may replace.
	CustomSources bool     `yaml:"custom_sources" json:"custom_sources"`
	Sources       []string `yaml:"sources" json:"sources"`
}

type table struct {
	Categories   []Category        `yaml:"categories"`
	DisplayNames map[string]string `yaml:"display_names"`
	Aliases      map[string]string `yaml:"aliases"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	categories   []Category
	index        map[string]int
	displayNames map[string]string
	aliases      map[string]string
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embeddedTable)
		if err != nil {
			panic(fmt.Sprintf("embedded source catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if len(t.Categories) == 0 {
		return nil, errors.New("catalog has no categories")
	}

	c := &Catalog{
		categories:   make([]Category, 0, len(t.Categories)),
		index:        make(map[string]int, len(t.Categories)),
		displayNames: make(map[string]string, len(t.DisplayNames)),
		aliases:      make(map[string]string, len(t.Aliases)),
	}
	for _, cat := range t.Categories {
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return nil, errors.New("catalog category without name")
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("duplicate catalog category %q", name)
		}
		c.index[name] = len(c.categories)
		c.categories = append(c.categories, Category{
			Name:          name,
			CustomSources: cat.CustomSources,
			Sources:       append([]string(nil), cat.Sources...),
		})
	}
	for id, name := range t.DisplayNames {
		c.displayNames[id] = name
	}
	for name, id := range t.Aliases {
		c.aliases[name] = id
	}
	return c, nil
}

// Categories lists the table in declaration order. The result is a copy.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		cat.Sources = append([]string(nil), cat.Sources...)
		out[i] = cat
	}
	return out
}

// Has reports whether name is a known category.
func (c *Catalog) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// DisplayName returns the human name of a source id, or the id itself.
func (c *Catalog) DisplayName(id string) string {
	if name, ok := c.displayNames[id]; ok {
		return name
	}
	return id
}

// SourceID maps a user-facing source name to an API identifier. Unknown names
// become a best-effort slug.
func (c *Catalog) SourceID(name string) string {
	if id, ok := c.aliases[name]; ok {
		return id
	}
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// Selection is the request-scoped result of resolving chosen categories.
type Selection struct {
	// Categories are the chosen categories without duplicates, in input order.
	Categories []string
	// Sources are resolved ids, first-seen order across Categories.
	Sources []string
	// DisplaySources parallels Sources with human names.
	DisplaySources []string

	owners map[string]string
}

// CategoryOf returns the category owning a source id or display name.
func (s *Selection) CategoryOf(key string) (string, bool) {
	cat, ok := s.owners[key]
	return cat, ok
}

// Resolve builds a fresh selection for the chosen categories. custom holds
// user-supplied source names per category; it only applies to categories
// marked custom_sources, and an empty list keeps the defaults.
func (c *Catalog) Resolve(chosen []string, custom map[string][]string) (*Selection, error) {
	sel := &Selection{owners: make(map[string]string)}
	perCategory := make(map[string][]string, len(chosen))
	seenCategory := make(map[string]struct{}, len(chosen))
	seenSource := make(map[string]struct{})

	for _, name := range chosen {
		idx, ok := c.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
		}
		if _, dup := seenCategory[name]; dup {
			continue
		}
		seenCategory[name] = struct{}{}
		sel.Categories = append(sel.Categories, name)

		sources := c.sourcesFor(c.categories[idx], custom[name])
		perCategory[name] = sources
		for _, id := range sources {
			if _, dup := seenSource[id]; dup {
				continue
			}
			seenSource[id] = struct{}{}
			sel.Sources = append(sel.Sources, id)
			sel.DisplaySources = append(sel.DisplaySources, c.DisplayName(id))
		}
	}

	for _, name := range sel.Categories {
		for _, id := range perCategory[name] {
			sel.claim(id, name)
			sel.claim(c.DisplayName(id), name)
		}
		for _, raw := range custom[name] {
			if trimmed := strings.TrimSpace(raw); trimmed != "" && c.categories[c.index[name]].CustomSources {
				sel.claim(trimmed, name)
			}
		}
	}
	for _, cat := range c.categories {
		if _, chosen := seenCategory[cat.Name]; chosen {
			continue
		}
		for _, id := range cat.Sources {
			sel.claim(id, cat.Name)
			sel.claim(c.DisplayName(id), cat.Name)
		}
	}

	return sel, nil
}

func (c *Catalog) sourcesFor(cat Category, userNames []string) []string {
	if !cat.CustomSources || len(userNames) == 0 {
		return cat.Sources
	}
	out := make([]string, 0, len(userNames))
	for _, raw := range userNames {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		out = append(out, c.SourceID(name))
	}
	if len(out) == 0 {
		return cat.Sources
	}
	return out
}

func (s *Selection) claim(key, category string) {
	if key == "" {
		return
	}
	if _, taken := s.owners[key]; taken {
		return
	}
	s.owners[key] = category
}
