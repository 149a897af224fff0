package catalog

import (
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"
)

// Component describes one UI library component.
type Component struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Category    string   `yaml:"category,omitempty" json:"category,omitempty"`
	Props       []string `yaml:"props,omitempty" json:"props,omitempty"`
	Events      []string `yaml:"events,omitempty" json:"events,omitempty"`
	Slots       []string `yaml:"slots,omitempty" json:"slots,omitempty"`
}

// Catalog is a read-only, ordered set of components.
type Catalog struct {
	components []Component
	byName     map[string]int
}

type file struct {
	Components []Component `yaml:"components"`
}

// Load reads a catalog YAML file from fsys.
func Load(fsys fs.FS, path string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return New(f.Components)
}

// New builds a catalog; names must be unique and non-empty.
func New(components []Component) (*Catalog, error) {
	c := &Catalog{
		components: components,
		byName:     make(map[string]int, len(components)),
	}
	for i, comp := range components {
		name := strings.TrimSpace(comp.Name)
		if name == "" {
			return nil, fmt.Errorf("component[%d]: name is required", i)
		}
		key := strings.ToLower(name)
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("component[%d]: duplicate name %q", i, name)
		}
		c.byName[key] = i
	}
	return c, nil
}

// List returns all components in file order.
func (c *Catalog) List() []Component {
	return c.components
}

// Names returns all component names in file order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.components))
	for i, comp := range c.components {
		names[i] = comp.Name
	}
	return names
}

// Lookup finds a component by case-insensitive name.
func (c *Catalog) Lookup(name string) (Component, bool) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Component{}, false
	}
	return c.components[i], true
}
