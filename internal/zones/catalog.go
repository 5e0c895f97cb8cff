// Package zones holds the static zone catalog. The catalog is loaded once at
// startup and never mutated; every zone id the service knows about comes from
// here.
package zones

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"zonegate/internal/models"
)

type Catalog struct {
	revision string
	ordered  []models.Zone
	byID     map[string]models.Zone
}

type fileZone struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	MinLevel string `yaml:"min_level"`
}

type catalogFile struct {
	Revision string     `yaml:"revision"`
	Zones    []fileZone `yaml:"zones"`
}

// Load reads the catalog file and validates it. Duplicate ids and unknown
// levels are startup errors, not runtime surprises.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zone catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse zone catalog: %w", err)
	}
	if len(f.Zones) == 0 {
		return nil, fmt.Errorf("zone catalog %s defines no zones", path)
	}
	c := &Catalog{revision: strings.TrimSpace(f.Revision), byID: make(map[string]models.Zone, len(f.Zones))}
	for i, fz := range f.Zones {
		id := strings.TrimSpace(fz.ID)
		if id == "" {
			return nil, fmt.Errorf("zone catalog entry %d has no id", i)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("duplicate zone id %q", id)
		}
		level, ok := models.ParseLevel(strings.TrimSpace(fz.MinLevel))
		if !ok {
			return nil, fmt.Errorf("zone %q: unknown min_level %q", id, fz.MinLevel)
		}
		name := strings.TrimSpace(fz.Name)
		if name == "" {
			name = id
		}
		z := models.Zone{ID: id, DisplayName: name, MinimumLevel: level}
		c.byID[id] = z
		c.ordered = append(c.ordered, z)
	}
	return c, nil
}

// FromZones builds a catalog in memory. Used by tests and embedded defaults.
func FromZones(zs []models.Zone) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]models.Zone, len(zs))}
	for _, z := range zs {
		if strings.TrimSpace(z.ID) == "" {
			return nil, fmt.Errorf("zone with empty id")
		}
		if _, dup := c.byID[z.ID]; dup {
			return nil, fmt.Errorf("duplicate zone id %q", z.ID)
		}
		c.byID[z.ID] = z
		c.ordered = append(c.ordered, z)
	}
	return c, nil
}

func (c *Catalog) Get(id string) (models.Zone, bool) {
	z, ok := c.byID[id]
	return z, ok
}

// List returns the zones in file order. The returned slice is a copy.
func (c *Catalog) List() []models.Zone {
	out := make([]models.Zone, len(c.ordered))
	copy(out, c.ordered)
	return out
}

func (c *Catalog) Len() int { return len(c.ordered) }

// Revision is the catalog file's revision string, empty if the file has none.
func (c *Catalog) Revision() string { return c.revision }
