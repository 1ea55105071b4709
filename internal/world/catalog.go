package world

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrRegionNotFound is returned when a name matches no known region.
var ErrRegionNotFound = errors.New("region not found")

// Catalog is the set of regions known to the host.
type Catalog struct {
	names []string
	index map[string]string
}

// NewCatalog creates a Catalog from region names. Names are matched
// case-insensitively; duplicates and blanks are dropped.
func NewCatalog(names []string) *Catalog {
	c := &Catalog{index: make(map[string]string, len(names))}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, exists := c.index[key]; exists {
			continue
		}
		c.index[key] = name
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c
}

// Resolve returns the canonical name of the region called name.
func (c *Catalog) Resolve(name string) (string, error) {
	if canonical, ok := c.index[strings.ToLower(strings.TrimSpace(name))]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("%w: %s", ErrRegionNotFound, name)
}

// Regions returns every region name in sorted order.
func (c *Catalog) Regions() []string {
	regions := make([]string, len(c.names))
	copy(regions, c.names)
	return regions
}

// Suggest returns the regions whose name starts with prefix, ignoring case.
func (c *Catalog) Suggest(prefix string) []string {
	prefix = strings.ToLower(prefix)
	var matches []string
	for _, name := range c.names {
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			matches = append(matches, name)
		}
	}
	return matches
}
