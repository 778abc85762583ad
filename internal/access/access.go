// Package access defines the role hierarchy that gates every retrieval
// decision in the assistant.
//
// Roles map to small non-negative integer levels; a higher level always
// means more access. The numeric order is the single authority for
// visibility: a passage tagged with level N is visible to a requester at
// level L iff N <= L. No other comparison (string equality, set
// membership) may be used to gate access.
package access

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Level is a rank in the role hierarchy. Higher means more privileged.
type Level int

// Public is the lowest access level. Documents tagged with the public
// alias are visible to every requester.
const Public Level = 0

// ErrUnknownRole indicates a role name absent from the catalog.
var ErrUnknownRole = errors.New("unknown role")

// Catalog is the ordered mapping from role name to access level.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	levels      map[string]Level
	names       []string // sorted by level, then name, for stable display
	publicAlias string
	maxLevel    Level
}

// NewCatalog builds a Catalog from a role-name to level mapping and the
// public alias used by document tags. Names are matched case-insensitively.
//
// Validation:
//   - at least one role is required
//   - levels must be non-negative
//   - the public alias must map to level 0 (it is added if absent)
func NewCatalog(roles map[string]int, publicAlias string) (*Catalog, error) {
	if len(roles) == 0 {
		return nil, errors.New("role catalog must not be empty")
	}

	publicAlias = strings.ToLower(strings.TrimSpace(publicAlias))
	if publicAlias == "" {
		return nil, errors.New("public alias must not be empty")
	}

	levels := make(map[string]Level, len(roles)+1)
	for name, level := range roles {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return nil, errors.New("role name must not be empty")
		}
		if level < 0 {
			return nil, fmt.Errorf("role %q has negative level %d", name, level)
		}
		if existing, ok := levels[key]; ok && existing != Level(level) {
			return nil, fmt.Errorf("role %q mapped to both level %d and %d", key, existing, level)
		}
		levels[key] = Level(level)
	}

	if level, ok := levels[publicAlias]; ok {
		if level != Public {
			return nil, fmt.Errorf("public alias %q must map to level 0, got %d", publicAlias, level)
		}
	} else {
		levels[publicAlias] = Public
	}

	names := make([]string, 0, len(levels))
	maxLevel := Public
	for name, level := range levels {
		names = append(names, name)
		if level > maxLevel {
			maxLevel = level
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if levels[names[i]] != levels[names[j]] {
			return levels[names[i]] < levels[names[j]]
		}
		return names[i] < names[j]
	})

	return &Catalog{
		levels:      levels,
		names:       names,
		publicAlias: publicAlias,
		maxLevel:    maxLevel,
	}, nil
}

// Resolve returns the access level for a role name (case-insensitive).
// It returns ErrUnknownRole for names absent from the catalog.
func (c *Catalog) Resolve(role string) (Level, error) {
	level, ok := c.levels[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return level, nil
}

// Contains reports whether the role name is in the catalog.
func (c *Catalog) Contains(role string) bool {
	_, ok := c.levels[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// Roles returns all role names ordered by level, then name.
// The returned slice is a copy.
func (c *Catalog) Roles() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// PublicAlias returns the tag name that maps to the public level.
func (c *Catalog) PublicAlias() string {
	return c.publicAlias
}

// MaxLevel returns the highest level in the catalog.
func (c *Catalog) MaxLevel() Level {
	return c.maxLevel
}
