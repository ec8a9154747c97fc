package domain

import (
	"fmt"
	"maps"
	"strings"
)

// defaultAliases maps region spellings seen in the reports onto the names
// used everywhere else. Targets must never appear as keys.
var defaultAliases = map[string]string{
	"Mainland China":             "China",
	"US":                         "United States of America",
	"UK":                         "United Kingdom",
	"Korea, South":               "South Korea",
	"Republic of Korea":          "South Korea",
	"Iran (Islamic Republic of)": "Iran",
	"Hong Kong SAR":              "Hong Kong",
	"Macao SAR":                  "Macao",
}

// Canonicalizer maps region name aliases onto a single canonical spelling.
// It is immutable after construction and safe for concurrent use.
type Canonicalizer struct {
	aliases map[string]string
}

// NewCanonicalizer builds a Canonicalizer from the default alias table plus
// overlay, whose entries win on conflict. It fails with ErrAliasChain when a
// target is itself an alias, since that would make canonicalization depend on
// how many times it is applied. An overlay entry mapping a name to itself
// removes that alias.
func NewCanonicalizer(overlay map[string]string) (*Canonicalizer, error) {
	aliases := maps.Clone(defaultAliases)
	for alias, target := range overlay {
		alias, target = strings.TrimSpace(alias), strings.TrimSpace(target)
		if alias == "" || target == "" {
			return nil, fmt.Errorf("empty alias or target in %q -> %q", alias, target)
		}
		if alias == target {
			delete(aliases, alias)
			continue
		}
		aliases[alias] = target
	}

	for alias, target := range aliases {
		if _, ok := aliases[target]; ok {
			return nil, fmt.Errorf("%w: %q -> %q -> %q", ErrAliasChain, alias, target, aliases[target])
		}
	}
	return &Canonicalizer{aliases: aliases}, nil
}

// DefaultCanonicalizer returns a Canonicalizer with only the built-in aliases.
func DefaultCanonicalizer() *Canonicalizer {
	return &Canonicalizer{aliases: maps.Clone(defaultAliases)}
}

// Canonicalize trims surrounding whitespace (" Azerbaijan" appears in early
// reports) and resolves known aliases. Unknown names pass through trimmed.
func (c *Canonicalizer) Canonicalize(name string) string {
	name = strings.TrimSpace(name)
	if target, ok := c.aliases[name]; ok {
		return target
	}
	return name
}

// Aliases returns a copy of the alias table.
func (c *Canonicalizer) Aliases() map[string]string {
	return maps.Clone(c.aliases)
}
