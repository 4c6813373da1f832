// Package model resolves user-facing model references (aliases, bare ids,
// provider/model literals) against a catalog and an optional allowlist.
package model

import (
	"sort"
	"strings"
)

const (
	DefaultProvider      = "anthropic"
	DefaultModel         = "claude-sonnet-4-5"
	DefaultContextTokens = 200000
)

// Ref identifies a concrete model on a concrete provider.
type Ref struct {
	Provider string
	Model    string
}

// Key returns the canonical "provider/model" form used for allowlist checks
// and catalog lookups.
func (r Ref) Key() string {
	return r.Provider + "/" + r.Model
}

// Definition describes one catalog entry.
type Definition struct {
	Provider      string   `json:"provider"`
	ID            string   `json:"id"`
	Name          string   `json:"name,omitempty"`
	Aliases       []string `json:"aliases,omitempty"`
	ContextTokens int      `json:"contextTokens,omitempty"`
}

// Ref returns the catalog entry's provider/model reference.
func (d Definition) Ref() Ref {
	return Ref{Provider: d.Provider, Model: d.ID}
}

// builtinCatalog seeds the models users can reference without any config.
var builtinCatalog = []Definition{
	{Provider: "anthropic", ID: "claude-opus-4-1", Name: "Claude Opus 4.1", Aliases: []string{"opus"}, ContextTokens: 200000},
	{Provider: "anthropic", ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Aliases: []string{"sonnet"}, ContextTokens: 200000},
	{Provider: "anthropic", ID: "claude-haiku-4-5", Name: "Claude Haiku 4.5", Aliases: []string{"haiku"}, ContextTokens: 200000},
	{Provider: "openai", ID: "gpt-5", Name: "GPT-5", Aliases: []string{"gpt"}, ContextTokens: 272000},
	{Provider: "openai", ID: "gpt-5-mini", Name: "GPT-5 Mini", Aliases: []string{"mini"}, ContextTokens: 272000},
}

// Catalog is the merged set of built-in and configured model definitions
// plus the alias index derived from them. Build it once per turn; it is
// read-only afterwards.
type Catalog struct {
	entries []Definition
	byAlias map[string]Ref
	byKey   map[string][]string // key -> sorted aliases, for listings
}

// NewCatalog merges extra (configured) definitions over the built-in set.
// A configured entry with the same provider/id replaces the built-in one.
func NewCatalog(extra []Definition) *Catalog {
	c := &Catalog{
		byAlias: make(map[string]Ref),
		byKey:   make(map[string][]string),
	}
	seen := make(map[string]int)
	add := func(d Definition) {
		d.Provider = strings.ToLower(strings.TrimSpace(d.Provider))
		d.ID = strings.TrimSpace(d.ID)
		if d.Provider == "" || d.ID == "" {
			return
		}
		key := d.Ref().Key()
		if idx, ok := seen[key]; ok {
			c.entries[idx] = d
		} else {
			seen[key] = len(c.entries)
			c.entries = append(c.entries, d)
		}
	}
	for _, d := range builtinCatalog {
		add(d)
	}
	for _, d := range extra {
		add(d)
	}
	for _, d := range c.entries {
		key := d.Ref().Key()
		for _, alias := range d.Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias == "" {
				continue
			}
			if _, taken := c.byAlias[alias]; taken {
				continue
			}
			c.byAlias[alias] = d.Ref()
			c.byKey[key] = append(c.byKey[key], alias)
		}
	}
	for key := range c.byKey {
		sort.Strings(c.byKey[key])
	}
	return c
}

// Entries returns the catalog in definition order.
func (c *Catalog) Entries() []Definition {
	return c.entries
}

// AliasesFor returns the aliases registered for a provider/model key.
func (c *Catalog) AliasesFor(key string) []string {
	return c.byKey[key]
}

// ContextTokens returns the context window for a model id, or 0 when the
// model is not in the catalog.
func (c *Catalog) ContextTokens(modelID string) int {
	for _, d := range c.entries {
		if strings.EqualFold(d.ID, modelID) {
			return d.ContextTokens
		}
	}
	return 0
}

// Resolved is a successful reference resolution. Alias is set when the input
// was an alias rather than a literal.
type Resolved struct {
	Ref   Ref
	Alias string
}

// ResolveRef resolves raw user input to a model reference. Aliases win over
// literals; "provider/model" is taken verbatim; a bare id is looked up in
// the catalog, preferring the default provider when several providers carry
// the same id.
func (c *Catalog) ResolveRef(raw, defaultProvider string) (Resolved, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Resolved{}, false
	}
	if ref, ok := c.byAlias[strings.ToLower(raw)]; ok {
		return Resolved{Ref: ref, Alias: strings.ToLower(raw)}, true
	}
	if i := strings.Index(raw, "/"); i > 0 && i < len(raw)-1 {
		return Resolved{Ref: Ref{
			Provider: strings.ToLower(raw[:i]),
			Model:    raw[i+1:],
		}}, true
	}
	var fallback *Ref
	for _, d := range c.entries {
		if !strings.EqualFold(d.ID, raw) {
			continue
		}
		if d.Provider == strings.ToLower(defaultProvider) {
			return Resolved{Ref: d.Ref()}, true
		}
		if fallback == nil {
			ref := d.Ref()
			fallback = &ref
		}
	}
	if fallback != nil {
		return Resolved{Ref: *fallback}, true
	}
	return Resolved{}, false
}

// AllowedSet is the subset of the catalog a session may switch to. An empty
// set means everything is allowed.
type AllowedSet struct {
	Keys    map[string]struct{}
	Catalog []Definition
}

// Has reports whether a key is allowed. An empty set allows everything.
func (s AllowedSet) Has(key string) bool {
	if len(s.Keys) == 0 {
		return true
	}
	_, ok := s.Keys[key]
	return ok
}

// BuildAllowedSet expands the configured allowlist (aliases, bare ids or
// provider/model keys) into catalog keys. With no allowlist configured the
// whole catalog is allowed.
func (c *Catalog) BuildAllowedSet(allowed []string, defaultProvider string) AllowedSet {
	if len(allowed) == 0 {
		return AllowedSet{Catalog: c.entries}
	}
	set := AllowedSet{Keys: make(map[string]struct{})}
	for _, raw := range allowed {
		resolved, ok := c.ResolveRef(raw, defaultProvider)
		if !ok {
			continue
		}
		set.Keys[resolved.Ref.Key()] = struct{}{}
	}
	for _, d := range c.entries {
		if _, ok := set.Keys[d.Ref().Key()]; ok {
			set.Catalog = append(set.Catalog, d)
		}
	}
	return set
}

// ResolveConfigured turns the configured default model value (alias, id or
// provider/model) into a concrete reference, falling back to the built-in
// default when the value is empty or unknown.
func (c *Catalog) ResolveConfigured(raw string) Ref {
	if resolved, ok := c.ResolveRef(raw, DefaultProvider); ok {
		return resolved.Ref
	}
	return Ref{Provider: DefaultProvider, Model: DefaultModel}
}
