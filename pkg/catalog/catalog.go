// Package catalog holds the live set of validated rules, keyed by canonical
// name.
//
// A [Catalog] has a single writer (the synchronization loop) and any number
// of readers. Readers should depend on [Reader], which exposes no mutating
// methods.
package catalog

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/macropower/rulesync/pkg/rule"
)

// Reader is the read-only view of a [Catalog].
type Reader interface {
	Snapshot() []*rule.Definition
	Get(name string) (*rule.Definition, bool)
	Len() int
	Revision() uint64
}

// Catalog is a concurrency-safe map of canonical rule names to definitions.
type Catalog struct {
	rules    map[string]*rule.Definition
	mu       sync.RWMutex
	revision uint64
}

var _ Reader = (*Catalog)(nil)

// New creates an empty [Catalog].
func New() *Catalog {
	return &Catalog{rules: make(map[string]*rule.Definition)}
}

// Snapshot returns the current definitions sorted by name. The slice is owned
// by the caller; the definitions must not be modified.
func (c *Catalog) Snapshot() []*rule.Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := slices.Collect(maps.Values(c.rules))
	slices.SortFunc(defs, func(a, b *rule.Definition) int {
		return strings.Compare(a.Name, b.Name)
	})

	return defs
}

// Get returns the definition with the given canonical name.
func (c *Catalog) Get(name string) (*rule.Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.rules[name]

	return def, ok
}

// Upsert inserts def, replacing any definition with the same name.
func (c *Catalog) Upsert(def *rule.Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rules[def.Name] = def
	c.revision++
}

// Remove deletes the named definition and reports whether it was present.
func (c *Catalog) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.rules[name]; !ok {
		return false
	}

	delete(c.rules, name)
	c.revision++

	return true
}

// Len returns the number of rules.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.rules)
}

// Names returns the sorted canonical names.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Sorted(maps.Keys(c.rules))
}

// Revision returns a counter that increases with every change to the
// catalog.
func (c *Catalog) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.revision
}
