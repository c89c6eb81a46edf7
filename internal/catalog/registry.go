// Package catalog names the fixture resources the service knows about.
//
// Resources are registered at init time (see package builtin) and looked up
// by key, e.g. "name.female". Each key maps to a path inside the resource
// filesystem; the reader cache is keyed by that path.
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Definition describes one registered resource.
type Definition struct {
	Key   string `json:"key"`   // Dotted identifier: "name.female"
	Group string `json:"group"` // First key segment unless set: "name"
	Label string `json:"label"` // Display name: "Female first names"
	Path  string `json:"path"`  // Path in the resource filesystem; derived from Key if empty
}

var (
	registry   = make(map[string]Definition)
	registryMu sync.RWMutex
)

// PathForKey converts a dotted key into a resource path: "address.ca.sf.zip"
// becomes "address/ca/sf/zip". A leading slash is dropped.
func PathForKey(key string) string {
	return strings.TrimPrefix(strings.ReplaceAll(key, ".", "/"), "/")
}

// Register adds a resource definition to the registry.
// Panics if a resource with the same key is already registered.
func Register(def Definition) {
	if def.Key == "" {
		panic("catalog: resource key is required")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("resource already registered: %s", def.Key))
	}

	if def.Path == "" {
		def.Path = PathForKey(def.Key)
	}
	if def.Group == "" {
		def.Group, _, _ = strings.Cut(def.Key, ".")
	}
	if def.Label == "" {
		def.Label = def.Key
	}

	registry[def.Key] = def
}

// Get returns a resource definition by key.
func Get(key string) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered definitions, sorted by group then key.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Group != result[j].Group {
			return result[i].Group < result[j].Group
		}
		return result[i].Key < result[j].Key
	})

	return result
}

// ByGroup returns the definitions in group, sorted by key.
func ByGroup(group string) []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var result []Definition
	for _, def := range registry {
		if def.Group == group {
			result = append(result, def)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Groups returns all unique group names, sorted.
func Groups() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, def := range registry {
		seen[def.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// Count returns the number of registered resources.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered resources.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Definition)
}
