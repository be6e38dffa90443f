package engine

import (
	"strings"
	"sync"
)

// Router maps request paths onto the store's current resource set. The
// route table is derived from runtime data, not declared: each resource
// yields a collection route /{resource} and an item route /{resource}/{id}.
// It is rebuilt at startup and after every watch-triggered reload.
type Router struct {
	mu    sync.RWMutex
	names []string
	set   map[string]struct{}
}

// NewRouter creates an empty Router. Call Rebuild with the store's
// resource names before serving.
func NewRouter() *Router {
	return &Router{set: make(map[string]struct{})}
}

// Rebuild replaces the route table with the given resource names.
func (r *Router) Rebuild(resources []string) {
	set := make(map[string]struct{}, len(resources))
	names := make([]string, 0, len(resources))
	for _, name := range resources {
		if _, dup := set[name]; dup {
			continue
		}
		set[name] = struct{}{}
		names = append(names, name)
	}

	r.mu.Lock()
	r.names = names
	r.set = set
	r.mu.Unlock()
}

// Resources returns the resource names currently in the route table.
func (r *Router) Resources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Match resolves a URL path against the route table. It returns the
// resource name, the item id ("" for collection routes), and whether the
// path matched. The id is any non-slash segment; it is compared against
// record ids by string equality later.
func (r *Router) Match(path string) (resource, id string, ok bool) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", "", false
	}

	segments := strings.Split(trimmed, "/")
	if len(segments) > 2 {
		return "", "", false
	}

	r.mu.RLock()
	_, known := r.set[segments[0]]
	r.mu.RUnlock()

	if !known {
		return "", "", false
	}
	if len(segments) == 2 {
		if segments[1] == "" {
			return "", "", false
		}
		return segments[0], segments[1], true
	}
	return segments[0], "", true
}
