// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"net/http"
	"sort"
)

// Operation describes one exposed HTTP operation for discovery.
type Operation struct {
	Name        string                 `json:"name"`
	Method      string                 `json:"method"`
	Path        string                 `json:"path"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
	ErrorCodes  []string               `json:"errorCodes,omitempty"`
}

// Registry is the catalog of exposed operations. Populated once during
// wiring; read-only afterwards.
type Registry struct {
	Version    string      `json:"version"`
	Operations []Operation `json:"operations"`
}

func New(version string) *Registry {
	return &Registry{Version: version}
}

// Register adds one operation to the catalog.
func (r *Registry) Register(op Operation) {
	r.Operations = append(r.Operations, op)
	sort.Slice(r.Operations, func(i, j int) bool {
		return r.Operations[i].Path < r.Operations[j].Path
	})
}

// Handler serves the catalog as JSON for API discovery.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(r)
	})
}
