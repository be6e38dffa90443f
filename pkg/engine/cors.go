// CORS middleware for the jsond engine.

package engine

import "net/http"

// CORSMiddleware attaches permissive cross-origin headers to every response
// and short-circuits OPTIONS preflight requests before any routing.
// When disabled it is transparent and no headers are attached.
type CORSMiddleware struct {
	handler http.Handler
	enabled bool
}

// NewCORSMiddleware wraps handler with cross-origin support.
func NewCORSMiddleware(handler http.Handler, enabled bool) *CORSMiddleware {
	return &CORSMiddleware{handler: handler, enabled: enabled}
}

// ServeHTTP implements the http.Handler interface.
func (m *CORSMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !m.enabled {
		m.handler.ServeHTTP(w, r)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Expose-Headers", "X-Total-Count")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	m.handler.ServeHTTP(w, r)
}
