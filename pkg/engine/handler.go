// CRUD handlers for the generated resource routes.

package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/getjsond/jsond/internal/query"
	"github.com/getjsond/jsond/internal/store"
	"github.com/getjsond/jsond/pkg/httputil"
	"github.com/getjsond/jsond/pkg/logging"
)

// Handler dispatches matched requests to the CRUD operation for the
// resolved resource. It owns the mutation policy (read-only mode) and the
// configured artificial delay.
type Handler struct {
	store    *store.Store
	router   *Router
	readOnly bool
	delay    time.Duration
	log      *slog.Logger
}

// NewHandler creates a Handler over the given store and router.
func NewHandler(st *store.Store, router *Router) *Handler {
	return &Handler{
		store:  st,
		router: router,
		log:    logging.Nop(),
	}
}

// SetReadOnly toggles read-only mode.
func (h *Handler) SetReadOnly(readOnly bool) {
	h.readOnly = readOnly
}

// SetDelay sets the artificial latency applied to every handled request.
func (h *Handler) SetDelay(delay time.Duration) {
	h.delay = delay
}

// SetLogger sets the operational logger.
func (h *Handler) SetLogger(log *slog.Logger) {
	if log != nil {
		h.log = log
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(h.delay):
		}
	}

	resource, id, ok := h.router.Match(r.URL.Path)
	if !ok {
		httputil.WriteNotFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if id == "" {
			h.handleList(w, r, resource)
			return
		}
		h.handleGet(w, resource, id)

	case http.MethodPost:
		if id != "" {
			httputil.WriteNotFound(w)
			return
		}
		h.handleCreate(w, r, resource)

	case http.MethodPut:
		if id == "" {
			httputil.WriteNotFound(w)
			return
		}
		h.handleReplace(w, r, resource, id)

	case http.MethodPatch:
		if id == "" {
			httputil.WriteNotFound(w)
			return
		}
		h.handleUpdate(w, r, resource, id)

	case http.MethodDelete:
		if id == "" {
			httputil.WriteNotFound(w)
			return
		}
		h.handleDelete(w, r, resource, id)

	default:
		httputil.WriteNotFound(w)
	}
}

// handleList applies the query interpreter to the resource's current
// collection and reports the pre-pagination filtered count in X-Total-Count.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, resource string) {
	records, ok := h.store.Get(resource)
	if !ok {
		httputil.WriteNotFound(w)
		return
	}

	q := query.Parse(r.URL.Query())
	window, total := q.Apply(records)

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	httputil.WriteJSON(w, http.StatusOK, window)
}

// handleGet returns the first record whose id matches the path segment.
func (h *Handler) handleGet(w http.ResponseWriter, resource, id string) {
	records, ok := h.store.Get(resource)
	if !ok {
		httputil.WriteNotFound(w)
		return
	}

	idx := indexOf(records, id)
	if idx < 0 {
		httputil.WriteNotFound(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records[idx])
}

// handleCreate appends a new record with a computed id. The id is one
// greater than the maximum existing numeric id; a caller-supplied id in
// the body is overridden.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request, resource string) {
	body, ok := h.parseBody(w, r)
	if !ok {
		return
	}
	if h.readOnly {
		h.writeError(w, &ReadOnlyError{Method: r.Method})
		return
	}

	var created store.Record
	err := h.store.Mutate(resource, func(records []store.Record) ([]store.Record, error) {
		rec := make(store.Record, len(body)+1)
		for k, v := range body {
			rec[k] = v
		}
		rec["id"] = nextID(records)

		updated := make([]store.Record, len(records)+1)
		copy(updated, records)
		updated[len(records)] = rec

		created = rec
		return updated, nil
	})
	if !h.commitOK(w, err) {
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, created)
}

// handleReplace wholesale-replaces the stored record with the request body,
// reasserting the original id.
func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request, resource, id string) {
	body, ok := h.parseBody(w, r)
	if !ok {
		return
	}
	if h.readOnly {
		h.writeError(w, &ReadOnlyError{Method: r.Method})
		return
	}

	var replaced store.Record
	err := h.store.Mutate(resource, func(records []store.Record) ([]store.Record, error) {
		idx := indexOf(records, id)
		if idx < 0 {
			return nil, &NotFoundError{Resource: resource, ID: id}
		}

		rec := make(store.Record, len(body)+1)
		for k, v := range body {
			rec[k] = v
		}
		// The caller cannot change the id via replace.
		rec["id"] = records[idx]["id"]

		updated := make([]store.Record, len(records))
		copy(updated, records)
		updated[idx] = rec

		replaced = rec
		return updated, nil
	})
	if !h.commitOK(w, err) {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, replaced)
}

// handleUpdate shallow-merges the request body onto the existing record.
// Fields absent from the body are preserved, as is the record's id.
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, resource, id string) {
	body, ok := h.parseBody(w, r)
	if !ok {
		return
	}
	if h.readOnly {
		h.writeError(w, &ReadOnlyError{Method: r.Method})
		return
	}

	var merged store.Record
	err := h.store.Mutate(resource, func(records []store.Record) ([]store.Record, error) {
		idx := indexOf(records, id)
		if idx < 0 {
			return nil, &NotFoundError{Resource: resource, ID: id}
		}

		rec := make(store.Record, len(records[idx])+len(body))
		for k, v := range records[idx] {
			rec[k] = v
		}
		for k, v := range body {
			rec[k] = v
		}
		rec["id"] = records[idx]["id"]

		updated := make([]store.Record, len(records))
		copy(updated, records)
		updated[idx] = rec

		merged = rec
		return updated, nil
	})
	if !h.commitOK(w, err) {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, merged)
}

// handleDelete removes the record from the collection. The body carries no
// payload but is still parsed so malformed content is rejected like every
// other mutating method.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, resource, id string) {
	if _, ok := h.parseBody(w, r); !ok {
		return
	}
	if h.readOnly {
		h.writeError(w, &ReadOnlyError{Method: r.Method})
		return
	}

	err := h.store.Mutate(resource, func(records []store.Record) ([]store.Record, error) {
		idx := indexOf(records, id)
		if idx < 0 {
			return nil, &NotFoundError{Resource: resource, ID: id}
		}

		updated := make([]store.Record, 0, len(records)-1)
		updated = append(updated, records[:idx]...)
		updated = append(updated, records[idx+1:]...)
		return updated, nil
	})
	if !h.commitOK(w, err) {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, store.Record{})
}

// parseBody reads and decodes a mutation payload before the operation runs.
// Malformed content writes a 400 response and aborts without any mutation.
// An empty body is treated as an empty object.
func (h *Handler) parseBody(w http.ResponseWriter, r *http.Request) (store.Record, bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid JSON")
		return nil, false
	}
	if len(raw) == 0 {
		return store.Record{}, true
	}

	var body store.Record
	if err := json.Unmarshal(raw, &body); err != nil {
		h.log.Debug("rejecting malformed request body",
			"method", r.Method, "path", r.URL.Path, "error", err)
		h.writeError(w, &MalformedBodyError{Err: err})
		return nil, false
	}
	return body, true
}

// commitOK maps a mutation outcome to the response. A persist failure after
// a committed in-memory mutation is logged but still counts as success; the
// in-memory state is authoritative until restart.
func (h *Handler) commitOK(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}

	var persistErr *store.PersistError
	if errors.As(err, &persistErr) {
		h.log.Error("failed to persist mutation", "error", persistErr)
		return true
	}

	h.writeError(w, err)
	return false
}

// writeError maps a typed handler error onto the fixed response envelopes.
// Errors without a status code are reported as internal.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var sc StatusCodeError
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case http.StatusNotFound:
			httputil.WriteNotFound(w)
		case http.StatusForbidden:
			httputil.WriteForbidden(w)
		case http.StatusBadRequest:
			httputil.WriteBadRequest(w, "Invalid JSON")
		default:
			httputil.WriteInternalError(w)
		}
		return
	}

	h.log.Error("mutation failed", "error", err)
	httputil.WriteInternalError(w)
}

// indexOf finds the first record whose string-coerced id equals the path
// segment, so "1" and 1 are treated as matching.
func indexOf(records []store.Record, id string) int {
	for i, rec := range records {
		if fmt.Sprintf("%v", rec["id"]) == id {
			return i
		}
	}
	return -1
}

// nextID computes one greater than the maximum numeric id in the
// collection, or 1 when the collection is empty or has no numeric ids.
func nextID(records []store.Record) float64 {
	max := 0.0
	found := false
	for _, rec := range records {
		n, ok := idNumber(rec["id"])
		if !ok {
			continue
		}
		if !found || n > max {
			max = n
		}
		found = true
	}
	if !found {
		return 1
	}
	return max + 1
}

// idNumber extracts a numeric id value.
func idNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
