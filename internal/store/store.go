// Package store implements the in-memory document store backed by a JSON
// file on disk. The store owns a mapping from resource name to an ordered
// collection of records and keeps the file in sync after every mutation.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/getjsond/jsond/pkg/logging"
)

// Record is a single schema-less item within a resource collection.
// Every record is expected to carry an "id" field, unique within its
// own resource. Field types are whatever the data file supplied.
type Record = map[string]any

// Store holds the full resource map in memory and mirrors it to the
// backing file. All access is guarded by an RWMutex; mutations and their
// persistence are serialized so concurrent requests observe each other.
type Store struct {
	mu sync.RWMutex

	// persistMu serializes mutation commit and file write as one unit so
	// the backing file is always a serialization of the latest committed
	// state, in commit order.
	persistMu sync.Mutex

	path     string
	readOnly bool
	data     map[string][]Record
	lastMod  time.Time
	lastSize int64
	onReload func()
	log      *slog.Logger
}

// Option is a functional option for configuring a Store.
type Option func(*Store)

// WithReadOnly disables all writes to the backing file.
func WithReadOnly(readOnly bool) Option {
	return func(s *Store) {
		s.readOnly = readOnly
	}
}

// WithLogger sets the operational logger for the store.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Store for the given backing file. Call Load before use.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path: path,
		data: make(map[string][]Record),
		log:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// ReadOnly reports whether the store refuses writes to the backing file.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// OnReload registers a hook invoked after every successful reload.
// The hook runs outside the store lock.
func (s *Store) OnReload(fn func()) {
	s.onReload = fn
}

// Load reads and parses the backing file, replacing the in-memory state.
// A missing file or unparsable content yields a *DataFileError.
func (s *Store) Load() error {
	data, mod, size, err := s.parseFile()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.lastMod = mod
	s.lastSize = size
	s.mu.Unlock()
	return nil
}

// Reload re-parses the backing file after an external change. On parse
// failure the previous in-memory state is retained and the error returned;
// on success the state is swapped and the reload hook fired.
func (s *Store) Reload() error {
	if err := s.Load(); err != nil {
		return err
	}
	if s.onReload != nil {
		s.onReload()
	}
	return nil
}

// parseFile reads the backing file and decodes it as a mapping of resource
// name to record sequence, also returning the file's mtime and size.
func (s *Store) parseFile() (map[string][]Record, time.Time, int64, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, time.Time{}, 0, &DataFileError{Path: s.path, Err: err}
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return nil, time.Time{}, 0, &DataFileError{Path: s.path, Err: err}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, time.Time{}, 0, &DataFileError{Path: s.path, Err: fmt.Errorf("invalid JSON object: %w", err)}
	}

	data := make(map[string][]Record, len(top))
	for name, value := range top {
		var records []Record
		if err := json.Unmarshal(value, &records); err != nil {
			return nil, time.Time{}, 0, &DataFileError{
				Path: s.path,
				Err:  fmt.Errorf("resource %q is not an array of objects: %w", name, err),
			}
		}
		if records == nil {
			records = make([]Record, 0)
		}
		data[name] = records
	}

	return data, info.ModTime(), info.Size(), nil
}

// Resources returns all resource names in sorted order.
func (s *Store) Resources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the current collection for a resource. The returned slice is
// shared with the store; callers must not modify records in place.
func (s *Store) Get(resource string) ([]Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.data[resource]
	return records, ok
}

// Set replaces a resource's collection without persisting.
func (s *Store) Set(resource string, records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[resource] = records
}

// Snapshot returns a copy of the full resource map. The outer map and the
// collection slices are copies; the record maps themselves are shared, which
// is safe because mutations replace records instead of editing them in place.
func (s *Store) Snapshot() map[string][]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string][]Record, len(s.data))
	for name, records := range s.data {
		cp := make([]Record, len(records))
		copy(cp, records)
		snap[name] = cp
	}
	return snap
}

// Mutate applies fn to a resource's collection under the write lock and
// persists the result. Mutation and persistence are serialized as one unit:
// concurrent Mutate calls write the file in commit order. If fn returns an
// error, the store is unchanged and the error is returned as-is. A failed
// persist after a successful mutation is returned as a *PersistError; the
// in-memory change is already committed and visible to subsequent requests.
func (s *Store) Mutate(resource string, fn func(records []Record) ([]Record, error)) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()

	updated, err := fn(s.data[resource])
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if updated == nil {
		updated = make([]Record, 0)
	}
	s.data[resource] = updated

	raw, err := s.marshalLocked()
	s.mu.Unlock()

	if err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	return s.writeFile(raw)
}

// Persist serializes the current state and overwrites the backing file.
// It is a no-op when the store is read-only.
func (s *Store) Persist() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	raw, err := s.marshalLocked()
	s.mu.RUnlock()

	if err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	return s.writeFile(raw)
}

// marshalLocked serializes the resource map. Callers must hold at least a
// read lock.
func (s *Store) marshalLocked() ([]byte, error) {
	return json.MarshalIndent(s.data, "", "  ")
}

// writeFile atomically replaces the backing file: write to a temp file,
// then rename. No-op in read-only mode.
func (s *Store) writeFile(raw []byte) error {
	if s.readOnly {
		return nil
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return &PersistError{Path: s.path, Err: err}
	}

	// Track our own write so the watcher does not reload it as an
	// external change.
	if info, err := os.Stat(s.path); err == nil {
		s.mu.Lock()
		s.lastMod = info.ModTime()
		s.lastSize = info.Size()
		s.mu.Unlock()
	}
	return nil
}

// Changed reports whether the backing file differs from the last state the
// store read or wrote, based on mtime and size.
func (s *Store) Changed() (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return !info.ModTime().Equal(s.lastMod) || info.Size() != s.lastSize, nil
}
