package store

import "fmt"

// DataFileError indicates the backing file is missing or does not contain a
// valid resource map. Fatal at startup, non-fatal during a watch reload.
type DataFileError struct {
	Path string
	Err  error
}

func (e *DataFileError) Error() string {
	return fmt.Sprintf("data file %s: %v", e.Path, e.Err)
}

func (e *DataFileError) Unwrap() error {
	return e.Err
}

// PersistError indicates the backing file could not be written after a
// committed in-memory mutation. The in-memory state remains authoritative.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist to %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
