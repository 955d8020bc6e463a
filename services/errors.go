package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrPostNotFound is returned when no post matches the requested id.
	ErrPostNotFound = errors.New("post not found")
)

// ValidationError carries one message per rejected input field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// StorageWriteError reports that an upload could not be persisted. The
// surrounding create or update is aborted when it occurs.
type StorageWriteError struct {
	Field string
	Err   error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("store %s attachment: %v", e.Field, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }
