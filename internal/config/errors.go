package config

import (
	"fmt"
	"strings"
)

// SchemaError reports required settings missing from the document.
// The operator has to supply them; they are never defaulted.
type SchemaError struct {
	Missing []Key
}

func (e *SchemaError) Error() string {
	names := make([]string, len(e.Missing))
	for i, k := range e.Missing {
		names[i] = k.String()
	}
	return "missing required settings: " + strings.Join(names, ", ")
}

// StorageError reports that the backing file could not be read or written.
type StorageError struct {
	Op   string // "read", "decode", "encode", "write"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("config %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ValueError reports a setting that is present but unusable.
type ValueError struct {
	Key Key
	Err error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("setting %s: %v", e.Key, e.Err)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}
