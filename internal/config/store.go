package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store owns the configuration file. It is the only component that reads
// or writes it. Store does no locking; callers serialise writes.
type Store struct {
	path   string
	schema *Schema
}

// NewStore creates a Store for the YAML file at path. A nil schema selects
// DefaultSchema.
func NewStore(path string, schema *Schema) *Store {
	if schema == nil {
		schema = DefaultSchema()
	}
	return &Store{path: path, schema: schema}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Schema returns the schema used for validation.
func (s *Store) Schema() *Schema {
	return s.schema
}

// Load reads the whole document from disk.
func (s *Store) Load() (Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &StorageError{Op: "read", Path: s.path, Err: err}
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &StorageError{Op: "decode", Path: s.path, Err: err}
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Save overwrites the document on disk. The file is replaced by rename so
// a reader never sees a partial document.
func (s *Store) Save(doc Document) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(4)
	if err := enc.Encode(doc); err != nil {
		return &StorageError{Op: "encode", Path: s.path, Err: err}
	}
	if err := enc.Close(); err != nil {
		return &StorageError{Op: "encode", Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

// ValidateAndBackfill checks doc against the store's schema.
// See Schema.Backfill. When changed is true the caller must Save the
// returned document.
func (s *Store) ValidateAndBackfill(doc Document) (Document, bool, error) {
	return s.schema.Backfill(doc)
}

// Current loads and validates the document, persisting any defaults that
// were filled in so later reads see explicit values.
func (s *Store) Current() (Document, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}

	doc, migrated := migrateLegacy(doc)
	doc, changed, err := s.ValidateAndBackfill(doc)
	if err != nil {
		return nil, err
	}

	if migrated {
		if err := s.Save(doc); err != nil {
			return nil, fmt.Errorf("persist migrated sections: %w", err)
		}
		log.Printf("config: migrated legacy sections in %s", s.path)
	} else if changed {
		if err := s.Save(doc); err != nil {
			return nil, fmt.Errorf("persist defaults: %w", err)
		}
		log.Printf("config: wrote defaults to %s", s.path)
	}
	return doc, nil
}

// update applies fn to the current document and saves the result.
func (s *Store) update(fn func(Document) error) error {
	doc, err := s.Current()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.Save(doc)
}

// IsSchemaError reports whether err is caused by missing required settings.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsStorageError reports whether err is caused by the backing file.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
