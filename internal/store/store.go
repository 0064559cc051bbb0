// Package store implements the label-to-ciphertext directory backing a
// session: one regular file per record, named after its label, holding
// the armored output of a backend.Encrypt call.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/woodruffw/kbs2/internal/backend"
	"github.com/woodruffw/kbs2/internal/record"
)

// ErrNoSuchRecord is returned by Get, Delete, and Rename when the named
// label has no backing file.
var ErrNoSuchRecord = errors.New("no such record")

// ErrRecordExists is returned by Rename when new already exists and the
// caller has not opted into overwriting it.
var ErrRecordExists = errors.New("record already exists")

// ErrInvalidLabel is returned when a label is not a single path
// component — it contains a path separator or is otherwise unsuitable
// as a bare filename.
var ErrInvalidLabel = errors.New("invalid label")

// Store is a directory of encrypted records, one file per label.
type Store struct {
	dir     string
	backend backend.Backend
}

// New returns a Store rooted at dir, creating dir (and any missing
// parents) if it does not already exist.
func New(dir string, b backend.Backend) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &Store{dir: dir, backend: b}, nil
}

func validateLabel(label string) error {
	if label == "" || label != filepath.Base(label) || label == "." || label == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return nil
}

// Labels lists every record label currently in the store. Directory
// entries that are not regular files are skipped silently; order is
// not guaranteed.
func (s *Store) Labels() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading store directory: %w", err)
	}

	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if !utf8.ValidString(name) {
			return nil, fmt.Errorf("store entry %q is not valid UTF-8", name)
		}
		labels = append(labels, name)
	}
	return labels, nil
}

// Has reports whether label names a regular file in the store.
func (s *Store) Has(label string) bool {
	info, err := os.Stat(filepath.Join(s.dir, label))
	return err == nil && info.Mode().IsRegular()
}

// Get reads and decrypts the record named label.
func (s *Store) Get(label string) (*record.Record, error) {
	if err := validateLabel(label); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, label))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchRecord, label)
		}
		return nil, fmt.Errorf("reading record %q: %w", label, err)
	}

	r, err := s.backend.Decrypt(string(data))
	if err != nil {
		return nil, fmt.Errorf("decrypting record %q: %w", label, err)
	}
	return r, nil
}

// Add encrypts r and writes it to dir/r.Label, overwriting any existing
// file for that label in a single write.
func (s *Store) Add(r *record.Record) error {
	if err := validateLabel(r.Label); err != nil {
		return err
	}

	armored, err := s.backend.Encrypt(r)
	if err != nil {
		return fmt.Errorf("encrypting record %q: %w", r.Label, err)
	}

	if err := os.WriteFile(filepath.Join(s.dir, r.Label), []byte(armored), 0o600); err != nil {
		return fmt.Errorf("writing record %q: %w", r.Label, err)
	}
	return nil
}

// Delete removes the record named label.
func (s *Store) Delete(label string) error {
	if err := validateLabel(label); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.dir, label)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoSuchRecord, label)
		}
		return fmt.Errorf("deleting record %q: %w", label, err)
	}
	return nil
}

// Rename moves the record at old to new, updating its Label field. If
// new already exists, Rename fails unless force is true.
func (s *Store) Rename(old, newLabel string, force bool) error {
	if err := validateLabel(newLabel); err != nil {
		return err
	}
	if !force && s.Has(newLabel) {
		return fmt.Errorf("%w: %s", ErrRecordExists, newLabel)
	}

	r, err := s.Get(old)
	if err != nil {
		return err
	}
	r.Label = newLabel

	if err := s.Add(r); err != nil {
		return err
	}
	return s.Delete(old)
}
