package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/woodruffw/kbs2/internal/backend"
	"github.com/woodruffw/kbs2/internal/record"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key")
	publicKey, err := backend.CreateKeypair(keyPath)
	if err != nil {
		t.Fatalf("CreateKeypair() error: %v", err)
	}

	b, err := backend.NewAgeBackend(publicKey, keyPath, false, nil, nil)
	if err != nil {
		t.Fatalf("NewAgeBackend() error: %v", err)
	}

	s, err := New(filepath.Join(dir, "store"), b)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func TestAddGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	r := record.New("my-label", record.NewUnstructuredBody("shh"))
	if err := s.Add(r); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	got, err := s.Get("my-label")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !r.Equal(got) {
		t.Errorf("Get() = %+v, want %+v", got, r)
	}
}

func TestHas(t *testing.T) {
	s := newTestStore(t)
	if s.Has("nope") {
		t.Error("Has() true for nonexistent record")
	}

	r := record.New("present", record.NewUnstructuredBody("x"))
	if err := s.Add(r); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if !s.Has("present") {
		t.Error("Has() false for existing record")
	}
}

func TestGetMissingIsNoSuchRecord(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("ghost")
	if !errors.Is(err, ErrNoSuchRecord) {
		t.Errorf("Get() error = %v, want ErrNoSuchRecord", err)
	}
}

func TestDeleteMissingIsNoSuchRecord(t *testing.T) {
	s := newTestStore(t)
	err := s.Delete("ghost")
	if !errors.Is(err, ErrNoSuchRecord) {
		t.Errorf("Delete() error = %v, want ErrNoSuchRecord", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	r := record.New("gone-soon", record.NewUnstructuredBody("x"))
	if err := s.Add(r); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := s.Delete("gone-soon"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if s.Has("gone-soon") {
		t.Error("record survived Delete()")
	}
}

func TestLabels(t *testing.T) {
	s := newTestStore(t)
	want := map[string]bool{"a": true, "b": true, "c": true}
	for label := range want {
		if err := s.Add(record.New(label, record.NewUnstructuredBody("x"))); err != nil {
			t.Fatalf("Add(%q) error: %v", label, err)
		}
	}

	got, err := s.Labels()
	if err != nil {
		t.Fatalf("Labels() error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Labels() = %v, want %d entries", got, len(want))
	}
	for _, label := range got {
		if !want[label] {
			t.Errorf("Labels() returned unexpected label %q", label)
		}
	}
}

func TestRenameMovesRecordAndUpdatesLabel(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add(record.New("old", record.NewUnstructuredBody("payload"))); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	if err := s.Rename("old", "new", false); err != nil {
		t.Fatalf("Rename() error: %v", err)
	}

	if s.Has("old") {
		t.Error("old label still present after Rename()")
	}
	got, err := s.Get("new")
	if err != nil {
		t.Fatalf("Get(new) error: %v", err)
	}
	if got.Label != "new" {
		t.Errorf("renamed record label = %q, want %q", got.Label, "new")
	}
}

func TestRenameRefusesToClobberWithoutForce(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add(record.New("a", record.NewUnstructuredBody("1"))); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := s.Add(record.New("b", record.NewUnstructuredBody("2"))); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	err := s.Rename("a", "b", false)
	if !errors.Is(err, ErrRecordExists) {
		t.Errorf("Rename() error = %v, want ErrRecordExists", err)
	}

	if err := s.Rename("a", "b", true); err != nil {
		t.Fatalf("Rename() with force error: %v", err)
	}
}

func TestInvalidLabelRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.Add(record.New("../escape", record.NewUnstructuredBody("x")))
	if !errors.Is(err, ErrInvalidLabel) {
		t.Errorf("Add() error = %v, want ErrInvalidLabel", err)
	}
}
