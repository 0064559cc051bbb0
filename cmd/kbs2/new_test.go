package main

import (
	"os"
	"testing"

	"github.com/woodruffw/kbs2/internal/record"
)

func withStdin(t *testing.T, content string, fn func()) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error: %v", err)
	}
	old := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = old }()

	go func() {
		defer w.Close()
		w.WriteString(content)
	}()

	fn()
}

func TestReadBodyLogin(t *testing.T) {
	var body record.Body
	withStdin(t, "alice\nhunter2\n", func() {
		b, err := readBody(record.KindLogin)
		if err != nil {
			t.Fatalf("readBody() error: %v", err)
		}
		body = b
	})

	login, ok := body.(*record.LoginBody)
	if !ok {
		t.Fatalf("body type = %T, want *record.LoginBody", body)
	}
	if login.Username != "alice" || login.Password.Expose() != "hunter2" {
		t.Errorf("fields = (%q, %q), want (alice, hunter2)", login.Username, login.Password.Expose())
	}
}

func TestReadBodyLoginX01Separated(t *testing.T) {
	var body record.Body
	withStdin(t, "alice\x01hunter2\x01", func() {
		b, err := readBody(record.KindLogin)
		if err != nil {
			t.Fatalf("readBody() error: %v", err)
		}
		body = b
	})

	login, ok := body.(*record.LoginBody)
	if !ok {
		t.Fatalf("body type = %T, want *record.LoginBody", body)
	}
	if login.Username != "alice" || login.Password.Expose() != "hunter2" {
		t.Errorf("fields = (%q, %q), want (alice, hunter2)", login.Username, login.Password.Expose())
	}
}

func TestReadBodyUnknownKind(t *testing.T) {
	withStdin(t, "", func() {
		if _, err := readBody(record.Kind("bogus")); err == nil {
			t.Error("readBody() with unknown kind succeeded, want error")
		}
	})
}
