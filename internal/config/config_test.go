package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/foo", filepath.Join(home, "foo")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
	}

	for _, tt := range tests {
		got := ExpandPath(tt.input)
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("age1pub", "/home/user/.config/kbs2/key", "/home/user/.local/share/kbs2")
	if cfg.Wrapped {
		t.Error("DefaultConfig() Wrapped = true, want false")
	}
	if !cfg.AgentAutostart {
		t.Error("DefaultConfig() AgentAutostart = false, want true")
	}
	if cfg.Pinentry != "pinentry" {
		t.Errorf("DefaultConfig() Pinentry = %q, want pinentry", cfg.Pinentry)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig("age1pub", filepath.Join(dir, "key"), filepath.Join(dir, "store"))
	cfg.Wrapped = true
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.PublicKey != cfg.PublicKey || got.Keyfile != cfg.Keyfile || got.Store != cfg.Store || got.Wrapped != cfg.Wrapped {
		t.Errorf("Load() = %+v, want %+v", got, cfg)
	}
}

func TestValidateRequiresFields(t *testing.T) {
	cases := []*Config{
		{},
		{PublicKey: "age1pub"},
		{PublicKey: "age1pub", Keyfile: "/key"},
	}
	for _, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate() on %+v succeeded, want error", cfg)
		}
	}
}

func TestValidateFillsDefaultPinentry(t *testing.T) {
	cfg := &Config{PublicKey: "age1pub", Keyfile: "/key", Store: "/store"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.Pinentry != "pinentry" {
		t.Errorf("Pinentry = %q, want pinentry", cfg.Pinentry)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	if DefaultConfigPath() == "" {
		t.Error("DefaultConfigPath() returned empty string")
	}
}
