// Package session binds a Config to a live Backend and Store and
// exposes record-level operations. Constructing a Session for a
// wrapped key involves the agent: spawning it if necessary, then
// walking its query/add/get protocol to materialize an identity
// without this process ever handling the raw passphrase-derivation
// cost itself.
package session

import (
	"fmt"

	"github.com/woodruffw/kbs2/internal/agent"
	"github.com/woodruffw/kbs2/internal/backend"
	"github.com/woodruffw/kbs2/internal/config"
	"github.com/woodruffw/kbs2/internal/prompt"
	"github.com/woodruffw/kbs2/internal/record"
	"github.com/woodruffw/kbs2/internal/store"
	"github.com/woodruffw/kbs2/internal/zero"
)

// Session is the top-level collaborator a command layer talks to.
type Session struct {
	cfg         *config.Config
	backend     backend.Backend
	store       *store.Store
	agentClient *agent.Client
}

// New constructs a Session from cfg. If cfg declares a wrapped key and
// agent autostart is enabled, it first ensures an agent is running
// (spawning one if necessary) before constructing the backend. It also
// creates the store directory if it does not already exist.
func New(cfg *config.Config) (*Session, error) {
	var client *agent.Client
	var ka backend.KeyAgent

	if cfg.Wrapped {
		socketPath, err := agent.SocketPath()
		if err != nil {
			return nil, err
		}
		if cfg.AgentAutostart {
			if err := agent.EnsureRunning(socketPath); err != nil {
				return nil, fmt.Errorf("starting agent: %w", err)
			}
		}
		client = agent.NewClient(socketPath)
		ka = client
	}

	promptFn := func() (zero.Bytes, error) {
		return prompt.Passphrase(fmt.Sprintf("Passphrase for %s: ", cfg.Keyfile))
	}

	b, err := backend.NewAgeBackend(cfg.PublicKey, cfg.Keyfile, cfg.Wrapped, ka, promptFn)
	if err != nil {
		return nil, err
	}

	s, err := store.New(cfg.Store, b)
	if err != nil {
		return nil, err
	}

	return &Session{cfg: cfg, backend: b, store: s, agentClient: client}, nil
}

// Config returns the session's backing config.
func (s *Session) Config() *config.Config { return s.cfg }

// AgentClient returns the session's agent client, or nil if the
// session was constructed against a bare (unwrapped) key.
func (s *Session) AgentClient() *agent.Client { return s.agentClient }

// RecordLabels lists every record label in the store.
func (s *Session) RecordLabels() ([]string, error) {
	return s.store.Labels()
}

// HasRecord reports whether label exists in the store.
func (s *Session) HasRecord(label string) bool {
	return s.store.Has(label)
}

// GetRecord decrypts and returns the record named label.
func (s *Session) GetRecord(label string) (*record.Record, error) {
	return s.store.Get(label)
}

// AddRecord encrypts and stores r.
func (s *Session) AddRecord(r *record.Record) error {
	return s.store.Add(r)
}

// DeleteRecord removes the record named label.
func (s *Session) DeleteRecord(label string) error {
	return s.store.Delete(label)
}

// RenameRecord moves the record at old to new.
func (s *Session) RenameRecord(old, newLabel string, force bool) error {
	return s.store.Rename(old, newLabel, force)
}
