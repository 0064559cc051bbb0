package session

import (
	"fmt"

	"github.com/woodruffw/kbs2/internal/agent"
	"github.com/woodruffw/kbs2/internal/backend"
	"github.com/woodruffw/kbs2/internal/config"
	"github.com/woodruffw/kbs2/internal/record"
	"github.com/woodruffw/kbs2/internal/zero"
)

// Rekey replaces the session's entire keypair with a fresh one wrapped
// under newPassphrase, re-encrypting every retained record under the
// new key. It returns the new Session. Each agent.Client call opens
// and closes its own connection (§4.5), so no handle needs to be
// released before constructing the new session — unlike a persistent
// connection, it never outlives a single request and so can never
// collide with the agent's one-client-at-a-time accept loop.
//
// Steps, matching kbs2's rekey design exactly:
//  1. Decrypt every record via the current session into memory.
//  2. Generate a fresh wrapped keypair under newPassphrase.
//  3. Rewrite the config with the new public key.
//  4. Flush the agent and add the new key to it.
//  5. Construct a new session from the new config and re-encrypt every
//     retained record to disk.
func (s *Session) Rekey(newPassphrase zero.Bytes, configPath string) (*Session, error) {
	labels, err := s.RecordLabels()
	if err != nil {
		return nil, fmt.Errorf("rekey: listing records: %w", err)
	}

	records := make([]*record.Record, 0, len(labels))
	for _, label := range labels {
		r, err := s.GetRecord(label)
		if err != nil {
			return nil, fmt.Errorf("rekey: decrypting %q: %w", label, err)
		}
		records = append(records, r)
	}
	defer func() {
		for _, r := range records {
			r.Clear()
		}
	}()

	newPublicKey, err := backend.CreateWrappedKeypair(s.cfg.Keyfile, newPassphrase)
	if err != nil {
		return nil, fmt.Errorf("rekey: generating new keypair: %w", err)
	}

	newCfg := *s.cfg
	newCfg.PublicKey = newPublicKey
	newCfg.Wrapped = true
	if err := config.Save(&newCfg, configPath); err != nil {
		return nil, fmt.Errorf("rekey: saving config: %w", err)
	}

	// The new key is always wrapped (see CreateWrappedKeypair above), so
	// the agent needs seeding even when the session being rekeyed
	// started out bare and so never had an agentClient of its own —
	// otherwise the session constructed below would immediately
	// re-prompt for the passphrase this call already collected.
	agentClient := s.agentClient
	if agentClient == nil {
		socketPath, err := agent.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("rekey: resolving agent socket: %w", err)
		}
		if err := agent.EnsureRunning(socketPath); err != nil {
			return nil, fmt.Errorf("rekey: starting agent: %w", err)
		}
		agentClient = agent.NewClient(socketPath)
	}

	if err := agentClient.FlushKeys(); err != nil {
		return nil, fmt.Errorf("rekey: flushing agent: %w", err)
	}
	if err := agentClient.AddKey(newPublicKey, newCfg.Keyfile, newPassphrase); err != nil {
		return nil, fmt.Errorf("rekey: caching new key: %w", err)
	}

	newSession, err := New(&newCfg)
	if err != nil {
		return nil, fmt.Errorf("rekey: constructing new session: %w", err)
	}

	for _, r := range records {
		if err := newSession.AddRecord(r); err != nil {
			return nil, fmt.Errorf("rekey: re-encrypting %q: %w", r.Label, err)
		}
	}

	return newSession, nil
}
