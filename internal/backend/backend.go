// Package backend implements the cryptographic envelope around a
// record: encrypting a Record to an armored string and decrypting it
// back, backed by age's X25519 recipients/identities.
package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/woodruffw/kbs2/internal/record"
	"github.com/woodruffw/kbs2/internal/zero"
)

// Backend encrypts and decrypts records against a single configured
// identity/recipient pair.
type Backend interface {
	Encrypt(r *record.Record) (string, error)
	Decrypt(armored string) (*record.Record, error)
}

// KeyAgent is the narrow slice of the agent client that a wrapped
// backend needs to materialize its identity. It is declared here,
// rather than imported from package agent, so that backend has no
// dependency on agent's transport — agent depends on backend's types
// instead, not the other way around.
type KeyAgent interface {
	QueryKey(publicKey string) (bool, error)
	AddKey(publicKey, keyfile string, passphrase zero.Bytes) error
	GetKey(publicKey string) (string, error)
}

// PromptFunc reads a passphrase from the user, typically with echo
// disabled (internal/prompt).
type PromptFunc func() (zero.Bytes, error)

// AgeBackend is the sole Backend implementation: a single X25519
// identity and its matching recipient, loaded either directly from a
// bare keyfile or through an agent-mediated passphrase unwrap.
type AgeBackend struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewAgeBackend constructs an AgeBackend for the given public key.
//
// If wrapped is false, keyfilePath is read and parsed directly as a
// bare identity. If wrapped is true, agent and prompt are used to
// obtain the unwrapped identity text without this process ever
// touching the passphrase-derivation cost itself: the configured
// public key is first queried against the agent's cache; a cache miss
// prompts for the passphrase and asks the agent to unwrap and cache
// the keyfile, after which the unwrapped identity text is fetched.
func NewAgeBackend(publicKey, keyfilePath string, wrapped bool, agent KeyAgent, prompt PromptFunc) (*AgeBackend, error) {
	recipient, err := age.ParseX25519Recipient(publicKey)
	if err != nil {
		return nil, fmt.Errorf("parsing configured public key: %w", err)
	}

	var identityText zero.Bytes
	if !wrapped {
		data, err := readIdentityFile(keyfilePath)
		if err != nil {
			return nil, err
		}
		identityText = data
	} else {
		if agent == nil {
			return nil, fmt.Errorf("backend: wrapped keyfile requires an agent connection")
		}

		cached, err := agent.QueryKey(publicKey)
		if err != nil {
			return nil, fmt.Errorf("querying agent: %w", err)
		}
		if !cached {
			if prompt == nil {
				return nil, fmt.Errorf("backend: wrapped keyfile requires a passphrase prompt")
			}
			passphrase, err := prompt()
			if err != nil {
				return nil, fmt.Errorf("reading passphrase: %w", err)
			}
			defer passphrase.Wipe()

			if err := agent.AddKey(publicKey, keyfilePath, passphrase); err != nil {
				return nil, fmt.Errorf("adding key to agent: %w", err)
			}
		}

		text, err := agent.GetKey(publicKey)
		if err != nil {
			return nil, fmt.Errorf("fetching key from agent: %w", err)
		}
		identityText = zero.New(text)
	}
	defer identityText.Wipe()

	identity, err := ParseSingleIdentity(identityText.String())
	if err != nil {
		return nil, err
	}

	if identity.Recipient().String() != recipient.String() {
		return nil, fmt.Errorf("backend: keyfile %s does not match configured public key", keyfilePath)
	}

	return &AgeBackend{identity: identity, recipient: recipient}, nil
}

func readIdentityFile(path string) (zero.Bytes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keyfile: %w", err)
	}
	return zero.New(string(data)), nil
}

// Encrypt serializes r to JSON and encrypts it to the backend's
// configured recipient, returning an ASCII-armored envelope.
func (b *AgeBackend) Encrypt(r *record.Record) (string, error) {
	plaintext, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshaling record: %w", err)
	}

	var buf bytes.Buffer
	armorWriter := armor.NewWriter(&buf)

	w, err := age.Encrypt(armorWriter, b.recipient)
	if err != nil {
		return "", fmt.Errorf("encrypting record: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", fmt.Errorf("encrypting record: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("encrypting record: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return "", fmt.Errorf("encrypting record: %w", err)
	}

	return buf.String(), nil
}

// Decrypt reverses Encrypt. If no configured identity matches any
// recipient stanza in armored, it returns the literal message
// "unable to decrypt (backend reports: NoMatchingKeys)" — unwrapped,
// so callers and tests can match it verbatim — rather than any other
// decryption failure, which is surfaced wrapped in ErrDecrypt.
func (b *AgeBackend) Decrypt(armored string) (*record.Record, error) {
	r, err := age.Decrypt(armor.NewReader(bytes.NewReader([]byte(armored))), b.identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, errors.New(errNoMatchingKeys)
		}
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	var rec record.Record
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	return &rec, nil
}
