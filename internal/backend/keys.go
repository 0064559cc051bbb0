package backend

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/woodruffw/kbs2/internal/zero"
)

const (
	// MaxWorkFactorCeiling bounds the scrypt work factor accepted when
	// unwrapping a passphrase-protected keyfile (spec.md §3, §9). Files
	// claiming a higher work factor are refused rather than decrypted,
	// since the cost of attempting the derivation is itself the DoS
	// vector.
	MaxWorkFactorCeiling = 22

	// DefaultWrapWorkFactor is the scrypt work factor used when wrapping
	// a freshly-generated identity. It is deliberately well under the
	// ceiling above.
	DefaultWrapWorkFactor = 18

	// MaxWrappedKeyfileSize is the hard upper bound on an on-disk wrapped
	// keyfile (spec.md §4.2/§6).
	MaxWrappedKeyfileSize = 4096
)

// GenerateIdentity creates a fresh X25519 identity.
func GenerateIdentity() (*age.X25519Identity, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}
	return id, nil
}

// CreateKeypair generates a fresh identity and writes its bare ASCII
// representation to path, returning the public recipient string.
func CreateKeypair(path string) (string, error) {
	id, err := GenerateIdentity()
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, []byte(id.String()+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("writing keyfile: %w", err)
	}

	return id.Recipient().String(), nil
}

// CreateWrappedKeypair generates a fresh identity, wraps its ASCII text
// with passphrase, and writes the armored envelope to path, returning
// the public recipient string.
func CreateWrappedKeypair(path string, passphrase zero.Bytes) (string, error) {
	id, err := GenerateIdentity()
	if err != nil {
		return "", err
	}

	wrapped, err := WrapKey(id.String(), passphrase)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, wrapped, 0o600); err != nil {
		return "", fmt.Errorf("writing keyfile: %w", err)
	}

	return id.Recipient().String(), nil
}

// WrapKey encrypts identity (the bare ASCII identity text) to a fresh
// scrypt recipient derived from passphrase, returning an ASCII-armored
// envelope. WrapKey performs no I/O; each call uses a fresh random salt
// and file key, so wrapping the same inputs twice yields different
// envelopes.
func WrapKey(identity string, passphrase zero.Bytes) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase.String())
	if err != nil {
		return nil, fmt.Errorf("deriving scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(DefaultWrapWorkFactor)

	var buf bytes.Buffer
	armorWriter := armor.NewWriter(&buf)

	w, err := age.Encrypt(armorWriter, recipient)
	if err != nil {
		return nil, fmt.Errorf("wrapping key: %w", err)
	}
	if _, err := io.WriteString(w, identity); err != nil {
		return nil, fmt.Errorf("wrapping key: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("wrapping key: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return nil, fmt.Errorf("wrapping key: %w", err)
	}

	return buf.Bytes(), nil
}

// passphraseIdentity wraps age.ScryptIdentity to distinguish "this file
// isn't passphrase-wrapped at all" from "the passphrase is wrong" —
// a distinction age.Decrypt's NoIdentityMatchError alone doesn't carry,
// since ScryptIdentity reports both as ErrIncorrectIdentity so that
// callers may try several candidate identities.
type passphraseIdentity struct {
	passphrase    string
	maxWorkFactor int
	notWrapped    bool
}

func (i *passphraseIdentity) Unwrap(stanzas []*age.Stanza) ([]byte, error) {
	if len(stanzas) != 1 || stanzas[0].Type != "scrypt" {
		i.notWrapped = true
		return nil, age.ErrIncorrectIdentity
	}

	id, err := age.NewScryptIdentity(i.passphrase)
	if err != nil {
		return nil, err
	}
	id.SetMaxWorkFactor(i.maxWorkFactor)

	return id.Unwrap(stanzas)
}

// armorHeader is the first line of an age ASCII-armored envelope. A
// keyfile lacking it is not an age envelope at all — a bare identity
// file, most likely — and so cannot be passphrase-wrapped regardless
// of what any candidate identity's Unwrap would report.
var armorHeader = []byte("-----BEGIN AGE ENCRYPTED FILE-----")

// UnwrapKeyfile reads the armored, passphrase-wrapped keyfile at path
// and returns the bare ASCII identity text it contains.
func UnwrapKeyfile(path string, passphrase zero.Bytes) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("statting keyfile: %w", err)
	}
	if info.Size() > MaxWrappedKeyfileSize {
		return "", fmt.Errorf("%w: %s is %d bytes (max %d)", ErrKeyfileTooLarge, path, info.Size(), MaxWrappedKeyfileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading keyfile: %w", err)
	}

	if !bytes.Contains(data, armorHeader) {
		return "", fmt.Errorf("%w: %s", ErrNotPassphraseWrapped, path)
	}

	id := &passphraseIdentity{passphrase: passphrase.String(), maxWorkFactor: MaxWorkFactorCeiling}
	r, err := age.Decrypt(armor.NewReader(bytes.NewReader(data)), id)
	if err != nil {
		if id.notWrapped {
			return "", fmt.Errorf("%w: %s", ErrNotPassphraseWrapped, path)
		}
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	return string(plaintext), nil
}

// RewrapKeyfile re-encrypts the identity at path under newPass,
// overwriting it in place. Callers are responsible for any backup
// policy; RewrapKeyfile performs no backup itself.
func RewrapKeyfile(path string, oldPass, newPass zero.Bytes) error {
	identity, err := UnwrapKeyfile(path, oldPass)
	if err != nil {
		return err
	}

	wrapped, err := WrapKey(identity, newPass)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, wrapped, 0o600); err != nil {
		return fmt.Errorf("writing rewrapped keyfile: %w", err)
	}

	return nil
}

// ParseSingleIdentity parses text as a set of age identities and
// returns the sole X25519 identity it contains. It fails if the text
// contains zero or more than one identity, or an identity of the wrong
// kind.
func ParseSingleIdentity(text string) (*age.X25519Identity, error) {
	ids, err := age.ParseIdentities(bytes.NewReader([]byte(text)))
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	if len(ids) != 1 {
		return nil, fmt.Errorf("%w: found %d", ErrMalformedKeyfile, len(ids))
	}

	id, ok := ids[0].(*age.X25519Identity)
	if !ok {
		return nil, fmt.Errorf("%w: not an X25519 identity", ErrMalformedKeyfile)
	}

	return id, nil
}
