package backend

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"

	"github.com/woodruffw/kbs2/internal/record"
	"github.com/woodruffw/kbs2/internal/zero"
)

func writeBareKeyfile(t *testing.T, dir string) (path, publicKey string) {
	t.Helper()
	path = filepath.Join(dir, "key")
	publicKey, err := CreateKeypair(path)
	if err != nil {
		t.Fatalf("CreateKeypair() error: %v", err)
	}
	return path, publicKey
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, publicKey := writeBareKeyfile(t, dir)

	b, err := NewAgeBackend(publicKey, path, false, nil, nil)
	if err != nil {
		t.Fatalf("NewAgeBackend() error: %v", err)
	}

	r := record.New("test", record.NewLoginBody("user", "hunter2"))
	armored, err := b.Encrypt(r)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if !strings.HasPrefix(armored, "-----BEGIN AGE ENCRYPTED FILE-----") {
		t.Errorf("Encrypt() output isn't armored: %q", armored[:40])
	}

	got, err := b.Decrypt(armored)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if !r.Equal(got) {
		t.Errorf("round trip changed record: got %+v, want %+v", got, r)
	}
}

func TestDecryptWrongKeyReturnsNoMatchingKeys(t *testing.T) {
	dir := t.TempDir()
	path1, publicKey1 := writeBareKeyfile(t, dir)
	_ = path1

	other := t.TempDir()
	path2, publicKey2 := writeBareKeyfile(t, other)
	_ = publicKey2

	b1, err := NewAgeBackend(publicKey1, path1, false, nil, nil)
	if err != nil {
		t.Fatalf("NewAgeBackend() error: %v", err)
	}
	b2, err := NewAgeBackend(publicKey2, path2, false, nil, nil)
	if err != nil {
		t.Fatalf("NewAgeBackend() error: %v", err)
	}

	r := record.New("test", record.NewUnstructuredBody("secret"))
	armored, err := b1.Encrypt(r)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	_, err = b2.Decrypt(armored)
	if err == nil {
		t.Fatal("Decrypt() with wrong identity succeeded")
	}
	if err.Error() != "unable to decrypt (backend reports: NoMatchingKeys)" {
		t.Errorf("Decrypt() error = %q, want exact NoMatchingKeys message", err.Error())
	}
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key")
	passphrase := zero.New("correct horse battery staple")

	publicKey, err := CreateWrappedKeypair(path, passphrase)
	if err != nil {
		t.Fatalf("CreateWrappedKeypair() error: %v", err)
	}

	text, err := UnwrapKeyfile(path, passphrase)
	if err != nil {
		t.Fatalf("UnwrapKeyfile() error: %v", err)
	}

	id, err := ParseSingleIdentity(text)
	if err != nil {
		t.Fatalf("ParseSingleIdentity() error: %v", err)
	}
	if id.Recipient().String() != publicKey {
		t.Errorf("unwrapped identity recipient = %s, want %s", id.Recipient().String(), publicKey)
	}
}

func TestUnwrapKeyfileWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key")
	if _, err := CreateWrappedKeypair(path, zero.New("right")); err != nil {
		t.Fatalf("CreateWrappedKeypair() error: %v", err)
	}

	_, err := UnwrapKeyfile(path, zero.New("wrong"))
	if err == nil {
		t.Fatal("UnwrapKeyfile() with wrong passphrase succeeded")
	}
	if errors.Is(err, ErrNotPassphraseWrapped) {
		t.Errorf("wrong passphrase misreported as not-wrapped: %v", err)
	}
	if !errors.Is(err, ErrDecrypt) {
		t.Errorf("UnwrapKeyfile() error = %v, want ErrDecrypt", err)
	}
}

func TestUnwrapKeyfileNotWrapped(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeBareKeyfile(t, dir)

	_, err := UnwrapKeyfile(path, zero.New("anything"))
	if !errors.Is(err, ErrNotPassphraseWrapped) {
		t.Errorf("UnwrapKeyfile() error = %v, want ErrNotPassphraseWrapped", err)
	}
}

func TestRewrapKeyfilePreservesIdentity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key")
	oldPass := zero.New("old-passphrase")
	newPass := zero.New("new-passphrase")

	publicKey, err := CreateWrappedKeypair(path, oldPass)
	if err != nil {
		t.Fatalf("CreateWrappedKeypair() error: %v", err)
	}

	if err := RewrapKeyfile(path, oldPass, newPass); err != nil {
		t.Fatalf("RewrapKeyfile() error: %v", err)
	}

	if _, err := UnwrapKeyfile(path, oldPass); err == nil {
		t.Error("UnwrapKeyfile() with old passphrase succeeded after rewrap")
	}

	text, err := UnwrapKeyfile(path, newPass)
	if err != nil {
		t.Fatalf("UnwrapKeyfile() with new passphrase error: %v", err)
	}
	id, err := ParseSingleIdentity(text)
	if err != nil {
		t.Fatalf("ParseSingleIdentity() error: %v", err)
	}
	if id.Recipient().String() != publicKey {
		t.Errorf("rewrapped identity recipient = %s, want %s", id.Recipient().String(), publicKey)
	}
}

func TestUnwrapKeyfileOversized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key")

	data := make([]byte, MaxWrappedKeyfileSize+1)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("os.WriteFile() error: %v", err)
	}

	_, err := UnwrapKeyfile(path, zero.New("x"))
	if !errors.Is(err, ErrKeyfileTooLarge) {
		t.Errorf("UnwrapKeyfile() error = %v, want ErrKeyfileTooLarge", err)
	}
}

func TestParseSingleIdentityRejectsMultiple(t *testing.T) {
	id1, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity() error: %v", err)
	}
	id2, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity() error: %v", err)
	}

	_, err = ParseSingleIdentity(id1.String() + "\n" + id2.String() + "\n")
	if !errors.Is(err, ErrMalformedKeyfile) {
		t.Errorf("ParseSingleIdentity() error = %v, want ErrMalformedKeyfile", err)
	}
}
