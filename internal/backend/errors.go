package backend

import "errors"

// ErrNotPassphraseWrapped is returned by UnwrapKeyfile when the file at
// the given path is not an scrypt (passphrase) envelope — for example,
// a bare identity file or one wrapped to a different recipient kind.
var ErrNotPassphraseWrapped = errors.New("keyfile is not passphrase-wrapped")

// ErrDecrypt is returned (wrapped with additional context) when a
// passphrase or record decryption fails for any reason other than a
// missing match — wrong passphrase, corrupt ciphertext, truncated
// armor, and so on.
var ErrDecrypt = errors.New("decryption failed")

// errNoMatchingKeys is the exact message spec.md requires for the case
// where a configured identity cannot decrypt a given record. It is
// returned unwrapped so callers see this literal string.
const errNoMatchingKeys = "unable to decrypt (backend reports: NoMatchingKeys)"

// ErrKeyfileTooLarge is returned by UnwrapKeyfile when the on-disk file
// exceeds the hard size ceiling (spec.md §4.2/§6): a denial-of-service
// guard against crafted oversized wrapped keyfiles.
var ErrKeyfileTooLarge = errors.New("keyfile exceeds maximum size")

// ErrMalformedKeyfile is returned when a bare keyfile does not contain
// exactly one age identity.
var ErrMalformedKeyfile = errors.New("keyfile does not contain exactly one identity")
