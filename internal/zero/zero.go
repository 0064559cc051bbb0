// Package zero provides a small wipeable container for secret material.
//
// Passphrases, unwrapped identities, and record bodies all flow through
// Bytes so a single Wipe call overwrites the backing array instead of
// waiting on the garbage collector.
package zero

// Bytes is a byte slice that can be explicitly overwritten in place.
type Bytes []byte

// New copies s into a fresh Bytes.
func New(s string) Bytes {
	b := make(Bytes, len(s))
	copy(b, s)
	return b
}

// String returns the contents as a string. The caller must not retain
// the string past the next Wipe.
func (b Bytes) String() string {
	return string(b)
}

// Wipe overwrites every byte with zero. Safe to call more than once and
// on a nil or already-wiped Bytes.
func (b Bytes) Wipe() {
	clear(b)
}

// String is a wipeable string-backed secret. Go strings are immutable,
// so String stores its contents as Bytes internally and exposes them
// as a string only on demand.
type String struct {
	b Bytes
}

// NewString wraps s in a String.
func NewString(s string) *String {
	return &String{b: New(s)}
}

// Expose returns the secret's plaintext contents.
func (s *String) Expose() string {
	if s == nil {
		return ""
	}
	return s.b.String()
}

// Wipe destroys the secret's backing storage.
func (s *String) Wipe() {
	if s == nil {
		return
	}
	s.b.Wipe()
	s.b = nil
}
