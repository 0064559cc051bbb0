// Package record defines the typed secret envelope persisted by the
// store: a label, a creation timestamp, and one of three body kinds.
package record

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/woodruffw/kbs2/internal/zero"
)

// Kind identifies which body variant a Record carries.
type Kind string

const (
	KindLogin        Kind = "login"
	KindEnvironment  Kind = "environment"
	KindUnstructured Kind = "unstructured"
)

func (k Kind) String() string { return string(k) }

// Body is implemented by each record body variant.
type Body interface {
	Kind() Kind
	// Clear overwrites the body's sensitive fields in place.
	Clear()
	// Equal reports whether other carries the same fields.
	Equal(other Body) bool

	fields() any
}

// LoginBody holds a username/password pair.
type LoginBody struct {
	Username string
	Password *zero.String
}

func NewLoginBody(username, password string) *LoginBody {
	return &LoginBody{Username: username, Password: zero.NewString(password)}
}

func (b *LoginBody) Kind() Kind { return KindLogin }

func (b *LoginBody) Clear() {
	b.Username = ""
	b.Password.Wipe()
}

func (b *LoginBody) Equal(other Body) bool {
	o, ok := other.(*LoginBody)
	return ok && b.Username == o.Username && b.Password.Expose() == o.Password.Expose()
}

func (b *LoginBody) fields() any {
	return struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{b.Username, b.Password.Expose()}
}

// EnvironmentBody holds an environment variable name/value pair.
type EnvironmentBody struct {
	Variable string
	Value    *zero.String
}

func NewEnvironmentBody(variable, value string) *EnvironmentBody {
	return &EnvironmentBody{Variable: variable, Value: zero.NewString(value)}
}

func (b *EnvironmentBody) Kind() Kind { return KindEnvironment }

func (b *EnvironmentBody) Clear() {
	b.Variable = ""
	b.Value.Wipe()
}

func (b *EnvironmentBody) Equal(other Body) bool {
	o, ok := other.(*EnvironmentBody)
	return ok && b.Variable == o.Variable && b.Value.Expose() == o.Value.Expose()
}

func (b *EnvironmentBody) fields() any {
	return struct {
		Variable string `json:"variable"`
		Value    string `json:"value"`
	}{b.Variable, b.Value.Expose()}
}

// UnstructuredBody holds an opaque secret blob.
type UnstructuredBody struct {
	Contents *zero.String
}

func NewUnstructuredBody(contents string) *UnstructuredBody {
	return &UnstructuredBody{Contents: zero.NewString(contents)}
}

func (b *UnstructuredBody) Kind() Kind { return KindUnstructured }

func (b *UnstructuredBody) Clear() {
	b.Contents.Wipe()
}

func (b *UnstructuredBody) Equal(other Body) bool {
	o, ok := other.(*UnstructuredBody)
	return ok && b.Contents.Expose() == o.Contents.Expose()
}

func (b *UnstructuredBody) fields() any {
	return struct {
		Contents string `json:"contents"`
	}{b.Contents.Expose()}
}

// Record is the on-disk secret envelope: a label, a creation time, and
// a typed body. Record is the unit of encryption — Store encrypts and
// decrypts whole Records, never individual fields.
type Record struct {
	Timestamp int64
	Label     string
	Body      Body
}

// New constructs a Record with the current time as its timestamp.
func New(label string, body Body) *Record {
	return &Record{Timestamp: time.Now().Unix(), Label: label, Body: body}
}

// Clear wipes the record's sensitive fields in place. Call this when a
// decrypted Record leaves scope.
func (r *Record) Clear() {
	if r.Body != nil {
		r.Body.Clear()
	}
}

// Equal reports whether two records carry the same label, timestamp,
// and body contents.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Timestamp != other.Timestamp || r.Label != other.Label {
		return false
	}
	if r.Body == nil || other.Body == nil {
		return r.Body == other.Body
	}
	return r.Body.Kind() == other.Body.Kind() && r.Body.Equal(other.Body)
}

type wireBody struct {
	Kind   Kind            `json:"kind"`
	Fields json.RawMessage `json:"fields"`
}

type wireRecord struct {
	Timestamp int64    `json:"timestamp"`
	Label     string   `json:"label"`
	Body      wireBody `json:"body"`
}

// MarshalJSON emits the externally-tagged envelope shape:
// {"timestamp":…, "label":…, "body":{"kind":…, "fields":{…}}}.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r.Body == nil {
		return nil, fmt.Errorf("record %q has no body", r.Label)
	}
	fieldsJSON, err := json.Marshal(r.Body.fields())
	if err != nil {
		return nil, fmt.Errorf("marshaling record body: %w", err)
	}
	return json.Marshal(wireRecord{
		Timestamp: r.Timestamp,
		Label:     r.Label,
		Body:      wireBody{Kind: r.Body.Kind(), Fields: fieldsJSON},
	})
}

// UnmarshalJSON parses the externally-tagged envelope shape produced by
// MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var wire wireRecord
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("parsing record: %w", err)
	}

	var body Body
	switch wire.Body.Kind {
	case KindLogin:
		var f struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal(wire.Body.Fields, &f); err != nil {
			return fmt.Errorf("parsing login fields: %w", err)
		}
		body = NewLoginBody(f.Username, f.Password)
	case KindEnvironment:
		var f struct {
			Variable string `json:"variable"`
			Value    string `json:"value"`
		}
		if err := json.Unmarshal(wire.Body.Fields, &f); err != nil {
			return fmt.Errorf("parsing environment fields: %w", err)
		}
		body = NewEnvironmentBody(f.Variable, f.Value)
	case KindUnstructured:
		var f struct {
			Contents string `json:"contents"`
		}
		if err := json.Unmarshal(wire.Body.Fields, &f); err != nil {
			return fmt.Errorf("parsing unstructured fields: %w", err)
		}
		body = NewUnstructuredBody(f.Contents)
	default:
		return fmt.Errorf("unknown record body kind: %q", wire.Body.Kind)
	}

	r.Timestamp = wire.Timestamp
	r.Label = wire.Label
	r.Body = body
	return nil
}
