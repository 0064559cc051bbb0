// Package agent implements the background key-holding daemon: a
// Unix-socket server that caches unwrapped identities for the lifetime
// of its process, and the short-lived client used to talk to it.
package agent

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the fixed wire protocol version. A request
// carrying any other value is rejected with VersionMismatch before its
// body is processed.
const ProtocolVersion = 1

// RequestKind tags the variant of a Request's body.
type RequestKind string

const (
	KindUnwrapKey         RequestKind = "UnwrapKey"
	KindQueryUnwrappedKey RequestKind = "QueryUnwrappedKey"
	KindGetUnwrappedKey   RequestKind = "GetUnwrappedKey"
	KindFlushKeys         RequestKind = "FlushKeys"
	KindQuit              RequestKind = "Quit"
)

// Request is one line of the client-to-server wire protocol.
type Request struct {
	Protocol int
	Body     RequestBody
}

// RequestBody is implemented by each request variant.
type RequestBody interface {
	Kind() RequestKind
	payload() any
}

// UnwrapKeyBody asks the agent to unwrap keyfile at Path with
// Passphrase and cache it under PublicKey, unless already cached.
type UnwrapKeyBody struct {
	PublicKey  string
	Path       string
	Passphrase string
}

func (UnwrapKeyBody) Kind() RequestKind { return KindUnwrapKey }
func (b UnwrapKeyBody) payload() any    { return [3]string{b.PublicKey, b.Path, b.Passphrase} }

// QueryUnwrappedKeyBody asks whether PublicKey is cached.
type QueryUnwrappedKeyBody struct {
	PublicKey string
}

func (QueryUnwrappedKeyBody) Kind() RequestKind { return KindQueryUnwrappedKey }
func (b QueryUnwrappedKeyBody) payload() any    { return b.PublicKey }

// GetUnwrappedKeyBody asks for the cached unwrapped identity text for
// PublicKey.
type GetUnwrappedKeyBody struct {
	PublicKey string
}

func (GetUnwrappedKeyBody) Kind() RequestKind { return KindGetUnwrappedKey }
func (b GetUnwrappedKeyBody) payload() any    { return b.PublicKey }

// FlushKeysBody clears the agent's cache.
type FlushKeysBody struct{}

func (FlushKeysBody) Kind() RequestKind { return KindFlushKeys }
func (FlushKeysBody) payload() any      { return nil }

// QuitBody asks the agent to exit after the current connection closes.
type QuitBody struct{}

func (QuitBody) Kind() RequestKind { return KindQuit }
func (QuitBody) payload() any      { return nil }

type wireRequest struct {
	Protocol int `json:"protocol"`
	Body     struct {
		Type RequestKind     `json:"type"`
		Body json.RawMessage `json:"body"`
	} `json:"body"`
}

// MarshalJSON emits { "protocol": …, "body": { "type": …, "body": … } }.
func (r Request) MarshalJSON() ([]byte, error) {
	if r.Body == nil {
		return nil, fmt.Errorf("request has no body")
	}
	payload, err := json.Marshal(r.Body.payload())
	if err != nil {
		return nil, fmt.Errorf("marshaling request payload: %w", err)
	}
	return json.Marshal(struct {
		Protocol int `json:"protocol"`
		Body     struct {
			Type RequestKind     `json:"type"`
			Body json.RawMessage `json:"body"`
		} `json:"body"`
	}{
		Protocol: r.Protocol,
		Body: struct {
			Type RequestKind     `json:"type"`
			Body json.RawMessage `json:"body"`
		}{Type: r.Body.Kind(), Body: payload},
	})
}

// UnmarshalJSON parses the shape produced by MarshalJSON.
func (r *Request) UnmarshalJSON(data []byte) error {
	var wire wireRequest
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("parsing request: %w", err)
	}
	r.Protocol = wire.Protocol

	switch wire.Body.Type {
	case KindUnwrapKey:
		var payload [3]string
		if err := json.Unmarshal(wire.Body.Body, &payload); err != nil {
			return fmt.Errorf("parsing UnwrapKey payload: %w", err)
		}
		r.Body = UnwrapKeyBody{PublicKey: payload[0], Path: payload[1], Passphrase: payload[2]}
	case KindQueryUnwrappedKey:
		var pub string
		if err := json.Unmarshal(wire.Body.Body, &pub); err != nil {
			return fmt.Errorf("parsing QueryUnwrappedKey payload: %w", err)
		}
		r.Body = QueryUnwrappedKeyBody{PublicKey: pub}
	case KindGetUnwrappedKey:
		var pub string
		if err := json.Unmarshal(wire.Body.Body, &pub); err != nil {
			return fmt.Errorf("parsing GetUnwrappedKey payload: %w", err)
		}
		r.Body = GetUnwrappedKeyBody{PublicKey: pub}
	case KindFlushKeys:
		r.Body = FlushKeysBody{}
	case KindQuit:
		r.Body = QuitBody{}
	default:
		return fmt.Errorf("unknown request kind: %q", wire.Body.Type)
	}
	return nil
}

// FailureKind tags the variant of a Failure response.
type FailureKind string

const (
	FailureAuth            FailureKind = "Auth"
	FailureIo              FailureKind = "Io"
	FailureMalformed       FailureKind = "Malformed"
	FailureUnwrap          FailureKind = "Unwrap"
	FailureVersionMismatch FailureKind = "VersionMismatch"
	FailureQuery           FailureKind = "Query"
)

// Failure is the body of a Failure response.
type Failure struct {
	Kind FailureKind
	// Message carries the payload for Io, Malformed, and Unwrap.
	Message string
	// ServerProtocol carries the payload for VersionMismatch.
	ServerProtocol int
}

func (f Failure) Error() string {
	switch f.Kind {
	case FailureIo, FailureMalformed, FailureUnwrap:
		return fmt.Sprintf("%s: %s", f.Kind, f.Message)
	case FailureVersionMismatch:
		return fmt.Sprintf("protocol version mismatch: server speaks %d", f.ServerProtocol)
	default:
		return string(f.Kind)
	}
}

// Response is one line of the server-to-client wire protocol.
type Response struct {
	// Success, when non-nil, carries the success body string.
	Success *string
	// Failure, when non-nil, carries the failure.
	Failure *Failure
}

func successResponse(body string) Response { return Response{Success: &body} }

func failureResponse(f Failure) Response { return Response{Failure: &f} }

// MarshalJSON emits either {"type":"Success","body":…} or
// {"type":"Failure","body":{"type":…,"body":…}}.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Success != nil {
		return json.Marshal(struct {
			Type string `json:"type"`
			Body string `json:"body"`
		}{"Success", *r.Success})
	}
	if r.Failure == nil {
		return nil, fmt.Errorf("response has neither success nor failure body")
	}

	var payload any
	switch r.Failure.Kind {
	case FailureIo, FailureMalformed, FailureUnwrap:
		payload = r.Failure.Message
	case FailureVersionMismatch:
		payload = r.Failure.ServerProtocol
	default:
		payload = nil
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling failure payload: %w", err)
	}

	return json.Marshal(struct {
		Type string `json:"type"`
		Body struct {
			Type FailureKind     `json:"type"`
			Body json.RawMessage `json:"body"`
		} `json:"body"`
	}{
		Type: "Failure",
		Body: struct {
			Type FailureKind     `json:"type"`
			Body json.RawMessage `json:"body"`
		}{Type: r.Failure.Kind, Body: payloadJSON},
	})
}

// UnmarshalJSON parses the shape produced by MarshalJSON.
func (r *Response) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type string          `json:"type"`
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	switch wire.Type {
	case "Success":
		var body string
		if err := json.Unmarshal(wire.Body, &body); err != nil {
			return fmt.Errorf("parsing success body: %w", err)
		}
		r.Success = &body
		r.Failure = nil
	case "Failure":
		var inner struct {
			Type FailureKind     `json:"type"`
			Body json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(wire.Body, &inner); err != nil {
			return fmt.Errorf("parsing failure body: %w", err)
		}

		f := Failure{Kind: inner.Kind}
		switch inner.Kind {
		case FailureIo, FailureMalformed, FailureUnwrap:
			if err := json.Unmarshal(inner.Body, &f.Message); err != nil {
				return fmt.Errorf("parsing failure message: %w", err)
			}
		case FailureVersionMismatch:
			if err := json.Unmarshal(inner.Body, &f.ServerProtocol); err != nil {
				return fmt.Errorf("parsing failure server protocol: %w", err)
			}
		}
		r.Failure = &f
		r.Success = nil
	default:
		return fmt.Errorf("unknown response type: %q", wire.Type)
	}
	return nil
}
