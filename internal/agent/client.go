package agent

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/woodruffw/kbs2/internal/zero"
)

// ErrNotCached is returned by GetKey when the agent reports a Query
// failure — unlike QueryKey, which reports a miss as (false, nil),
// GetKey has no usable zero value to return instead.
var ErrNotCached = errors.New("agent: key not cached")

// Client is a short-lived connector: each operation dials, issues one
// request, reads one response, and closes, matching the agent's
// single-client-at-a-time design.
type Client struct {
	socketPath string
}

// NewClient returns a Client bound to socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

func (c *Client) roundTrip(body RequestBody) (Response, error) {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return Response{}, fmt.Errorf("connecting to agent: %w", err)
	}
	defer conn.Close()

	req := Request{Protocol: ProtocolVersion, Body: body}
	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("writing request: %w", err)
	}

	reader := bufio.NewReaderSize(conn, 4096)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return Response{}, fmt.Errorf("reading response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("parsing response: %w", err)
	}
	return resp, nil
}

// AddKey asks the agent to unwrap keyfile at path with passphrase and
// cache it under publicKey.
func (c *Client) AddKey(publicKey, keyfile string, passphrase zero.Bytes) error {
	resp, err := c.roundTrip(UnwrapKeyBody{PublicKey: publicKey, Path: keyfile, Passphrase: passphrase.String()})
	if err != nil {
		return err
	}
	if resp.Failure != nil {
		return fmt.Errorf("agent: %w", resp.Failure)
	}
	return nil
}

// QueryKey reports whether publicKey is cached by the agent.
func (c *Client) QueryKey(publicKey string) (bool, error) {
	resp, err := c.roundTrip(QueryUnwrappedKeyBody{PublicKey: publicKey})
	if err != nil {
		return false, err
	}
	if resp.Failure != nil {
		if resp.Failure.Kind == FailureQuery {
			return false, nil
		}
		return false, fmt.Errorf("agent: %w", resp.Failure)
	}
	return true, nil
}

// GetKey fetches the cached unwrapped identity text for publicKey.
func (c *Client) GetKey(publicKey string) (string, error) {
	resp, err := c.roundTrip(GetUnwrappedKeyBody{PublicKey: publicKey})
	if err != nil {
		return "", err
	}
	if resp.Failure != nil {
		if resp.Failure.Kind == FailureQuery {
			return "", ErrNotCached
		}
		return "", fmt.Errorf("agent: %w", resp.Failure)
	}
	return *resp.Success, nil
}

// FlushKeys clears the agent's cache.
func (c *Client) FlushKeys() error {
	resp, err := c.roundTrip(FlushKeysBody{})
	if err != nil {
		return err
	}
	if resp.Failure != nil {
		return fmt.Errorf("agent: %w", resp.Failure)
	}
	return nil
}

// Quit asks the agent to exit after this connection closes. Quit
// consumes the client: callers must not reuse it afterward, since the
// agent's accept loop (and thus its socket) is going away.
func (c *Client) Quit() error {
	resp, err := c.roundTrip(QuitBody{})
	if err != nil {
		return err
	}
	if resp.Failure != nil {
		return fmt.Errorf("agent: %w", resp.Failure)
	}
	return nil
}
