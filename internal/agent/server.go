package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/user"
	"path/filepath"

	"github.com/woodruffw/kbs2/internal/backend"
	"github.com/woodruffw/kbs2/internal/zero"
)

// maxLineSize bounds a single request/response line, guarding against
// a peer that never sends '\n'.
const maxLineSize = 1 << 20

type cacheEntry struct {
	keyfile  string
	identity zero.Bytes
}

// Server is the single-threaded key-holding agent. It processes one
// connection at a time to completion: the cache it protects needs no
// locking, and Quit is then trivially race-free, since there is never
// a second goroutine that could be mid-handshake when the accept loop
// exits.
type Server struct {
	socketPath string
	listener   net.Listener
	cache      map[string]cacheEntry
	quitting   bool
}

// NewServer returns a Server bound to socketPath. The socket is not
// created until Serve is called.
func NewServer(socketPath string) *Server {
	return &Server{socketPath: socketPath, cache: make(map[string]cacheEntry)}
}

// SocketPath returns the per-user deterministic socket path for the
// calling user: a fixed directory combined with a username suffix.
// Presence of this file is the sole liveness proof for an agent — no
// PID file is kept. KBS2_AGENT_SOCKET overrides the computed path,
// for tests and for running multiple isolated agents side by side.
func SocketPath() (string, error) {
	if override := os.Getenv("KBS2_AGENT_SOCKET"); override != "" {
		return override, nil
	}

	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("looking up current user: %w", err)
	}
	return filepath.Join(os.TempDir(), "kbs2-agent-"+u.Username), nil
}

// Listen binds the Unix socket. It fails if the socket path already
// exists, since presence of the file is treated as proof that an agent
// is or was running; callers that need to recover from a stale socket
// must remove it themselves before calling Listen.
func (s *Server) Listen() error {
	if _, err := os.Stat(s.socketPath); err == nil {
		return fmt.Errorf("socket %s already exists; is an agent already running?", s.socketPath)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	s.listener = ln
	return nil
}

// Serve runs the accept loop until Quit is requested or the listener
// is closed. It removes the socket file on return.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	defer os.Remove(s.socketPath)
	defer s.flush()

	for !s.quitting {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.quitting {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.handleConn(conn)
	}
	return nil
}

// Close stops the accept loop without waiting for Quit, for use by
// signal handlers and tests.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) flush() {
	for k, e := range s.cache {
		e.identity.Wipe()
		delete(s.cache, k)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	if err := verifyPeer(conn); err != nil {
		slog.Warn("rejecting connection: peer credential check failed", "error", err)
		writeResponse(conn, failureResponse(Failure{Kind: FailureAuth}))
		return
	}

	for {
		line, err := readLine(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("reading request", "error", err)
				writeResponse(conn, failureResponse(Failure{Kind: FailureIo, Message: err.Error()}))
			}
			return
		}
		if len(line) == 0 {
			continue
		}

		var envelope struct {
			Protocol int `json:"protocol"`
		}
		if err := json.Unmarshal(line, &envelope); err == nil && envelope.Protocol != ProtocolVersion {
			writeResponse(conn, failureResponse(Failure{Kind: FailureVersionMismatch, ServerProtocol: ProtocolVersion}))
			return
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			writeResponse(conn, failureResponse(Failure{Kind: FailureMalformed, Message: err.Error()}))
			return
		}

		if req.Protocol != ProtocolVersion {
			writeResponse(conn, failureResponse(Failure{Kind: FailureVersionMismatch, ServerProtocol: ProtocolVersion}))
			return
		}

		resp := s.handleRequest(req.Body)
		writeResponse(conn, resp)

		if _, ok := req.Body.(QuitBody); ok {
			return
		}
	}
}

func (s *Server) handleRequest(body RequestBody) Response {
	switch b := body.(type) {
	case UnwrapKeyBody:
		return s.handleUnwrapKey(b)
	case QueryUnwrappedKeyBody:
		if _, ok := s.cache[b.PublicKey]; ok {
			return successResponse("OK")
		}
		return failureResponse(Failure{Kind: FailureQuery})
	case GetUnwrappedKeyBody:
		entry, ok := s.cache[b.PublicKey]
		if !ok {
			return failureResponse(Failure{Kind: FailureQuery})
		}
		return successResponse(entry.identity.String())
	case FlushKeysBody:
		s.flush()
		return successResponse("OK")
	case QuitBody:
		s.quitting = true
		return successResponse("OK")
	default:
		return failureResponse(Failure{Kind: FailureMalformed, Message: "unrecognized request body"})
	}
}

func (s *Server) handleUnwrapKey(b UnwrapKeyBody) Response {
	if _, ok := s.cache[b.PublicKey]; ok {
		return successResponse("OK; agent already has unwrapped key")
	}

	passphrase := zero.New(b.Passphrase)
	defer passphrase.Wipe()

	identity, err := backend.UnwrapKeyfile(b.Path, passphrase)
	if err != nil {
		return failureResponse(Failure{Kind: FailureUnwrap, Message: err.Error()})
	}

	s.cache[b.PublicKey] = cacheEntry{keyfile: b.Path, identity: zero.New(identity)}
	return successResponse("OK; unwrapped key ready")
}

// readLine reads bytes one at a time up to and including the next
// '\n', returning the line without its terminator. It deliberately
// avoids bufio.Scanner/Reader: a client may issue several requests
// over one connection, and a buffered reader would pull bytes of
// request 2 into its buffer while this call is still parsing request
// 1, leaving nothing for the next read to see.
func readLine(r io.Reader) ([]byte, error) {
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return line, nil
			}
			line = append(line, buf[0])
			if len(line) > maxLineSize {
				return nil, fmt.Errorf("request line exceeds %d bytes", maxLineSize)
			}
		}
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return line, nil
			}
			return nil, err
		}
	}
}

func writeResponse(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("marshaling response", "error", err)
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		slog.Warn("writing response", "error", err)
	}
}
