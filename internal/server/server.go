// Package server implements the rimecmd server: a Unix socket listener, one
// goroutine per connection each holding its own engine session, and the
// stop_client/stop_server arbitration that keeps a lone stray stop_server
// call from taking down a server other clients are still using.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"rimecmd/internal/engine"
	"rimecmd/internal/wire"
)

// UnixSocketAlreadyExistsError reports a regular file or live socket
// already occupying the bind path.
type UnixSocketAlreadyExistsError struct {
	Path string
}

func (e *UnixSocketAlreadyExistsError) Error() string {
	return fmt.Sprintf("server: unix socket already exists: %s", e.Path)
}

// Server owns the listener, the shared engine singleton, and the client
// count used for stop_server arbitration.
type Server struct {
	eng      *engine.Engine
	listener *net.UnixListener
	path     string

	mu          sync.Mutex
	clientCount int

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Listen binds socketPath. If a file already occupies the path, Listen
// fails with UnixSocketAlreadyExistsError unless force is set, in which
// case the stale file is removed and the bind is retried once.
func Listen(socketPath string, eng *engine.Engine, force bool) (*Server, error) {
	l, err := bind(socketPath)
	if err != nil {
		if !force {
			return nil, err
		}
		var exists *UnixSocketAlreadyExistsError
		if !errors.As(err, &exists) {
			return nil, err
		}
		if rmErr := os.Remove(socketPath); rmErr != nil {
			return nil, fmt.Errorf("server: force-start-server: remove %s: %w", socketPath, rmErr)
		}
		l, err = bind(socketPath)
		if err != nil {
			return nil, err
		}
	}

	return &Server{
		eng:      eng,
		listener: l,
		path:     socketPath,
		stopCh:   make(chan struct{}),
	}, nil
}

func bind(socketPath string) (*net.UnixListener, error) {
	if info, err := os.Stat(socketPath); err == nil && !isSocket(info) {
		return nil, &UnixSocketAlreadyExistsError{Path: socketPath}
	}
	if dir := filepath.Dir(socketPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("server: create %s: %w", dir, err)
		}
	}
	addr, err := net.ResolveUnixAddr("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("server: resolve %s: %w", socketPath, err)
	}
	l, err := net.ListenUnix("unix", addr)
	if err != nil {
		if errors.Is(err, os.ErrExist) || errors.Is(err, syscall.EADDRINUSE) {
			return nil, &UnixSocketAlreadyExistsError{Path: socketPath}
		}
		return nil, fmt.Errorf("server: listen on %s: %w", socketPath, err)
	}
	return l, nil
}

func isSocket(info os.FileInfo) bool {
	return info.Mode()&os.ModeSocket != 0
}

// Stopped reports a channel that is closed when a successful stop_server
// request, or an out-of-band Stop call, has torn the server down.
func (s *Server) Stopped() <-chan struct{} { return s.stopCh }

// Stop unlinks the socket and signals Stopped. It is idempotent and safe
// to call from a signal handler concurrently with Run's accept loop,
// matching groved/main.go's SIGINT/SIGTERM goroutine racing the daemon's
// accept loop.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.listener.Close()
		os.Remove(s.path)
		close(s.stopCh)
	})
}

// Run accepts connections until the listener is closed (by Stop).
func (s *Server) Run() error {
	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			select {
			case <-s.stopCh:
				return nil
			default:
				return fmt.Errorf("server: accept: %w", err)
			}
		}
		s.mu.Lock()
		s.clientCount++
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn *net.UnixConn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		s.clientCount--
		s.mu.Unlock()
	}()

	sess := engine.NewSession(s.eng)
	defer sess.Close()

	w := &connWorker{server: s, session: sess, conn: conn}
	if err := w.loop(); err != nil {
		log.Printf("rimecmd: connection closed: %v", err)
	}
}

// connWorker runs the per-connection protocol loop: read Request, dispatch
// through the engine session, write Reply, repeat, until a terminal effect
// is produced. A request that fails to parse is answered with a json_error
// reply carrying a null id, and the loop keeps serving the connection.
type connWorker struct {
	server  *Server
	session *engine.Session
	conn    *net.UnixConn
	framer  wire.Framer
}

func (w *connWorker) loop() error {
	for {
		req, err := w.readRequest()
		if err != nil {
			var protoErr *wire.ProtocolError
			if !errors.As(err, &protoErr) {
				return err
			}
			oe := protoErr.AsOutcomeError()
			if err := w.writeReply(wire.Reply{Outcome: wire.Outcome{Error: &oe}}); err != nil {
				return err
			}
			continue
		}

		reply, terminal := w.dispatch(req)
		if err := w.writeReply(reply); err != nil {
			return err
		}
		if terminal {
			return w.expectCleanEOF()
		}
	}
}

func (w *connWorker) readRequest() (wire.Request, error) {
	buf := make([]byte, 4096)
	for {
		var req wire.Request
		complete, err := wire.TryParse(&w.framer, &req)
		if err != nil {
			return wire.Request{}, err
		}
		if complete {
			return req, nil
		}
		n, err := w.conn.Read(buf)
		if err != nil {
			return wire.Request{}, err
		}
		w.framer.Feed(buf[:n])
	}
}

func (w *connWorker) writeReply(reply wire.Reply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("server: marshal reply: %w", err)
	}
	if _, err := w.conn.Write(data); err != nil {
		return fmt.Errorf("server: write reply: %w", err)
	}
	return nil
}

// expectCleanEOF performs one additional read after a terminal reply: a
// clean EOF is success, anything else is a protocol violation the caller
// logs and discards.
func (w *connWorker) expectCleanEOF() error {
	buf := make([]byte, 1)
	n, err := w.conn.Read(buf)
	if n == 0 && errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("server: client should have closed connection")
}

// dispatch turns one Request into a Reply, reporting whether the produced
// effect is terminal for this connection (stop_client, or a successful
// stop_server).
func (w *connWorker) dispatch(req wire.Request) (wire.Reply, bool) {
	id := req.ID
	outcome, terminal := w.dispatchCall(req.Call)
	return wire.Reply{ID: &id, Outcome: outcome}, terminal
}

func (w *connWorker) dispatchCall(call wire.Call) (wire.Outcome, bool) {
	switch call.Method {
	case wire.CallProcessKey:
		w.session.ProcessKey(call.ProcessKey.Keycode, call.ProcessKey.Mask)
		return w.effectAfterProcessing(), false

	case wire.CallSchemaName:
		name := w.session.CurrentSchema()
		return wire.Outcome{SchemaName: &name}, false

	case wire.CallConfigValueInteger:
		val, err := w.session.GetConfigValueInteger(call.ConfigValueInteger.ConfigID, call.ConfigValueInteger.OptionKey)
		if err != nil {
			if oe, ok := wire.ToOutcomeError(err); ok {
				return wire.Outcome{Error: &oe}, false
			}
			oe := wire.OutcomeError{ID: wire.ErrIO, Message: err.Error()}
			return wire.Outcome{Error: &oe}, false
		}
		return wire.Outcome{ConfigValueInteger: &val}, false

	case wire.CallClearComposition:
		w.session.ClearComposition()
		return w.effectAfterProcessing(), false

	case wire.CallStopClient:
		return wire.Outcome{Effect: &wire.Effect{StopClient: true}}, true

	case wire.CallStopServer:
		return w.handleStopServer()

	default:
		oe := wire.OutcomeError{ID: wire.ErrJSON, Message: fmt.Sprintf("unknown call method %q", call.Method)}
		return wire.Outcome{Error: &oe}, false
	}
}

// effectAfterProcessing: a pending commit always wins over a bare UI
// refresh.
func (w *connWorker) effectAfterProcessing() wire.Outcome {
	if commit := w.session.GetCommit(); commit.Has {
		text := commit.Text
		return wire.Outcome{Effect: &wire.Effect{CommitString: &text}}
	}
	comp, menu := w.session.GetContext()
	return wire.Outcome{Effect: &wire.Effect{UpdateUI: &wire.UpdateUI{Composition: comp, Menu: menu}}}
}

// handleStopServer: stop_server succeeds only when this connection is the
// server's sole client at the moment the reply is assembled.
func (w *connWorker) handleStopServer() (wire.Outcome, bool) {
	w.server.mu.Lock()
	count := w.server.clientCount
	w.server.mu.Unlock()

	if count > 1 {
		err := &wire.MoreThanOneClientError{ClientCount: count}
		oe, _ := wire.ToOutcomeError(err)
		return wire.Outcome{Error: &oe}, false
	}

	go w.server.Stop()
	return wire.Outcome{Effect: &wire.Effect{StopServer: true}}, true
}
