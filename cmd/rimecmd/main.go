// rimecmd is a client/server front end to a shared CJK input-method
// engine: run with --server to host the engine behind a Unix socket, or
// as a client in --json, --tty, or --json --tty mode to drive it.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"rimecmd/internal/config"
	"rimecmd/internal/engine"
	"rimecmd/internal/modes"
	"rimecmd/internal/poller"
	"rimecmd/internal/server"
	"rimecmd/internal/terminal"
	"rimecmd/internal/transport"
	"rimecmd/internal/wire"
)

// Process exit codes, one per distinct fatal-error class a client or
// server run can end in.
const (
	exitFailure                  = 1
	exitOneOfMultipleInputClosed = 2
	exitUnsupportedInput         = 3
	exitUnixSocketAlreadyExists  = 4
	exitMoreThanOneClient        = 5
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags, err := config.ParseFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rimecmd: %v\n", err)
		return exitFailure
	}

	cfg, err := config.Resolve(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rimecmd: %v\n", err)
		return exitFailure
	}

	switch {
	case flags.PrintConfig:
		fmt.Print(cfg.Print())
		return 0

	case flags.JSONSchema != "":
		return printSchema(flags.JSONSchema)

	case flags.Server:
		return runServer(cfg, flags)

	default:
		return runClient(cfg, flags)
	}
}

func printSchema(which string) int {
	var schema *wire.JSONSchema
	switch which {
	case "request":
		schema = wire.RequestSchema()
	case "reply":
		schema = wire.ReplySchema()
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "rimecmd: %v\n", err)
		return exitFailure
	}
	fmt.Println(string(data))
	return 0
}

func runServer(cfg *config.Config, flags *config.Flags) int {
	eng := engine.Get(cfg.UserDataDirectory, "/usr/share/rime-data", engineLogLevel(cfg.LogLevel))

	srv, err := server.Listen(cfg.UnixSocketPath, eng, flags.ForceStartServer)
	if err != nil {
		var exists *server.UnixSocketAlreadyExistsError
		if errors.As(err, &exists) {
			fmt.Fprintf(os.Stderr, "rimecmd: %v\nhint: retry with --force-start-server to replace the stale socket file\n", err)
			return exitUnixSocketAlreadyExists
		}
		fmt.Fprintf(os.Stderr, "rimecmd: %v\n", err)
		return exitFailure
	}

	installSignalHandler(srv)

	if err := srv.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "rimecmd: %v\n", err)
		return exitFailure
	}
	return 0
}

// installSignalHandler mirrors groved/main.go's SIGINT/SIGTERM goroutine:
// a graceful stop unlinks the socket and exits even with clients still
// connected.
func installSignalHandler(srv *server.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		srv.Stop()
	}()
}

func engineLogLevel(l config.LogLevel) engine.LogLevel {
	switch l {
	case config.LogLevelInfo:
		return engine.LogLevelInfo
	case config.LogLevelWarning:
		return engine.LogLevelWarning
	case config.LogLevelFatal:
		return engine.LogLevelFatal
	case config.LogLevelNone:
		return engine.LogLevelNone
	default:
		return engine.LogLevelError
	}
}

func runClient(cfg *config.Config, flags *config.Flags) int {
	// --unix-socket is a client-only override and cannot be forwarded to a
	// spawned server (it requires --json, which --server does not carry),
	// so auto-spawn is only attempted against the default socket path.
	if flags.UnixSocket == "" {
		ensureServerRunning(cfg.UnixSocketPath)
	}

	client, err := dialWithRetry(cfg.UnixSocketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rimecmd: %v\n", err)
		return exitFailure
	}
	defer client.Shutdown()

	switch {
	case flags.TTY && flags.JSON:
		driver, err := terminal.Open()
		if err != nil {
			fmt.Fprintf(os.Stderr, "rimecmd: %v\n", err)
			return exitFailure
		}
		defer driver.Close()
		if err := modes.RunTerminalJSON(client, driver, flags.Continue); err != nil {
			return exitCodeForError(err)
		}
		return 0

	case flags.TTY:
		driver, err := terminal.Open()
		if err != nil {
			fmt.Fprintf(os.Stderr, "rimecmd: %v\n", err)
			return exitFailure
		}
		defer driver.Close()
		if err := modes.RunTerminal(client, driver, flags.Continue); err != nil {
			return exitCodeForError(err)
		}
		return 0

	default:
		if err := modes.RunJSON(client, flags.Continue); err != nil {
			return exitCodeForError(err)
		}
		return 0
	}
}

// exitCodeForError maps a mode orchestrator's fatal error to the matching
// process exit code.
func exitCodeForError(err error) int {
	var unsupported *wire.UnsupportedInputError
	if errors.As(err, &unsupported) {
		fmt.Fprintf(os.Stderr, "rimecmd: %v\n", err)
		return exitUnsupportedInput
	}
	var moreThanOne *wire.MoreThanOneClientError
	if errors.As(err, &moreThanOne) {
		fmt.Fprintf(os.Stderr, "rimecmd: %v\n", err)
		return exitMoreThanOneClient
	}
	var closed *poller.ClosedError
	if errors.As(err, &closed) {
		fmt.Fprintf(os.Stderr, "rimecmd: %v\n", err)
		return exitOneOfMultipleInputClosed
	}
	fmt.Fprintf(os.Stderr, "rimecmd: %v\n", err)
	return exitFailure
}

// ensureServerRunning makes a best-effort attempt to have a server running:
// if nothing answers on socketPath, start this same binary with --server as
// a detached child and let dialWithRetry wait for it to come up.
func ensureServerRunning(socketPath string) {
	if pingServer(socketPath) {
		return
	}

	exe, err := os.Executable()
	if err != nil {
		return
	}

	// No --unix-socket is passed: the spawned server resolves the same
	// default path this client just computed, and --unix-socket is a
	// client-only flag (it requires --json).
	cmd := exec.Command(exe, "--server")
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Start()
}

func pingServer(socketPath string) bool {
	c, err := transport.Dial(socketPath)
	if err != nil {
		return false
	}
	c.Shutdown()
	return true
}

func dialWithRetry(socketPath string) (*transport.Client, error) {
	var lastErr error
	for i := 0; i < 50; i++ {
		c, err := transport.Dial(socketPath)
		if err == nil {
			return c, nil
		}
		lastErr = err
		time.Sleep(100 * time.Millisecond)
	}
	return nil, fmt.Errorf("rimecmd: could not connect to server at %s: %w", socketPath, lastErr)
}
