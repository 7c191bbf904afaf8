// Package config resolves the process-wide, read-once-at-startup
// configuration described in spec.md §3/§6: CLI flags parsed with pflag,
// an optional YAML overlay, and XDG-based defaults for the Unix socket
// path.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// LogLevel mirrors the engine's own log-level vocabulary.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
	LogLevelFatal   LogLevel = "fatal"
	LogLevelNone    LogLevel = "none"
)

func (l LogLevel) valid() bool {
	switch l {
	case LogLevelInfo, LogLevelWarning, LogLevelError, LogLevelFatal, LogLevelNone:
		return true
	}
	return false
}

// Config is the immutable, process-wide configuration named in spec.md §3.
type Config struct {
	UnixSocketPath    string   `yaml:"unix_socket_path"`
	UserDataDirectory string   `yaml:"user_data_directory"`
	LogLevel          LogLevel `yaml:"log_level"`
}

// Flags is the parsed command line, grounded on cmd/groved/main.go's use of
// a single flag.FlagSet populated up front and read back via pointers —
// generalized here to pflag for the clap-style long/short options spec.md
// §1 names as an external collaborator (github.com/spf13/pflag, the
// dependency dm-vev-OpenClaude's go.mod requires directly).
type Flags struct {
	JSON             bool
	TTY              bool
	Continue         bool
	Server           bool
	ForceStartServer bool
	PrintConfig      bool
	JSONSchema       string // "", "request" or "reply"
	UnixSocket       string // overrides Config.UnixSocketPath; requires JSON
	RimeLogLevel     string
}

// ParseFlags parses args (typically os.Args[1:]) into a Flags value.
func ParseFlags(args []string) (*Flags, error) {
	fs := pflag.NewFlagSet("rimecmd", pflag.ContinueOnError)

	f := &Flags{}
	fs.BoolVar(&f.JSON, "json", false, "speak the JSON request/reply protocol on stdin/stdout")
	fs.BoolVar(&f.TTY, "tty", false, "drive the terminal UI against /dev/tty")
	fs.BoolVarP(&f.Continue, "continue", "c", false, "keep running after a commit instead of exiting")
	fs.BoolVar(&f.Server, "server", false, "run as the server instead of a client")
	fs.BoolVarP(&f.ForceStartServer, "force-start-server", "f", false, "delete a stale socket file and retry binding once")
	fs.BoolVar(&f.PrintConfig, "print-config", false, "print the resolved configuration and exit")
	fs.StringVar(&f.JSONSchema, "json-schema", "", "print the JSON schema for \"request\" or \"reply\" and exit")
	fs.StringVar(&f.UnixSocket, "unix-socket", "", "path to the server's Unix socket (requires --json)")
	fs.StringVar(&f.RimeLogLevel, "rime-log-level", "", "engine log level: info, warning, error, fatal, none")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if f.JSONSchema != "" && f.JSONSchema != "request" && f.JSONSchema != "reply" {
		return nil, fmt.Errorf("config: --json-schema must be \"request\" or \"reply\", got %q", f.JSONSchema)
	}
	if f.UnixSocket != "" && !f.JSON {
		return nil, fmt.Errorf("config: --unix-socket requires --json")
	}
	if f.RimeLogLevel != "" && !LogLevel(f.RimeLogLevel).valid() {
		return nil, fmt.Errorf("config: --rime-log-level must be one of info, warning, error, fatal, none, got %q", f.RimeLogLevel)
	}

	return f, nil
}

// Resolve builds the final Config from flags, an optional on-disk YAML
// overlay, and XDG-based defaults, in that precedence order (flags win).
// Grounded on internal/daemon/project.go's loadInRepoConfig: read a YAML
// file if present, overlay non-empty fields onto a base, flags always take
// the final word.
func Resolve(f *Flags) (*Config, error) {
	cfg := &Config{
		UnixSocketPath:    defaultSocketPath(),
		UserDataDirectory: defaultUserDataDirectory(),
		LogLevel:          LogLevelError,
	}

	if overlayPath, err := configFilePath(); err == nil {
		if _, err := loadYAMLOverlay(overlayPath, cfg); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if f.UnixSocket != "" {
		cfg.UnixSocketPath = f.UnixSocket
	}
	if f.RimeLogLevel != "" {
		cfg.LogLevel = LogLevel(f.RimeLogLevel)
	}

	return cfg, nil
}

// loadYAMLOverlay reads path and overlays non-zero fields onto cfg. It
// returns (false, nil) if the file does not exist.
func loadYAMLOverlay(path string, cfg *Config) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}

	if overlay.UnixSocketPath != "" {
		cfg.UnixSocketPath = overlay.UnixSocketPath
	}
	if overlay.UserDataDirectory != "" {
		cfg.UserDataDirectory = overlay.UserDataDirectory
	}
	if overlay.LogLevel != "" {
		cfg.LogLevel = overlay.LogLevel
	}

	return true, nil
}

// configFilePath returns $XDG_CONFIG_HOME/rimecmd/config.yaml, falling back
// to ~/.config/rimecmd/config.yaml.
func configFilePath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rimecmd", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rimecmd", "config.yaml"), nil
}

// defaultSocketPath implements spec.md §6: prefer $XDG_RUNTIME_DIR, fall
// back to $TMPDIR.
func defaultSocketPath() string {
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		if dirIsUsable(xdgRuntime) {
			return filepath.Join(xdgRuntime, "rimecmd", "socket", "rimecmd.sock")
		}
	}
	tmp := os.Getenv("TMPDIR")
	if tmp == "" {
		tmp = os.TempDir()
	}
	return filepath.Join(tmp, "rimecmd.sock")
}

func dirIsUsable(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// defaultUserDataDirectory mirrors the engine's own XDG-based default, kept
// here because the server must pass something non-empty at first engine
// initialization (spec.md §4.1).
func defaultUserDataDirectory() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "rime")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rime"
	}
	return filepath.Join(home, ".local", "share", "rime")
}

// Print returns the resolved configuration in the shape --print-config
// emits: one key=value per line, in the fixed order unix_socket_path,
// user_data_directory, log_level.
func (c *Config) Print() string {
	return fmt.Sprintf(
		"unix_socket_path=%s\nuser_data_directory=%s\nlog_level=%s\n",
		c.UnixSocketPath, c.UserDataDirectory, c.LogLevel,
	)
}
