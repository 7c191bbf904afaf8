package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_Defaults(t *testing.T) {
	f, err := ParseFlags(nil)
	require.NoError(t, err)
	assert.False(t, f.JSON)
	assert.False(t, f.Server)
	assert.Equal(t, "", f.JSONSchema)
}

func TestParseFlags_JSONSchemaRejectsUnknownValue(t *testing.T) {
	_, err := ParseFlags([]string{"--json-schema", "bogus"})
	assert.Error(t, err)
}

func TestParseFlags_UnixSocketRequiresJSON(t *testing.T) {
	_, err := ParseFlags([]string{"--unix-socket", "/tmp/x.sock"})
	assert.Error(t, err)

	f, err := ParseFlags([]string{"--json", "--unix-socket", "/tmp/x.sock"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.sock", f.UnixSocket)
}

func TestParseFlags_RimeLogLevelValidation(t *testing.T) {
	_, err := ParseFlags([]string{"--rime-log-level", "verbose"})
	assert.Error(t, err)

	f, err := ParseFlags([]string{"--rime-log-level", "warning"})
	require.NoError(t, err)
	assert.Equal(t, "warning", f.RimeLogLevel)
}

func TestParseFlags_ShortFlags(t *testing.T) {
	f, err := ParseFlags([]string{"-c", "-f"})
	require.NoError(t, err)
	assert.True(t, f.Continue)
	assert.True(t, f.ForceStartServer)
}

func TestResolve_FlagsOverrideYAMLOverlay(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	require.NoError(t, os.MkdirAll(filepath.Join(configHome, "rimecmd"), 0o755))
	overlay := "unix_socket_path: /overlay/socket.sock\nlog_level: warning\n"
	require.NoError(t, os.WriteFile(filepath.Join(configHome, "rimecmd", "config.yaml"), []byte(overlay), 0o644))

	f, err := ParseFlags([]string{"--json", "--unix-socket", "/flag/socket.sock"})
	require.NoError(t, err)

	cfg, err := Resolve(f)
	require.NoError(t, err)
	assert.Equal(t, "/flag/socket.sock", cfg.UnixSocketPath, "flag must win over overlay")
	assert.Equal(t, LogLevelWarning, cfg.LogLevel, "overlay applies when no flag overrides it")
}

func TestResolve_NoOverlayUsesXDGDefault(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	f, err := ParseFlags(nil)
	require.NoError(t, err)

	cfg, err := Resolve(f)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(runtimeDir, "rimecmd", "socket", "rimecmd.sock"), cfg.UnixSocketPath)
	assert.Equal(t, LogLevelError, cfg.LogLevel)
}

func TestResolve_FallsBackToTMPDIRWhenRuntimeDirMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", filepath.Join(t.TempDir(), "does-not-exist"))
	tmpDir := t.TempDir()
	t.Setenv("TMPDIR", tmpDir)

	f, err := ParseFlags(nil)
	require.NoError(t, err)
	cfg, err := Resolve(f)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "rimecmd.sock"), cfg.UnixSocketPath)
}

func TestConfigPrint(t *testing.T) {
	cfg := &Config{UnixSocketPath: "/s.sock", UserDataDirectory: "/data", LogLevel: LogLevelInfo}
	out := cfg.Print()
	assert.Contains(t, out, "unix_socket_path=/s.sock")
	assert.Contains(t, out, "user_data_directory=/data")
	assert.Contains(t, out, "log_level=info")
}
