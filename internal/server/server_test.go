package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListen_FailsOnStaleRegularFile(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "rimecmd.sock")
	require.NoError(t, os.WriteFile(sockPath, []byte("not a socket"), 0o644))

	_, err := Listen(sockPath, nil, false)
	require.Error(t, err)
	var exists *UnixSocketAlreadyExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, sockPath, exists.Path)
}

func TestListen_ForceStartServerReclaimsStaleFile(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "rimecmd.sock")
	require.NoError(t, os.WriteFile(sockPath, []byte("not a socket"), 0o644))

	s, err := Listen(sockPath, nil, true)
	require.NoError(t, err)
	defer s.Stop()

	info, err := os.Stat(sockPath)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSocket)
}

func TestListen_SucceedsOnFreshPath(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "rimecmd.sock")
	s, err := Listen(sockPath, nil, false)
	require.NoError(t, err)
	defer s.Stop()
}

func TestListen_CreatesMissingParentDirectories(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "rimecmd", "socket", "rimecmd.sock")
	s, err := Listen(sockPath, nil, false)
	require.NoError(t, err)
	defer s.Stop()

	info, err := os.Stat(sockPath)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSocket)
}

func TestServer_StopUnlinksSocketAndClosesStoppedChannel(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "rimecmd.sock")
	s, err := Listen(sockPath, nil, false)
	require.NoError(t, err)

	s.Stop()
	s.Stop() // idempotent

	select {
	case <-s.Stopped():
	default:
		t.Fatal("Stopped channel was not closed")
	}

	_, statErr := os.Stat(sockPath)
	assert.True(t, os.IsNotExist(statErr))
}

// TestServer_StopServerArbitration exercises spec scenario 5's arbitration
// rule directly against connWorker.handleStopServer, without needing a
// live engine session: the shared client count is set to 2 directly, and
// stop_server must be refused until it drops back to 1.
func TestServer_StopServerArbitration(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "rimecmd.sock")
	s, err := Listen(sockPath, nil, false)
	require.NoError(t, err)
	defer s.Stop()

	s.mu.Lock()
	s.clientCount = 2
	s.mu.Unlock()

	w := &connWorker{server: s}
	outcome, terminal := w.handleStopServer()
	require.NotNil(t, outcome.Error)
	assert.Equal(t, "more_than_one_client", string(outcome.Error.ID))
	assert.False(t, terminal)

	s.mu.Lock()
	s.clientCount = 1
	s.mu.Unlock()

	outcome, terminal = w.handleStopServer()
	require.NotNil(t, outcome.Effect)
	assert.True(t, outcome.Effect.StopServer)
	assert.True(t, terminal)
}
