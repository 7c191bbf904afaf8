package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rimecmd/internal/config"
	"rimecmd/internal/engine"
	"rimecmd/internal/poller"
	"rimecmd/internal/wire"
)

// captureStdout redirects os.Stdout for the duration of fn and returns
// everything written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stdout
	os.Stdout = w
	fn()
	os.Stdout = orig
	require.NoError(t, w.Close())

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestExitCodeForError_UnsupportedInput(t *testing.T) {
	err := &wire.UnsupportedInputError{Input: "\\x1b[1;2Q"}
	assert.Equal(t, exitUnsupportedInput, exitCodeForError(err))
}

func TestExitCodeForError_MoreThanOneClient(t *testing.T) {
	err := &wire.MoreThanOneClientError{ClientCount: 2}
	assert.Equal(t, exitMoreThanOneClient, exitCodeForError(err))
}

func TestExitCodeForError_PollerClosed(t *testing.T) {
	err := &poller.ClosedError{Fd: 7}
	assert.Equal(t, exitOneOfMultipleInputClosed, exitCodeForError(err))
}

func TestExitCodeForError_Wrapped(t *testing.T) {
	err := fmt.Errorf("modes: terminal: %w", &wire.UnsupportedInputError{Input: "x"})
	assert.Equal(t, exitUnsupportedInput, exitCodeForError(err))
}

func TestExitCodeForError_GenericFailure(t *testing.T) {
	assert.Equal(t, exitFailure, exitCodeForError(errors.New("boom")))
}

func TestEngineLogLevel_MapsEachConfigLevel(t *testing.T) {
	cases := map[config.LogLevel]engine.LogLevel{
		config.LogLevelInfo:    engine.LogLevelInfo,
		config.LogLevelWarning: engine.LogLevelWarning,
		config.LogLevelError:   engine.LogLevelError,
		config.LogLevelFatal:   engine.LogLevelFatal,
		config.LogLevelNone:    engine.LogLevelNone,
	}
	for in, want := range cases {
		assert.Equal(t, want, engineLogLevel(in), "LogLevel %q", in)
	}
}

func TestPrintSchema_RequestAndReplyProduceValidJSONObjects(t *testing.T) {
	for _, which := range []string{"request", "reply"} {
		t.Run(which, func(t *testing.T) {
			out := captureStdout(t, func() {
				code := printSchema(which)
				require.Equal(t, 0, code)
			})
			var decoded map[string]any
			require.NoError(t, json.Unmarshal([]byte(out), &decoded))
			assert.Equal(t, "object", decoded["type"])
		})
	}
}

func TestRun_PrintConfigExitsZero(t *testing.T) {
	code := run([]string{"--print-config"})
	assert.Equal(t, 0, code)
}

func TestRun_UnknownFlagFails(t *testing.T) {
	code := run([]string{"--not-a-real-flag"})
	assert.Equal(t, exitFailure, code)
}
