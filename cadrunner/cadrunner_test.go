package cadrunner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// These tests invoke /bin/sh as a stand-in interpreter so they exercise the
// real subprocess/timeout/work-dir machinery without depending on the CAD
// scripting runtime being installed in the test environment.

func TestSubprocessRunnerSuccess(t *testing.T) {
	r := NewSubprocessRunner("/bin/sh")
	dir := t.TempDir()
	r.BaseDir = dir

	code := "echo -n mesh-bytes > output.stl"
	outcome, err := r.Run(context.Background(), code, 5*time.Second)
	require.NoError(t, err)
	require.Nil(t, outcome.Failure)
	require.Equal(t, "mesh-bytes", string(outcome.MeshBytes))
}

func TestSubprocessRunnerNonZeroExit(t *testing.T) {
	r := NewSubprocessRunner("/bin/sh")
	r.BaseDir = t.TempDir()

	code := "echo 'SyntaxError: bad token' 1>&2; exit 2"
	outcome, err := r.Run(context.Background(), code, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, outcome.Failure)
	require.Equal(t, 2, outcome.Failure.ExitCode)
	require.Contains(t, outcome.Failure.Stderr, "SyntaxError")
}

func TestSubprocessRunnerTimeout(t *testing.T) {
	r := NewSubprocessRunner("/bin/sh")
	r.BaseDir = t.TempDir()

	code := "sleep 5"
	outcome, err := r.Run(context.Background(), code, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, outcome.Failure)
	require.Equal(t, 137, outcome.Failure.ExitCode)
}

func TestSubprocessRunnerMissingMeshOutput(t *testing.T) {
	r := NewSubprocessRunner("/bin/sh")
	r.BaseDir = t.TempDir()

	code := "exit 0"
	outcome, err := r.Run(context.Background(), code, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, outcome.Failure)
}

func TestSubprocessRunnerCleansUpWorkDir(t *testing.T) {
	r := NewSubprocessRunner("/bin/sh")
	dir := t.TempDir()
	r.BaseDir = dir

	_, err := r.Run(context.Background(), "exit 0", 5*time.Second)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, filepath.Join(dir, e.Name()), "cadrunner-")
	}
}
