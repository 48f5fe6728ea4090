// Package cadrunner implements the CadRunner collaborator (spec §1, §4.A,
// §6.3): a child process that reads generated CAD script and emits mesh
// bytes on success or a structured failure envelope (exit code + stderr)
// on failure. Spec treats CadRunner as an external collaborator with a
// narrow contract, not a pipeline component in its own right; this package
// is the narrow stdio-subprocess adapter Executor (component I) and
// IterativeBuilder (component J) run code through.
package cadrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cadforge/codepilot/errclass"
)

// Outcome is the result of one CadRunner invocation: either mesh bytes
// (success) or a failure envelope ready for errclass.Classify.
type Outcome struct {
	MeshBytes []byte
	Failure   *errclass.Envelope // nil on success
}

// Runner executes generated code and returns its Outcome. The contract is
// intentionally narrow: Run does not classify failures itself (that is
// errclass's job) or decide retries (retry's job) — it only runs a process
// and reports what happened.
type Runner interface {
	Run(ctx context.Context, code string, timeout time.Duration) (Outcome, error)
}

// SubprocessRunner runs code through an external interpreter binary in a
// fresh temp-file working directory per invocation, matching spec §6.3's
// "CAD-script child process that reads source and emits mesh bytes plus a
// structured error envelope".
type SubprocessRunner struct {
	// Interpreter is the executable invoked with the script path as its
	// sole argument (e.g. "python3").
	Interpreter string
	// BaseDir is the parent directory fresh per-invocation working
	// directories are created under. Defaults to os.TempDir().
	BaseDir string
	// MeshOutputName is the filename the script is expected to write mesh
	// output to, relative to its working directory.
	MeshOutputName string
}

// NewSubprocessRunner returns a SubprocessRunner invoking interpreter.
func NewSubprocessRunner(interpreter string) *SubprocessRunner {
	return &SubprocessRunner{Interpreter: interpreter, MeshOutputName: "output.stl"}
}

// Run writes code to a fresh working directory, executes it under a
// wall-clock timeout, and returns mesh bytes on success or a structured
// failure envelope otherwise. The exit code and stderr text are the only
// signals callers interpret further — Run itself knows nothing about CAD
// semantics.
func (r *SubprocessRunner) Run(ctx context.Context, code string, timeout time.Duration) (Outcome, error) {
	workDir, err := r.newWorkDir()
	if err != nil {
		return Outcome{}, fmt.Errorf("cadrunner: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	scriptPath := filepath.Join(workDir, "script.py")
	if err := os.WriteFile(scriptPath, []byte(code), 0o600); err != nil {
		return Outcome{}, fmt.Errorf("cadrunner: write script: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, r.Interpreter, scriptPath)
	cmd.Dir = workDir
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	exitCode := exitCodeOf(runCtx, runErr)

	if runErr == nil {
		mesh, err := os.ReadFile(filepath.Join(workDir, r.MeshOutputName))
		if err != nil {
			return Outcome{Failure: &errclass.Envelope{ExitCode: exitCode, Stderr: "script exited 0 but produced no mesh output: " + err.Error()}}, nil
		}
		return Outcome{MeshBytes: mesh}, nil
	}

	return Outcome{Failure: &errclass.Envelope{ExitCode: exitCode, Stderr: stderr.String()}}, nil
}

// exitCodeOf maps a process error (or context timeout) to the exit code
// convention spec §4.A expects, including the >=128 signal/timeout range.
func exitCodeOf(ctx context.Context, err error) int {
	if ctx.Err() == context.DeadlineExceeded {
		return 137 // SIGKILL-equivalent, inside the >=128 timeout exit-code range
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// newWorkDir creates a fresh per-invocation directory under BaseDir (or the
// OS temp dir if unset), named with a random id so concurrent Consensus
// children never collide.
func (r *SubprocessRunner) newWorkDir() (string, error) {
	base := r.BaseDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "cadrunner-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
