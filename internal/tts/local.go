package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	flagVersion   = "--version"
	flagVoicesDir = "--voices-dir"
)

// maxStderr bounds how much engine stderr is kept in error messages.
const maxStderr = 2 << 10

// exitUsage is the status argparse exits with when it rejects arguments.
const exitUsage = 2

// CommandRunner runs binary with args, feeding stdin, and returns stdout.
// A failed run returns an error that should wrap *exec.ExitError when the
// process exited non-zero.
type CommandRunner func(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error)

// ExecRunner is the default CommandRunner. The process is started with
// exec.CommandContext, so cancelling ctx kills it.
func ExecRunner(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	// #nosec G204 -- binary comes from operator configuration, args are built from validated requests
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return nil, &runError{err: err, stderr: truncate(stderr.String(), maxStderr)}
	}

	return stdout.Bytes(), nil
}

// runError carries the stderr of a failed engine process.
type runError struct {
	err    error
	stderr string
}

func (e *runError) Error() string {
	if e.stderr == "" {
		return e.err.Error()
	}

	return fmt.Sprintf("%v - output: %s", e.err, e.stderr)
}

func (e *runError) Unwrap() error { return e.err }

// LocalEngine runs the mimic3 executable once per request. One process is in
// flight at a time per engine; concurrent callers queue in FIFO order and
// leave the queue when their context ends.
type LocalEngine struct {
	target  EngineTarget
	run     CommandRunner
	timeout time.Duration

	voicesDirs []string

	slot   *semaphore.Weighted
	closed atomic.Bool
}

// NewLocalEngine creates an engine for a Local target. A nil runner uses
// ExecRunner. voicesDirs are searched for voices ahead of mimic3's defaults.
func NewLocalEngine(target EngineTarget, timeout time.Duration, run CommandRunner, voicesDirs ...string) *LocalEngine {
	if run == nil {
		run = ExecRunner
	}

	return &LocalEngine{
		target:     target,
		run:        run,
		timeout:    timeout,
		voicesDirs: slices.Clone(voicesDirs),
		slot:       semaphore.NewWeighted(1),
	}
}

// Synthesize pipes the request text into `mimic3 ... --stdout` and returns
// the WAV it writes.
func (e *LocalEngine) Synthesize(ctx context.Context, req *SynthesisRequest) (*SynthesisResult, error) {
	out, err := e.exec(ctx, e.withVoicesDirs(req.CommandArgs()), []byte(req.Text()))
	if err != nil {
		return nil, e.classify(ctx, err, req)
	}

	return newResult(out, e.target)
}

// Voices lists the installed voices with `mimic3 --voices`.
func (e *LocalEngine) Voices(ctx context.Context) ([]VoiceInfo, error) {
	out, err := e.exec(ctx, e.withVoicesDirs([]string{flagVoices}), nil)
	if err != nil {
		return nil, e.classify(ctx, err, nil)
	}

	return decodeCatalogLines(out), nil
}

// HealthCheck verifies that the executable starts.
func (e *LocalEngine) HealthCheck(ctx context.Context) error {
	_, err := e.exec(ctx, []string{flagVersion}, nil)
	if err != nil {
		return e.classify(ctx, err, nil)
	}

	return nil
}

// Close waits for the in-flight process, if any, and rejects later calls.
func (e *LocalEngine) Close() error {
	err := e.slot.Acquire(context.Background(), 1)
	if err != nil {
		return fmt.Errorf("failed to wait for local engine: %w", err)
	}
	defer e.slot.Release(1)

	e.closed.Store(true)

	return nil
}

func (e *LocalEngine) withVoicesDirs(args []string) []string {
	if len(e.voicesDirs) == 0 {
		return args
	}

	prefixed := make([]string, 0, 2*len(e.voicesDirs)+len(args))
	for _, dir := range e.voicesDirs {
		prefixed = append(prefixed, flagVoicesDir, dir)
	}

	return append(prefixed, args...)
}

func (e *LocalEngine) exec(ctx context.Context, args []string, stdin []byte) ([]byte, error) {
	err := e.slot.Acquire(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("gave up waiting for local engine: %w", err)
	}
	defer e.slot.Release(1)

	if e.closed.Load() {
		return nil, ErrAdapterClosed
	}

	// The caller's deadline covers the queue; timeout covers the run.
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.run(runCtx, e.target.BinaryPath, args, stdin)
	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}

		return nil, err
	}

	return out, nil
}

// classify maps a failed run onto the error taxonomy.
func (e *LocalEngine) classify(ctx context.Context, err error, req *SynthesisRequest) error {
	if errors.Is(err, ErrAdapterClosed) {
		return &EngineUnavailableError{Reason: "local engine closed", Err: err}
	}

	reqErr := &EngineRequestError{Target: e.target, Err: err}

	switch {
	case ctx.Err() != nil:
		// The caller gave up.
	case errors.Is(err, context.DeadlineExceeded):
		reqErr.Transient = true
		reqErr.Connectivity = true
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		reqErr.Connectivity = true
	case req != nil && mentionsUnknownVoice(err.Error()):
		return &VoiceNotFoundError{Voice: req.Voice().String(), Speaker: req.Speaker()}
	case exitCode(err) == exitUsage:
		return newValidationError("request", "mimic3 rejected the arguments: %v", err)
	}

	return reqErr
}

// exitCode returns the exit status carried by err, or -1.
func exitCode(err error) int {
	var exited interface{ ExitCode() int }
	if errors.As(err, &exited) {
		return exited.ExitCode()
	}

	return -1
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
