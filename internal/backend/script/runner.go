package script

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relayforge/relay/internal/core"
	"github.com/relayforge/relay/internal/logging"
)

const (
	// defaultTimeout bounds a single subagent execution.
	defaultTimeout = 12 * time.Hour

	// defaultKillGrace is how long the supervisor waits between the
	// graceful termination signal and the forceful kill.
	defaultKillGrace = 5 * time.Second

	// readChunkSize is the stdout read granularity. Lines crossing chunk
	// boundaries are reassembled by the line buffer.
	readChunkSize = 32 * 1024
)

// runSpec describes one subprocess invocation.
type runSpec struct {
	Interpreter string
	ScriptPath  string
	Args        []string
	Env         []string
	Dir         string
	Timeout     time.Duration

	// OnLine receives each complete stdout line as it is reassembled,
	// concurrently with process execution.
	OnLine func(line string)
}

// scriptResult is the outcome of one supervised run. A non-zero exit is a
// soft failure reported here, not an error.
type scriptResult struct {
	Success   bool
	Output    string
	ErrOutput string
	ExitCode  int
	Duration  time.Duration
}

// scriptRunner spawns subagent scripts, pumps their streams and enforces
// the execution deadline with a two-stage kill.
type scriptRunner struct {
	logger    *logging.Logger
	killGrace time.Duration
}

func newScriptRunner(logger *logging.Logger) *scriptRunner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &scriptRunner{
		logger:    logger,
		killGrace: defaultKillGrace,
	}
}

// Run executes the script to completion. Exactly one resolution path is
// taken: spawn error, timeout, or exit status. The subagent never needs
// interactive input, so stdin is left closed.
func (r *scriptRunner) Run(ctx context.Context, spec runSpec) (*scriptResult, error) {
	timeout := spec.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{spec.ScriptPath}, spec.Args...)
	// #nosec G204 -- interpreter comes from a closed table, the script
	// path from the validated scripts directory
	cmd := exec.Command(spec.Interpreter, args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	configureProcAttr(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		_ = stdoutPipe.Close()
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	startTime := time.Now()

	if err := cmd.Start(); err != nil {
		_ = stdoutPipe.Close()
		_ = stderrPipe.Close()
		return nil, core.ErrExecution(core.CodeSpawnFailed,
			fmt.Sprintf("starting %s %s", spec.Interpreter, spec.ScriptPath)).WithCause(err)
	}

	r.logger.Debug("script: process started",
		"interpreter", spec.Interpreter,
		"script", spec.ScriptPath,
		"pid", cmd.Process.Pid,
		"timeout", timeout,
	)

	// Escalating termination: SIGTERM at the deadline, SIGKILL after the
	// grace period if the process is still alive. The done channel keeps
	// the killer from signaling a process that exited naturally.
	done := make(chan struct{})
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		r.logger.Warn("script: deadline hit, terminating process group", "pid", cmd.Process.Pid)
		terminateProcess(cmd)
		select {
		case <-done:
		case <-time.After(r.killGrace):
			r.logger.Warn("script: process survived grace period, killing", "pid", cmd.Process.Pid)
			killProcess(cmd)
		}
	}()

	var stdout, stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		pumpLines(stdoutPipe, &stdout, spec.OnLine)
		return nil
	})
	g.Go(func() error {
		_, _ = io.Copy(&stderr, stderrPipe)
		return nil
	})

	// Pipes must be fully drained before Wait reaps the process.
	_ = g.Wait()
	waitErr := cmd.Wait()
	close(done)

	duration := time.Since(startTime)

	result := &scriptResult{
		Output:    stdout.String(),
		ErrOutput: stderr.String(),
		Duration:  duration,
	}

	if ctx.Err() == context.DeadlineExceeded {
		r.logger.Error("script: execution timed out",
			"script", spec.ScriptPath,
			"timeout", timeout,
			"duration", duration,
		)
		return result, core.ErrTimeout(fmt.Sprintf("execution timed out after %v", timeout))
	}
	if ctx.Err() == context.Canceled {
		return result, core.ErrState("CANCELLED", "execution cancelled")
	}

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			r.logger.Warn("script: non-zero exit",
				"script", spec.ScriptPath,
				"exit_code", result.ExitCode,
				"duration", duration,
			)
			return result, nil
		}
		return result, fmt.Errorf("waiting for script: %w", waitErr)
	}

	result.Success = true
	return result, nil
}

// pumpLines reads raw chunks from the pipe, accumulates the full stream
// and feeds complete lines to the sink as they are reassembled.
func pumpLines(pipe io.Reader, full *bytes.Buffer, onLine func(string)) {
	var lb lineBuffer
	buf := make([]byte, readChunkSize)
	for {
		n, err := pipe.Read(buf)
		if n > 0 {
			full.Write(buf[:n])
			if onLine != nil {
				for _, line := range lb.Feed(buf[:n]) {
					onLine(line)
				}
			}
		}
		if err != nil {
			// Pipe closes abruptly on kill; nothing to report.
			break
		}
	}
	if onLine != nil {
		if line, ok := lb.Flush(); ok {
			onLine(line)
		}
	}
}
