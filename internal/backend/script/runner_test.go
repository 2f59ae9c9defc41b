//go:build !windows

package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relayforge/relay/internal/core"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.sh")
	content := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestRunner_Success(t *testing.T) {
	r := newScriptRunner(nil)
	path := writeScript(t, `echo "hello"; echo "err text" >&2`)

	var lines []string
	res, err := r.Run(context.Background(), runSpec{
		Interpreter: "sh",
		ScriptPath:  path,
		OnLine:      func(line string) { lines = append(lines, line) },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Success {
		t.Error("Success = false, want true")
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.Output != "hello\n" {
		t.Errorf("Output = %q", res.Output)
	}
	if !strings.Contains(res.ErrOutput, "err text") {
		t.Errorf("ErrOutput = %q, want stderr captured separately", res.ErrOutput)
	}
	if len(lines) != 1 || lines[0] != "hello" {
		t.Errorf("lines = %v, want [hello]", lines)
	}
}

func TestRunner_NonZeroExitIsSoftFailure(t *testing.T) {
	r := newScriptRunner(nil)
	path := writeScript(t, `echo "partial"; exit 3`)

	res, err := r.Run(context.Background(), runSpec{
		Interpreter: "sh",
		ScriptPath:  path,
	})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil for non-zero exit", err)
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Output != "partial\n" {
		t.Errorf("Output = %q, want output kept on failure", res.Output)
	}
}

func TestRunner_SpawnFailure(t *testing.T) {
	r := newScriptRunner(nil)
	_, err := r.Run(context.Background(), runSpec{
		Interpreter: "/nonexistent/interpreter",
		ScriptPath:  "/nonexistent/script.sh",
	})
	if err == nil {
		t.Fatal("Run() error = nil, want spawn failure")
	}
	var derr *core.DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("error type = %T, want *core.DomainError", err)
	}
	if derr.Code != core.CodeSpawnFailed {
		t.Errorf("Code = %s, want %s", derr.Code, core.CodeSpawnFailed)
	}
}

func TestRunner_Timeout(t *testing.T) {
	r := newScriptRunner(nil)
	r.killGrace = 100 * time.Millisecond
	path := writeScript(t, `echo "started"; sleep 30`)

	start := time.Now()
	res, err := r.Run(context.Background(), runSpec{
		Interpreter: "sh",
		ScriptPath:  path,
		Timeout:     200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Run() error = nil, want timeout")
	}
	var derr *core.DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("error type = %T, want *core.DomainError", err)
	}
	if derr.Code != core.CodeTimeout {
		t.Errorf("Code = %s, want %s", derr.Code, core.CodeTimeout)
	}
	if !derr.Retryable {
		t.Error("timeout should be retryable")
	}
	if res == nil || !strings.Contains(res.Output, "started") {
		t.Error("partial output should survive the timeout")
	}
	// Termination must not wait for the 30s sleep.
	if elapsed > 5*time.Second {
		t.Errorf("Run() took %v, escalation did not fire", elapsed)
	}
}

func TestRunner_TimeoutKillsSignalIgnoringProcess(t *testing.T) {
	r := newScriptRunner(nil)
	r.killGrace = 100 * time.Millisecond
	path := writeScript(t, `trap "" TERM; sleep 30`)

	start := time.Now()
	_, err := r.Run(context.Background(), runSpec{
		Interpreter: "sh",
		ScriptPath:  path,
		Timeout:     200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Run() error = nil, want timeout")
	}
	// SIGTERM is trapped; SIGKILL after the grace period must end it.
	if elapsed > 5*time.Second {
		t.Errorf("Run() took %v, force kill did not fire", elapsed)
	}
}

func TestRunner_Cancellation(t *testing.T) {
	r := newScriptRunner(nil)
	r.killGrace = 100 * time.Millisecond
	path := writeScript(t, `sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, runSpec{
		Interpreter: "sh",
		ScriptPath:  path,
	})
	if err == nil {
		t.Fatal("Run() error = nil, want cancellation")
	}
	var derr *core.DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("error type = %T, want *core.DomainError", err)
	}
	if derr.Category != core.ErrCatState {
		t.Errorf("Category = %s, want %s", derr.Category, core.ErrCatState)
	}
}

func TestRunner_UnterminatedFinalLineFlushed(t *testing.T) {
	r := newScriptRunner(nil)
	path := writeScript(t, `printf "no newline"`)

	var lines []string
	res, err := r.Run(context.Background(), runSpec{
		Interpreter: "sh",
		ScriptPath:  path,
		OnLine:      func(line string) { lines = append(lines, line) },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(lines) != 1 || lines[0] != "no newline" {
		t.Errorf("lines = %v, want flushed partial line", lines)
	}
	if res.Output != "no newline" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestRunner_EnvAndDirApplied(t *testing.T) {
	r := newScriptRunner(nil)
	dir := t.TempDir()
	path := writeScript(t, `echo "$RELAY_TEST_VALUE"; pwd`)

	res, err := r.Run(context.Background(), runSpec{
		Interpreter: "sh",
		ScriptPath:  path,
		Env:         append(os.Environ(), "RELAY_TEST_VALUE=marker"),
		Dir:         dir,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(res.Output, "marker") {
		t.Errorf("Output = %q, want env var visible", res.Output)
	}
	if !strings.Contains(res.Output, dir) {
		t.Errorf("Output = %q, want working directory %s", res.Output, dir)
	}
}
