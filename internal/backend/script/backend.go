package script

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/relayforge/relay/internal/core"
	"github.com/relayforge/relay/internal/diagnostics"
	"github.com/relayforge/relay/internal/logging"
)

const (
	// BackendName identifies this backend.
	BackendName = "script"

	// envPrefix namespaces the request-scoped variables handed to the
	// child process.
	envPrefix = "RELAY_"

	// captureSubagent is the one subagent identity that receives a
	// writable capture-file path. A structured payload written there
	// takes precedence over text-scraped stdout.
	captureSubagent = "planner"

	// genericScriptName is the fallback script basename tried when no
	// subagent-specific script exists.
	genericScriptName = "agent"
)

// Backend executes subagents by spawning external scripts and normalizing
// their interleaved stdout into progress events.
//
// The event counter and the subscriber list are shared across the whole
// instance: progress events from concurrent Execute calls interleave and
// share one increasing counter, so consumers key on SessionID/ToolID. The
// line buffer is per-request.
type Backend struct {
	mu          sync.Mutex
	cfg         core.BackendConfig
	configured  bool
	initialized bool

	logger   *logging.Logger
	runner   *scriptRunner
	safeExec *diagnostics.SafeExecutor

	count atomic.Uint64

	cbMu      sync.RWMutex
	callbacks map[int]core.ProgressCallback
	nextCBID  int
}

// New creates an unconfigured script backend.
func New(logger *logging.Logger) *Backend {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithBackend(BackendName)
	return &Backend{
		logger:    logger,
		runner:    newScriptRunner(logger),
		callbacks: make(map[int]core.ProgressCallback),
	}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return BackendName
}

// WithDiagnostics enables resource preflight checks before each spawn.
func (b *Backend) WithDiagnostics(exec *diagnostics.SafeExecutor) {
	b.safeExec = exec
}

// Configure stores settings. No I/O happens here.
func (b *Backend) Configure(cfg core.BackendConfig) error {
	if cfg.ScriptsDir == "" {
		return core.ErrValidation(core.CodeInvalidConfig, "scripts directory not set")
	}
	if cfg.Name == "" {
		cfg.Name = BackendName
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
	b.configured = true
	b.initialized = false
	return nil
}

// Initialize verifies the scripts directory is reachable. Failure is fatal
// to this backend instance and is not retried.
func (b *Backend) Initialize(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.configured {
		return core.ErrState(core.CodeNotConfigured, "backend used before Configure")
	}
	info, err := os.Stat(b.cfg.ScriptsDir)
	if err != nil {
		return core.ErrNotFound("scripts directory", b.cfg.ScriptsDir).WithCause(err)
	}
	if !info.IsDir() {
		return core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("scripts path is not a directory: %s", b.cfg.ScriptsDir))
	}
	b.initialized = true
	return nil
}

// IsAvailable is a best-effort, non-throwing probe.
func (b *Backend) IsAvailable(_ context.Context) bool {
	b.mu.Lock()
	cfg, configured := b.cfg, b.configured
	b.mu.Unlock()
	if !configured {
		return false
	}
	info, err := os.Stat(cfg.ScriptsDir)
	return err == nil && info.IsDir()
}

// OnProgress registers a subscriber and returns its unsubscribe function.
func (b *Backend) OnProgress(cb core.ProgressCallback) func() {
	b.cbMu.Lock()
	defer b.cbMu.Unlock()
	id := b.nextCBID
	b.nextCBID++
	b.callbacks[id] = cb
	return func() {
		b.cbMu.Lock()
		defer b.cbMu.Unlock()
		delete(b.callbacks, id)
	}
}

// Cleanup drops all progress subscribers.
func (b *Backend) Cleanup() error {
	b.cbMu.Lock()
	defer b.cbMu.Unlock()
	b.callbacks = make(map[int]core.ProgressCallback)
	return nil
}

// Execute runs one tool-call request to completion. Exactly one subprocess
// is spawned per call. Only configuration, resource-missing, spawn and
// timeout failures return an error; a non-zero exit is reported through
// the result.
func (b *Backend) Execute(ctx context.Context, req core.ToolCallRequest) (*core.ToolCallResult, error) {
	b.mu.Lock()
	cfg := b.cfg
	configured, initialized := b.configured, b.initialized
	b.mu.Unlock()

	if !configured {
		return nil, core.ErrState(core.CodeNotConfigured, "backend used before Configure")
	}
	if !initialized {
		return nil, core.ErrState(core.CodeNotInitialized, "backend used before Initialize")
	}
	if req.ToolName == "" {
		return nil, core.ErrValidation("EMPTY_TOOL", "request has no subagent name")
	}

	scriptPath, interp, err := b.resolveScript(cfg, req.ToolName)
	if err != nil {
		return nil, err
	}

	if b.safeExec != nil && cfg.Preflight {
		preflight := b.safeExec.RunPreflight()
		if !preflight.OK {
			return nil, core.ErrExecution(core.CodePreflight,
				fmt.Sprintf("preflight check failed: %v", preflight.Errors))
		}
		for _, w := range preflight.Warnings {
			b.logger.Warn("preflight warning before spawn", "warning", w)
		}
	}

	callID := uuid.NewString()
	sessionID := req.SessionID()
	logger := b.logger.WithSubagent(req.ToolName).With("call_id", callID)

	captureFile := ""
	if req.ToolName == captureSubagent {
		f, err := os.CreateTemp("", "relay-capture-*.json")
		if err != nil {
			logger.Warn("capture file creation failed, falling back to stdout scraping", "error", err)
		} else {
			captureFile = f.Name()
			_ = f.Close()
			defer func() {
				if err := os.Remove(captureFile); err != nil && !os.IsNotExist(err) {
					logger.Warn("capture file cleanup failed", "path", captureFile, "error", err)
				}
			}()
		}
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = cfg.Timeout
	}

	cls := &classifier{rawPassthrough: cfg.RawPassthrough}
	spec := runSpec{
		Interpreter: interp,
		ScriptPath:  scriptPath,
		Args:        buildScriptArgs(cfg, req),
		Env:         buildScriptEnv(cfg, req, callID, captureFile),
		Dir:         cfg.ProjectDir,
		Timeout:     timeout,
		OnLine: func(line string) {
			b.emit(cls.Classify(line), cfg.Name, sessionID, req.ToolName)
		},
	}

	logger.Info("executing subagent script",
		"script", scriptPath,
		"interpreter", interp,
		"timeout", timeout,
	)

	startTime := time.Now()
	res, err := b.runner.Run(ctx, spec)
	if err != nil {
		return nil, err
	}
	endTime := startTime.Add(res.Duration)

	return b.buildResult(logger, req, res, captureFile, startTime, endTime), nil
}

// resolveScript maps a subagent identity to an executable script, trying
// the subagent-specific basename first and the generic one second. The
// returned error enumerates every path checked.
func (b *Backend) resolveScript(cfg core.BackendConfig, tool string) (string, string, error) {
	var checked []string
	for _, name := range []string{tool, genericScriptName} {
		for _, ext := range scriptExtensions {
			path := filepath.Join(cfg.ScriptsDir, name+ext)
			checked = append(checked, path)
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			interp, ok := interpreterFor(path)
			if !ok {
				continue
			}
			return path, interp, nil
		}
	}
	return "", "", (&core.DomainError{
		Category: core.ErrCatNotFound,
		Code:     core.CodeScriptNotFound,
		Message: fmt.Sprintf("no script for subagent %q; checked: %s",
			tool, strings.Join(checked, ", ")),
	}).WithDetail("checked_paths", checked)
}

// buildScriptArgs translates the request arguments into process arguments.
// Every flag is presence-gated; the instruction rides last as a positional.
func buildScriptArgs(cfg core.BackendConfig, req core.ToolCallRequest) []string {
	a := req.Arguments
	var args []string

	model := a["model"]
	if model == "" {
		model = cfg.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	if v := a["output_format"]; v != "" {
		args = append(args, "--output-format", v)
	}
	if v := a["allowed_tools"]; v != "" {
		args = append(args, "--allowed-tools", v)
	}
	if v := a["disallowed_tools"]; v != "" {
		args = append(args, "--disallowed-tools", v)
	}
	if v := a["resume"]; v != "" {
		args = append(args, "--resume", v)
	}
	if a["continue"] == "true" {
		args = append(args, "--continue")
	}
	if v := a["instruction"]; v != "" {
		args = append(args, v)
	}
	return args
}

// buildScriptEnv layers the parent environment, backend overrides and the
// RELAY_-namespaced request variables.
func buildScriptEnv(cfg core.BackendConfig, req core.ToolCallRequest, callID, captureFile string) []string {
	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}

	a := req.Arguments
	model := a["model"]
	if model == "" {
		model = cfg.Model
	}

	env = append(env,
		envPrefix+"SUBAGENT="+req.ToolName,
		envPrefix+"INSTRUCTION="+a["instruction"],
		envPrefix+"PROJECT_PATH="+cfg.ProjectDir,
		envPrefix+"MODEL="+model,
		envPrefix+"ITERATION="+a["iteration"],
		envPrefix+"CALL_ID="+callID,
	)
	if sid := req.SessionID(); sid != "" {
		env = append(env, envPrefix+"SESSION_ID="+sid)
	}
	if captureFile != "" {
		env = append(env, envPrefix+"CAPTURE_FILE="+captureFile)
	}
	return env
}

// buildResult assembles the final ToolCallResult, preferring a captured
// structured payload over the last parseable stdout line over raw stdout,
// and attaching quota-limit details when detected.
func (b *Backend) buildResult(
	logger *logging.Logger,
	req core.ToolCallRequest,
	res *scriptResult,
	captureFile string,
	startTime, endTime time.Time,
) *core.ToolCallResult {
	result := &core.ToolCallResult{
		Status:    core.StatusCompleted,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  res.Duration,
		Metadata:  map[string]any{"exit_code": res.ExitCode},
		Request:   req,
	}

	content := res.Output
	if captured, ok := readCaptureFile(logger, captureFile); ok {
		content = captured.raw
		result.Metadata["capturedResponse"] = captured.parsed
	} else if line, parsed, ok := lastStructuredLine(res.Output); ok {
		content = line
		result.Metadata["structuredResult"] = parsed
	}
	result.Content = content

	if !res.Success {
		result.Status = core.StatusFailed
		msg := strings.TrimSpace(res.ErrOutput)
		if msg == "" {
			msg = fmt.Sprintf("script exited with code %d", res.ExitCode)
		}
		result.Error = &core.ToolCallError{
			Kind:      core.CodeCLIError,
			Message:   msg,
			Timestamp: endTime,
		}
	}

	quotaText := result.Content
	if result.Error != nil {
		quotaText = result.Error.Message + "\n" + quotaText
	}
	if quota := detectQuotaLimit(quotaText); quota.Detected {
		result.Metadata["quotaLimit"] = quota
		note := fmt.Sprintf("\n[quota limit detected: retry after %s]",
			quota.SleepDuration.Round(time.Second))
		if quota.ResetTime != nil {
			note = fmt.Sprintf("\n[quota limit detected: resets at %s]",
				quota.ResetTime.Format(time.RFC3339))
		}
		result.Content += note
		logger.Warn("quota limit detected in subagent output",
			"sleep", quota.SleepDuration,
			"timezone", quota.Timezone,
		)
	}

	return result
}

type capturedPayload struct {
	raw    string
	parsed map[string]any
}

// readCaptureFile loads the structured side-channel payload if the
// subprocess wrote one. Read failures degrade to stdout scraping and are
// logged as warnings only.
func readCaptureFile(logger *logging.Logger, path string) (capturedPayload, bool) {
	if path == "" {
		return capturedPayload{}, false
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is our own temp file
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("capture file read failed", "path", path, "error", err)
		}
		return capturedPayload{}, false
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return capturedPayload{}, false
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		logger.Warn("capture file holds invalid JSON, ignoring", "path", path, "error", err)
		return capturedPayload{}, false
	}
	return capturedPayload{raw: string(data), parsed: parsed}, true
}

// lastStructuredLine scans stdout bottom-up for the last parseable JSON
// object line.
func lastStructuredLine(output string) (string, map[string]any, bool) {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(line), &parsed); err == nil {
			return line, parsed, true
		}
	}
	return "", nil, false
}

// emit stamps identity and ordering onto the event and fans it out. A
// panicking callback is caught and logged; it never halts later events.
func (b *Backend) emit(ev core.ProgressEvent, backend, sessionID, toolID string) {
	ev.Backend = backend
	ev.SessionID = sessionID
	ev.ToolID = toolID
	ev.Count = b.count.Add(1)
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.cbMu.RLock()
	cbs := make([]core.ProgressCallback, 0, len(b.callbacks))
	for _, cb := range b.callbacks {
		cbs = append(cbs, cb)
	}
	b.cbMu.RUnlock()

	for _, cb := range cbs {
		b.invoke(cb, ev)
	}
}

func (b *Backend) invoke(cb core.ProgressCallback, ev core.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("progress callback panicked", "panic", r, "event_type", ev.Type)
		}
	}()
	cb(ev)
}

// compile-time contract check
var _ core.Backend = (*Backend)(nil)
