package core

import (
	"context"
	"time"
)

// =============================================================================
// Backend Port
// =============================================================================

// Backend defines the contract every subagent executor must satisfy.
// Lifecycle: Unconfigured -> Configured -> Initialized -> Executing (n >= 0
// concurrent) -> back to Initialized. Configure and Initialize must be called
// in that order before Execute.
type Backend interface {
	// Name returns the backend identifier (e.g., "script").
	Name() string

	// Configure stores settings without side effects. No I/O happens here.
	Configure(cfg BackendConfig) error

	// Initialize verifies the backend's required external resources are
	// reachable and fails fast with a descriptive error if not. A failed
	// Initialize is fatal to this backend instance.
	Initialize(ctx context.Context) error

	// IsAvailable is a non-throwing best-effort probe usable before
	// committing to this backend.
	IsAvailable(ctx context.Context) bool

	// Execute runs one tool-call request to completion. Each request maps
	// to exactly one subprocess invocation. Only configuration,
	// resource-missing, spawn, and timeout failures return an error;
	// a non-zero exit is reported through the result.
	Execute(ctx context.Context, req ToolCallRequest) (*ToolCallResult, error)

	// OnProgress registers a subscriber for progress events and returns
	// an unsubscribe function.
	OnProgress(cb ProgressCallback) (unsubscribe func())

	// Cleanup drops all progress subscribers.
	Cleanup() error
}

// BackendConfig holds backend configuration. Settings apply to every
// Execute call on the configured instance.
type BackendConfig struct {
	// Name is the backend instance identifier used in progress events.
	Name string

	// ScriptsDir is the directory holding subagent scripts.
	ScriptsDir string

	// ProjectDir is the working directory handed to subprocesses.
	ProjectDir string

	// Model is the default model identifier passed to subagents.
	Model string

	// Timeout is the default execution deadline. Zero means the backend
	// default (12 hours).
	Timeout time.Duration

	// RawPassthrough switches the classifier to raw pass-through mode:
	// event content carries the original unparsed line so a downstream
	// renderer can apply its own formatting.
	RawPassthrough bool

	// Env holds backend-level environment overrides applied on top of the
	// parent process environment.
	Env map[string]string

	// Preflight enables resource checks before each spawn.
	Preflight bool
}
