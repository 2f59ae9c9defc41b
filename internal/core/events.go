package core

import "time"

// =============================================================================
// Progress Events (real-time visibility into subagent execution)
// =============================================================================

// ProgressEventType defines the type of event emitted during subagent execution.
type ProgressEventType string

const (
	// EventToolStart indicates a subagent session is being initialized.
	EventToolStart ProgressEventType = "tool_start"

	// EventToolResult indicates the subagent produced a final result.
	EventToolResult ProgressEventType = "tool_result"

	// EventThinking indicates intermediate reasoning or plain-text output.
	EventThinking ProgressEventType = "thinking"

	// EventError indicates an error reported by the subagent.
	EventError ProgressEventType = "error"

	// EventInfo indicates general informational output.
	EventInfo ProgressEventType = "info"

	// EventDebug indicates diagnostic output of interest only when debugging.
	EventDebug ProgressEventType = "debug"
)

// ProgressEvent represents one normalized, ordered unit of streamed output
// from a running backend. Events are append-only and never mutated after
// emission. Ordering within one request is guaranteed by emission order;
// Count is shared across concurrent requests on one backend instance, so
// consumers must group by SessionID/ToolID to separate sessions.
type ProgressEvent struct {
	// SessionID identifies the logical session the event belongs to.
	SessionID string `json:"session_id,omitempty"`

	// Timestamp when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// Backend is the name of the backend emitting the event.
	Backend string `json:"backend"`

	// Count increases monotonically per backend instance.
	Count uint64 `json:"count"`

	// Type is the kind of event (tool_start, thinking, tool_result, ...).
	Type ProgressEventType `json:"type"`

	// Content is the display text, or the raw structured line when the
	// backend runs in raw pass-through mode.
	Content string `json:"content"`

	// ToolID is the subagent identity that produced the event.
	ToolID string `json:"tool_id,omitempty"`

	// Metadata carries optional structured data specific to the event.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ProgressCallback receives progress events during backend execution.
// Callbacks may fail without aborting the backend; failures are caught
// and logged by the emitter.
type ProgressCallback func(event ProgressEvent)
