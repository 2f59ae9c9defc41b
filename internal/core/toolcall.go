package core

import "time"

// ToolCallStatus is the terminal status of a tool call.
type ToolCallStatus string

const (
	StatusCompleted ToolCallStatus = "completed"
	StatusFailed    ToolCallStatus = "failed"
)

// ToolCallRequest describes one unit of work delegated to a backend.
// Immutable once constructed; owned by the caller.
type ToolCallRequest struct {
	// ToolName selects which subagent to run.
	ToolName string `json:"tool_name"`

	// Arguments is an ordered flag map passed to the subagent as process
	// arguments and environment variables. Recognized keys: "instruction",
	// "model", "output_format", "allowed_tools", "disallowed_tools",
	// "resume", "continue", "iteration".
	Arguments map[string]string `json:"arguments,omitempty"`

	// Metadata carries free-form context. The "sessionId" key, when
	// present, threads the session identity through progress events.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Timeout overrides the backend's default execution timeout when > 0.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// SessionID returns the session identity carried in the request metadata.
func (r ToolCallRequest) SessionID() string {
	return r.Metadata["sessionId"]
}

// ToolCallError describes the failure recorded on a ToolCallResult.
type ToolCallError struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolCallResult is the outcome of one Execute call. Produced exactly once
// per call; never partially populated.
type ToolCallResult struct {
	// Content is the string payload, possibly a serialized structured
	// object captured from the subagent.
	Content string `json:"content"`

	// Status is completed or failed.
	Status ToolCallStatus `json:"status"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// Error is set when Status is failed.
	Error *ToolCallError `json:"error,omitempty"`

	// Metadata carries backend-specific extras, such as a captured
	// structured subagent response or quota-limit details.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Request references the originating request.
	Request ToolCallRequest `json:"request"`
}

// QuotaLimitInfo quantifies a provider-side usage cap detected in
// result/error text. Derived, read-only; computed once per result.
type QuotaLimitInfo struct {
	// Detected reports whether the limit phrase was found.
	Detected bool `json:"detected"`

	// ResetTime is the absolute instant the quota resets, when the
	// message carried a parseable reset clause.
	ResetTime *time.Time `json:"reset_time,omitempty"`

	// SleepDuration is how long to wait before retrying.
	SleepDuration time.Duration `json:"sleep_duration,omitempty"`

	// Timezone is the label extracted from the reset clause.
	Timezone string `json:"timezone,omitempty"`

	// OriginalMessage is the text the detection ran over.
	OriginalMessage string `json:"original_message,omitempty"`
}
