package core

import "testing"

func TestToolCallRequest_SessionID(t *testing.T) {
	req := ToolCallRequest{Metadata: map[string]string{"sessionId": "s-7"}}
	if got := req.SessionID(); got != "s-7" {
		t.Errorf("SessionID() = %q", got)
	}

	// Nil metadata must not panic.
	var empty ToolCallRequest
	if got := empty.SessionID(); got != "" {
		t.Errorf("SessionID() on empty request = %q", got)
	}
}
