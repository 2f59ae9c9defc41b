package script

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/relayforge/relay/internal/core"
)

// lineKind is the closed set of variants a stdout line can resolve to.
// Sniffing happens once at the parse boundary; conversion is exhaustive
// over the three kinds.
type lineKind int

const (
	// kindText is a free-text line, the expected path for line-oriented
	// plain-text subagents.
	kindText lineKind = iota

	// kindShapeA is the subagent protocol shape: a JSON object whose
	// "type" is one of system/assistant/result.
	kindShapeA

	// kindShapeB is the generic pre-normalized envelope: a JSON object
	// with both "type" and "content" fields, any type value.
	kindShapeB
)

// classifier converts complete stdout lines into progress events. One line
// maps to exactly one event; Classify never panics. Count, session and
// backend identity are stamped by the emitting backend, not here.
type classifier struct {
	// rawPassthrough switches structured-line handling to carry the
	// original unparsed line as content so a downstream renderer can
	// apply its own formatting.
	rawPassthrough bool
}

// Classify turns one logical line into a progress event.
func (c *classifier) Classify(line string) core.ProgressEvent {
	if strings.TrimSpace(line) == "" {
		// Blank and whitespace-only lines are surfaced verbatim so
		// pretty-printed layout survives normalization.
		return textEvent(line, true)
	}

	kind, obj := sniffLine(line)
	switch kind {
	case kindShapeA:
		return c.convertShapeA(line, obj)
	case kindShapeB:
		return convertShapeB(obj)
	default:
		return textEvent(line, false)
	}
}

// sniffLine decides which variant a line belongs to. Invalid JSON and
// valid JSON of unrecognized shape both resolve to kindText.
func sniffLine(line string) (lineKind, map[string]any) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return kindText, nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return kindText, nil
	}

	typ, ok := obj["type"].(string)
	if !ok {
		return kindText, nil
	}

	switch typ {
	case "system", "assistant", "result":
		return kindShapeA, obj
	}

	if _, ok := obj["content"].(string); ok {
		return kindShapeB, obj
	}

	return kindText, nil
}

// textEvent builds the plain-text fallback event.
func textEvent(line string, raw bool) core.ProgressEvent {
	meta := map[string]any{"format": "text"}
	if raw {
		meta["raw"] = true
	}
	return core.ProgressEvent{
		Timestamp: time.Now(),
		Type:      core.EventThinking,
		Content:   line,
		Metadata:  meta,
	}
}

// convertShapeA applies the protocol conversion table.
func (c *classifier) convertShapeA(line string, obj map[string]any) core.ProgressEvent {
	typ, _ := obj["type"].(string)

	var eventType core.ProgressEventType
	var content string
	meta := map[string]any{}

	switch typ {
	case "system":
		eventType = core.EventToolStart
		content = "Initializing session"
		copyMeta(meta, obj, "subtype", "session_id", "model", "tools", "cwd")

	case "assistant":
		eventType = core.EventThinking
		content = assistantContent(obj)
		if msg, ok := obj["message"].(map[string]any); ok {
			copyMeta(meta, msg, "id", "model", "usage")
		}
		copyMeta(meta, obj, "session_id")

	case "result":
		eventType = core.EventToolResult
		isError, _ := obj["is_error"].(bool)
		subtype, _ := obj["subtype"].(string)
		if isError || subtype == "error" {
			eventType = core.EventError
		}
		content = firstString(obj, "result", "error")
		if content == "" {
			if eventType == core.EventError {
				content = "Subagent reported an error"
			} else {
				content = "Completed"
			}
		}
		copyMeta(meta, obj, "subtype", "duration_ms", "total_cost_usd", "usage", "session_id")
	}

	if c.rawPassthrough {
		content = line
		meta["rawJsonOutput"] = true
		meta["originalType"] = typ
		meta["parsed"] = obj
	}

	return core.ProgressEvent{
		Timestamp: time.Now(),
		Type:      eventType,
		Content:   content,
		Metadata:  meta,
	}
}

// assistantContent resolves display text for an assistant event, in order:
// direct content string, tool-invocation summary, first text element of the
// message content array, then a fixed placeholder.
func assistantContent(obj map[string]any) string {
	if s, ok := obj["content"].(string); ok && s != "" {
		return s
	}

	msg, _ := obj["message"].(map[string]any)
	var parts []any
	if msg != nil {
		parts, _ = msg["content"].([]any)
	}

	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := part["type"].(string); t == "tool_use" {
			if name, _ := part["name"].(string); name != "" {
				return "Tool: " + name
			}
		}
	}

	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := part["type"].(string); t == "text" {
			if text, _ := part["text"].(string); text != "" {
				return text
			}
		}
	}

	return "Processing..."
}

// convertShapeB copies the pre-normalized envelope through.
func convertShapeB(obj map[string]any) core.ProgressEvent {
	typ, _ := obj["type"].(string)
	content, _ := obj["content"].(string)

	ts := time.Now()
	if raw, ok := obj["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			ts = parsed
		}
	}

	var meta map[string]any
	if m, ok := obj["metadata"].(map[string]any); ok {
		meta = m
	}

	return core.ProgressEvent{
		Timestamp: ts,
		Type:      core.ProgressEventType(typ),
		Content:   content,
		Metadata:  meta,
	}
}

// copyMeta copies the named keys from src into dst when present.
func copyMeta(dst, src map[string]any, keys ...string) {
	for _, k := range keys {
		if v, ok := src[k]; ok && v != nil {
			dst[k] = v
		}
	}
}

// firstString returns the first non-empty string value among the named keys.
func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
