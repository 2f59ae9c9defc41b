package script

import "strings"

// lineBuffer reassembles complete logical lines from arbitrarily-chunked
// byte input. One instance exists per running request; it is not safe for
// concurrent use and does not need to be, since a single goroutine pumps
// the stdout pipe.
//
// Invariant: between Feed calls the buffer holds zero or more bytes that
// do not include a line terminator.
type lineBuffer struct {
	rest string
}

// Feed appends chunk to the buffer and returns all complete lines drained
// from it. Trailing '\r' is stripped from each returned line so CRLF input
// behaves like LF input. Whitespace-only lines are returned as-is: pretty
// printing subagents rely on blank lines for layout.
//
// For any partitioning of a byte stream into chunks, feeding the chunks in
// order and concatenating the results (plus a final Flush) yields the same
// line sequence as parsing the unsplit stream.
func (b *lineBuffer) Feed(chunk []byte) []string {
	data := b.rest + string(chunk)
	if !strings.Contains(data, "\n") {
		b.rest = data
		return nil
	}

	parts := strings.Split(data, "\n")
	b.rest = parts[len(parts)-1]

	lines := parts[:len(parts)-1]
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Flush drains any buffered partial line. Returns the line and true when
// the buffer was non-empty.
func (b *lineBuffer) Flush() (string, bool) {
	if b.rest == "" {
		return "", false
	}
	line := strings.TrimSuffix(b.rest, "\r")
	b.rest = ""
	return line, true
}
