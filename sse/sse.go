// ABOUTME: Incremental Server-Sent Events frame parser for the spyglass ingestion pipeline.
// ABOUTME: Reads from an io.Reader and yields (event, data) frames, tolerating partial and malformed input.

package sse

import (
	"bufio"
	"io"
	"strings"
)

// Frame is one complete Server-Sent Event: a named event type and its data
// payload. Multi-line data is joined with newlines.
type Frame struct {
	Event string
	Data  string
}

// Parser incrementally decodes SSE frames from a byte stream. It reads
// byte-by-byte off a buffered reader, so multi-byte UTF-8 sequences split
// across transport chunks are reassembled before any line is interpreted.
//
// Framing rules:
//   - "event:" lines set the pending event type.
//   - Consecutive "data:" lines accumulate; they are joined with "\n".
//   - A blank line dispatches the pending frame when both an event type and
//     a non-empty data buffer are present, then resets the accumulator.
//   - Comment lines (leading ':') and unknown fields are skipped.
//   - At end of stream a pending, un-terminated frame is still dispatched.
type Parser struct {
	r    *bufio.Reader
	done bool

	event     string
	dataLines []string
}

// NewParser returns a Parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReaderSize(r, 4096)}
}

// Next returns the next complete frame. It returns io.EOF once the stream is
// exhausted and no pending frame remains. Malformed lines are skipped rather
// than surfaced; only reader errors propagate.
func (p *Parser) Next() (Frame, error) {
	if p.done {
		return Frame{}, io.EOF
	}

	for {
		line, err := p.readLine()
		if err != nil {
			if err == io.EOF {
				p.done = true
				// Flush a pending frame that was never terminated by a
				// blank line. Dropping it would lose the final event of
				// streams that end abruptly.
				if f, ok := p.takeFrame(); ok {
					return f, nil
				}
				return Frame{}, io.EOF
			}
			return Frame{}, err
		}

		if line == "" {
			if f, ok := p.takeFrame(); ok {
				return f, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			p.event = value
		case "data":
			p.dataLines = append(p.dataLines, value)
		default:
			// id, retry, and anything else are irrelevant to this
			// pipeline and ignored.
		}
	}
}

// takeFrame returns the accumulated frame if it is dispatchable (both an
// event type and data were seen) and resets the accumulator either way.
func (p *Parser) takeFrame() (Frame, bool) {
	event := p.event
	data := strings.Join(p.dataLines, "\n")
	ok := event != "" && len(p.dataLines) > 0

	p.event = ""
	p.dataLines = nil
	return Frame{Event: event, Data: data}, ok
}

// splitField separates an SSE line into field name and value at the first
// colon, stripping a single leading space from the value per the SSE format.
// A line with no colon is a bare field name with an empty value.
func splitField(line string) (field, value string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}

// readLine reads one line, treating CR, LF, and CRLF as terminators.
// bufio.Scanner handles only LF and CRLF, so lines are assembled manually.
func (p *Parser) readLine() (string, error) {
	var b strings.Builder
	for {
		c, err := p.r.ReadByte()
		if err != nil {
			if err == io.EOF && b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}

		switch c {
		case '\n':
			return b.String(), nil
		case '\r':
			// Consume the LF of a CRLF pair if present.
			next, err := p.r.ReadByte()
			if err == nil && next != '\n' {
				_ = p.r.UnreadByte()
			}
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
}
