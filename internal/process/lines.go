package process

import "bytes"

// maxObjectSize bounds a single JSON object. An unbalanced brace would otherwise
// swallow the rest of the stream.
const maxObjectSize = 4 << 20

// LineAssembler turns a stream of arbitrary reads into logical lines.
//
// A logical line is newline- or carriage-return-terminated text, or, when the text starts
// with "{", a brace-balanced JSON object that may span any number of reads. Braces inside
// quoted strings are ignored and escaped quotes are respected.
type LineAssembler struct {
	buf      []byte
	inObject bool
	depth    int
	inString bool
	escaped  bool
}

// Feed consumes p and returns the lines it completed, in order. Empty lines are dropped.
func (a *LineAssembler) Feed(p []byte) []string {
	var lines []string
	for _, c := range p {
		if a.inObject {
			a.buf = append(a.buf, c)
			if a.scanObjectByte(c) {
				lines = append(lines, string(a.buf))
				a.reset()
			} else if len(a.buf) > maxObjectSize {
				lines = append(lines, string(a.buf))
				a.reset()
			}
			continue
		}

		switch c {
		case '\n', '\r':
			if line := a.flushText(); line != "" {
				lines = append(lines, line)
			}
		case '{':
			a.buf = append(a.buf, c)
			if len(bytes.TrimSpace(a.buf[:len(a.buf)-1])) == 0 {
				a.buf = a.buf[:0]
				a.buf = append(a.buf, '{')
				a.inObject = true
				a.depth = 1
			}
		default:
			a.buf = append(a.buf, c)
		}
	}
	return lines
}

// Pending returns whatever has been read but not yet terminated.
func (a *LineAssembler) Pending() string {
	return string(bytes.TrimSpace(a.buf))
}

// scanObjectByte advances the brace state machine and reports whether the object closed.
func (a *LineAssembler) scanObjectByte(c byte) bool {
	if a.inString {
		switch {
		case a.escaped:
			a.escaped = false
		case c == '\\':
			a.escaped = true
		case c == '"':
			a.inString = false
		}
		return false
	}

	switch c {
	case '"':
		a.inString = true
	case '{':
		a.depth++
	case '}':
		a.depth--
		return a.depth == 0
	}
	return false
}

func (a *LineAssembler) flushText() string {
	line := string(bytes.TrimSpace(a.buf))
	a.buf = a.buf[:0]
	return line
}

func (a *LineAssembler) reset() {
	a.buf = a.buf[:0]
	a.inObject = false
	a.depth = 0
	a.inString = false
	a.escaped = false
}
