package stream

import (
	"bytes"
	"strings"
)

// LineDecoder splits an arbitrarily chunked byte stream into lines. The
// trailing partial line of each write is carried over and prefixed to the
// next one, so a line is never returned before its terminator arrives.
//
// Splitting happens on raw bytes; a UTF-8 sequence cannot contain '\r' or
// '\n', so multi-byte characters cut across writes are reassembled before
// decoding.
type LineDecoder struct {
	buf []byte
	// pendingCR is set when the last write ended on '\r', so a '\n' opening
	// the next write belongs to the same terminator.
	pendingCR bool
}

// Write appends p and returns every line completed by it, without the line
// terminator. "\n", "\r\n" and a bare "\r" all end a line, including a
// "\r\n" pair split across two writes. Invalid UTF-8 is replaced with
// U+FFFD.
func (d *LineDecoder) Write(p []byte) []string {
	if len(p) == 0 {
		return nil
	}
	if d.pendingCR {
		d.pendingCR = false
		if p[0] == '\n' {
			p = p[1:]
		}
	}
	d.buf = append(d.buf, p...)

	var lines []string
	start := 0
	for {
		i := bytes.IndexAny(d.buf[start:], "\r\n")
		if i < 0 {
			break
		}
		end := start + i
		lines = append(lines, strings.ToValidUTF8(string(d.buf[start:end]), "\uFFFD"))
		start = end + 1
		if d.buf[end] == '\r' {
			switch {
			case start == len(d.buf):
				d.pendingCR = true
			case d.buf[start] == '\n':
				start++
			}
		}
	}

	if start > 0 {
		n := copy(d.buf, d.buf[start:])
		d.buf = d.buf[:n]
	}
	return lines
}

// Pending returns the buffered partial line.
func (d *LineDecoder) Pending() []byte {
	return d.buf
}

// Reset discards any buffered partial line.
func (d *LineDecoder) Reset() {
	d.buf = d.buf[:0]
	d.pendingCR = false
}

// dataPayload returns the payload of a "data:" line.
func dataPayload(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(rest, " "), true
}
