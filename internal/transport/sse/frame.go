package sse

import (
	"bytes"
	"io"
	"strings"
)

// Frame is one text/event-stream message. A frame with only Comment set is a keepalive.
type Frame struct {
	Event   string
	Data    []byte
	Comment string
}

// WriteTo encodes the frame terminated by a blank line.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	if f.Comment != "" {
		for _, line := range strings.Split(f.Comment, "\n") {
			buf.WriteString(": ")
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	if f.Event != "" {
		buf.WriteString("event: ")
		buf.WriteString(f.Event)
		buf.WriteByte('\n')
	}
	if f.Data != nil {
		for _, line := range bytes.Split(f.Data, []byte("\n")) {
			buf.WriteString("data: ")
			buf.Write(line)
			buf.WriteByte('\n')
		}
	}
	buf.WriteByte('\n')

	return buf.WriteTo(w)
}
