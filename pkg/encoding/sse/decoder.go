package sse

import (
	"bytes"
	"strconv"
	"strings"
)

// DefaultEventType is the frame type used when no "event" field was given.
const DefaultEventType = "message"

var bom = []byte{0xEF, 0xBB, 0xBF}

// Frame is one dispatched server-sent event.
type Frame struct {
	// Event is the "event" field, or DefaultEventType.
	Event string
	// Data is the concatenation of all "data" lines joined with "\n".
	Data string
	// ID is the last event id seen on the stream, which persists across frames.
	ID string
	// Retry is the reconnection delay in milliseconds announced since the
	// previous dispatched frame, if any.
	Retry *int
}

// Decoder incrementally splits a text/event-stream body into frames. Input
// may be cut at arbitrary byte offsets, including inside a CRLF pair or a
// multi-byte UTF-8 sequence. Frame payloads are unbounded.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf        []byte
	skipLF     bool
	bomChecked bool

	data      []string
	hasData   bool
	eventType string
	lastID    string
	retry     *int
}

// NewDecoder returns a decoder at the start of a stream.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// LastEventID returns the id that a reconnecting client should send.
func (d *Decoder) LastEventID() string {
	return d.lastID
}

// Feed consumes the next chunk and returns the frames it completed.
func (d *Decoder) Feed(chunk []byte) []Frame {
	from := len(d.buf)
	d.buf = append(d.buf, chunk...)

	if !d.bomChecked {
		if len(d.buf) < len(bom) && bytes.HasPrefix(bom, d.buf) {
			return nil
		}
		d.bomChecked = true
		if bytes.HasPrefix(d.buf, bom) {
			d.buf = d.buf[len(bom):]
		}
		from = 0
	}

	var frames []Frame
	start := 0
	for i := from; i < len(d.buf); i++ {
		c := d.buf[i]
		if d.skipLF {
			d.skipLF = false
			if c == '\n' {
				start = i + 1
				continue
			}
		}
		if c != '\r' && c != '\n' {
			continue
		}
		frames = d.processLine(d.buf[start:i], frames)
		start = i + 1
		d.skipLF = c == '\r'
	}

	if start > 0 {
		rest := len(d.buf) - start
		copy(d.buf, d.buf[start:])
		d.buf = d.buf[:rest]
	}
	return frames
}

// Finalize flushes a trailing line and any frame that was not terminated by
// a blank line. Calling it again without further input returns nothing.
func (d *Decoder) Finalize() []Frame {
	var frames []Frame
	d.bomChecked = true
	if len(d.buf) > 0 {
		frames = d.processLine(d.buf, frames)
		d.buf = d.buf[:0]
	}
	d.skipLF = false
	return d.dispatch(frames)
}

func (d *Decoder) processLine(line []byte, frames []Frame) []Frame {
	if len(line) == 0 {
		return d.dispatch(frames)
	}
	if line[0] == ':' {
		return frames
	}

	field, value := line, []byte(nil)
	if idx := bytes.IndexByte(line, ':'); idx >= 0 {
		field, value = line[:idx], line[idx+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
	}

	switch string(field) {
	case "data":
		d.data = append(d.data, string(value))
		d.hasData = true
	case "event":
		d.eventType = string(value)
	case "id":
		if bytes.IndexByte(value, 0) < 0 {
			d.lastID = string(value)
		}
	case "retry":
		if isDigits(value) {
			if n, err := strconv.Atoi(string(value)); err == nil {
				d.retry = &n
			}
		}
	}
	return frames
}

func (d *Decoder) dispatch(frames []Frame) []Frame {
	if !d.hasData {
		d.eventType = ""
		d.retry = nil
		return frames
	}
	frame := Frame{
		Event: d.eventType,
		Data:  strings.ToValidUTF8(strings.Join(d.data, "\n"), "\uFFFD"),
		ID:    d.lastID,
		Retry: d.retry,
	}
	if frame.Event == "" {
		frame.Event = DefaultEventType
	}
	d.data = d.data[:0]
	d.hasData = false
	d.eventType = ""
	d.retry = nil
	return append(frames, frame)
}

func isDigits(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
