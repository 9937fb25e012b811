package sse

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ag-ui/go-engine/pkg/core/events"
)

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

type flusher interface {
	Flush()
}

// Encoder writes frames in text/event-stream format. If the underlying
// writer can flush (such as an http.ResponseWriter), every frame is flushed
// as soon as it is written.
type Encoder struct {
	w     *bufio.Writer
	flush flusher
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	enc := &Encoder{w: bufio.NewWriter(w)}
	if f, ok := w.(flusher); ok {
		enc.flush = f
	}
	return enc
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// WriteFrame writes one frame. Multi-line data is split over several data
// lines so that a Decoder reproduces it with "\n" separators.
func (e *Encoder) WriteFrame(f Frame) error {
	if strings.ContainsAny(f.Event, "\r\n") || strings.ContainsAny(f.ID, "\r\n\x00") {
		return fmt.Errorf("sse: event and id fields must be single-line")
	}
	if f.Event != "" && f.Event != DefaultEventType {
		e.w.WriteString("event: " + f.Event + "\n")
	}
	if f.ID != "" {
		e.w.WriteString("id: " + f.ID + "\n")
	}
	if f.Retry != nil {
		e.w.WriteString("retry: " + strconv.Itoa(*f.Retry) + "\n")
	}
	for _, line := range strings.Split(lineBreaks.Replace(f.Data), "\n") {
		e.w.WriteString("data: " + line + "\n")
	}
	e.w.WriteString("\n")
	return e.Flush()
}

// WriteEvent writes an event as a single data frame: "data: <json>\n\n".
func (e *Encoder) WriteEvent(event events.Event) error {
	data, err := event.ToJSON()
	if err != nil {
		return err
	}
	return e.WriteFrame(Frame{Data: string(data)})
}

// WriteComment writes a comment line, typically as a keep-alive.
func (e *Encoder) WriteComment(text string) error {
	for _, line := range strings.Split(lineBreaks.Replace(text), "\n") {
		e.w.WriteString(":" + line + "\n")
	}
	return e.Flush()
}

// Flush writes buffered output to the underlying writer.
func (e *Encoder) Flush() error {
	if err := e.w.Flush(); err != nil {
		return err
	}
	if e.flush != nil {
		e.flush.Flush()
	}
	return nil
}
