package core

import (
	"context"
	"io"
	"sync"

	"github.com/ag-ui/go-engine/pkg/core/events"
)

// SliceStream returns a stream that yields the given events and then io.EOF.
func SliceStream(evts ...events.Event) EventStream {
	return &sliceStream{events: evts}
}

type sliceStream struct {
	mu     sync.Mutex
	events []events.Event
	pos    int
	closed bool
}

func (s *sliceStream) Next(ctx context.Context) (events.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	event := s.events[s.pos]
	s.pos++
	return event, nil
}

func (s *sliceStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// PipeWriter is the producing half of a Pipe.
type PipeWriter struct {
	items  chan events.Event
	done   chan struct{} // closed by the reader
	closed chan struct{} // closed by Close, after err is set
	err    error
	once   sync.Once
}

// Pipe returns a synchronous in-memory stream. Each Send blocks until the
// reader takes the event, so the reader controls the pace of the writer.
func Pipe() (*PipeWriter, EventStream) {
	w := &PipeWriter{
		items:  make(chan events.Event),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	return w, &pipeReader{w: w}
}

// Send delivers an event to the reader. It returns ErrStreamClosed once
// either side has closed the stream.
func (w *PipeWriter) Send(ctx context.Context, event events.Event) error {
	select {
	case <-w.closed:
		return ErrStreamClosed
	default:
	}
	select {
	case w.items <- event:
		return nil
	case <-w.closed:
		return ErrStreamClosed
	case <-w.done:
		return ErrStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream. A nil err makes the reader see io.EOF. It never
// blocks, whether or not anyone reads.
func (w *PipeWriter) Close(err error) {
	if err == nil {
		err = io.EOF
	}
	w.once.Do(func() {
		w.err = err
		close(w.closed)
	})
}

type pipeReader struct {
	w    *PipeWriter
	once sync.Once
}

func (r *pipeReader) Next(ctx context.Context) (events.Event, error) {
	select {
	case <-r.w.closed:
		return nil, r.w.err
	default:
	}
	select {
	case event := <-r.w.items:
		return event, nil
	case <-r.w.closed:
		return nil, r.w.err
	case <-r.w.done:
		return nil, ErrStreamClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *pipeReader) Close() error {
	r.once.Do(func() { close(r.w.done) })
	return nil
}
