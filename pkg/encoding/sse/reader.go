package sse

import (
	"errors"
	"io"
)

const defaultReadSize = 32 * 1024

// Reader yields frames from an io.Reader carrying a text/event-stream body.
type Reader struct {
	src     io.Reader
	dec     *Decoder
	buf     []byte
	pending []Frame
	err     error
}

// NewReader wraps src.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src, dec: NewDecoder(), buf: make([]byte, defaultReadSize)}
}

// Next returns the next frame. At a clean end of input the trailing frame is
// flushed and io.EOF follows. Any other read error is returned after the
// frames already completed have been delivered; a partial frame is dropped.
func (r *Reader) Next() (Frame, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return Frame{}, r.err
		}
		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pending = append(r.pending, r.dec.Feed(r.buf[:n])...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.pending = append(r.pending, r.dec.Finalize()...)
				r.err = io.EOF
			} else {
				r.err = err
			}
		}
	}
	frame := r.pending[0]
	r.pending = r.pending[1:]
	return frame, nil
}

// LastEventID returns the last id seen on the stream.
func (r *Reader) LastEventID() string {
	return r.dec.LastEventID()
}
