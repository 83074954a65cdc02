package sse

import (
	"errors"
	"io"
)

const defaultChunkSize = 4 * 1024

// Reader yields complete SSE blocks from a source io.Reader, optionally
// writing every raw byte verbatim to a destination io.Writer as it goes.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │  Reader.Next()   │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │   block string   │
// └──────────────────┘
//
// The destination sees the exact bytes received, including any trailing
// partial frame that the decoder later discards.
type Reader struct {
	src  io.Reader
	dest io.Writer

	dec     Decoder
	chunk   []byte
	pending []string

	// discarded is the size of the partial frame dropped at end of stream.
	discarded int
	err       error
}

// NewReader returns a Reader over src with no tee destination.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader over src that writes all raw bytes through to
// dest. A nil dest disables the tee.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	return &Reader{
		src:   src,
		dest:  dest,
		chunk: make([]byte, defaultChunkSize),
	}
}

// Next returns the next complete block. It blocks until one is available.
// At end of stream any partial frame is discarded and io.EOF is returned.
// Any other source or destination error is returned as-is; the Reader is not
// usable afterwards.
func (r *Reader) Next() (string, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return "", r.err
		}

		n, err := r.src.Read(r.chunk)
		if n > 0 {
			if r.dest != nil {
				if _, werr := r.dest.Write(r.chunk[:n]); werr != nil {
					r.err = werr
					return "", werr
				}
			}
			r.pending = r.dec.Feed(r.chunk[:n])
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				r.discarded = r.dec.Discard()
				r.err = io.EOF
			} else {
				r.err = err
			}
		}
	}

	block := r.pending[0]
	r.pending = r.pending[1:]
	return block, nil
}

// Discarded returns the number of bytes of the unterminated trailing frame
// dropped at end of stream. It is zero until Next has returned io.EOF.
func (r *Reader) Discarded() int {
	return r.discarded
}
