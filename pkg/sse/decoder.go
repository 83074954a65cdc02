package sse

import "bytes"

var separator = []byte("\n\n")

// Decoder splits an incrementally delivered byte stream into complete SSE
// blocks. The buffer holds raw bytes so a multi-byte rune split across two
// chunks is only converted to a string once its block is complete.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf []byte
}

// Feed appends chunk to the buffer and returns every block that is now
// terminated by a blank line, in arrival order. The trailing partial block is
// retained for the next call. Empty pieces between consecutive separators are
// skipped.
func (d *Decoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var blocks []string
	for {
		idx := bytes.Index(d.buf, separator)
		if idx < 0 {
			break
		}
		if idx > 0 {
			blocks = append(blocks, string(d.buf[:idx]))
		}
		d.buf = d.buf[idx+len(separator):]
	}

	// Compact so the backing array does not grow without bound on long
	// streams.
	if len(d.buf) == 0 {
		d.buf = d.buf[:0:0]
	} else if cap(d.buf) > 4*len(d.buf) && cap(d.buf) > 4096 {
		d.buf = append([]byte(nil), d.buf...)
	}

	return blocks
}

// Buffered returns the number of bytes held back as a partial block.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Discard drops any partial trailing block and returns its length. It is
// called at end of stream: an unterminated frame is never emitted.
func (d *Decoder) Discard() int {
	n := len(d.buf)
	d.buf = nil
	return n
}
