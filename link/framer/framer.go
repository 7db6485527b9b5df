package framer

import (
	"bytes"

	"github.com/ValentinKolb/rlink/link/common"
)

// Framer splits a continuous byte stream, arriving in chunks of arbitrary size,
// into frame strings separated by a single delimiter byte. Partial trailing
// data is buffered across chunks.
//
// A Framer is not safe for concurrent use, it is owned by the receive loop.
type Framer struct {
	delimiter byte
	maxSize   int
	buf       []byte
}

// NewFramer creates a new framer. maxSize bounds the bytes buffered without
// seeing a delimiter, values < 1 disable the limit.
func NewFramer(delimiter byte, maxSize int) *Framer {
	return &Framer{
		delimiter: delimiter,
		maxSize:   maxSize,
	}
}

// Feed appends chunk to the buffer and returns every complete frame in order.
// Empty frames (two delimiters in a row) are skipped.
//
// The returned error is a framing error and is informational: if the buffered
// remainder grows beyond the max size it is discarded, the frames completed by
// this chunk are still returned.
func (f *Framer) Feed(chunk []byte) ([]string, error) {
	f.buf = append(f.buf, chunk...)

	var frames []string
	for {
		i := bytes.IndexByte(f.buf, f.delimiter)
		if i < 0 {
			break
		}
		if i > 0 {
			frames = append(frames, string(f.buf[:i]))
		}
		f.buf = f.buf[i+1:]
	}

	// Reclaim the consumed prefix of the backing array
	if len(f.buf) == 0 {
		f.buf = nil
	} else if cap(f.buf) > 2*len(f.buf) {
		f.buf = append([]byte(nil), f.buf...)
	}

	if f.maxSize > 0 && len(f.buf) > f.maxSize {
		dropped := len(f.buf)
		f.buf = nil
		return frames, common.NewError(common.ErrKindFraming, "feed",
			&overflowError{dropped: dropped, limit: f.maxSize})
	}

	return frames, nil
}

// Buffered returns the number of bytes waiting for a delimiter
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset discards all buffered bytes
func (f *Framer) Reset() {
	f.buf = nil
}

// Encode appends the delimiter to a serialized frame
func Encode(frame []byte, delimiter byte) []byte {
	out := make([]byte, len(frame)+1)
	copy(out, frame)
	out[len(frame)] = delimiter
	return out
}
