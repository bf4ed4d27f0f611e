// Package readbuf provides the exact-read primitive shared by the file
// container readers and the live stream demultiplexer. It exists so that
// every decoder distinguishes the same three outcomes of a read at a
// record boundary: the full byte count, a clean zero-byte end, or a
// truncation partway through.
package readbuf

import (
	"fmt"
	"io"

	"github.com/banshee-data/ml2raw/internal/mlraw"
)

// ReadExact reads exactly n bytes from r.
//
// Outcomes:
//   - n bytes available: returns the bytes with a nil error.
//   - zero bytes available (source ended at the boundary): returns io.EOF
//     with no bytes. File readers treat this as a normal end-of-container;
//     the wire demultiplexer ends its run cleanly.
//   - between 1 and n-1 bytes available: returns mlraw.ErrShortRead
//     (wrapped with the byte counts). The partial bytes are discarded;
//     callers must not advance past the record boundary they were at.
func ReadExact(r io.Reader, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return buf, nil
	case err == io.EOF:
		// Nothing at all: clean boundary end.
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		return nil, fmt.Errorf("%w: wanted %d bytes, got %d", mlraw.ErrShortRead, n, read)
	default:
		return nil, err
	}
}

// Discard reads and throws away exactly n bytes, with the same boundary
// semantics as ReadExact. Used to skip opaque payloads without holding
// them in memory.
func Discard(r io.Reader, n int64) error {
	copied, err := io.CopyN(io.Discard, r, n)
	switch {
	case err == nil:
		return nil
	case err == io.EOF && copied == 0:
		return io.EOF
	case err == io.EOF:
		return fmt.Errorf("%w: wanted %d bytes, got %d", mlraw.ErrShortRead, n, copied)
	default:
		return err
	}
}
