package container

import (
	"encoding/binary"
	"io"
	"math"
)

// cursor walks a fixed-size record buffer field by field. All container
// layouts are little-endian; the cursor panics on overrun, which cannot
// happen when the caller sized the buffer from the layout registry.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) u8() uint8 {
	v := c.buf[c.off]
	c.off++
	return v
}

func (c *cursor) bool8() bool {
	return c.u8() != 0
}

func (c *cursor) u32() uint32 {
	v := binary.LittleEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v
}

func (c *cursor) i32() int32 {
	return int32(c.u32())
}

func (c *cursor) u64() uint64 {
	v := binary.LittleEndian.Uint64(c.buf[c.off:])
	c.off += 8
	return v
}

func (c *cursor) i64() int64 {
	return int64(c.u64())
}

func (c *cursor) f32() float32 {
	return math.Float32frombits(c.u32())
}

// fieldWriter mirrors cursor for encoding. It accumulates into a
// caller-supplied buffer so a writer can reuse one scratch allocation
// across records.
type fieldWriter struct {
	buf []byte
}

func (w *fieldWriter) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *fieldWriter) bool8(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *fieldWriter) pad(n int) { w.buf = append(w.buf, make([]byte, n)...) }

func (w *fieldWriter) u32(v uint32)  { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *fieldWriter) i32(v int32)   { w.u32(uint32(v)) }
func (w *fieldWriter) u64(v uint64)  { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *fieldWriter) i64(v int64)   { w.u64(uint64(v)) }
func (w *fieldWriter) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *fieldWriter) flush(out io.Writer) error {
	_, err := out.Write(w.buf)
	w.buf = w.buf[:0]
	return err
}
