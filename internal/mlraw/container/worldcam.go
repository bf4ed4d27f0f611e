package container

import (
	"fmt"
	"io"

	"github.com/banshee-data/ml2raw/internal/mlraw"
	"github.com/banshee-data/ml2raw/internal/mlraw/readbuf"
)

// worldcamFixedSize is the fixed portion of a WORLDCAM record preceding
// the image payload: u32 frameIndex, i64 timestampNs, u32 cameraId,
// u32 frameType, 4×i32 image geometry, i32 bytesWritten.
const worldcamFixedSize = 4 + 8 + 4 + 4 + 16 + 4

// WorldCamReader iterates the self-describing-length records of a
// WORLDCAM container. Frames from all cameras selected by the header's
// identifier mask are interleaved in capture order; CameraID tells them
// apart.
type WorldCamReader struct {
	r      io.Reader
	header Header
	tail   tail
}

// NewWorldCamReader validates the container header and positions the
// reader at the first record.
func NewWorldCamReader(r io.Reader) (*WorldCamReader, error) {
	hdr, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Kind != mlraw.KindWorldCam {
		return nil, fmt.Errorf("%w: %s container opened as worldcam", mlraw.ErrUnrecognizedFormat, hdr.Kind)
	}
	if hdr.Version != 1 {
		return nil, fmt.Errorf("%w: worldcam version %d", mlraw.ErrUnsupportedVersion, hdr.Version)
	}
	return &WorldCamReader{r: r, header: hdr}, nil
}

// Header returns the container header; IdentifiersMask is carried in
// its extra field.
func (wr *WorldCamReader) Header() Header { return wr.header }

// Truncated reports whether iteration ended inside a record.
func (wr *WorldCamReader) Truncated() bool { return wr.tail.truncated }

// Next decodes and returns the next record, or io.EOF at the end of the
// container.
func (wr *WorldCamReader) Next() (*mlraw.WorldCamRecord, error) {
	if wr.tail.done {
		return nil, io.EOF
	}
	buf, err := readbuf.ReadExact(wr.r, worldcamFixedSize)
	if err != nil {
		return nil, wr.tail.finish(err)
	}

	c := cursor{buf: buf}
	rec := &mlraw.WorldCamRecord{
		FrameIndex:    c.u32(),
		TimestampNs:   c.i64(),
		CameraID:      c.u32(),
		FrameType:     c.u32(),
		Width:         c.i32(),
		Height:        c.i32(),
		StrideBytes:   c.i32(),
		BytesPerPixel: c.i32(),
	}

	byteCount := c.i32()
	if byteCount < 0 {
		wr.tail.done = true
		return nil, fmt.Errorf("worldcam frame %d declares negative image size %d", rec.FrameIndex, byteCount)
	}
	if byteCount > 0 {
		img, err := readbuf.ReadExact(wr.r, int(byteCount))
		if err != nil {
			if err == io.EOF {
				wr.tail.done = true
				wr.tail.truncated = true
				return nil, io.EOF
			}
			return nil, wr.tail.finish(err)
		}
		rec.Image = img
	}
	return rec, nil
}

// WorldCamWriter appends WORLDCAM records to a container.
type WorldCamWriter struct {
	w  io.Writer
	fw fieldWriter
}

// NewWorldCamWriter writes the WORLDCAM container header with the given
// camera identifier mask.
func NewWorldCamWriter(w io.Writer, identifiersMask uint32) (*WorldCamWriter, error) {
	if err := writeHeader(w, mlraw.KindWorldCam, 1, identifiersMask); err != nil {
		return nil, err
	}
	return &WorldCamWriter{w: w}, nil
}

// WriteRecord appends one record; the image byte count field is taken
// from len(rec.Image).
func (ww *WorldCamWriter) WriteRecord(rec *mlraw.WorldCamRecord) error {
	ww.fw.u32(rec.FrameIndex)
	ww.fw.i64(rec.TimestampNs)
	ww.fw.u32(rec.CameraID)
	ww.fw.u32(rec.FrameType)
	ww.fw.i32(rec.Width)
	ww.fw.i32(rec.Height)
	ww.fw.i32(rec.StrideBytes)
	ww.fw.i32(rec.BytesPerPixel)
	ww.fw.i32(int32(len(rec.Image)))
	ww.fw.buf = append(ww.fw.buf, rec.Image...)
	return ww.fw.flush(ww.w)
}
