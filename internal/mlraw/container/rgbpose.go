package container

import (
	"fmt"
	"io"

	"github.com/banshee-data/ml2raw/internal/mlraw"
	"github.com/banshee-data/ml2raw/internal/mlraw/readbuf"
)

// rgbposeFixedSize is the fixed portion of an RGBPOSE record preceding
// the image payload: u32 frameIndex, f32 unityTime, i64 timestampNs,
// 4×i32 image geometry, u8 poseValid, i32 resultCode, 4×f32 quat,
// 3×f32 pos, i32 bytesWritten.
const rgbposeFixedSize = 4 + 4 + 8 + 16 + 1 + 4 + 16 + 12 + 4

// RGBPoseReader iterates the self-describing-length records of an
// RGBPOSE container. Each record embeds its own image byte count, which
// must be consumed in full before the next record begins.
type RGBPoseReader struct {
	r      io.Reader
	header Header
	tail   tail
}

// NewRGBPoseReader validates the container header and positions the
// reader at the first record.
func NewRGBPoseReader(r io.Reader) (*RGBPoseReader, error) {
	hdr, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Kind != mlraw.KindRGBPose {
		return nil, fmt.Errorf("%w: %s container opened as rgbpose", mlraw.ErrUnrecognizedFormat, hdr.Kind)
	}
	if hdr.Version != 1 {
		return nil, fmt.Errorf("%w: rgbpose version %d", mlraw.ErrUnsupportedVersion, hdr.Version)
	}
	return &RGBPoseReader{r: r, header: hdr}, nil
}

// Header returns the container header; CaptureMode is carried in its
// extra field.
func (rr *RGBPoseReader) Header() Header { return rr.header }

// Truncated reports whether iteration ended inside a record.
func (rr *RGBPoseReader) Truncated() bool { return rr.tail.truncated }

// Next decodes and returns the next record, or io.EOF at the end of the
// container. A record whose image payload is cut short is discarded.
func (rr *RGBPoseReader) Next() (*mlraw.RGBPoseRecord, error) {
	if rr.tail.done {
		return nil, io.EOF
	}
	buf, err := readbuf.ReadExact(rr.r, rgbposeFixedSize)
	if err != nil {
		return nil, rr.tail.finish(err)
	}

	c := cursor{buf: buf}
	rec := &mlraw.RGBPoseRecord{
		FrameIndex:  c.u32(),
		UnityTime:   c.f32(),
		TimestampNs: c.i64(),
		Width:       c.i32(),
		Height:      c.i32(),
		StrideBytes: c.i32(),
		Format:      c.i32(),
		PoseValid:   c.bool8(),
		ResultCode:  c.i32(),
		Rotation:    mlraw.Quat{X: c.f32(), Y: c.f32(), Z: c.f32(), W: c.f32()},
		Position:    mlraw.Vec3{X: c.f32(), Y: c.f32(), Z: c.f32()},
	}

	byteCount := c.i32()
	if byteCount < 0 {
		rr.tail.done = true
		return nil, fmt.Errorf("rgbpose frame %d declares negative image size %d", rec.FrameIndex, byteCount)
	}
	if byteCount > 0 {
		img, err := readbuf.ReadExact(rr.r, int(byteCount))
		if err != nil {
			if err == io.EOF {
				// Image missing entirely counts as a truncated record,
				// not a clean boundary.
				rr.tail.done = true
				rr.tail.truncated = true
				return nil, io.EOF
			}
			return nil, rr.tail.finish(err)
		}
		rec.Image = img
	}
	return rec, nil
}

// RGBPoseWriter appends RGBPOSE records to a container.
type RGBPoseWriter struct {
	w  io.Writer
	fw fieldWriter
}

// NewRGBPoseWriter writes the RGBPOSE container header with the given
// capture mode.
func NewRGBPoseWriter(w io.Writer, captureMode int32) (*RGBPoseWriter, error) {
	if err := writeHeader(w, mlraw.KindRGBPose, 1, uint32(captureMode)); err != nil {
		return nil, err
	}
	return &RGBPoseWriter{w: w}, nil
}

// WriteRecord appends one record; the image byte count field is taken
// from len(rec.Image).
func (rw *RGBPoseWriter) WriteRecord(rec *mlraw.RGBPoseRecord) error {
	rw.fw.u32(rec.FrameIndex)
	rw.fw.f32(rec.UnityTime)
	rw.fw.i64(rec.TimestampNs)
	rw.fw.i32(rec.Width)
	rw.fw.i32(rec.Height)
	rw.fw.i32(rec.StrideBytes)
	rw.fw.i32(rec.Format)
	rw.fw.bool8(rec.PoseValid)
	rw.fw.i32(rec.ResultCode)
	rw.fw.f32(rec.Rotation.X)
	rw.fw.f32(rec.Rotation.Y)
	rw.fw.f32(rec.Rotation.Z)
	rw.fw.f32(rec.Rotation.W)
	rw.fw.f32(rec.Position.X)
	rw.fw.f32(rec.Position.Y)
	rw.fw.f32(rec.Position.Z)
	rw.fw.i32(int32(len(rec.Image)))
	rw.fw.buf = append(rw.fw.buf, rec.Image...)
	return rw.fw.flush(rw.w)
}
