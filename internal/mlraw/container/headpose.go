package container

import (
	"fmt"
	"io"

	"github.com/banshee-data/ml2raw/internal/mlraw"
	"github.com/banshee-data/ml2raw/internal/mlraw/layout"
	"github.com/banshee-data/ml2raw/internal/mlraw/readbuf"
)

// HeadPoseReader iterates the fixed-width records of a HEADPOSE
// container (version 2, the only layout observed in the wild).
type HeadPoseReader struct {
	r      io.Reader
	header Header
	lay    layout.RecordLayout
	tail   tail
}

// NewHeadPoseReader validates the container header and positions the
// reader at the first record.
func NewHeadPoseReader(r io.Reader) (*HeadPoseReader, error) {
	hdr, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Kind != mlraw.KindHeadPose {
		return nil, fmt.Errorf("%w: %s container opened as headpose", mlraw.ErrUnrecognizedFormat, hdr.Kind)
	}
	lay, ok := layout.Lookup(mlraw.KindHeadPose, hdr.Version)
	if !ok {
		return nil, fmt.Errorf("%w: headpose version %d", mlraw.ErrUnsupportedVersion, hdr.Version)
	}
	return &HeadPoseReader{r: r, header: hdr, lay: lay}, nil
}

// Header returns the container header.
func (hr *HeadPoseReader) Header() Header { return hr.header }

// Truncated reports whether iteration ended inside a record. Only
// meaningful once Next has returned io.EOF.
func (hr *HeadPoseReader) Truncated() bool { return hr.tail.truncated }

// Next decodes and returns the next record, or io.EOF at the end of the
// container. A partial tail record ends iteration without error.
func (hr *HeadPoseReader) Next() (*mlraw.HeadPoseRecord, error) {
	if hr.tail.done {
		return nil, io.EOF
	}
	buf, err := readbuf.ReadExact(hr.r, hr.lay.RecordSize)
	if err != nil {
		return nil, hr.tail.finish(err)
	}

	c := cursor{buf: buf}
	rec := &mlraw.HeadPoseRecord{
		FrameIndex:  c.u32(),
		UnityTime:   c.f32(),
		TimestampNs: c.i64(),
		ResultCode:  c.i32(),
		Rotation:    mlraw.Quat{X: c.f32(), Y: c.f32(), Z: c.f32(), W: c.f32()},
		Position:    mlraw.Vec3{X: c.f32(), Y: c.f32(), Z: c.f32()},
	}
	rec.Status = c.u32()
	rec.Confidence = c.f32()
	rec.ErrorFlags = c.u32()
	rec.HasMapEvent = c.bool8()
	rec.MapEventsMask = c.u64()
	return rec, nil
}

// HeadPoseWriter appends version-2 HEADPOSE records to a container.
type HeadPoseWriter struct {
	w  io.Writer
	fw fieldWriter
}

// NewHeadPoseWriter writes the HEADPOSE container header.
func NewHeadPoseWriter(w io.Writer) (*HeadPoseWriter, error) {
	if err := writeHeader(w, mlraw.KindHeadPose, 2); err != nil {
		return nil, err
	}
	return &HeadPoseWriter{w: w}, nil
}

// WriteRecord appends one record.
func (hw *HeadPoseWriter) WriteRecord(rec *mlraw.HeadPoseRecord) error {
	hw.fw.u32(rec.FrameIndex)
	hw.fw.f32(rec.UnityTime)
	hw.fw.i64(rec.TimestampNs)
	hw.fw.i32(rec.ResultCode)
	hw.fw.f32(rec.Rotation.X)
	hw.fw.f32(rec.Rotation.Y)
	hw.fw.f32(rec.Rotation.Z)
	hw.fw.f32(rec.Rotation.W)
	hw.fw.f32(rec.Position.X)
	hw.fw.f32(rec.Position.Y)
	hw.fw.f32(rec.Position.Z)
	hw.fw.u32(rec.Status)
	hw.fw.f32(rec.Confidence)
	hw.fw.u32(rec.ErrorFlags)
	hw.fw.bool8(rec.HasMapEvent)
	hw.fw.u64(rec.MapEventsMask)
	return hw.fw.flush(hw.w)
}
