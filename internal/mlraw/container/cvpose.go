package container

import (
	"fmt"
	"io"

	"github.com/banshee-data/ml2raw/internal/mlraw"
	"github.com/banshee-data/ml2raw/internal/mlraw/layout"
)

// CVPoseReader iterates the records of a CVPOSE container.
//
// Because the declared version of old CVPOSE files can be wrong, the
// reader consumes the whole trailing byte range at open time and
// resolves the actual record layout structurally before yielding the
// first record. The resolved layout is fixed for the reader's lifetime
// and available via Layout.
type CVPoseReader struct {
	header Header
	lay    layout.RecordLayout
	data   []byte
	off    int
	tail   tail
}

// NewCVPoseReader reads the container header, slurps the record bytes,
// and resolves which historical CVPOSE layout they carry.
func NewCVPoseReader(r io.Reader) (*CVPoseReader, error) {
	hdr, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Kind != mlraw.KindCVPose {
		return nil, fmt.Errorf("%w: %s container opened as cvpose", mlraw.ErrUnrecognizedFormat, hdr.Kind)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading cvpose records: %w", err)
	}

	lay, err := Resolve(mlraw.KindCVPose, hdr.Version, int64(len(data)))
	if err != nil {
		return nil, err
	}

	return &CVPoseReader{header: hdr, lay: lay, data: data}, nil
}

// Header returns the container header as declared on disk. Note that
// Header.Version may disagree with Layout().Version when the probe
// overrode a lying version marker.
func (cr *CVPoseReader) Header() Header { return cr.header }

// Layout returns the record layout the reader resolved for this
// container.
func (cr *CVPoseReader) Layout() layout.RecordLayout { return cr.lay }

// Truncated reports whether the container ends with a partial record
// under the resolved layout.
func (cr *CVPoseReader) Truncated() bool {
	return int64(len(cr.data))%int64(cr.lay.RecordSize) != 0
}

// Next decodes and returns the next record, or io.EOF after the last
// whole record. A partial tail record is never yielded.
func (cr *CVPoseReader) Next() (*mlraw.CVPoseRecord, error) {
	if cr.tail.done {
		return nil, io.EOF
	}
	if cr.off+cr.lay.RecordSize > len(cr.data) {
		cr.tail.done = true
		cr.tail.truncated = cr.Truncated()
		return nil, io.EOF
	}

	c := cursor{buf: cr.data[cr.off : cr.off+cr.lay.RecordSize]}
	cr.off += cr.lay.RecordSize

	rec := &mlraw.CVPoseRecord{Variant: mlraw.CVPoseVariant(cr.lay.Version)}
	rec.RecordIndex = c.u32()
	rec.UnityTime = c.f32()
	if rec.Variant == mlraw.CVPoseV2 {
		rec.RGBFrameIndex = c.u32()
	}
	rec.TimestampNs = c.i64()
	rec.ResultCode = c.i32()
	rec.Rotation = mlraw.Quat{X: c.f32(), Y: c.f32(), Z: c.f32(), W: c.f32()}
	rec.Position = mlraw.Vec3{X: c.f32(), Y: c.f32(), Z: c.f32()}
	return rec, nil
}

// CVPoseWriter appends CVPOSE records to a container. The declared
// header version and the record variant are independent so tests and
// replay tooling can reproduce the historical files whose version
// marker lies about their contents.
type CVPoseWriter struct {
	w       io.Writer
	variant mlraw.CVPoseVariant
	fw      fieldWriter
}

// NewCVPoseWriter writes a CVPOSE container header declaring the given
// version, with records encoded in the given variant.
func NewCVPoseWriter(w io.Writer, declared int32, variant mlraw.CVPoseVariant) (*CVPoseWriter, error) {
	if err := writeHeader(w, mlraw.KindCVPose, declared); err != nil {
		return nil, err
	}
	return &CVPoseWriter{w: w, variant: variant}, nil
}

// WriteRecord appends one record in the writer's variant.
func (cw *CVPoseWriter) WriteRecord(rec *mlraw.CVPoseRecord) error {
	cw.fw.u32(rec.RecordIndex)
	cw.fw.f32(rec.UnityTime)
	if cw.variant == mlraw.CVPoseV2 {
		cw.fw.u32(rec.RGBFrameIndex)
	}
	cw.fw.i64(rec.TimestampNs)
	cw.fw.i32(rec.ResultCode)
	cw.fw.f32(rec.Rotation.X)
	cw.fw.f32(rec.Rotation.Y)
	cw.fw.f32(rec.Rotation.Z)
	cw.fw.f32(rec.Rotation.W)
	cw.fw.f32(rec.Position.X)
	cw.fw.f32(rec.Position.Y)
	cw.fw.f32(rec.Position.Z)
	return cw.fw.flush(cw.w)
}
