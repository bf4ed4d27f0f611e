package container

import (
	"fmt"
	"io"

	"github.com/banshee-data/ml2raw/internal/mlraw"
	"github.com/banshee-data/ml2raw/internal/mlraw/layout"
	"github.com/banshee-data/ml2raw/internal/mlraw/readbuf"
)

// imuFieldBytes is how much of each record the decoded fields cover;
// the rest of the 54-byte stride is padding.
const imuFieldBytes = 46

// IMUReader iterates the fixed-width dual-sensor records of an IMURAW
// container. The header carries the configured sample rate in Hz.
type IMUReader struct {
	r      io.Reader
	header Header
	lay    layout.RecordLayout
	tail   tail
}

// NewIMUReader validates the container header and positions the reader
// at the first record.
func NewIMUReader(r io.Reader) (*IMUReader, error) {
	hdr, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Kind != mlraw.KindIMU {
		return nil, fmt.Errorf("%w: %s container opened as imu", mlraw.ErrUnrecognizedFormat, hdr.Kind)
	}
	lay, ok := layout.Lookup(mlraw.KindIMU, hdr.Version)
	if !ok {
		return nil, fmt.Errorf("%w: imu version %d", mlraw.ErrUnsupportedVersion, hdr.Version)
	}
	return &IMUReader{r: r, header: hdr, lay: lay}, nil
}

// Header returns the container header; SampleRateHz is carried in its
// extra field.
func (ir *IMUReader) Header() Header { return ir.header }

// Truncated reports whether iteration ended inside a record.
func (ir *IMUReader) Truncated() bool { return ir.tail.truncated }

// Next decodes and returns the next sample, or io.EOF at the end of the
// container.
func (ir *IMUReader) Next() (*mlraw.IMURecord, error) {
	if ir.tail.done {
		return nil, io.EOF
	}
	buf, err := readbuf.ReadExact(ir.r, ir.lay.RecordSize)
	if err != nil {
		return nil, ir.tail.finish(err)
	}

	// The 54-byte record carries 46 bytes of fields; the trailing 8
	// bytes are padding and stay undecoded.
	c := cursor{buf: buf}
	rec := &mlraw.IMURecord{FrameIndex: c.u32()}
	rec.Accel = mlraw.Vec3{X: c.f32(), Y: c.f32(), Z: c.f32()}
	rec.AccelTimestampNs = c.i64()
	rec.HasAccel = c.bool8()
	rec.Gyro = mlraw.Vec3{X: c.f32(), Y: c.f32(), Z: c.f32()}
	rec.GyroTimestampNs = c.i64()
	rec.HasGyro = c.bool8()
	return rec, nil
}

// IMUWriter appends IMURAW records to a container.
type IMUWriter struct {
	w  io.Writer
	fw fieldWriter
}

// NewIMUWriter writes the IMURAW container header with the given sample
// rate.
func NewIMUWriter(w io.Writer, sampleRateHz int32) (*IMUWriter, error) {
	if err := writeHeader(w, mlraw.KindIMU, 1, uint32(sampleRateHz)); err != nil {
		return nil, err
	}
	return &IMUWriter{w: w}, nil
}

// WriteRecord appends one sample.
func (iw *IMUWriter) WriteRecord(rec *mlraw.IMURecord) error {
	iw.fw.u32(rec.FrameIndex)
	iw.fw.f32(rec.Accel.X)
	iw.fw.f32(rec.Accel.Y)
	iw.fw.f32(rec.Accel.Z)
	iw.fw.i64(rec.AccelTimestampNs)
	iw.fw.bool8(rec.HasAccel)
	iw.fw.f32(rec.Gyro.X)
	iw.fw.f32(rec.Gyro.Y)
	iw.fw.f32(rec.Gyro.Z)
	iw.fw.i64(rec.GyroTimestampNs)
	iw.fw.bool8(rec.HasGyro)
	iw.fw.pad(layout.IMUV1RecordSize - imuFieldBytes)
	return iw.fw.flush(iw.w)
}
