// Package mlraw defines the shared data model for Magic Leap 2 raw sensor
// telemetry: the closed set of sensor kinds, the decoded record types for
// each file container, and the depth frame/block structures. Parsing lives
// in internal/mlraw/container (files) and internal/mlraw/mux (live wire);
// this package holds only types and invariants shared between them.
package mlraw

import (
	"fmt"
	"math"
)

// SensorKind identifies which sensor pipeline produced a container or
// stream. It is derived from a container's magic bytes once at open time
// and never changes afterwards.
type SensorKind int

const (
	KindUnknown  SensorKind = iota
	KindDepth               // DEPTHRAW: block-structured depth frames
	KindWorldCam            // WORLDCAM: grayscale world camera frames
	KindHeadPose            // HEADPOSE: head tracking pose records
	KindCVPose              // CVPOSE: computer-vision camera pose records
	KindRGBPose             // RGBPOSE: RGB frames with attached pose
	KindIMU                 // IMURAW: dual accel/gyro samples
)

// String returns the lower-case name used in log lines and file listings.
func (k SensorKind) String() string {
	switch k {
	case KindDepth:
		return "depth"
	case KindWorldCam:
		return "worldcam"
	case KindHeadPose:
		return "headpose"
	case KindCVPose:
		return "cvpose"
	case KindRGBPose:
		return "rgbpose"
	case KindIMU:
		return "imu"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Quat is a rotation quaternion in the device convention (x, y, z, w).
type Quat struct {
	X, Y, Z, W float32
}

// Norm returns the quaternion magnitude. Valid device poses should be
// close to 1; the health report uses this as a plausibility check.
func (q Quat) Norm() float64 {
	x := float64(q.X)
	y := float64(q.Y)
	z := float64(q.Z)
	w := float64(q.W)
	return math.Sqrt(x*x + y*y + z*z + w*w)
}

// Vec3 is a position or axis vector in metres (or m/s², rad/s for IMU).
type Vec3 struct {
	X, Y, Z float32
}

// HeadPoseRecord is one decoded HEADPOSE container record (version 2).
type HeadPoseRecord struct {
	FrameIndex    uint32
	UnityTime     float32
	TimestampNs   int64
	ResultCode    int32
	Rotation      Quat
	Position      Vec3
	Status        uint32
	Confidence    float32
	ErrorFlags    uint32
	HasMapEvent   bool
	MapEventsMask uint64
}

// CVPoseVariant tags which historical CVPOSE record layout a record was
// decoded from. The v2 layout inserts an RGB frame index between the
// unity time and the timestamp.
type CVPoseVariant int

const (
	CVPoseV1 CVPoseVariant = 1
	CVPoseV2 CVPoseVariant = 2
)

// CVPoseRecord is one decoded CVPOSE container record. RGBFrameIndex is
// only meaningful when Variant is CVPoseV2.
type CVPoseRecord struct {
	Variant       CVPoseVariant
	RecordIndex   uint32
	UnityTime     float32
	RGBFrameIndex uint32
	TimestampNs   int64
	ResultCode    int32
	Rotation      Quat
	Position      Vec3
}

// RGBPoseRecord is one decoded RGBPOSE container record. The image payload
// length is self-describing (BytesWritten) rather than fixed.
type RGBPoseRecord struct {
	FrameIndex  uint32
	UnityTime   float32
	TimestampNs int64
	Width       int32
	Height      int32
	StrideBytes int32
	Format      int32
	PoseValid   bool
	ResultCode  int32
	Rotation    Quat
	Position    Vec3
	Image       []byte
}

// WorldCamRecord is one decoded WORLDCAM container record. CameraID
// disambiguates the left/center/right world cameras selected by the
// container's identifier mask.
type WorldCamRecord struct {
	FrameIndex    uint32
	TimestampNs   int64
	CameraID      uint32
	FrameType     uint32
	Width         int32
	Height        int32
	StrideBytes   int32
	BytesPerPixel int32
	Image         []byte
}

// IMURecord is one decoded IMURAW container record: a paired
// accelerometer and gyroscope sample. Either half may be absent when the
// corresponding Has flag is false.
type IMURecord struct {
	FrameIndex       uint32
	Accel            Vec3
	AccelTimestampNs int64
	HasAccel         bool
	Gyro             Vec3
	GyroTimestampNs  int64
	HasGyro          bool
}

// TimestampNs returns the record's primary timestamp: the accel clock
// when present, otherwise the gyro clock.
func (r *IMURecord) TimestampNs() int64 {
	if r.HasAccel {
		return r.AccelTimestampNs
	}
	return r.GyroTimestampNs
}

// DepthFrame is one depth capture: a frame index, a capture timestamp,
// and up to five sub-blocks keyed by block type. A frame is only yielded
// by the reader once all block slots asserted by the container have been
// read; a frame cut short by end-of-file is discarded.
type DepthFrame struct {
	FrameIndex    uint32
	CaptureTimeNs int64
	Blocks        map[uint8]*Block
}

// Get returns the block of the given type, or nil when the frame carries
// no such block.
func (f *DepthFrame) Get(blockType uint8) *Block {
	return f.Blocks[blockType]
}
