// Package layout is the static catalogue of known container magics,
// format versions, and record sizes. It is the single source of truth
// for which (kind, version) pairs exist in the wild; the container
// readers and the version resolver consult it rather than hard-coding
// sizes at each call site.
//
// The catalogue is pure data. It never reads bytes beyond the magic
// lookup and has no opinion on field semantics.
package layout

import (
	"bytes"
	"fmt"

	"github.com/banshee-data/ml2raw/internal/mlraw"
)

// MagicLen is the on-disk magic length. Shorter ASCII tags are padded
// with NUL bytes by the device writers.
const MagicLen = 8

// Container magics as written by the native consumers.
var (
	MagicCVPose   = []byte("CVPOSE\x00\x00")
	MagicHeadPose = []byte("HEADPOSE")
	MagicRGBPose  = []byte("RGBPOSE\x00")
	MagicDepth    = []byte("DEPTHRAW")
	MagicWorldCam = []byte("WORLDCAM")
	MagicIMU      = []byte("IMURAW\x00\x00")
)

// Fixed record sizes in bytes for the fixed-width layouts. The
// self-describing kinds (depth, RGB+pose, world camera) embed their own
// payload lengths per record and have no fixed size.
const (
	CVPoseV1RecordSize   = 48 // u32 idx, f32 t, i64 ts, i32 rc, 4×f32 quat, 3×f32 pos
	CVPoseV2RecordSize   = 52 // v1 plus a u32 RGB frame index after the unity time
	HeadPoseV2RecordSize = 69 // pose record plus status, confidence, error flags, map events
	IMUV1RecordSize      = 54 // 46 bytes of fields (idx, accel triple+ts+flag, gyro triple+ts+flag) plus 8 pad bytes
)

// Extra header bytes following the common magic+version prefix.
const (
	HeaderBaseSize     = MagicLen + 4 // magic + i32 version
	IMUExtraHeader     = 4            // i32 sample rate Hz
	WorldCamExtra      = 4            // u32 camera identifier mask
	RGBPoseExtraHeader = 4            // i32 capture mode
)

// RecordLayout describes one historical record layout for a sensor kind.
// RecordSize is zero for self-describing layouts, whose per-record length
// is embedded in the record itself.
type RecordLayout struct {
	Kind       mlraw.SensorKind
	Version    int32
	RecordSize int
}

// SelfDescribing reports whether per-record lengths are embedded in the
// records rather than fixed by the layout.
func (l RecordLayout) SelfDescribing() bool { return l.RecordSize == 0 }

var registry = []RecordLayout{
	{Kind: mlraw.KindCVPose, Version: 1, RecordSize: CVPoseV1RecordSize},
	{Kind: mlraw.KindCVPose, Version: 2, RecordSize: CVPoseV2RecordSize},
	{Kind: mlraw.KindHeadPose, Version: 2, RecordSize: HeadPoseV2RecordSize},
	{Kind: mlraw.KindIMU, Version: 1, RecordSize: IMUV1RecordSize},
	{Kind: mlraw.KindDepth, Version: 1},
	{Kind: mlraw.KindRGBPose, Version: 1},
	{Kind: mlraw.KindWorldCam, Version: 1},
}

// DetectKind maps container magic bytes to a sensor kind. The magic must
// be exactly MagicLen bytes as read from the start of the container.
func DetectKind(magic []byte) (mlraw.SensorKind, error) {
	switch {
	case bytes.Equal(magic, MagicCVPose):
		return mlraw.KindCVPose, nil
	case bytes.Equal(magic, MagicHeadPose):
		return mlraw.KindHeadPose, nil
	case bytes.Equal(magic, MagicRGBPose):
		return mlraw.KindRGBPose, nil
	case bytes.Equal(magic, MagicDepth):
		return mlraw.KindDepth, nil
	case bytes.Equal(magic, MagicWorldCam):
		return mlraw.KindWorldCam, nil
	case bytes.Equal(magic, MagicIMU):
		return mlraw.KindIMU, nil
	default:
		return mlraw.KindUnknown, fmt.Errorf("%w: magic %q", mlraw.ErrUnrecognizedFormat, magic)
	}
}

// MagicFor returns the on-disk magic for a sensor kind. Used by the
// container writers; panics on an unknown kind because writers only ever
// deal in registry kinds.
func MagicFor(kind mlraw.SensorKind) []byte {
	switch kind {
	case mlraw.KindCVPose:
		return MagicCVPose
	case mlraw.KindHeadPose:
		return MagicHeadPose
	case mlraw.KindRGBPose:
		return MagicRGBPose
	case mlraw.KindDepth:
		return MagicDepth
	case mlraw.KindWorldCam:
		return MagicWorldCam
	case mlraw.KindIMU:
		return MagicIMU
	default:
		panic(fmt.Sprintf("layout: no magic for kind %v", kind))
	}
}

// Candidates returns every registered layout for a sensor kind, in
// registry order. The version resolver probes these when a container's
// declared version is ambiguous.
func Candidates(kind mlraw.SensorKind) []RecordLayout {
	var out []RecordLayout
	for _, l := range registry {
		if l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

// Lookup returns the layout registered for an exact (kind, version)
// pair.
func Lookup(kind mlraw.SensorKind, version int32) (RecordLayout, bool) {
	for _, l := range registry {
		if l.Kind == kind && l.Version == version {
			return l, true
		}
	}
	return RecordLayout{}, false
}
