// Command gen-capture generates synthetic sensor containers for testing
// readers, the inspect report, and replay tooling without a headset.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/ml2raw/internal/mlraw"
	"github.com/banshee-data/ml2raw/internal/mlraw/container"
)

var (
	outputDir = flag.String("o", "ml2_synthetic", "output directory")
	frames    = flag.Int("n", 100, "number of records per container")
	kind      = flag.String("kind", "all", "which container to generate: all, depth, worldcam, headpose, cvpose, rgbpose, imu")
	lie       = flag.Bool("lie", false, "write the CVPOSE container with v2 records under a declared version of 1")
	truncate  = flag.Int("truncate", 0, "chop this many bytes off the end of each container")
)

// Frame pacing for the synthetic clock: 60Hz for poses and images,
// 1kHz for IMU samples, starting from an arbitrary boot-relative epoch.
const (
	baseTimeNs  = int64(1_000_000_000_000)
	frameStepNs = int64(16_666_667)
	imuStepNs   = int64(1_000_000)
)

func main() {
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	generators := map[string]func(string) error{
		"depth":    genDepth,
		"worldcam": genWorldCam,
		"headpose": genHeadPose,
		"cvpose":   genCVPose,
		"rgbpose":  genRGBPose,
		"imu":      genIMU,
	}

	names := []string{"depth", "worldcam", "headpose", "cvpose", "rgbpose", "imu"}
	if *kind != "all" {
		if _, ok := generators[*kind]; !ok {
			log.Fatalf("unknown kind %q", *kind)
		}
		names = []string{*kind}
	}

	for _, name := range names {
		path := filepath.Join(*outputDir, name+".bin")
		if err := generators[name](path); err != nil {
			log.Fatalf("failed to generate %s: %v", path, err)
		}
		if *truncate > 0 {
			if err := chop(path, *truncate); err != nil {
				log.Fatalf("failed to truncate %s: %v", path, err)
			}
		}
		log.Printf("✓ Created: %s", path)
	}
}

// pose returns a slowly-rotating unit quaternion and a drifting position
// so the health report's plausibility checks have something to measure.
func pose(i int) (mlraw.Quat, mlraw.Vec3) {
	angle := float64(i) * 0.01
	q := mlraw.Quat{
		X: 0,
		Y: float32(math.Sin(angle / 2)),
		Z: 0,
		W: float32(math.Cos(angle / 2)),
	}
	p := mlraw.Vec3{
		X: float32(math.Sin(angle)) * 0.5,
		Y: 1.6,
		Z: float32(i) * 0.002,
	}
	return q, p
}

func genCVPose(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	declared := int32(2)
	variant := mlraw.CVPoseV2
	if *lie {
		declared = 1
	}
	w, err := container.NewCVPoseWriter(f, declared, variant)
	if err != nil {
		return err
	}
	for i := 0; i < *frames; i++ {
		q, p := pose(i)
		rec := &mlraw.CVPoseRecord{
			Variant:       variant,
			RecordIndex:   uint32(i),
			UnityTime:     float32(i) / 60,
			RGBFrameIndex: uint32(i),
			TimestampNs:   baseTimeNs + int64(i)*frameStepNs,
			Rotation:      q,
			Position:      p,
		}
		if err := w.WriteRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func genHeadPose(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := container.NewHeadPoseWriter(f)
	if err != nil {
		return err
	}
	for i := 0; i < *frames; i++ {
		q, p := pose(i)
		rec := &mlraw.HeadPoseRecord{
			FrameIndex:  uint32(i),
			UnityTime:   float32(i) / 60,
			TimestampNs: baseTimeNs + int64(i)*frameStepNs,
			Rotation:    q,
			Position:    p,
			Confidence:  0.97,
		}
		if err := w.WriteRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func genRGBPose(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := container.NewRGBPoseWriter(f, 1)
	if err != nil {
		return err
	}
	image := make([]byte, 64*64*4)
	for i := 0; i < *frames; i++ {
		q, p := pose(i)
		rec := &mlraw.RGBPoseRecord{
			FrameIndex:  uint32(i),
			UnityTime:   float32(i) / 60,
			TimestampNs: baseTimeNs + int64(i)*frameStepNs,
			Width:       64,
			Height:      64,
			StrideBytes: 64 * 4,
			Format:      1,
			PoseValid:   true,
			Rotation:    q,
			Position:    p,
			Image:       image,
		}
		if err := w.WriteRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func genWorldCam(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := container.NewWorldCamWriter(f, 0b111)
	if err != nil {
		return err
	}
	image := make([]byte, 64*64)
	for i := 0; i < *frames; i++ {
		rec := &mlraw.WorldCamRecord{
			FrameIndex:    uint32(i),
			TimestampNs:   baseTimeNs + int64(i)*frameStepNs,
			CameraID:      uint32(i % 3),
			Width:         64,
			Height:        64,
			StrideBytes:   64,
			BytesPerPixel: 1,
			Image:         image,
		}
		if err := w.WriteRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func genDepth(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := container.NewDepthWriter(f)
	if err != nil {
		return err
	}
	const width, height = 8, 8
	for i := 0; i < *frames; i++ {
		frame := &mlraw.DepthFrame{
			FrameIndex:    uint32(i),
			CaptureTimeNs: baseTimeNs + int64(i)*frameStepNs,
			Blocks: map[uint8]*mlraw.Block{
				mlraw.BlockDepth:      depthBlock(mlraw.BlockDepth, width, height, float32(i%5)+0.5),
				mlraw.BlockConfidence: depthBlock(mlraw.BlockConfidence, width, height, 1.0),
			},
		}
		if err := w.WriteFrame(frame); err != nil {
			return err
		}
	}
	return nil
}

func depthBlock(blockType uint8, width, height int32, fill float32) *mlraw.Block {
	payload := make([]byte, width*height*4)
	for i := int32(0); i < width*height; i++ {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(fill))
	}
	return &mlraw.Block{
		BlockType:     blockType,
		Width:         width,
		Height:        height,
		StrideBytes:   width * 4,
		BytesPerPixel: 4,
		ByteCount:     int32(len(payload)),
		Payload:       payload,
	}
}

func genIMU(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := container.NewIMUWriter(f, 1000)
	if err != nil {
		return err
	}
	for i := 0; i < *frames; i++ {
		ts := baseTimeNs + int64(i)*imuStepNs
		rec := &mlraw.IMURecord{
			FrameIndex:       uint32(i),
			Accel:            mlraw.Vec3{X: 0, Y: -9.81, Z: 0},
			AccelTimestampNs: ts,
			HasAccel:         true,
			Gyro:             mlraw.Vec3{X: 0.01, Y: 0, Z: 0},
			GyroTimestampNs:  ts,
			HasGyro:          true,
		}
		if err := w.WriteRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

// chop removes n bytes from the end of the file to simulate a capture
// cut off mid-record by the app being killed.
func chop(path string, n int) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	size := info.Size() - int64(n)
	if size < 0 {
		size = 0
	}
	return os.Truncate(path, size)
}
