package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/banshee-data/ml2raw/internal/mlraw"
	"github.com/banshee-data/ml2raw/internal/mlraw/container"
)

// Summary is the machine-readable result of analyzing one container,
// suitable for indexing in the session database.
type Summary struct {
	Path             string
	Kind             mlraw.SensorKind
	DeclaredVersion  int32
	ResolvedVersion  int32
	Records          int64
	FirstTimestampNs int64
	LastTimestampNs  int64
	Truncated        bool
}

func (s *Summary) observe(ts int64) {
	if s.Records == 0 {
		s.FirstTimestampNs = ts
	}
	s.LastTimestampNs = ts
	s.Records++
}

// Analyze detects the container kind of the file at path, decodes every
// record, and writes a health report to w. The returned Summary always
// reflects what was decoded, even for an empty file.
func Analyze(path string, w io.Writer) (*Summary, error) {
	kind, err := container.DetectFile(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sum := &Summary{Path: path, Kind: kind}
	switch kind {
	case mlraw.KindCVPose:
		err = analyzeCVPose(f, w, sum)
	case mlraw.KindHeadPose:
		err = analyzeHeadPose(f, w, sum)
	case mlraw.KindRGBPose:
		err = analyzeRGBPose(f, w, sum)
	case mlraw.KindWorldCam:
		err = analyzeWorldCam(f, w, sum)
	case mlraw.KindDepth:
		err = analyzeDepth(f, w, sum)
	case mlraw.KindIMU:
		err = analyzeIMU(f, w, sum)
	default:
		return nil, fmt.Errorf("%s: %w", path, mlraw.ErrUnrecognizedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", path, err)
	}
	return sum, nil
}

func analyzeCVPose(f *os.File, w io.Writer, sum *Summary) error {
	cr, err := container.NewCVPoseReader(f)
	if err != nil {
		return err
	}
	sum.DeclaredVersion = cr.Header().Version
	sum.ResolvedVersion = cr.Layout().Version

	var p poseSamples
	for {
		rec, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		sum.observe(rec.TimestampNs)
		p.add(rec.TimestampNs, rec.ResultCode, rec.Rotation, rec.Position)
	}
	sum.Truncated = cr.Truncated()

	p.writeReport(w, "CVPOSE")
	fmt.Fprintf(w, "Declared version: %d  resolved layout: v%d\n",
		sum.DeclaredVersion, sum.ResolvedVersion)
	if sum.Truncated {
		fmt.Fprintf(w, "File ends mid-record (truncated)\n")
	}
	return nil
}

func analyzeHeadPose(f *os.File, w io.Writer, sum *Summary) error {
	hr, err := container.NewHeadPoseReader(f)
	if err != nil {
		return err
	}
	sum.DeclaredVersion = hr.Header().Version
	sum.ResolvedVersion = hr.Header().Version

	var p poseSamples
	var confidence []float64
	for {
		rec, err := hr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		sum.observe(rec.TimestampNs)
		p.add(rec.TimestampNs, rec.ResultCode, rec.Rotation, rec.Position)
		confidence = append(confidence, float64(rec.Confidence))
	}
	sum.Truncated = hr.Truncated()

	p.writeReport(w, "HEADPOSE")
	Describe(confidence).write(w, "confidence", "")
	if sum.Truncated {
		fmt.Fprintf(w, "File ends mid-record (truncated)\n")
	}
	return nil
}

func analyzeRGBPose(f *os.File, w io.Writer, sum *Summary) error {
	rr, err := container.NewRGBPoseReader(f)
	if err != nil {
		return err
	}
	sum.DeclaredVersion = rr.Header().Version
	sum.ResolvedVersion = rr.Header().Version

	var p poseSamples
	var validCount int
	var payloadBytes []float64
	for {
		rec, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		sum.observe(rec.TimestampNs)
		p.add(rec.TimestampNs, rec.ResultCode, rec.Rotation, rec.Position)
		if rec.PoseValid {
			validCount++
		}
		payloadBytes = append(payloadBytes, float64(len(rec.Image)))
	}
	sum.Truncated = rr.Truncated()

	fmt.Fprintf(w, "\n==================== RGBPOSE ====================\n")
	fmt.Fprintf(w, "Frames: %d  version=%d  captureMode=%d\n",
		sum.Records, sum.DeclaredVersion, rr.Header().CaptureMode())
	fmt.Fprintf(w, "Timestamps monotonic: %v\n", Monotonic(p.ts))
	dt := DtMillis(p.ts)
	Describe(dt).write(w, "dt", "ms")
	fmt.Fprintf(w, "Estimated FPS (median): %.2f\n", FPSFromDt(dt))
	if sum.Records > 0 {
		fmt.Fprintf(w, "pose_valid rate: %.1f%%\n",
			float64(validCount)/float64(sum.Records)*100)
	}
	writeResultCodes(w, p.resultCodes)
	writeQuatNorms(w, p.quats)
	Describe(payloadBytes).write(w, "bytesWritten", "B")
	if sum.Truncated {
		fmt.Fprintf(w, "File ends mid-record (truncated)\n")
	}
	return nil
}

func analyzeWorldCam(f *os.File, w io.Writer, sum *Summary) error {
	wr, err := container.NewWorldCamReader(f)
	if err != nil {
		return err
	}
	sum.DeclaredVersion = wr.Header().Version
	sum.ResolvedVersion = wr.Header().Version

	var ts []int64
	var payloadBytes []float64
	cameraCounts := map[uint32]int{}
	for {
		rec, err := wr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		sum.observe(rec.TimestampNs)
		ts = append(ts, rec.TimestampNs)
		payloadBytes = append(payloadBytes, float64(len(rec.Image)))
		cameraCounts[rec.CameraID]++
	}
	sum.Truncated = wr.Truncated()

	fmt.Fprintf(w, "\n==================== WORLDCAM ====================\n")
	fmt.Fprintf(w, "Frames: %d  version=%d  identifiersMask=0x%x\n",
		sum.Records, sum.DeclaredVersion, wr.Header().IdentifiersMask())
	fmt.Fprintf(w, "Timestamps monotonic: %v\n", Monotonic(ts))
	dt := DtMillis(ts)
	Describe(dt).write(w, "dt", "ms")
	fmt.Fprintf(w, "Estimated FPS (median): %.2f\n", FPSFromDt(dt))
	writeCameraCounts(w, cameraCounts)
	Describe(payloadBytes).write(w, "bytesWritten", "B")
	if sum.Truncated {
		fmt.Fprintf(w, "File ends mid-record (truncated)\n")
	}
	return nil
}

func writeCameraCounts(w io.Writer, counts map[uint32]int) {
	ids := make([]uint32, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fmt.Fprintf(w, "cameraId counts:")
	for _, id := range ids {
		fmt.Fprintf(w, " %d:%d", id, counts[id])
	}
	fmt.Fprintln(w)
}

func analyzeDepth(f *os.File, w io.Writer, sum *Summary) error {
	dr, err := container.NewDepthReader(f)
	if err != nil {
		return err
	}
	sum.DeclaredVersion = dr.Header().Version
	sum.ResolvedVersion = dr.Header().Version

	var ts []int64
	blocksSeen := map[uint8]int{}
	var depthSample []float64
	for {
		frame, err := dr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		sum.observe(frame.CaptureTimeNs)
		ts = append(ts, frame.CaptureTimeNs)
		for bt, blk := range frame.Blocks {
			if !blk.IsEmpty() {
				blocksSeen[bt]++
			}
		}
		// Sample processed depth floats for range sanity.
		if blk := frame.Get(mlraw.BlockDepth); blk != nil && len(depthSample) < 4096 {
			data, err := blk.Decode()
			if err != nil {
				return err
			}
			if data != nil {
				for _, v := range data.Floats {
					if v > 0 {
						depthSample = append(depthSample, float64(v))
					}
					if len(depthSample) >= 4096 {
						break
					}
				}
			}
		}
	}
	sum.Truncated = dr.Truncated()

	fmt.Fprintf(w, "\n==================== DEPTHRAW ====================\n")
	fmt.Fprintf(w, "Frames: %d  version=%d\n", sum.Records, sum.DeclaredVersion)
	fmt.Fprintf(w, "Timestamps monotonic: %v\n", Monotonic(ts))
	dt := DtMillis(ts)
	Describe(dt).write(w, "dt", "ms")
	fmt.Fprintf(w, "Estimated FPS (median): %.2f\n", FPSFromDt(dt))
	writeBlocksSeen(w, blocksSeen)
	Describe(depthSample).write(w, "depth(m) nonzero", "m")
	if sum.Truncated {
		fmt.Fprintf(w, "File ends mid-frame (truncated)\n")
	}
	return nil
}

func writeBlocksSeen(w io.Writer, counts map[uint8]int) {
	types := make([]uint8, 0, len(counts))
	for bt := range counts {
		types = append(types, bt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	fmt.Fprintf(w, "Non-empty blocks seen:")
	for _, bt := range types {
		fmt.Fprintf(w, " %s:%d", mlraw.BlockName(bt), counts[bt])
	}
	fmt.Fprintln(w)
}

func analyzeIMU(f *os.File, w io.Writer, sum *Summary) error {
	ir, err := container.NewIMUReader(f)
	if err != nil {
		return err
	}
	sum.DeclaredVersion = ir.Header().Version
	sum.ResolvedVersion = ir.Header().Version

	var ts []int64
	var accelCount, gyroCount int
	for {
		rec, err := ir.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		sum.observe(rec.TimestampNs())
		ts = append(ts, rec.TimestampNs())
		if rec.HasAccel {
			accelCount++
		}
		if rec.HasGyro {
			gyroCount++
		}
	}
	sum.Truncated = ir.Truncated()

	fmt.Fprintf(w, "\n==================== IMURAW ====================\n")
	fmt.Fprintf(w, "Samples: %d  version=%d  sampleRate=%dHz\n",
		sum.Records, sum.DeclaredVersion, ir.Header().SampleRateHz())
	fmt.Fprintf(w, "Timestamps monotonic: %v\n", Monotonic(ts))
	dt := DtMillis(ts)
	Describe(dt).write(w, "dt", "ms")
	fmt.Fprintf(w, "Estimated sample rate (median): %.2fHz\n", FPSFromDt(dt))
	if sum.Records > 0 {
		fmt.Fprintf(w, "accel present: %.1f%%  gyro present: %.1f%%\n",
			float64(accelCount)/float64(sum.Records)*100,
			float64(gyroCount)/float64(sum.Records)*100)
	}
	if sum.Truncated {
		fmt.Fprintf(w, "File ends mid-record (truncated)\n")
	}
	return nil
}
