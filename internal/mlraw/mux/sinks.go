package mux

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/ml2raw/internal/fsutil"
	"github.com/banshee-data/ml2raw/internal/monitoring"
)

// FileSink persists each delivered frame payload as its own file in a
// single directory, named so the frame index, geometry, and capture
// time survive in the listing:
//
//	<dir>/frame_000042_64x64_123456789.bin
//
// The sink writes to exactly one directory; callers routing several
// sensors create one sink per route, typically with a per-sensor
// subdirectory as dir. Consumers that want the frames back in capture
// order can sort the directory lexically.
type FileSink struct {
	fs       fsutil.FileSystem
	dir      string
	logEvery uint32
	count    uint32
}

// NewFileSink creates the sink's directory on the real filesystem and
// returns the sink. logEvery controls progress logging (0 disables it).
func NewFileSink(dir string, logEvery uint32) (*FileSink, error) {
	return NewFileSinkFS(fsutil.OSFileSystem{}, dir, logEvery)
}

// NewFileSinkFS is NewFileSink against an explicit filesystem.
func NewFileSinkFS(fs fsutil.FileSystem, dir string, logEvery uint32) (*FileSink, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating frame directory: %w", err)
	}
	return &FileSink{fs: fs, dir: dir, logEvery: logEvery}, nil
}

// HandleFrame writes the payload to a per-frame file.
func (s *FileSink) HandleFrame(h Header, payload []byte) error {
	name := fmt.Sprintf("frame_%06d_%dx%d_%d.bin", h.FrameIndex, h.Width, h.Height, h.CaptureTimeNs)
	path := filepath.Join(s.dir, name)
	if err := s.fs.WriteFile(path, payload, 0644); err != nil {
		return fmt.Errorf("writing frame %d: %w", h.FrameIndex, err)
	}

	s.count++
	if s.logEvery > 0 && s.count%s.logEvery == 0 {
		monitoring.Logf("sink %s: %d frames (last frame %d, %d bytes)",
			s.dir, s.count, h.FrameIndex, len(payload))
	}
	return nil
}

// Count returns how many frames the sink has written.
func (s *FileSink) Count() uint32 { return s.count }
