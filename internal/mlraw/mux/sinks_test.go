package mux

import (
	"bytes"
	"testing"

	"github.com/banshee-data/ml2raw/internal/fsutil"
)

func TestFileSinkWritesFrames(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	sink, err := NewFileSinkFS(fs, "out/depth_s0", 0)
	if err != nil {
		t.Fatalf("NewFileSinkFS: %v", err)
	}

	h := Header{
		SensorType:    SensorDepth,
		FrameIndex:    42,
		CaptureTimeNs: 123456789,
		Width:         64,
		Height:        64,
	}
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := sink.HandleFrame(h, payload); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}

	got, err := fs.ReadFile("out/depth_s0/frame_000042_64x64_123456789.bin")
	if err != nil {
		t.Fatalf("frame file missing: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("frame content = %x, want %x", got, payload)
	}
	if sink.Count() != 1 {
		t.Errorf("Count = %d, want 1", sink.Count())
	}
}

func TestFileSinkCountsAcrossFrames(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	sink, err := NewFileSinkFS(fs, "out", 0)
	if err != nil {
		t.Fatalf("NewFileSinkFS: %v", err)
	}
	for i := uint32(0); i < 5; i++ {
		if err := sink.HandleFrame(Header{FrameIndex: i}, []byte{byte(i)}); err != nil {
			t.Fatalf("HandleFrame %d: %v", i, err)
		}
	}
	if sink.Count() != 5 {
		t.Errorf("Count = %d, want 5", sink.Count())
	}
}
