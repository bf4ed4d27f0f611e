package mux

import (
	"bytes"
	"errors"
	"testing"

	"github.com/banshee-data/ml2raw/internal/mlraw"
)

type capturedFrame struct {
	header  Header
	payload []byte
}

// captureSink records every delivery in order.
type captureSink struct {
	frames []capturedFrame
}

func (s *captureSink) HandleFrame(h Header, payload []byte) error {
	s.frames = append(s.frames, capturedFrame{h, payload})
	return nil
}

func wireFrame(h Header, payload []byte) []byte {
	h.PayloadLen = uint32(len(payload))
	hdr := EncodeHeader(h)
	return append(hdr[:], payload...)
}

// A single depth frame on the wire is delivered to exactly the route for
// (sensorType=1, stream 0) with its tagging intact.
func TestDemuxSingleFrame(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(wireFrame(Header{
		SensorType: SensorDepth,
		StreamID:   0,
		FrameIndex: 7,
		Width:      4,
		Height:     4,
	}, make([]byte, 64)))

	sink := &captureSink{}
	d := NewDemultiplexer()
	d.Route(SensorDepth, 0, sink)

	if err := d.Run(&stream); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sink.frames) != 1 {
		t.Fatalf("delivered %d frames, want 1", len(sink.frames))
	}
	got := sink.frames[0]
	if got.header.SensorType != SensorDepth || got.header.StreamID != 0 || got.header.FrameIndex != 7 {
		t.Errorf("frame tagged (%d, %d, %d), want (1, 0, 7)",
			got.header.SensorType, got.header.StreamID, got.header.FrameIndex)
	}
	if len(got.payload) != 64 {
		t.Errorf("payload %d bytes, want 64", len(got.payload))
	}

	st := d.Stats()
	if st.Frames != 1 || st.Bytes != uint64(HeaderSize+64) {
		t.Errorf("stats = %+v", st)
	}
}

func TestDemuxInterleavedStreams(t *testing.T) {
	var stream bytes.Buffer
	order := []uint16{SensorDepth, SensorIMU, SensorDepth, SensorWorldCam, SensorIMU}
	for i, sensorType := range order {
		stream.Write(wireFrame(Header{
			SensorType: sensorType,
			FrameIndex: uint32(i),
		}, []byte{byte(i)}))
	}

	sinks := map[uint16]*captureSink{
		SensorDepth:    {},
		SensorWorldCam: {},
		SensorIMU:      {},
	}
	d := NewDemultiplexer()
	for sensorType, sink := range sinks {
		d.Route(sensorType, 0, sink)
	}

	if err := d.Run(&stream); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n := len(sinks[SensorDepth].frames); n != 2 {
		t.Errorf("depth sink got %d frames, want 2", n)
	}
	if n := len(sinks[SensorWorldCam].frames); n != 1 {
		t.Errorf("worldcam sink got %d frames, want 1", n)
	}
	// Per-sink delivery preserves wire order.
	imu := sinks[SensorIMU].frames
	if len(imu) != 2 || imu[0].header.FrameIndex != 1 || imu[1].header.FrameIndex != 4 {
		t.Errorf("imu frames out of order: %+v", imu)
	}
}

func TestDemuxUnroutedFrameFallback(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(wireFrame(Header{SensorType: 42, FrameIndex: 1}, []byte{1, 2, 3}))
	// A known sensor type on an unrouted stream counts too.
	stream.Write(wireFrame(Header{SensorType: SensorDepth, StreamID: 9, FrameIndex: 2}, []byte{4}))

	fallback := &captureSink{}
	d := NewDemultiplexer()
	d.RouteFallback(fallback)

	if err := d.Run(&stream); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(fallback.frames) != 2 {
		t.Fatalf("fallback sink got %d frames, want 2", len(fallback.frames))
	}
	if d.Stats().UnroutedFrames != 2 {
		t.Errorf("unrouted counter = %d, want 2", d.Stats().UnroutedFrames)
	}
}

func TestDemuxUnknownSensorNoFallback(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(wireFrame(Header{SensorType: 42}, []byte{1}))
	stream.Write(wireFrame(Header{SensorType: SensorDepth}, []byte{2}))

	sink := &captureSink{}
	d := NewDemultiplexer()
	d.Route(SensorDepth, 0, sink)

	// The unrouted frame is counted and dropped; the stream continues.
	if err := d.Run(&stream); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sink.frames) != 1 {
		t.Errorf("routed sink got %d frames, want 1", len(sink.frames))
	}
}

func TestDemuxCleanCloseAtBoundary(t *testing.T) {
	d := NewDemultiplexer()
	if err := d.Run(bytes.NewReader(nil)); err != nil {
		t.Errorf("empty stream should end cleanly, got %v", err)
	}
}

func TestDemuxCloseMidHeader(t *testing.T) {
	frame := wireFrame(Header{SensorType: SensorDepth}, []byte{1, 2})
	d := NewDemultiplexer()
	err := d.Run(bytes.NewReader(frame[:HeaderSize/2]))
	if !errors.Is(err, mlraw.ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
	if !errors.Is(err, mlraw.ErrShortRead) {
		t.Errorf("expected ErrShortRead in chain, got %v", err)
	}
}

func TestDemuxCloseMidPayload(t *testing.T) {
	frame := wireFrame(Header{SensorType: SensorDepth}, make([]byte, 100))
	d := NewDemultiplexer()
	err := d.Run(bytes.NewReader(frame[:HeaderSize+10]))
	if err == nil {
		t.Fatal("expected error for payload shortfall")
	}
	if !errors.Is(err, mlraw.ErrShortRead) {
		t.Errorf("expected ErrShortRead in chain, got %v", err)
	}
	if !errors.Is(err, mlraw.ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed in chain, got %v", err)
	}
}

func TestDemuxBadMagicFatal(t *testing.T) {
	junk := make([]byte, HeaderSize)
	copy(junk, "GARBAGE!")
	d := NewDemultiplexer()
	if err := d.Run(bytes.NewReader(junk)); !errors.Is(err, mlraw.ErrBadMagic) {
		t.Errorf("expected ErrBadMagic, got %v", err)
	}
}

func TestDemuxSinkErrorAborts(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(wireFrame(Header{SensorType: SensorDepth}, []byte{1}))
	stream.Write(wireFrame(Header{SensorType: SensorDepth}, []byte{2}))

	sinkErr := errors.New("disk full")
	d := NewDemultiplexer()
	d.Route(SensorDepth, 0, SinkFunc(func(Header, []byte) error { return sinkErr }))

	if err := d.Run(&stream); !errors.Is(err, sinkErr) {
		t.Errorf("expected sink error surfaced, got %v", err)
	}
}
