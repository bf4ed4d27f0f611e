package mux

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/banshee-data/ml2raw/internal/mlraw"
	"github.com/banshee-data/ml2raw/internal/mlraw/readbuf"
)

// Sink receives demultiplexed frames. HandleFrame is called
// synchronously, one frame at a time, in exact arrival order; the
// payload slice is owned by the sink after the call returns.
type Sink interface {
	HandleFrame(h Header, payload []byte) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(h Header, payload []byte) error

// HandleFrame calls f.
func (f SinkFunc) HandleFrame(h Header, payload []byte) error { return f(h, payload) }

// State is the demultiplexer's connection-protocol state. The protocol
// is a two-state machine: a fixed header is read in full, then exactly
// PayloadLen payload bytes, then back to the header.
type State int32

const (
	// AwaitingHeader means the connection is positioned at a frame
	// boundary.
	AwaitingHeader State = iota
	// AwaitingPayload means a header has been consumed and its payload
	// has not.
	AwaitingPayload
)

func (s State) String() string {
	switch s {
	case AwaitingHeader:
		return "awaiting_header"
	case AwaitingPayload:
		return "awaiting_payload"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type sinkKey struct {
	sensorType uint16
	streamID   uint16
}

// Stats is a snapshot of demultiplexer counters. UnroutedFrames counts
// frames whose (sensorType, streamId) had no specific route, whether or
// not a fallback sink consumed them.
type Stats struct {
	Frames         uint64
	Bytes          uint64
	UnroutedFrames uint64
	State          State
}

// Demultiplexer routes (header, payload) pairs from one multiplexed
// connection to sinks keyed by sensor type and stream id. There is no
// reordering or buffering across sensor types: delivery is synchronous
// and strictly sequential, exactly as transmitted.
//
// Run reads from a single connection at a time. The counters use
// atomics only so a status endpoint can observe them from another
// goroutine; the protocol path itself is single-threaded.
type Demultiplexer struct {
	sinks    map[sinkKey]Sink
	fallback Sink

	state          atomic.Int32
	frames         atomic.Uint64
	bytes          atomic.Uint64
	unroutedFrames atomic.Uint64
}

// NewDemultiplexer returns a demultiplexer with no routes. Frames with
// no matching route are counted and dropped unless RouteFallback
// installs a fallback sink.
func NewDemultiplexer() *Demultiplexer {
	return &Demultiplexer{sinks: make(map[sinkKey]Sink)}
}

// Route directs frames of the given sensor type and stream id to a
// sink. Routes must be installed before Run; the map is not guarded.
func (d *Demultiplexer) Route(sensorType, streamID uint16, s Sink) {
	d.sinks[sinkKey{sensorType, streamID}] = s
}

// RouteFallback installs the fallback sink for frames whose
// (sensorType, streamId) has no specific route.
func (d *Demultiplexer) RouteFallback(s Sink) {
	d.fallback = s
}

// Stats returns a snapshot of the demultiplexer counters.
func (d *Demultiplexer) Stats() Stats {
	return Stats{
		Frames:         d.frames.Load(),
		Bytes:          d.bytes.Load(),
		UnroutedFrames: d.unroutedFrames.Load(),
		State:          State(d.state.Load()),
	}
}

// Run consumes the connection until it closes. A connection that closes
// exactly at a frame boundary ends the run cleanly with a nil error; a
// close mid-header or mid-payload returns an error wrapping both
// mlraw.ErrConnectionClosed and mlraw.ErrShortRead. Bad magic and
// unsupported versions are fatal for the connection. Sink errors abort
// the run.
func (d *Demultiplexer) Run(conn io.Reader) error {
	defer d.state.Store(int32(AwaitingHeader))

	for {
		d.state.Store(int32(AwaitingHeader))
		hdrBytes, err := readbuf.ReadExact(conn, HeaderSize)
		if err == io.EOF {
			// Zero bytes at a frame boundary: the producer closed the
			// connection cleanly, no more data will ever arrive.
			return nil
		}
		if err != nil {
			if errors.Is(err, mlraw.ErrShortRead) {
				return fmt.Errorf("%w inside a frame header: %w", mlraw.ErrConnectionClosed, err)
			}
			return fmt.Errorf("reading frame header: %w", err)
		}

		hdr, err := DecodeHeader(hdrBytes)
		if err != nil {
			return err
		}

		d.state.Store(int32(AwaitingPayload))
		payload, err := readbuf.ReadExact(conn, int(hdr.PayloadLen))
		if err != nil {
			// Any shortfall here is mid-frame: the header promised
			// PayloadLen bytes.
			if err == io.EOF {
				err = fmt.Errorf("%w: 0 of %d bytes", mlraw.ErrShortRead, hdr.PayloadLen)
			}
			if errors.Is(err, mlraw.ErrShortRead) {
				return fmt.Errorf("%w inside frame %d payload: %w", mlraw.ErrConnectionClosed, hdr.FrameIndex, err)
			}
			return fmt.Errorf("frame %d payload (%d bytes): %w", hdr.FrameIndex, hdr.PayloadLen, err)
		}

		d.frames.Add(1)
		d.bytes.Add(uint64(HeaderSize) + uint64(hdr.PayloadLen))

		sink := d.sinks[sinkKey{hdr.SensorType, hdr.StreamID}]
		if sink == nil {
			d.unroutedFrames.Add(1)
			sink = d.fallback
		}
		if sink == nil {
			continue
		}
		if err := sink.HandleFrame(hdr, payload); err != nil {
			return fmt.Errorf("sink for sensor %d stream %d: %w", hdr.SensorType, hdr.StreamID, err)
		}
	}
}
