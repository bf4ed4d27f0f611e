// Package mux implements the live multiplexed wire protocol: a single
// ordered TCP byte stream carrying interleaved sensor frames, each
// preceded by a fixed header identifying the sensor type, stream, and
// payload length. The demultiplexer reads one (header, payload) pair at
// a time and hands it to a per-stream sink, strictly in arrival order.
package mux

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/ml2raw/internal/mlraw"
)

// WireMagic is the reserved tag opening every wire header. Anything else
// at a header boundary is fatal for the connection.
var WireMagic = []byte("MLMX")

// ProtocolVersion is the only wire version this implementation speaks.
// Unlike the file containers there is no backward-compat probing on the
// wire: a different version fails the connection immediately.
const ProtocolVersion = 1

// HeaderSize is the fixed wire header length in bytes.
const HeaderSize = 40

// Wire sensor type values. The set is closed; values outside it still
// demultiplex by numeric value and reach the fallback sink if one is
// routed.
const (
	SensorDepth    uint16 = 1
	SensorWorldCam uint16 = 2
	SensorIMU      uint16 = 3
)

// SensorKindOf maps a wire sensor type to the shared SensorKind
// enumeration, or KindUnknown for values outside the closed set.
func SensorKindOf(sensorType uint16) mlraw.SensorKind {
	switch sensorType {
	case SensorDepth:
		return mlraw.KindDepth
	case SensorWorldCam:
		return mlraw.KindWorldCam
	case SensorIMU:
		return mlraw.KindIMU
	default:
		return mlraw.KindUnknown
	}
}

// Header is one decoded multiplex wire header. Exactly one precedes
// every payload; it is fully consumed before the payload is read.
// FrameIndex is producer-assigned and not required to be monotonic at
// this layer; DType is a producer-defined payload element tag that this
// layer treats as opaque.
type Header struct {
	SensorType    uint16
	StreamID      uint16
	FrameIndex    uint32
	CaptureTimeNs uint64
	Width         uint32
	Height        uint32
	DType         uint32
	PayloadLen    uint32
}

// DecodeHeader parses and validates a wire header from exactly
// HeaderSize bytes.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("wire header must be %d bytes, got %d", HeaderSize, len(buf))
	}
	if !bytes.Equal(buf[0:4], WireMagic) {
		return Header{}, fmt.Errorf("%w: got %q", mlraw.ErrBadMagic, buf[0:4])
	}
	version := binary.LittleEndian.Uint32(buf[4:8])
	if version != ProtocolVersion {
		return Header{}, fmt.Errorf("%w: wire version %d, want %d",
			mlraw.ErrUnsupportedVersion, version, ProtocolVersion)
	}
	return Header{
		SensorType:    binary.LittleEndian.Uint16(buf[8:10]),
		StreamID:      binary.LittleEndian.Uint16(buf[10:12]),
		FrameIndex:    binary.LittleEndian.Uint32(buf[12:16]),
		CaptureTimeNs: binary.LittleEndian.Uint64(buf[16:24]),
		Width:         binary.LittleEndian.Uint32(buf[24:28]),
		Height:        binary.LittleEndian.Uint32(buf[28:32]),
		DType:         binary.LittleEndian.Uint32(buf[32:36]),
		PayloadLen:    binary.LittleEndian.Uint32(buf[36:40]),
	}, nil
}

// EncodeHeader serialises a wire header. Used by producer-side tooling
// and tests; the receiver never writes headers.
func EncodeHeader(h Header) [HeaderSize]byte {
	var buf [HeaderSize]byte
	copy(buf[0:4], WireMagic)
	binary.LittleEndian.PutUint32(buf[4:8], ProtocolVersion)
	binary.LittleEndian.PutUint16(buf[8:10], h.SensorType)
	binary.LittleEndian.PutUint16(buf[10:12], h.StreamID)
	binary.LittleEndian.PutUint32(buf[12:16], h.FrameIndex)
	binary.LittleEndian.PutUint64(buf[16:24], h.CaptureTimeNs)
	binary.LittleEndian.PutUint32(buf[24:28], h.Width)
	binary.LittleEndian.PutUint32(buf[28:32], h.Height)
	binary.LittleEndian.PutUint32(buf[32:36], h.DType)
	binary.LittleEndian.PutUint32(buf[36:40], h.PayloadLen)
	return buf
}
