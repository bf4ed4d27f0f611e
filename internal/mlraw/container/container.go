// Package container reads and writes the append-only sensor capture
// files produced by the headset's native consumers. Each container holds
// one sensor kind's full recorded session: an 8-byte magic, a 32-bit
// version, optional kind-specific header fields, then back-to-back
// records or frames with no container-level framing.
//
// Readers are lazy and sequential: each Next call decodes exactly one
// record or frame from the underlying byte source and no caching happens
// behind the caller's back. Re-reading a container from the start always
// yields the same sequence; restart by reopening the source.
//
// A container whose final record is cut short (a producer crashed
// mid-write) ends iteration cleanly with io.EOF rather than an error;
// the reader's Truncated method reports whether the ending was clean.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/ml2raw/internal/mlraw"
	"github.com/banshee-data/ml2raw/internal/mlraw/layout"
	"github.com/banshee-data/ml2raw/internal/mlraw/readbuf"
)

// Header is the decoded container prologue. Extra carries the
// kind-specific field that follows the version for the kinds that have
// one (IMU sample rate, world-camera identifier mask, RGB capture mode);
// it is zero otherwise.
type Header struct {
	Kind    mlraw.SensorKind
	Version int32
	Extra   uint32
}

// SampleRateHz returns the IMU sample rate header field. Only meaningful
// for KindIMU containers.
func (h Header) SampleRateHz() int32 { return int32(h.Extra) }

// IdentifiersMask returns the world-camera identifier bitmask. Only
// meaningful for KindWorldCam containers.
func (h Header) IdentifiersMask() uint32 { return h.Extra }

// CaptureMode returns the RGB capture mode header field. Only meaningful
// for KindRGBPose containers.
func (h Header) CaptureMode() int32 { return int32(h.Extra) }

// ReadHeader consumes the magic, version, and any kind-specific extra
// header field from the start of a container byte source.
func ReadHeader(r io.Reader) (Header, error) {
	magic, err := readbuf.ReadExact(r, layout.MagicLen)
	if err != nil {
		return Header{}, fmt.Errorf("reading container magic: %w", err)
	}
	kind, err := layout.DetectKind(magic)
	if err != nil {
		return Header{}, err
	}

	verBytes, err := readbuf.ReadExact(r, 4)
	if err != nil {
		return Header{}, fmt.Errorf("reading %s container version: %w", kind, err)
	}
	hdr := Header{
		Kind:    kind,
		Version: int32(binary.LittleEndian.Uint32(verBytes)),
	}

	// IMU, world camera, and RGB+pose carry one extra 32-bit header
	// field between the version and the first record.
	switch kind {
	case mlraw.KindIMU, mlraw.KindWorldCam, mlraw.KindRGBPose:
		extra, err := readbuf.ReadExact(r, 4)
		if err != nil {
			return Header{}, fmt.Errorf("reading %s extra header: %w", kind, err)
		}
		hdr.Extra = binary.LittleEndian.Uint32(extra)
	}

	return hdr, nil
}

// headerSize returns the total prologue length for a kind, used by the
// version resolver to compute the trailing record byte count.
func headerSize(kind mlraw.SensorKind) int64 {
	switch kind {
	case mlraw.KindIMU, mlraw.KindWorldCam, mlraw.KindRGBPose:
		return layout.HeaderBaseSize + 4
	default:
		return layout.HeaderBaseSize
	}
}

func writeHeader(w io.Writer, kind mlraw.SensorKind, version int32, extra ...uint32) error {
	if _, err := w.Write(layout.MagicFor(kind)); err != nil {
		return fmt.Errorf("writing %s magic: %w", kind, err)
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(version))
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("writing %s version: %w", kind, err)
	}
	for _, e := range extra {
		binary.LittleEndian.PutUint32(buf[:], e)
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("writing %s header field: %w", kind, err)
		}
	}
	return nil
}

// tail tracks the shared end-of-container bookkeeping for the readers:
// whether iteration has finished and whether the file ended mid-record.
type tail struct {
	done      bool
	truncated bool
}

// finish maps a read error at or inside a record into the iteration
// outcome. A clean zero-byte boundary end and a mid-record short read
// both terminate iteration with io.EOF; only the latter marks the
// container truncated. Any other error (a genuine I/O failure) is
// surfaced unchanged.
func (t *tail) finish(err error) error {
	t.done = true
	if err == io.EOF {
		return io.EOF
	}
	if errors.Is(err, mlraw.ErrShortRead) {
		t.truncated = true
		return io.EOF
	}
	return err
}
