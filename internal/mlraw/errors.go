package mlraw

import "errors"

// Error taxonomy for the framing and decoding layer. Callers match these
// with errors.Is; the concrete errors returned by the readers wrap them
// with positional context.
var (
	// ErrUnrecognizedFormat is returned when a container's magic bytes
	// are not in the layout registry. Fatal for the container, no retry.
	ErrUnrecognizedFormat = errors.New("unrecognized container format")

	// ErrUnsupportedVersion is returned when a declared container or
	// wire-protocol version has no registered layout and cannot be
	// resolved by probing.
	ErrUnsupportedVersion = errors.New("unsupported format version")

	// ErrMalformedBlock is returned when a depth block violates the
	// stride/length invariants. The enclosing frame is discarded.
	ErrMalformedBlock = errors.New("malformed depth block")

	// ErrShortRead signals that a byte source ended partway through a
	// record. File readers treat this as end-of-container and flag the
	// session as truncated; it is an I/O boundary signal, not a logic
	// error.
	ErrShortRead = errors.New("short read mid-record")

	// ErrConnectionClosed signals that a live connection closed inside a
	// frame, either mid-header or mid-payload. A connection that closes
	// at a frame boundary is a clean shutdown and does not produce this
	// error; errors carrying it also wrap ErrShortRead.
	ErrConnectionClosed = errors.New("connection closed mid-frame")

	// ErrNoViableLayout is returned when the version resolver has probed
	// every candidate layout for a sensor kind and none yields a single
	// whole record.
	ErrNoViableLayout = errors.New("no viable record layout")

	// ErrBadMagic is returned by the stream demultiplexer when a wire
	// header does not carry the reserved tag. Fatal for the connection.
	ErrBadMagic = errors.New("bad wire magic")
)
