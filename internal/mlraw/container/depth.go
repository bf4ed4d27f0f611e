package container

import (
	"fmt"
	"io"

	"github.com/banshee-data/ml2raw/internal/mlraw"
	"github.com/banshee-data/ml2raw/internal/mlraw/readbuf"
)

// BlockSlotsPerFrame is the number of block slots the depth consumer
// writes for every frame, present even when a block is empty.
const BlockSlotsPerFrame = 5

// depthFramePrefixSize is the u32 frame index + i64 capture timestamp
// that precede the block slots.
const depthFramePrefixSize = 12

// depthBlockHeaderSize is the u8 block type plus five i32 fields (width,
// height, stride, bytes per pixel, byte count).
const depthBlockHeaderSize = 21

// DepthReader iterates the block-structured frames of a DEPTHRAW
// container. A frame is yielded only once all five block slots have been
// read; if the container ends mid-frame, the partial frame is discarded
// and iteration ends with the reader flagged truncated.
type DepthReader struct {
	r      io.Reader
	header Header
	tail   tail
}

// NewDepthReader validates the container header and positions the
// reader at the first frame.
func NewDepthReader(r io.Reader) (*DepthReader, error) {
	hdr, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Kind != mlraw.KindDepth {
		return nil, fmt.Errorf("%w: %s container opened as depth", mlraw.ErrUnrecognizedFormat, hdr.Kind)
	}
	if hdr.Version != 1 {
		return nil, fmt.Errorf("%w: depth version %d", mlraw.ErrUnsupportedVersion, hdr.Version)
	}
	return &DepthReader{r: r, header: hdr}, nil
}

// Header returns the container header.
func (dr *DepthReader) Header() Header { return dr.header }

// Truncated reports whether the container ended partway through a
// frame. Only meaningful once Next has returned io.EOF.
func (dr *DepthReader) Truncated() bool { return dr.tail.truncated }

// Next decodes and returns the next frame, or io.EOF at the end of the
// container. Block payloads are copied out of the read buffer; the frame
// owns its blocks.
func (dr *DepthReader) Next() (*mlraw.DepthFrame, error) {
	if dr.tail.done {
		return nil, io.EOF
	}

	prefix, err := readbuf.ReadExact(dr.r, depthFramePrefixSize)
	if err != nil {
		return nil, dr.tail.finish(err)
	}
	c := cursor{buf: prefix}
	frame := &mlraw.DepthFrame{
		FrameIndex:    c.u32(),
		CaptureTimeNs: c.i64(),
		Blocks:        make(map[uint8]*mlraw.Block, BlockSlotsPerFrame),
	}

	for slot := 0; slot < BlockSlotsPerFrame; slot++ {
		block, err := dr.readBlock()
		if err == io.EOF {
			// Container ended inside the frame: the prefix and any
			// blocks already read are discarded.
			dr.tail.done = true
			dr.tail.truncated = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, dr.tail.finish(err)
		}
		// Later blocks of the same type would overwrite earlier ones;
		// the writer never does that, keys stay unique.
		frame.Blocks[block.BlockType] = block
	}

	return frame, nil
}

func (dr *DepthReader) readBlock() (*mlraw.Block, error) {
	hdr, err := readbuf.ReadExact(dr.r, depthBlockHeaderSize)
	if err != nil {
		return nil, err
	}
	c := cursor{buf: hdr}
	block := &mlraw.Block{
		BlockType:     c.u8(),
		Width:         c.i32(),
		Height:        c.i32(),
		StrideBytes:   c.i32(),
		BytesPerPixel: c.i32(),
		ByteCount:     c.i32(),
	}

	if block.ByteCount < 0 {
		return nil, fmt.Errorf("%w: block %d declares negative byte count %d",
			mlraw.ErrMalformedBlock, block.BlockType, block.ByteCount)
	}
	if block.ByteCount > 0 {
		payload, err := readbuf.ReadExact(dr.r, int(block.ByteCount))
		if err != nil {
			return nil, err
		}
		block.Payload = payload
	}
	return block, nil
}

// DepthWriter appends version-1 DEPTHRAW frames to a container. All
// five block slots are written per frame; slots the frame does not carry
// are filled with empty blocks, matching the device writer.
type DepthWriter struct {
	w  io.Writer
	fw fieldWriter
}

// NewDepthWriter writes the DEPTHRAW container header.
func NewDepthWriter(w io.Writer) (*DepthWriter, error) {
	if err := writeHeader(w, mlraw.KindDepth, 1); err != nil {
		return nil, err
	}
	return &DepthWriter{w: w}, nil
}

// WriteFrame appends one frame, emitting block slots in type order 1..5.
func (dw *DepthWriter) WriteFrame(frame *mlraw.DepthFrame) error {
	dw.fw.u32(frame.FrameIndex)
	dw.fw.i64(frame.CaptureTimeNs)

	for bt := uint8(1); bt <= BlockSlotsPerFrame; bt++ {
		block := frame.Blocks[bt]
		if block == nil {
			block = &mlraw.Block{BlockType: bt}
		}
		dw.fw.u8(block.BlockType)
		dw.fw.i32(block.Width)
		dw.fw.i32(block.Height)
		dw.fw.i32(block.StrideBytes)
		dw.fw.i32(block.BytesPerPixel)
		dw.fw.i32(block.ByteCount)
		dw.fw.buf = append(dw.fw.buf, block.Payload...)
	}
	return dw.fw.flush(dw.w)
}
