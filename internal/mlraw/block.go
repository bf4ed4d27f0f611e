package mlraw

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Depth block types, per the MLDepthCamera buffer documentation. Every
// frame carries five block slots, written even when empty.
const (
	BlockDepth      uint8 = 1 // processed depth image, float32 metres
	BlockConfidence uint8 = 2 // confidence buffer, float32 (higher = better)
	BlockFlags      uint8 = 3 // per-pixel uint32 flag bitmask
	BlockRawDepth   uint8 = 4 // raw intensity with illuminator, float32
	BlockAmbient    uint8 = 5 // ambient intensity without illuminator, float32
)

// BlockName returns a human-readable name for a depth block type.
func BlockName(blockType uint8) string {
	switch blockType {
	case BlockDepth:
		return "depth_meters"
	case BlockConfidence:
		return "confidence"
	case BlockFlags:
		return "depth_flags"
	case BlockRawDepth:
		return "raw_intensity"
	case BlockAmbient:
		return "ambient_raw_intensity"
	default:
		return fmt.Sprintf("block_%d", blockType)
	}
}

// Depth flag bits carried by BlockFlags pixels.
const (
	FlagInvalid            = 1 << 0
	FlagSaturated          = 1 << 1
	FlagInconsistent       = 1 << 2
	FlagLowSignal          = 1 << 3
	FlagFlyingPixel        = 1 << 4
	FlagMasked             = 1 << 5
	FlagSBI                = 1 << 8
	FlagStrayLight         = 1 << 9
	FlagConnectedComponent = 1 << 10
)

// Block is one named sub-buffer within a depth frame. Width and Height
// are the logical image dimensions; StrideBytes is the on-device row
// pitch, which may exceed Width*element size when the device pads rows
// to an alignment boundary. ByteCount is the exact payload length
// written to the container.
type Block struct {
	BlockType     uint8
	Width         int32
	Height        int32
	StrideBytes   int32
	BytesPerPixel int32
	ByteCount     int32
	Payload       []byte
}

// IsEmpty reports whether the block carries no image data. Empty blocks
// are written by the device when a buffer was not requested or not
// available for a frame; they carry no payload interpretation.
func (b *Block) IsEmpty() bool {
	return b.ByteCount <= 0 || b.Width <= 0 || b.Height <= 0
}

// elemSize returns the element width implied by the block type. The
// header's BytesPerPixel should agree but is not trusted: the flags
// block is always a uint32 bitmask and every other block is float32.
func (b *Block) elemSize() int32 {
	return 4
}

// BlockData is a decoded block image: a row-major Width×Height array
// owning its own backing storage. Exactly one of Floats and Flags is
// populated, matching the block type.
type BlockData struct {
	Width  int
	Height int
	Floats []float32 // row-major, len == Width*Height; nil for flag blocks
	Flags  []uint32  // row-major, len == Width*Height; nil otherwise
}

// FloatAt returns the float element at (row, col). Only valid for float
// block types.
func (d *BlockData) FloatAt(row, col int) float32 {
	return d.Floats[row*d.Width+col]
}

// FlagAt returns the flag bitmask at (row, col). Only valid for the
// flags block type.
func (d *BlockData) FlagAt(row, col int) uint32 {
	return d.Flags[row*d.Width+col]
}

// Decode reinterprets the block payload as a logical Width×Height array,
// honouring the row stride. Returns (nil, nil) for empty blocks.
//
// The payload is read row by row at offsets row*StrideBytes and only the
// first Width elements of each row are kept. A naive byteCount ==
// width*height*elemSize check would reject valid padded captures, so the
// invariants validated here are the stride-aware ones:
//
//	StrideBytes > 0
//	StrideBytes % elemSize == 0
//	StrideBytes * Height <= ByteCount
//
// The returned arrays are copies; the caller may release or reuse the
// source payload after decoding.
func (b *Block) Decode() (*BlockData, error) {
	if b.IsEmpty() {
		return nil, nil
	}

	elemSize := b.elemSize()
	if b.StrideBytes <= 0 {
		return nil, fmt.Errorf("%w: block %d stride %d not positive",
			ErrMalformedBlock, b.BlockType, b.StrideBytes)
	}
	if b.StrideBytes%elemSize != 0 {
		return nil, fmt.Errorf("%w: block %d stride %d not divisible by element size %d",
			ErrMalformedBlock, b.BlockType, b.StrideBytes, elemSize)
	}
	if int64(b.StrideBytes)*int64(b.Height) > int64(b.ByteCount) {
		return nil, fmt.Errorf("%w: block %d byteCount %d smaller than stride*height %d",
			ErrMalformedBlock, b.BlockType, b.ByteCount, int64(b.StrideBytes)*int64(b.Height))
	}
	if int64(len(b.Payload)) < int64(b.StrideBytes)*int64(b.Height) {
		return nil, fmt.Errorf("%w: block %d payload %d bytes shorter than stride*height %d",
			ErrMalformedBlock, b.BlockType, len(b.Payload), int64(b.StrideBytes)*int64(b.Height))
	}
	elemsPerRow := int(b.StrideBytes / elemSize)
	if int(b.Width) > elemsPerRow {
		return nil, fmt.Errorf("%w: block %d width %d exceeds stride row capacity %d",
			ErrMalformedBlock, b.BlockType, b.Width, elemsPerRow)
	}

	width := int(b.Width)
	height := int(b.Height)
	data := &BlockData{Width: width, Height: height}

	if b.BlockType == BlockFlags {
		out := make([]uint32, width*height)
		for row := 0; row < height; row++ {
			rowStart := row * int(b.StrideBytes)
			for col := 0; col < width; col++ {
				off := rowStart + col*int(elemSize)
				out[row*width+col] = binary.LittleEndian.Uint32(b.Payload[off : off+4])
			}
		}
		data.Flags = out
		return data, nil
	}

	out := make([]float32, width*height)
	for row := 0; row < height; row++ {
		rowStart := row * int(b.StrideBytes)
		for col := 0; col < width; col++ {
			off := rowStart + col*int(elemSize)
			bits := binary.LittleEndian.Uint32(b.Payload[off : off+4])
			out[row*width+col] = math.Float32frombits(bits)
		}
	}
	data.Floats = out
	return data, nil
}
