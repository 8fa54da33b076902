package diskimage

import "fmt"

const (
	// BlockSize is the sector size all offset and size math uses.
	BlockSize = 512

	// AlignmentBlocks is the block multiple partition starts and sizes are
	// padded to. 32 blocks keeps everything 16 KiB aligned.
	AlignmentBlocks = 32
)

// tablePadding returns the bytes reserved around the partition area. GPT
// needs room for the protective MBR plus header and entry array up front
// and a backup of both at the back. An MSDOS label fits in its single boot
// sector. A table-less image owns the whole file.
func tablePadding(t TableType) (leading, trailing uint64) {
	switch t {
	case TT_GPT:
		return (34 + 1) * BlockSize, 34 * BlockSize
	case TT_MSDOS:
		return BlockSize, 0
	case TT_NULL:
		return 0, 0
	default:
		panic(fmt.Sprintf("unknown or unsupported partition table type with enum value %d", uint64(t)))
	}
}

// bytesToBlocks converts a byte count to blocks, rounding up. aligned also
// rounds the block count up to the alignment granule.
func bytesToBlocks(nbytes uint64, aligned bool) uint64 {
	blocks := (nbytes + BlockSize - 1) / BlockSize
	if aligned {
		blocks = (blocks + AlignmentBlocks - 1) / AlignmentBlocks * AlignmentBlocks
	}
	return blocks
}

// segment is one partition's place on the final image, in blocks.
type segment struct {
	startBlocks uint64
	sizeBlocks  uint64
}

// planLayout places every partition in declaration order. Each segment
// records the exact block count of its partition, while the cursor advances
// by the aligned count, so partitions never share an alignment granule.
func (d *DiskImage) planLayout() []segment {
	offset := bytesToBlocks(d.leadingPaddingBytes, true)
	segs := make([]segment, 0, len(d.partitions))
	for _, p := range d.partitions {
		size := bytesToBlocks(p.TotalSizeBytes(), false)
		segs = append(segs, segment{startBlocks: offset, sizeBlocks: size})
		offset += bytesToBlocks(size*BlockSize, true)
	}
	return segs
}

// SizeBytes returns the size the committed image file will have: the leading
// padding, every partition, and the trailing padding, each rounded up to the
// alignment granule.
func (d *DiskImage) SizeBytes() uint64 {
	blocks := bytesToBlocks(d.leadingPaddingBytes, true)
	for _, p := range d.partitions {
		blocks += bytesToBlocks(p.TotalSizeBytes(), true)
	}
	blocks += bytesToBlocks(d.trailingPaddingBytes, true)
	return blocks * BlockSize
}
