package diskimage

import (
	"fmt"

	"github.com/osbuild/diskimage/pkg/datasizes"
)

// Partitioner writes one partition table to an image file. A strategy
// collects partition records and writes them all at once in Commit, so a
// half-declared table never reaches the disk.
type Partitioner interface {
	// NewPartition records a partition at the given block offset and size.
	NewPartition(offsetBlocks, sizeBlocks uint64, fs FSType, label string, flags []Flag) error
	// Commit writes the recorded table to the image.
	Commit() error
}

// NewPartitionerFunc builds a strategy for an image file and table type.
// The commit pipeline calls it once per commit.
type NewPartitionerFunc func(imagePath string, table TableType) (Partitioner, error)

// MBR partition type bytes this library emits.
const (
	dosTypeFat12     = 0x01
	dosTypeFat16     = 0x04
	dosTypeFat16b    = 0x06
	dosTypeFat32     = 0x0b
	dosTypeFat32LBA  = 0x0c
	dosTypeFat16LBA  = 0x0e
	dosTypeDiag      = 0x12
	dosTypePReP      = 0x41
	dosTypeLinuxSwap = 0x82
	dosTypeLinux     = 0x83
	dosTypeLinuxLVM  = 0x8e
	dosTypePalo      = 0xf0
	dosTypeLinuxRAID = 0xfd

	// DOS hides a FAT partition by shifting its type byte up by 0x10.
	dosHiddenShift = 0x10
)

// dosTypeCode picks the MBR type byte for a filesystem. The FAT variants
// depend on the partition size: small FAT16 gets the classic 0x04, anything
// past the 8 GiB CHS horizon needs the LBA variant.
func dosTypeCode(fs FSType, sizeBytes uint64) (byte, error) {
	switch fs {
	case FS_EXT2, FS_EXT3, FS_EXT4:
		return dosTypeLinux, nil
	case FS_FAT12:
		return dosTypeFat12, nil
	case FS_FAT16:
		switch {
		case sizeBytes < 32*datasizes.MiB:
			return dosTypeFat16, nil
		case sizeBytes > 8*datasizes.GiB:
			return dosTypeFat16LBA, nil
		default:
			return dosTypeFat16b, nil
		}
	case FS_FAT32:
		if sizeBytes > 8*datasizes.GiB {
			return dosTypeFat32LBA, nil
		}
		return dosTypeFat32, nil
	default:
		return 0, fmt.Errorf("%w: no partition type code for filesystem %q", ErrInvalidArguments, fs.String())
	}
}

// Null is the strategy for table-less images: it accepts the layout and
// writes nothing.
type Null struct{}

// NewNull returns the no-op strategy. It only pairs with TT_NULL images.
func NewNull(imagePath string, table TableType) (Partitioner, error) {
	if table != TT_NULL {
		return nil, fmt.Errorf("%w: the null strategy writes no table and only supports null table images", ErrInvalidArguments)
	}
	return Null{}, nil
}

func (Null) NewPartition(offsetBlocks, sizeBlocks uint64, fs FSType, label string, flags []Flag) error {
	return nil
}

func (Null) Commit() error {
	return nil
}
