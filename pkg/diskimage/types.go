package diskimage

import (
	"fmt"

	"github.com/osbuild/diskimage/pkg/datasizes"
)

// TableType is the partition table type enum.
type TableType uint64

const (
	TT_GPT TableType = iota
	TT_MSDOS
	TT_NULL
)

func (t TableType) String() string {
	switch t {
	case TT_GPT:
		return "gpt"
	case TT_MSDOS:
		return "msdos"
	case TT_NULL:
		return "null"
	default:
		panic(fmt.Sprintf("unknown or unsupported partition table type with enum value %d", uint64(t)))
	}
}

func NewTableType(s string) (TableType, error) {
	switch s {
	case "gpt":
		return TT_GPT, nil
	case "msdos":
		return TT_MSDOS, nil
	case "null":
		return TT_NULL, nil
	default:
		return TT_GPT, fmt.Errorf("%w: unknown partition table type name: %s", ErrInvalidArguments, s)
	}
}

func (t *TableType) UnmarshalTOML(data interface{}) error {
	s, ok := data.(string)
	if !ok {
		return fmt.Errorf("partition table type must be a string, got %v", data)
	}
	parsed, err := NewTableType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// FSType is the filesystem type enum.
type FSType uint64

const (
	FS_NONE FSType = iota
	FS_EXT2
	FS_EXT3
	FS_EXT4
	FS_FAT12
	FS_FAT16
	FS_FAT32
)

func (f FSType) String() string {
	switch f {
	case FS_NONE:
		return ""
	case FS_EXT2:
		return "ext2"
	case FS_EXT3:
		return "ext3"
	case FS_EXT4:
		return "ext4"
	case FS_FAT12:
		return "fat12"
	case FS_FAT16:
		return "fat16"
	case FS_FAT32:
		return "fat32"
	default:
		panic(fmt.Sprintf("unknown or unsupported filesystem type with enum value %d", uint64(f)))
	}
}

func NewFSType(s string) (FSType, error) {
	switch s {
	case "ext2":
		return FS_EXT2, nil
	case "ext3":
		return FS_EXT3, nil
	case "ext4":
		return FS_EXT4, nil
	case "fat12":
		return FS_FAT12, nil
	case "fat16":
		return FS_FAT16, nil
	case "fat32":
		return FS_FAT32, nil
	default:
		return FS_NONE, fmt.Errorf("%w: unknown filesystem type name: %s", ErrInvalidArguments, s)
	}
}

func (f *FSType) UnmarshalTOML(data interface{}) error {
	s, ok := data.(string)
	if !ok {
		return fmt.Errorf("filesystem type must be a string, got %v", data)
	}
	parsed, err := NewFSType(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// IsExt reports whether f belongs to the ext family.
func (f FSType) IsExt() bool {
	return f == FS_EXT2 || f == FS_EXT3 || f == FS_EXT4
}

// IsFAT reports whether f belongs to the FAT family.
func (f FSType) IsFAT() bool {
	return f == FS_FAT12 || f == FS_FAT16 || f == FS_FAT32
}

// metadataBytes is the reserve added on top of raw content for filesystem
// bookkeeping. The values are generous safety margins rather than exact
// parity with mkfs: an ext journal alone takes 4 MiB on a small filesystem.
func (f FSType) metadataBytes() uint64 {
	switch {
	case f.IsExt():
		return 8 * datasizes.MiB
	case f.IsFAT():
		return 1 * datasizes.MiB
	default:
		return 0
	}
}

// CleanupPolicy says which temp artifacts a commit may remove.
type CleanupPolicy uint64

const (
	// CleanupAlways removes temp artifacts whether the commit succeeded or
	// not.
	CleanupAlways CleanupPolicy = iota
	// CleanupNotOnError keeps everything around after a failure, for
	// inspection.
	CleanupNotOnError
	// CleanupNever leaves all temp artifacts in place.
	CleanupNever
)

func (p CleanupPolicy) String() string {
	switch p {
	case CleanupAlways:
		return "always"
	case CleanupNotOnError:
		return "not-on-error"
	case CleanupNever:
		return "never"
	default:
		panic(fmt.Sprintf("unknown cleanup policy with enum value %d", uint64(p)))
	}
}

func NewCleanupPolicy(s string) (CleanupPolicy, error) {
	switch s {
	case "always":
		return CleanupAlways, nil
	case "not-on-error":
		return CleanupNotOnError, nil
	case "never":
		return CleanupNever, nil
	default:
		return CleanupAlways, fmt.Errorf("%w: unknown cleanup policy name: %s", ErrInvalidArguments, s)
	}
}

func (p *CleanupPolicy) UnmarshalTOML(data interface{}) error {
	s, ok := data.(string)
	if !ok {
		return fmt.Errorf("cleanup policy must be a string, got %v", data)
	}
	parsed, err := NewCleanupPolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Flag marks a partition for a special role in the partition table. How a
// flag is stored, and whether it can be stored at all, depends on the table
// type and the strategy writing it.
type Flag string

const (
	FlagBoot            Flag = "BOOT"
	FlagRoot            Flag = "ROOT"
	FlagSwap            Flag = "SWAP"
	FlagHidden          Flag = "HIDDEN"
	FlagRAID            Flag = "RAID"
	FlagLVM             Flag = "LVM"
	FlagLBA             Flag = "LBA"
	FlagHPService       Flag = "HPSERVICE"
	FlagPalo            Flag = "PALO"
	FlagPReP            Flag = "PREP"
	FlagMsftReserved    Flag = "MSFT_RESERVED"
	FlagBiosGrub        Flag = "BIOS_GRUB"
	FlagAppleTVRecovery Flag = "APPLE_TV_RECOVERY"
	FlagDiag            Flag = "DIAG"
	FlagLegacyBoot      Flag = "LEGACY_BOOT"
)

var knownFlags = map[Flag]bool{
	FlagBoot:            true,
	FlagRoot:            true,
	FlagSwap:            true,
	FlagHidden:          true,
	FlagRAID:            true,
	FlagLVM:             true,
	FlagLBA:             true,
	FlagHPService:       true,
	FlagPalo:            true,
	FlagPReP:            true,
	FlagMsftReserved:    true,
	FlagBiosGrub:        true,
	FlagAppleTVRecovery: true,
	FlagDiag:            true,
	FlagLegacyBoot:      true,
}
