package diskimage

import (
	"fmt"
	"math"
	"strings"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// GPT partition type GUIDs this library assigns. The Linux filesystem data
// GUID is the default for ext partitions, Basic Data for FAT ones; flags
// replace the default with a role specific type.
const (
	BIOSBootPartitionGUID  = "21686148-6449-6E6F-744E-656564454649"
	EFISystemPartitionGUID = "C12A7328-F81F-11D2-BA4B-00A0C93EC93B"
	FilesystemDataGUID     = "0FC63DAF-8483-4772-8E79-3D69D8477DE4"
	LVMPartitionGUID       = "E6D6D379-F507-44C2-A23C-238F2A3DF928"
	PRePartitionGUID       = "9E1A2D38-C612-4316-AA26-8B49521E5A8B"
	RAIDPartitionGUID      = "A19D880F-05FC-4D3B-A006-743F0F84911E"
	SwapPartitionGUID      = "0657FD6D-A4AB-43C4-84E5-0933C84B4F4F"

	AppleTVRecoveryGUID    = "5265636F-7665-11AA-AA11-00306543ECAC"
	HPServicePartitionGUID = "E2A1E728-32E3-11D6-A682-7B03A0000000"
	MicrosoftBasicDataGUID = "EBD0A0A2-B9E5-4433-87C0-68B6B72699C7"
	MicrosoftRecoveryGUID  = "DE94BBA4-06D1-4D40-A16A-BFD50179D6AC"
	MicrosoftReservedGUID  = "E3C9E316-0B5C-4DB8-817D-F92DF00215AE"
)

// GPT partition attribute bits.
const (
	gptAttrLegacyBIOSBootable = uint64(1) << 2
	gptAttrHidden             = uint64(1) << 62
)

// Diskfs writes GPT and MSDOS partition tables in process through the
// go-diskfs library. After writing it reads the table back and checks every
// partition against its requested offset and size, because a partition the
// library moved or resized would no longer match the byte offsets the merge
// step copies to.
type Diskfs struct {
	imagePath string
	table     TableType

	requests []segment
	gptParts []*gpt.Partition
	mbrParts []*mbr.Partition
}

// NewDiskfs returns the library based strategy for a gpt or msdos image.
func NewDiskfs(imagePath string, table TableType) (Partitioner, error) {
	switch table {
	case TT_GPT, TT_MSDOS:
		return &Diskfs{imagePath: imagePath, table: table}, nil
	default:
		return nil, fmt.Errorf("%w: the diskfs strategy supports gpt and msdos tables, not %s", ErrInvalidArguments, table)
	}
}

func (p *Diskfs) NewPartition(offsetBlocks, sizeBlocks uint64, fs FSType, label string, flags []Flag) error {
	switch p.table {
	case TT_GPT:
		if err := p.newGPTPartition(offsetBlocks, sizeBlocks, fs, label, flags); err != nil {
			return err
		}
	case TT_MSDOS:
		if label != "" {
			return fmt.Errorf("%w: msdos tables cannot store partition labels", ErrInvalidArguments)
		}
		if err := p.newMBRPartition(offsetBlocks, sizeBlocks, fs, flags); err != nil {
			return err
		}
	}
	p.requests = append(p.requests, segment{startBlocks: offsetBlocks, sizeBlocks: sizeBlocks})
	return nil
}

func (p *Diskfs) newGPTPartition(offsetBlocks, sizeBlocks uint64, fs FSType, label string, flags []Flag) error {
	part := &gpt.Partition{
		Start: offsetBlocks,
		End:   offsetBlocks + sizeBlocks - 1,
		Size:  sizeBlocks * BlockSize,
		Type:  gptTypeFor(fs),
		Name:  label,
		GUID:  strings.ToUpper(uuid.New().String()),
	}
	for _, flag := range flags {
		if err := applyGPTFlag(part, flag); err != nil {
			return err
		}
	}
	p.gptParts = append(p.gptParts, part)
	return nil
}

func (p *Diskfs) newMBRPartition(offsetBlocks, sizeBlocks uint64, fs FSType, flags []Flag) error {
	if offsetBlocks+sizeBlocks > math.MaxUint32 {
		return fmt.Errorf("%w: partition ends beyond the 2 TiB msdos limit", ErrInvalidArguments)
	}
	code, err := dosTypeCode(fs, sizeBlocks*BlockSize)
	if err != nil {
		return err
	}
	part := &mbr.Partition{
		Start: uint32(offsetBlocks),
		Size:  uint32(sizeBlocks),
		Type:  mbr.Type(code),
	}
	for _, flag := range flags {
		if err := applyMBRFlag(part, flag); err != nil {
			return err
		}
	}
	p.mbrParts = append(p.mbrParts, part)
	return nil
}

func (p *Diskfs) Commit() error {
	if err := p.writeTable(); err != nil {
		return err
	}
	return p.verify()
}

func (p *Diskfs) writeTable() error {
	d, err := diskfs.Open(p.imagePath, diskfs.WithOpenMode(diskfs.ReadWriteExclusive))
	if err != nil {
		return fmt.Errorf("error opening %s for partitioning: %w", p.imagePath, err)
	}
	defer d.Close()

	logrus.Debugf("writing %s partition table with %d partitions to %s", p.table, len(p.requests), p.imagePath)
	switch p.table {
	case TT_GPT:
		err = d.Partition(&gpt.Table{
			Partitions:         p.gptParts,
			LogicalSectorSize:  BlockSize,
			PhysicalSectorSize: BlockSize,
			GUID:               strings.ToUpper(uuid.New().String()),
			ProtectiveMBR:      true,
		})
	case TT_MSDOS:
		err = d.Partition(&mbr.Table{
			Partitions:         p.mbrParts,
			LogicalSectorSize:  BlockSize,
			PhysicalSectorSize: BlockSize,
		})
	}
	if err != nil {
		return fmt.Errorf("error writing the partition table to %s: %w", p.imagePath, err)
	}
	return nil
}

func (p *Diskfs) verify() error {
	d, err := diskfs.Open(p.imagePath, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return fmt.Errorf("error reopening %s to verify the partition table: %w", p.imagePath, err)
	}
	defer d.Close()

	table, err := d.GetPartitionTable()
	if err != nil {
		return fmt.Errorf("error reading back the partition table of %s: %w", p.imagePath, err)
	}
	written := table.GetPartitions()
	for i, req := range p.requests {
		wantStart := int64(req.startBlocks) * BlockSize
		wantSize := int64(req.sizeBlocks) * BlockSize
		found := false
		for _, part := range written {
			if part.GetStart() == wantStart && part.GetSize() == wantSize {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: partition %d is not at block %d with %d blocks after the table write",
				ErrUnknown, i+1, req.startBlocks, req.sizeBlocks)
		}
	}
	return nil
}

func gptTypeFor(fs FSType) gpt.Type {
	if fs.IsFAT() {
		return gpt.Type(MicrosoftBasicDataGUID)
	}
	return gpt.Type(FilesystemDataGUID)
}

func applyGPTFlag(part *gpt.Partition, flag Flag) error {
	switch flag {
	case FlagBoot:
		part.Type = gpt.Type(EFISystemPartitionGUID)
	case FlagBiosGrub:
		part.Type = gpt.Type(BIOSBootPartitionGUID)
	case FlagSwap:
		part.Type = gpt.Type(SwapPartitionGUID)
	case FlagRAID:
		part.Type = gpt.Type(RAIDPartitionGUID)
	case FlagLVM:
		part.Type = gpt.Type(LVMPartitionGUID)
	case FlagPReP:
		part.Type = gpt.Type(PRePartitionGUID)
	case FlagMsftReserved:
		part.Type = gpt.Type(MicrosoftReservedGUID)
	case FlagDiag:
		part.Type = gpt.Type(MicrosoftRecoveryGUID)
	case FlagHPService:
		part.Type = gpt.Type(HPServicePartitionGUID)
	case FlagAppleTVRecovery:
		part.Type = gpt.Type(AppleTVRecoveryGUID)
	case FlagHidden:
		part.Attributes |= gptAttrHidden
	case FlagLegacyBoot:
		part.Attributes |= gptAttrLegacyBIOSBootable
	default:
		return fmt.Errorf("%w: flag %s has no gpt representation", ErrInvalidArguments, string(flag))
	}
	return nil
}

// dosFATTypes holds the type bytes the HIDDEN and LBA flags may act on.
var dosFATTypes = map[byte]bool{
	dosTypeFat12:    true,
	dosTypeFat16:    true,
	dosTypeFat16b:   true,
	dosTypeFat16LBA: true,
	dosTypeFat32:    true,
	dosTypeFat32LBA: true,
}

func applyMBRFlag(part *mbr.Partition, flag Flag) error {
	switch flag {
	case FlagBoot:
		part.Bootable = true
	case FlagSwap:
		part.Type = mbr.Type(dosTypeLinuxSwap)
	case FlagRAID:
		part.Type = mbr.Type(dosTypeLinuxRAID)
	case FlagLVM:
		part.Type = mbr.Type(dosTypeLinuxLVM)
	case FlagPReP:
		part.Type = mbr.Type(dosTypePReP)
	case FlagPalo:
		part.Type = mbr.Type(dosTypePalo)
	case FlagDiag:
		part.Type = mbr.Type(dosTypeDiag)
	case FlagLBA:
		switch byte(part.Type) {
		case dosTypeFat16, dosTypeFat16b:
			part.Type = mbr.Type(dosTypeFat16LBA)
		case dosTypeFat32:
			part.Type = mbr.Type(dosTypeFat32LBA)
		case dosTypeFat16LBA, dosTypeFat32LBA:
			// already an LBA type
		default:
			return fmt.Errorf("%w: flag LBA needs a FAT16 or FAT32 partition", ErrInvalidArguments)
		}
	case FlagHidden:
		if !dosFATTypes[byte(part.Type)] {
			return fmt.Errorf("%w: only FAT partitions can be hidden in an msdos table", ErrInvalidArguments)
		}
		part.Type += dosHiddenShift
	default:
		return fmt.Errorf("%w: flag %s has no msdos representation", ErrInvalidArguments, string(flag))
	}
	return nil
}
